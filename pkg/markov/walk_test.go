package markov

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// setupCycleChain builds an order 0 chain whose only state loops onto itself.
func setupCycleChain(t *testing.T, opts ...Option) *Chain {
	t.Helper()
	space := NewStateSpace()
	a := StringToken("a")
	if err := space.Add([]Token{a}, Forward, a, 1); err != nil {
		t.Fatal(err)
	}
	if err := space.Add([]Token{a}, Backward, a, 1); err != nil {
		t.Fatal(err)
	}
	c, err := FromStateSpace(space, opts...)
	if err != nil {
		t.Fatalf("FromStateSpace() error = %v", err)
	}
	return c
}

func TestStepDeadEnd(t *testing.T) {
	c := setupFishChain(t)
	unknown := Strings("green", "fish")
	if got := c.Step(unknown, Forward); got != End {
		t.Errorf("Step(unknown, Forward) = %v, want END", got)
	}
	if got := c.Step(unknown, Backward); got != Begin {
		t.Errorf("Step(unknown, Backward) = %v, want BEGIN", got)
	}
}

func TestWalkForward(t *testing.T) {
	c := setupFishChain(t)

	got := c.Collect(Strings("red", "fish"), Forward)
	if !reflect.DeepEqual(tokenTexts(got), []string{"blue", "fish"}) {
		t.Errorf("forward walk = %v, want [blue fish]", tokenTexts(got))
	}

	for i := 0; i < 50; i++ {
		walk := c.Collect(c.InitialState(), Forward)
		if !isSubWalk(c, c.InitialState(), Forward, walk) {
			t.Fatalf("walk %v is not a walk of the seeded graph", tokenTexts(walk))
		}
		text := tokenTexts(walk)
		if !slices.Equal(text, []string{"one", "fish", "two", "fish"}) && !slices.Equal(text, []string{"red", "fish", "blue", "fish"}) {
			t.Errorf("unexpected walk from the initial state: %v", text)
		}
	}
}

func TestWalkBackward(t *testing.T) {
	c := setupFishChain(t)
	start := Strings("blue", "fish")

	got := c.Collect(start, Backward)
	if !reflect.DeepEqual(tokenTexts(got), []string{"fish", "red"}) {
		t.Errorf("backward walk = %v, want [fish red]", tokenTexts(got))
	}
	if !isSubWalk(c, start, Backward, got) {
		t.Error("backward walk is not a walk of the seeded graph")
	}
}

func TestWalkerIsNotRestartable(t *testing.T) {
	c := setupFishChain(t)
	w := c.Walker(Strings("red", "fish"), Forward)

	var got []Token
	for tok := range w.All() {
		got = append(got, tok)
	}
	if len(got) != 2 || w.Steps() != 2 {
		t.Fatalf("expected 2 steps, got %v (Steps() = %d)", got, w.Steps())
	}
	if !reflect.DeepEqual(w.State(), Strings("blue", "fish")) {
		t.Errorf("final state = %v, want [blue fish]", w.State())
	}
	if tok, ok := w.Next(); ok {
		t.Errorf("Next() after completion returned %v", tok)
	}
	for range w.All() {
		t.Fatal("a finished walker must not yield again")
	}
}

func TestWalkEarlyTermination(t *testing.T) {
	c := setupCycleChain(t)
	var n int
	for range c.Walk(Strings("a"), Forward) {
		n++
		if n == 10 {
			break
		}
	}
	if n != 10 {
		t.Errorf("expected to consume 10 tokens, got %d", n)
	}
}

func TestWalkMaxSteps(t *testing.T) {
	c := setupCycleChain(t, WithMaxSteps(5))
	for _, dir := range []Direction{Forward, Backward} {
		got := c.Collect(Strings("a"), dir)
		if len(got) != 5 {
			t.Errorf("%s walk with max steps 5 yielded %d tokens", dir, len(got))
		}
	}
}

func TestSetLoggerWhileWalking(t *testing.T) {
	c := setupCycleChain(t, WithMaxSteps(3))
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Collect(Strings("a"), Forward)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		c.SetLogger(logger)
	}
	wg.Wait()

	_ = c.Collect(Strings("a"), Forward)
	if !strings.Contains(buf.String(), "Walk terminated by reaching max steps") {
		t.Errorf("expected the walk to log through the new logger, got %q", buf.String())
	}
}

func TestWalkStream(t *testing.T) {
	ctx := context.Background()
	c := setupFishChain(t)

	t.Run("Successful stream", func(t *testing.T) {
		var tokens []string
		for tok := range c.WalkStream(ctx, Strings("one", "fish"), Forward) {
			tokens = append(tokens, tok.String())
		}
		if !slices.Equal(tokens, []string{"two", "fish"}) {
			t.Errorf("stream = %v, want [two fish]", tokens)
		}
	})

	t.Run("Stream cancellation", func(t *testing.T) {
		cycle := setupCycleChain(t)
		ctxCancel, cancel := context.WithCancel(ctx)
		defer cancel()

		streamCancel := cycle.WalkStream(ctxCancel, Strings("a"), Forward)

		// Read one token, then cancel
		<-streamCancel
		cancel()

		// Drain anything already in flight; the channel must close quickly.
		timeout := time.After(time.Second)
		for {
			select {
			case _, ok := <-streamCancel:
				if !ok {
					return
				}
			case <-timeout:
				t.Fatal("timed out waiting for stream channel to close after cancellation")
			}
		}
	})

	t.Run("Abandoned stream released by cancel", func(t *testing.T) {
		cycle := setupCycleChain(t)
		ctxCancel, cancel := context.WithCancel(ctx)
		stream := cycle.WalkStream(ctxCancel, Strings("a"), Forward)
		<-stream

		// Stop reading long enough for the walk to block on its next send.
		time.Sleep(20 * time.Millisecond)
		cancel()

		timeout := time.After(time.Second)
		for {
			select {
			case _, ok := <-stream:
				if !ok {
					return
				}
			case <-timeout:
				t.Fatal("a blocked stream did not close after cancellation")
			}
		}
	})
}

func TestDirection(t *testing.T) {
	if Forward.Stop() != End || Backward.Stop() != Begin {
		t.Error("unexpected stop sentinels")
	}
	if Forward.String() != "forward" || Backward.String() != "backward" {
		t.Error("unexpected direction names")
	}
}

func BenchmarkWalk(b *testing.B) {
	corpus := createBenchmarkCorpus()
	for _, order := range []int{1, 2} {
		c, err := New(corpus, WithOrder(order))
		if err != nil {
			b.Fatalf("New() failed: %v", err)
		}
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = c.Collect(c.InitialState(), Forward)
			}
		})
	}
}
