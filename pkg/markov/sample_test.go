package markov

import (
	"errors"
	"math"
	"testing"
)

// fixedSource returns the same draw on every call.
type fixedSource struct {
	f float64
}

func (s fixedSource) IntN(n int) int   { return int(s.f * float64(n)) }
func (s fixedSource) Float64() float64 { return s.f }

func TestPick(t *testing.T) {
	testCases := []struct {
		name    string
		weights []float64
		draw    float64
		want    int
	}{
		{name: "First bucket", weights: []float64{1, 1, 2}, draw: 0.0, want: 0},
		{name: "Boundary goes right", weights: []float64{1, 1, 2}, draw: 0.25, want: 1},
		{name: "Last bucket", weights: []float64{1, 1, 2}, draw: 0.99, want: 2},
		{name: "Zero weight skipped", weights: []float64{0, 5}, draw: 0.0, want: 1},
		{name: "Trailing zero never picked", weights: []float64{5, 0}, draw: 0.999999, want: 0},
		{name: "Single candidate", weights: []float64{3}, draw: 0.5, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Pick(fixedSource{f: tc.draw}, tc.weights)
			if err != nil {
				t.Fatalf("Pick() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Pick(%v) with draw %v = %d, want %d", tc.weights, tc.draw, got, tc.want)
			}
		})
	}
}

func TestPickCounts(t *testing.T) {
	testCases := []struct {
		name   string
		counts []int
		draw   float64
		want   int
	}{
		{name: "First bucket", counts: []int{1, 1, 2}, draw: 0.0, want: 0},
		{name: "Boundary goes right", counts: []int{1, 1, 2}, draw: 0.25, want: 1},
		{name: "Last bucket", counts: []int{1, 1, 2}, draw: 0.99, want: 2},
		{name: "Zero count skipped", counts: []int{0, 5}, draw: 0.0, want: 1},
		{name: "Trailing zero never picked", counts: []int{5, 0}, draw: 0.999999, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// fixedSource.IntN scales the draw, so the int path sees the same point.
			got, err := Pick(fixedSource{f: tc.draw}, tc.counts)
			if err != nil {
				t.Fatalf("Pick() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Pick(%v) with draw %v = %d, want %d", tc.counts, tc.draw, got, tc.want)
			}
		})
	}
}

func TestStepUsesPick(t *testing.T) {
	s, a, b := StringToken("s"), StringToken("a"), StringToken("b")
	c := setupTestChain(t, 0, [][]Token{{s, a}, {s, b}, {s, b}, {s, b}}, WithRand(fixedSource{f: 0.25}))
	// next of (s) is [a:1, b:3]; a draw of 1 out of 4 lands right of a.
	if got := c.Step([]Token{s}, Forward); got != b {
		t.Errorf("Step() = %v, want b", got)
	}
	c = setupTestChain(t, 0, [][]Token{{s, a}, {s, b}, {s, b}, {s, b}}, WithRand(fixedSource{f: 0.2}))
	if got := c.Step([]Token{s}, Forward); got != a {
		t.Errorf("Step() = %v, want a", got)
	}
}

func TestPickErrors(t *testing.T) {
	src := newTestRand()
	if _, err := Pick[int](src, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Pick(nil) error = %v, want ErrNoCandidates", err)
	}
	if _, err := Pick(src, []int{0, 0}); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Pick(all zero) error = %v, want ErrNoCandidates", err)
	}
	if _, err := Pick(src, []int{1, -1}); !errors.Is(err, ErrNegativeWeight) {
		t.Errorf("Pick(negative) error = %v, want ErrNegativeWeight", err)
	}
}

func TestPickProportional(t *testing.T) {
	const trials = 40000
	src := newTestRand()
	counts := make([]int, 2)
	for i := 0; i < trials; i++ {
		idx, err := Pick(src, []int{1, 3})
		if err != nil {
			t.Fatalf("Pick() error = %v", err)
		}
		counts[idx]++
	}
	ratio := float64(counts[1]) / float64(counts[0])
	if math.Abs(ratio-3) > 0.3 {
		t.Errorf("expected a ratio near 3, got %.3f (%v)", ratio, counts)
	}
}

func TestWeightedElement(t *testing.T) {
	items := []string{"a", "b", "c"}

	got, err := WeightedElement(fixedSource{f: 0.5}, items, []int{0, 0, 1})
	if err != nil || got != "c" {
		t.Errorf("WeightedElement() = %q, %v, want %q", got, err, "c")
	}

	// Mismatched weights fall back to a uniform pick.
	got, err = WeightedElement(fixedSource{f: 0.5}, items, []int{1})
	if err != nil || got != "b" {
		t.Errorf("WeightedElement() uniform fallback = %q, %v, want %q", got, err, "b")
	}

	if _, err := WeightedElement[string, int](fixedSource{}, nil, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("WeightedElement(empty) error = %v, want ErrNoCandidates", err)
	}
	if _, err := RandomElement[int](fixedSource{}, nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("RandomElement(empty) error = %v, want ErrNoCandidates", err)
	}
}

func TestStepProportional(t *testing.T) {
	s, a, b := StringToken("s"), StringToken("a"), StringToken("b")
	corpus := [][]Token{{s, a}, {s, b}, {s, b}, {s, b}}
	c := setupTestChain(t, 0, corpus)

	const trials = 40000
	counts := make(map[Token]int)
	for i := 0; i < trials; i++ {
		counts[c.Step([]Token{s}, Forward)]++
	}
	if len(counts) != 2 {
		t.Fatalf("expected only a and b to be drawn, got %v", counts)
	}
	ratio := float64(counts[b]) / float64(counts[a])
	if math.Abs(ratio-3) > 0.3 {
		t.Errorf("expected b about 3 times as often as a, got ratio %.3f", ratio)
	}
}
