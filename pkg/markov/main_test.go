package markov

import (
	"go/build"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fishCorpus is the default training data used across tests.
var fishCorpus = [][]Token{
	Strings("one", "fish", "two", "fish"),
	Strings("red", "fish", "blue", "fish"),
}

// newTestRand returns a deterministic random source for reproducible tests.
func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

// setupTestChain builds a chain of the given order with a deterministic source.
func setupTestChain(t *testing.T, order int, corpus [][]Token, opts ...Option) *Chain {
	t.Helper()
	opts = append([]Option{WithOrder(order), WithRand(newTestRand())}, opts...)
	c, err := New(corpus, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// setupFishChain is a convenience helper that builds the default order 1
// chain with its token map enabled.
func setupFishChain(t *testing.T) *Chain {
	t.Helper()
	return setupTestChain(t, 1, fishCorpus, WithTokenMap(true))
}

// isSubWalk reports whether tokens could have been produced by walking c
// from start in dir: every token must be a recorded transition of the
// state it was drawn from.
func isSubWalk(c *Chain, start []Token, dir Direction, tokens []Token) bool {
	state := append([]Token(nil), start...)
	for _, tok := range tokens {
		if c.StateSpace().Table(state, dir).Count(tok) == 0 {
			return false
		}
		if dir == Backward {
			state = append([]Token{tok}, state[:len(state)-1]...)
		} else {
			state = append(state[1:], tok)
		}
	}
	return true
}

func tokenTexts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.String()
	}
	return out
}

var (
	benchmarkCorpus [][]Token
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus of
// whitespace-separated runs, one per line.
func createBenchmarkCorpus() [][]Token {
	corpusOnce.Do(func() {
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		var text strings.Builder
		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				text.Reset()
				text.WriteString("this is a fallback corpus for benchmarking\nit is not very long but will prevent a crash\n")
				break
			}
			text.Write(content)
			text.WriteString("\n")
		}

		for _, line := range strings.Split(text.String(), "\n") {
			if fields := strings.Fields(line); len(fields) > 0 {
				benchmarkCorpus = append(benchmarkCorpus, Strings(fields...))
			}
		}
	})
	return benchmarkCorpus
}
