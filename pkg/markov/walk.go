package markov

import (
	"iter"
	"log/slog"
	"slices"
)

// Direction selects which table a step samples from.
type Direction uint8

const (
	// Forward steps sample successors and stop at End.
	Forward Direction = iota
	// Backward steps sample predecessors and stop at Begin.
	Backward
)

// Stop returns the sentinel that terminates a walk in d.
func (d Direction) Stop() Token {
	if d == Backward {
		return Begin
	}
	return End
}

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Step samples one neighbour of state in dir. A state that was never
// observed, or has no transitions in dir, yields the stop sentinel.
func (c *Chain) Step(state []Token, dir Direction) Token {
	c.mu.RLock()
	defer c.mu.RUnlock()

	table := c.space.Table(state, dir)
	if table.Len() == 0 {
		return dir.Stop()
	}
	i, err := Pick(c.rng, table.counts)
	if err != nil {
		return dir.Stop()
	}
	return table.tokens[i]
}

// Walker is a lazy, non-restartable walk from a fixed state. Each call to
// Next takes one step and slides the state window by one token.
type Walker struct {
	chain *Chain
	dir   Direction
	state []Token
	steps int
	done  bool
}

// Walker returns a walker starting at from. The start state itself is
// never yielded.
func (c *Chain) Walker(from []Token, dir Direction) *Walker {
	return &Walker{
		chain: c,
		dir:   dir,
		state: slices.Clone(from),
	}
}

// Next returns the next token of the walk. It returns false once the stop
// sentinel is drawn or the chain's step limit is reached; every later call
// also returns false.
func (w *Walker) Next() (Token, bool) {
	if w.done {
		return Token{}, false
	}
	if w.chain.maxSteps > 0 && w.steps >= w.chain.maxSteps {
		w.done = true
		w.chain.log().Debug("Walk terminated by reaching max steps",
			slog.String("direction", w.dir.String()),
			slog.Int("max_steps", w.chain.maxSteps),
		)
		return Token{}, false
	}

	tok := w.chain.Step(w.state, w.dir)
	if tok == w.dir.Stop() {
		w.done = true
		return Token{}, false
	}

	if len(w.state) > 0 {
		if w.dir == Backward {
			copy(w.state[1:], w.state[:len(w.state)-1])
			w.state[0] = tok
		} else {
			copy(w.state, w.state[1:])
			w.state[len(w.state)-1] = tok
		}
	}
	w.steps++
	return tok, true
}

// State returns a copy of the walker's current state.
func (w *Walker) State() []Token { return slices.Clone(w.state) }

// Steps returns the number of tokens yielded so far.
func (w *Walker) Steps() int { return w.steps }

// All returns the walk as a single-use sequence. Breaking out of the
// range loop stops the walk without drawing further steps.
func (w *Walker) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for {
			tok, ok := w.Next()
			if !ok || !yield(tok) {
				return
			}
		}
	}
}

// Walk returns the lazy sequence of tokens reached by stepping from from
// in dir until the stop sentinel. The sequence is not restartable.
func (c *Chain) Walk(from []Token, dir Direction) iter.Seq[Token] {
	return c.Walker(from, dir).All()
}

// Collect runs a walk to completion and returns its tokens in walk order.
func (c *Chain) Collect(from []Token, dir Direction) []Token {
	var out []Token
	for tok := range c.Walk(from, dir) {
		out = append(out, tok)
	}
	return out
}
