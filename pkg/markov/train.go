package markov

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrSentinelInRun is returned when a run passed to Seed contains Begin,
// End or an invalid token.
var ErrSentinelInRun = errors.New("markov: run contains a sentinel or invalid token")

// Seed adds one run to the chain. Existing weights are incremented, never
// replaced. If the token map is enabled it is updated alongside the state
// space, at the cost of one map insert per token of every window.
func (c *Chain) Seed(run []Token) error {
	for i, t := range run {
		if t.kind != KindValue {
			return fmt.Errorf("%w: %v at index %d", ErrSentinelInRun, t, i)
		}
	}

	c.mu.Lock()
	seed(run, c.space, c.initial, c.order, c.tokenMap)
	states := c.space.Len()
	c.mu.Unlock()

	c.log().Debug("Run seeded",
		slog.Int("run_length", len(run)),
		slog.Int("states", states),
	)
	return nil
}

// seed walks every window of initial ⧺ run ⧺ [End] and records, for each
// window, the token that follows it and the token that precedes it.
// An empty run still connects the initial state directly to End.
func seed(run []Token, space *StateSpace, initial []Token, order int, tokenMap *TokenMap) {
	items := make([]Token, 0, len(initial)+len(run)+1)
	items = append(items, initial...)
	items = append(items, run...)
	items = append(items, End)

	for i := 0; i <= len(run); i++ {
		state := items[i : i+order+1]
		next := items[i+order+1]
		prev := Begin
		if i > 0 {
			prev = items[i-1]
		}

		e, k := space.entry(state)
		e.next.add(next, 1)
		e.prev.add(prev, 1)

		if tokenMap != nil {
			tokenMap.register(e.state, k)
		}
	}
}
