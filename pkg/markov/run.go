package markov

import (
	"encoding/json"
	"log/slog"
	"slices"
)

// runOptions Is used by Run to configure default options.
type runOptions struct {
	backSearch       bool
	useTokenMap      bool
	runMissingTokens bool
}

// RunOption is a function that configures a single Run call.
type RunOption func(*runOptions)

// WithBackSearch sets whether Run also walks backward from the start state.
// Default: true
func WithBackSearch(enabled bool) RunOption {
	return func(o *runOptions) { o.backSearch = enabled }
}

// WithTokenMapLookup sets whether Run may fall back to the token map when
// no window of the input is a known state. Default: true
func WithTokenMapLookup(enabled bool) RunOption {
	return func(o *runOptions) { o.useTokenMap = enabled }
}

// WithRunMissingTokens sets whether Run generates from the initial state
// when non-empty input cannot be matched at all. When false, such input
// produces an empty Result instead of an off-topic one. Default: true
func WithRunMissingTokens(enabled bool) RunOption {
	return func(o *runOptions) { o.runMissingTokens = enabled }
}

// Result is the output of Run: the tokens reached walking backward (in
// reading order), the start state without sentinels, and the tokens reached
// walking forward. Sentinels never appear in a Result.
type Result struct {
	Back    []Token
	Root    []Token
	Forward []Token
}

// Tuple returns the result as [back, root, forward].
func (r Result) Tuple() [3][]Token {
	return [3][]Token{r.Back, r.Root, r.Forward}
}

// All returns back, root and forward joined in reading order.
func (r Result) All() []Token {
	out := make([]Token, 0, len(r.Back)+len(r.Root)+len(r.Forward))
	out = append(out, r.Back...)
	out = append(out, r.Root...)
	return append(out, r.Forward...)
}

// Empty reports whether all three parts are empty.
func (r Result) Empty() bool {
	return len(r.Back) == 0 && len(r.Root) == 0 && len(r.Forward) == 0
}

// MarshalJSON encodes the result as a three element array.
func (r Result) MarshalJSON() ([]byte, error) {
	parts := r.Tuple()
	for i := range parts {
		if parts[i] == nil {
			parts[i] = []Token{}
		}
	}
	return json.Marshal(parts)
}

// Run generates a reply around tokens. The start state is resolved by
// ResolveStart; the chain is then walked forward from it and, with back
// search, backward too.
func (c *Chain) Run(tokens []Token, opts ...RunOption) Result {
	options := &runOptions{
		backSearch:       true,
		useTokenMap:      true,
		runMissingTokens: true,
	}
	for _, opt := range opts {
		opt(options)
	}

	start, found := c.ResolveStart(tokens, options.useTokenMap)
	if !found && len(tokens) > 0 && !options.runMissingTokens {
		c.log().Debug("Run refused, input not found in chain",
			slog.Int("input_length", len(tokens)),
		)
		return Result{Back: []Token{}, Root: []Token{}, Forward: []Token{}}
	}

	forward := c.Collect(start, Forward)
	back := []Token{}
	if options.backSearch {
		back = c.Collect(start, Backward)
		slices.Reverse(back)
	}
	if forward == nil {
		forward = []Token{}
	}

	root := []Token{}
	if len(back) > 0 || len(forward) > 0 {
		root = StripSentinels(start)
	}

	c.log().Debug("Run completed",
		slog.Int("back_steps", len(back)),
		slog.Int("root_length", len(root)),
		slog.Int("forward_steps", len(forward)),
	)
	return Result{Back: back, Root: root, Forward: forward}
}

// ResolveStart finds the state Run starts from. In order of preference:
//
//  1. a random window of initial ⧺ tokens ⧺ [End] that is a known state,
//     excluding the leading window which is the initial state itself;
//  2. with useTokenMap on a chain of order > 0 that has a token map, a
//     random state containing a random input token known to the map;
//  3. the initial state.
//
// The boolean is false when resolution fell back to the initial state.
func (c *Chain) ResolveStart(tokens []Token, useTokenMap bool) ([]Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size := c.order + 1
	padded := make([]Token, 0, size+len(tokens)+1)
	padded = append(padded, c.initial...)
	padded = append(padded, tokens...)
	padded = append(padded, End)

	var windows [][]Token
	for i := 1; i+size <= len(padded); i++ {
		window := padded[i : i+size]
		if c.space.Has(window) {
			windows = append(windows, window)
		}
	}
	if window, err := RandomElement(c.rng, windows); err == nil {
		c.log().Debug("Start state resolved from input window",
			slog.Int("candidates", len(windows)),
		)
		return slices.Clone(window), true
	}

	if useTokenMap && c.order > 0 && c.tokenMap != nil && len(tokens) > 0 {
		var known []Token
		for _, t := range tokens {
			if c.tokenMap.Has(t) {
				known = append(known, t)
			}
		}
		if tok, err := RandomElement(c.rng, known); err == nil {
			states := c.tokenMap.Lookup(tok)
			if state, err := RandomElement(c.rng, states); err == nil {
				c.log().Debug("Start state resolved from token map",
					slog.String("token", tok.String()),
					slog.Int("candidates", len(states)),
				)
				return state, true
			}
		}
	}

	return slices.Clone(c.initial), false
}
