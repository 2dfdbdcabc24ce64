package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// DefaultOrder is the order used when no WithOrder or WithStateSize option is given.
const DefaultOrder = 1

// ErrNegativeOrder is returned when a chain is configured with a negative
// order or a state size below one.
var ErrNegativeOrder = errors.New("markov: order must be non-negative")

// chainOptions Is used by the constructors to configure default options.
type chainOptions struct {
	order    int
	tokenMap bool
	rng      Source
	maxSteps int
	logger   *slog.Logger
	err      error
}

// Option is a function that configures a Chain. It's used as a variadic
// argument in New, FromStateSpace, Import and ReadJSON.
type Option func(*chainOptions)

// WithOrder sets the memory depth of the chain. A chain of order k uses
// states of k+1 tokens.
func WithOrder(order int) Option {
	return func(o *chainOptions) {
		if order < 0 {
			o.err = fmt.Errorf("%w: got order %d", ErrNegativeOrder, order)
			return
		}
		o.order = order
	}
}

// WithStateSize is an alternative to WithOrder that sets the state length
// directly. WithStateSize(n) is the same as WithOrder(n-1).
func WithStateSize(size int) Option {
	return func(o *chainOptions) {
		if size < 1 {
			o.err = fmt.Errorf("%w: got state size %d", ErrNegativeOrder, size)
			return
		}
		o.order = size - 1
	}
}

// WithTokenMap enables the token map used by Run to stay on topic when no
// exact state matches the input. It has no effect on order 0 chains.
func WithTokenMap(enabled bool) Option {
	return func(o *chainOptions) { o.tokenMap = enabled }
}

// WithRand sets the random source used for sampling. A *rand.Rand from
// math/rand/v2 is not safe for concurrent use, so a chain built with one
// must not be walked from several goroutines at once.
func WithRand(src Source) Option {
	return func(o *chainOptions) {
		if src != nil {
			o.rng = src
		}
	}
}

// WithMaxSteps bounds every walk to at most n tokens. A value of 0 leaves
// walks unbounded, which can loop forever on a cyclic chain.
func WithMaxSteps(n int) Option {
	return func(o *chainOptions) {
		if n >= 0 {
			o.maxSteps = n
		}
	}
}

// WithLogger sets the logger of the chain, see Chain.SetLogger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *chainOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) (*chainOptions, error) {
	options := &chainOptions{
		order:  DefaultOrder,
		rng:    globalSource{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.err != nil {
		return nil, options.err
	}
	return options, nil
}

// Chain is a time-homogeneous Markov chain over fixed-length token states.
// It can be walked forward and backward from any observed state.
//
// Seeding takes a write lock and every step takes a read lock, so a chain
// may be walked by many goroutines while another seeds it.
type Chain struct {
	mu       sync.RWMutex
	order    int
	initial  []Token
	space    *StateSpace
	tokenMap *TokenMap
	rng      Source
	maxSteps int
	logger   atomic.Pointer[slog.Logger]
}

// New builds a chain from a corpus of runs, seeding them in order.
func New(corpus [][]Token, opts ...Option) (*Chain, error) {
	options, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	c := newChain(options, NewStateSpace())
	if options.tokenMap && c.order > 0 {
		c.tokenMap = newTokenMap()
	}
	for i, run := range corpus {
		if err := c.Seed(run); err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
	}
	c.log().Info("Chain built",
		slog.Int("order", c.order),
		slog.Int("runs_seeded", len(corpus)),
		slog.Int("states", c.space.Len()),
	)
	return c, nil
}

// FromStateSpace wraps an existing state space in a chain. The order is
// taken from the length of its states; an empty space uses the option order.
// The space is owned by the chain afterwards.
func FromStateSpace(space *StateSpace, opts ...Option) (*Chain, error) {
	options, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if space == nil {
		space = NewStateSpace()
	}
	keys := space.sortedKeys()
	if len(keys) > 0 {
		options.order = len(space.entries[keys[0]].state) - 1
		if options.order < 0 {
			return nil, fmt.Errorf("%w: state space holds empty states", ErrNegativeOrder)
		}
		for _, k := range keys[1:] {
			state := space.entries[k].state
			if len(state) != options.order+1 {
				return nil, &ConsistencyError{Expected: options.order + 1, Actual: len(state), State: slices.Clone(state)}
			}
		}
	}
	c := newChain(options, space)
	if options.tokenMap && c.order > 0 {
		c.tokenMap = buildTokenMap(space)
	}
	return c, nil
}

func newChain(options *chainOptions, space *StateSpace) *Chain {
	initial := make([]Token, options.order+1)
	for i := range initial {
		initial[i] = Begin
	}
	c := &Chain{
		order:    options.order,
		initial:  initial,
		space:    space,
		rng:      options.rng,
		maxSteps: options.maxSteps,
	}
	c.logger.Store(options.logger)
	return c
}

// Order returns the memory depth of the chain.
func (c *Chain) Order() int { return c.order }

// StateSize returns the number of tokens in each state.
func (c *Chain) StateSize() int { return c.order + 1 }

// InitialState returns the state of order+1 Begin tokens.
func (c *Chain) InitialState() []Token { return slices.Clone(c.initial) }

// StateSpace returns the underlying state space. Callers must not seed the
// chain while reading it.
func (c *Chain) StateSpace() *StateSpace { return c.space }

// TokenMap returns the token map, or nil if it is disabled.
func (c *Chain) TokenMap() *TokenMap { return c.tokenMap }

// RebuildTokenMap derives a fresh token map from the state space. It costs
// one pass over every state and enables the map on chains restored without it.
func (c *Chain) RebuildTokenMap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.order == 0 {
		c.tokenMap = nil
		return
	}
	c.tokenMap = buildTokenMap(c.space)
}

// SetLogger sets the logger for the Chain. By default, all logs are discarded.
// It is safe to call while the chain is in use.
func (c *Chain) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger.Store(logger)
	}
}

func (c *Chain) log() *slog.Logger { return c.logger.Load() }

// ConsistencyError reports a state whose length differs from the chain's
// state size.
type ConsistencyError struct {
	Expected int
	Actual   int
	State    []Token
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("markov: inconsistent state length: expected %d, got %d in state %v", e.Expected, e.Actual, e.State)
}
