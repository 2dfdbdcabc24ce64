package markov

import (
	"errors"
	"slices"
	"strings"
)

// ErrInvalidCount is returned when a transition weight is not a positive integer.
var ErrInvalidCount = errors.New("markov: transition count must be positive")

// stateKey is the structural identity of a state. Value tokens hold JSON
// text, which never contains a raw NUL byte, so joining on NUL is unambiguous.
type stateKey string

func keyOf(state []Token) stateKey {
	var b strings.Builder
	for i, t := range state {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteByte('0' + byte(t.kind))
		b.WriteString(t.raw)
	}
	return stateKey(b.String())
}

// Transitions is a weighted table of neighbouring tokens for one state.
// Tokens keep the order in which they were first observed so that sampling
// with a seeded Source is reproducible.
type Transitions struct {
	tokens []Token
	counts []int
	index  map[Token]int
}

func newTransitions() *Transitions {
	return &Transitions{index: make(map[Token]int)}
}

func (t *Transitions) add(tok Token, n int) {
	if i, ok := t.index[tok]; ok {
		t.counts[i] += n
		return
	}
	t.index[tok] = len(t.tokens)
	t.tokens = append(t.tokens, tok)
	t.counts = append(t.counts, n)
}

// Len returns the number of distinct tokens in the table.
func (t *Transitions) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tokens)
}

// Tokens returns the candidate tokens in first-seen order.
func (t *Transitions) Tokens() []Token {
	if t == nil {
		return nil
	}
	return slices.Clone(t.tokens)
}

// Counts returns the weights matching Tokens.
func (t *Transitions) Counts() []int {
	if t == nil {
		return nil
	}
	return slices.Clone(t.counts)
}

// Count returns the weight of tok, or 0 if it was never observed.
func (t *Transitions) Count(tok Token) int {
	if t == nil {
		return 0
	}
	if i, ok := t.index[tok]; ok {
		return t.counts[i]
	}
	return 0
}

// Total returns the sum of all weights.
func (t *Transitions) Total() int {
	if t == nil {
		return 0
	}
	var total int
	for _, c := range t.counts {
		total += c
	}
	return total
}

// Map returns the table as a plain map.
func (t *Transitions) Map() map[Token]int {
	m := make(map[Token]int, t.Len())
	if t == nil {
		return m
	}
	for i, tok := range t.tokens {
		m[tok] = t.counts[i]
	}
	return m
}

// Equal reports whether both tables hold the same weights, ignoring order.
func (t *Transitions) Equal(o *Transitions) bool {
	if t.Len() != o.Len() {
		return false
	}
	if t == nil {
		return true
	}
	for i, tok := range t.tokens {
		if o.Count(tok) != t.counts[i] {
			return false
		}
	}
	return true
}

// sorted returns the pairs ordered by token, for deterministic export.
func (t *Transitions) sorted() []Transition {
	out := make([]Transition, 0, t.Len())
	if t == nil {
		return out
	}
	for i, tok := range t.tokens {
		out = append(out, Transition{Token: tok, Count: t.counts[i]})
	}
	slices.SortFunc(out, func(a, b Transition) int { return a.Token.compare(b.Token) })
	return out
}

type stateEntry struct {
	state []Token
	next  *Transitions
	prev  *Transitions
}

// StateSpace maps every observed state to its successor and predecessor
// tables. A state absent from the space has never been observed.
type StateSpace struct {
	entries map[stateKey]*stateEntry
}

// NewStateSpace returns an empty state space.
func NewStateSpace() *StateSpace {
	return &StateSpace{entries: make(map[stateKey]*stateEntry)}
}

// Len returns the number of states.
func (s *StateSpace) Len() int { return len(s.entries) }

// Has reports whether state has been observed.
func (s *StateSpace) Has(state []Token) bool {
	_, ok := s.entries[keyOf(state)]
	return ok
}

// Lookup returns the successor and predecessor tables of state.
func (s *StateSpace) Lookup(state []Token) (next, prev *Transitions, ok bool) {
	e, ok := s.entries[keyOf(state)]
	if !ok {
		return nil, nil, false
	}
	return e.next, e.prev, true
}

// Table returns the table of state used when stepping in dir.
func (s *StateSpace) Table(state []Token, dir Direction) *Transitions {
	e, ok := s.entries[keyOf(state)]
	if !ok {
		return nil
	}
	if dir == Backward {
		return e.prev
	}
	return e.next
}

// States returns copies of all states in a deterministic order.
func (s *StateSpace) States() [][]Token {
	keys := s.sortedKeys()
	out := make([][]Token, len(keys))
	for i, k := range keys {
		out[i] = slices.Clone(s.entries[k].state)
	}
	return out
}

// Add increments the weight of tok in the dir table of state by count,
// creating the state if needed.
func (s *StateSpace) Add(state []Token, dir Direction, tok Token, count int) error {
	if count <= 0 {
		return ErrInvalidCount
	}
	if tok.kind == KindInvalid {
		return ErrInvalidToken
	}
	for _, t := range state {
		if t.kind == KindInvalid {
			return ErrInvalidToken
		}
	}
	e, _ := s.entry(state)
	if dir == Backward {
		e.prev.add(tok, count)
	} else {
		e.next.add(tok, count)
	}
	return nil
}

// Equal reports whether both spaces hold the same states with equal tables.
func (s *StateSpace) Equal(o *StateSpace) bool {
	if s.Len() != o.Len() {
		return false
	}
	for k, e := range s.entries {
		oe, ok := o.entries[k]
		if !ok || !e.next.Equal(oe.next) || !e.prev.Equal(oe.prev) {
			return false
		}
	}
	return true
}

func (s *StateSpace) entry(state []Token) (*stateEntry, stateKey) {
	k := keyOf(state)
	e, ok := s.entries[k]
	if !ok {
		e = &stateEntry{
			state: slices.Clone(state),
			next:  newTransitions(),
			prev:  newTransitions(),
		}
		s.entries[k] = e
	}
	return e, k
}

func (s *StateSpace) sortedKeys() []stateKey {
	keys := make([]stateKey, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// TokenMap indexes every state by each token it contains. It is only
// built for chains with order > 0.
type TokenMap struct {
	sets map[Token]map[stateKey][]Token
}

func newTokenMap() *TokenMap {
	return &TokenMap{sets: make(map[Token]map[stateKey][]Token)}
}

func buildTokenMap(space *StateSpace) *TokenMap {
	m := newTokenMap()
	for k, e := range space.entries {
		m.register(e.state, k)
	}
	return m
}

func (m *TokenMap) register(state []Token, k stateKey) {
	for _, t := range state {
		set, ok := m.sets[t]
		if !ok {
			set = make(map[stateKey][]Token)
			m.sets[t] = set
		}
		if _, ok := set[k]; !ok {
			set[k] = state
		}
	}
}

// Len returns the number of distinct tokens indexed.
func (m *TokenMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sets)
}

// Has reports whether any state contains tok.
func (m *TokenMap) Has(tok Token) bool {
	if m == nil {
		return false
	}
	_, ok := m.sets[tok]
	return ok
}

// Lookup returns the states containing tok in a deterministic order.
func (m *TokenMap) Lookup(tok Token) [][]Token {
	if m == nil {
		return nil
	}
	set := m.sets[tok]
	keys := make([]stateKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([][]Token, len(keys))
	for i, k := range keys {
		out[i] = slices.Clone(set[k])
	}
	return out
}

// Equal reports whether both maps index the same states under the same tokens.
func (m *TokenMap) Equal(o *TokenMap) bool {
	if m.Len() != o.Len() {
		return false
	}
	if m == nil {
		return true
	}
	for tok, set := range m.sets {
		oset, ok := o.sets[tok]
		if !ok || len(oset) != len(set) {
			return false
		}
		for k := range set {
			if _, ok := oset[k]; !ok {
				return false
			}
		}
	}
	return true
}
