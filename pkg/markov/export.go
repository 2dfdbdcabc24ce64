package markov

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// Reserved string forms used by the serialization format. Any string token
// that itself starts with ReservedPrefix is written with EscapePrefix in
// front, so no legitimate string can be mistaken for a marker.
const (
	BeginMarker    = "___BEGIN__"
	EndMarker      = "___END__"
	JSONPrefix     = "___JSON__:"
	EscapePrefix   = "___ESC__:"
	ReservedPrefix = "___"
)

// EncodeToken returns the wire form of a token: sentinels become their
// markers, arrays and objects become JSONPrefix followed by their canonical
// JSON, reserved-looking strings are escaped, and every other value is
// written as plain JSON. It returns nil for the zero Token.
func EncodeToken(t Token) json.RawMessage {
	switch t.kind {
	case KindBegin:
		return quote(BeginMarker)
	case KindEnd:
		return quote(EndMarker)
	case KindValue:
	default:
		return nil
	}
	if t.IsComposite() {
		return quote(JSONPrefix + t.raw)
	}
	if s, ok := t.Text(); ok && strings.HasPrefix(s, ReservedPrefix) {
		return quote(EscapePrefix + s)
	}
	return json.RawMessage(t.raw)
}

// DecodeToken reverses EncodeToken.
func DecodeToken(raw json.RawMessage) (Token, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Token{}, fmt.Errorf("%w: empty input", ErrInvalidToken)
	}
	if raw[0] != '"' {
		tok, err := tokenFromRaw(raw)
		if err != nil {
			return Token{}, fmt.Errorf("markov: cannot decode token %s: %w", raw, err)
		}
		return tok, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Token{}, fmt.Errorf("markov: cannot decode token %s: %w", raw, err)
	}
	switch {
	case s == BeginMarker:
		return Begin, nil
	case s == EndMarker:
		return End, nil
	case strings.HasPrefix(s, JSONPrefix):
		tok, err := tokenFromRaw([]byte(s[len(JSONPrefix):]))
		if err != nil {
			return Token{}, fmt.Errorf("markov: cannot decode composite token %q: %w", s, err)
		}
		return tok, nil
	case strings.HasPrefix(s, EscapePrefix):
		return StringToken(s[len(EscapePrefix):]), nil
	}
	return StringToken(s), nil
}

func quote(s string) json.RawMessage {
	raw, _ := marshalNoEscape(s)
	return raw
}

// Transition is one weighted neighbour of a state.
type Transition struct {
	Token Token
	Count int
}

// MarshalJSON encodes the pair as [token, count].
func (t Transition) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{t.Token, t.Count})
}

// UnmarshalJSON decodes a [token, count] pair.
func (t *Transition) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("markov: transition must have 2 elements, got %d", len(pair))
	}
	tok, err := DecodeToken(pair[0])
	if err != nil {
		return err
	}
	var count int
	if err := json.Unmarshal(pair[1], &count); err != nil {
		return fmt.Errorf("markov: invalid count %s: %w", pair[1], err)
	}
	*t = Transition{Token: tok, Count: count}
	return nil
}

// Record is the serializable form of one state and its two tables.
// Its JSON form is [stateTokens, [nextPairs, prevPairs]].
type Record struct {
	State []Token
	Next  []Transition
	Prev  []Transition
}

// MarshalJSON encodes the record.
func (r Record) MarshalJSON() ([]byte, error) {
	state, next, prev := r.State, r.Next, r.Prev
	if state == nil {
		state = []Token{}
	}
	if next == nil {
		next = []Transition{}
	}
	if prev == nil {
		prev = []Transition{}
	}
	return json.Marshal([2]any{state, [2][]Transition{next, prev}})
}

// UnmarshalJSON decodes a record.
func (r *Record) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("markov: record must have 2 elements, got %d", len(parts))
	}
	var state []Token
	if err := json.Unmarshal(parts[0], &state); err != nil {
		return fmt.Errorf("markov: invalid record state: %w", err)
	}
	var tables [][]Transition
	if err := json.Unmarshal(parts[1], &tables); err != nil {
		return fmt.Errorf("markov: invalid record tables: %w", err)
	}
	if len(tables) != 2 {
		return fmt.Errorf("markov: record must have 2 tables, got %d", len(tables))
	}
	*r = Record{State: state, Next: tables[0], Prev: tables[1]}
	return nil
}

// Export returns one record per state. States and pairs are sorted so that
// equal chains export identically.
func (c *Chain) Export() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := c.space.sortedKeys()
	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		e := c.space.entries[k]
		records = append(records, Record{
			State: slices.Clone(e.state),
			Next:  e.next.sorted(),
			Prev:  e.prev.sorted(),
		})
	}
	return records
}

// MarshalJSON encodes the chain as its exported records.
func (c *Chain) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Export())
}

// WriteJSON serializes the chain and writes it to w.
func (c *Chain) WriteJSON(w io.Writer) error {
	records := c.Export()
	if err := json.NewEncoder(w).Encode(records); err != nil {
		return fmt.Errorf("could not encode chain: %w", err)
	}
	c.log().Info("Chain exported",
		slog.Int("order", c.order),
		slog.Int("states_exported", len(records)),
	)
	return nil
}

// Import rebuilds a chain from exported records. The order is inferred from
// the first record and every other record must have the same state length,
// otherwise a *ConsistencyError is returned. With no records the chain is
// empty and its order comes from opts.
func Import(records []Record, opts ...Option) (*Chain, error) {
	space := NewStateSpace()
	if len(records) > 0 {
		size := len(records[0].State)
		if size == 0 {
			return nil, fmt.Errorf("%w: first record has an empty state", ErrNegativeOrder)
		}
		for i, rec := range records {
			if len(rec.State) != size {
				return nil, &ConsistencyError{Expected: size, Actual: len(rec.State), State: slices.Clone(rec.State)}
			}
			for _, t := range rec.State {
				if t.kind == KindInvalid {
					return nil, fmt.Errorf("record %d: %w", i, ErrInvalidToken)
				}
			}
			space.entry(rec.State)
			for _, p := range rec.Next {
				if err := space.Add(rec.State, Forward, p.Token, p.Count); err != nil {
					return nil, fmt.Errorf("record %d next %v: %w", i, p.Token, err)
				}
			}
			for _, p := range rec.Prev {
				if err := space.Add(rec.State, Backward, p.Token, p.Count); err != nil {
					return nil, fmt.Errorf("record %d prev %v: %w", i, p.Token, err)
				}
			}
		}
	}

	c, err := FromStateSpace(space, opts...)
	if err != nil {
		return nil, err
	}
	c.log().Info("Chain imported",
		slog.Int("order", c.order),
		slog.Int("states_imported", space.Len()),
		slog.Bool("token_map", c.tokenMap != nil),
	)
	return c, nil
}

// ReadJSON decodes records written by WriteJSON and imports them.
func ReadJSON(r io.Reader, opts ...Option) (*Chain, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode json chain: %w", err)
	}
	return Import(records, opts...)
}
