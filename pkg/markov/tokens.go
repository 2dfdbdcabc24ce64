package markov

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind distinguishes the sentinel tokens from ordinary value tokens.
type Kind uint8

const (
	// KindInvalid is the kind of the zero Token. It never appears in a chain.
	KindInvalid Kind = iota
	// KindValue marks a token carrying a user value.
	KindValue
	// KindBegin marks the Begin sentinel.
	KindBegin
	// KindEnd marks the End sentinel.
	KindEnd
)

var (
	// Begin is the sentinel that pads the start of every run.
	Begin = Token{kind: KindBegin}
	// End is the sentinel that follows the last token of every run.
	End = Token{kind: KindEnd}
)

// ErrInvalidToken is returned when a zero Token is used where a value or
// sentinel is required.
var ErrInvalidToken = errors.New("markov: invalid token")

// Token is a single unit of a run. A value token holds the canonical JSON
// text of its value, so any two structurally equal values produce equal
// tokens and a Token can be used directly as a map key. Strings, numbers,
// booleans, null, arrays and objects are all valid values; the string "1"
// and the number 1 are distinct tokens.
type Token struct {
	kind Kind
	raw  string
}

// TokenOf converts an arbitrary JSON-serializable value into a Token.
// Passing a Token returns it unchanged.
func TokenOf(v any) (Token, error) {
	switch val := v.(type) {
	case Token:
		return val, nil
	case string:
		return StringToken(val), nil
	case bool:
		return Token{kind: KindValue, raw: strconv.FormatBool(val)}, nil
	case int:
		return Token{kind: KindValue, raw: strconv.Itoa(val)}, nil
	case int64:
		return Token{kind: KindValue, raw: strconv.FormatInt(val, 10)}, nil
	case uint:
		return Token{kind: KindValue, raw: strconv.FormatUint(uint64(val), 10)}, nil
	case uint32:
		return Token{kind: KindValue, raw: strconv.FormatUint(uint64(val), 10)}, nil
	case uint64:
		return Token{kind: KindValue, raw: strconv.FormatUint(val, 10)}, nil
	case nil:
		return Token{kind: KindValue, raw: "null"}, nil
	}
	raw, err := canonicalJSON(v)
	if err != nil {
		return Token{}, fmt.Errorf("markov: cannot canonicalize token %v: %w", v, err)
	}
	return Token{kind: KindValue, raw: raw}, nil
}

// MustToken is like TokenOf but panics if the value cannot be encoded.
func MustToken(v any) Token {
	t, err := TokenOf(v)
	if err != nil {
		panic(err)
	}
	return t
}

// StringToken returns the token for a plain string value.
func StringToken(s string) Token {
	raw, _ := marshalNoEscape(s) // strings always encode
	return Token{kind: KindValue, raw: string(raw)}
}

// Strings converts a list of strings into tokens.
func Strings(ss ...string) []Token {
	out := make([]Token, len(ss))
	for i, s := range ss {
		out[i] = StringToken(s)
	}
	return out
}

// Tokens converts a list of arbitrary values into tokens.
func Tokens(vs ...any) ([]Token, error) {
	out := make([]Token, len(vs))
	for i, v := range vs {
		t, err := TokenOf(v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// tokenFromRaw builds a value token from JSON text, canonicalizing it.
func tokenFromRaw(raw []byte) (Token, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return Token{}, err
	}
	canon, err := canonicalJSON(v)
	if err != nil {
		return Token{}, err
	}
	return Token{kind: KindValue, raw: canon}, nil
}

// Kind reports whether t is a value, Begin or End.
func (t Token) Kind() Kind { return t.kind }

// IsSentinel reports whether t is Begin or End.
func (t Token) IsSentinel() bool { return t.kind == KindBegin || t.kind == KindEnd }

// IsComposite reports whether t holds an array or an object.
func (t Token) IsComposite() bool {
	return t.kind == KindValue && len(t.raw) > 0 && (t.raw[0] == '{' || t.raw[0] == '[')
}

// Raw returns the canonical JSON text of a value token, or nil for sentinels.
func (t Token) Raw() json.RawMessage {
	if t.kind != KindValue {
		return nil
	}
	return json.RawMessage(t.raw)
}

// Value decodes the token back into a Go value. Numbers are returned as
// json.Number holding the canonical text. Integers keep every digit; other
// numbers are canonicalized through float64. Sentinels decode to nil.
func (t Token) Value() any {
	if t.kind != KindValue {
		return nil
	}
	v, _ := decodeJSON([]byte(t.raw)) // raw is always valid canonical JSON
	return v
}

// Text returns the string held by a string token.
func (t Token) Text() (string, bool) {
	if t.kind != KindValue || len(t.raw) == 0 || t.raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal([]byte(t.raw), &s); err != nil {
		return "", false
	}
	return s, true
}

// String renders the token for logs and debugging.
func (t Token) String() string {
	switch t.kind {
	case KindBegin:
		return "<BEGIN>"
	case KindEnd:
		return "<END>"
	case KindValue:
		if s, ok := t.Text(); ok {
			return s
		}
		return t.raw
	default:
		return "<INVALID>"
	}
}

// MarshalJSON encodes the token in the serialization wire form, see
// EncodeToken.
func (t Token) MarshalJSON() ([]byte, error) {
	if t.kind == KindInvalid {
		return nil, ErrInvalidToken
	}
	return EncodeToken(t), nil
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (t *Token) UnmarshalJSON(data []byte) error {
	tok, err := DecodeToken(data)
	if err != nil {
		return err
	}
	*t = tok
	return nil
}

// compare orders tokens by kind and then by canonical text.
func (t Token) compare(o Token) int {
	if t.kind != o.kind {
		if t.kind < o.kind {
			return -1
		}
		return 1
	}
	switch {
	case t.raw < o.raw:
		return -1
	case t.raw > o.raw:
		return 1
	}
	return 0
}

// StripSentinels returns the value tokens of state in order.
func StripSentinels(state []Token) []Token {
	out := make([]Token, 0, len(state))
	for _, t := range state {
		if !t.IsSentinel() {
			out = append(out, t)
		}
	}
	return out
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// canonicalJSON renders v with sorted object keys and normalized numbers.
// Round-tripping through a generic value makes structs, maps and decoded
// JSON of the same shape collapse to one text.
func canonicalJSON(v any) (string, error) {
	raw, err := marshalNoEscape(v)
	if err != nil {
		return "", err
	}
	generic, err := decodeJSON(raw)
	if err != nil {
		return "", err
	}
	out, err := marshalNoEscape(normalizeNumbers(generic))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		// Integers beyond int64 keep their literal digits.
		if !strings.ContainsAny(string(val), ".eE") {
			return val
		}
		if f, err := val.Float64(); err == nil {
			if f >= -1<<63 && f < 1<<63 && f == math.Trunc(f) {
				return int64(f)
			}
			return f
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	}
	return v
}
