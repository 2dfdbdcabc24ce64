package markov

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestTokenStructuralEquality(t *testing.T) {
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	testCases := []struct {
		name  string
		a, b  any
		equal bool
	}{
		{name: "Same string", a: "fish", b: "fish", equal: true},
		{name: "Different strings", a: "fish", b: "Fish", equal: false},
		{name: "String and number", a: "1", b: 1, equal: false},
		{name: "Int and whole float", a: 1, b: 1.0, equal: true},
		{name: "Int and int64", a: 42, b: int64(42), equal: true},
		{name: "Bool and string", a: true, b: "true", equal: false},
		{name: "Map key order", a: map[string]any{"a": 1, "b": []int{1, 2}}, b: map[string]any{"b": []int{1, 2}, "a": 1}, equal: true},
		{name: "Struct and map", a: point{X: 1, Y: 2}, b: map[string]int{"y": 2, "x": 1}, equal: true},
		{name: "Array order matters", a: []int{1, 2}, b: []int{2, 1}, equal: false},
		{name: "Null", a: nil, b: nil, equal: true},
		{name: "Neighbouring uint64 above int64", a: uint64(1<<63 + 1), b: uint64(1 << 63), equal: false},
		{name: "Largest uint64 neighbours", a: uint64(math.MaxUint64), b: uint64(math.MaxUint64 - 1), equal: false},
		{name: "Uint64 and int64", a: uint64(math.MaxInt64), b: int64(math.MaxInt64), equal: true},
		{name: "Uint and int", a: uint(7), b: 7, equal: true},
		{name: "Uint64 and decoded number", a: uint64(1<<63 + 1), b: json.Number("9223372036854775809"), equal: true},
		{name: "Huge integers in arrays", a: []any{json.Number("100000000000000000001")}, b: []any{json.Number("100000000000000000000")}, equal: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := TokenOf(tc.a)
			if err != nil {
				t.Fatalf("TokenOf(%v) error = %v", tc.a, err)
			}
			b, err := TokenOf(tc.b)
			if err != nil {
				t.Fatalf("TokenOf(%v) error = %v", tc.b, err)
			}
			if (a == b) != tc.equal {
				t.Errorf("TokenOf(%v) == TokenOf(%v) is %v, want %v", tc.a, tc.b, a == b, tc.equal)
			}
		})
	}
}

func TestTokenSentinelsAreDisjoint(t *testing.T) {
	for _, s := range []string{"<BEGIN>", "<END>", BeginMarker, EndMarker, ""} {
		tok := StringToken(s)
		if tok == Begin || tok == End {
			t.Errorf("StringToken(%q) collides with a sentinel", s)
		}
		if tok.IsSentinel() {
			t.Errorf("StringToken(%q).IsSentinel() = true", s)
		}
	}
	if Begin == End {
		t.Error("Begin and End must differ")
	}
	if !Begin.IsSentinel() || !End.IsSentinel() {
		t.Error("Begin and End must report IsSentinel")
	}
}

func TestTokenAccessors(t *testing.T) {
	s := StringToken("fish")
	if text, ok := s.Text(); !ok || text != "fish" {
		t.Errorf("Text() = %q, %v, want %q, true", text, ok, "fish")
	}
	if s.String() != "fish" {
		t.Errorf("String() = %q, want %q", s.String(), "fish")
	}

	n := MustToken(3)
	if _, ok := n.Text(); ok {
		t.Error("Text() on a number token should report false")
	}
	if got := n.Value(); got != json.Number("3") {
		t.Errorf("Value() = %#v, want json.Number(\"3\")", got)
	}

	obj := MustToken(map[string]any{"name": "fish", "tags": []string{"red"}})
	if !obj.IsComposite() {
		t.Error("object token should be composite")
	}
	want := map[string]any{"name": "fish", "tags": []any{"red"}}
	if got := obj.Value(); !reflect.DeepEqual(got, want) {
		t.Errorf("Value() = %#v, want %#v", got, want)
	}
	if string(obj.Raw()) != `{"name":"fish","tags":["red"]}` {
		t.Errorf("Raw() = %s", obj.Raw())
	}

	if Begin.Value() != nil || Begin.Raw() != nil {
		t.Error("sentinels should have no value")
	}
}

func TestTokenOfUnsupported(t *testing.T) {
	if _, err := TokenOf(func() {}); err == nil {
		t.Error("expected an error for a function value")
	}
	if _, err := Tokens("a", make(chan int)); err == nil {
		t.Error("expected Tokens to fail on a channel value")
	}
}

func TestTokenWireEncoding(t *testing.T) {
	testCases := []struct {
		name  string
		token Token
		wire  string
	}{
		{name: "Begin", token: Begin, wire: `"___BEGIN__"`},
		{name: "End", token: End, wire: `"___END__"`},
		{name: "Plain string", token: StringToken("fish"), wire: `"fish"`},
		{name: "Number", token: MustToken(2.5), wire: `2.5`},
		{name: "Bool", token: MustToken(false), wire: `false`},
		{name: "Null", token: MustToken(nil), wire: `null`},
		{name: "Composite", token: MustToken([]any{"a", 1}), wire: `"___JSON__:[\"a\",1]"`},
		{name: "String equal to marker", token: StringToken(BeginMarker), wire: `"___ESC__:___BEGIN__"`},
		{name: "String with reserved prefix", token: StringToken("___JSON__:[1]"), wire: `"___ESC__:___JSON__:[1]"`},
		{name: "String that looks like an escape", token: StringToken("___ESC__:x"), wire: `"___ESC__:___ESC__:x"`},
		{name: "Integer above int64", token: MustToken(uint64(1<<63 + 1)), wire: `9223372036854775809`},
		{name: "Integer above uint64", token: MustToken(json.Number("18446744073709551617")), wire: `18446744073709551617`},
		{name: "Html characters", token: StringToken("<a&b>"), wire: `"<a&b>"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wire := EncodeToken(tc.token)
			if string(wire) != tc.wire {
				t.Errorf("EncodeToken() = %s, want %s", wire, tc.wire)
			}
			decoded, err := DecodeToken(wire)
			if err != nil {
				t.Fatalf("DecodeToken(%s) error = %v", wire, err)
			}
			if decoded != tc.token {
				t.Errorf("DecodeToken(%s) = %v, want %v", wire, decoded, tc.token)
			}
		})
	}
}

func TestTokenJSONRoundTrip(t *testing.T) {
	in := []Token{Begin, StringToken("a"), MustToken(map[string]int{"k": 1}), End}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var out []Token
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip got %v, want %v", out, in)
	}

	if _, err := json.Marshal(Token{}); err == nil {
		t.Error("expected an error when marshaling the zero Token")
	}
}

func TestStripSentinels(t *testing.T) {
	got := StripSentinels([]Token{Begin, Begin, StringToken("x"), End})
	if !reflect.DeepEqual(got, Strings("x")) {
		t.Errorf("StripSentinels() = %v, want [x]", got)
	}
}
