package variant

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestRoundTrip exercises parse(serialize(v)) ≡ v for values without
// Dynamic/Native parts, comparing canonical forms.
func TestRoundTrip(t *testing.T) {
	n1 := MakeNumber(1)
	n2 := MakeNumber(2.5)
	li := MakeLongInt(-9)
	ul := MakeULongInt(9)
	ld := MakeLongDouble(3.25)
	s := MustString("text with \"quotes\" and \n newline")
	bs := MakeByteSequence([]byte{0x00, 0xff, 0x10})
	inner := MakeArray(n1, n2, li)
	obj := MakeObject("num", n2, "list", inner, "seq", bs, "s", s)
	root := MakeArray(MakeNull(), MakeUndefined(), MakeBoolean(true), obj, ul, ld)
	defer func() {
		for _, v := range []*Variant{n1, n2, li, ul, ld, s, bs, inner, obj, root} {
			v.Unref()
		}
	}()

	text := StringifyPlain(root)
	parsed, err := Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	defer parsed.Unref()

	if diff := cmp.Diff(text, StringifyPlain(parsed)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !EqualBySerialization(root, parsed) {
		t.Error("structural equality lost in round trip")
	}
}

func TestRoundTripLeavesRefsBalanced(t *testing.T) {
	ResetStat()
	v, err := Parse(`{"a":[1,2L,3UL,4.5FL],"b":"x","c":bx0aff}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v.Unref()
	if st := UsageStat(); st.NrTotal != 0 {
		t.Fatalf("leaked %d values", st.NrTotal)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"trailing", "null null"},
		{"bad keyword", "nil"},
		{"unterminated string", `"abc`},
		{"odd hex", "bx0a1"},
		{"bad escape", `"\q"`},
		{"unclosed array", "[1,2"},
		{"key without colon", `{"a" 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v, err := Parse(tt.src); err == nil {
				v.Unref()
				t.Errorf("Parse(%q) succeeded", tt.src)
			}
		})
	}
}

func TestParseSuffixes(t *testing.T) {
	v, err := Parse("[123L,456UL,1.5FL,7]")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer v.Unref()

	kinds := []Kind{KindLongInt, KindULongInt, KindLongDouble, KindNumber}
	for i, want := range kinds {
		e, err := v.ArrayGetAt(i)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if e.Kind() != want {
			t.Errorf("element %d kind = %v, want %v", i, e.Kind(), want)
		}
	}
}
