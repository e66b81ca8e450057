package variant

import (
	"io"
	"testing"

	"velm/internal/stream"
)

func serializeToString(t *testing.T, v *Variant, flags SerializeFlags) string {
	t.Helper()
	buf := stream.NewMemBuffer()
	n, expected, err := Serialize(v, buf, flags)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if n != expected {
		t.Fatalf("serialize: wrote %d, expected %d", n, expected)
	}
	return buf.String()
}

func TestSerializeNull(t *testing.T) {
	v := MakeNull()
	defer v.Unref()

	rws := stream.NewMemFixed(7)
	n, expected, err := Serialize(v, rws, SerializePlain)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if expected != 4 || n != 4 {
		t.Fatalf("got n=%d expected=%d, want 4/4", n, expected)
	}

	// The stream has 3 bytes left; a best-effort write stops short.
	n, expected, err = Serialize(v, rws, SerializeIgnoreErrors)
	if err != nil {
		t.Fatalf("serialize ignore-errors: %v", err)
	}
	if n != 3 || expected != 4 {
		t.Fatalf("got n=%d expected=%d, want 3/4", n, expected)
	}
	buf, l := rws.GetMemBuffer()
	if l != 7 || string(buf) != "nullnul" {
		t.Fatalf("buffer = %q", buf)
	}
}

func TestSerializeShortSinkFails(t *testing.T) {
	v := MakeUndefined()
	defer v.Unref()

	rws := stream.NewMemFixed(17)
	n, expected, err := Serialize(v, rws, SerializePlain)
	if err != nil || n != 9 || expected != 9 {
		t.Fatalf("got n=%d expected=%d err=%v", n, expected, err)
	}
	buf, _ := rws.GetMemBuffer()
	if string(buf) != "undefined" {
		t.Fatalf("buffer = %q", buf)
	}

	// 8 bytes left, PLAIN: the call reports the shortfall.
	n, expected, err = Serialize(v, rws, SerializePlain)
	if err == nil || n != -1 || expected != 9 {
		t.Fatalf("got n=%d expected=%d err=%v, want -1/9/error", n, expected, err)
	}
}

func TestSerializeNumbers(t *testing.T) {
	tests := []struct {
		name  string
		v     *Variant
		flags SerializeFlags
		want  string
	}{
		{"integral number", MakeNumber(123.0), SerializePlain, "123"},
		{"fractional nozero", MakeNumber(123.456), SerializeNoZero, "123.456"},
		{"longint", MakeLongInt(123456789), SerializePlain, "123456789L"},
		{"ulongint", MakeULongInt(123456789), SerializeNoZero, "123456789UL"},
		{"longdouble", MakeLongDouble(123456789.2345), SerializePlain, "123456789.2345FL"},
		{"boolean", MakeBoolean(true), SerializePlain, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tt.v.Unref()
			if got := serializeToString(t, tt.v, tt.flags); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeStrings(t *testing.T) {
	v := MustString("\r\n\b\f\t\"\x1c'")
	defer v.Unref()
	if got := serializeToString(t, v, SerializePlain); got != `"\r\n\b\f\t\"\u001c'"` {
		t.Errorf("escaped string = %q", got)
	}

	cn := MustString("这是一个很长的中文字符串")
	defer cn.Unref()
	if got := serializeToString(t, cn, SerializePlain); got != `"这是一个很长的中文字符串"` {
		t.Errorf("utf8 string = %q", got)
	}

	a := MakeAtomString("velm", true)
	defer a.Unref()
	if got := serializeToString(t, a, SerializePlain); got != `"velm"` {
		t.Errorf("atom string = %q", got)
	}
}

func TestSerializeByteSequence(t *testing.T) {
	v := MakeByteSequence([]byte{0x59, 0x1C, 0x88, 0xAF})
	defer v.Unref()

	tests := []struct {
		name  string
		flags SerializeFlags
		want  string
	}{
		{"hex", SerializeBSeqHex, "bx591c88af"},
		{"bin", SerializeBSeqBin, "bb01011001000111001000100010101111"},
		{"bin dot", SerializeBSeqBin | SerializeBSeqBinDot,
			"bb0101.1001.0001.1100.1000.1000.1010.1111"},
		{"base64", SerializeBSeqBase64, "b64WRyIrw=="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializeToString(t, v, tt.flags); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeDynamicAndNative(t *testing.T) {
	dyn, err := MakeDynamic(func(root *Variant, args []*Variant) (*Variant, error) {
		return MakeUndefined(), nil
	}, nil)
	if err != nil {
		t.Fatalf("make dynamic: %v", err)
	}
	defer dyn.Unref()
	if got := serializeToString(t, dyn, SerializePlain); got != "<dynamic>" {
		t.Errorf("dynamic = %q", got)
	}

	nat, err := MakeNative("entity", NativeOps{})
	if err != nil {
		t.Fatalf("make native: %v", err)
	}
	defer nat.Unref()
	if got := serializeToString(t, nat, SerializePlain); got != "<native>" {
		t.Errorf("native = %q", got)
	}
}

func TestSerializeArrayFlags(t *testing.T) {
	v1 := MakeNumber(123.0)
	v2 := MakeNumber(123.456)
	arr := MakeArray(v1, v2)
	defer func() {
		arr.Unref()
		v1.Unref()
		v2.Unref()
	}()

	tests := []struct {
		name  string
		flags SerializeFlags
		want  string
	}{
		{"plain", SerializePlain, "[123,123.456]"},
		{"spaced", SerializeSpaced, "[ 123, 123.456 ]"},
		{"nozero", SerializeNoZero, "[123,123.456]"},
		{"pretty", SerializePretty, "[\n  123,\n  123.456\n]"},
		{"pretty tab", SerializePretty | SerializePrettyTab, "[\n\t123,\n\t123.456\n]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializeToString(t, arr, tt.flags); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeObject(t *testing.T) {
	v1 := MakeNumber(123.0)
	v2 := MakeNumber(123.456)
	obj := MakeObject("v1", v1, "v2", v2)
	defer func() {
		obj.Unref()
		v1.Unref()
		v2.Unref()
	}()

	if got := serializeToString(t, obj, SerializePlain); got != `{"v1":123,"v2":123.456}` {
		t.Errorf("plain = %q", got)
	}
	if got := serializeToString(t, obj, SerializeNoZero); got != `{"v1":123,"v2":123.456}` {
		t.Errorf("nozero = %q", got)
	}
}

func TestSerializeSeekRewrites(t *testing.T) {
	v := MakeNumber(123.0)
	defer v.Unref()

	rws := stream.NewMemFixed(31)
	if _, _, err := Serialize(v, rws, SerializePlain); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := rws.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	w := MakeNumber(456.0)
	defer w.Unref()
	if _, _, err := Serialize(w, rws, SerializePlain); err != nil {
		t.Fatalf("serialize after seek: %v", err)
	}
	buf, _ := rws.GetMemBuffer()
	if string(buf) != "456" {
		t.Fatalf("buffer after rewrite = %q", buf)
	}
}
