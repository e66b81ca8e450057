package variant

import (
	"encoding/binary"
	"math"
	"reflect"
	"strconv"
	"strings"

	verr "velm/internal/errors"
)

// numericTolerance bounds the numeric-equality comparison and the
// truthiness cutoff for numbers.
const numericTolerance = 1e-10

// parseDecimalPrefix parses the longest leading decimal number of s,
// returning 0 when none exists.
func parseDecimalPrefix(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	seenDigit := false
	seenDot := false
	seenExp := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
			end = i + 1
		case (c == '+' || c == '-') && (i == 0 || (s[i-1] == 'e' || s[i-1] == 'E')):
			// sign of mantissa or exponent
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			goto done
		}
	}
done:
	if !seenDigit {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}

// bytesToInt64 reinterprets the trailing 8 bytes of b as a signed
// 64-bit big-endian integer, left-zero-padded when shorter.
func bytesToInt64(b []byte) int64 {
	var buf [8]byte
	if len(b) >= 8 {
		copy(buf[:], b[len(b)-8:])
	} else {
		copy(buf[8-len(b):], b)
	}
	return int64(binary.BigEndian.Uint64(buf[:]))
}

func fnPointerBits(fn interface{}) uint64 {
	if fn == nil {
		return 0
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return 0
	}
	return uint64(rv.Pointer())
}

func entityPointerBits(entity interface{}) uint64 {
	if entity == nil {
		return 0
	}
	rv := reflect.ValueOf(entity)
	switch rv.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Func,
		reflect.Map, reflect.Slice, reflect.Chan:
		return uint64(rv.Pointer())
	}
	return 1
}

// CastToNumber coerces any kind to a float64 following the coercion
// table of the value algebra.
func (v *Variant) CastToNumber() float64 {
	switch v.kind {
	case KindNull, KindUndefined:
		return 0
	case KindBoolean:
		if v.b {
			return 1
		}
		return 0
	case KindNumber, KindLongDouble:
		return v.f
	case KindLongInt:
		return float64(v.i)
	case KindULongInt:
		return float64(v.u)
	case KindAtomString, KindString:
		return parseDecimalPrefix(v.s)
	case KindByteSequence:
		return float64(bytesToInt64(v.bytes))
	case KindDynamic:
		var g, s interface{}
		if v.dyn.Getter != nil {
			g = v.dyn.Getter
		}
		if v.dyn.Setter != nil {
			s = v.dyn.Setter
		}
		return float64(fnPointerBits(g) + fnPointerBits(s))
	case KindNative:
		return float64(entityPointerBits(v.nat.Entity))
	case KindObject:
		sum := 0.0
		for _, k := range v.obj.keys {
			sum += v.obj.vals[k].CastToNumber()
		}
		return sum
	case KindArray:
		sum := 0.0
		for _, e := range v.arr.elems {
			sum += e.CastToNumber()
		}
		return sum
	case KindSet:
		sum := 0.0
		for _, m := range v.set.members {
			sum += m.CastToNumber()
		}
		return sum
	}
	return 0
}

// CastToLongDouble coerces v following the same table as
// CastToNumber.
func (v *Variant) CastToLongDouble() float64 { return v.CastToNumber() }

// CastToLongInt coerces v to a signed 64-bit integer. Without force,
// only numeric kinds convert; with it the full coercion applies.
func (v *Variant) CastToLongInt(force bool) (int64, bool) {
	switch v.kind {
	case KindLongInt:
		return v.i, true
	case KindULongInt:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	case KindNumber, KindLongDouble:
		return int64(v.f), true
	}
	if !force {
		verr.SetLast(verr.InvalidValue)
		return 0, false
	}
	return int64(v.CastToNumber()), true
}

// CastToULongInt coerces v to an unsigned 64-bit integer. Without
// force, only non-negative numeric kinds convert.
func (v *Variant) CastToULongInt(force bool) (uint64, bool) {
	switch v.kind {
	case KindULongInt:
		return v.u, true
	case KindLongInt:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	case KindNumber, KindLongDouble:
		if v.f < 0 {
			return 0, false
		}
		return uint64(v.f), true
	}
	if !force {
		verr.SetLast(verr.InvalidValue)
		return 0, false
	}
	f := v.CastToNumber()
	if f < 0 {
		return 0, false
	}
	return uint64(f), true
}

// CastToBoolean reports the truthiness of v. A non-empty string is
// true; the legacy byte-length rule treating one-byte strings as false
// is deliberately not reproduced.
func (v *Variant) CastToBoolean() bool {
	switch v.kind {
	case KindNull, KindUndefined:
		return false
	case KindBoolean:
		return v.b
	case KindNumber, KindLongDouble:
		return math.Abs(v.f) > numericTolerance
	case KindLongInt:
		return v.i != 0
	case KindULongInt:
		return v.u != 0
	case KindAtomString, KindString:
		return len(v.s) > 0
	case KindByteSequence:
		return len(v.bytes) > 0
	case KindDynamic:
		return v.dyn.Getter != nil || v.dyn.Setter != nil
	case KindNative:
		return v.nat.Entity != nil
	case KindObject:
		return len(v.obj.keys) > 0
	case KindArray:
		return len(v.arr.elems) > 0
	case KindSet:
		return len(v.set.members) > 0
	}
	return false
}

// EqualNumeric reports whether a and b coerce to numbers within the
// tolerance of the value algebra.
func EqualNumeric(a, b *Variant) bool {
	return math.Abs(a.CastToNumber()-b.CastToNumber()) < numericTolerance
}

// EqualBySerialization reports structural equality through the
// canonical textual form.
func EqualBySerialization(a, b *Variant) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return canonicalForm(a) == canonicalForm(b)
}
