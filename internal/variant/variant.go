// Package variant implements the dynamic value universe of the
// runtime: a uniformly-tagged value with lifecycle management,
// containers with mutation listeners, canonical serialization and
// per-instance usage statistics.
package variant

import (
	"sync"
	"unicode/utf8"

	"velm/internal/atom"
	verr "velm/internal/errors"
)

// Kind tags the type of a Variant.
type Kind uint8

const (
	KindNull Kind = iota
	KindUndefined
	KindBoolean
	KindNumber
	KindLongInt
	KindULongInt
	KindLongDouble
	KindAtomString
	KindString
	KindByteSequence
	KindDynamic
	KindNative
	KindObject
	KindArray
	KindSet

	nrKinds
)

var kindNames = [nrKinds]string{
	"null", "undefined", "boolean", "number", "longint", "ulongint",
	"longdouble", "atomstring", "string", "bsequence", "dynamic",
	"native", "object", "array", "set",
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	if k < nrKinds {
		return kindNames[k]
	}
	return "unknown"
}

// GetterFn is the function identity stored by a Dynamic value.
type GetterFn func(root *Variant, args []*Variant) (*Variant, error)

// Dynamic holds the getter/setter pair of a dynamic value.
type Dynamic struct {
	Getter GetterFn
	Setter GetterFn
}

// NativeOps is the callback table of a Native value.
type NativeOps struct {
	// OnRelease is invoked when the wrapping variant is destroyed.
	OnRelease func(entity interface{})
	// OnObserve is consulted when an observer is attached to the
	// value; returning false rejects the observation.
	OnObserve func(entity interface{}, class, subType string) bool
}

// Native wraps an opaque entity.
type Native struct {
	Entity interface{}
	Ops    NativeOps
}

// Variant is a value of the tagged universe. Creation returns a value
// with reference count 1; Ref/Unref manage its lifetime. Container
// kinds own a reference to each child.
type Variant struct {
	kind Kind
	refc int32

	b     bool
	f     float64
	i     int64
	u     uint64
	atom  atom.Atom
	s     string
	bytes []byte
	dyn   *Dynamic
	nat   *Native
	obj   *object
	arr   *array
	set   *set

	listeners  []*Listener
	inDispatch bool
	version    uint64
}

// Kind returns the tag of v.
func (v *Variant) Kind() Kind { return v.kind }

// IsContainer reports whether v is an Object, Array or Set.
func (v *Variant) IsContainer() bool {
	return v.kind == KindObject || v.kind == KindArray || v.kind == KindSet
}

// RefCount returns the current reference count.
func (v *Variant) RefCount() int { return int(v.refc) }

// Ref increments the reference count and returns v.
func (v *Variant) Ref() *Variant {
	v.refc++
	return v
}

// Unref decrements the reference count and destroys the value when it
// reaches zero.
func (v *Variant) Unref() {
	if v == nil {
		return
	}
	v.refc--
	if v.refc > 0 {
		return
	}
	v.destroy()
}

func (v *Variant) destroy() {
	// Live listeners have their cookies released through the revoke
	// callbacks before the value goes away.
	ls := v.listeners
	v.listeners = nil
	for _, l := range ls {
		if l.onRevoke != nil {
			l.onRevoke(l)
		}
	}

	switch v.kind {
	case KindNative:
		if v.nat != nil && v.nat.Ops.OnRelease != nil {
			v.nat.Ops.OnRelease(v.nat.Entity)
		}
	case KindObject:
		for _, k := range v.obj.keys {
			v.obj.vals[k].Unref()
		}
		v.obj.keys = nil
		v.obj.vals = nil
	case KindArray:
		for _, e := range v.arr.elems {
			e.Unref()
		}
		v.arr.elems = nil
	case KindSet:
		for _, m := range v.set.members {
			m.Unref()
		}
		v.set.members = nil
		v.set.index = nil
	}
	statDestroyed(v.kind)
}

func newVariant(k Kind) *Variant {
	v := &Variant{kind: k, refc: 1}
	statCreated(k)
	return v
}

// MakeNull returns a fresh Null value.
func MakeNull() *Variant { return newVariant(KindNull) }

// MakeUndefined returns a fresh Undefined value.
func MakeUndefined() *Variant { return newVariant(KindUndefined) }

// MakeBoolean returns a Boolean value.
func MakeBoolean(b bool) *Variant {
	v := newVariant(KindBoolean)
	v.b = b
	return v
}

// MakeNumber returns a Number value.
func MakeNumber(f float64) *Variant {
	v := newVariant(KindNumber)
	v.f = f
	return v
}

// MakeLongInt returns a LongInt value.
func MakeLongInt(i int64) *Variant {
	v := newVariant(KindLongInt)
	v.i = i
	return v
}

// MakeULongInt returns a ULongInt value.
func MakeULongInt(u uint64) *Variant {
	v := newVariant(KindULongInt)
	v.u = u
	return v
}

// MakeLongDouble returns a LongDouble value.
func MakeLongDouble(f float64) *Variant {
	v := newVariant(KindLongDouble)
	v.f = f
	return v
}

// MakeString copies s into a String value. With checkEncoding set the
// bytes must form valid UTF-8; otherwise the call fails with
// BadEncoding.
func MakeString(s string, checkEncoding bool) (*Variant, error) {
	if checkEncoding && !utf8.ValidString(s) {
		return nil, verr.SetLast(verr.BadEncoding)
	}
	v := newVariant(KindString)
	v.s = s
	return v, nil
}

// MustString returns a String value for text known to be valid UTF-8.
func MustString(s string) *Variant {
	v := newVariant(KindString)
	v.s = s
	return v
}

// MakeAtomString interns s and returns an AtomString value. Go strings
// are immutable, so staticStorage only records the caller's intent.
func MakeAtomString(s string, staticStorage bool) *Variant {
	_ = staticStorage
	v := newVariant(KindAtomString)
	v.atom = atom.FromString(s)
	v.s = s
	return v
}

// MakeByteSequence copies b into a ByteSequence value.
func MakeByteSequence(b []byte) *Variant {
	v := newVariant(KindByteSequence)
	v.bytes = append([]byte(nil), b...)
	return v
}

// MakeDynamic stores a getter/setter pair. At least one of the two
// must be non-nil.
func MakeDynamic(getter, setter GetterFn) (*Variant, error) {
	if getter == nil && setter == nil {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	v := newVariant(KindDynamic)
	v.dyn = &Dynamic{Getter: getter, Setter: setter}
	return v, nil
}

// MakeNative wraps entity with its callback table.
func MakeNative(entity interface{}, ops NativeOps) (*Variant, error) {
	if entity == nil {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	v := newVariant(KindNative)
	v.nat = &Native{Entity: entity, Ops: ops}
	return v, nil
}

// Boolean returns the payload of a Boolean value.
func (v *Variant) Boolean() bool { return v.b }

// Number returns the payload of a Number or LongDouble value.
func (v *Variant) Number() float64 { return v.f }

// LongInt returns the payload of a LongInt value.
func (v *Variant) LongInt() int64 { return v.i }

// ULongInt returns the payload of a ULongInt value.
func (v *Variant) ULongInt() uint64 { return v.u }

// IsString reports whether v carries text (String or AtomString).
func (v *Variant) IsString() bool {
	return v.kind == KindString || v.kind == KindAtomString
}

// StringConst returns the text of a String or AtomString value, or ""
// for other kinds.
func (v *Variant) StringConst() string {
	if v.IsString() {
		return v.s
	}
	return ""
}

// Atom returns the interned identity of an AtomString value.
func (v *Variant) Atom() atom.Atom { return v.atom }

// Bytes returns the payload of a ByteSequence value.
func (v *Variant) Bytes() []byte { return v.bytes }

// DynamicOps returns the getter/setter pair of a Dynamic value.
func (v *Variant) DynamicOps() *Dynamic { return v.dyn }

// NativeEntity returns the entity of a Native value.
func (v *Variant) NativeEntity() interface{} {
	if v.nat == nil {
		return nil
	}
	return v.nat.Entity
}

// NativeOpsOf returns the callback table of a Native value.
func (v *Variant) NativeOpsOf() NativeOps {
	if v.nat == nil {
		return NativeOps{}
	}
	return v.nat.Ops
}

// Stat reports per-kind value counts for the attached instance.
type Stat struct {
	NrValues [int(nrKinds)]int
	NrTotal  int
}

var (
	statMu sync.Mutex
	stat   Stat
)

func statCreated(k Kind) {
	statMu.Lock()
	stat.NrValues[k]++
	stat.NrTotal++
	statMu.Unlock()
}

func statDestroyed(k Kind) {
	statMu.Lock()
	stat.NrValues[k]--
	stat.NrTotal--
	statMu.Unlock()
}

// UsageStat returns a snapshot of the per-kind value counts.
func UsageStat() Stat {
	statMu.Lock()
	defer statMu.Unlock()
	return stat
}

// ResetStat clears the counters. The attaching instance calls this at
// init.
func ResetStat() {
	statMu.Lock()
	stat = Stat{}
	statMu.Unlock()
}
