package variant

import (
	verr "velm/internal/errors"
)

type array struct {
	elems []*Variant
}

// MakeArray returns an Array holding vals. The array takes its own
// reference on each element.
func MakeArray(vals ...*Variant) *Variant {
	v := newVariant(KindArray)
	v.arr = &array{}
	for _, e := range vals {
		v.arr.elems = append(v.arr.elems, e.Ref())
	}
	return v
}

func (v *Variant) arrayOf() (*array, error) {
	if v.kind != KindArray {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	return v.arr, nil
}

// ArraySize returns the number of elements.
func (v *Variant) ArraySize() (int, error) {
	a, err := v.arrayOf()
	if err != nil {
		return 0, err
	}
	return len(a.elems), nil
}

// ArrayGetAt returns the element at idx without transferring
// ownership.
func (v *Variant) ArrayGetAt(idx int) (*Variant, error) {
	a, err := v.arrayOf()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(a.elems) {
		return nil, verr.SetLast(verr.NotExists)
	}
	return a.elems[idx], nil
}

// ArrayAppend adds val at the tail.
func (v *Variant) ArrayAppend(val *Variant) error {
	a, err := v.arrayOf()
	if err != nil {
		return err
	}
	return v.ArrayInsertAt(len(a.elems), val)
}

// ArrayPrepend adds val at the head.
func (v *Variant) ArrayPrepend(val *Variant) error {
	return v.ArrayInsertAt(0, val)
}

// ArrayInsertAt inserts val before idx; idx == size appends.
func (v *Variant) ArrayInsertAt(idx int, val *Variant) error {
	a, err := v.arrayOf()
	if err != nil {
		return err
	}
	if val == nil || idx < 0 || idx > len(a.elems) {
		return verr.SetLast(verr.WrongArgs)
	}
	if err := v.checkMutable(); err != nil {
		return err
	}
	if !v.firePre(OpGrow, []*Variant{val}) {
		return verr.SetLast(verr.InvalidValue)
	}
	a.elems = append(a.elems, nil)
	copy(a.elems[idx+1:], a.elems[idx:])
	a.elems[idx] = val.Ref()
	v.version++
	v.firePost(OpGrow, []*Variant{val})
	return nil
}

// ArrayRemoveAt removes the element at idx.
func (v *Variant) ArrayRemoveAt(idx int) error {
	a, err := v.arrayOf()
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(a.elems) {
		return verr.SetLast(verr.NotExists)
	}
	if err := v.checkMutable(); err != nil {
		return err
	}
	old := a.elems[idx]
	if !v.firePre(OpShrink, []*Variant{old}) {
		return verr.SetLast(verr.InvalidValue)
	}
	a.elems = append(a.elems[:idx], a.elems[idx+1:]...)
	v.version++
	v.firePost(OpShrink, []*Variant{old})
	old.Unref()
	return nil
}

// ArraySetAt replaces the element at idx with val.
func (v *Variant) ArraySetAt(idx int, val *Variant) error {
	a, err := v.arrayOf()
	if err != nil {
		return err
	}
	if val == nil || idx < 0 || idx >= len(a.elems) {
		return verr.SetLast(verr.WrongArgs)
	}
	if err := v.checkMutable(); err != nil {
		return err
	}
	old := a.elems[idx]
	if !v.firePre(OpChange, []*Variant{old, val}) {
		return verr.SetLast(verr.InvalidValue)
	}
	a.elems[idx] = val.Ref()
	v.version++
	v.firePost(OpChange, []*Variant{old, val})
	old.Unref()
	return nil
}

// ArrayIterator walks an array in index order. It is single-pass and
// invalidated by any mutation of the array.
type ArrayIterator struct {
	v       *Variant
	idx     int
	version uint64
}

// MakeArrayIteratorBegin returns an iterator positioned on the first
// element, or nil for an empty array.
func (v *Variant) MakeArrayIteratorBegin() *ArrayIterator {
	a, err := v.arrayOf()
	if err != nil || len(a.elems) == 0 {
		return nil
	}
	return &ArrayIterator{v: v, version: v.version}
}

// Next advances the iterator; it reports whether an element remains.
// Advancing after the array mutated fails with InvalidValue.
func (it *ArrayIterator) Next() (bool, error) {
	if it.version != it.v.version {
		return false, verr.SetLast(verr.InvalidValue)
	}
	it.idx++
	return it.idx < len(it.v.arr.elems), nil
}

// Value returns the element under the iterator.
func (it *ArrayIterator) Value() *Variant {
	if it.idx < len(it.v.arr.elems) {
		return it.v.arr.elems[it.idx]
	}
	return nil
}
