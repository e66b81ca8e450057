package variant

import (
	verr "velm/internal/errors"
)

// object is an insertion-ordered mapping from unique UTF-8 key to
// value. keys carries the order; vals carries the bindings.
type object struct {
	keys []string
	vals map[string]*Variant
}

// MakeObject returns an Object from alternating key/value pairs.
func MakeObject(pairs ...interface{}) *Variant {
	v := newVariant(KindObject)
	v.obj = &object{vals: map[string]*Variant{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		k := pairs[i].(string)
		val := pairs[i+1].(*Variant)
		if _, dup := v.obj.vals[k]; !dup {
			v.obj.keys = append(v.obj.keys, k)
		} else {
			v.obj.vals[k].Unref()
		}
		v.obj.vals[k] = val.Ref()
	}
	return v
}

func (v *Variant) objectOf() (*object, error) {
	if v.kind != KindObject {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	return v.obj, nil
}

// ObjectSize returns the number of entries.
func (v *Variant) ObjectSize() (int, error) {
	o, err := v.objectOf()
	if err != nil {
		return 0, err
	}
	return len(o.keys), nil
}

// ObjectGet returns the value bound to key without transferring
// ownership, or nil with NotExists.
func (v *Variant) ObjectGet(key string) (*Variant, error) {
	o, err := v.objectOf()
	if err != nil {
		return nil, err
	}
	val, ok := o.vals[key]
	if !ok {
		return nil, verr.SetLast(verr.NotExists)
	}
	return val, nil
}

// ObjectSet binds key to val. A fresh key appends at the end and fires
// GROW; an existing key keeps its position and fires CHANGE when the
// new value differs by serialized form.
func (v *Variant) ObjectSet(key string, val *Variant) error {
	o, err := v.objectOf()
	if err != nil {
		return err
	}
	if val == nil {
		return verr.SetLast(verr.WrongArgs)
	}
	if err := v.checkMutable(); err != nil {
		return err
	}

	old, exists := o.vals[key]
	if !exists {
		kv := MustString(key)
		defer kv.Unref()
		if !v.firePre(OpGrow, []*Variant{kv, val}) {
			return verr.SetLast(verr.InvalidValue)
		}
		o.keys = append(o.keys, key)
		o.vals[key] = val.Ref()
		v.version++
		v.firePost(OpGrow, []*Variant{kv, val})
		return nil
	}

	if EqualBySerialization(old, val) {
		// Same canonical form: swap the handle, no notification.
		o.vals[key] = val.Ref()
		old.Unref()
		return nil
	}

	kv := MustString(key)
	defer kv.Unref()
	if !v.firePre(OpChange, []*Variant{kv, old, val}) {
		return verr.SetLast(verr.InvalidValue)
	}
	o.vals[key] = val.Ref()
	v.version++
	v.firePost(OpChange, []*Variant{kv, old, val})
	old.Unref()
	return nil
}

// ObjectRemove unbinds key and fires SHRINK. Removing an absent key
// fails with NotExists.
func (v *Variant) ObjectRemove(key string) error {
	o, err := v.objectOf()
	if err != nil {
		return err
	}
	old, ok := o.vals[key]
	if !ok {
		return verr.SetLast(verr.NotExists)
	}
	if err := v.checkMutable(); err != nil {
		return err
	}
	kv := MustString(key)
	defer kv.Unref()
	if !v.firePre(OpShrink, []*Variant{kv, old}) {
		return verr.SetLast(verr.InvalidValue)
	}
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	delete(o.vals, key)
	v.version++
	v.firePost(OpShrink, []*Variant{kv, old})
	old.Unref()
	return nil
}

// ObjectKeys returns the keys in insertion order.
func (v *Variant) ObjectKeys() []string {
	if v.kind != KindObject {
		return nil
	}
	return append([]string(nil), v.obj.keys...)
}

// ObjectIterator walks an object in insertion order. Single-pass;
// invalidated by mutation.
type ObjectIterator struct {
	v       *Variant
	idx     int
	version uint64
}

// MakeObjectIteratorBegin returns an iterator on the first entry, or
// nil for an empty object.
func (v *Variant) MakeObjectIteratorBegin() *ObjectIterator {
	o, err := v.objectOf()
	if err != nil || len(o.keys) == 0 {
		return nil
	}
	return &ObjectIterator{v: v, version: v.version}
}

// Next advances to the following entry; it reports whether one
// remains. Advancing after the object mutated fails with InvalidValue.
func (it *ObjectIterator) Next() (bool, error) {
	if it.version != it.v.version {
		return false, verr.SetLast(verr.InvalidValue)
	}
	it.idx++
	return it.idx < len(it.v.obj.keys), nil
}

// Key returns the key under the iterator.
func (it *ObjectIterator) Key() string {
	if it.idx < len(it.v.obj.keys) {
		return it.v.obj.keys[it.idx]
	}
	return ""
}

// Value returns the value under the iterator.
func (it *ObjectIterator) Value() *Variant {
	if it.idx < len(it.v.obj.keys) {
		return it.v.obj.vals[it.v.obj.keys[it.idx]]
	}
	return nil
}
