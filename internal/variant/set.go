package variant

import (
	"strings"

	verr "velm/internal/errors"
)

// set is an ordered collection with an optional key projection.
// Members compare equal when their projected values compare equal;
// with no keys declared, members compare by serialized form.
type set struct {
	keys    []string
	members []*Variant
	index   map[string]int
}

// MakeSetByKeys returns a Set whose members are deduplicated by the
// comma-separated projection keyNames (empty for identity by
// serialized form). Duplicate initial members are dropped.
func MakeSetByKeys(keyNames string, members ...*Variant) (*Variant, error) {
	v := newVariant(KindSet)
	v.set = &set{index: map[string]int{}}
	keyNames = strings.TrimSpace(keyNames)
	if keyNames != "" {
		for _, k := range strings.Split(keyNames, ",") {
			k = strings.TrimSpace(k)
			if k == "" {
				v.destroy()
				return nil, verr.SetLast(verr.WrongArgs)
			}
			v.set.keys = append(v.set.keys, k)
		}
	}
	for _, m := range members {
		if _, err := v.SetAdd(m, false); err != nil {
			v.Unref()
			return nil, err
		}
	}
	return v, nil
}

func (v *Variant) setOf() (*set, error) {
	if v.kind != KindSet {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	return v.set, nil
}

// SetKeys returns the projection key names.
func (v *Variant) SetKeys() []string {
	if v.kind != KindSet {
		return nil
	}
	return append([]string(nil), v.set.keys...)
}

// projection computes the signature of member under the set's keys.
func (s *set) projection(member *Variant) string {
	if len(s.keys) == 0 {
		return canonicalForm(member)
	}
	parts := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		var proj string
		if member.Kind() == KindObject {
			if val, err := member.ObjectGet(k); err == nil {
				proj = canonicalForm(val)
			} else {
				verr.ClearLast()
				proj = "undefined"
			}
		} else {
			// A non-object member projects to its own form under
			// every key.
			proj = canonicalForm(member)
		}
		parts = append(parts, proj)
	}
	return strings.Join(parts, "\x1f")
}

// keyValuesSignature builds a signature from literal projected values.
func (s *set) keyValuesSignature(vals []*Variant) string {
	parts := make([]string, 0, len(vals))
	for _, val := range vals {
		parts = append(parts, canonicalForm(val))
	}
	return strings.Join(parts, "\x1f")
}

// SetSize returns the number of members.
func (v *Variant) SetSize() (int, error) {
	s, err := v.setOf()
	if err != nil {
		return 0, err
	}
	return len(s.members), nil
}

// SetAdd inserts member. When a member with the same projection is
// already present, override=false reports "not added" and
// override=true replaces it in place (CHANGE); a fresh member appends
// at the tail (GROW).
func (v *Variant) SetAdd(member *Variant, override bool) (bool, error) {
	s, err := v.setOf()
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, verr.SetLast(verr.WrongArgs)
	}
	if err := v.checkMutable(); err != nil {
		return false, err
	}

	sig := s.projection(member)
	if pos, dup := s.index[sig]; dup {
		if !override {
			return false, nil
		}
		old := s.members[pos]
		if !v.firePre(OpChange, []*Variant{old, member}) {
			return false, verr.SetLast(verr.InvalidValue)
		}
		s.members[pos] = member.Ref()
		v.version++
		v.firePost(OpChange, []*Variant{old, member})
		old.Unref()
		return true, nil
	}

	if !v.firePre(OpGrow, []*Variant{member}) {
		return false, verr.SetLast(verr.InvalidValue)
	}
	s.index[sig] = len(s.members)
	s.members = append(s.members, member.Ref())
	v.version++
	v.firePost(OpGrow, []*Variant{member})
	return true, nil
}

// removeAt unlinks position i and reindexes the tail.
func (v *Variant) removeAt(i int) *Variant {
	s := v.set
	old := s.members[i]
	s.members = append(s.members[:i], s.members[i+1:]...)
	delete(s.index, s.projection(old))
	for sig, pos := range s.index {
		if pos > i {
			s.index[sig] = pos - 1
		}
	}
	v.version++
	return old
}

// SetRemove removes the member whose projection matches member.
func (v *Variant) SetRemove(member *Variant) (bool, error) {
	s, err := v.setOf()
	if err != nil {
		return false, err
	}
	if err := v.checkMutable(); err != nil {
		return false, err
	}
	pos, ok := s.index[s.projection(member)]
	if !ok {
		return false, verr.SetLast(verr.NotExists)
	}
	old := s.members[pos]
	if !v.firePre(OpShrink, []*Variant{old}) {
		return false, verr.SetLast(verr.InvalidValue)
	}
	v.removeAt(pos)
	v.firePost(OpShrink, []*Variant{old})
	old.Unref()
	return true, nil
}

// SetGetByIndex returns the member at position idx in insertion order.
func (v *Variant) SetGetByIndex(idx int) (*Variant, error) {
	s, err := v.setOf()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(s.members) {
		return nil, verr.SetLast(verr.NotExists)
	}
	return s.members[idx], nil
}

// SetRemoveByIndex removes position idx and returns the member with
// ownership transferred to the caller. Out-of-range indices return
// nil.
func (v *Variant) SetRemoveByIndex(idx int) *Variant {
	s, err := v.setOf()
	if err != nil {
		return nil
	}
	if idx < 0 || idx >= len(s.members) {
		verr.SetLast(verr.NotExists)
		return nil
	}
	if err := v.checkMutable(); err != nil {
		return nil
	}
	old := s.members[idx]
	if !v.firePre(OpShrink, []*Variant{old}) {
		verr.SetLast(verr.InvalidValue)
		return nil
	}
	v.removeAt(idx)
	v.firePost(OpShrink, []*Variant{old})
	return old
}

// SetSetByIndex removes the member at idx and inserts val at the tail.
// A projection collision with a surviving member fails Duplicated.
func (v *Variant) SetSetByIndex(idx int, val *Variant) error {
	s, err := v.setOf()
	if err != nil {
		return err
	}
	if val == nil || idx < 0 || idx >= len(s.members) {
		return verr.SetLast(verr.WrongArgs)
	}
	if err := v.checkMutable(); err != nil {
		return err
	}
	sig := s.projection(val)
	if pos, dup := s.index[sig]; dup && pos != idx {
		return verr.SetLast(verr.Duplicated)
	}

	old := s.members[idx]
	if !v.firePre(OpChange, []*Variant{old, val}) {
		return verr.SetLast(verr.InvalidValue)
	}
	v.removeAt(idx)
	s.index[s.projection(val)] = len(s.members)
	s.members = append(s.members, val.Ref())
	v.version++
	v.firePost(OpChange, []*Variant{old, val})
	old.Unref()
	return nil
}

// SetGetMemberByKeyValues looks a member up by its literal projected
// values, one per declared key.
func (v *Variant) SetGetMemberByKeyValues(vals ...*Variant) (*Variant, error) {
	s, err := v.setOf()
	if err != nil {
		return nil, err
	}
	if len(s.keys) == 0 || len(vals) != len(s.keys) {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	pos, ok := s.index[s.keyValuesSignature(vals)]
	if !ok {
		return nil, verr.SetLast(verr.NotExists)
	}
	return s.members[pos], nil
}

// SetRemoveMemberByKeyValues removes a member located by its literal
// projected values and transfers ownership to the caller.
func (v *Variant) SetRemoveMemberByKeyValues(vals ...*Variant) (*Variant, error) {
	s, err := v.setOf()
	if err != nil {
		return nil, err
	}
	if len(s.keys) == 0 || len(vals) != len(s.keys) {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	if err := v.checkMutable(); err != nil {
		return nil, err
	}
	pos, ok := s.index[s.keyValuesSignature(vals)]
	if !ok {
		return nil, verr.SetLast(verr.NotExists)
	}
	old := s.members[pos]
	if !v.firePre(OpShrink, []*Variant{old}) {
		return nil, verr.SetLast(verr.InvalidValue)
	}
	v.removeAt(pos)
	v.firePost(OpShrink, []*Variant{old})
	return old, nil
}

// SetIterator walks a set in insertion order. Single-pass; invalidated
// by mutation.
type SetIterator struct {
	v       *Variant
	idx     int
	version uint64
}

// MakeSetIteratorBegin returns an iterator on the first member, or nil
// for an empty set.
func (v *Variant) MakeSetIteratorBegin() *SetIterator {
	s, err := v.setOf()
	if err != nil || len(s.members) == 0 {
		return nil
	}
	return &SetIterator{v: v, version: v.version}
}

// Next advances to the following member; it reports whether one
// remains. Advancing after the set mutated fails with InvalidValue.
func (it *SetIterator) Next() (bool, error) {
	if it.version != it.v.version {
		return false, verr.SetLast(verr.InvalidValue)
	}
	it.idx++
	return it.idx < len(it.v.set.members), nil
}

// Value returns the member under the iterator.
func (it *SetIterator) Value() *Variant {
	if it.idx < len(it.v.set.members) {
		return it.v.set.members[it.idx]
	}
	return nil
}
