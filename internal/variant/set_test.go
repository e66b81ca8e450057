package variant

import (
	"fmt"
	"testing"
)

func mustSet(t *testing.T, keys string, members ...*Variant) *Variant {
	t.Helper()
	s, err := MakeSetByKeys(keys, members...)
	if err != nil {
		t.Fatalf("make set: %v", err)
	}
	return s
}

func setStrings(t *testing.T, s *Variant) []string {
	t.Helper()
	var out []string
	n, err := s.SetSize()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	for i := 0; i < n; i++ {
		m, err := s.SetGetByIndex(i)
		if err != nil {
			t.Fatalf("get by index %d: %v", i, err)
		}
		out = append(out, m.StringConst())
	}
	return out
}

func TestSetNonObjectMembers(t *testing.T) {
	elems := []string{"hello", "world", "foo", "bar", "great", "wall"}
	removeOrder := []int{3, 3, 3, 2, 1, 0}

	set := mustSet(t, "")
	defer set.Unref()

	for _, e := range elems {
		s := MustString(e)
		added, err := set.SetAdd(s, false)
		s.Unref()
		if err != nil || !added {
			t.Fatalf("add %q: added=%v err=%v", e, added, err)
		}
	}

	// A second round of identical adds reports "not added".
	for _, e := range elems {
		s := MustString(e)
		added, err := set.SetAdd(s, false)
		s.Unref()
		if err != nil {
			t.Fatalf("re-add %q: %v", e, err)
		}
		if added {
			t.Fatalf("re-add %q: duplicate was added", e)
		}
	}

	got := setStrings(t, set)
	for i, e := range elems {
		if got[i] != e {
			t.Fatalf("iteration order %v, want %v", got, elems)
		}
	}

	// Boundary indices return nothing.
	if v := set.SetRemoveByIndex(-1); v != nil {
		t.Fatal("remove at -1 succeeded")
	}
	if n, _ := set.SetSize(); n != len(elems) {
		t.Fatalf("size = %d", n)
	}
	if v := set.SetRemoveByIndex(len(elems)); v != nil {
		t.Fatal("remove at size succeeded")
	}

	for _, idx := range removeOrder {
		v := set.SetRemoveByIndex(idx)
		if v == nil {
			t.Fatalf("remove at %d failed", idx)
		}
		v.Unref()
	}
	if n, _ := set.SetSize(); n != 0 {
		t.Fatalf("size after removals = %d", n)
	}
}

func TestSetSetByIndex(t *testing.T) {
	elems := []string{"hello", "world", "foo", "bar", "great", "wall"}
	want := []string{"hello", "world", "foo", "great", "wall", "foobar"}

	set := mustSet(t, "")
	defer set.Unref()
	for _, e := range elems {
		s := MustString(e)
		if _, err := set.SetAdd(s, false); err != nil {
			t.Fatalf("add: %v", err)
		}
		s.Unref()
	}

	repl := MustString("foobar")
	if err := set.SetSetByIndex(3, repl); err != nil {
		t.Fatalf("set by index: %v", err)
	}
	repl.Unref()

	got := setStrings(t, set)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after set-by-index order %v, want %v", got, want)
		}
	}
}

func TestSetKeyedMembers(t *testing.T) {
	ResetStat()

	set := mustSet(t, "hello")
	count := 64
	for j := 0; j < count; j++ {
		s := MustString(fmt.Sprintf("%d", j))
		obj := MakeObject("hello", s)
		added, err := set.SetAdd(obj, false)
		if err != nil || !added {
			t.Fatalf("add %d: added=%v err=%v", j, added, err)
		}
		obj.Unref()
		s.Unref()
		if obj.RefCount() != 1 {
			t.Fatalf("member refc = %d, want 1 (owned by set)", obj.RefCount())
		}
	}
	if n, _ := set.SetSize(); n != count {
		t.Fatalf("size = %d", n)
	}

	st := UsageStat()
	if st.NrValues[KindObject] != count {
		t.Fatalf("object stat = %d, want %d", st.NrValues[KindObject], count)
	}

	q := MustString("20")
	m, err := set.SetGetMemberByKeyValues(q)
	if err != nil || m == nil {
		t.Fatalf("get by key values: %v", err)
	}
	q.Unref()

	q = MustString("abc")
	if _, err := set.SetGetMemberByKeyValues(q); err == nil {
		t.Fatal("lookup of absent key succeeded")
	}
	q.Unref()

	q = MustString("20")
	removed, err := set.SetRemoveMemberByKeyValues(q)
	if err != nil || removed == nil {
		t.Fatalf("remove by key values: %v", err)
	}
	removed.Unref()
	q.Unref()
	if n, _ := set.SetSize(); n != count-1 {
		t.Fatalf("size after keyed removal = %d", n)
	}

	// No two members may share a projection tuple.
	dupS := MustString("21")
	dup := MakeObject("hello", dupS)
	added, err := set.SetAdd(dup, false)
	if err != nil || added {
		t.Fatalf("projection duplicate was added (err=%v)", err)
	}
	dup.Unref()
	dupS.Unref()

	set.Unref()
	st = UsageStat()
	if st.NrValues[KindSet] != 0 || st.NrValues[KindObject] != 0 ||
		st.NrValues[KindString] != 0 {
		t.Fatalf("leaked values after release: %+v", st.NrValues)
	}
}

func TestSetRefCounting(t *testing.T) {
	ResetStat()

	set := mustSet(t, "hello")
	if set.RefCount() != 1 {
		t.Fatalf("fresh set refc = %d", set.RefCount())
	}
	set.Ref()
	if st := UsageStat(); st.NrValues[KindSet] != 1 {
		t.Fatalf("set stat = %d after ref", st.NrValues[KindSet])
	}
	set.Unref()
	set.Unref()
	if st := UsageStat(); st.NrValues[KindSet] != 0 {
		t.Fatalf("set stat = %d after release", st.NrValues[KindSet])
	}
}
