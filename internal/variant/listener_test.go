package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verr "velm/internal/errors"
)

func TestObjectNotifications(t *testing.T) {
	obj := MakeObject()
	defer obj.Unref()

	var ops []string
	_, err := obj.RegisterPostListener(OpAll,
		func(source *Variant, op Op, args []*Variant) bool {
			ops = append(ops, op.String())
			return true
		})
	require.NoError(t, err)

	v1 := MustString("one")
	require.NoError(t, obj.ObjectSet("k", v1))

	// Same canonical form: no notification.
	v1b := MustString("one")
	require.NoError(t, obj.ObjectSet("k", v1b))

	v2 := MustString("two")
	require.NoError(t, obj.ObjectSet("k", v2))
	require.NoError(t, obj.ObjectRemove("k"))

	v1.Unref()
	v1b.Unref()
	v2.Unref()

	assert.Equal(t, []string{"grow", "change", "shrink"}, ops)
}

func TestPostListenerRegistrationOrder(t *testing.T) {
	arr := MakeArray()
	defer arr.Unref()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		_, err := arr.RegisterPostListener(OpGrow,
			func(source *Variant, op Op, args []*Variant) bool {
				order = append(order, i)
				return true
			})
		require.NoError(t, err)
	}

	v := MakeNumber(1)
	require.NoError(t, arr.ArrayAppend(v))
	v.Unref()

	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestPreListenerVeto(t *testing.T) {
	arr := MakeArray()
	defer arr.Unref()

	_, err := arr.RegisterPreListener(OpGrow,
		func(source *Variant, op Op, args []*Variant) bool { return false })
	require.NoError(t, err)

	postFired := false
	_, err = arr.RegisterPostListener(OpGrow,
		func(source *Variant, op Op, args []*Variant) bool {
			postFired = true
			return true
		})
	require.NoError(t, err)

	v := MakeNumber(1)
	err = arr.ArrayAppend(v)
	v.Unref()

	require.Error(t, err)
	assert.Equal(t, verr.InvalidValue, verr.CodeOf(err))
	n, _ := arr.ArraySize()
	assert.Zero(t, n, "vetoed mutation must not apply")
	assert.False(t, postFired, "veto short-circuits post listeners")
}

func TestReentrantMutationRejected(t *testing.T) {
	arr := MakeArray()
	defer arr.Unref()

	var reentrantErr error
	_, err := arr.RegisterPostListener(OpGrow,
		func(source *Variant, op Op, args []*Variant) bool {
			x := MakeNumber(9)
			reentrantErr = source.ArrayAppend(x)
			x.Unref()
			return true
		})
	require.NoError(t, err)

	v := MakeNumber(1)
	require.NoError(t, arr.ArrayAppend(v), "original mutation completes")
	v.Unref()

	require.Error(t, reentrantErr)
	assert.Equal(t, verr.InvalidValue, verr.CodeOf(reentrantErr))
	n, _ := arr.ArraySize()
	assert.Equal(t, 1, n)
}

func TestListenerMayMutateOtherValues(t *testing.T) {
	arr := MakeArray()
	other := MakeArray()
	defer arr.Unref()
	defer other.Unref()

	_, err := arr.RegisterPostListener(OpGrow,
		func(source *Variant, op Op, args []*Variant) bool {
			x := MakeNumber(1)
			if err := other.ArrayAppend(x); err != nil {
				t.Errorf("mutating another value: %v", err)
			}
			x.Unref()
			return true
		})
	require.NoError(t, err)

	v := MakeNumber(1)
	require.NoError(t, arr.ArrayAppend(v))
	v.Unref()

	n, _ := other.ArraySize()
	assert.Equal(t, 1, n)
}

func TestRevokeListener(t *testing.T) {
	arr := MakeArray()
	defer arr.Unref()

	fired := 0
	l, err := arr.RegisterPostListener(OpGrow,
		func(source *Variant, op Op, args []*Variant) bool {
			fired++
			return true
		})
	require.NoError(t, err)

	v := MakeNumber(1)
	require.NoError(t, arr.ArrayAppend(v))
	assert.True(t, arr.RevokeListener(l))
	require.NoError(t, arr.ArrayAppend(v))
	v.Unref()

	assert.Equal(t, 1, fired)
}

func TestDestroyReleasesListenerCookies(t *testing.T) {
	arr := MakeArray()
	revoked := false
	l, err := arr.RegisterPostListener(OpGrow,
		func(source *Variant, op Op, args []*Variant) bool { return true })
	require.NoError(t, err)
	l.SetOnRevoke(func(*Listener) { revoked = true })

	arr.Unref()
	assert.True(t, revoked)
}

func TestIteratorInvalidation(t *testing.T) {
	a := MakeNumber(1)
	b := MakeNumber(2)
	arr := MakeArray(a, b)
	defer func() {
		arr.Unref()
		a.Unref()
		b.Unref()
	}()

	it := arr.MakeArrayIteratorBegin()
	require.NotNil(t, it)

	c := MakeNumber(3)
	require.NoError(t, arr.ArrayAppend(c))
	c.Unref()

	_, err := it.Next()
	require.Error(t, err)
	assert.Equal(t, verr.InvalidValue, verr.CodeOf(err))
}

func TestObjectIterationOrder(t *testing.T) {
	obj := MakeObject()
	defer obj.Unref()

	for _, k := range []string{"b", "a", "c"} {
		v := MustString(k)
		require.NoError(t, obj.ObjectSet(k, v))
		v.Unref()
	}

	// Re-setting an existing key keeps its position.
	v := MustString("a2")
	require.NoError(t, obj.ObjectSet("a", v))
	v.Unref()

	assert.Equal(t, []string{"b", "a", "c"}, obj.ObjectKeys())

	// Remove and re-insert moves to the end.
	require.NoError(t, obj.ObjectRemove("b"))
	v = MustString("b2")
	require.NoError(t, obj.ObjectSet("b", v))
	v.Unref()
	assert.Equal(t, []string{"a", "c", "b"}, obj.ObjectKeys())
}
