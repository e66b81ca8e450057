package variant

import (
	"log/slog"

	verr "velm/internal/errors"
)

// Op is a bitset of container operations a listener subscribes to.
type Op uint8

const (
	OpGrow Op = 1 << iota
	OpShrink
	OpChange

	OpAll = OpGrow | OpShrink | OpChange
)

// String returns the lowercase name of a single operation bit.
func (op Op) String() string {
	switch op {
	case OpGrow:
		return "grow"
	case OpShrink:
		return "shrink"
	case OpChange:
		return "change"
	}
	return "unknown"
}

// ListenerFn observes a mutation of source. For a pre-listener a
// false return vetoes the mutation; a post-listener's return value is
// ignored.
type ListenerFn func(source *Variant, op Op, args []*Variant) bool

// Listener is a registration record on a mutable value. The cookie is
// caller-owned context; onRevoke fires when the value is destroyed
// with the listener still installed.
type Listener struct {
	ops      Op
	pre      bool
	fn       ListenerFn
	Cookie   interface{}
	onRevoke func(*Listener)
}

func (v *Variant) registerListener(ops Op, pre bool, fn ListenerFn) (*Listener, error) {
	if !v.IsContainer() && v.kind != KindNative {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	if fn == nil || ops == 0 {
		return nil, verr.SetLast(verr.WrongArgs)
	}
	l := &Listener{ops: ops, pre: pre, fn: fn}
	v.listeners = append(v.listeners, l)
	return l, nil
}

// RegisterPreListener installs fn to run before mutations selected by
// ops. Returning false from fn cancels the mutation.
func (v *Variant) RegisterPreListener(ops Op, fn ListenerFn) (*Listener, error) {
	return v.registerListener(ops, true, fn)
}

// RegisterPostListener installs fn to run after mutations selected by
// ops.
func (v *Variant) RegisterPostListener(ops Op, fn ListenerFn) (*Listener, error) {
	return v.registerListener(ops, false, fn)
}

// SetOnRevoke attaches a revocation callback invoked when the owning
// value is destroyed while l is still installed.
func (l *Listener) SetOnRevoke(fn func(*Listener)) { l.onRevoke = fn }

// RevokeListener removes l from v. It is safe to call during dispatch;
// the removal takes effect for subsequent mutations.
func (v *Variant) RevokeListener(l *Listener) bool {
	for i, cand := range v.listeners {
		if cand == l {
			v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// checkMutable guards a mutation about to run on v: the value must not
// be inside its own listener dispatch. The kind is checked by callers.
func (v *Variant) checkMutable() error {
	if v.inDispatch {
		return verr.SetLast(verr.InvalidValue)
	}
	return nil
}

// firePre runs the matching pre-listeners over a snapshot of the
// listener list. A veto short-circuits the remaining pre-listeners.
func (v *Variant) firePre(op Op, args []*Variant) bool {
	if len(v.listeners) == 0 {
		return true
	}
	snapshot := append([]*Listener(nil), v.listeners...)
	v.inDispatch = true
	defer func() { v.inDispatch = false }()
	for _, l := range snapshot {
		if !l.pre || l.ops&op == 0 {
			continue
		}
		if !l.fn(v, op, args) {
			return false
		}
	}
	return true
}

// firePost runs the matching post-listeners in registration order over
// a snapshot of the listener list. A panicking listener is logged and
// swallowed; the mutation has already completed.
func (v *Variant) firePost(op Op, args []*Variant) {
	if len(v.listeners) == 0 {
		return
	}
	snapshot := append([]*Listener(nil), v.listeners...)
	v.inDispatch = true
	defer func() { v.inDispatch = false }()
	for _, l := range snapshot {
		if l.pre || l.ops&op == 0 {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("post listener panicked", "op", op.String(), "reason", r)
				}
			}()
			l.fn(v, op, args)
		}()
	}
}
