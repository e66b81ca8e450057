package interp

import (
	"strings"

	"velm/internal/atom"
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// Observer is a registration that receives messages about a value or
// event class on behalf of its element.
type Observer struct {
	stack *Stack

	// Observed is the resolved target value.
	Observed *variant.Variant
	// For keeps the original `for` expression value.
	For *variant.Variant
	// Class is the event-class atom; SubType the text after ':'.
	Class   atom.Atom
	SubType string
	// Element is the observing element whose children rerun on a
	// matching message.
	Element *markup.Node
	// OutputNode is the output element the rerun renders into.
	OutputNode *OutputNode

	onRevoke func(*Observer, interface{})
	cookie   interface{}
	revoked  bool
}

// RegisterObserver stores a registration record on the stack. The
// revoke callback receives the cookie (typically the underlying
// variant listener) when the observer goes away.
func (st *Stack) RegisterObserver(observed, forVar *variant.Variant,
	class atom.Atom, subType string, element *markup.Node, out *OutputNode,
	onRevoke func(*Observer, interface{}), cookie interface{}) *Observer {

	o := &Observer{
		stack:      st,
		Observed:   observed.Ref(),
		Class:      class,
		SubType:    subType,
		Element:    element,
		OutputNode: out,
		onRevoke:   onRevoke,
		cookie:     cookie,
	}
	if forVar != nil {
		o.For = forVar.Ref()
	}
	st.inst.observers = append(st.inst.observers, o)
	return o
}

// RevokeObserver removes o, invoking its revoke callback.
func (st *Stack) RevokeObserver(o *Observer) {
	if o == nil || o.revoked {
		return
	}
	o.revoked = true
	obs := st.inst.observers
	for i, cand := range obs {
		if cand == o {
			st.inst.observers = append(obs[:i], obs[i+1:]...)
			break
		}
	}
	if o.onRevoke != nil {
		o.onRevoke(o, o.cookie)
	}
	o.Observed.Unref()
	if o.For != nil {
		o.For.Unref()
	}
}

// splitEventExpr splits "class:sub" at the event separator.
func splitEventExpr(s string) (class, sub string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

// listenerOpsForClass maps an event-class atom to the container
// operation it observes.
func listenerOpsForClass(class atom.Atom) (variant.Op, bool) {
	switch class {
	case atom.Grow:
		return variant.OpGrow, true
	case atom.Shrink:
		return variant.OpShrink, true
	case atom.Change:
		return variant.OpChange, true
	}
	return 0, false
}

// installVariantListener installs the post-listener translating
// low-level container operations into dispatched messages.
func installVariantListener(st *Stack, observed *variant.Variant,
	class atom.Atom) (*variant.Listener, error) {

	op, ok := listenerOpsForClass(class)
	if !ok {
		return nil, verr.SetLast(verr.InvalidValue)
	}
	l, err := observed.RegisterPostListener(op,
		func(source *variant.Variant, op variant.Op, args []*variant.Variant) bool {
			st.inst.dispatchMessage(source, op.String(), "")
			return true
		})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// resolveAndRegister resolves the observed target by kind and stores
// the observer:
//
//  1. Native values are asked through on_observe.
//  2. Containers get a post-listener for the declared class.
//  3. Strings starting with '.' or '#' select over the output
//     document; the selection becomes the observed value.
//  4. Strings naming a variable in scope observe that variable.
//  5. The timer collection registers against $TIMERS.
//  6. Anything else registers a passive observer.
func resolveAndRegister(st *Stack, fr *Frame, observed, forVar *variant.Variant,
	class atom.Atom, subType string) (*Observer, error) {

	if observed == st.inst.timersVar {
		return st.RegisterObserver(observed, forVar, class, subType,
			fr.Pos, fr.Output, nil, nil), nil
	}

	switch observed.Kind() {
	case variant.KindNative:
		return registerNativeObserver(st, fr, observed, forVar, class, subType)

	case variant.KindObject, variant.KindArray, variant.KindSet:
		l, err := installVariantListener(st, observed, class)
		if err != nil {
			return nil, err
		}
		o := st.RegisterObserver(observed, forVar, class, subType,
			fr.Pos, fr.Output,
			func(o *Observer, cookie interface{}) {
				if cookie != nil {
					o.Observed.RevokeListener(cookie.(*variant.Listener))
				}
			}, l)
		// The cookie is released through the revoke callback when
		// the observed value is destroyed first.
		l.Cookie = o
		l.SetOnRevoke(func(l *variant.Listener) {
			if o, ok := l.Cookie.(*Observer); ok && !o.revoked {
				o.revoked = true
			}
		})
		return o, nil

	case variant.KindString, variant.KindAtomString:
		s := observed.StringConst()
		if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "#") {
			return registerElementsObserver(st, fr, s, forVar, class, subType)
		}
		if named := st.FindNamedVar(s, fr.Pos.ParentElement()); named != nil {
			return resolveAndRegister(st, fr, named, forVar, class, subType)
		}
		return st.RegisterObserver(observed, forVar, class, subType,
			fr.Pos, fr.Output, nil, nil), nil
	}

	return st.RegisterObserver(observed, forVar, class, subType,
		fr.Pos, fr.Output, nil, nil), nil
}

func registerNativeObserver(st *Stack, fr *Frame, observed, forVar *variant.Variant,
	class atom.Atom, subType string) (*Observer, error) {

	ops := observed.NativeOpsOf()
	if ops.OnObserve != nil &&
		!ops.OnObserve(observed.NativeEntity(), class.String(), subType) {
		return nil, verr.SetLast(verr.InvalidValue)
	}
	return st.RegisterObserver(observed, forVar, class, subType,
		fr.Pos, fr.Output, nil, nil), nil
}

// elementCollection is the native entity wrapping a selector result.
type elementCollection struct {
	Selector string
	Elements []*OutputNode
}

func registerElementsObserver(st *Stack, fr *Frame, sel string,
	forVar *variant.Variant, class atom.Atom, subType string) (*Observer, error) {

	elems := st.doc.Output.SelectByCSS(sel)
	coll := &elementCollection{Selector: sel, Elements: elems}
	wrapped, err := variant.MakeNative(coll, variant.NativeOps{
		OnObserve: func(entity interface{}, class, sub string) bool { return true },
	})
	if err != nil {
		return nil, err
	}
	defer wrapped.Unref()
	return registerNativeObserver(st, fr, wrapped, forVar, class, subType)
}
