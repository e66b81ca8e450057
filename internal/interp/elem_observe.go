package interp

import (
	"velm/internal/atom"
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// observeCtxt is the payload of an <observe> element.
type observeCtxt struct {
	on      *variant.Variant
	forVar  *variant.Variant
	at      *variant.Variant
	as      *variant.Variant
	against *variant.Variant

	msgType string
	subType string
	class   atom.Atom

	rerun  bool
	walker childWalker
}

func destroyObserveCtxt(p interface{}) {
	ctxt, ok := p.(*observeCtxt)
	if !ok || ctxt == nil {
		return
	}
	for _, v := range []*variant.Variant{ctxt.on, ctxt.forVar, ctxt.at, ctxt.as, ctxt.against} {
		if v != nil {
			v.Unref()
		}
	}
}

func observeAttrFound(st *Stack, el *markup.Node, name string, val *variant.Variant) error {
	fr := st.BottomFrame()
	ctxt := fr.Ctxt.(*observeCtxt)
	switch name {
	case "on":
		if ctxt.on != nil {
			return dupAttr(el, name)
		}
		ctxt.on = val.Ref()
	case "for":
		if ctxt.forVar != nil {
			return dupAttr(el, name)
		}
		if !val.IsString() {
			return verr.SetLast(verr.InvalidValue)
		}
		ctxt.forVar = val.Ref()
		ctxt.msgType, ctxt.subType = splitEventExpr(val.StringConst())
		ctxt.class = atom.FromString(ctxt.msgType)
	case "at":
		if ctxt.at != nil {
			return dupAttr(el, name)
		}
		ctxt.at = val.Ref()
	case "as":
		if ctxt.as != nil {
			return dupAttr(el, name)
		}
		ctxt.as = val.Ref()
	case "against":
		if ctxt.against != nil {
			return dupAttr(el, name)
		}
		ctxt.against = val.Ref()
	case "silently":
		// handled at frame push
	default:
		return verr.SetLast(verr.NotImplemented)
	}
	return nil
}

// observeOps registers an observer for the element: the observed
// target comes from `against` (a named variable) or `on` (any
// expression value), the event class from `for`. With `as`, the
// observer itself is bound as a named native value whose release
// revokes the registration. The element's children only execute when
// a matching message arrives.
var observeOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		fr := st.BottomFrame()
		ctxt := &observeCtxt{}
		fr.Ctxt = ctxt
		fr.CtxtDestroy = destroyObserveCtxt

		if err := walkAttrs(st, pos, observeAttrFound); err != nil {
			return ctxt, err
		}
		if ctxt.forVar == nil {
			return ctxt, verr.SetLast(verr.InvalidValue)
		}

		var observer *Observer
		var err error
		switch {
		case ctxt.against != nil && ctxt.against.IsString():
			name := ctxt.against.StringConst()
			named := st.FindNamedVar(name, pos.ParentElement())
			if named == nil {
				return ctxt, verr.SetLast(verr.EntityNotFound)
			}
			observer, err = resolveAndRegister(st, fr, named, ctxt.forVar,
				ctxt.class, ctxt.subType)
		case ctxt.on != nil:
			observer, err = resolveAndRegister(st, fr, ctxt.on, ctxt.forVar,
				ctxt.class, ctxt.subType)
		default:
			return ctxt, verr.SetLast(verr.InvalidValue)
		}
		if err != nil {
			return ctxt, err
		}

		if ctxt.as != nil && ctxt.as.IsString() {
			if err := bindObserverAs(st, fr, ctxt, observer); err != nil {
				return ctxt, err
			}
		}
		return ctxt, nil
	},

	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		destroyObserveCtxt(payload)
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},

	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		// Registration round: the body waits for messages.
		return nil
	},
}

// observeRunOps executes the children of an observe element when a
// matching message has been delivered.
var observeRunOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		// The frame is prepared by pushObserverFrame.
		return st.BottomFrame().Ctxt, nil
	},
	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},
	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		ctxt, ok := payload.(*observeCtxt)
		if !ok || ctxt == nil || !ctxt.rerun {
			return nil
		}
		fr := st.BottomFrame()
		return ctxt.walker.next(st, fr.Pos)
	},
}

// bindObserverAs wraps observer in a native value whose release
// revokes it, and binds the wrapper under the `as` name.
func bindObserverAs(st *Stack, fr *Frame, ctxt *observeCtxt, observer *Observer) error {
	wrapped, err := variant.MakeNative(observer, variant.NativeOps{
		OnRelease: func(entity interface{}) {
			if o, ok := entity.(*Observer); ok {
				o.stack.RevokeObserver(o)
			}
		},
	})
	if err != nil {
		st.RevokeObserver(observer)
		return err
	}
	defer wrapped.Unref()
	return bindWithAt(st, fr, ctxt.at, ctxt.as.StringConst(), wrapped)
}

func init() { registerOps("observe", observeOps) }
