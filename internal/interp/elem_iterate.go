package interp

import (
	verr "velm/internal/errors"
	"velm/internal/logical"
	"velm/internal/markup"
	"velm/internal/variant"
)

// iterateCtxt is the payload of an <iterate> element.
type iterateCtxt struct {
	on    *variant.Variant
	while string

	items  []*variant.Variant
	idx    int
	walker childWalker
}

func destroyIterateCtxt(p interface{}) {
	ctxt, ok := p.(*iterateCtxt)
	if !ok || ctxt == nil {
		return
	}
	if ctxt.on != nil {
		ctxt.on.Unref()
	}
	for _, it := range ctxt.items {
		it.Unref()
	}
	ctxt.items = nil
}

func iterateAttrFound(st *Stack, el *markup.Node, name string, val *variant.Variant) error {
	fr := st.BottomFrame()
	ctxt := fr.Ctxt.(*iterateCtxt)
	switch name {
	case "on":
		if ctxt.on != nil {
			return dupAttr(el, name)
		}
		ctxt.on = val.Ref()
	case "while":
		ctxt.while = val.StringConst()
	case "silently":
		// handled at frame push
	default:
		return verr.SetLast(verr.NotImplemented)
	}
	return nil
}

// collectItems snapshots the members of the iterated container so a
// body mutating it cannot invalidate the traversal.
func collectItems(on *variant.Variant) ([]*variant.Variant, error) {
	var items []*variant.Variant
	switch on.Kind() {
	case variant.KindArray:
		n, _ := on.ArraySize()
		for i := 0; i < n; i++ {
			v, err := on.ArrayGetAt(i)
			if err != nil {
				return nil, err
			}
			items = append(items, v.Ref())
		}
	case variant.KindSet:
		n, _ := on.SetSize()
		for i := 0; i < n; i++ {
			v, err := on.SetGetByIndex(i)
			if err != nil {
				return nil, err
			}
			items = append(items, v.Ref())
		}
	case variant.KindObject:
		for _, k := range on.ObjectKeys() {
			v, err := on.ObjectGet(k)
			if err != nil {
				return nil, err
			}
			items = append(items, v.Ref())
		}
	default:
		items = append(items, on.Ref())
	}
	return items, nil
}

// whileHolds evaluates the `while` condition against the current item
// (object items bind their own entries).
func whileHolds(ctxt *iterateCtxt, item *variant.Variant) bool {
	if ctxt.while == "" {
		return true
	}
	bindings := item
	if item.Kind() != variant.KindObject {
		bindings = nil
	}
	ok, err := logical.Eval(ctxt.while, bindings)
	if err != nil {
		verr.ClearLast()
		return false
	}
	return ok
}

// iterateOps runs its children once per member of `on`, binding the
// current item to the frame's `?` and `@` slots. An optional `while`
// logical expression stops the traversal when it turns false.
var iterateOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		fr := st.BottomFrame()
		ctxt := &iterateCtxt{}
		fr.Ctxt = ctxt
		fr.CtxtDestroy = destroyIterateCtxt

		if err := walkAttrs(st, pos, iterateAttrFound); err != nil {
			return ctxt, err
		}
		if ctxt.on == nil {
			return ctxt, verr.SetLast(verr.InvalidValue)
		}
		items, err := collectItems(ctxt.on)
		if err != nil {
			return ctxt, err
		}
		ctxt.items = items
		if len(items) == 0 {
			return ctxt, nil
		}
		if !whileHolds(ctxt, items[0]) {
			ctxt.idx = len(items)
			return ctxt, nil
		}
		fr.SetSymbol(SymbolQuestion, items[0])
		fr.SetSymbol(SymbolAt, items[0])
		return ctxt, nil
	},

	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		destroyIterateCtxt(payload)
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},

	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		ctxt, ok := payload.(*iterateCtxt)
		if !ok || ctxt == nil || ctxt.idx >= len(ctxt.items) {
			return nil
		}
		fr := st.BottomFrame()
		for {
			if child := ctxt.walker.next(st, fr.Pos); child != nil {
				return child
			}
			// Body exhausted for this item; advance.
			ctxt.idx++
			if ctxt.idx >= len(ctxt.items) {
				return nil
			}
			item := ctxt.items[ctxt.idx]
			if !whileHolds(ctxt, item) {
				ctxt.idx = len(ctxt.items)
				return nil
			}
			fr.SetSymbol(SymbolQuestion, item)
			fr.SetSymbol(SymbolAt, item)
			ctxt.walker = childWalker{}
		}
	},
}

func init() { registerOps("iterate", iterateOps) }
