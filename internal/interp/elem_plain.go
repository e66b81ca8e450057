package interp

import (
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// plainCtxt is the payload of a rendering element: its child walker
// and the output element it created.
type plainCtxt struct {
	walker childWalker
	out    *OutputNode
}

func destroyPlainCtxt(p interface{}) {}

// plainOps renders an element verbatim into the output document and
// walks its children. Every tag without registered ops gets these.
var plainOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		fr := st.BottomFrame()
		ctxt := &plainCtxt{}
		fr.Ctxt = ctxt
		fr.CtxtDestroy = destroyPlainCtxt

		out := fr.Output.AppendElement(pos.Tag)
		for _, attr := range pos.Attrs {
			val, err := EvalExpr(st, attr.Value)
			if err != nil {
				if !fr.Silently {
					return ctxt, err
				}
				verr.ClearLast()
				continue
			}
			if val.IsString() {
				out.SetAttr(attr.Name, val.StringConst())
			} else {
				out.SetAttr(attr.Name, variant.StringifyPlain(val))
			}
			val.Unref()
		}
		ctxt.out = out
		fr.Output = out
		return ctxt, nil
	},

	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},

	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		ctxt, ok := payload.(*plainCtxt)
		if !ok || ctxt == nil {
			return nil
		}
		fr := st.BottomFrame()
		return ctxt.walker.next(st, fr.Pos)
	},
}
