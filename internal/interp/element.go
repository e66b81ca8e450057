package interp

import (
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// ElementOps is the capability table of an element kind. AfterPushed
// runs once after the frame is pushed and returns the frame payload;
// returning nil with no error, and no Ctxt set on the frame, marks the
// element complete (no child traversal). OnPopping destroys the payload and returns true to
// finalize the pop. Rerun is invoked when a post-yield continuation
// requests re-execution. SelectChild advances through the element's
// children in document order and returns nil when exhausted.
type ElementOps struct {
	AfterPushed func(st *Stack, pos *markup.Node) (interface{}, error)
	OnPopping   func(st *Stack, payload interface{}) bool
	Rerun       func(st *Stack, payload interface{}) bool
	SelectChild func(st *Stack, payload interface{}) *markup.Node
}

var opsRegistry = map[string]*ElementOps{}

func registerOps(tag string, ops *ElementOps) { opsRegistry[tag] = ops }

// OpsForElement selects the vtable for el by tag; unknown tags render
// as plain output elements.
func OpsForElement(el *markup.Node) *ElementOps {
	if ops, ok := opsRegistry[el.Tag]; ok {
		return ops
	}
	return plainOps
}

// childWalker advances through an element's child nodes. Non-element
// children are handled internally: content evaluates its expression
// and appends textual output, comments are skipped.
type childWalker struct {
	curr *markup.Node
}

func (w *childWalker) next(st *Stack, scope *markup.Node) *markup.Node {
	for {
		if w.curr == nil {
			w.curr = scope.FirstChild()
		} else {
			w.curr = w.curr.NextSibling()
		}
		if w.curr == nil {
			return nil
		}
		switch w.curr.Type {
		case markup.ElementNode:
			return w.curr
		case markup.ContentNode:
			onContent(st, w.curr)
		case markup.CommentNode:
			// no-op
		}
	}
}

// onContent evaluates a content node and appends its textual form to
// the frame's output element.
func onContent(st *Stack, node *markup.Node) {
	if st.except != verr.OK {
		return
	}
	fr := st.BottomFrame()
	v, err := EvalExpr(st, node.Text)
	if err != nil {
		verr.ClearLast()
		return
	}
	defer v.Unref()
	if fr.Output == nil {
		return
	}
	if v.IsString() {
		fr.Output.AppendContent(v.StringConst())
	} else {
		fr.Output.AppendContent(variant.StringifyPlain(v))
	}
}

// attrHandler consumes one evaluated attribute of an element.
type attrHandler func(st *Stack, el *markup.Node, name string, val *variant.Variant) error

// walkAttrs evaluates each attribute of el in document order and hands
// it to fn. Evaluation failures abort the walk.
func walkAttrs(st *Stack, el *markup.Node, fn attrHandler) error {
	for _, attr := range el.Attrs {
		val, err := EvalExpr(st, attr.Value)
		if err != nil {
			return err
		}
		err = fn(st, el, attr.Name, val)
		val.Unref()
		if err != nil {
			return err
		}
	}
	return nil
}

// dupAttr reports a repeated known attribute.
func dupAttr(el *markup.Node, name string) error {
	return verr.SetLast(verr.Duplicated)
}

// handleAfterPushedError routes an AfterPushed failure: a silently
// frame swallows it, otherwise the stack takes its exception path.
func handleAfterPushedError(st *Stack, fr *Frame, err error) {
	if err == nil {
		return
	}
	if fr.Silently {
		verr.ClearLast()
		return
	}
	st.SetExcept(verr.CodeOf(err))
}
