package interp

import (
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// Symbol indexes the well-known positional bindings of a frame.
type Symbol int

const (
	SymbolQuestion Symbol = iota // result of the last suspending operation
	SymbolAt                     // current target
	SymbolExclamation            // user slot
	SymbolColon
	SymbolEqual
	SymbolPercent
	SymbolCaret

	nrSymbols
)

// Frame is one element-execution record on the interpreter stack.
type Frame struct {
	stack *Stack

	// Pos is the source element this frame executes.
	Pos *markup.Node
	// Ops is the element vtable selected by tag.
	Ops *ElementOps
	// Ctxt is the component-specific payload; ops manage it through
	// AfterPushed/OnPopping, CtxtDestroy is the release safety net.
	Ctxt        interface{}
	CtxtDestroy func(interface{})
	// Silently makes non-fatal errors fall back to defaults.
	Silently bool
	// Output is the output-document element this frame renders into.
	Output *OutputNode

	symbols [nrSymbols]*variant.Variant
	done    bool
	yield   *yieldState
}

type yieldState struct {
	cont func(fr *Frame, extra interface{})
}

// SetSymbol binds slot to v, releasing any previous binding.
func (fr *Frame) SetSymbol(slot Symbol, v *variant.Variant) {
	if old := fr.symbols[slot]; old != nil {
		old.Unref()
	}
	if v != nil {
		v.Ref()
	}
	fr.symbols[slot] = v
}

// Symbol returns the binding of slot, or nil.
func (fr *Frame) Symbol(slot Symbol) *variant.Variant {
	return fr.symbols[slot]
}

// SetQuestionVar sets the slot reserved for a yielded result.
func (fr *Frame) SetQuestionVar(v *variant.Variant) {
	fr.SetSymbol(SymbolQuestion, v)
}

func (fr *Frame) release() {
	for i := range fr.symbols {
		if fr.symbols[i] != nil {
			fr.symbols[i].Unref()
			fr.symbols[i] = nil
		}
	}
	if fr.Ctxt != nil && fr.CtxtDestroy != nil {
		fr.CtxtDestroy(fr.Ctxt)
	}
	fr.Ctxt = nil
	fr.Pos = nil
	fr.yield = nil
}

// Stack is the ordered frame sequence of one executing document.
type Stack struct {
	inst   *Instance
	doc    *Document
	co     *Coroutine
	frames []*Frame

	// except records the error that put the stack on its exception
	// path; frames unwind until it clears.
	except verr.Code
}

// Instance returns the owning instance.
func (st *Stack) Instance() *Instance { return st.inst }

// Doc returns the executing document.
func (st *Stack) Doc() *Document { return st.doc }

// NrFrames returns the frame count.
func (st *Stack) NrFrames() int { return len(st.frames) }

// BottomFrame returns the most recently pushed frame ("bottom" names
// the innermost element being executed), or nil on an empty stack.
func (st *Stack) BottomFrame() *Frame {
	if len(st.frames) == 0 {
		return nil
	}
	return st.frames[len(st.frames)-1]
}

// PushFrame appends a frame for pos at the tail. The frame inherits
// the output target of its parent and honors a `silently` flag
// attribute.
func (st *Stack) PushFrame(pos *markup.Node) *Frame {
	fr := &Frame{stack: st, Pos: pos}
	if parent := st.BottomFrame(); parent != nil {
		fr.Output = parent.Output
		fr.Silently = parent.Silently
	} else if st.doc != nil {
		fr.Output = st.doc.Output
	}
	if pos != nil && pos.FindAttr("silently") != nil {
		fr.Silently = true
	}
	st.frames = append(st.frames, fr)
	return fr
}

// PopFrame removes the tail frame and releases its resources.
func (st *Stack) PopFrame() {
	if len(st.frames) == 0 {
		return
	}
	fr := st.frames[len(st.frames)-1]
	st.frames = st.frames[:len(st.frames)-1]
	fr.release()
}

// SetExcept puts the stack on its exception path; subsequent frames
// unwind without selecting children.
func (st *Stack) SetExcept(code verr.Code) {
	if st.except == verr.OK {
		st.except = code
	}
}

// Except returns the pending exception code, or OK.
func (st *Stack) Except() verr.Code { return st.except }

// ClearExcept resets the exception path.
func (st *Stack) ClearExcept() { st.except = verr.OK }

// Yield suspends fr until an external event resumes it through cont.
// The continuation must run before the frame can progress.
func (st *Stack) Yield(fr *Frame, cont func(fr *Frame, extra interface{})) {
	fr.yield = &yieldState{cont: cont}
}

// resume runs the stored continuation and clears the pending yield.
func (fr *Frame) resume(extra interface{}) {
	y := fr.yield
	fr.yield = nil
	if y != nil && y.cont != nil {
		y.cont(fr, extra)
	}
}

// FindSymbolVar walks frames from the innermost outward and returns
// the first binding of slot, or nil.
func (st *Stack) FindSymbolVar(slot Symbol) *variant.Variant {
	for i := len(st.frames) - 1; i >= 0; i-- {
		if v := st.frames[i].symbols[slot]; v != nil {
			return v
		}
	}
	return nil
}

// release unwinds every frame, used by instance cleanup.
func (st *Stack) release() {
	for len(st.frames) > 0 {
		st.PopFrame()
	}
}
