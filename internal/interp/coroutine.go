package interp

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"

	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// coState tracks one document coroutine.
type coState int

const (
	coReady coState = iota
	coWaiting
	coObserving
	coDone
)

// observerRun is a scheduled execution of an observer body.
type observerRun struct {
	obs *Observer
	msg *message
}

// Coroutine drives one document's stack cooperatively.
type Coroutine struct {
	stack   *Stack
	state   coState
	started bool
	pending []*observerRun
}

func (co *Coroutine) scheduleObserverRun(o *Observer, msg *message) {
	co.pending = append(co.pending, &observerRun{obs: o, msg: msg})
	if co.state == coObserving {
		co.state = coReady
	}
}

// runnable reports whether stepping the coroutine can make progress.
func (co *Coroutine) runnable() bool {
	switch co.state {
	case coReady:
		return true
	case coWaiting:
		fr := co.stack.BottomFrame()
		return fr == nil || fr.yield == nil
	}
	return false
}

// hasLiveObservers reports whether any registration can still wake
// this coroutine.
func (co *Coroutine) hasLiveObservers() bool {
	for _, o := range co.stack.inst.observers {
		if !o.revoked && o.stack == co.stack {
			return true
		}
	}
	return false
}

// step advances the coroutine by one child-dispatch step: select a
// child and push it, or pop the finished frame.
func (co *Coroutine) step() {
	st := co.stack
	fr := st.BottomFrame()

	if fr == nil {
		if len(co.pending) > 0 {
			run := co.pending[0]
			co.pending = co.pending[1:]
			pushObserverFrame(st, run)
			return
		}
		if !co.started {
			co.started = true
			root := st.doc.VDOM.RootElement()
			if root == nil {
				co.state = coDone
				return
			}
			pushElementFrame(st, root)
			return
		}
		// The pass is over; stay alive while observers can still
		// fire, otherwise finish.
		if co.hasLiveObservers() {
			co.state = coObserving
		} else {
			co.state = coDone
		}
		return
	}

	if fr.yield != nil {
		co.state = coWaiting
		return
	}
	co.state = coReady

	var child *markup.Node
	if st.except == verr.OK && !fr.done && fr.Ops.SelectChild != nil {
		child = fr.Ops.SelectChild(st, fr.Ctxt)
	}
	if child != nil {
		pushElementFrame(st, child)
		return
	}

	if fr.Ops.OnPopping != nil {
		fr.Ops.OnPopping(st, fr.Ctxt)
	}
	st.PopFrame()
	if st.BottomFrame() == nil && st.except != verr.OK {
		clog.ErrorContextf(context.Background(), "document excepted: %d (%s)",
			int(st.except), verr.Message(st.except))
		st.ClearExcept()
	}
}

// pushElementFrame pushes a frame for el and runs its AfterPushed. A
// nil payload with no error, when AfterPushed left no Ctxt on the
// frame either, marks the element complete.
func pushElementFrame(st *Stack, el *markup.Node) {
	fr := st.PushFrame(el)
	fr.Ops = OpsForElement(el)
	if fr.Ops.AfterPushed == nil {
		fr.done = true
		return
	}
	payload, err := fr.Ops.AfterPushed(st, el)
	if err != nil {
		handleAfterPushedError(st, fr, err)
		return
	}
	if payload == nil && fr.Ctxt == nil {
		fr.done = true
	}
}

// pushObserverFrame reruns the body of an observer's element in
// response to a delivered message.
func pushObserverFrame(st *Stack, run *observerRun) {
	fr := st.PushFrame(run.obs.Element)
	fr.Output = run.obs.OutputNode
	fr.Ops = observeRunOps
	fr.Ctxt = &observeCtxt{rerun: true}
	fr.CtxtDestroy = destroyObserveCtxt
}

// EventHandler receives delivered events during Run; a non-zero return
// terminates the loop.
type EventHandler func(doc *Document, event *variant.Variant) int

// Run drives the event loop until every document finishes, the
// instance quiesces, or the handler turns terminal. A non-nil request
// is bound as the session variable `REQ`.
func Run(ctx context.Context, request *variant.Variant, handler EventHandler) bool {
	inst := Current()
	if inst == nil {
		verr.SetLast(verr.NoInstance)
		return false
	}
	return inst.run(ctx, request, handler)
}

func (inst *Instance) run(ctx context.Context, request *variant.Variant, handler EventHandler) bool {
	log := clog.FromContext(ctx)

	if request != nil {
		inst.BindSessionVariable("REQ", request)
	}
	for _, doc := range inst.docs {
		if doc.co == nil {
			doc.attach(inst)
		}
	}

	for {
		if ctx.Err() != nil {
			return false
		}

		progressed := false
		for _, doc := range inst.docs {
			co := doc.co
			for co.state != coDone && co.runnable() {
				co.step()
				progressed = true
			}
		}

		delivered, terminal := inst.drainMessages(handler)
		if terminal {
			return true
		}
		if delivered > 0 {
			progressed = true
		}

		allDone := true
		for _, doc := range inst.docs {
			if doc.co.state != coDone {
				allDone = false
			}
		}
		if allDone {
			return true
		}
		if progressed {
			continue
		}

		deadline, armed := inst.timers.nextDeadline()
		if !armed {
			// No timers, no messages, nothing runnable: the loop
			// has quiesced.
			log.Debug("run loop quiesced")
			return true
		}

		if wait := time.Until(deadline); wait > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(wait):
			}
		}
		inst.expireTimers(time.Now())
	}
}

// expireTimers fires the due timers: yielded-frame timers resume their
// continuations; collection timers post "expired:<id>" messages.
func (inst *Instance) expireTimers(now time.Time) {
	for _, t := range inst.timers.expire(now) {
		if t.frame != nil && t.cont != nil {
			fr := t.frame
			if fr.yield != nil {
				fr.yield = nil
				fr.stack.co.state = coReady
				t.cont(fr, nil)
				if fr.Ops != nil && fr.Ops.Rerun != nil {
					fr.Ops.Rerun(fr.stack, fr.Ctxt)
				}
			}
			continue
		}
		inst.dispatchMessage(inst.timersVar, "expired", t.ID)
	}
}
