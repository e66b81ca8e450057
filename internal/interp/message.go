package interp

import (
	"velm/internal/atom"
	"velm/internal/variant"
)

// message carries one queued observer event: the mutated (or firing)
// source, the operation name and an optional sub-type.
type message struct {
	source *variant.Variant
	typ    string
	sub    string
}

// dispatchMessage enqueues a message in FIFO order; it is drained at
// the next yield boundary of the run loop.
func (inst *Instance) dispatchMessage(source *variant.Variant, typ, sub string) {
	inst.messages = append(inst.messages, &message{
		source: source.Ref(),
		typ:    typ,
		sub:    sub,
	})
}

// matches reports whether o should fire for msg.
func (o *Observer) matches(msg *message) bool {
	if o.revoked || o.Observed != msg.source {
		return false
	}
	if o.Class != atom.TryString(msg.typ) {
		return false
	}
	if o.SubType != "" && o.SubType != msg.sub {
		return false
	}
	return true
}

// drainMessages matches every queued message against the observers and
// schedules the matching observer bodies on their coroutines. It
// returns the number of deliveries.
func (inst *Instance) drainMessages(handler EventHandler) (int, bool) {
	delivered := 0
	for len(inst.messages) > 0 {
		msg := inst.messages[0]
		inst.messages = inst.messages[1:]

		// Snapshot: an observer body may register or revoke
		// observers while messages deliver.
		snapshot := append([]*Observer(nil), inst.observers...)
		for _, o := range snapshot {
			if !o.matches(msg) {
				continue
			}
			delivered++
			o.stack.co.scheduleObserverRun(o, msg)
		}

		if handler != nil {
			tv := variant.MustString(msg.typ)
			sv := variant.MustString(msg.sub)
			event := variant.MakeObject("type", tv, "subType", sv)
			tv.Unref()
			sv.Unref()
			terminal := handler(nil, event) != 0
			event.Unref()
			if terminal {
				msg.source.Unref()
				return delivered, true
			}
		}
		msg.source.Unref()
	}
	return delivered, false
}
