package interp

import (
	"sort"
	"time"

	"github.com/google/uuid"

	verr "velm/internal/errors"
	"velm/internal/variant"
)

// Timer is a scheduled expiration. A timer bound to a yielded frame
// resumes that frame's continuation; an unbound timer posts an
// "expired:<id>" message against the timer collection.
type Timer struct {
	ID       string
	Interval time.Duration
	Active   bool
	OneShot  bool

	deadline time.Time
	seq      int

	frame *Frame
	cont  func(fr *Frame, extra interface{})

	processed bool
}

// timerRuntime keeps the live timers of one instance. Expirations fire
// in monotonic deadline order; equal deadlines fire in insertion
// order.
type timerRuntime struct {
	timers []*Timer
	seq    int
}

// create registers a timer. An empty id draws a fresh identity.
func (tr *timerRuntime) create(id string, interval time.Duration, oneShot bool,
	frame *Frame, cont func(fr *Frame, extra interface{})) *Timer {

	if id == "" {
		id = uuid.NewString()
	}
	tr.seq++
	t := &Timer{
		ID:       id,
		Interval: interval,
		OneShot:  oneShot,
		seq:      tr.seq,
		frame:    frame,
		cont:     cont,
	}
	tr.timers = append(tr.timers, t)
	return t
}

// start arms the timer from now.
func (t *Timer) start(now time.Time) {
	t.Active = true
	t.deadline = now.Add(t.Interval)
}

// stop deactivates the timer; its next scheduled delivery is
// discarded.
func (t *Timer) stop() { t.Active = false }

// Processed marks a one-shot delivery as consumed by its continuation.
func (t *Timer) Processed() { t.processed = true }

func (tr *timerRuntime) byID(id string) *Timer {
	for _, t := range tr.timers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (tr *timerRuntime) remove(t *Timer) {
	for i, cand := range tr.timers {
		if cand == t {
			tr.timers = append(tr.timers[:i], tr.timers[i+1:]...)
			return
		}
	}
}

// nextDeadline returns the earliest active deadline.
func (tr *timerRuntime) nextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for _, t := range tr.timers {
		if !t.Active {
			continue
		}
		if !found || t.deadline.Before(best) {
			best = t.deadline
			found = true
		}
	}
	return best, found
}

// expire pops the timers due at now, ordered by deadline then
// insertion. Repeating timers re-arm; one-shot timers deactivate.
func (tr *timerRuntime) expire(now time.Time) []*Timer {
	var due []*Timer
	for _, t := range tr.timers {
		if t.Active && !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].seq < due[j].seq
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		if t.OneShot {
			t.Active = false
		} else {
			t.deadline = t.deadline.Add(t.Interval)
		}
	}
	return due
}

// syncTimersFromSet mirrors a mutation of the $TIMERS collection into
// the runtime: a grown member creates and arms a timer, a changed
// member re-arms it, a shrunk member stops it.
func (inst *Instance) syncTimersFromSet(op variant.Op, args []*variant.Variant) {
	var member *variant.Variant
	switch op {
	case variant.OpGrow:
		if len(args) > 0 {
			member = args[0]
		}
	case variant.OpChange:
		if len(args) > 1 {
			member = args[1]
		}
	case variant.OpShrink:
		if len(args) > 0 {
			member = args[0]
		}
	}
	if member == nil || member.Kind() != variant.KindObject {
		return
	}

	idVar, err := member.ObjectGet("id")
	if err != nil {
		verr.ClearLast()
		return
	}
	id := idVar.StringConst()
	if id == "" {
		return
	}

	if op == variant.OpShrink {
		if t := inst.timers.byID(id); t != nil {
			t.stop()
			inst.timers.remove(t)
		}
		return
	}

	interval := time.Duration(0)
	if iv, err := member.ObjectGet("interval"); err == nil {
		interval = time.Duration(iv.CastToNumber()) * time.Millisecond
	} else {
		verr.ClearLast()
	}
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	active := true
	if av, err := member.ObjectGet("active"); err == nil {
		switch {
		case av.IsString():
			s := av.StringConst()
			active = s == "yes" || s == "true"
		default:
			active = av.CastToBoolean()
		}
	} else {
		verr.ClearLast()
	}

	t := inst.timers.byID(id)
	if t == nil {
		t = inst.timers.create(id, interval, false, nil, nil)
	} else {
		t.Interval = interval
	}
	if active {
		t.start(time.Now())
	} else {
		t.stop()
	}
}
