package interp

import (
	"strconv"
	"strings"
	"time"

	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// sleepCtxt is the payload of a <sleep> element.
type sleepCtxt struct {
	with  *variant.Variant
	vfor  *variant.Variant
	forNS int64
	timer *Timer
}

func destroySleepCtxt(p interface{}) {
	ctxt, ok := p.(*sleepCtxt)
	if !ok || ctxt == nil {
		return
	}
	if ctxt.with != nil {
		ctxt.with.Unref()
	}
	if ctxt.vfor != nil {
		ctxt.vfor.Unref()
	}
	if ctxt.timer != nil {
		ctxt.timer.stop()
	}
}

// parseSleepFor reads "<n><unit>" with unit in ns|us|ms|s|m|h|d and
// returns the duration in nanoseconds.
func parseSleepFor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, verr.SetLast(verr.InvalidValue)
	}
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || (end == 0 && (s[end] == '+' || s[end] == '-'))) {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, verr.SetLast(verr.InvalidValue)
	}
	if n < 0 {
		n = 0
	}
	switch s[end:] {
	case "ns":
		return n, nil
	case "us":
		return n * 1000, nil
	case "ms":
		return n * 1000 * 1000, nil
	case "s":
		return n * 1000 * 1000 * 1000, nil
	case "m":
		return n * 1000 * 1000 * 1000 * 60, nil
	case "h":
		return n * 1000 * 1000 * 1000 * 60 * 60, nil
	case "d":
		return n * 1000 * 1000 * 1000 * 60 * 60 * 24, nil
	}
	return 0, verr.SetLast(verr.InvalidValue)
}

func sleepAttrFound(st *Stack, el *markup.Node, name string, val *variant.Variant) error {
	fr := st.BottomFrame()
	ctxt := fr.Ctxt.(*sleepCtxt)
	switch name {
	case "with":
		if ctxt.with != nil {
			return dupAttr(el, name)
		}
		secs, ok := val.CastToLongInt(true)
		if !ok {
			return verr.SetLast(verr.InvalidValue)
		}
		if secs < 0 {
			secs = 0
		}
		ctxt.with = val.Ref()
		ctxt.forNS = secs * 1000 * 1000 * 1000
	case "for":
		if !val.IsString() {
			return verr.SetLast(verr.InvalidValue)
		}
		ns, err := parseSleepFor(val.StringConst())
		if err != nil {
			return err
		}
		ctxt.vfor = val.Ref()
		ctxt.forNS = ns
	case "silently":
		// handled at frame push
	default:
		return verr.SetLast(verr.NotImplemented)
	}
	return nil
}

// sleepContinuation resumes the frame after the timer fires: the
// question variable receives ULongInt(0) for an uninterrupted sleep.
func sleepContinuation(fr *Frame, extra interface{}) {
	ctxt, ok := fr.Ctxt.(*sleepCtxt)
	if ok && ctxt.timer != nil {
		ctxt.timer.Processed()
	}
	result := variant.MakeULongInt(0)
	fr.SetQuestionVar(result)
	result.Unref()
}

// sleepOps suspends the frame on a one-shot timer. Granularity is
// clamped up to one millisecond.
var sleepOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		fr := st.BottomFrame()
		ctxt := &sleepCtxt{}
		fr.Ctxt = ctxt
		fr.CtxtDestroy = destroySleepCtxt

		if err := walkAttrs(st, pos, sleepAttrFound); err != nil {
			return ctxt, err
		}

		if ctxt.forNS < 1*1000*1000 {
			ctxt.forNS = 1 * 1000 * 1000
		}

		ctxt.timer = st.inst.timers.create("", time.Duration(ctxt.forNS), true,
			fr, sleepContinuation)
		ctxt.timer.start(time.Now())
		st.Yield(fr, sleepContinuation)
		verr.ClearLast()

		// No element to process once the timer is armed.
		return nil, nil
	},

	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		destroySleepCtxt(payload)
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},

	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		return nil
	},
}

func init() { registerOps("sleep", sleepOps) }
