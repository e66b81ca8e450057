package interp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verr "velm/internal/errors"
	"velm/internal/variant"
)

func setupInstance(t *testing.T) context.Context {
	t.Helper()
	code := Init("velm-test", t.Name(), &ExtraInfo{Seed: 1})
	require.Equal(t, verr.OK, code, "init instance")
	t.Cleanup(func() { Cleanup() })
	return context.Background()
}

func TestInitDuplicated(t *testing.T) {
	setupInstance(t)
	assert.Equal(t, verr.Duplicated, Init("velm-test", "again", nil))
}

func TestCleanupWithoutInstance(t *testing.T) {
	require.False(t, Cleanup())
	code := Init("velm-test", t.Name(), nil)
	require.Equal(t, verr.OK, code)
	assert.True(t, Cleanup())
	assert.False(t, Cleanup())
}

func TestSessionAndDocumentBinding(t *testing.T) {
	ctx := setupInstance(t)

	v := variant.MustString("session-value")
	defer v.Unref()
	assert.True(t, BindSessionVariable("sv", v))

	doc := LoadFromString(ctx, `<velm/>`)
	require.NotNil(t, doc)
	assert.True(t, BindDocumentVariable(doc, "dv", v))
	assert.False(t, BindDocumentVariable(nil, "dv", v))

	st := doc.co.stack
	assert.Equal(t, v, st.FindNamedVar("sv", doc.VDOM.RootElement()))
	assert.Equal(t, v, st.FindNamedVar("dv", doc.VDOM.RootElement()))
	assert.Nil(t, st.FindNamedVar("missing", doc.VDOM.RootElement()))
}

func TestStackPushPopBottom(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm><a/></velm>`)
	require.NotNil(t, doc)
	st := doc.co.stack

	require.Nil(t, st.BottomFrame())
	f1 := st.PushFrame(doc.VDOM.RootElement())
	f2 := st.PushFrame(doc.VDOM.RootElement().FirstChildElement())
	assert.Equal(t, 2, st.NrFrames())
	assert.Equal(t, f2, st.BottomFrame(), "bottom is the most recently pushed frame")

	released := false
	f2.Ctxt = "payload"
	f2.CtxtDestroy = func(interface{}) { released = true }
	q := variant.MakeULongInt(7)
	f2.SetQuestionVar(q)
	assert.Equal(t, 2, q.RefCount())

	st.PopFrame()
	assert.True(t, released, "pop runs the context destructor")
	assert.Equal(t, 1, q.RefCount(), "pop releases symbol slots")
	q.Unref()
	assert.Equal(t, f1, st.BottomFrame())
	st.PopFrame()
	assert.Nil(t, st.BottomFrame())
}

func TestRunRendersDocument(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm><div id="main">hello</div></velm>`)
	require.NotNil(t, doc)

	require.True(t, Run(ctx, nil, nil))
	html := doc.Output.HTML()
	assert.Contains(t, html, `<div id="main">hello</div>`)
	assert.Equal(t, coDone, doc.co.state)
}

func TestIterateBindsCurrentItem(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<init as="items" at="_root" with='["a","b","c"]'/>`+
		`<ul><iterate on="$items"><li>$?</li></iterate></ul>`+
		`</velm>`)
	require.NotNil(t, doc)

	require.True(t, Run(ctx, nil, nil))
	html := doc.Output.HTML()
	assert.Contains(t, html, "<li>a</li><li>b</li><li>c</li>")
}

func TestIterateWhileStops(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<init as="rows" at="_root" with='[{"n":1},{"n":2},{"n":9}]'/>`+
		`<iterate on="$rows" while="n < 3"><p>row</p></iterate>`+
		`</velm>`)
	require.NotNil(t, doc)

	require.True(t, Run(ctx, nil, nil))
	assert.Equal(t, 2, strings.Count(doc.Output.HTML(), "<p>row</p>"))
}

// TestObserveVariantMutations covers the mutable-value observer path:
// one message per matching post-listener per mutation, delivered at
// the next yield boundary in FIFO order.
func TestObserveVariantMutations(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<init as="data" at="_root" with='{"seed":"x"}'/>`+
		`<observe against="data" for="grow"><p>grew</p></observe>`+
		`<observe against="data" for="change"><p>changed</p></observe>`+
		`<observe against="data" for="shrink"><p>shrunk</p></observe>`+
		`<update on="$data" to="merge" with='{"fresh":"y"}'/>`+
		`<update on="$data" to="merge" with='{"seed":"z"}'/>`+
		`<update on="$data" to="displace" with='{}'/>`+
		`</velm>`)
	require.NotNil(t, doc)

	var delivered []string
	ok := Run(ctx, nil, func(d *Document, event *variant.Variant) int {
		typ, err := event.ObjectGet("type")
		require.NoError(t, err)
		delivered = append(delivered, typ.StringConst())
		return 0
	})
	require.True(t, ok)

	assert.Equal(t, []string{"grow", "change", "shrink", "shrink"}, delivered)

	html := doc.Output.HTML()
	assert.Equal(t, 1, strings.Count(html, "<p>grew</p>"))
	assert.Equal(t, 1, strings.Count(html, "<p>changed</p>"))
	assert.Equal(t, 2, strings.Count(html, "<p>shrunk</p>"))
}

func TestSleepYieldsAndResumes(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm><sleep for="50ms"/></velm>`)
	require.NotNil(t, doc)

	start := time.Now()
	require.True(t, Run(ctx, nil, nil))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Equal(t, coDone, doc.co.state)
	assert.Zero(t, doc.co.stack.NrFrames(), "frame popped cleanly")
}

func TestSleepContinuationSetsQuestionVar(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm><sleep for="5ms"/></velm>`)
	require.NotNil(t, doc)

	st := doc.co.stack
	sleepEl := doc.VDOM.RootElement().FirstChildElement()
	require.NotNil(t, sleepEl)

	pushElementFrame(st, sleepEl)
	fr := st.BottomFrame()
	require.NotNil(t, fr.yield, "sleep yields after arming its timer")

	time.Sleep(10 * time.Millisecond)
	Current().expireTimers(time.Now())

	require.Nil(t, fr.yield)
	q := fr.Symbol(SymbolQuestion)
	require.NotNil(t, q)
	assert.Equal(t, variant.KindULongInt, q.Kind())
	assert.Equal(t, uint64(0), q.ULongInt())
}

func TestTimersCollectionDrivesObservers(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<update on="$TIMERS" to="displace" with='[{"id":"clock","interval":20,"active":"yes"}]'/>`+
		`<observe on="$TIMERS" for="expired:clock"><p>tick</p></observe>`+
		`</velm>`)
	require.NotNil(t, doc)

	expired := 0
	ok := Run(ctx, nil, func(d *Document, event *variant.Variant) int {
		typ, err := event.ObjectGet("type")
		require.NoError(t, err)
		if typ.StringConst() == "expired" {
			sub, err := event.ObjectGet("subType")
			require.NoError(t, err)
			assert.Equal(t, "clock", sub.StringConst())
			expired++
		}
		if expired >= 2 {
			return 1
		}
		return 0
	})
	require.True(t, ok, "terminal handler return ends the loop")
	assert.GreaterOrEqual(t, expired, 2)
	assert.GreaterOrEqual(t, strings.Count(doc.Output.HTML(), "<p>tick</p>"), 1)
}

func TestDuplicateAttributeFailsElement(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<init as="a" as="b" with="x"/>`+
		`</velm>`)
	require.NotNil(t, doc)

	require.True(t, Run(ctx, nil, nil))
	_, ok := doc.docVars["a"]
	assert.False(t, ok, "duplicated attribute aborts the element")
}

func TestParseSleepFor(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"10ns", 10, true},
		{"10us", 10_000, true},
		{"50ms", 50_000_000, true},
		{"2s", 2_000_000_000, true},
		{"1m", 60_000_000_000, true},
		{"1h", 3_600_000_000_000, true},
		{"1d", 86_400_000_000_000, true},
		{"-5ms", 0, true},
		{"5", 0, false},
		{"ms", 0, false},
		{"5w", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := parseSleepFor(tt.in)
		if tt.ok {
			require.NoError(t, err, "parseSleepFor(%q)", tt.in)
			assert.Equal(t, tt.want, got, "parseSleepFor(%q)", tt.in)
		} else {
			assert.Error(t, err, "parseSleepFor(%q)", tt.in)
		}
	}
}
