package interp

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	verr "velm/internal/errors"
	"velm/internal/variant"
)

// ExtraInfo carries optional settings for a new instance.
type ExtraInfo struct {
	// Seed pins the per-instance PRNG for reproducible runs; zero
	// draws a time seed.
	Seed int64
}

// Instance is the per-context runtime state: documents, session
// variables, timers, the message queue, and the built-in dynamic
// objects. An instance is attached for its whole lifetime.
type Instance struct {
	AppName    string
	RunnerName string
	ID         string

	docs        []*Document
	sessionVars map[string]*variant.Variant
	observers   []*Observer
	messages    []*message
	timers      *timerRuntime
	rng         *rand.Rand

	// Well-known roots held weakly by user code and strongly here;
	// cleanup cascades through them.
	timersVar      *variant.Variant
	timersListener *variant.Listener
	tVar           *variant.Variant
	sysVar         *variant.Variant
}

var (
	curMu   sync.Mutex
	current *Instance
)

// Current returns the attached instance, or nil.
func Current() *Instance {
	curMu.Lock()
	defer curMu.Unlock()
	return current
}

// Init attaches a new instance. A duplicate call without an
// intervening Cleanup fails with Duplicated.
func Init(appName, runnerName string, extra *ExtraInfo) verr.Code {
	curMu.Lock()
	defer curMu.Unlock()
	if current != nil {
		return verr.SetLast(verr.Duplicated)
	}
	if appName == "" {
		appName = "unknown"
	}
	if runnerName == "" {
		runnerName = "unknown"
	}

	seed := time.Now().UnixNano()
	if extra != nil && extra.Seed != 0 {
		seed = extra.Seed
	}

	variant.ResetStat()
	verr.ClearLast()

	inst := &Instance{
		AppName:     appName,
		RunnerName:  runnerName,
		ID:          uuid.NewString(),
		sessionVars: map[string]*variant.Variant{},
		timers:      &timerRuntime{},
		rng:         rand.New(rand.NewSource(seed)),
	}

	timersVar, err := variant.MakeSetByKeys("id")
	if err != nil {
		return verr.SetLast(verr.OutOfMemory)
	}
	inst.timersVar = timersVar
	l, err := timersVar.RegisterPostListener(variant.OpAll,
		func(source *variant.Variant, op variant.Op, args []*variant.Variant) bool {
			inst.syncTimersFromSet(op, args)
			return true
		})
	if err == nil {
		inst.timersListener = l
	}

	inst.tVar = makeTDict()
	inst.sysVar = makeSysObject(inst)

	current = inst
	return verr.OK
}

// Cleanup detaches and releases the current instance. It returns false
// when no instance is attached.
func Cleanup() bool {
	curMu.Lock()
	inst := current
	current = nil
	curMu.Unlock()
	if inst == nil {
		return false
	}

	// Release cascade over the known roots.
	for _, o := range append([]*Observer(nil), inst.observers...) {
		o.stack.RevokeObserver(o)
	}
	for _, m := range inst.messages {
		m.source.Unref()
	}
	inst.messages = nil
	for _, doc := range inst.docs {
		doc.release()
	}
	inst.docs = nil
	for _, v := range inst.sessionVars {
		v.Unref()
	}
	inst.sessionVars = map[string]*variant.Variant{}

	if inst.timersListener != nil {
		inst.timersVar.RevokeListener(inst.timersListener)
	}
	inst.timersVar.Unref()
	inst.tVar.Unref()
	inst.sysVar.Unref()
	inst.timers.timers = nil

	verr.ClearLast()
	return true
}

// BindSessionVariable binds a session-level variable on the attached
// instance.
func (inst *Instance) BindSessionVariable(name string, v *variant.Variant) bool {
	if name == "" || v == nil {
		verr.SetLast(verr.WrongArgs)
		return false
	}
	if old := inst.sessionVars[name]; old != nil {
		old.Unref()
	}
	inst.sessionVars[name] = v.Ref()
	return true
}

// BindSessionVariable binds name on the attached instance.
func BindSessionVariable(name string, v *variant.Variant) bool {
	inst := Current()
	if inst == nil {
		verr.SetLast(verr.NoInstance)
		return false
	}
	return inst.BindSessionVariable(name, v)
}

// TimersVar returns the $TIMERS collection.
func (inst *Instance) TimersVar() *variant.Variant { return inst.timersVar }

// TDict returns the per-instance scratch dictionary.
func (inst *Instance) TDict() *variant.Variant { return inst.tVar }

// Rand returns the per-instance PRNG.
func (inst *Instance) Rand() *rand.Rand { return inst.rng }

// Docs returns the loaded documents.
func (inst *Instance) Docs() []*Document { return inst.docs }

// GetLastError returns the last error code of the instance.
func GetLastError() int { return int(verr.Last()) }

// SetError records code as the last error. Without an attached
// instance it reports NoInstance.
func SetError(code int) int {
	if Current() == nil {
		return int(verr.NoInstance)
	}
	verr.SetLast(verr.Code(code))
	return int(verr.OK)
}

// GetErrorMessage returns the text for code.
func GetErrorMessage(code int) string { return verr.Message(verr.Code(code)) }
