package interp

import (
	"time"

	"github.com/ncruces/go-strftime"

	verr "velm/internal/errors"
	"velm/internal/variant"
)

// makeTDict builds the per-instance scratch object user code reaches
// as $T: a plain dictionary plus a `get` accessor that falls back to
// the requested key itself, so untranslated texts pass through.
func makeTDict() *variant.Variant {
	dict := variant.MakeObject()
	get, err := variant.MakeDynamic(
		func(root *variant.Variant, args []*variant.Variant) (*variant.Variant, error) {
			if len(args) < 1 || !args[0].IsString() {
				return nil, verr.SetLast(verr.WrongArgs)
			}
			key := args[0].StringConst()
			if v, err := dict.ObjectGet(key); err == nil {
				return v.Ref(), nil
			}
			verr.ClearLast()
			return variant.MustString(key), nil
		}, nil)

	mapv := variant.MakeObject()
	t := variant.MakeObject("map", mapv)
	mapv.Unref()
	if err == nil {
		t.ObjectSet("get", get)
		get.Unref()
	}
	// The dictionary itself backs `get`; expose it for update/merge.
	t.ObjectSet("dict", dict)
	dict.Unref()
	return t
}

// makeSysObject builds the $SYS object of dynamic getters: time
// formatting and per-instance randomness.
func makeSysObject(inst *Instance) *variant.Variant {
	timeGetter, _ := variant.MakeDynamic(
		func(root *variant.Variant, args []*variant.Variant) (*variant.Variant, error) {
			layout := "%c"
			if len(args) > 0 && args[0].IsString() {
				layout = args[0].StringConst()
			}
			return variant.MustString(strftime.Format(layout, time.Now())), nil
		}, nil)

	randomGetter, _ := variant.MakeDynamic(
		func(root *variant.Variant, args []*variant.Variant) (*variant.Variant, error) {
			if len(args) > 0 {
				max := int64(args[0].CastToNumber())
				if max > 0 {
					return variant.MakeLongInt(inst.rng.Int63n(max)), nil
				}
			}
			return variant.MakeNumber(inst.rng.Float64()), nil
		}, nil)

	localeGetter, _ := variant.MakeDynamic(
		func(root *variant.Variant, args []*variant.Variant) (*variant.Variant, error) {
			return variant.MustString("en_US"), nil
		}, nil)

	sys := variant.MakeObject()
	for name, g := range map[string]*variant.Variant{
		"time":   timeGetter,
		"random": randomGetter,
		"locale": localeGetter,
	} {
		if g != nil {
			sys.ObjectSet(name, g)
			g.Unref()
		}
	}
	return sys
}
