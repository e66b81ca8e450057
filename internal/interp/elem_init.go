package interp

import (
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// initCtxt collects the attributes of an <init> element.
type initCtxt struct {
	as       *variant.Variant
	at       *variant.Variant
	with     *variant.Variant
	uniquely bool
}

func destroyInitCtxt(p interface{}) {
	if ctxt, ok := p.(*initCtxt); ok && ctxt != nil {
		if ctxt.as != nil {
			ctxt.as.Unref()
		}
		if ctxt.at != nil {
			ctxt.at.Unref()
		}
		if ctxt.with != nil {
			ctxt.with.Unref()
		}
	}
}

// initOps binds a value to a name in an enclosing scope. The value
// comes from `with` or from the element's content; `uniquely` turns an
// array into a set deduplicated by serialized form, and `against`
// style key lists name the set's projection.
var initOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		fr := st.BottomFrame()
		ctxt := &initCtxt{}
		fr.Ctxt = ctxt
		fr.CtxtDestroy = destroyInitCtxt

		var uniqKeys string
		err := walkAttrs(st, pos, func(st *Stack, el *markup.Node, name string, val *variant.Variant) error {
			switch name {
			case "as":
				if ctxt.as != nil {
					return dupAttr(el, name)
				}
				ctxt.as = val.Ref()
			case "at":
				if ctxt.at != nil {
					return dupAttr(el, name)
				}
				ctxt.at = val.Ref()
			case "with":
				if ctxt.with != nil {
					return dupAttr(el, name)
				}
				ctxt.with = val.Ref()
			case "uniquely":
				ctxt.uniquely = true
			case "against":
				uniqKeys = val.StringConst()
			case "silently":
				// handled at frame push
			default:
				return verr.SetLast(verr.NotImplemented)
			}
			return nil
		})
		if err != nil {
			return ctxt, err
		}

		if ctxt.as == nil || !ctxt.as.IsString() {
			return ctxt, verr.SetLast(verr.InvalidValue)
		}

		value := ctxt.with
		if value == nil {
			// The first content child is the literal payload.
			for child := pos.FirstChild(); child != nil; child = child.NextSibling() {
				if child.Type == markup.ContentNode {
					v, err := EvalExpr(st, child.Text)
					if err != nil {
						return ctxt, err
					}
					value = v
					defer value.Unref()
					break
				}
			}
		}
		if value == nil {
			return ctxt, verr.SetLast(verr.NoData)
		}

		if ctxt.uniquely {
			uniq, err := makeUniqueSet(uniqKeys, value)
			if err != nil {
				return ctxt, err
			}
			defer uniq.Unref()
			if err := bindWithAt(st, fr, ctxt.at, ctxt.as.StringConst(), uniq); err != nil {
				return ctxt, err
			}
			return ctxt, nil
		}

		if err := bindWithAt(st, fr, ctxt.at, ctxt.as.StringConst(), value); err != nil {
			return ctxt, err
		}
		return ctxt, nil
	},

	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		destroyInitCtxt(payload)
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},

	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		// Content was consumed by AfterPushed; nothing executes.
		return nil
	},
}

// makeUniqueSet copies the members of an array (or the value itself)
// into a set keyed by keys.
func makeUniqueSet(keys string, value *variant.Variant) (*variant.Variant, error) {
	uniq, err := variant.MakeSetByKeys(keys)
	if err != nil {
		return nil, err
	}
	if value.Kind() == variant.KindArray {
		n, _ := value.ArraySize()
		for i := 0; i < n; i++ {
			m, err := value.ArrayGetAt(i)
			if err != nil {
				uniq.Unref()
				return nil, err
			}
			if _, err := uniq.SetAdd(m, false); err != nil {
				uniq.Unref()
				return nil, err
			}
		}
		return uniq, nil
	}
	if _, err := uniq.SetAdd(value, false); err != nil {
		uniq.Unref()
		return nil, err
	}
	return uniq, nil
}

func init() { registerOps("init", initOps) }
