package interp

import (
	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// updateCtxt is the payload of an <update> element.
type updateCtxt struct {
	on   *variant.Variant
	to   string
	with *variant.Variant
	at   *variant.Variant
}

func destroyUpdateCtxt(p interface{}) {
	ctxt, ok := p.(*updateCtxt)
	if !ok || ctxt == nil {
		return
	}
	for _, v := range []*variant.Variant{ctxt.on, ctxt.with, ctxt.at} {
		if v != nil {
			v.Unref()
		}
	}
}

func updateAttrFound(st *Stack, el *markup.Node, name string, val *variant.Variant) error {
	fr := st.BottomFrame()
	ctxt := fr.Ctxt.(*updateCtxt)
	switch name {
	case "on":
		if ctxt.on != nil {
			return dupAttr(el, name)
		}
		ctxt.on = val.Ref()
	case "to":
		if ctxt.to != "" {
			return dupAttr(el, name)
		}
		ctxt.to = val.StringConst()
	case "with":
		if ctxt.with != nil {
			return dupAttr(el, name)
		}
		ctxt.with = val.Ref()
	case "at":
		if ctxt.at != nil {
			return dupAttr(el, name)
		}
		ctxt.at = val.Ref()
	case "silently":
		// handled at frame push
	default:
		return verr.SetLast(verr.NotImplemented)
	}
	return nil
}

// updateOps mutates a container in place: `append` adds members,
// `displace` replaces the whole content, `merge` upserts object
// entries. When the target is an element collection (a selection
// value or a "#id"/".class" string), `at` names the facet to rewrite:
// `textContent` (the default) or an attribute name.
var updateOps = &ElementOps{
	AfterPushed: func(st *Stack, pos *markup.Node) (interface{}, error) {
		fr := st.BottomFrame()
		ctxt := &updateCtxt{}
		fr.Ctxt = ctxt
		fr.CtxtDestroy = destroyUpdateCtxt

		if err := walkAttrs(st, pos, updateAttrFound); err != nil {
			return ctxt, err
		}
		if ctxt.on == nil {
			return ctxt, verr.SetLast(verr.InvalidValue)
		}

		value := ctxt.with
		if value == nil {
			for child := pos.FirstChild(); child != nil; child = child.NextSibling() {
				if child.Type == markup.ContentNode {
					v, err := EvalExpr(st, child.Text)
					if err != nil {
						return ctxt, err
					}
					ctxt.with = v
					value = v
					break
				}
			}
		}
		if value == nil {
			return ctxt, verr.SetLast(verr.NoData)
		}

		if err := applyUpdate(st, ctxt, value); err != nil {
			return ctxt, err
		}
		return ctxt, nil
	},

	OnPopping: func(st *Stack, payload interface{}) bool {
		fr := st.BottomFrame()
		destroyUpdateCtxt(payload)
		if fr != nil {
			fr.Ctxt = nil
		}
		return true
	},

	SelectChild: func(st *Stack, payload interface{}) *markup.Node {
		return nil
	},
}

func applyUpdate(st *Stack, ctxt *updateCtxt, value *variant.Variant) error {
	target := ctxt.on

	// Updates addressed at the output document: the target wraps an
	// element collection and `at` names the facet to rewrite.
	if target.Kind() == variant.KindNative {
		if coll, ok := target.NativeEntity().(*elementCollection); ok {
			return updateElements(st, coll, ctxt, value)
		}
	}
	if target.IsString() {
		s := target.StringConst()
		if len(s) > 0 && (s[0] == '#' || s[0] == '.') {
			coll := &elementCollection{
				Selector: s,
				Elements: st.doc.Output.SelectByCSS(s),
			}
			return updateElements(st, coll, ctxt, value)
		}
	}

	to := ctxt.to
	if to == "" {
		to = "displace"
	}
	switch to {
	case "append":
		return updateAppend(target, value)
	case "displace":
		return updateDisplace(target, value)
	case "merge":
		return updateMerge(target, value)
	}
	return verr.SetLast(verr.NotSupported)
}

func updateAppend(target, value *variant.Variant) error {
	switch target.Kind() {
	case variant.KindArray:
		return target.ArrayAppend(value)
	case variant.KindSet:
		_, err := target.SetAdd(value, false)
		return err
	case variant.KindObject:
		return updateMerge(target, value)
	}
	return verr.SetLast(verr.VariantInvalidType)
}

// updateDisplace replaces the whole content of the target container
// with the members of value.
func updateDisplace(target, value *variant.Variant) error {
	switch target.Kind() {
	case variant.KindSet:
		for {
			n, err := target.SetSize()
			if err != nil || n == 0 {
				break
			}
			if old := target.SetRemoveByIndex(n - 1); old != nil {
				old.Unref()
			} else {
				break
			}
		}
		members, err := collectItems(value)
		if err != nil {
			return err
		}
		for _, m := range members {
			if _, err := target.SetAdd(m, true); err != nil {
				for _, mm := range members {
					mm.Unref()
				}
				return err
			}
		}
		for _, m := range members {
			m.Unref()
		}
		return nil
	case variant.KindArray:
		for {
			n, err := target.ArraySize()
			if err != nil || n == 0 {
				break
			}
			if err := target.ArrayRemoveAt(n - 1); err != nil {
				break
			}
		}
		members, err := collectItems(value)
		if err != nil {
			return err
		}
		for _, m := range members {
			if err := target.ArrayAppend(m); err != nil {
				for _, mm := range members {
					mm.Unref()
				}
				return err
			}
		}
		for _, m := range members {
			m.Unref()
		}
		return nil
	case variant.KindObject:
		for _, k := range target.ObjectKeys() {
			if err := target.ObjectRemove(k); err != nil {
				return err
			}
		}
		return updateMerge(target, value)
	}
	return verr.SetLast(verr.VariantInvalidType)
}

func updateMerge(target, value *variant.Variant) error {
	if target.Kind() != variant.KindObject || value.Kind() != variant.KindObject {
		return verr.SetLast(verr.VariantInvalidType)
	}
	for _, k := range value.ObjectKeys() {
		v, err := value.ObjectGet(k)
		if err != nil {
			return err
		}
		if err := target.ObjectSet(k, v); err != nil {
			return err
		}
	}
	return nil
}

// updateElements rewrites a facet of every element in the collection.
func updateElements(st *Stack, coll *elementCollection, ctxt *updateCtxt, value *variant.Variant) error {
	facet := "textContent"
	if ctxt.at != nil && ctxt.at.IsString() {
		facet = ctxt.at.StringConst()
	}
	text := value.StringConst()
	if !value.IsString() {
		text = variant.StringifyPlain(value)
	}
	for _, el := range coll.Elements {
		if facet == "textContent" {
			el.SetTextContent(text)
		} else {
			el.SetAttr(facet, text)
		}
	}
	return nil
}

func init() { registerOps("update", updateOps) }
