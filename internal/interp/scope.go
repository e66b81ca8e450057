package interp

import (
	"strconv"
	"strings"

	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/variant"
)

// BindScopeVariable binds name on el's scoped-variable map.
func (d *Document) BindScopeVariable(el *markup.Node, name string, v *variant.Variant) bool {
	if el == nil || name == "" || v == nil {
		verr.SetLast(verr.WrongArgs)
		return false
	}
	vars := d.scopedVars[el]
	if vars == nil {
		vars = map[string]*variant.Variant{}
		d.scopedVars[el] = vars
	}
	if old := vars[name]; old != nil {
		old.Unref()
	}
	vars[name] = v.Ref()
	return true
}

// BindDocVariable binds name in the document variable table.
func (d *Document) BindDocVariable(name string, v *variant.Variant) bool {
	if name == "" || v == nil {
		verr.SetLast(verr.WrongArgs)
		return false
	}
	if old := d.docVars[name]; old != nil {
		old.Unref()
	}
	d.docVars[name] = v.Ref()
	return true
}

// FindNamedVar resolves name by walking the enclosing element scopes
// outward from `from`, then the document table, then the session
// table. The returned handle is borrowed.
func (st *Stack) FindNamedVar(name string, from *markup.Node) *variant.Variant {
	for el := from; el != nil; el = el.ParentElement() {
		if vars := st.doc.scopedVars[el]; vars != nil {
			if v, ok := vars[name]; ok {
				return v
			}
		}
	}
	if v, ok := st.doc.docVars[name]; ok {
		return v
	}
	if v, ok := st.inst.sessionVars[name]; ok {
		return v
	}
	return nil
}

// matchID reports whether el carries an `id` attribute evaluating to
// id.
func matchID(st *Stack, el *markup.Node, id string) bool {
	attr := el.FindAttr("id")
	if attr == nil {
		return false
	}
	v, err := EvalExpr(st, attr.Value)
	if err != nil {
		verr.ClearLast()
		return false
	}
	defer v.Unref()
	return v.IsString() && v.StringConst() == id
}

// bindByLevel binds name at the ancestor `level` element levels above
// the frame's element. Running past the document binds there when the
// frame is silently, and fails EntityNotFound otherwise.
func bindByLevel(st *Stack, fr *Frame, name string, v *variant.Variant, level uint64) error {
	p := fr.Pos
	for i := uint64(0); i < level; i++ {
		if p == nil {
			break
		}
		p = p.ParentElement()
	}
	if p != nil {
		if !st.doc.BindScopeVariable(p, name, v) {
			return verr.SetLast(verr.WrongArgs)
		}
		return nil
	}
	if fr.Silently {
		if !st.doc.BindDocVariable(name, v) {
			return verr.SetLast(verr.WrongArgs)
		}
		return nil
	}
	return verr.SetLast(verr.EntityNotFound)
}

func bindAtDefault(st *Stack, fr *Frame, name string, v *variant.Variant) error {
	return bindByLevel(st, fr, name, v, 1)
}

// bindByElemID binds name on the nearest ancestor whose id matches,
// falling back to the default scope when the frame is silently.
func bindByElemID(st *Stack, fr *Frame, id, name string, v *variant.Variant) error {
	for p := fr.Pos; p != nil; p = p.ParentElement() {
		if matchID(st, p, id) {
			if !st.doc.BindScopeVariable(p, name, v) {
				return verr.SetLast(verr.WrongArgs)
			}
			return nil
		}
	}
	if fr.Silently {
		return bindAtDefault(st, fr, name, v)
	}
	return verr.SetLast(verr.EntityNotFound)
}

// bindByNameSpace maps the `_`-prefixed scope qualifiers to binding
// levels.
func bindByNameSpace(st *Stack, fr *Frame, ns, name string, v *variant.Variant) error {
	switch ns {
	case "_parent", "_last":
		return bindByLevel(st, fr, name, v, 1)
	case "_grandparent", "_nexttolast":
		return bindByLevel(st, fr, name, v, 2)
	case "_root", "_topmost":
		if !st.doc.BindDocVariable(name, v) {
			return verr.SetLast(verr.WrongArgs)
		}
		return nil
	}
	if fr.Silently {
		return bindAtDefault(st, fr, name, v)
	}
	return verr.SetLast(verr.BadName)
}

// bindWithAt applies the full `at` qualifier rules: absent → parent;
// "#id" → ancestor by id; "_ns" → level by namespace; numeric → that
// many levels up; anything else → document scope.
func bindWithAt(st *Stack, fr *Frame, at *variant.Variant, name string, v *variant.Variant) error {
	if at == nil {
		return bindAtDefault(st, fr, name, v)
	}
	if at.IsString() {
		s := at.StringConst()
		switch {
		case strings.HasPrefix(s, "#"):
			return bindByElemID(st, fr, s[1:], name, v)
		case strings.HasPrefix(s, "_"):
			return bindByNameSpace(st, fr, s, name, v)
		default:
			if level, err := strconv.ParseUint(s, 10, 64); err == nil {
				return bindByLevel(st, fr, name, v, level)
			}
		}
	}
	if level, ok := at.CastToULongInt(true); ok {
		return bindByLevel(st, fr, name, v, level)
	}
	if !st.doc.BindDocVariable(name, v) {
		return verr.SetLast(verr.WrongArgs)
	}
	return nil
}
