package interp

import (
	"regexp"
	"strconv"
	"strings"

	verr "velm/internal/errors"
	"velm/internal/variant"
)

// refPattern matches a $-reference inside attribute or content text:
// an optional chain of dotted members and an optional single
// quoted-literal call.
var refPattern = regexp.MustCompile(`\$[?@!A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*(?:\('[^']*'\))?`)

// EvalExpr evaluates a value-construction expression: a JSON-like
// literal, a single $-reference yielding the referenced value, or text
// with $-references interpolated into a String. The caller owns the
// returned handle.
func EvalExpr(st *Stack, src string) (*variant.Variant, error) {
	trimmed := strings.TrimSpace(src)

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		v, err := variant.Parse(trimmed)
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	if refPattern.MatchString(trimmed) && refPattern.FindString(trimmed) == trimmed {
		return resolveRef(st, trimmed)
	}

	if !strings.Contains(src, "$") {
		return variant.MustString(src), nil
	}

	out := refPattern.ReplaceAllStringFunc(src, func(ref string) string {
		v, err := resolveRef(st, ref)
		if err != nil {
			verr.ClearLast()
			return ""
		}
		defer v.Unref()
		if v.IsString() {
			return v.StringConst()
		}
		return variant.StringifyPlain(v)
	})
	return variant.MustString(out), nil
}

// resolveRef resolves one $-reference to a variant. The caller owns
// the returned handle.
func resolveRef(st *Stack, ref string) (*variant.Variant, error) {
	body := strings.TrimPrefix(ref, "$")

	// Optional trailing ('literal') call.
	var callArg string
	hasCall := false
	if i := strings.Index(body, "('"); i >= 0 && strings.HasSuffix(body, "')") {
		callArg = body[i+2 : len(body)-2]
		body = body[:i]
		hasCall = true
	}

	segs := strings.Split(body, ".")
	root, err := resolveRootName(st, segs[0])
	if err != nil {
		return nil, err
	}

	cur := root
	cur.Ref()
	for _, seg := range segs[1:] {
		next, err := memberOf(st, cur, seg)
		if err != nil {
			cur.Unref()
			return nil, err
		}
		next.Ref()
		cur.Unref()
		cur = next
	}

	if hasCall {
		res, err := invokeGetter(st, cur, callArg)
		cur.Unref()
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	if cur.Kind() == variant.KindDynamic {
		res, err := invokeGetter(st, cur, "")
		cur.Unref()
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return cur, nil
}

func resolveRootName(st *Stack, name string) (*variant.Variant, error) {
	switch name {
	case "?":
		if v := st.FindSymbolVar(SymbolQuestion); v != nil {
			return v, nil
		}
		return nil, verr.SetLast(verr.NoData)
	case "@":
		if v := st.FindSymbolVar(SymbolAt); v != nil {
			return v, nil
		}
		return nil, verr.SetLast(verr.NoData)
	case "!":
		if v := st.FindSymbolVar(SymbolExclamation); v != nil {
			return v, nil
		}
		return nil, verr.SetLast(verr.NoData)
	case "TIMERS":
		return st.inst.timersVar, nil
	case "T":
		return st.inst.tVar, nil
	case "SYS":
		return st.inst.sysVar, nil
	}

	var from *variant.Variant
	if fr := st.BottomFrame(); fr != nil && fr.Pos != nil {
		from = st.FindNamedVar(name, fr.Pos)
	} else if root := st.doc.VDOM.RootElement(); root != nil {
		from = st.FindNamedVar(name, root)
	}
	if from == nil {
		return nil, verr.SetLast(verr.VariantNotFound)
	}
	return from, nil
}

// memberOf returns the member seg of container cur as a borrowed
// handle.
func memberOf(st *Stack, cur *variant.Variant, seg string) (*variant.Variant, error) {
	switch cur.Kind() {
	case variant.KindObject:
		return cur.ObjectGet(seg)
	case variant.KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, verr.SetLast(verr.WrongArgs)
		}
		return cur.ArrayGetAt(idx)
	case variant.KindSet:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, verr.SetLast(verr.WrongArgs)
		}
		return cur.SetGetByIndex(idx)
	}
	return nil, verr.SetLast(verr.VariantInvalidType)
}

// invokeGetter calls the getter of a dynamic value with an optional
// string argument. The caller owns the returned handle.
func invokeGetter(st *Stack, v *variant.Variant, arg string) (*variant.Variant, error) {
	if v.Kind() != variant.KindDynamic || v.DynamicOps().Getter == nil {
		return nil, verr.SetLast(verr.VariantInvalidType)
	}
	var args []*variant.Variant
	if arg != "" {
		a := variant.MustString(arg)
		defer a.Unref()
		args = []*variant.Variant{a}
	}
	res, err := v.DynamicOps().Getter(v, args)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return variant.MakeUndefined(), nil
	}
	return res, nil
}
