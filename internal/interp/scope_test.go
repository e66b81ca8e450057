package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBindAtQualifiers drives the full `at` vocabulary through <init>
// elements and inspects where each name landed.
func TestBindAtQualifiers(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<a id="anchor">`+
		`<b>`+
		`<init as="v1" with="one"/>`+
		`<init as="v2" at="_root" with="two"/>`+
		`<init as="v3" at="#anchor" with="three"/>`+
		`<init as="v4" at="2" with="four"/>`+
		`<init as="v5" at="_grandparent" with="five"/>`+
		`</b>`+
		`</a>`+
		`</velm>`)
	require.NotNil(t, doc)
	require.True(t, Run(ctx, nil, nil))

	root := doc.VDOM.RootElement()
	a := root.FirstChildElement()
	b := a.FirstChildElement()

	// Default scope is the parent element.
	require.NotNil(t, doc.scopedVars[b])
	assert.Contains(t, doc.scopedVars[b], "v1")

	// _root binds the document table.
	assert.Contains(t, doc.docVars, "v2")

	// #anchor walks ancestors by id; numeric and _grandparent both
	// land two levels up from the init element.
	require.NotNil(t, doc.scopedVars[a])
	assert.Contains(t, doc.scopedVars[a], "v3")
	assert.Contains(t, doc.scopedVars[a], "v4")
	assert.Contains(t, doc.scopedVars[a], "v5")

	// Lookup walks outward: everything is visible from inside b.
	st := doc.co.stack
	for _, name := range []string{"v1", "v2", "v3", "v4", "v5"} {
		assert.NotNil(t, st.FindNamedVar(name, b), "lookup of %s", name)
	}
	// From a, the b-scoped binding is out of reach.
	assert.Nil(t, st.FindNamedVar("v1", a))
}

func TestBindMissingIDSilently(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<b><init as="v" at="#missing" with="x" silently/></b>`+
		`</velm>`)
	require.NotNil(t, doc)
	require.True(t, Run(ctx, nil, nil))

	// Missing scopes fall back to the default (parent) binding.
	b := doc.VDOM.RootElement().FirstChildElement()
	require.NotNil(t, doc.scopedVars[b])
	assert.Contains(t, doc.scopedVars[b], "v")
}

func TestBindMissingIDFailsLoudly(t *testing.T) {
	ctx := setupInstance(t)
	doc := LoadFromString(ctx, `<velm>`+
		`<b><init as="v" at="#missing" with="x"/></b>`+
		`<init as="after" at="_root" with="y"/>`+
		`</velm>`)
	require.NotNil(t, doc)
	require.True(t, Run(ctx, nil, nil))

	// The failing element put the stack on its exception path; the
	// rest of the document never ran.
	assert.NotContains(t, doc.docVars, "after")
	b := doc.VDOM.RootElement().FirstChildElement()
	assert.NotContains(t, doc.scopedVars[b], "v")
}
