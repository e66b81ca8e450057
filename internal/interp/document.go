package interp

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/pkg/errors"

	verr "velm/internal/errors"
	"velm/internal/markup"
	"velm/internal/stream"
	"velm/internal/variant"
)

// Document is one loaded program: its source tree, its output
// document, and its variable tables.
type Document struct {
	inst *Instance

	// VDOM is the parsed source tree.
	VDOM *markup.Node
	// Output is the root of the output document frames render into.
	Output *OutputNode

	docVars    map[string]*variant.Variant
	scopedVars map[*markup.Node]map[string]*variant.Variant

	co *Coroutine
}

func newDocument(vdom *markup.Node) *Document {
	return &Document{
		VDOM:       vdom,
		Output:     NewOutputRoot(),
		docVars:    map[string]*variant.Variant{},
		scopedVars: map[*markup.Node]map[string]*variant.Variant{},
	}
}

// attach binds the document to inst and creates its coroutine.
func (d *Document) attach(inst *Instance) {
	d.inst = inst
	st := &Stack{inst: inst, doc: d}
	co := &Coroutine{stack: st}
	st.co = co
	d.co = co
}

// release drops every variable the document holds.
func (d *Document) release() {
	if d.co != nil {
		d.co.stack.release()
	}
	for _, v := range d.docVars {
		v.Unref()
	}
	d.docVars = map[string]*variant.Variant{}
	for _, vars := range d.scopedVars {
		for _, v := range vars {
			v.Unref()
		}
	}
	d.scopedVars = map[*markup.Node]map[string]*variant.Variant{}
}

// LoadFromString parses a program from src and registers it with the
// attached instance.
func LoadFromString(ctx context.Context, src string) *Document {
	inst := Current()
	if inst == nil {
		verr.SetLast(verr.NoInstance)
		return nil
	}
	vdom, err := markup.Parse(src)
	if err != nil {
		clog.ErrorContextf(ctx, "load document: %v", err)
		return nil
	}
	doc := newDocument(vdom)
	doc.attach(inst)
	inst.docs = append(inst.docs, doc)
	clog.InfoContextf(ctx, "document loaded: %d bytes", len(src))
	return doc
}

// LoadFromFile loads a program from path.
func LoadFromFile(ctx context.Context, path string) *Document {
	data, err := os.ReadFile(path)
	if err != nil {
		verr.SetLast(verr.StreamIO)
		clog.ErrorContextf(ctx, "load document: %v", errors.Wrapf(err, "read %s", path))
		return nil
	}
	return LoadFromString(ctx, string(data))
}

// LoadFromURL fetches a program over HTTP.
func LoadFromURL(ctx context.Context, url string) *Document {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		verr.SetLast(verr.WrongArgs)
		return nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		verr.SetLast(verr.StreamIO)
		clog.ErrorContextf(ctx, "load document: %v", errors.Wrapf(err, "fetch %s", url))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		verr.SetLast(verr.StreamIO)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		verr.SetLast(verr.StreamIO)
		return nil
	}
	return LoadFromString(ctx, string(data))
}

// LoadFromStream reads a program from an rwstream.
func LoadFromStream(ctx context.Context, rws stream.RWStream) *Document {
	data, err := io.ReadAll(rws)
	if err != nil {
		verr.SetLast(verr.StreamIO)
		return nil
	}
	return LoadFromString(ctx, string(data))
}

// BindDocumentVariable binds a document-level variable.
func BindDocumentVariable(doc *Document, name string, v *variant.Variant) bool {
	if doc == nil {
		verr.SetLast(verr.WrongArgs)
		return false
	}
	return doc.BindDocVariable(name, v)
}
