// Package interp implements the execution core: the per-instance
// interpreter stack and frames, the element machine, the observer
// subsystem, timers and cooperative yield, name binding, and the run
// loop driving documents to completion.
package interp

import (
	"strings"
)

// OutputKind discriminates output document nodes.
type OutputKind int

const (
	OutputElement OutputKind = iota
	OutputText
)

// OutputAttr is a rendered attribute of an output element.
type OutputAttr struct {
	Name  string
	Value string
}

// OutputNode is a node of the output document frames render into.
type OutputNode struct {
	Kind     OutputKind
	Tag      string
	Attrs    []OutputAttr
	Text     string
	Parent   *OutputNode
	Children []*OutputNode
}

// NewOutputRoot returns the root element of a fresh output document.
func NewOutputRoot() *OutputNode {
	return &OutputNode{Kind: OutputElement, Tag: "html"}
}

// AppendElement creates an element child of n and returns it.
func (n *OutputNode) AppendElement(tag string) *OutputNode {
	child := &OutputNode{Kind: OutputElement, Tag: tag, Parent: n}
	n.Children = append(n.Children, child)
	return child
}

// AppendContent appends a text child to n.
func (n *OutputNode) AppendContent(text string) {
	n.Children = append(n.Children, &OutputNode{Kind: OutputText, Text: text, Parent: n})
}

// SetAttr sets or replaces an attribute of n.
func (n *OutputNode) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, OutputAttr{Name: name, Value: value})
}

// Attr returns the value of the named attribute and whether it is set.
func (n *OutputNode) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetTextContent replaces all children of n with a single text node.
func (n *OutputNode) SetTextContent(text string) {
	n.Children = n.Children[:0]
	n.AppendContent(text)
}

// HTML renders the subtree as markup text.
func (n *OutputNode) HTML() string {
	var sb strings.Builder
	n.writeHTML(&sb)
	return sb.String()
}

func (n *OutputNode) writeHTML(sb *strings.Builder) {
	if n.Kind == OutputText {
		sb.WriteString(n.Text)
		return
	}
	sb.WriteByte('<')
	sb.WriteString(n.Tag)
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		sb.WriteString(a.Value)
		sb.WriteByte('"')
	}
	if len(n.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	for _, c := range n.Children {
		c.writeHTML(sb)
	}
	sb.WriteString("</")
	sb.WriteString(n.Tag)
	sb.WriteByte('>')
}

// SelectByCSS resolves the two selector forms the observer subsystem
// consumes: "#id" and ".class".
func (n *OutputNode) SelectByCSS(sel string) []*OutputNode {
	var out []*OutputNode
	var walk func(*OutputNode)
	match := func(cand *OutputNode) bool {
		switch {
		case strings.HasPrefix(sel, "#"):
			id, ok := cand.Attr("id")
			return ok && id == sel[1:]
		case strings.HasPrefix(sel, "."):
			class, ok := cand.Attr("class")
			if !ok {
				return false
			}
			for _, c := range strings.Fields(class) {
				if c == sel[1:] {
					return true
				}
			}
		}
		return false
	}
	walk = func(cand *OutputNode) {
		if cand.Kind == OutputElement {
			if match(cand) {
				out = append(out, cand)
			}
			for _, c := range cand.Children {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}
