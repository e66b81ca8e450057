package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"

	verr "velm/internal/errors"
)

// Parse reads a document from src and returns its tree.
func Parse(src string) (*Node, error) {
	if !utf8.ValidString(src) {
		verr.SetLast(verr.MarkupInvalidUTF8Character)
		return nil, errors.Wrap(verr.MarkupInvalidUTF8Character, "parse document")
	}
	p := &docParser{src: src}
	doc := &Node{Type: DocumentNode}
	if err := p.parseInto(doc); err != nil {
		return nil, err
	}
	if doc.RootElement() == nil {
		verr.SetLast(verr.MarkupEOFBeforeTagName)
		return nil, errors.Wrap(verr.MarkupEOFBeforeTagName, "parse document")
	}
	return doc, nil
}

type docParser struct {
	src string
	pos int
}

func (p *docParser) fail(code verr.Code) error {
	verr.SetLast(code)
	return errors.Wrapf(code, "at offset %d", p.pos)
}

func (p *docParser) eof() bool { return p.pos >= len(p.src) }

func (p *docParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *docParser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// parseInto consumes child nodes of parent until the matching close
// tag (or end of input at the document level).
func (p *docParser) parseInto(parent *Node) error {
	for {
		// Text up to the next tag becomes a content node.
		start := p.pos
		for !p.eof() && p.peek() != '<' {
			if p.peek() == 0x00 {
				return p.fail(verr.MarkupUnexpectedNullCharacter)
			}
			p.pos++
		}
		if text := p.src[start:p.pos]; strings.TrimSpace(text) != "" {
			parent.AppendChild(&Node{Type: ContentNode, Text: strings.TrimSpace(text)})
		}
		if p.eof() {
			if parent.Type != DocumentNode {
				return p.fail(verr.MarkupEOFInTag)
			}
			return nil
		}

		switch {
		case strings.HasPrefix(p.src[p.pos:], "<!--"):
			if err := p.parseComment(parent); err != nil {
				return err
			}
		case strings.HasPrefix(p.src[p.pos:], "<!"):
			// DOCTYPE and friends carry no runtime meaning.
			end := strings.IndexByte(p.src[p.pos:], '>')
			if end < 0 {
				return p.fail(verr.MarkupEOFInTag)
			}
			p.pos += end + 1
		case strings.HasPrefix(p.src[p.pos:], "</"):
			return p.parseCloseTag(parent)
		default:
			if err := p.parseElement(parent); err != nil {
				return err
			}
		}
	}
}

func (p *docParser) parseComment(parent *Node) error {
	p.pos += len("<!--")
	end := strings.Index(p.src[p.pos:], "-->")
	if end < 0 {
		return p.fail(verr.MarkupEOFInComment)
	}
	body := p.src[p.pos : p.pos+end]
	if strings.Contains(body, "<!--") {
		return p.fail(verr.MarkupNestedComment)
	}
	parent.AppendChild(&Node{Type: CommentNode, Text: body})
	p.pos += end + len("-->")
	return nil
}

func (p *docParser) parseCloseTag(parent *Node) error {
	p.pos += len("</")
	name := p.scanName()
	if name == "" {
		return p.fail(verr.MarkupMissingEndTagName)
	}
	p.skipSpace()
	if p.peek() != '>' {
		return p.fail(verr.MarkupUnexpectedCharacter)
	}
	p.pos++
	if parent.Type != ElementNode || !strings.EqualFold(parent.Tag, name) {
		return p.fail(verr.MarkupUnexpectedCharacter)
	}
	return nil
}

func (p *docParser) parseElement(parent *Node) error {
	p.pos++ // '<'
	if p.eof() {
		return p.fail(verr.MarkupEOFBeforeTagName)
	}
	name := p.scanName()
	if name == "" {
		return p.fail(verr.MarkupBadFirstCharacterOfTagName)
	}

	el := &Node{Type: ElementNode, Tag: strings.ToLower(name)}
	for {
		p.skipSpace()
		if p.eof() {
			return p.fail(verr.MarkupEOFInTag)
		}
		switch p.peek() {
		case '>':
			p.pos++
			parent.AppendChild(el)
			return p.parseInto(el)
		case '/':
			p.pos++
			if p.peek() != '>' {
				return p.fail(verr.MarkupUnexpectedCharacter)
			}
			p.pos++
			parent.AppendChild(el)
			return nil
		default:
			attr, err := p.parseAttr()
			if err != nil {
				return err
			}
			el.Attrs = append(el.Attrs, attr)
		}
	}
}

func (p *docParser) parseAttr() (*Attr, error) {
	name := p.scanName()
	if name == "" {
		return nil, p.fail(verr.MarkupUnexpectedCharacter)
	}
	p.skipSpace()
	if p.peek() != '=' {
		// A bare attribute is a flag with an empty value.
		return &Attr{Name: strings.ToLower(name)}, nil
	}
	p.pos++
	p.skipSpace()
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return nil, p.fail(verr.MarkupMissingAttributeValue)
	}
	p.pos++
	start := p.pos
	for !p.eof() && p.peek() != quote {
		p.pos++
	}
	if p.eof() {
		return nil, p.fail(verr.MarkupEOFInTag)
	}
	val := p.src[start:p.pos]
	p.pos++
	return &Attr{Name: strings.ToLower(name), Value: val}, nil
}

func (p *docParser) scanName() string {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == ':' {
			p.pos += size
			continue
		}
		break
	}
	return p.src[start:p.pos]
}
