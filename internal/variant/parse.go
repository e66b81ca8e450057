package variant

import (
	"encoding/base64"
	"strconv"
	"strings"
	"unicode/utf16"

	verr "velm/internal/errors"
)

// maxParseDepth bounds container nesting during parsing.
const maxParseDepth = 128

// Parse reads a value back from its canonical PLAIN textual form.
// Dynamic and Native values have no parseable form.
func Parse(src string) (*Variant, error) {
	p := &parser{src: src}
	p.skipSpace()
	v, err := p.parseValue(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		v.Unref()
		return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) literal(lit string) bool {
	if strings.HasPrefix(p.src[p.pos:], lit) {
		p.pos += len(lit)
		return true
	}
	return false
}

func (p *parser) parseValue(depth int) (*Variant, error) {
	if depth > maxParseDepth {
		return nil, verr.SetLast(verr.EJSONMaxDepthExceeded)
	}
	p.skipSpace()
	switch c := p.peek(); {
	case c == 0:
		return nil, verr.SetLast(verr.EJSONUnexpectedEOF)
	case c == 'n':
		if p.literal("null") {
			return MakeNull(), nil
		}
	case c == 'u':
		if p.literal("undefined") {
			return MakeUndefined(), nil
		}
	case c == 't':
		if p.literal("true") {
			return MakeBoolean(true), nil
		}
	case c == 'f':
		if p.literal("false") {
			return MakeBoolean(false), nil
		}
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return MustString(s), nil
	case c == 'b':
		return p.parseByteSequence()
	case c == '[':
		return p.parseArray(depth)
	case c == '{':
		return p.parseObject(depth)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	}
	return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
}

func (p *parser) parseNumber() (*Variant, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' ||
			c == '+' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	text := p.src[start:p.pos]

	switch {
	case p.literal("UL"):
		u, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, verr.SetLast(verr.EJSONBadNumber)
		}
		return MakeULongInt(u), nil
	case p.literal("FL"):
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, verr.SetLast(verr.EJSONBadNumber)
		}
		return MakeLongDouble(f), nil
	case p.literal("L"):
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, verr.SetLast(verr.EJSONBadNumber)
		}
		return MakeLongInt(i), nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, verr.SetLast(verr.EJSONBadNumber)
	}
	return MakeNumber(f), nil
}

func (p *parser) parseString() (string, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return "", verr.SetLast(verr.EJSONUnexpectedEOF)
			}
			switch e := p.src[p.pos]; e {
			case '"', '\\', '/':
				sb.WriteByte(e)
				p.pos++
			case 'b':
				sb.WriteByte('\b')
				p.pos++
			case 'f':
				sb.WriteByte('\f')
				p.pos++
			case 'n':
				sb.WriteByte('\n')
				p.pos++
			case 'r':
				sb.WriteByte('\r')
				p.pos++
			case 't':
				sb.WriteByte('\t')
				p.pos++
			case 'u':
				if p.pos+5 > len(p.src) {
					return "", verr.SetLast(verr.EJSONBadStringEscape)
				}
				n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+5], 16, 32)
				if err != nil {
					return "", verr.SetLast(verr.EJSONBadStringEscape)
				}
				p.pos += 5
				r := rune(n)
				if utf16.IsSurrogate(r) && p.pos+6 <= len(p.src) &&
					p.src[p.pos] == '\\' && p.src[p.pos+1] == 'u' {
					n2, err := strconv.ParseUint(p.src[p.pos+2:p.pos+6], 16, 32)
					if err == nil {
						r = utf16.DecodeRune(r, rune(n2))
						p.pos += 6
					}
				}
				sb.WriteRune(r)
			default:
				return "", verr.SetLast(verr.EJSONBadStringEscape)
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", verr.SetLast(verr.EJSONUnexpectedEOF)
}

func (p *parser) parseByteSequence() (*Variant, error) {
	switch {
	case p.literal("bx"):
		start := p.pos
		for p.pos < len(p.src) && isHexDigit(p.src[p.pos]) {
			p.pos++
		}
		hex := p.src[start:p.pos]
		if len(hex)%2 != 0 {
			return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
		}
		out := make([]byte, len(hex)/2)
		for i := 0; i < len(out); i++ {
			n, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
			}
			out[i] = byte(n)
		}
		return MakeByteSequence(out), nil
	case p.literal("bb"):
		var bits []byte
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if c == '0' || c == '1' {
				bits = append(bits, c-'0')
				p.pos++
				continue
			}
			if c == '.' {
				p.pos++
				continue
			}
			break
		}
		if len(bits)%8 != 0 {
			return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
		}
		out := make([]byte, len(bits)/8)
		for i, bit := range bits {
			out[i/8] = out[i/8]<<1 | bit
		}
		return MakeByteSequence(out), nil
	case p.literal("b64"):
		start := p.pos
		for p.pos < len(p.src) && isBase64Digit(p.src[p.pos]) {
			p.pos++
		}
		out, err := base64.StdEncoding.DecodeString(p.src[start:p.pos])
		if err != nil {
			return nil, verr.SetLast(verr.EJSONBadBase64)
		}
		return MakeByteSequence(out), nil
	}
	return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isBase64Digit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') || c == '+' || c == '/' || c == '='
}

func (p *parser) parseArray(depth int) (*Variant, error) {
	p.pos++ // '['
	arr := MakeArray()
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return arr, nil
	}
	for {
		elem, err := p.parseValue(depth + 1)
		if err != nil {
			arr.Unref()
			return nil, err
		}
		arr.ArrayAppend(elem)
		elem.Unref()
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			arr.Unref()
			return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
		}
	}
}

func (p *parser) parseObject(depth int) (*Variant, error) {
	p.pos++ // '{'
	obj := MakeObject()
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return obj, nil
	}
	for {
		p.skipSpace()
		if p.peek() != '"' {
			obj.Unref()
			return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
		}
		key, err := p.parseString()
		if err != nil {
			obj.Unref()
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			obj.Unref()
			return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
		}
		p.pos++
		val, err := p.parseValue(depth + 1)
		if err != nil {
			obj.Unref()
			return nil, err
		}
		obj.ObjectSet(key, val)
		val.Unref()
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			obj.Unref()
			return nil, verr.SetLast(verr.EJSONUnexpectedCharacter)
		}
	}
}
