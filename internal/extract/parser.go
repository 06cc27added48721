package extract

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Parser reads a bracketed list of quoted strings:
//
//	list   = "[" [ string { "," string } [ "," ] ] "]"
//	string = '"' { char } '"' | "'" { char } "'"
//
// Whitespace is allowed between tokens. Numbers, nested lists, objects and
// bare words are rejected.
type Parser struct {
	input    string
	position int
}

// NewParser creates a new Parser
func NewParser(input string) *Parser {
	return &Parser{input: input}
}

// Parse parses the whole input as one list
func (p *Parser) Parse() ([]string, error) {
	p.skipSpace()
	if p.peek() != '[' {
		return nil, p.errorf("expected '['")
	}
	p.next()

	items := []string{}
	for {
		p.skipSpace()
		if p.isEOF() {
			return nil, p.errorf("expected closing bracket ]")
		}
		if p.peek() == ']' {
			p.next()
			break
		}

		switch c := p.peek(); c {
		case '"', '\'':
			item, err := p.parseString()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		case '[', '{', '(':
			return nil, p.errorf("nested structures are not supported")
		default:
			return nil, p.errorf("unexpected %q, expected a quoted string", c)
		}

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.next()
		case ']':
		default:
			if p.isEOF() {
				return nil, p.errorf("expected closing bracket ]")
			}
			return nil, p.errorf("expected ',' or ']', got %q", p.peek())
		}
	}

	p.skipSpace()
	if !p.isEOF() {
		return nil, p.errorf("unexpected trailing content")
	}

	return items, nil
}

// parseString reads one quoted string starting at the opening quote.
// Raw newlines are accepted inside strings since models emit them.
func (p *Parser) parseString() (string, error) {
	start := p.position
	quote := p.next()

	var b strings.Builder
	for {
		if p.isEOF() {
			p.position = start
			return "", p.errorf("unterminated string")
		}

		c := p.next()
		switch c {
		case quote:
			return b.String(), nil
		case '\\':
			if err := p.parseEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
		}
	}
}

func (p *Parser) parseEscape(b *strings.Builder) error {
	if p.isEOF() {
		return p.errorf("unterminated escape sequence")
	}

	c := p.next()
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case 'a':
		b.WriteByte('\a')
	case '0':
		b.WriteByte(0)
	case '\\', '\'', '"', '/':
		b.WriteByte(c)
	case '\n':
		// line continuation
	case 'x':
		r, err := p.parseHex(2)
		if err != nil {
			return err
		}
		b.WriteRune(r)
	case 'u':
		r, err := p.parseHex(4)
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) && strings.HasPrefix(p.input[p.position:], `\u`) {
			save := p.position
			p.position += 2
			low, err := p.parseHex(4)
			if err == nil {
				if combined := utf16.DecodeRune(r, low); combined != utf8.RuneError {
					b.WriteRune(combined)
					return nil
				}
			}
			p.position = save
		}
		b.WriteRune(r)
	case 'U':
		r, err := p.parseHex(8)
		if err != nil {
			return err
		}
		b.WriteRune(r)
	default:
		// unknown escapes are kept verbatim
		b.WriteByte('\\')
		b.WriteByte(c)
	}
	return nil
}

func (p *Parser) parseHex(digits int) (rune, error) {
	if p.position+digits > len(p.input) {
		return 0, p.errorf("truncated escape sequence")
	}
	v, err := strconv.ParseUint(p.input[p.position:p.position+digits], 16, 32)
	if err != nil {
		return 0, p.errorf("invalid escape sequence")
	}
	p.position += digits
	return rune(v), nil
}

func (p *Parser) skipSpace() {
	for !p.isEOF() {
		switch p.peek() {
		case ' ', '\t', '\n', '\r':
			p.position++
		default:
			return
		}
	}
}

func (p *Parser) peek() byte {
	if p.isEOF() {
		return 0
	}
	return p.input[p.position]
}

func (p *Parser) next() byte {
	c := p.input[p.position]
	p.position++
	return c
}

func (p *Parser) isEOF() bool {
	return p.position >= len(p.input)
}

func (p *Parser) errorf(format string, args ...interface{}) error {
	return &ParseError{
		Offset: p.position,
		Reason: fmt.Sprintf(format, args...),
	}
}
