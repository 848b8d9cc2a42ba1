package legacy

import (
	"fmt"
	"strconv"
	"strings"
)

// literal is a parsed value: string, int64, float64, nil or []literal (tuple or list).
type literal interface{}

// parser reads one dict literal of the legacy history format. It accepts
// strings, integers, floats, None/True/False and nested tuples or lists.
type parser struct {
	lex *lexer
	tok token
}

type dictEntry struct {
	key   string
	value literal
}

func parseDict(line string) ([]dictEntry, error) {
	p := &parser{lex: &lexer{input: line}}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.expect(tokenLBrace); err != nil {
		return nil, err
	}

	var entries []dictEntry
	for p.tok.kind != tokenRBrace {
		if p.tok.kind != tokenString {
			return nil, p.unexpected("string key")
		}
		key := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokenColon); err != nil {
			return nil, err
		}

		value, err := p.value()
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		entries = append(entries, dictEntry{key: key, value: value})

		if p.tok.kind == tokenComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.kind != tokenRBrace {
			return nil, p.unexpected("',' or '}'")
		}
	}

	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokenEOF {
		return nil, p.unexpected("end of line")
	}

	return entries, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind) error {
	if p.tok.kind != kind {
		return p.unexpected(kind.String())
	}
	return p.advance()
}

func (p *parser) unexpected(want string) error {
	got := p.tok.kind.String()
	if p.tok.text != "" {
		got = fmt.Sprintf("%s %q", got, p.tok.text)
	}
	return fmt.Errorf("expected %s at column %d, got %s", want, p.tok.pos+1, got)
}

func (p *parser) value() (literal, error) {
	tok := p.tok

	switch tok.kind {
	case tokenString:
		return tok.text, p.advance()
	case tokenNumber:
		n, err := parseNumber(tok.text)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", tok.pos+1, err)
		}
		return n, p.advance()
	case tokenIdent:
		var v literal
		switch tok.text {
		case "None":
			v = nil
		case "True":
			v = int64(1)
		case "False":
			v = int64(0)
		default:
			return nil, p.unexpected("value")
		}
		return v, p.advance()
	case tokenLParen:
		return p.sequence(tokenRParen)
	case tokenLBracket:
		return p.sequence(tokenRBracket)
	}

	return nil, p.unexpected("value")
}

func (p *parser) sequence(closing tokenKind) (literal, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	items := []literal{}
	for p.tok.kind != closing {
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if p.tok.kind == tokenComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if p.tok.kind != closing {
			return nil, p.unexpected(fmt.Sprintf("',' or %s", closing))
		}
	}

	return items, p.advance()
}

func parseNumber(text string) (literal, error) {
	text = strings.TrimSuffix(text, "L")
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return f, nil
}
