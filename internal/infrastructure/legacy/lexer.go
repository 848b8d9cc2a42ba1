package legacy

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenLBrace
	tokenRBrace
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenColon
	tokenComma
	tokenString
	tokenNumber
	tokenIdent
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of line"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	case tokenColon:
		return "':'"
	case tokenComma:
		return "','"
	case tokenString:
		return "string"
	case tokenNumber:
		return "number"
	default:
		return "identifier"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer splits a single literal line into tokens.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]

	punct := map[byte]tokenKind{
		'{': tokenLBrace, '}': tokenRBrace,
		'(': tokenLParen, ')': tokenRParen,
		'[': tokenLBracket, ']': tokenRBracket,
		':': tokenColon, ',': tokenComma,
	}
	if kind, ok := punct[c]; ok {
		l.pos++
		return token{kind: kind, text: string(c), pos: start}, nil
	}

	switch {
	case c == '\'' || c == '"':
		text, err := l.quoted(c)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokenString, text: text, pos: start}, nil
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		l.pos++
		for l.pos < len(l.input) && isNumberChar(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenNumber, text: l.input[start:l.pos], pos: start}, nil
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
	}

	return token{}, fmt.Errorf("unexpected character %q at column %d", c, start+1)
}

// quoted reads a string literal with backslash escapes; the opening quote is at l.pos.
func (l *lexer) quoted(quote byte) (string, error) {
	start := l.pos
	l.pos++

	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == quote:
			l.pos++
			return b.String(), nil
		case c == '\\' && l.pos+1 < len(l.input):
			b.WriteByte(unescape(l.input[l.pos+1]))
			l.pos += 2
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return "", fmt.Errorf("unterminated string starting at column %d", start+1)
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNumberChar(c byte) bool {
	return isDigit(c) || c == '.' || c == 'e' || c == 'E' || c == '-' || c == '+' || c == 'L'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
