package expr

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
	val  any
}

var twoCharOps = []string{"==", "!=", "<=", ">="}

func lex(src string, offset int) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: offset + start})
		case isDigit(c):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			isFloat := false
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				isFloat = true
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			text := src[start:i]
			var val any
			if isFloat {
				f, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, &ConfigError{Pos: offset + start, Msg: "invalid number " + text}
				}
				val = f
			} else {
				n, err := strconv.Atoi(text)
				if err != nil {
					return nil, &ConfigError{Pos: offset + start, Msg: "invalid number " + text}
				}
				val = n
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: offset + start, val: val})
		case c == '\'' || c == '"':
			start := i
			s, n, err := lexString(src[i:])
			if err != nil {
				return nil, &ConfigError{Pos: offset + start, Msg: err.Error()}
			}
			i += n
			toks = append(toks, token{kind: tokString, text: src[start:i], pos: offset + start, val: s})
		default:
			if op := matchTwoChar(src[i:]); op != "" {
				toks = append(toks, token{kind: tokPunct, text: op, pos: offset + i})
				i += 2
				continue
			}
			if strings.IndexByte(".[](),<>+-", c) < 0 {
				return nil, &ConfigError{Pos: offset + i, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
			}
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: offset + i})
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: offset + len(src)})
	return toks, nil
}

func matchTwoChar(s string) string {
	for _, op := range twoCharOps {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

// lexString reads a quoted literal and returns its value and the consumed length.
func lexString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errUnterminatedString
}

type lexError string

func (e lexError) Error() string { return string(e) }

const errUnterminatedString = lexError("unterminated string literal")

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
