// Package expr evaluates the interpolated expressions used in connector definitions.
//
// An expression is a string that may contain {{ ... }} markers. Text outside the
// markers is kept as is; the inside is a small, side-effect free language of field
// lookups against named contexts, literals, comparisons and a fixed set of functions.
package expr

import (
	"strconv"
	"strings"

	"github.com/BartekS5/restsync/pkg/utils"
)

const (
	openMarker  = "{{"
	closeMarker = "}}"
)

type part struct {
	text string
	n    node
}

// Expression is a compiled, immutable expression.
type Expression struct {
	src   string
	parts []part
}

// HasMarkers reports whether s contains interpolation markers.
func HasMarkers(s string) bool {
	return strings.Contains(s, openMarker)
}

// Parse compiles src. Syntax errors, unknown contexts and unknown functions are
// reported here as *ConfigError.
func Parse(src string) (*Expression, error) {
	e := &Expression{src: src}
	rest, offset := src, 0
	for {
		start := strings.Index(rest, openMarker)
		if start < 0 {
			if rest != "" {
				e.parts = append(e.parts, part{text: rest})
			}
			break
		}
		if start > 0 {
			e.parts = append(e.parts, part{text: rest[:start]})
		}
		body := rest[start+len(openMarker):]
		end := strings.Index(body, closeMarker)
		if end < 0 {
			return nil, &ConfigError{Field: strconv.Quote(src), Pos: offset + start, Msg: "unclosed " + openMarker}
		}
		n, err := parseNode(body[:end], offset+start+len(openMarker))
		if err != nil {
			return nil, WithField(err, strconv.Quote(src))
		}
		e.parts = append(e.parts, part{n: n})
		consumed := start + len(openMarker) + end + len(closeMarker)
		rest, offset = rest[consumed:], offset+consumed
	}
	return e, nil
}

// MustParse is Parse for expressions known to be valid; it panics otherwise.
func MustParse(src string) *Expression {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// FieldPath builds a lookup of a dotted path under a context root, e.g.
// FieldPath("decoded_response", "data.items"). Numeric segments index lists.
// An empty path yields the root itself.
func FieldPath(root, path string) (*Expression, error) {
	if !contextNames[root] {
		return nil, Errorf(root, "unknown context")
	}
	var n node = &rootNode{name: root}
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			if seg == "" {
				return nil, Errorf(strconv.Quote(path), "empty path segment")
			}
			if i, err := strconv.Atoi(seg); err == nil {
				n = &indexNode{x: n, index: &literalNode{v: i}}
				continue
			}
			n = &fieldNode{x: n, name: seg}
		}
	}
	src := openMarker + " " + root
	if path != "" {
		src += "." + path
	}
	return &Expression{src: src + " " + closeMarker, parts: []part{{n: n}}}, nil
}

// String returns the source text.
func (e *Expression) String() string { return e.src }

// IsLiteral reports whether the expression has no markers.
func (e *Expression) IsLiteral() bool {
	for _, p := range e.parts {
		if p.n != nil {
			return false
		}
	}
	return true
}

// Eval evaluates the expression. ok is false when the value is absent: a
// missing context, key or index. A literal expression returns its source.
// A single marker spanning the whole string returns the raw value; mixed
// text renders every value as text, absent values as "".
func (e *Expression) Eval(c Context) (any, bool) {
	if len(e.parts) == 0 {
		return "", true
	}
	if len(e.parts) == 1 {
		if e.parts[0].n == nil {
			return e.parts[0].text, true
		}
		return e.parts[0].n.eval(&c)
	}
	var b strings.Builder
	for _, p := range e.parts {
		if p.n == nil {
			b.WriteString(p.text)
			continue
		}
		if v, ok := p.n.eval(&c); ok {
			b.WriteString(utils.Stringify(v))
		}
	}
	return b.String(), true
}

// EvalString evaluates the expression and renders the result as text.
func (e *Expression) EvalString(c Context) (string, bool) {
	v, ok := e.Eval(c)
	if !ok {
		return "", false
	}
	return utils.Stringify(v), true
}
