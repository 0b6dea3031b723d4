package expr

import (
	"reflect"
	"strings"

	"github.com/BartekS5/restsync/pkg/utils"
)

// node evaluates to a value and whether that value is present.
type node interface {
	eval(c *Context) (any, bool)
}

type literalNode struct{ v any }

func (n *literalNode) eval(*Context) (any, bool) { return n.v, true }

type rootNode struct{ name string }

func (n *rootNode) eval(c *Context) (any, bool) { return c.root(n.name) }

type fieldNode struct {
	x    node
	name string
}

func (n *fieldNode) eval(c *Context) (any, bool) {
	v, ok := n.x.eval(c)
	if !ok {
		return nil, false
	}
	return lookupKey(v, n.name)
}

type indexNode struct {
	x     node
	index node
}

func (n *indexNode) eval(c *Context) (any, bool) {
	v, ok := n.x.eval(c)
	if !ok {
		return nil, false
	}
	idx, ok := n.index.eval(c)
	if !ok {
		return nil, false
	}
	if key, isStr := idx.(string); isStr {
		return lookupKey(v, key)
	}
	i, isNum := idx.(int)
	if !isNum {
		f, isFloat := utils.ConvertToFloat(idx)
		if !isFloat || f != float64(int(f)) {
			return nil, false
		}
		i = int(f)
	}
	list, isList := v.([]any)
	if !isList {
		return nil, false
	}
	if i < 0 {
		i += len(list)
	}
	if i < 0 || i >= len(list) {
		return nil, false
	}
	return list[i], true
}

func lookupKey(v any, key string) (any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out, ok := m[key]
	return out, ok
}

type unaryNode struct {
	op string
	x  node
}

func (n *unaryNode) eval(c *Context) (any, bool) {
	v, ok := n.x.eval(c)
	switch n.op {
	case "not":
		return !(ok && Truthy(v)), true
	default:
		if !ok {
			return nil, false
		}
		if i, isInt := v.(int); isInt {
			return -i, true
		}
		if f, isNum := utils.ConvertToFloat(v); isNum {
			return -f, true
		}
		return nil, false
	}
}

type binaryNode struct {
	op          string
	left, right node
}

func (n *binaryNode) eval(c *Context) (any, bool) {
	l, lok := n.left.eval(c)
	switch n.op {
	case "and":
		if !(lok && Truthy(l)) {
			return false, true
		}
		r, rok := n.right.eval(c)
		return rok && Truthy(r), true
	case "or":
		if lok && Truthy(l) {
			return true, true
		}
		r, rok := n.right.eval(c)
		return rok && Truthy(r), true
	}
	r, rok := n.right.eval(c)
	if !lok {
		l = nil
	}
	if !rok {
		r = nil
	}
	switch n.op {
	case "==":
		return equal(l, r), true
	case "!=":
		return !equal(l, r), true
	case "<", "<=", ">", ">=":
		cmp, ok := compare(l, r)
		if !ok {
			return nil, false
		}
		switch n.op {
		case "<":
			return cmp < 0, true
		case "<=":
			return cmp <= 0, true
		case ">":
			return cmp > 0, true
		default:
			return cmp >= 0, true
		}
	case "+":
		if !lok || !rok {
			return nil, false
		}
		if ls, isStr := l.(string); isStr {
			return ls + utils.Stringify(r), true
		}
		if rs, isStr := r.(string); isStr {
			return utils.Stringify(l) + rs, true
		}
		return arith(l, r, 1)
	case "-":
		if !lok || !rok {
			return nil, false
		}
		return arith(l, r, -1)
	}
	return nil, false
}

func arith(l, r any, sign int) (any, bool) {
	li, lInt := l.(int)
	ri, rInt := r.(int)
	if lInt && rInt {
		return li + sign*ri, true
	}
	lf, lok := utils.ConvertToFloat(l)
	rf, rok := utils.ConvertToFloat(r)
	if !lok || !rok {
		return nil, false
	}
	return lf + float64(sign)*rf, true
}

func equal(l, r any) bool {
	if lf, ok := utils.ConvertToFloat(l); ok {
		if rf, ok := utils.ConvertToFloat(r); ok {
			return lf == rf
		}
	}
	return reflect.DeepEqual(l, r)
}

func compare(l, r any) (int, bool) {
	if lf, ok := utils.ConvertToFloat(l); ok {
		if rf, ok := utils.ConvertToFloat(r); ok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		return strings.Compare(ls, rs), true
	}
	return 0, false
}

type callNode struct {
	name string
	fn   func(args []evaluated) (any, bool)
	args []node
}

type evaluated struct {
	v  any
	ok bool
}

func (n *callNode) eval(c *Context) (any, bool) {
	args := make([]evaluated, len(n.args))
	for i, a := range n.args {
		v, ok := a.eval(c)
		args[i] = evaluated{v: v, ok: ok}
	}
	return n.fn(args)
}

// Truthy reports whether v counts as true in a boolean position.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, ok := utils.ConvertToFloat(v); ok {
		return f != 0
	}
	return true
}
