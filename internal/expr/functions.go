package expr

import (
	"unicode/utf8"

	"github.com/BartekS5/restsync/pkg/utils"
)

type function struct {
	arity int
	call  func(args []evaluated) (any, bool)
}

// functions is the fixed set callable from expressions. Each one is pure.
var functions = map[string]function{
	"len":     {arity: 1, call: fnLen},
	"first":   {arity: 1, call: fnFirst},
	"last":    {arity: 1, call: fnLast},
	"default": {arity: 2, call: fnDefault},
	"str":     {arity: 1, call: fnStr},
	"int":     {arity: 1, call: fnInt},
}

func fnLen(args []evaluated) (any, bool) {
	if !args[0].ok {
		return nil, false
	}
	switch t := args[0].v.(type) {
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	case string:
		return utf8.RuneCountInString(t), true
	}
	return nil, false
}

func fnFirst(args []evaluated) (any, bool) {
	list, ok := args[0].v.([]any)
	if !args[0].ok || !ok || len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

func fnLast(args []evaluated) (any, bool) {
	list, ok := args[0].v.([]any)
	if !args[0].ok || !ok || len(list) == 0 {
		return nil, false
	}
	return list[len(list)-1], true
}

func fnDefault(args []evaluated) (any, bool) {
	if args[0].ok && args[0].v != nil {
		return args[0].v, true
	}
	return args[1].v, args[1].ok
}

func fnStr(args []evaluated) (any, bool) {
	if !args[0].ok {
		return nil, false
	}
	return utils.Stringify(args[0].v), true
}

func fnInt(args []evaluated) (any, bool) {
	if !args[0].ok {
		return nil, false
	}
	i, err := utils.ConvertToInt(args[0].v)
	if err != nil {
		return nil, false
	}
	return i, true
}
