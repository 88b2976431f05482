package evaluator

import (
	"fmt"
	"strings"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalString implements cat, substr, and template.
func (e *Evaluator) evalString(op string, args []logic.ID, data Getter, depth int) (any, error) {
	switch op {
	case "cat":
		vals, err := e.evalArgs(args, data, depth)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		for _, v := range vals {
			b.WriteString(stringify(v))
		}
		return b.String(), nil

	case "substr":
		if len(args) < 2 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "substr requires a string and a start index"}
		}
		vals, err := e.evalArgs(args, data, depth)
		if err != nil {
			return nil, err
		}
		return substr(vals), nil

	case "template":
		if len(args) == 0 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "template requires a format string"}
		}
		formatAny, err := e.eval(args[0], data, depth+1)
		if err != nil {
			return nil, err
		}
		format, _ := formatAny.(string)
		return interpolate(format, data), nil

	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func substr(vals []any) string {
	s := stringify(vals[0])
	start, _ := toDecimal(vals[1])
	startIdx := clampIndex(start.IntPart(), len(s))

	if len(vals) < 3 {
		return s[startIdx:]
	}
	length, _ := toDecimal(vals[2])
	end := clampIndex(start.IntPart()+length.IntPart(), len(s))
	if end < startIdx {
		return ""
	}
	return s[startIdx:end]
}

func clampIndex(i int64, n int) int {
	if i < 0 {
		i = 0
	}
	if int(i) > n {
		return n
	}
	return int(i)
}

// interpolate substitutes {path} placeholders with values read from data
// via the same canonical-path resolution every other variable reference
// uses, rendering missing paths as an empty string.
func interpolate(format string, data Getter) string {
	var b strings.Builder
	i := 0
	for i < len(format) {
		open := strings.IndexByte(format[i:], '{')
		if open < 0 {
			b.WriteString(format[i:])
			break
		}
		b.WriteString(format[i : i+open])
		rest := format[i+open+1:]
		shut := strings.IndexByte(rest, '}')
		if shut < 0 {
			b.WriteString(format[i+open:])
			break
		}
		placeholder := rest[:shut]
		if v, ok := data.Get(evalpath.Normalize(placeholder)); ok {
			b.WriteString(stringify(v))
		}
		i = i + open + 1 + shut + 1
	}
	return b.String()
}
