package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalCollection implements the higher-order collection operators beyond
// the quantifier/aggregate families: map, filter, reduce, merge, in.
func (e *Evaluator) evalCollection(op string, args []logic.ID, data Getter, depth int) (any, error) {
	switch op {
	case "in":
		return e.evalIn(args, data, depth)
	case "merge":
		return e.evalMerge(args, data, depth)
	case "map":
		return e.evalMap(args, data, depth)
	case "filter":
		return e.evalFilter(args, data, depth)
	case "reduce":
		return e.evalReduce(args, data, depth)
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}

func (e *Evaluator) evalIn(args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) != 2 {
		return nil, &evalerr.TypeMismatch{Op: "in", Got: "in requires exactly two operands"}
	}
	needle, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	haystack, err := e.eval(args[1], data, depth+1)
	if err != nil {
		return nil, err
	}
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case string:
		s, _ := needle.(string)
		return s != "" && containsSubstring(h, s), nil
	default:
		return false, nil
	}
}

func containsSubstring(haystack, needle string) bool {
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func (e *Evaluator) evalMerge(args []logic.ID, data Getter, depth int) (any, error) {
	vals, err := e.evalArgs(args, data, depth)
	if err != nil {
		return nil, err
	}
	if len(vals) > 0 {
		if _, ok := vals[0].(map[string]any); ok {
			out := make(map[string]any)
			for _, v := range vals {
				if m, ok := v.(map[string]any); ok {
					for k, mv := range m {
						out[k] = mv
					}
				}
			}
			return out, nil
		}
	}
	var out []any
	for _, v := range vals {
		switch t := v.(type) {
		case []any:
			out = append(out, t...)
		default:
			out = append(out, t)
		}
	}
	return out, nil
}

func (e *Evaluator) evalMap(args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) != 2 {
		return nil, &evalerr.TypeMismatch{Op: "map", Got: "map requires an iterable and a predicate"}
	}
	iterable, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	items, _ := iterable.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := e.eval(args[1], ValueGetter{Value: item}, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Evaluator) evalFilter(args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) != 2 {
		return nil, &evalerr.TypeMismatch{Op: "filter", Got: "filter requires an iterable and a predicate"}
	}
	iterable, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	items, _ := iterable.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		v, err := e.eval(args[1], ValueGetter{Value: item}, depth+1)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			out = append(out, item)
		}
	}
	return out, nil
}

// reduceScope exposes the JSON-Logic-style "current"/"accumulator" pair a
// reduce predicate addresses via ordinary variable paths.
type reduceScope struct {
	current     any
	accumulator any
}

func (r reduceScope) asMap() map[string]any {
	return map[string]any{"current": r.current, "accumulator": r.accumulator}
}

func (e *Evaluator) evalReduce(args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) != 3 {
		return nil, &evalerr.TypeMismatch{Op: "reduce", Got: "reduce requires an iterable, a reducer, and an initial value"}
	}
	iterable, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	items, _ := iterable.([]any)
	acc, err := e.eval(args[2], data, depth+1)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		scope := reduceScope{current: item, accumulator: acc}
		v, err := e.eval(args[1], ValueGetter{Value: scope.asMap()}, depth+1)
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}
