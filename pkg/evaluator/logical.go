package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// truthy implements the engine's single notion of truthiness, shared by
// every operator family that branches on a value: nil, false, zero, and
// the empty string/array/object are falsy; everything else is truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// evalLogical implements and/or (short-circuiting) and unary negation.
func (e *Evaluator) evalLogical(op string, args []logic.ID, data Getter, depth int) (any, error) {
	switch op {
	case "and":
		var last any
		for _, id := range args {
			v, err := e.eval(id, data, depth+1)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return v, nil
			}
			last = v
		}
		return last, nil
	case "or":
		var last any
		for _, id := range args {
			v, err := e.eval(id, data, depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return v, nil
			}
			last = v
		}
		return last, nil
	case "!":
		if len(args) != 1 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "! requires exactly one operand"}
		}
		v, err := e.eval(args[0], data, depth+1)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}
