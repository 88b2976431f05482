package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalQuantifier implements all/some/none over an iterable. args[0] is the
// iterable expression; args[1] is the predicate, evaluated once per
// element against a Getter scoped to that element, so the predicate
// addresses the element itself with an ordinary variable path (the empty
// path for the whole element, a field name for one of its properties).
func (e *Evaluator) evalQuantifier(op string, args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) != 2 {
		return nil, &evalerr.TypeMismatch{Op: op, Got: "quantifier requires exactly two operands"}
	}

	iterable, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	items, ok := iterable.([]any)
	if !ok {
		switch op {
		case "all", "none":
			return true, nil
		default:
			return false, nil
		}
	}

	switch op {
	case "all":
		for _, item := range items {
			v, err := e.eval(args[1], ValueGetter{Value: item}, depth+1)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return false, nil
			}
		}
		return true, nil
	case "some":
		for _, item := range items {
			v, err := e.eval(args[1], ValueGetter{Value: item}, depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return true, nil
			}
		}
		return false, nil
	case "none":
		for _, item := range items {
			v, err := e.eval(args[1], ValueGetter{Value: item}, depth+1)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return false, nil
			}
		}
		return true, nil
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}
