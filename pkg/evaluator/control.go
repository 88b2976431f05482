package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalControl implements if, return, and the rarely-reachable explicit
// "var" apply form (the common {"var": path} shorthand compiles straight
// to a KindVariable term and never reaches here; this branch only fires
// for a "var" key appearing inside a multi-operand apply built
// programmatically rather than through the ordinary object shorthand).
func (e *Evaluator) evalControl(op string, args []logic.ID, data Getter, depth int) (any, error) {
	switch op {
	case "if":
		return e.evalIf(args, data, depth)
	case "return":
		if len(args) != 1 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "return requires exactly one operand"}
		}
		v, err := e.eval(args[0], data, depth+1)
		if err != nil {
			return nil, err
		}
		return ReturnValue{Value: v}, nil
	case "var":
		return e.evalExplicitVar(args, data, depth)
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}

// evalIf walks (cond, then, cond, then, ..., else) pairs, short-circuiting
// on the first truthy condition.
func (e *Evaluator) evalIf(args []logic.ID, data Getter, depth int) (any, error) {
	i := 0
	for i+1 < len(args) {
		cond, err := e.eval(args[i], data, depth+1)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(args[i+1], data, depth+1)
		}
		i += 2
	}
	if i < len(args) {
		return e.eval(args[i], data, depth+1)
	}
	return nil, nil
}

func (e *Evaluator) evalExplicitVar(args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) == 0 {
		return nil, &evalerr.TypeMismatch{Op: "var", Got: "var requires a path operand"}
	}
	pathAny, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	pathStr, _ := pathAny.(string)
	path := evalpath.Normalize(pathStr)

	if v, ok := data.Get(path); ok {
		return v, nil
	}
	if len(args) > 1 {
		return e.eval(args[1], data, depth+1)
	}
	return nil, nil
}
