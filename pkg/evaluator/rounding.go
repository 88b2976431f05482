package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalRounding implements round, ceil, floor, abs. round takes an optional
// second operand naming the number of decimal places (default 0).
func (e *Evaluator) evalRounding(op string, args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) == 0 {
		return nil, &evalerr.TypeMismatch{Op: op, Got: "rounding operator requires an operand"}
	}
	v, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	d, ok := toDecimal(v)
	if !ok {
		return nil, nil
	}

	switch op {
	case "round":
		places := int32(0)
		if len(args) > 1 {
			pv, err := e.eval(args[1], data, depth+1)
			if err != nil {
				return nil, err
			}
			if pd, ok := toDecimal(pv); ok {
				places = int32(pd.IntPart())
			}
		}
		return decimalToFloat(d.Round(places)), nil
	case "ceil":
		return decimalToFloat(d.Ceil()), nil
	case "floor":
		return decimalToFloat(d.Floor()), nil
	case "abs":
		return decimalToFloat(d.Abs()), nil
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}
