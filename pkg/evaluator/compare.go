package evaluator

import (
	"fmt"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalCompare implements the comparison family. Loose equality follows
// weakly-typed coercion: numeric string <-> number, boolean <->
// number via 0/1, null equals only null. Strict equality (===, !==)
// requires matching Go types with no coercion. Relational operators
// coerce both sides to decimal when possible, else fall back to a
// lexical string comparison.
func (e *Evaluator) evalCompare(op string, args []logic.ID, data Getter, depth int) (any, error) {
	vals, err := e.evalArgs(args, data, depth)
	if err != nil {
		return nil, err
	}
	if len(vals) != 2 {
		return nil, &evalerr.TypeMismatch{Op: op, Got: "comparison requires exactly two operands"}
	}
	a, b := vals[0], vals[1]

	switch op {
	case "==":
		return looseEqual(a, b), nil
	case "!=":
		return !looseEqual(a, b), nil
	case "===":
		return strictEqual(a, b), nil
	case "!==":
		return !strictEqual(a, b), nil
	case "<", "<=", ">", ">=":
		return evalRelational(op, a, b)
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Equal(db)
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func evalRelational(op string, a, b any) (any, error) {
	da, aok := toDecimal(a)
	db, bok := toDecimal(b)
	if aok && bok {
		cmp := da.Cmp(db)
		return relResult(op, cmp), nil
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		switch {
		case as < bs:
			return relResult(op, -1), nil
		case as > bs:
			return relResult(op, 1), nil
		default:
			return relResult(op, 0), nil
		}
	}

	return nil, &evalerr.TypeMismatch{Op: op, Got: fmt.Sprintf("%T vs %T", a, b)}
}

func relResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}
