package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/shopspring/decimal"
)

// evalArithmetic implements the +, -, *, /, %, pow family over a decimal
// representation, so that "1 - 0.003 == 0.997" holds exactly rather than
// approximately. Division and modulo by zero yield nil (or 0 under
// safe-NaN handling), never an error.
func (e *Evaluator) evalArithmetic(op string, args []logic.ID, data Getter, depth int) (any, error) {
	if fast, ok, err := e.fastArithmetic(op, args, data); ok || err != nil {
		return fast, err
	}

	vals, err := e.evalArgs(args, data, depth)
	if err != nil {
		return nil, err
	}
	return e.applyArithmetic(op, vals)
}

// fastArithmetic handles the common case of a flat list of numeric
// literals and plain variable references without recursing through the
// general eval dispatcher. It reports ok=false whenever any argument is
// not trivially evaluable, falling back to the general path.
func (e *Evaluator) fastArithmetic(op string, args []logic.ID, data Getter) (any, bool, error) {
	vals := make([]any, len(args))
	for i, id := range args {
		term := e.terms.Term(id)
		switch term.Kind {
		case logic.KindLiteralNumber:
			vals[i] = literalNumber(term.NumberText)
		case logic.KindVariable:
			if term.VarHasDefault {
				return nil, false, nil
			}
			v, ok := data.Get(term.VarPath)
			if !ok {
				return nil, false, nil
			}
			vals[i] = v
		default:
			return nil, false, nil
		}
	}
	v, err := e.applyArithmetic(op, vals)
	return v, true, err
}

func (e *Evaluator) applyArithmetic(op string, vals []any) (any, error) {
	if len(vals) == 0 {
		return nil, &evalerr.TypeMismatch{Op: op, Got: "no operands"}
	}

	decs := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		d, ok := toDecimal(v)
		if !ok {
			return e.nonFinite(), nil
		}
		decs[i] = d
	}

	switch op {
	case "+":
		acc := decimal.Zero
		for _, d := range decs {
			acc = acc.Add(d)
		}
		return decimalToFloat(acc), nil
	case "-":
		if len(decs) == 1 {
			return decimalToFloat(decs[0].Neg()), nil
		}
		acc := decs[0]
		for _, d := range decs[1:] {
			acc = acc.Sub(d)
		}
		return decimalToFloat(acc), nil
	case "*":
		acc := decimal.NewFromInt(1)
		for _, d := range decs {
			acc = acc.Mul(d)
		}
		return decimalToFloat(acc), nil
	case "/":
		acc := decs[0]
		for _, d := range decs[1:] {
			if d.IsZero() {
				return e.nonFinite(), nil
			}
			acc = acc.DivRound(d, 20)
		}
		return decimalToFloat(acc), nil
	case "%":
		acc := decs[0]
		for _, d := range decs[1:] {
			if d.IsZero() {
				return e.nonFinite(), nil
			}
			acc = acc.Mod(d)
		}
		return decimalToFloat(acc), nil
	case "pow":
		if len(decs) != 2 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "pow requires exactly two operands"}
		}
		return decimalToFloat(decs[0].Pow(decs[1])), nil
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}

// nonFinite is the value an arithmetic operation yields when it cannot
// produce a finite number: nil by default, 0 under safe-NaN handling.
func (e *Evaluator) nonFinite() any {
	if e.safeNaN {
		return 0.0
	}
	return nil
}
