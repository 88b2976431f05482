package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/shopspring/decimal"
)

// evalAggregate implements min/max/sum. args[0] is the iterable; any
// further argument is either a string field-selector (applied to each
// element when elements are objects) or a numeric index-threshold
// limiting the aggregate to elements at indices 0..threshold inclusive
// (a negative threshold means no limit). A nil placeholder argument,
// used to pass a threshold without a field selector, is ignored.
func (e *Evaluator) evalAggregate(op string, args []logic.ID, data Getter, depth int) (any, error) {
	if len(args) == 0 {
		return nil, &evalerr.TypeMismatch{Op: op, Got: "aggregate requires at least one operand"}
	}

	iterable, err := e.eval(args[0], data, depth+1)
	if err != nil {
		return nil, err
	}
	items, _ := iterable.([]any)

	var field string
	threshold := -1
	for _, id := range args[1:] {
		v, err := e.eval(id, data, depth+1)
		if err != nil {
			return nil, err
		}
		switch t := v.(type) {
		case string:
			field = t
		case float64:
			threshold = int(t)
		case int64:
			threshold = int(t)
		}
	}
	if threshold >= 0 && threshold+1 < len(items) {
		items = items[:threshold+1]
	}

	decs := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		v := item
		if field != "" {
			if m, ok := item.(map[string]any); ok {
				v = m[field]
			}
		}
		if d, ok := toDecimal(v); ok {
			decs = append(decs, d)
		}
	}

	if len(decs) == 0 {
		if op == "sum" {
			return 0.0, nil
		}
		return nil, nil
	}

	switch op {
	case "sum":
		acc := decimal.Zero
		for _, d := range decs {
			acc = acc.Add(d)
		}
		return decimalToFloat(acc), nil
	case "min":
		acc := decs[0]
		for _, d := range decs[1:] {
			if d.LessThan(acc) {
				acc = d
			}
		}
		return decimalToFloat(acc), nil
	case "max":
		acc := decs[0]
		for _, d := range decs[1:] {
			if d.GreaterThan(acc) {
				acc = d
			}
		}
		return decimalToFloat(acc), nil
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}
