package evaluator

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// zeroSnapThreshold is the magnitude below which a numeric result snaps
// to exactly zero.
const zeroSnapThreshold = 1e-10

// literalNumber parses a compiled literal's source text through a decimal
// representation (for exactness) and renders it as the JSON-facing
// float64 form every other evaluated value uses.
func literalNumber(text string) float64 {
	d, err := decimal.NewFromString(text)
	if err != nil {
		f, _ := strconv.ParseFloat(text, 64)
		return cleanupFloat(f)
	}
	return decimalToFloat(d)
}

// toDecimal coerces an evaluated value into a decimal, following the same
// weakly-typed rules the comparison operators use: numeric strings parse,
// booleans become 0/1. Returns false for values with no numeric meaning
// (nil, objects, arrays).
func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case uint64:
		return decimal.NewFromUint64(t), true
	case json.Number:
		d, err := decimal.NewFromString(string(t))
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(t)
		return d, err == nil
	case bool:
		if t {
			return decimal.NewFromInt(1), true
		}
		return decimal.Zero, true
	default:
		return decimal.Zero, false
	}
}

func decimalToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return cleanupFloat(f)
}

func cleanupFloat(f float64) float64 {
	if math.Abs(f) < zeroSnapThreshold {
		return 0
	}
	return f
}
