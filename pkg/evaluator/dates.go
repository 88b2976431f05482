package evaluator

import (
	"time"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// isoMillis is the wire format TODAY renders: midnight in the
// evaluator's shifted calendar day, rendered as "YYYY-MM-DDT00:00:00.000Z".
const isoMillis = "2006-01-02T15:04:05.000Z"

// evalDate implements TODAY, NOW, YEAR, MONTH, DAY. TODAY and NOW honor
// the evaluator's configured timezone offset (minutes east of UTC); the
// day-of-month/month/year extractors parse whichever date-shaped value
// their argument evaluates to.
func (e *Evaluator) evalDate(op string, args []logic.ID, data Getter, depth int) (any, error) {
	shifted := time.Now().UTC().Add(time.Duration(e.tzOffsetMin) * time.Minute)

	switch op {
	case "today":
		midnight := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
		return midnight.Format(isoMillis), nil
	case "now":
		return shifted.Format(isoMillis), nil
	case "year", "month", "day":
		if len(args) != 1 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "date extractor requires exactly one operand"}
		}
		v, err := e.eval(args[0], data, depth+1)
		if err != nil {
			return nil, err
		}
		t, ok := parseDateValue(v)
		if !ok {
			return nil, nil
		}
		switch op {
		case "year":
			return float64(t.Year()), nil
		case "month":
			return float64(int(t.Month())), nil
		default:
			return float64(t.Day()), nil
		}
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}
}

func parseDateValue(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{isoMillis, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
