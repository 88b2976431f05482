package validator

import (
	"regexp"

	"github.com/flowschema/evalengine/pkg/schemaparse"
)

// predicate reports whether value satisfies a rule kind given its params.
type predicate func(value any, params map[string]any) bool

// builtins is the small library of built-in rule predicates. The exact
// set of rule kinds is schema-author-defined and open-ended, so this table
// covers the common cases and leaves everything else to fail open (see
// runRule below) rather than erroring.
var builtins = map[string]predicate{
	"required":  predicateRequired,
	"pattern":   predicatePattern,
	"minValue":  predicateMinValue,
	"maxValue":  predicateMaxValue,
	"minLength": predicateMinLength,
	"maxLength": predicateMaxLength,
	"oneOf":     predicateOneOf,
}

// runRule dispatches a single rule by its Kind. An unrecognized kind
// fails open (reports true, i.e. passing) rather than erroring: rule
// kinds are opaque to the engine, a schema author may define a kind the
// engine has never heard of, and the engine's job is only to discover,
// order, and report rules, not to own their semantics.
func (v *Validator) runRule(spec schemaparse.RuleSpec, value any, data Getter) (bool, error) {
	fn, ok := builtins[spec.Kind]
	if !ok {
		return true, nil
	}
	return fn(value, spec.Params), nil
}

func predicateRequired(value any, _ map[string]any) bool {
	switch t := value.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

func predicatePattern(value any, params map[string]any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	pattern, _ := params["pattern"].(string)
	if pattern == "" {
		return true
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func predicateMinValue(value any, params map[string]any) bool {
	v, ok := asFloat(value)
	if !ok {
		return false
	}
	min, ok := asFloat(params["value"])
	if !ok {
		return true
	}
	return v >= min
}

func predicateMaxValue(value any, params map[string]any) bool {
	v, ok := asFloat(value)
	if !ok {
		return false
	}
	max, ok := asFloat(params["value"])
	if !ok {
		return true
	}
	return v <= max
}

func predicateMinLength(value any, params map[string]any) bool {
	n, ok := lengthOf(value)
	if !ok {
		return false
	}
	min, ok := asFloat(params["value"])
	if !ok {
		return true
	}
	return float64(n) >= min
}

func predicateMaxLength(value any, params map[string]any) bool {
	n, ok := lengthOf(value)
	if !ok {
		return false
	}
	max, ok := asFloat(params["value"])
	if !ok {
		return true
	}
	return float64(n) <= max
}

func predicateOneOf(value any, params map[string]any) bool {
	choices, ok := params["values"].([]any)
	if !ok {
		return true
	}
	for _, c := range choices {
		if c == value {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func lengthOf(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return len(t), true
	case []any:
		return len(t), true
	default:
		return 0, false
	}
}
