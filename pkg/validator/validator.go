// Package validator implements the validator: it runs
// each field's "rules" block in declared order against the current
// working data, stopping at the first failing rule per field, and
// collects an insertion-ordered map of field path -> diagnostic. Rule
// *kinds* are opaque to the engine proper (schema authors invent them),
// so dispatch is data-driven through a small built-in predicate table
// (rules.go), the same "dispatch by string key, keep the table open for
// extension" shape the evaluator's own operator dispatch uses.
package validator

import (
	"github.com/sirupsen/logrus"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/schemaparse"
)

// Getter resolves a canonical path against the current working data.
type Getter interface {
	Get(path evalpath.Path) (any, bool)
}

// Evaluator evaluates a compiled rule condition expression.
type Evaluator interface {
	Eval(id logic.ID, data Getter) (any, error)
}

// Diagnostic is one validation failure surfaced for a field.
type Diagnostic struct {
	FieldPath string
	Kind      string
	Message   string
	Code      string
	Params    map[string]any
}

// Result is the output of a Validate call: a has_error flag plus an
// insertion-ordered field_path -> diagnostic map.
type Result struct {
	HasError bool
	Errors   *Diagnostics
}

// Diagnostics is an insertion-ordered field_path -> Diagnostic map.
type Diagnostics struct {
	order []string
	byKey map[string]Diagnostic
}

// NewDiagnostics constructs an empty, ordered diagnostics collection.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{byKey: make(map[string]Diagnostic)}
}

// Set records (or overwrites) the diagnostic for a field path, preserving
// first-insertion order.
func (d *Diagnostics) Set(fieldPath string, diag Diagnostic) {
	if _, exists := d.byKey[fieldPath]; !exists {
		d.order = append(d.order, fieldPath)
	}
	d.byKey[fieldPath] = diag
}

// Get returns the diagnostic recorded for a field path, if any.
func (d *Diagnostics) Get(fieldPath string) (Diagnostic, bool) {
	v, ok := d.byKey[fieldPath]
	return v, ok
}

// Keys returns the field paths in first-insertion order.
func (d *Diagnostics) Keys() []string {
	return append([]string(nil), d.order...)
}

// Len reports the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	return len(d.order)
}

// Validator runs the rule blocks discovered by the schema parser.
type Validator struct {
	Rules map[string][]schemaparse.RuleSpec
	Eval  Evaluator
	Log   *logrus.Entry
}

// New constructs a Validator over a parsed schema's rule set.
func New(rules map[string][]schemaparse.RuleSpec, ev Evaluator) *Validator {
	return &Validator{Rules: rules, Eval: ev, Log: logrus.NewEntry(logrus.StandardLogger())}
}

// Validate runs every field's rules in declared order against data,
// stopping at the first failing rule per field. selected, when non-nil,
// restricts validation to the listed field paths.
func (v *Validator) Validate(data Getter, token *cancel.Token, selected []evalpath.Path) (Result, error) {
	diags := NewDiagnostics()
	for fieldPath, specs := range v.Rules {
		if err := token.Check(); err != nil {
			return Result{}, err
		}
		if !selectedMatches(selected, fieldPath) {
			continue
		}
		fieldValue, _ := data.Get(evalpath.Normalize(fieldPath))
		for _, spec := range specs {
			if spec.HasCondition {
				guard, err := v.Eval.Eval(spec.ConditionID, data)
				if err != nil {
					return Result{}, err
				}
				if !truthy(guard) {
					continue
				}
			}
			ok, err := v.runRule(spec, fieldValue, data)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				diags.Set(fieldPath, buildDiagnostic(fieldPath, spec))
				v.Log.WithField("field", fieldPath).WithField("kind", spec.Kind).Debug("validation rule failed")
				break
			}
		}
	}
	return Result{HasError: diags.Len() > 0, Errors: diags}, nil
}

func selectedMatches(selected []evalpath.Path, fieldPath string) bool {
	if selected == nil {
		return true
	}
	p := evalpath.Normalize(fieldPath)
	for _, s := range selected {
		if p.HasPrefix(s) || s.HasPrefix(p) {
			return true
		}
	}
	return false
}

func buildDiagnostic(fieldPath string, spec schemaparse.RuleSpec) Diagnostic {
	code := defaultCode(fieldPath, spec.Kind)
	if spec.Params != nil {
		if c, ok := spec.Params["code"].(string); ok && c != "" {
			code = c
		}
	}
	return Diagnostic{
		FieldPath: fieldPath,
		Kind:      spec.Kind,
		Message:   spec.Message,
		Code:      code,
		Params:    spec.Params,
	}
}

func defaultCode(fieldPath, kind string) string {
	return fieldPath + "." + kind
}

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
