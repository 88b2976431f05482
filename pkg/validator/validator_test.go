package validator

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/schemaparse"
)

type fakeData map[string]any

func (f fakeData) Get(p evalpath.Path) (any, bool) {
	v, ok := f[p.String()]
	return v, ok
}

type fakeEval struct{}

func (fakeEval) Eval(id logic.ID, data Getter) (any, error) { return true, nil }

func TestRequiredRuleFails(t *testing.T) {
	rules := map[string][]schemaparse.RuleSpec{
		"/name": {{Kind: "required", Message: "name is required"}},
	}
	v := New(rules, fakeEval{})
	result, err := v.Validate(fakeData{"/name": nil}, cancel.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasError {
		t.Fatal("expected a validation error for a missing required field")
	}
	diag, ok := result.Errors.Get("/name")
	if !ok {
		t.Fatal("expected a diagnostic at /name")
	}
	if diag.Code != "/name.required" {
		t.Fatalf("expected default code '/name.required', got %q", diag.Code)
	}
}

func TestRequiredRulePasses(t *testing.T) {
	rules := map[string][]schemaparse.RuleSpec{
		"/name": {{Kind: "required"}},
	}
	v := New(rules, fakeEval{})
	result, err := v.Validate(fakeData{"/name": "Ada"}, cancel.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasError {
		t.Fatalf("expected no error, got %#v", result.Errors.Keys())
	}
}

func TestStopsAtFirstFailingRule(t *testing.T) {
	rules := map[string][]schemaparse.RuleSpec{
		"/age": {
			{Kind: "minValue", Params: map[string]any{"value": 18.0}},
			{Kind: "maxValue", Params: map[string]any{"value": 65.0}},
		},
	}
	v := New(rules, fakeEval{})
	result, err := v.Validate(fakeData{"/age": 10.0}, cancel.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	diag, ok := result.Errors.Get("/age")
	if !ok || diag.Kind != "minValue" {
		t.Fatalf("expected the first failing rule (minValue) reported, got %#v", diag)
	}
}

func TestSelectivePathRestrictsValidation(t *testing.T) {
	rules := map[string][]schemaparse.RuleSpec{
		"/a": {{Kind: "required"}},
		"/b": {{Kind: "required"}},
	}
	v := New(rules, fakeEval{})
	result, err := v.Validate(fakeData{}, cancel.New(), []evalpath.Path{evalpath.Normalize("/a")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.Errors.Get("/b"); ok {
		t.Fatal("expected /b to be skipped by selective validation")
	}
	if _, ok := result.Errors.Get("/a"); !ok {
		t.Fatal("expected /a to be validated")
	}
}
