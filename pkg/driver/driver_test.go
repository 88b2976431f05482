package driver

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/schemaparse"
)

func priceTaxTotalSchema() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"price": map[string]any{"type": "number"},
			"tax": map[string]any{
				"type":        "number",
				"$evaluation": map[string]any{"*": []any{map[string]any{"var": "price"}, 0.1}},
			},
			"total": map[string]any{
				"type":        "number",
				"$evaluation": map[string]any{"+": []any{map[string]any{"var": "price"}, map[string]any{"var": "tax"}}},
			},
			"note": map[string]any{
				"type": "string",
				"condition": map[string]any{
					"hidden": map[string]any{"==": []any{map[string]any{"var": "price"}, 0.0}},
				},
			},
		},
	}
}

func mustParse(t *testing.T, schema map[string]any) (*schemaparse.ParsedSchema, *logic.Compiler) {
	t.Helper()
	compiler := logic.NewCompiler()
	parsed, err := schemaparse.Parse(schema, compiler)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return parsed, compiler
}

// TestEvaluateDerivesTaxAndTotalChain: a field derives from another
// derived field, and both land in the working document after one
// Evaluate call.
func TestEvaluateDerivesTaxAndTotalChain(t *testing.T) {
	parsed, compiler := mustParse(t, priceTaxTotalSchema())
	d := New(parsed, compiler)

	result, err := d.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	doc, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected a map root, got %T", result)
	}
	if doc["tax"] != 10.0 {
		t.Fatalf("expected tax=10, got %v", doc["tax"])
	}
	if doc["total"] != 110.0 {
		t.Fatalf("expected total=110, got %v", doc["total"])
	}
}

// TestSelectiveEvaluationRestrictsToChosenPaths: selecting only /tax
// must not also compute /total, even though /total depends on /tax in
// the schema's own graph.
func TestSelectiveEvaluationRestrictsToChosenPaths(t *testing.T) {
	parsed, compiler := mustParse(t, priceTaxTotalSchema())
	d := New(parsed, compiler)

	_, err := d.Evaluate(map[string]any{"price": 100.0}, nil, []string{"/tax"}, cancel.New())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if v, ok := d.Store.Get(evalpath.Normalize("/tax")); !ok || v != 10.0 {
		t.Fatalf("expected /tax=10 to have run, got %v (ok=%v)", v, ok)
	}
	if _, ok := d.Store.Get(evalpath.Normalize("/total")); ok {
		t.Fatal("expected /total to be skipped by selective evaluation")
	}
}

// TestEvaluateDependentsTogglesVisibility: changing price to zero
// through the incremental entry point flips the condition the note
// field's visibility is wired to.
func TestEvaluateDependentsTogglesVisibility(t *testing.T) {
	parsed, compiler := mustParse(t, priceTaxTotalSchema())
	d := New(parsed, compiler)

	if _, err := d.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v, _ := d.Store.Get(evalpath.Normalize("/note/condition/hidden")); v != false {
		t.Fatalf("expected note visible at price=100, got %v", v)
	}

	d.Store.Set(evalpath.Normalize("/price"), 0.0)
	updated, err := d.EvaluateDependents([]string{"/price"}, nil, nil, false, cancel.New())
	if err != nil {
		t.Fatalf("EvaluateDependents: %v", err)
	}

	hiddenPath := evalpath.Normalize("/note/condition/hidden").String()
	if v, ok := updated[hiddenPath]; !ok || v != true {
		t.Fatalf("expected %s=true in the closure update, got %v (ok=%v)", hiddenPath, v, ok)
	}
	if v, _ := d.Store.Get(evalpath.Normalize("/note/condition/hidden")); v != true {
		t.Fatalf("expected the store itself to reflect hidden=true, got %v", v)
	}
}

// TestCacheOptionControlsInitialState exercises that a Driver built with
// caching disabled starts with its top-level cache disabled, matching the
// WithCacheEnabled option's contract.
func TestCacheOptionControlsInitialState(t *testing.T) {
	parsed, compiler := mustParse(t, priceTaxTotalSchema())
	d := New(parsed, compiler, WithCacheEnabled(false))

	if d.Cache.Enabled() {
		t.Fatal("expected cache to start disabled when WithCacheEnabled(false) is given")
	}
	d.EnableCache()
	if !d.Cache.Enabled() {
		t.Fatal("expected EnableCache to re-enable the cache")
	}
}

// TestSelectiveEvaluationRetainsStaleValues: a selective re-evaluation
// with fresh data recomputes only the selected keys, while unselected
// keys keep the values the previous full run left behind.
func TestSelectiveEvaluationRetainsStaleValues(t *testing.T) {
	parsed, compiler := mustParse(t, priceTaxTotalSchema())
	d := New(parsed, compiler)

	if _, err := d.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate (full): %v", err)
	}

	if _, err := d.Evaluate(map[string]any{"price": 200.0}, nil, []string{"/tax"}, cancel.New()); err != nil {
		t.Fatalf("Evaluate (selective): %v", err)
	}
	if v, _ := d.Store.Get(evalpath.Normalize("/tax")); v != 20.0 {
		t.Fatalf("expected /tax=20 after selective re-evaluation, got %v", v)
	}
	if v, _ := d.Store.Get(evalpath.Normalize("/total")); v != 110.0 {
		t.Fatalf("expected /total to retain its stale value 110, got %v", v)
	}
}

// TestPreCancelledTokenLeavesDataUntouched: a call entered with an
// already-cancelled token fails with Cancelled before any write, and a
// fresh token succeeds.
func TestPreCancelledTokenLeavesDataUntouched(t *testing.T) {
	parsed, compiler := mustParse(t, priceTaxTotalSchema())
	d := New(parsed, compiler)

	if _, err := d.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	token := cancel.New()
	token.Cancel()
	if _, err := d.Evaluate(map[string]any{"price": 999.0}, nil, nil, token); err == nil {
		t.Fatal("expected Cancelled from a pre-cancelled token")
	}
	if v, _ := d.Store.Get(evalpath.Normalize("/price")); v != 100.0 {
		t.Fatalf("expected working data untouched after cancellation, got price=%v", v)
	}

	if _, err := d.Evaluate(map[string]any{"price": 200.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate with a fresh token: %v", err)
	}
	if v, _ := d.Store.Get(evalpath.Normalize("/tax")); v != 20.0 {
		t.Fatalf("expected the fresh-token run to complete, got tax=%v", v)
	}
}

// TestSubformEvaluatesPerElementWithParentScope exercises the
// array-with-items path: each element is evaluated against the item
// schema, with $parent bound to the enclosing document through the
// element's context view.
func TestSubformEvaluatesPerElementWithParentScope(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"rate": map[string]any{"type": "number"},
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"properties": map[string]any{
						"qty": map[string]any{"type": "number"},
						"cost": map[string]any{
							"type": "number",
							"$evaluation": map[string]any{
								"*": []any{
									map[string]any{"var": "qty"},
									map[string]any{"var": "$context.$parent.rate"},
								},
							},
						},
					},
				},
			},
		},
	}
	parsed, compiler := mustParse(t, schema)
	d := New(parsed, compiler)

	data := map[string]any{
		"rate": 2.0,
		"lines": []any{
			map[string]any{"qty": 3.0},
			map[string]any{"qty": 5.0},
		},
	}
	result, err := d.Evaluate(data, nil, nil, cancel.New())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	doc := result.(map[string]any)
	lines, ok := doc["lines"].([]any)
	if !ok || len(lines) != 2 {
		t.Fatalf("expected 2 evaluated line elements, got %#v", doc["lines"])
	}
	first := lines[0].(map[string]any)
	if first["cost"] != 6.0 {
		t.Fatalf("expected lines[0].cost=6 (qty 3 * parent rate 2), got %v", first["cost"])
	}
	second := lines[1].(map[string]any)
	if second["cost"] != 10.0 {
		t.Fatalf("expected lines[1].cost=10, got %v", second["cost"])
	}
}
