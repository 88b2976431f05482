package engine

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/cancel"
)

func priceTaxSchema() map[string]any {
	return map[string]any{
		"properties": map[string]any{
			"price": map[string]any{"type": "number"},
			"tax": map[string]any{
				"type":        "number",
				"$evaluation": map[string]any{"*": []any{map[string]any{"var": "price"}, 0.1}},
				"$layout":     map[string]any{"widget": "currency"},
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

func mustNew(t *testing.T) *Engine {
	t.Helper()
	e, err := New(priceTaxSchema())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEvaluateComputesDerivedField(t *testing.T) {
	e := mustNew(t)

	result, err := e.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New())
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
}

func TestGetEvaluatedSchemaAttachesValuesAndLayout(t *testing.T) {
	e := mustNew(t)
	if _, err := e.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	tree, err := e.GetEvaluatedSchema(false)
	if err != nil {
		t.Fatalf("GetEvaluatedSchema: %v", err)
	}
	props, ok := tree["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %#v", tree)
	}
	tax, ok := props["tax"].(map[string]any)
	if !ok {
		t.Fatalf("expected tax field map, got %#v", props["tax"])
	}
	if tax["value"] != 10.0 {
		t.Fatalf("expected tax value=10, got %v", tax["value"])
	}
	if _, ok := tax["$layout"].(map[string]any); !ok {
		t.Fatalf("expected a resolved $layout container, got %#v", tax["$layout"])
	}

	note, ok := props["note"].(map[string]any)
	if !ok {
		t.Fatalf("expected note field map, got %#v", props["note"])
	}
	cond, ok := note["condition"].(map[string]any)
	if !ok {
		t.Fatalf("expected note.condition map, got %#v", note["condition"])
	}
	if cond["hidden"] != false {
		t.Fatalf("expected note hidden=false at price=100, got %v", cond["hidden"])
	}
}

func TestGetSchemaValueReconstitutesDataShape(t *testing.T) {
	e := mustNew(t)
	if _, err := e.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	value, err := e.GetSchemaValue()
	if err != nil {
		t.Fatalf("GetSchemaValue: %v", err)
	}
	doc, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", value)
	}
	if doc["tax"] != 10.0 {
		t.Fatalf("expected tax=10, got %v", doc["tax"])
	}
	if doc["price"] != 100.0 {
		t.Fatalf("expected price=100, got %v", doc["price"])
	}
}

func TestGetEvaluatedSchemaByPathsShapes(t *testing.T) {
	e := mustNew(t)
	if _, err := e.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	flat, err := e.GetEvaluatedSchemaByPaths([]string{"/tax"}, true, ShapeFlat)
	if err != nil {
		t.Fatalf("GetEvaluatedSchemaByPaths(flat): %v", err)
	}
	flatMap, ok := flat.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", flat)
	}
	taxNode, ok := flatMap["tax"].(map[string]any)
	if !ok {
		t.Fatalf("expected flat key \"tax\", got %#v", flatMap)
	}
	if taxNode["value"] != 10.0 {
		t.Fatalf("expected tax.value=10 in flat shape, got %v", taxNode["value"])
	}

	array, err := e.GetEvaluatedSchemaByPaths([]string{"/tax"}, true, ShapeArray)
	if err != nil {
		t.Fatalf("GetEvaluatedSchemaByPaths(array): %v", err)
	}
	values, ok := array.([]any)
	if !ok || len(values) != 1 {
		t.Fatalf("expected a one-element array, got %#v", array)
	}
}

func TestValidateReportsRuleFailures(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"price": map[string]any{
				"type": "number",
				"rules": []any{
					map[string]any{
						"kind":    "minValue",
						"params":  map[string]any{"value": 0.0},
						"message": "price must not be negative",
					},
				},
			},
		},
	}
	e, err := New(schema)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Evaluate(map[string]any{"price": -5.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	result, err := e.Validate(nil, cancel.New())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.HasError {
		t.Fatal("expected at least one validation error for a negative price")
	}
}

func TestCacheControlsReflectState(t *testing.T) {
	e, err := New(priceTaxSchema(), WithCacheEnabled(false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Driver.Cache.Enabled() {
		t.Fatal("expected cache to start disabled")
	}

	e.EnableCache()
	if !e.Driver.Cache.Enabled() {
		t.Fatal("expected EnableCache to re-enable the cache")
	}

	if _, err := e.Evaluate(map[string]any{"price": 100.0}, nil, nil, cancel.New()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if e.CacheLen() == 0 {
		t.Fatal("expected at least one cache entry after evaluation")
	}

	e.ClearCache()
	if e.CacheLen() != 0 {
		t.Fatalf("expected ClearCache to empty the cache, got %d entries", e.CacheLen())
	}
	if !e.Driver.Cache.Enabled() {
		t.Fatal("expected ClearCache to leave the cache enabled")
	}
}

func TestCompileLogicAndRunLogicRoundTrip(t *testing.T) {
	handle, err := CompileLogic(map[string]any{"+": []any{map[string]any{"var": "a"}, map[string]any{"var": "b"}}})
	if err != nil {
		t.Fatalf("CompileLogic: %v", err)
	}

	result, err := RunLogic(handle, map[string]any{"a": 2.0, "b": 3.0}, nil)
	if err != nil {
		t.Fatalf("RunLogic: %v", err)
	}
	if result != 5.0 {
		t.Fatalf("expected 5, got %v", result)
	}
}

func TestRunLogicUnknownHandleFails(t *testing.T) {
	if _, err := RunLogic("not-a-real-handle", nil, nil); err == nil {
		t.Fatal("expected an error for an unregistered handle")
	}
}

func TestCacheParsedAndNewFromCached(t *testing.T) {
	e := mustNew(t)
	e.CacheParsed("price-tax-schema")

	cached, ok := NewFromCached("price-tax-schema", e.Compiler())
	if !ok {
		t.Fatal("expected NewFromCached to find the cached entry")
	}

	result, err := cached.Evaluate(map[string]any{"price": 50.0}, nil, nil, cancel.New())
	if err != nil {
		t.Fatalf("Evaluate on cached engine: %v", err)
	}
	doc, ok := result.(map[string]any)
	if !ok || doc["tax"] != 5.0 {
		t.Fatalf("expected tax=5 from the cached engine, got %#v", result)
	}
}
