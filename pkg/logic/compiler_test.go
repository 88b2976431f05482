package logic

import "testing"

func TestInterningStructurallyEqual(t *testing.T) {
	c := NewCompiler()

	tax1 := map[string]any{"*": []any{map[string]any{"var": "price"}, 0.1}}
	tax2 := map[string]any{"*": []any{map[string]any{"var": "price"}, 0.1}}

	id1, err := c.Compile(tax1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := c.Compile(tax2)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected structurally equal expressions to intern to the same ID, got %d vs %d", id1, id2)
	}
}

func TestCompileVariableDependency(t *testing.T) {
	c := NewCompiler()
	id, err := c.Compile(map[string]any{"var": "price"})
	if err != nil {
		t.Fatal(err)
	}
	deps := c.Dependencies(id)
	if len(deps.Paths()) != 1 || deps.Paths()[0].String() != "/price" {
		t.Fatalf("unexpected dependency set: %#v", deps.Paths())
	}
}

func TestCompileUnknownOperator(t *testing.T) {
	c := NewCompiler()
	_, err := c.Compile(map[string]any{"frobnicate": []any{1}})
	if err == nil {
		t.Fatal("expected an UnknownOperator error")
	}
}

func TestCompileNestedDependenciesPropagate(t *testing.T) {
	c := NewCompiler()
	id, err := c.Compile(map[string]any{
		"+": []any{
			map[string]any{"var": "a"},
			map[string]any{"var": "b"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	deps := c.Dependencies(id)
	if len(deps.Paths()) != 2 {
		t.Fatalf("expected two dependencies, got %#v", deps.Paths())
	}
}

func TestCompileObjectLiteral(t *testing.T) {
	c := NewCompiler()
	id, err := c.Compile(map[string]any{"label": "Yes", "value": true})
	if err != nil {
		t.Fatal(err)
	}
	term := c.Term(id)
	if term.Kind != KindObject || len(term.Keys) != 2 {
		t.Fatalf("expected an object literal, got %#v", term)
	}
}

func TestCompileArrayLiteral(t *testing.T) {
	c := NewCompiler()
	id, err := c.Compile([]any{1.0, 2.0, 3.0})
	if err != nil {
		t.Fatal(err)
	}
	term := c.Term(id)
	if term.Kind != KindArray || len(term.Items) != 3 {
		t.Fatalf("expected a 3-item array literal, got %#v", term)
	}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	handle, id, err := r.Register(map[string]any{"var": "x"})
	if err != nil {
		t.Fatal(err)
	}
	resolved, ok := r.Resolve(handle)
	if !ok || resolved != id {
		t.Fatalf("Resolve(%q) = %d, %v; want %d, true", handle, resolved, ok, id)
	}
}
