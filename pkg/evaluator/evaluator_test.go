package evaluator

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

func compile(t *testing.T, c *logic.Compiler, raw any) logic.ID {
	t.Helper()
	id, err := c.Compile(raw)
	if err != nil {
		t.Fatalf("Compile(%#v): %v", raw, err)
	}
	return id
}

func TestArithmeticIsDecimalExact(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)

	id := compile(t, c, map[string]any{"-": []any{1.0, 0.003}})
	got, err := ev.Eval(id, ValueGetter{Value: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.997 {
		t.Fatalf("1 - 0.003 = %v, want exactly 0.997", got)
	}

	id2 := compile(t, c, map[string]any{"+": []any{0.1, 0.2}})
	got2, err := ev.Eval(id2, ValueGetter{Value: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got2 != 0.3 {
		t.Fatalf("0.1 + 0.2 = %v, want exactly 0.3", got2)
	}
}

func TestDivisionByZeroYieldsNull(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	id := compile(t, c, map[string]any{"/": []any{5.0, 0.0}})
	got, err := ev.Eval(id, ValueGetter{Value: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("5 / 0 = %v, want nil", got)
	}
}

func TestLooseVsStrictEquality(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)

	loose := compile(t, c, map[string]any{"==": []any{"1", 1.0}})
	got, _ := ev.Eval(loose, ValueGetter{Value: map[string]any{}})
	if got != true {
		t.Fatalf(`"1" == 1 should be true under loose equality, got %v`, got)
	}

	strict := compile(t, c, map[string]any{"===": []any{"1", 1.0}})
	got2, _ := ev.Eval(strict, ValueGetter{Value: map[string]any{}})
	if got2 != false {
		t.Fatalf(`"1" === 1 should be false under strict equality, got %v`, got2)
	}
}

func TestLogicalShortCircuit(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)

	andID := compile(t, c, map[string]any{"and": []any{true, 0.0, "unreached"}})
	got, _ := ev.Eval(andID, ValueGetter{Value: map[string]any{}})
	if got != 0.0 {
		t.Fatalf("and should return the first falsy operand, got %v", got)
	}

	orID := compile(t, c, map[string]any{"or": []any{false, "first-truthy", "unreached"}})
	got2, _ := ev.Eval(orID, ValueGetter{Value: map[string]any{}})
	if got2 != "first-truthy" {
		t.Fatalf("or should return the first truthy operand, got %v", got2)
	}
}

func TestQuantifiers(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{
		"nums": []any{2.0, 4.0, 6.0},
	}}

	allEven := compile(t, c, map[string]any{
		"all": []any{map[string]any{"var": "nums"}, map[string]any{"==": []any{map[string]any{"%": []any{map[string]any{"var": ""}, 2.0}}, 0.0}}},
	})
	got, err := ev.Eval(allEven, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != true {
		t.Fatalf("expected all elements even, got %v", got)
	}
}

func TestAggregateSumWithFieldSelector(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{
		"items": []any{
			map[string]any{"amount": 10.0},
			map[string]any{"amount": 15.0},
		},
	}}
	id := compile(t, c, map[string]any{"sum": []any{map[string]any{"var": "items"}, "amount"}})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 25.0 {
		t.Fatalf("sum = %v, want 25", got)
	}
}

func TestAggregateSumThresholdIsInclusive(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{}}

	tests := []struct {
		name      string
		threshold float64
		want      float64
	}{
		{"inclusive index", 2.0, 6.0},
		{"zero keeps first element", 0.0, 1.0},
		{"negative means no limit", -1.0, 15.0},
		{"over length sums all", 10.0, 15.0},
	}
	for _, tc := range tests {
		id := compile(t, c, map[string]any{
			"sum": []any{[]any{1.0, 2.0, 3.0, 4.0, 5.0}, nil, tc.threshold},
		})
		got, err := ev.Eval(id, data)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: sum with threshold %v = %v, want %v", tc.name, tc.threshold, got, tc.want)
		}
	}
}

func TestAggregateSumFieldSelectorWithThreshold(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{
		"table": []any{
			map[string]any{"value": 10.0},
			map[string]any{"value": 20.0},
			map[string]any{"value": 30.0},
			map[string]any{"value": 40.0},
			map[string]any{"value": 50.0},
		},
	}}
	id := compile(t, c, map[string]any{
		"sum": []any{map[string]any{"var": "table"}, "value", 2.0},
	})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 60.0 {
		t.Fatalf("sum(table, value, 2) = %v, want 60 (indices 0..2)", got)
	}
}

func TestMatchReturnsRowIndex(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{
		"rows": []any{
			map[string]any{"id": 1.0, "val": "a"},
			map[string]any{"id": 2.0, "val": "b"},
			map[string]any{"id": 3.0, "val": "a"},
		},
	}}

	id := compile(t, c, map[string]any{"match": []any{map[string]any{"var": "rows"}, "a", "val"}})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.0 {
		t.Fatalf("match(rows, a, val) = %v, want index 0 (first matching row)", got)
	}

	missing := compile(t, c, map[string]any{"match": []any{map[string]any{"var": "rows"}, "z", "val"}})
	got2, err := ev.Eval(missing, data)
	if err != nil {
		t.Fatal(err)
	}
	if got2 != float64(-1) {
		t.Fatalf("match for a missing value = %v, want -1", got2)
	}
}

func TestMatchWithMultipleConditionPairs(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{
		"rows": []any{
			map[string]any{"id": 1.0, "val": "a"},
			map[string]any{"id": 2.0, "val": "b"},
			map[string]any{"id": 3.0, "val": "a"},
		},
	}}

	id := compile(t, c, map[string]any{
		"match": []any{map[string]any{"var": "rows"}, "a", "val", 3.0, "id"},
	})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2.0 {
		t.Fatalf("match with both val=a and id=3 = %v, want index 2", got)
	}
}

func TestMatchUsesTableIndexWhenAvailable(t *testing.T) {
	c := logic.NewCompiler()
	rows := []any{
		map[string]any{"code": "US", "label": "United States"},
		map[string]any{"code": "CA", "label": "Canada"},
	}
	idx := BuildTableIndex(rows, []string{"code"})
	ev := New(c, WithTableIndex(evalpath.Normalize("countries"), idx))

	data := ValueGetter{Value: map[string]any{"countries": rows}}
	id := compile(t, c, map[string]any{"match": []any{map[string]any{"var": "countries"}, "CA", "code"}})

	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.0 {
		t.Fatalf("match(countries, CA, code) = %v, want index 1", got)
	}
}

func TestIndexatReturnsMinusOneForNotFound(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{
		"countries": []any{map[string]any{"code": "US"}},
	}}
	id := compile(t, c, map[string]any{"indexat": []any{"ZZ", map[string]any{"var": "countries"}, "code"}})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != float64(-1) {
		t.Fatalf("indexat for missing key = %v, want -1", got)
	}
}

func TestTemplateInterpolation(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{"name": "Ada"}}
	id := compile(t, c, map[string]any{"template": []any{"Hello, {name}!"}})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello, Ada!" {
		t.Fatalf("template result = %q, want %q", got, "Hello, Ada!")
	}
}

func TestIfChain(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	id := compile(t, c, map[string]any{"if": []any{false, "a", true, "b", "c"}})
	got, err := ev.Eval(id, ValueGetter{Value: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "b" {
		t.Fatalf("if chain = %v, want b", got)
	}
}

func TestReturnWraps(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	id := compile(t, c, map[string]any{"return": []any{42.0}})
	got, err := ev.Eval(id, ValueGetter{Value: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	rv, ok := got.(ReturnValue)
	if !ok || rv.Value != 42.0 {
		t.Fatalf("return = %#v, want ReturnValue{42.0}", got)
	}
}

func TestRecursionLimit(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c, WithMaxDepth(2))
	id := compile(t, c, map[string]any{
		"+": []any{map[string]any{"+": []any{map[string]any{"+": []any{1.0, 1.0}}, 1.0}}, 1.0},
	})
	_, err := ev.Eval(id, ValueGetter{Value: map[string]any{}})
	if err == nil {
		t.Fatal("expected a RecursionLimit error for deeply nested arithmetic")
	}
}

func TestReduceAccumulates(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c)
	data := ValueGetter{Value: map[string]any{"nums": []any{1.0, 2.0, 3.0}}}
	id := compile(t, c, map[string]any{
		"reduce": []any{
			map[string]any{"var": "nums"},
			map[string]any{"+": []any{map[string]any{"var": "accumulator"}, map[string]any{"var": "current"}}},
			0.0,
		},
	})
	got, err := ev.Eval(id, data)
	if err != nil {
		t.Fatal(err)
	}
	if got != 6.0 {
		t.Fatalf("reduce sum = %v, want 6", got)
	}
}

func TestSafeNaNHandlingCoalescesToZero(t *testing.T) {
	c := logic.NewCompiler()
	ev := New(c, WithSafeNaNHandling(true))
	id := compile(t, c, map[string]any{"/": []any{5.0, 0.0}})
	got, err := ev.Eval(id, ValueGetter{Value: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.0 {
		t.Fatalf("5 / 0 with safe-NaN handling = %v, want 0", got)
	}
}
