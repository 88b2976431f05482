package tableexec

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

// fakeEvaluator evaluates a compiled logic.Compiler's terms directly,
// enough to exercise tableexec without depending on pkg/evaluator.
type fakeEvaluator struct{ c *logic.Compiler }

func (f fakeEvaluator) Eval(id logic.ID, data Getter) (any, error) {
	term := f.c.Term(id)
	switch term.Kind {
	case logic.KindLiteralNumber:
		return parseNum(term.NumberText), nil
	case logic.KindLiteralBoolean:
		return term.BoolValue, nil
	case logic.KindVariable:
		if v, ok := data.Get(term.VarPath); ok {
			return v, nil
		}
		return nil, nil
	case logic.KindApply:
		switch term.Op {
		case "+":
			a, _ := f.Eval(term.Args[0], data)
			b, _ := f.Eval(term.Args[1], data)
			return a.(float64) + b.(float64), nil
		}
	}
	return nil, nil
}

func parseNum(s string) float64 {
	var f float64
	for _, r := range s {
		if r == '-' {
			continue
		}
		f = f*10 + float64(r-'0')
	}
	return f
}

type emptyScope struct{}

func (emptyScope) Get(p evalpath.Path) (any, bool) { return nil, false }

func TestStaticRowBuildsObjectInSchemaOrder(t *testing.T) {
	c := logic.NewCompiler()
	priceID, _ := c.Compile(10.0)
	ev := fakeEvaluator{c: c}

	def := TableDef{
		RowPlans: []RowPlan{
			{Kind: RowStatic, Columns: []ColumnPlan{{Name: "price", Expr: priceID}}},
		},
	}

	rows, err := Execute(ev, def, emptyScope{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["price"] != 10.0 {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestRepeatRowsRespectBounds(t *testing.T) {
	c := logic.NewCompiler()
	startID, _ := c.Compile(0.0)
	endID, _ := c.Compile(3.0)
	indexColID, _ := c.Compile(map[string]any{"var": "$index"})
	ev := fakeEvaluator{c: c}

	def := TableDef{
		RowPlans: []RowPlan{
			{
				Kind:       RowRepeat,
				StartExpr:  startID,
				EndExpr:    endID,
				NormalCols: []ColumnPlan{{Name: "idx", Expr: indexColID}},
			},
		},
	}

	rows, err := Execute(ev, def, emptyScope{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows for [0,3), got %d", len(rows))
	}
	for i, r := range rows {
		row := r.(map[string]any)
		if row["idx"] != float64(i) {
			t.Fatalf("row %d: idx = %v, want %d", i, row["idx"], i)
		}
	}
}

func TestSkipLogicEmitsNoRows(t *testing.T) {
	c := logic.NewCompiler()
	rowColID, _ := c.Compile(1.0)
	skipID, _ := c.Compile(true)
	ev := fakeEvaluator{c: c}

	def := TableDef{
		HasSkipLogic: true,
		SkipLogic:    skipID,
		RowPlans: []RowPlan{
			{Kind: RowStatic, Columns: []ColumnPlan{{Name: "x", Expr: rowColID}}},
		},
	}

	rows, err := Execute(ev, def, emptyScope{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rows != nil {
		t.Fatalf("expected nil rows when the skip predicate is truthy, got %#v", rows)
	}
}

func TestRowExecutionObservesCancellation(t *testing.T) {
	c := logic.NewCompiler()
	startID, _ := c.Compile(0.0)
	endID, _ := c.Compile(1000.0)
	colID, _ := c.Compile(map[string]any{"var": "$index"})
	ev := fakeEvaluator{c: c}

	def := TableDef{
		RowPlans: []RowPlan{
			{
				Kind:       RowRepeat,
				StartExpr:  startID,
				EndExpr:    endID,
				NormalCols: []ColumnPlan{{Name: "idx", Expr: colID}},
			},
		},
	}

	token := cancel.New()
	token.Cancel()
	if _, err := Execute(ev, def, emptyScope{}, token); err == nil {
		t.Fatal("expected a cancelled token to abort row execution")
	}
}
