// Package tableexec implements table metadata execution:
// given pre-compiled table metadata and the enclosing scope's data view,
// it runs the $datas columns, $skip and $clear predicates, and each row
// plan of a compiled table, honoring
// the forward-reference partition the schema parser computed for
// repeat rows.
package tableexec

import (
	"math"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

// Getter resolves a canonical path against a data view.
type Getter interface {
	Get(path evalpath.Path) (any, bool)
}

// Evaluator is the narrow slice of pkg/evaluator.Evaluator tableexec
// depends on, kept as an interface so this package never imports the
// evaluator package directly and stays reusable against any compatible
// executor.
type Evaluator interface {
	Eval(id logic.ID, data Getter) (any, error)
}

// ColumnPlan is one column of a row: its destination field name and its
// compiled expression.
type ColumnPlan struct {
	Name string
	Expr logic.ID
}

// RowKind tags whether a RowPlan emits exactly one row (Static) or a
// variable number driven by a repeat range (Repeat).
type RowKind uint8

const (
	RowStatic RowKind = iota
	RowRepeat
)

// RowPlan is one pre-compiled row-plan entry of a table definition.
type RowPlan struct {
	Kind RowKind

	// RowStatic
	Columns []ColumnPlan

	// RowRepeat
	StartExpr   logic.ID
	EndExpr     logic.ID
	NormalCols  []ColumnPlan
	ForwardCols []ColumnPlan
}

// TableDef is a fully pre-compiled table: the expressions the schema
// parser found under $table, ready to run against any enclosing scope.
type TableDef struct {
	DataPlans []ColumnPlan

	HasSkipLogic bool
	SkipLogic    logic.ID

	HasClearLogic bool
	ClearLogic    logic.ID

	RowPlans []RowPlan
}

// layeredGetter overlays a flat set of local bindings (a per-table
// ephemeral scope, or a row's own columns and $index) over an outer
// Getter, so row expressions can address sibling columns and $index by
// ordinary variable paths alongside the enclosing document.
type layeredGetter struct {
	local map[string]any
	outer Getter
}

func (l layeredGetter) Get(p evalpath.Path) (any, bool) {
	if !p.IsRoot() {
		if v, ok := l.local[p.Head()]; ok {
			if p.Depth() == 1 {
				return v, true
			}
			return evalpath.Get(v, evalpath.FromSegments(p.Segments()[1:]...))
		}
	}
	return l.outer.Get(p)
}

// Execute runs a table definition against its enclosing scope, returning
// the resulting row objects (or nil for "skip", or an empty, non-nil
// slice for "clear"). The cancellation token is checked before each row;
// a nil token is never cancelled.
func Execute(ev Evaluator, def TableDef, scope Getter, token *cancel.Token) ([]any, error) {
	dataLocal := make(map[string]any, len(def.DataPlans))
	dataRow := make(map[string]any, len(def.DataPlans))
	if err := evalColumnsInto(ev, def.DataPlans, scope, dataLocal, dataRow); err != nil {
		return nil, err
	}
	tableScope := layeredGetter{local: dataLocal, outer: scope}

	if def.HasSkipLogic {
		v, err := ev.Eval(def.SkipLogic, tableScope)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return nil, nil
		}
	}

	if def.HasClearLogic {
		v, err := ev.Eval(def.ClearLogic, tableScope)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return []any{}, nil
		}
	}

	var rows []any
	for _, plan := range def.RowPlans {
		if err := token.Check(); err != nil {
			return nil, err
		}
		switch plan.Kind {
		case RowStatic:
			row, err := executeStaticRow(ev, plan, tableScope)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		case RowRepeat:
			repeated, err := executeRepeatRows(ev, plan, tableScope, token)
			if err != nil {
				return nil, err
			}
			rows = append(rows, repeated...)
		}
	}
	return rows, nil
}

// colVarKey is the variable-path key a row's own columns are addressed
// by from sibling column expressions: a "$" prefix on the column name,
// matching the convention the table-metadata source this is grounded on
// uses for its precomputed var_path.
func colVarKey(name string) string { return "$" + name }

func executeStaticRow(ev Evaluator, plan RowPlan, scope Getter) (any, error) {
	local := make(map[string]any, len(plan.Columns))
	rowScope := layeredGetter{local: local, outer: scope}
	row := make(map[string]any, len(plan.Columns))
	for _, col := range plan.Columns {
		v, err := ev.Eval(col.Expr, rowScope)
		if err != nil {
			return nil, err
		}
		local[colVarKey(col.Name)] = v
		row[col.Name] = v
	}
	return row, nil
}

func executeRepeatRows(ev Evaluator, plan RowPlan, scope Getter, token *cancel.Token) ([]any, error) {
	startVal, err := ev.Eval(plan.StartExpr, scope)
	if err != nil {
		return nil, err
	}
	endVal, err := ev.Eval(plan.EndExpr, scope)
	if err != nil {
		return nil, err
	}
	start, startOK := truncateBound(startVal)
	end, endOK := truncateBound(endVal)
	if !startOK || !endOK {
		return nil, nil
	}

	var rows []any
	for idx := start; idx < end; idx++ {
		if err := token.Check(); err != nil {
			return nil, err
		}
		local := map[string]any{"$index": float64(idx)}
		rowScope := layeredGetter{local: local, outer: scope}

		row := make(map[string]any, len(plan.NormalCols)+len(plan.ForwardCols))
		if err := evalColumnsInto(ev, plan.NormalCols, rowScope, local, row); err != nil {
			return nil, err
		}
		if err := evalColumnsInto(ev, plan.ForwardCols, rowScope, local, row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// evalColumnsInto evaluates each column in order against scope, writing
// each result into both local (under its "$name" variable key, so later
// columns in the same pass observe earlier ones) and row (under its bare
// field name, for the emitted row object).
func evalColumnsInto(ev Evaluator, cols []ColumnPlan, scope Getter, local, row map[string]any) error {
	for _, col := range cols {
		v, err := ev.Eval(col.Expr, scope)
		if err != nil {
			return err
		}
		local[colVarKey(col.Name)] = v
		row[col.Name] = v
	}
	return nil
}

// truncateBound converts an evaluated repeat bound to an int, truncating
// toward zero. A nil bound (or a non-numeric one) reports ok=false, which
// the caller treats as zero rows.
func truncateBound(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(math.Trunc(t)), true
	case int64:
		return int(t), true
	default:
		return 0, false
	}
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
