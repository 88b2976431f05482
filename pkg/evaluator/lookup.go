package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/logic"
)

// evalLookup implements match(table, value, field, ...) and
// indexat(value, table, field). Both return the index of the first row
// satisfying every (value, field) condition pair, or -1 when no row
// matches; they differ only in argument order and in match accepting
// additional trailing (value, field) pairs that must all hold on the
// same row. A prebuilt TableIndex is consulted when the table argument
// is a direct variable reference to an indexed path, falling back to a
// linear scan otherwise.
func (e *Evaluator) evalLookup(op string, args []logic.ID, data Getter, depth int) (any, error) {
	var tableArgID logic.ID
	var condArgs []logic.ID
	switch op {
	case "match":
		if len(args) < 3 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "match requires table, value, field"}
		}
		tableArgID = args[0]
		condArgs = args[1:]
	case "indexat":
		if len(args) < 3 {
			return nil, &evalerr.TypeMismatch{Op: op, Got: "indexat requires value, table, field"}
		}
		tableArgID = args[1]
		condArgs = []logic.ID{args[0], args[2]}
	default:
		return nil, &evalerr.UnknownOperator{Name: op}
	}

	var values []any
	var fields []string
	for i := 0; i+1 < len(condArgs); i += 2 {
		value, err := e.eval(condArgs[i], data, depth+1)
		if err != nil {
			return nil, err
		}
		fieldAny, err := e.eval(condArgs[i+1], data, depth+1)
		if err != nil {
			return nil, err
		}
		field, _ := fieldAny.(string)
		values = append(values, value)
		fields = append(fields, field)
	}

	if indices, rows, ok := e.indexedRows(tableArgID, data, fields[0], values[0]); ok {
		for _, i := range indices {
			if i >= 0 && i < len(rows) && rowMatches(rows[i], values, fields) {
				return float64(i), nil
			}
		}
		return float64(-1), nil
	}

	table, err := e.eval(tableArgID, data, depth+1)
	if err != nil {
		return nil, err
	}
	rows, _ := table.([]any)
	for i, row := range rows {
		if rowMatches(row, values, fields) {
			return float64(i), nil
		}
	}
	return float64(-1), nil
}

// rowMatches reports whether row is an object satisfying every
// (value, field) condition pair under loose equality.
func rowMatches(row any, values []any, fields []string) bool {
	m, ok := row.(map[string]any)
	if !ok {
		return false
	}
	for i, field := range fields {
		if !looseEqual(m[field], values[i]) {
			return false
		}
	}
	return true
}

// indexedRows attempts an index-assisted lookup when the table argument
// is a direct variable reference to a path with a registered TableIndex.
// The returned indices are the candidates matching the first condition
// pair, in ascending order; the caller verifies any remaining pairs
// against the rows. ok=false means no index applies and the caller
// should evaluate and scan the table directly.
func (e *Evaluator) indexedRows(tableArgID logic.ID, data Getter, field string, value any) (indices []int, rows []any, ok bool) {
	term := e.terms.Term(tableArgID)
	if term.Kind != logic.KindVariable {
		return nil, nil, false
	}
	idx, found := e.tables[term.VarPath.String()]
	if !found {
		return nil, nil, false
	}
	indices, indexed := idx.Lookup(field, value)
	if !indexed {
		return nil, nil, false
	}
	table, _ := data.Get(term.VarPath)
	rows, _ = table.([]any)
	return indices, rows, true
}
