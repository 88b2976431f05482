package evaluator

import (
	"fmt"
	"strconv"

	"github.com/bits-and-blooms/bitset"
)

// TableIndex is an optional side structure: for a table flagged
// index-worthy by the schema parser, a per-column map from scalar key to
// the set of row indices holding that key. match and
// indexat consult it for O(1) lookup instead of a linear scan; it is
// rebuilt whenever the table value is replaced.
type TableIndex struct {
	columns  map[string]map[string]*bitset.BitSet
	rowCount int
}

// BuildTableIndex indexes the given fields of each row (rows must be
// map[string]any to contribute to the index; non-object rows are skipped).
func BuildTableIndex(rows []any, fields []string) *TableIndex {
	idx := &TableIndex{columns: make(map[string]map[string]*bitset.BitSet), rowCount: len(rows)}
	for i, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range fields {
			v, present := m[field]
			if !present {
				continue
			}
			perValue, ok := idx.columns[field]
			if !ok {
				perValue = make(map[string]*bitset.BitSet)
				idx.columns[field] = perValue
			}
			key := scalarKey(v)
			bs, ok := perValue[key]
			if !ok {
				bs = bitset.New(uint(len(rows)))
				perValue[key] = bs
			}
			bs.Set(uint(i))
		}
	}
	return idx
}

// Lookup returns the row indices whose field equals value, in ascending
// order, and whether the field is indexed at all (a field that is indexed
// but has no matching rows still reports ok=true with an empty slice).
func (idx *TableIndex) Lookup(field string, value any) (rows []int, ok bool) {
	if idx == nil {
		return nil, false
	}
	perValue, indexed := idx.columns[field]
	if !indexed {
		return nil, false
	}
	bs, found := perValue[scalarKey(value)]
	if !found {
		return nil, true
	}
	for i, e := bs.NextSet(0); e; i, e = bs.NextSet(i + 1) {
		rows = append(rows, int(i))
	}
	return rows, true
}

func scalarKey(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	case int64:
		return "n:" + strconv.FormatInt(t, 10)
	case uint64:
		return "n:" + strconv.FormatUint(t, 10)
	case bool:
		return "b:" + strconv.FormatBool(t)
	case nil:
		return "z:"
	default:
		return fmt.Sprintf("o:%v", t)
	}
}
