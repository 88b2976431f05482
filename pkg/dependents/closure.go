// Package dependents implements the dependents propagator: given a set
// of changed canonical paths, it computes the
// transitive closure of evaluation/condition keys affected through the
// dependency graph the schema parser already built, ordered by the
// batch index the topological scheduler already assigned. It does
// not itself evaluate anything: pkg/driver walks the returned keys in
// order and re-runs each one, keeping "what changed" separate from "how
// to run it."
package dependents

import (
	"sort"

	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/schemaparse"
)

// Closure returns every evaluation/condition key in parsed whose
// dependency set intersects any of the given changed paths, or
// transitively intersects the path of another key already in the
// closure, ordered by ascending batch index (ties broken by canonical
// path string for determinism). The result equals the transitive closure
// of the change set in the reverse dependency graph.
func Closure(parsed *schemaparse.ParsedSchema, changed []evalpath.Path) []evalpath.Path {
	keys := allKeys(parsed)
	affected := make(map[string]evalpath.Path, len(keys))
	frontier := append([]evalpath.Path(nil), changed...)

	for progress := true; progress; {
		progress = false
		for k, entry := range keys {
			if _, already := affected[k]; already {
				continue
			}
			if !intersectsAny(entry.Deps, frontier) {
				continue
			}
			affected[k] = entry.Path
			frontier = append(frontier, entry.Path)
			progress = true
		}
	}

	return orderByBatch(parsed, affected)
}

// allKeys merges every evaluation and condition entry of parsed into one
// lookup by canonical-path string, since both families participate in the
// same reactive dependency graph.
func allKeys(parsed *schemaparse.ParsedSchema) map[string]schemaparse.EvalEntry {
	out := make(map[string]schemaparse.EvalEntry, len(parsed.Evaluations)+len(parsed.Conditions))
	for k, v := range parsed.Evaluations {
		out[k] = v
	}
	for k, v := range parsed.Conditions {
		out[k] = v
	}
	return out
}

func intersectsAny(deps *logic.DependencySet, paths []evalpath.Path) bool {
	for _, p := range paths {
		if deps.Intersects(p) {
			return true
		}
	}
	return false
}

// orderByBatch sorts the affected key set by the batch index parsed.Batches
// already assigned, so a caller executing in this order never runs a key
// before one of its own dependencies.
func orderByBatch(parsed *schemaparse.ParsedSchema, affected map[string]evalpath.Path) []evalpath.Path {
	batchIndex := make(map[string]int, len(affected))
	for i, batch := range parsed.Batches {
		for _, key := range batch {
			batchIndex[key.String()] = i
		}
	}

	result := make([]evalpath.Path, 0, len(affected))
	for _, p := range affected {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		bi, bj := batchIndex[result[i].String()], batchIndex[result[j].String()]
		if bi != bj {
			return bi < bj
		}
		return result[i].String() < result[j].String()
	})
	return result
}
