// Package topo implements the topological scheduler: it
// turns a dependency graph (evaluation key -> dependency paths) into a
// flat topological order partitioned into dependency-ordered,
// parallel-safe batches.
package topo

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
)

// tableInternalMarkers names the path segments that denote a location
// inside a table's own bookkeeping (its row data, skip/clear logic)
// rather than the table's own evaluation key. A dependency on any of
// these remaps to the enclosing table path for batch-ordering purposes.
var tableInternalMarkers = map[string]bool{
	"$table": true, "$datas": true, "$skip": true, "$clear": true,
}

// remapTableInternal rewrites a dependency path that reaches into a
// table's internals to the path of the enclosing table itself.
func remapTableInternal(p evalpath.Path) evalpath.Path {
	segs := p.Segments()
	for i, s := range segs {
		if tableInternalMarkers[s] {
			return evalpath.FromSegments(segs[:i]...)
		}
	}
	return p
}

type node struct {
	key  evalpath.Path
	deps []evalpath.Path
}

// Graph is the dependency graph the scheduler sorts: one node per
// evaluation key, each carrying the canonical paths it reads.
type Graph struct {
	nodes map[string]node
	order []string
}

// NewGraph constructs an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]node)}
}

// AddNode registers an evaluation key and the paths it depends on.
// Re-adding the same key overwrites its dependency list.
func (g *Graph) AddNode(key evalpath.Path, deps []evalpath.Path) {
	k := key.String()
	if _, exists := g.nodes[k]; !exists {
		g.order = append(g.order, k)
	}
	g.nodes[k] = node{key: key, deps: deps}
}

// Batches runs the topological sort and returns the flat batch partition:
// batch[i] may be evaluated in any order (sequentially or in parallel)
// once every batch before it has completed. A
// cycle among in-graph dependencies fails with evalerr.DependencyCycle,
// naming every key on the cycle.
func (g *Graph) Batches() ([][]evalpath.Path, error) {
	batchOf := make(map[string]int, len(g.nodes))
	state := make(map[string]int, len(g.nodes))
	stackPos := make(map[string]int)
	var stack []string

	var visit func(key string) error
	visit = func(key string) error {
		switch state[key] {
		case 2:
			return nil
		case 1:
			cycle := append([]string(nil), stack[stackPos[key]:]...)
			cycle = append(cycle, key)
			return &evalerr.DependencyCycle{Keys: cycle}
		}

		state[key] = 1
		stackPos[key] = len(stack)
		stack = append(stack, key)

		n := g.nodes[key]
		maxDepBatch := -1
		for _, dep := range n.deps {
			depKey := remapTableInternal(dep).String()
			if depKey == key {
				continue
			}
			if _, inGraph := g.nodes[depKey]; !inGraph {
				continue
			}
			if err := visit(depKey); err != nil {
				return err
			}
			if b := batchOf[depKey]; b > maxDepBatch {
				maxDepBatch = b
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, key)
		state[key] = 2
		batchOf[key] = maxDepBatch + 1
		return nil
	}

	for _, key := range g.order {
		if err := visit(key); err != nil {
			return nil, err
		}
	}

	maxBatch := -1
	for _, b := range batchOf {
		if b > maxBatch {
			maxBatch = b
		}
	}

	batches := make([][]evalpath.Path, maxBatch+1)
	for _, key := range g.order {
		idx := batchOf[key]
		batches[idx] = append(batches[idx], g.nodes[key].key)
	}
	return batches, nil
}
