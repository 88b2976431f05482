package topo

import (
	"testing"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
)

func TestLinearChainBatches(t *testing.T) {
	g := NewGraph()
	a := evalpath.Normalize("a")
	b := evalpath.Normalize("b")
	c := evalpath.Normalize("c")
	g.AddNode(a, nil)
	g.AddNode(b, []evalpath.Path{a})
	g.AddNode(c, []evalpath.Path{b})

	batches, err := g.Batches()
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d: %#v", len(batches), batches)
	}
	if !batches[0][0].Equal(a) || !batches[1][0].Equal(b) || !batches[2][0].Equal(c) {
		t.Fatalf("unexpected batch ordering: %#v", batches)
	}
}

func TestIndependentNodesShareABatch(t *testing.T) {
	g := NewGraph()
	a := evalpath.Normalize("a")
	b := evalpath.Normalize("b")
	g.AddNode(a, nil)
	g.AddNode(b, nil)

	batches, err := g.Batches()
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected one batch of two nodes, got %#v", batches)
	}
}

func TestCycleDetected(t *testing.T) {
	g := NewGraph()
	a := evalpath.Normalize("a")
	b := evalpath.Normalize("b")
	g.AddNode(a, []evalpath.Path{b})
	g.AddNode(b, []evalpath.Path{a})

	_, err := g.Batches()
	if err == nil {
		t.Fatal("expected a DependencyCycle error")
	}
	var cycleErr *evalerr.DependencyCycle
	if !asCycle(err, &cycleErr) {
		t.Fatalf("expected *evalerr.DependencyCycle, got %T", err)
	}
}

func asCycle(err error, target **evalerr.DependencyCycle) bool {
	if c, ok := err.(*evalerr.DependencyCycle); ok {
		*target = c
		return true
	}
	return false
}

func TestTableInternalDependencyRemapsToTable(t *testing.T) {
	g := NewGraph()
	table := evalpath.Normalize("orders")
	tableRow := evalpath.FromSegments("orders", "$table", "0", "total")
	downstream := evalpath.Normalize("summary")

	g.AddNode(table, nil)
	g.AddNode(downstream, []evalpath.Path{tableRow})

	batches, err := g.Batches()
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected table-internal dependency to remap onto the table's own batch, got %#v", batches)
	}
}
