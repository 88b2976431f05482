// Package logic implements the expression intermediate representation and
// compiler: translating an
// arbitrary raw expression tree (JSON-Logic-like maps/arrays/literals) into
// a compact, immutable, shared compiled form addressed by an opaque
// expression ID.
package logic

import "github.com/flowschema/evalengine/pkg/evalpath"

// ID is an opaque handle to a compiled expression. Two structurally
// identical expressions compiled through the same Compiler receive the
// same ID; IDs are stable for the Compiler's lifetime and are used
// directly as result-cache keys by the result cache.
type ID uint64

// Kind tags the variant a Term holds.
type Kind uint8

// The fixed set of term kinds. A Term is exactly one of these.
const (
	KindLiteralNumber Kind = iota
	KindLiteralString
	KindLiteralBoolean
	KindLiteralNull
	KindVariable
	KindApply
	KindArray
	KindObject
)

// Term is the immutable compiled form of one node in an expression tree.
// Children are referenced by ID, never owned copies, so a Term is cheap to
// share across every evaluator instance built from the same Compiler.
type Term struct {
	Kind Kind

	// KindLiteralNumber: the source text of the number, preserved verbatim
	// so the evaluator can parse it with full precision on demand.
	NumberText string

	// KindLiteralString
	StringValue string

	// KindLiteralBoolean
	BoolValue bool

	// KindVariable: a pre-normalized canonical reference path, an optional
	// default sub-expression, and whether the path is rooted in a context
	// sigil ($context/$params/$).
	VarPath          evalpath.Path
	VarDefault       ID
	VarHasDefault    bool
	VarContextRooted bool

	// KindApply: an operator name drawn from the fixed operator table, and
	// its child expressions.
	Op   string
	Args []ID

	// KindArray
	Items []ID

	// KindObject: parallel key/value-expression slices, sorted by key.
	Keys   []string
	Values []ID
}

// DependencySet is the set of canonical paths an expression reads,
// computed once at compile time. It is exposed as a slice (in first-seen
// order) because most consumers just need to range over it; lookups use
// Contains.
type DependencySet struct {
	ordered []evalpath.Path
	seen    map[string]bool
}

// NewDependencySet constructs an empty dependency set.
func NewDependencySet() *DependencySet {
	return &DependencySet{seen: make(map[string]bool)}
}

// Add records a dependency path, deduplicating by its canonical string form.
func (d *DependencySet) Add(p evalpath.Path) {
	key := p.String()
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.ordered = append(d.ordered, p)
}

// Paths returns the deduplicated dependency paths in first-seen order.
func (d *DependencySet) Paths() []evalpath.Path {
	return d.ordered
}

// Contains reports whether the given path was recorded as a dependency.
func (d *DependencySet) Contains(p evalpath.Path) bool {
	return d.seen[p.String()]
}

// Intersects reports whether any recorded dependency has other as a
// prefix, or is itself a prefix of other; used by the dependents
// propagator and the result cache to decide whether a mutation
// at `other` can affect this dependency set.
func (d *DependencySet) Intersects(other evalpath.Path) bool {
	for _, p := range d.ordered {
		if p.HasPrefix(other) || other.HasPrefix(p) {
			return true
		}
	}
	return false
}
