// Package schemaparse implements the schema parser: a
// single walk over a JSON-Schema-shaped document that discovers every
// actionable key, compiles each expression it
// finds through pkg/logic, and pre-builds the dependency graph, table
// metadata, and subform map the rest of the engine runs against.
package schemaparse

import (
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/tableexec"
	"github.com/flowschema/evalengine/pkg/topo"
)

// EvalEntry is one compiled $evaluation found during the walk.
type EvalEntry struct {
	Path evalpath.Path
	ID   logic.ID
	Deps *logic.DependencySet
}

// RuleSpec is one entry of a field's "rules" array: either a built-in
// kind the validator dispatches by name, or a guarded kind whose
// condition is itself a compiled expression.
type RuleSpec struct {
	Kind         string
	Params       map[string]any
	Message      string
	HasCondition bool
	ConditionID  logic.ID
}

// DependentEffect is one entry of a dependents declaration: when the
// source field has truthy presence, apply this effect to Target.
type DependentEffect struct {
	Target evalpath.Path
	Kind   string // "clear" or "value"
	// ValueID is compiled only for Kind == "value".
	ValueID    logic.ID
	HasValueID bool
}

// DependentsDecl is a change-propagation declaration found at a source
// field's path.
type DependentsDecl struct {
	Source  evalpath.Path
	Effects []DependentEffect
}

// ParsedSchema is the immutable artifact a successful Parse produces. It
// is safe to share across many evaluator instances by reference.
type ParsedSchema struct {
	Raw any

	Evaluations      map[string]EvalEntry
	Conditions       map[string]EvalEntry // "…/condition/hidden", "…/condition/disabled"
	Params           map[string]EvalEntry // "/$params/…", evaluated in their own pre-batch phase
	Rules            map[string][]RuleSpec
	Dependents       map[string]DependentsDecl
	Layouts          map[string]any
	URLTemplates     map[string]string
	Tables           map[string]tableexec.TableDef
	TableIndexFields map[string][]string
	Subforms         map[string]*ParsedSchema

	Graph   *topo.Graph
	Batches [][]evalpath.Path
}
