package schemaparse

import (
	"strconv"

	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/tableexec"
	"github.com/flowschema/evalengine/pkg/topo"
)

// parser carries the shared compiler and accumulating parse result across
// one recursive walk.
type parser struct {
	compiler *logic.Compiler
	result   *ParsedSchema
}

// Parse walks a schema document once, compiling every expression it finds
// and pre-building the dependency graph, table metadata, and subform map.
// The supplied compiler is shared with every nested subform parse, so
// structurally equal expressions across a field and its subform items
// intern to the same ID.
func Parse(schema map[string]any, compiler *logic.Compiler) (*ParsedSchema, error) {
	p := &parser{
		compiler: compiler,
		result: &ParsedSchema{
			Raw:              schema,
			Evaluations:      make(map[string]EvalEntry),
			Conditions:       make(map[string]EvalEntry),
			Params:           make(map[string]EvalEntry),
			Rules:            make(map[string][]RuleSpec),
			Dependents:       make(map[string]DependentsDecl),
			Layouts:          make(map[string]any),
			URLTemplates:     make(map[string]string),
			Tables:           make(map[string]tableexec.TableDef),
			TableIndexFields: make(map[string][]string),
			Subforms:         make(map[string]*ParsedSchema),
		},
	}

	if err := p.walk(evalpath.Root(), schema); err != nil {
		return nil, err
	}

	graph := topo.NewGraph()
	for _, e := range p.result.Evaluations {
		graph.AddNode(e.Path, e.Deps.Paths())
	}
	for _, e := range p.result.Conditions {
		graph.AddNode(e.Path, e.Deps.Paths())
	}
	for path, def := range p.result.Tables {
		graph.AddNode(evalpath.Normalize(path), p.tableDeps(def))
	}
	batches, err := graph.Batches()
	if err != nil {
		return nil, err
	}
	p.result.Graph = graph
	p.result.Batches = batches

	return p.result, nil
}

// walk recursively discovers actionable keys at and below
// path. node is expected to be the decoded JSON value found there.
func (p *parser) walk(path evalpath.Path, node any) error {
	switch n := node.(type) {
	case map[string]any:
		return p.walkMap(path, n)
	case []any:
		return p.walkArray(path, n)
	default:
		return nil
	}
}

func (p *parser) walkMap(path evalpath.Path, m map[string]any) error {
	if expr, ok := m["$evaluation"]; ok {
		id, deps, err := p.compile(expr)
		if err != nil {
			return err
		}
		p.result.Evaluations[path.String()] = EvalEntry{Path: path, ID: id, Deps: deps}
	}

	if cond, ok := m["condition"].(map[string]any); ok {
		if err := p.walkCondition(path, cond); err != nil {
			return err
		}
	}

	if rules, ok := m["rules"].([]any); ok {
		if err := p.walkRules(path, rules); err != nil {
			return err
		}
	}

	if dep, ok := m["dependents"].(map[string]any); ok {
		decl, err := p.parseDependents(path, dep)
		if err != nil {
			return err
		}
		p.result.Dependents[path.String()] = decl
	}

	if layout, ok := m["$layout"]; ok {
		p.result.Layouts[path.String()] = layout
		if layoutMap, ok := layout.(map[string]any); ok {
			if err := p.walkLayoutElements(path, layoutMap); err != nil {
				return err
			}
		}
	}

	if options, ok := m["options"].(map[string]any); ok {
		if url, ok := options["url"].(string); ok && containsPlaceholder(url) {
			p.result.URLTemplates[path.String()] = url
		}
	}

	if params, ok := m["$params"].(map[string]any); ok {
		if err := p.walkParams(path.Extend("$params"), params); err != nil {
			return err
		}
	}

	if table, ok := m["$table"].(map[string]any); ok {
		def, indexFields, deps, err := p.parseTable(table)
		if err != nil {
			return err
		}
		p.result.Tables[path.String()] = def
		if len(indexFields) > 0 {
			p.result.TableIndexFields[path.String()] = indexFields
		}
		_ = deps // table's own scheduling dependencies are recomputed via tableDeps
		return nil
	}

	if isArrayWithItems(m) {
		items := m["items"].(map[string]any)
		sub, err := Parse(items, p.compiler)
		if err != nil {
			return err
		}
		p.result.Subforms[path.String()] = sub
		return nil
	}

	if props, ok := m["properties"].(map[string]any); ok {
		for name, child := range props {
			if err := p.walk(path.Extend(name), child); err != nil {
				return err
			}
		}
		return nil
	}

	for key, child := range m {
		if !structuralKey(key) {
			continue
		}
		if err := p.walk(path, child); err != nil {
			return err
		}
	}
	return nil
}

// structuralKey reports whether a map key is worth recursing into looking
// for further actionable keys, excluding the ones walkMap has already
// handled directly and the leaf-valued JSON-Schema keywords that never
// nest a field.
func structuralKey(key string) bool {
	switch key {
	case "$evaluation", "condition", "rules", "dependents", "$layout", "options",
		"$table", "$params", "items", "properties", "type", "title", "description":
		return false
	default:
		return true
	}
}

func isArrayWithItems(m map[string]any) bool {
	if m["type"] != "array" {
		return false
	}
	_, ok := m["items"].(map[string]any)
	return ok
}

func (p *parser) walkArray(path evalpath.Path, items []any) error {
	if !arrayLooksActionable(items) {
		return nil
	}
	for i, item := range items {
		if err := p.walk(path.Extend(strconv.Itoa(i)), item); err != nil {
			return err
		}
	}
	return nil
}

// arrayLooksActionable is a cheap structural probe: an array of bare
// scalars cannot itself contain an actionable key, so a
// short look at the first few elements lets the walk skip the rest.
func arrayLooksActionable(items []any) bool {
	probe := items
	if len(probe) > 3 {
		probe = probe[:3]
	}
	for _, item := range probe {
		switch item.(type) {
		case map[string]any, []any:
			return true
		}
	}
	return len(items) == 0
}

func (p *parser) compile(expr any) (logic.ID, *logic.DependencySet, error) {
	id, err := p.compiler.Compile(expr)
	if err != nil {
		return 0, nil, err
	}
	return id, p.compiler.Dependencies(id), nil
}

func (p *parser) walkCondition(path evalpath.Path, cond map[string]any) error {
	for _, kind := range []string{"hidden", "disabled"} {
		expr, ok := cond[kind]
		if !ok {
			continue
		}
		id, deps, err := p.compile(expr)
		if err != nil {
			return err
		}
		condPath := path.Extend("condition").Extend(kind)
		p.result.Conditions[condPath.String()] = EvalEntry{Path: condPath, ID: id, Deps: deps}
	}
	return nil
}

// walkParams compiles every entry of a "$params" block into its own
// evaluation key under /$params/<name>, kept in a dedicated map so the
// driver can evaluate them in their own pre-batch phase rather than
// folding them into the main dependency graph. A
// param entry may itself carry an ordinary "$evaluation" key (matching
// every other field in the schema) or be a bare expression tree.
func (p *parser) walkParams(base evalpath.Path, params map[string]any) error {
	for name, raw := range params {
		path := base.Extend(name)
		expr := raw
		if m, ok := raw.(map[string]any); ok {
			if e, has := m["$evaluation"]; has {
				expr = e
			}
		}
		id, deps, err := p.compile(expr)
		if err != nil {
			return err
		}
		p.result.Params[path.String()] = EvalEntry{Path: path, ID: id, Deps: deps}
	}
	return nil
}

func (p *parser) walkLayoutElements(path evalpath.Path, layout map[string]any) error {
	elements, ok := layout["elements"].([]any)
	if !ok {
		return nil
	}
	for i, el := range elements {
		elMap, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if _, isRef := elMap["$ref"]; isRef {
			continue
		}
		if err := p.walk(path.Extend("$layout").Extend("elements").Extend(strconv.Itoa(i)), elMap); err != nil {
			return err
		}
	}
	return nil
}

func containsPlaceholder(s string) bool {
	open, close := -1, -1
	for i, r := range s {
		if r == '{' {
			open = i
		}
		if r == '}' && open >= 0 {
			close = i
			break
		}
	}
	return open >= 0 && close > open
}

