package engine

import (
	"strconv"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/layout"
	"github.com/flowschema/evalengine/pkg/schemaparse"
	"github.com/flowschema/evalengine/pkg/workingdata"
)

// Shape selects the output projection for GetEvaluatedSchemaByPaths:
// nested, flat-dotted, or array.
type Shape int

const (
	ShapeNested Shape = iota
	ShapeFlat
	ShapeArray
)

// GetEvaluatedSchema returns the evaluated schema: the schema tree
// augmented with each field's current value. Every leaf field gets a
// "value" key holding its current working-data value, every
// array-with-items field's stored elements are expanded against their item
// schema, and condition.hidden/condition.disabled leaves are synced from
// the live store. When skipLayout is false, every discovered "$layout"
// container is replaced with its resolved form.
func (e *Engine) GetEvaluatedSchema(skipLayout bool) (map[string]any, error) {
	return e.getEvaluatedSchema(e.Parsed, e.Driver.Store, skipLayout, true)
}

// GetEvaluatedSchemaWithoutParams behaves like GetEvaluatedSchema but
// omits the "$params" subtree from the result.
func (e *Engine) GetEvaluatedSchemaWithoutParams(skipLayout bool) (map[string]any, error) {
	return e.getEvaluatedSchema(e.Parsed, e.Driver.Store, skipLayout, false)
}

// GetSchemaValue returns a nested object mirroring the schema's declared
// field shape, each field replaced by its current value.
func (e *Engine) GetSchemaValue() (any, error) {
	evaluated, err := e.getEvaluatedSchema(e.Parsed, e.Driver.Store, true, true)
	if err != nil {
		return nil, err
	}
	return extractValues(evaluated), nil
}

// GetEvaluatedSchemaByPath returns the evaluated-schema subtree (including
// its "value", if any) at a single dotted/pointer path.
func (e *Engine) GetEvaluatedSchemaByPath(path string, skipLayout bool) (any, error) {
	evaluated, err := e.getEvaluatedSchema(e.Parsed, e.Driver.Store, skipLayout, true)
	if err != nil {
		return nil, err
	}
	v, ok := evalpath.GetPropertiesAware(evaluated, evalpath.Normalize(path))
	if !ok {
		return nil, &evalerr.PathNotFound{Path: path}
	}
	return v, nil
}

// GetEvaluatedSchemaByPaths returns the evaluated-schema subtrees at
// several paths, projected into one of the three Shape forms.
func (e *Engine) GetEvaluatedSchemaByPaths(paths []string, skipLayout bool, shape Shape) (any, error) {
	evaluated, err := e.getEvaluatedSchema(e.Parsed, e.Driver.Store, skipLayout, true)
	if err != nil {
		return nil, err
	}

	canon := make([]evalpath.Path, len(paths))
	values := make([]any, len(paths))
	for i, p := range paths {
		canon[i] = evalpath.Normalize(p)
		v, _ := evalpath.GetPropertiesAware(evaluated, canon[i])
		values[i] = v
	}

	switch shape {
	case ShapeArray:
		return values, nil
	case ShapeFlat:
		out := make(map[string]any, len(canon))
		for i, p := range canon {
			out[p.Dotted()] = values[i]
		}
		return out, nil
	default:
		out := map[string]any{}
		for i, p := range canon {
			setNested(out, p.Segments(), values[i])
		}
		return out, nil
	}
}

// GetEvaluatedSchemaSubform runs GetEvaluatedSchema's projection over every
// currently evaluated element of the array-with-items field at
// subformPath, since a sub-evaluator is transient per element rather than
// a single persistent instance.
func (e *Engine) GetEvaluatedSchemaSubform(subformPath string, skipLayout bool) ([]any, error) {
	sub, stores, err := e.subformStores(subformPath)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(stores))
	for i, s := range stores {
		tree, err := e.getEvaluatedSchema(sub, s, skipLayout, true)
		if err != nil {
			return nil, err
		}
		out[i] = tree
	}
	return out, nil
}

// GetSchemaValueSubform is GetSchemaValue's per-element subform variant.
func (e *Engine) GetSchemaValueSubform(subformPath string) ([]any, error) {
	trees, err := e.GetEvaluatedSchemaSubform(subformPath, true)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(trees))
	for i, tree := range trees {
		out[i] = extractValues(tree)
	}
	return out, nil
}

func (e *Engine) subformStores(subformPath string) (*schemaparse.ParsedSchema, []*workingdata.Store, error) {
	path := evalpath.Normalize(subformPath)
	sub, ok := e.Parsed.Subforms[path.String()]
	if !ok {
		return nil, nil, &evalerr.SubformNotFound{Path: subformPath}
	}
	current, _ := e.Driver.Store.Get(path)
	items, _ := current.([]any)
	stores := make([]*workingdata.Store, len(items))
	for i, item := range items {
		s := workingdata.New()
		s.ReplaceRoot(normalizeRoot(item))
		stores[i] = s
	}
	return sub, stores, nil
}

func (e *Engine) getEvaluatedSchema(parsed *schemaparse.ParsedSchema, store *workingdata.Store, skipLayout, includeParams bool) (map[string]any, error) {
	tree := buildValueTree(parsed.Raw, evalpath.Root(), store, parsed)
	root, _ := tree.(map[string]any)
	if root == nil {
		root = map[string]any{}
	}
	if !includeParams {
		delete(root, "$params")
	}
	if !skipLayout && len(parsed.Layouts) > 0 {
		resolved, err := layout.Resolve(parsed.Raw, parsed.Layouts, store)
		if err != nil {
			return nil, err
		}
		for pathStr, container := range resolved {
			containerMap, ok := container.(map[string]any)
			if !ok {
				continue
			}
			setLayoutInto(root, evalpath.Normalize(pathStr), containerMap)
		}
	}
	return root, nil
}

// buildValueTree deep-copies a schema node, attaching "value" at every leaf
// field, expanding array-with-items fields against their stored elements,
// and syncing condition leaves, the same sync rule the layout resolver
// applies, here applied to the schema view.
func buildValueTree(node any, path evalpath.Path, store *workingdata.Store, parsed *schemaparse.ParsedSchema) any {
	switch n := node.(type) {
	case map[string]any:
		return buildValueMap(n, path, store, parsed)
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = buildValueTree(item, path.Extend(strconv.Itoa(i)), store, parsed)
		}
		return out
	default:
		return n
	}
}

func buildValueMap(m map[string]any, path evalpath.Path, store *workingdata.Store, parsed *schemaparse.ParsedSchema) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		switch k {
		case "properties":
			props, _ := v.(map[string]any)
			outProps := make(map[string]any, len(props))
			for name, child := range props {
				outProps[name] = buildValueTree(child, path.Extend(name), store, parsed)
			}
			out["properties"] = outProps
		case "items":
			if sub, ok := parsed.Subforms[path.String()]; ok {
				out["items"] = buildSubformItems(sub, path, store)
				continue
			}
			out["items"] = buildValueTree(v, path, store, parsed)
		case "condition":
			out["condition"] = syncCondition(v, path, store)
		default:
			out[k] = deepCopyValueLeaf(v)
		}
	}
	if _, hasEval := m["$evaluation"]; hasEval || isLeafField(m) {
		if v, ok := store.Get(path); ok {
			out["value"] = v
		}
	}
	return out
}

func buildSubformItems(sub *schemaparse.ParsedSchema, path evalpath.Path, store *workingdata.Store) []any {
	current, ok := store.Get(path)
	if !ok {
		return []any{}
	}
	items, _ := current.([]any)
	out := make([]any, len(items))
	for i, item := range items {
		childStore := workingdata.New()
		childStore.ReplaceRoot(normalizeRoot(item))
		out[i] = buildValueTree(sub.Raw, evalpath.Root(), childStore, sub)
	}
	return out
}

func syncCondition(v any, path evalpath.Path, store *workingdata.Store) any {
	cond, ok := v.(map[string]any)
	if !ok {
		return deepCopyValueLeaf(v)
	}
	out := make(map[string]any, len(cond))
	for k, raw := range cond {
		out[k] = deepCopyValueLeaf(raw)
	}
	for _, kind := range []string{"hidden", "disabled"} {
		if _, present := cond[kind]; !present {
			continue
		}
		if cv, ok := store.Get(path.Extend("condition").Extend(kind)); ok {
			out[kind] = cv
		}
	}
	return out
}

// isLeafField reports whether a schema node denotes an ordinary scalar
// field (carries "type" but no nested "properties"/"items" container), the
// kind of node get_schema_value's ".value"-ending walk targets.
func isLeafField(m map[string]any) bool {
	if _, ok := m["properties"]; ok {
		return false
	}
	if _, ok := m["items"]; ok {
		return false
	}
	_, hasType := m["type"]
	return hasType
}

// extractValues collapses an evaluated-schema tree down to its data shape:
// every field node becomes its "value", every properties container becomes
// a plain object, and every expanded array-with-items becomes a plain
// array.
func extractValues(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	if props, ok := m["properties"].(map[string]any); ok {
		out := make(map[string]any, len(props))
		for name, child := range props {
			out[name] = extractValues(child)
		}
		return out
	}
	if items, ok := m["items"].([]any); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = extractValues(item)
		}
		return out
	}
	if v, ok := m["value"]; ok {
		return v
	}
	return nil
}

func setNested(root map[string]any, segments []string, value any) {
	cur := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

// setLayoutInto installs a resolved layout container at path's "$layout"
// key within an evaluated-schema tree, walking the same "properties"
// nesting buildValueTree produced.
func setLayoutInto(root map[string]any, path evalpath.Path, container map[string]any) {
	node := root
	for _, seg := range path.Segments() {
		props, ok := node["properties"].(map[string]any)
		if !ok {
			return
		}
		child, ok := props[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	node["$layout"] = container
}

func deepCopyValueLeaf(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopyValueLeaf(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValueLeaf(item)
		}
		return out
	default:
		return t
	}
}
