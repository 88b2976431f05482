// Package layout implements the layout resolver: it
// expands every "$layout" element that carries a "$ref" into a deep copy
// of the referenced schema fragment, merges the element's own keys over
// that copy, attaches the "$fullpath"/"$path" markers, and overwrites any
// condition.hidden/condition.disabled leaf with its current evaluated
// value so the returned layout view never goes stale relative to the
// latest evaluation.
package layout

import (
	"strconv"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
)

// Getter resolves a canonical path against the current evaluation
// results, the same narrow contract workingdata.Store satisfies.
type Getter interface {
	Get(path evalpath.Path) (any, bool)
}

// Resolve expands every layout container discovered by the schema parser
// (keyed by the canonical path the "$layout" key was found at) against
// schemaRaw (the original schema tree, used to resolve "$ref" targets)
// and data (the current working-data view, used to sync condition
// leaves). The returned map has the same keys as layouts.
func Resolve(schemaRaw any, layouts map[string]any, data Getter) (map[string]any, error) {
	out := make(map[string]any, len(layouts))
	for pathStr, raw := range layouts {
		basePath := evalpath.Normalize(pathStr)
		layoutMap, ok := raw.(map[string]any)
		if !ok {
			out[pathStr] = deepCopyAny(raw)
			continue
		}
		resolved, err := resolveContainer(schemaRaw, layoutMap, basePath, data)
		if err != nil {
			return nil, err
		}
		out[pathStr] = resolved
	}
	return out, nil
}

// resolveContainer resolves one "$layout" object's "elements" array.
func resolveContainer(schemaRaw any, layoutMap map[string]any, basePath evalpath.Path, data Getter) (map[string]any, error) {
	out := deepCopyMap(layoutMap)
	elementsRaw, ok := out["elements"].([]any)
	if !ok {
		return out, nil
	}

	elements := make([]any, len(elementsRaw))
	for i, raw := range elementsRaw {
		elMap, ok := raw.(map[string]any)
		if !ok {
			elements[i] = deepCopyAny(raw)
			continue
		}
		elementPath := basePath.Extend("$layout").Extend("elements").Extend(strconv.Itoa(i))
		resolvedEl, sourcePath, err := resolveElement(schemaRaw, elMap, elementPath)
		if err != nil {
			return nil, err
		}
		syncConditions(resolvedEl, sourcePath, data)
		elements[i] = resolvedEl
	}
	out["elements"] = elements
	return out, nil
}

// resolveElement resolves one layout element. A plain (non-$ref) element
// is passed through as a deep copy, sourced from its own position in the
// layout tree. A $ref element is expanded into a deep copy of the
// referenced schema fragment with the element's own keys merged over it,
// element wins on conflict, preserving the copy's nested
// "properties"/"elements" maps rather than letting the element blow them
// away outright.
func resolveElement(schemaRaw any, elMap map[string]any, elementPath evalpath.Path) (map[string]any, evalpath.Path, error) {
	refRaw, isRef := elMap["$ref"]
	if !isRef {
		return deepCopyMap(elMap), elementPath, nil
	}

	refStr, _ := refRaw.(string)
	refPath := evalpath.Normalize(refStr)
	target, ok := evalpath.GetPropertiesAware(schemaRaw, refPath)
	if !ok {
		return nil, evalpath.Path{}, &evalerr.UnknownReference{Path: refPath.String()}
	}
	targetMap, _ := target.(map[string]any)
	merged := deepCopyMap(targetMap)

	for k, v := range elMap {
		if k == "$ref" {
			continue
		}
		if k == "properties" || k == "elements" {
			if existing, ok := merged[k].(map[string]any); ok {
				if vm, ok := v.(map[string]any); ok {
					for kk, vv := range vm {
						existing[kk] = deepCopyAny(vv)
					}
					continue
				}
			}
		}
		merged[k] = deepCopyAny(v)
	}

	merged["$fullpath"] = refPath.Dotted()
	if !refPath.IsRoot() {
		merged["$path"] = refPath.Tail()
	}
	return merged, refPath, nil
}

// syncConditions overwrites a resolved element's condition.hidden/disabled
// leaves with their current evaluated values read from sourcePath in
// data, so the layout view never goes stale.
func syncConditions(el map[string]any, sourcePath evalpath.Path, data Getter) {
	cond, ok := el["condition"].(map[string]any)
	if !ok {
		return
	}
	for _, kind := range []string{"hidden", "disabled"} {
		if _, present := cond[kind]; !present {
			continue
		}
		if v, ok := data.Get(sourcePath.Extend("condition").Extend(kind)); ok {
			cond[kind] = v
		}
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyAny(v)
	}
	return out
}

func deepCopyAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyAny(item)
		}
		return out
	default:
		return t
	}
}
