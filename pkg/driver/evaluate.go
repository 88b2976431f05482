package driver

import (
	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/resultcache"
	"github.com/flowschema/evalengine/pkg/schemaparse"
	"github.com/flowschema/evalengine/pkg/subform"
)

// Evaluate implements the public evaluate entry point's five phases
// (install data/context, evaluate $params, execute sorted batches, apply
// dependents declarations, and evaluate any subform arrays) against this
// driver's working store, returning the resulting
// document. selectedPaths, when non-nil, restricts the batch phase to the
// named keys with no implicit fan-out to downstream dependents; the
// dependents-declaration phase and subform evaluation always run in full
// (that restriction binds the *driver's own* fan-out of newly computed values
// through the graph, not the schema-authored dependents block, which is
// an explicit imperative edge the caller asked for by including it in
// the schema).
func (d *Driver) Evaluate(data any, context any, selectedPaths []string, token *cancel.Token) (any, error) {
	if err := token.Check(); err != nil {
		return nil, err
	}

	var selected []evalpath.Path
	if selectedPaths != nil {
		selected = make([]evalpath.Path, len(selectedPaths))
		for i, p := range selectedPaths {
			selected[i] = evalpath.Normalize(p)
		}
	}
	retained := d.snapshotUnselected(selected)

	d.Store.ReplaceRoot(normalizeRoot(data))
	d.Store.Set(evalpath.FromSegments("$context"), context)
	for _, kv := range retained {
		d.Store.Set(kv.key, kv.value)
	}

	if err := d.runParamsPhase(); err != nil {
		return nil, err
	}

	if err := d.runBatches(selected, token); err != nil {
		return nil, err
	}

	if err := token.Check(); err != nil {
		return nil, err
	}
	if err := d.runDependentsDeclarations(); err != nil {
		return nil, err
	}

	if err := d.runSubforms(token); err != nil {
		return nil, err
	}

	return d.Store.Root(), nil
}

type retainedValue struct {
	key   evalpath.Path
	value any
}

// snapshotUnselected captures the current values of every evaluation key
// outside a selective-path restriction, so they survive the root
// replacement a selective Evaluate performs: keys outside the selection
// retain the values they had before the call. A
// full (non-selective) run snapshots nothing.
func (d *Driver) snapshotUnselected(selected []evalpath.Path) []retainedValue {
	if selected == nil {
		return nil
	}
	var out []retainedValue
	capture := func(key evalpath.Path) {
		if matchesSelection(selected, key) {
			return
		}
		if v, ok := d.Store.Get(key); ok {
			out = append(out, retainedValue{key: key, value: v})
		}
	}
	for _, entry := range d.Parsed.Evaluations {
		capture(entry.Path)
	}
	for _, entry := range d.Parsed.Conditions {
		capture(entry.Path)
	}
	for keyStr := range d.Parsed.Tables {
		capture(evalpath.Normalize(keyStr))
	}
	return out
}

// EvaluateItem implements subform.Runner: it runs a full evaluation of
// one array element against its item schema in an isolated store, sharing
// this driver's timezone/NaN configuration and term source, with its own
// child cache and a context extended with $parent/$index.
func (d *Driver) EvaluateItem(sub *schemaparse.ParsedSchema, item any, parentCtx map[string]any, parentScope any, index int, cache *resultcache.Cache, token *cancel.Token) (any, error) {
	child := New(sub, d.Terms,
		WithTimezoneOffsetMinutes(d.tzOffsetMin),
		WithCacheEnabled(d.cacheEnabled),
		WithSafeNaNHandling(d.safeNaN),
		WithLogger(d.log),
	)
	child.Cache = cache

	itemCtx := subform.ItemContext(parentCtx, parentScope, index)
	result, err := child.Evaluate(item, itemCtx, nil, token)
	if err != nil {
		return nil, err
	}
	// The child's working document carries the reserved ambient views it
	// evaluated under; those must not leak into the parent document when
	// the element is written back (the $context view holds $parent, a
	// reference back to the enclosing document itself).
	if m, ok := result.(map[string]any); ok {
		delete(m, "$context")
		delete(m, "$params")
	}
	return result, nil
}
