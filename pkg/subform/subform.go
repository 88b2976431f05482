// Package subform implements the bookkeeping for sub-evaluators:
// instantiating an isolated evaluator per element of an
// array-with-items field, whose schema is the item definition parsed
// separately by the schema parser and stored under the array
// field's canonical path in the parent's subform map.
//
// This package does not itself run batches; that remains the driver's
// job, since a sub-evaluator is, semantically, just another driver
// instance. Runner is the narrow seam the driver implements so this
// package can stay a leaf, keeping "which subforms exist" separate from
// "how a subform actually runs."
package subform

import (
	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/resultcache"
	"github.com/flowschema/evalengine/pkg/schemaparse"
)

// Runner evaluates one array element against its item schema, in a
// context extended with $parent and $index.
type Runner interface {
	EvaluateItem(sub *schemaparse.ParsedSchema, item any, parentCtx map[string]any, parentScope any, index int, cache *resultcache.Cache, token *cancel.Token) (any, error)
}

// ExecuteArray runs r.EvaluateItem over every element of items in order,
// attaching a fresh child cache per element to parentCache so
// Enable/Disable on the parent cache propagates to every subform
// instance: sub-evaluators inherit the enabled/disabled state of their
// parent. Cancellation is checked once per element, the deep-loop
// checkpoint granularity the rest of the engine uses.
func ExecuteArray(r Runner, sub *schemaparse.ParsedSchema, items []any, parentCtx map[string]any, parentScope any, parentCache *resultcache.Cache, token *cancel.Token) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		if err := token.Check(); err != nil {
			return nil, err
		}
		child := resultcache.New()
		parentCache.Attach(child)
		if !parentCache.Enabled() {
			child.Disable()
		}
		v, err := r.EvaluateItem(sub, item, parentCtx, parentScope, i, child, token)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ItemContext builds the context view a sub-evaluator sees: the parent's
// own context fields, plus $parent bound to the enclosing scope (the
// parent's working document) and $index bound to the element's position.
func ItemContext(parentCtx map[string]any, parentScope any, index int) map[string]any {
	ctx := make(map[string]any, len(parentCtx)+2)
	for k, v := range parentCtx {
		ctx[k] = v
	}
	ctx["$parent"] = parentScope
	ctx["$index"] = float64(index)
	return ctx
}
