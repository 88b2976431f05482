// Package driver implements the evaluation driver: it
// orchestrates the phased run (install data and context, evaluate
// $params, execute the topologically sorted batches, apply dependents
// declarations, and write results back to working data) and exposes the
// incremental (evaluate_dependents), validation, and
// layout-resolution entry points built on top of the same working store.
package driver

import (
	"github.com/sirupsen/logrus"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/dependents"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/evaluator"
	"github.com/flowschema/evalengine/pkg/layout"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/resultcache"
	"github.com/flowschema/evalengine/pkg/schemaparse"
	"github.com/flowschema/evalengine/pkg/subform"
	"github.com/flowschema/evalengine/pkg/tableexec"
	"github.com/flowschema/evalengine/pkg/validator"
	"github.com/flowschema/evalengine/pkg/workingdata"
)

// TermSource is the narrow slice of *logic.Compiler/*logic.Registry the
// driver needs to build an evaluator: resolving a compiled ID back to its
// Term. Kept as an interface so one Driver can be built over either a
// private per-schema compiler or the process-wide registry.
type TermSource = evaluator.TermSource

// Option configures a Driver at construction time, mirroring the
// functional-option pattern pkg/evaluator already uses for the same
// configuration knobs.
type Option func(*Driver)

// WithTimezoneOffsetMinutes sets the minutes-east-of-UTC offset TODAY/NOW
// honor. The documented range is [-720, 840]; out-of-range values
// are accepted as-is and left to the evaluator's date formatting.
func WithTimezoneOffsetMinutes(minutes int) Option {
	return func(d *Driver) { d.tzOffsetMin = minutes }
}

// WithCacheEnabled toggles the result cache for this driver instance
// and, transitively, every subform it creates.
func WithCacheEnabled(enabled bool) Option {
	return func(d *Driver) { d.cacheEnabled = enabled }
}

// WithSafeNaNHandling makes non-finite arithmetic results coalesce to 0
// instead of null.
func WithSafeNaNHandling(enabled bool) Option {
	return func(d *Driver) { d.safeNaN = enabled }
}

// WithLogger overrides the driver's logrus entry. Defaults to the
// standard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(d *Driver) { d.log = log }
}

// Driver is one evaluator instance: a parsed schema, its own working-data
// store, result cache, cancellation registration, and the evaluator
// executing compiled terms against that store. A Driver is cheap to
// construct from a cached parsed schema and owned by exactly one
// caller/session.
type Driver struct {
	Parsed *schemaparse.ParsedSchema
	Terms  TermSource

	Store *workingdata.Store
	Cache *resultcache.Cache
	Eval  *evaluator.Evaluator

	tzOffsetMin  int
	cacheEnabled bool
	safeNaN      bool
	log          *logrus.Entry
}

// New constructs a Driver over an already-parsed schema and the compiler
// (or registry) that produced its expression IDs.
func New(parsed *schemaparse.ParsedSchema, terms TermSource, opts ...Option) *Driver {
	d := &Driver{
		Parsed:       parsed,
		Terms:        terms,
		cacheEnabled: true,
		log:          logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.Store = workingdata.New()
	d.Cache = resultcache.New()
	if !d.cacheEnabled {
		d.Cache.Disable()
	}
	d.Eval = evaluator.New(terms,
		evaluator.WithTimezoneOffsetMinutes(d.tzOffsetMin),
		evaluator.WithSafeNaNHandling(d.safeNaN),
	)
	return d
}

// EnableCache turns the result cache back on for this driver and every
// subform attached to it.
func (d *Driver) EnableCache() { d.Cache.Enable() }

// DisableCache clears and disables the result cache for this driver and
// every subform attached to it.
func (d *Driver) DisableCache() { d.Cache.Disable() }

// normalizeRoot coerces an arbitrary input document to the
// map[string]any root the working store requires: the root is always an
// object.
func normalizeRoot(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// matchesSelection reports whether key should run under a selective-path
// restriction: a key runs when its canonical path matches any selected
// path prefix.
func matchesSelection(selected []evalpath.Path, key evalpath.Path) bool {
	if selected == nil {
		return true
	}
	for _, s := range selected {
		if key.HasPrefix(s) || s.HasPrefix(key) {
			return true
		}
	}
	return false
}

// tableGetter adapts the driver's working store to tableexec.Getter
// (identical method set; kept as a named conversion point for clarity).
type tableGetter struct{ store *workingdata.Store }

func (g tableGetter) Get(p evalpath.Path) (any, bool) { return g.store.Get(p) }

// tableEvaluator adapts *evaluator.Evaluator to tableexec.Evaluator: the
// Getter interfaces are structurally identical, so a tableexec.Getter
// value is directly assignable where evaluator.Getter is expected, but
// the two named interface types still need a concrete adapter type to
// satisfy tableexec.Evaluator's own method signature.
type tableEvaluator struct{ ev *evaluator.Evaluator }

func (t tableEvaluator) Eval(id logic.ID, data tableexec.Getter) (any, error) {
	return t.ev.Eval(id, data)
}

// evalKey evaluates one $evaluation/condition entry against the current
// store, consulting and then refreshing the result cache, unwrapping a
// "return" sentinel (at top level, return simply yields its operand
// value).
func (d *Driver) evalKey(entry schemaparse.EvalEntry) (any, error) {
	if v, ok := d.Cache.Get(entry.ID, entry.Deps, d.Store); ok {
		return v, nil
	}
	v, err := d.Eval.Eval(entry.ID, d.Store)
	if err != nil {
		return nil, err
	}
	if rv, ok := v.(evaluator.ReturnValue); ok {
		v = rv.Value
	}
	d.Cache.Put(entry.ID, entry.Deps, d.Store, v)
	return v, nil
}

// executeTable runs one table's plan against the current store and
// writes the resulting rows (or leaves the destination untouched for a
// skip), rebuilding the table's index when the schema flagged it
// index-worthy.
func (d *Driver) executeTable(keyStr string, key evalpath.Path, token *cancel.Token) error {
	def := d.Parsed.Tables[keyStr]
	rows, err := tableexec.Execute(tableEvaluator{d.Eval}, def, tableGetter{d.Store}, token)
	if err != nil {
		return err
	}
	if rows == nil {
		// $skip truthy, or the row plans produced no rows: leave
		// the destination as-is. A truthy $clear yields an empty,
		// non-nil slice and is written below.
		return nil
	}
	d.Store.Set(key, rows)
	if fields, ok := d.Parsed.TableIndexFields[keyStr]; ok {
		d.Eval.SetTableIndex(key, evaluator.BuildTableIndex(rows, fields))
	}
	return nil
}

// runBatchKey dispatches one evaluation key found in a batch to the right
// executor (ordinary expression, condition, or table).
func (d *Driver) runBatchKey(key evalpath.Path, token *cancel.Token) error {
	keyStr := key.String()
	if entry, ok := d.Parsed.Evaluations[keyStr]; ok {
		v, err := d.evalKey(entry)
		if err != nil {
			return err
		}
		d.Store.Set(key, v)
		return nil
	}
	if entry, ok := d.Parsed.Conditions[keyStr]; ok {
		v, err := d.evalKey(entry)
		if err != nil {
			return err
		}
		d.Store.Set(key, v)
		return nil
	}
	if _, ok := d.Parsed.Tables[keyStr]; ok {
		return d.executeTable(keyStr, key, token)
	}
	return nil
}

// runParamsPhase evaluates every /$params/* expression as one flat,
// order-independent batch, writing each result to its
// reserved path before the main batches run.
func (d *Driver) runParamsPhase() error {
	for _, entry := range d.Parsed.Params {
		v, err := d.evalKey(entry)
		if err != nil {
			return err
		}
		d.Store.Set(entry.Path, v)
	}
	return nil
}

// runBatches executes the schema's topologically sorted batches in
// order, restricted to selected when non-nil.
func (d *Driver) runBatches(selected []evalpath.Path, token *cancel.Token) error {
	for _, batch := range d.Parsed.Batches {
		if err := token.Check(); err != nil {
			return err
		}
		for _, key := range batch {
			if !matchesSelection(selected, key) {
				continue
			}
			if err := d.runBatchKey(key, token); err != nil {
				return err
			}
		}
	}
	return nil
}

// runDependentsDeclarations executes the schema's "dependents" blocks:
// for each source field with truthy presence,
// apply its listed clear/value effects to the named target paths. This is
// distinct from the public EvaluateDependents entry point, which
// propagates changes through the automatic dependency graph instead.
func (d *Driver) runDependentsDeclarations() error {
	for _, decl := range d.Parsed.Dependents {
		v, _ := d.Store.Get(decl.Source)
		if !truthy(v) {
			continue
		}
		for _, effect := range decl.Effects {
			switch effect.Kind {
			case "clear":
				d.Store.Set(effect.Target, nil)
			case "value":
				if !effect.HasValueID {
					continue
				}
				val, err := d.Eval.Eval(effect.ValueID, d.Store)
				if err != nil {
					return err
				}
				if rv, ok := val.(evaluator.ReturnValue); ok {
					val = rv.Value
				}
				d.Store.Set(effect.Target, val)
			}
		}
	}
	return nil
}

// runSubforms evaluates every array-with-items field discovered by the
// schema parser, replacing the current array value with the per-element
// evaluated results.
func (d *Driver) runSubforms(token *cancel.Token) error {
	for pathStr, sub := range d.Parsed.Subforms {
		if err := token.Check(); err != nil {
			return err
		}
		path := evalpath.Normalize(pathStr)
		current, ok := d.Store.Get(path)
		if !ok {
			continue
		}
		items, ok := current.([]any)
		if !ok {
			continue
		}
		ctx, _ := d.Store.Get(evalpath.FromSegments("$context"))
		ctxMap, _ := ctx.(map[string]any)
		evaluated, err := subform.ExecuteArray(d, sub, items, ctxMap, d.Store.Root(), d.Cache, token)
		if err != nil {
			return err
		}
		d.Store.Set(path, evaluated)
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// Validate runs the schema's rule blocks against the current working
// data, optionally restricted to selected field paths.
func (d *Driver) Validate(selected []evalpath.Path, token *cancel.Token) (validator.Result, error) {
	if err := token.Check(); err != nil {
		return validator.Result{}, err
	}
	v := validator.New(d.Parsed.Rules, validatorEval{d.Eval})
	v.Log = d.log
	return v.Validate(d.Store, token, selected)
}

// validatorEval adapts *evaluator.Evaluator to validator.Evaluator (the
// Getter interfaces are structurally identical, so data satisfies both).
type validatorEval struct{ ev *evaluator.Evaluator }

func (v validatorEval) Eval(id logic.ID, data validator.Getter) (any, error) {
	return v.ev.Eval(id, data)
}

// ResolveLayout materializes every layout reference discovered by the
// schema parser into a deep copy synced with the current evaluation
// results. alsoEvaluate, when true, runs a full Evaluate pass first.
func (d *Driver) ResolveLayout(schemaRaw any, alsoEvaluate bool, data any, context any, token *cancel.Token) (map[string]any, error) {
	if alsoEvaluate {
		if _, err := d.Evaluate(data, context, nil, token); err != nil {
			return nil, err
		}
	}
	return layout.Resolve(schemaRaw, d.Parsed.Layouts, d.Store)
}

// EvaluateDependents implements the public evaluate_dependents entry
// point: given a set of changed canonical paths, it computes the
// transitive closure through the dependency graph (pkg/dependents) and
// re-evaluates only the affected keys, optionally installing fresh
// data/context first. It returns the set of paths updated and their new
// values.
func (d *Driver) EvaluateDependents(changedPaths []string, data any, context any, reEvaluate bool, token *cancel.Token) (map[string]any, error) {
	if err := token.Check(); err != nil {
		return nil, err
	}
	if data != nil {
		d.Store.ReplaceRoot(normalizeRoot(data))
	}
	if context != nil {
		d.Store.Set(evalpath.FromSegments("$context"), context)
	}

	changed := make([]evalpath.Path, len(changedPaths))
	for i, p := range changedPaths {
		changed[i] = evalpath.Normalize(p)
	}

	closure := dependents.Closure(d.Parsed, changed)
	updated := make(map[string]any, len(closure))
	for _, key := range closure {
		if err := token.Check(); err != nil {
			return updated, err
		}
		if err := d.runBatchKey(key, token); err != nil {
			return updated, err
		}
		v, _ := d.Store.Get(key)
		updated[key.String()] = v
	}

	if reEvaluate {
		if err := d.runDependentsDeclarations(); err != nil {
			return updated, err
		}
		// Sibling rule evaluations for the affected fields: run the
		// validator restricted to the closure's paths so
		// rule predicates observe the freshly propagated values. Failures
		// surface through a subsequent Validate call; here they are only
		// logged.
		result, err := d.Validate(append(closure, changed...), token)
		if err != nil {
			return updated, err
		}
		if result.HasError {
			d.log.WithField("fields", result.Errors.Keys()).Debug("rules failing after dependents propagation")
		}
	}
	return updated, nil
}
