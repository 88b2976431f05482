// Package engine is the top-level Evaluator type, the public operations
// surface: it wires the schema parser, the evaluation driver, the
// parsed-schema cache, and the process-wide compiled-logic registry into
// the one entry point a caller constructs.
package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/flowschema/evalengine/pkg/cancel"
	"github.com/flowschema/evalengine/pkg/driver"
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/evaluator"
	"github.com/flowschema/evalengine/pkg/logic"
	"github.com/flowschema/evalengine/pkg/resultcache"
	"github.com/flowschema/evalengine/pkg/schemacache"
	"github.com/flowschema/evalengine/pkg/schemaparse"
	"github.com/flowschema/evalengine/pkg/validator"
	"github.com/flowschema/evalengine/pkg/workingdata"
)

// Option configures an Engine at construction time, passed straight through
// to the underlying driver.Driver.
type Option = driver.Option

// WithTimezoneOffsetMinutes re-exports driver.WithTimezoneOffsetMinutes so
// callers need import only pkg/engine.
func WithTimezoneOffsetMinutes(minutes int) Option { return driver.WithTimezoneOffsetMinutes(minutes) }

// WithCacheEnabled re-exports driver.WithCacheEnabled.
func WithCacheEnabled(enabled bool) Option { return driver.WithCacheEnabled(enabled) }

// WithSafeNaNHandling re-exports driver.WithSafeNaNHandling.
func WithSafeNaNHandling(enabled bool) Option { return driver.WithSafeNaNHandling(enabled) }

// WithLogger re-exports driver.WithLogger.
func WithLogger(log *logrus.Entry) Option { return driver.WithLogger(log) }

// Engine is one schema's evaluator instance: a parsed schema, the compiler
// that produced its compiled term IDs, and the driver orchestrating
// evaluation against it. compile_logic/run_logic (externally authored
// expressions) instead go through the process-wide pkg/logic registry,
// since those expressions are not part of any one schema's compiled term
// space and are meant to be shared across every Engine in the process.
type Engine struct {
	Parsed   *schemaparse.ParsedSchema
	Driver   *driver.Driver
	compiler *logic.Compiler
}

// New parses schema and constructs an Engine ready to evaluate against it.
func New(schema map[string]any, opts ...Option) (*Engine, error) {
	compiler := logic.NewCompiler()
	parsed, err := schemaparse.Parse(schema, compiler)
	if err != nil {
		return nil, err
	}
	return fromParsed(parsed, compiler, opts...), nil
}

// NewFromMsgpack parses a MessagePack-encoded schema document with
// semantics identical to the JSON input path.
func NewFromMsgpack(data []byte, opts ...Option) (*Engine, error) {
	compiler := logic.NewCompiler()
	parsed, err := schemaparse.ParseMsgpack(data, compiler)
	if err != nil {
		return nil, err
	}
	return fromParsed(parsed, compiler, opts...), nil
}

// NewFromCached constructs an Engine over a schema previously parsed with
// compiler and stored in the process-wide parsed-schema cache under
// key, letting many evaluator instances share one compiled artifact
// cheaply. The caller supplies the same compiler the cached entry was
// produced with
// (typically retained from the original New/NewFromMsgpack call alongside
// the CacheParsed call that populated key), since the cache itself is a
// narrow insert/get/remove store holding only the ParsedSchema, not the
// compiler that produced its term IDs. The returned
// bool is false if no entry is stored under key.
func NewFromCached(key string, compiler *logic.Compiler, opts ...Option) (*Engine, bool) {
	parsed, ok := schemacache.Global().Get(key)
	if !ok {
		return nil, false
	}
	return fromParsed(parsed, compiler, opts...), true
}

// CacheParsed inserts this engine's parsed schema into the process-wide
// parsed-schema cache under key, so a later NewFromCached(key, e.Compiler())
// can reuse it without re-parsing.
func (e *Engine) CacheParsed(key string) {
	schemacache.Global().Insert(key, e.Parsed)
}

// Compiler returns the *logic.Compiler that produced this engine's compiled
// term IDs, so a caller can hand it to a later NewFromCached call.
func (e *Engine) Compiler() *logic.Compiler { return e.compiler }

func fromParsed(parsed *schemaparse.ParsedSchema, compiler *logic.Compiler, opts ...Option) *Engine {
	return &Engine{
		Parsed:   parsed,
		Driver:   driver.New(parsed, compiler, opts...),
		compiler: compiler,
	}
}

// Evaluate runs the full five-phase evaluation pass and
// returns the resulting working document.
func (e *Engine) Evaluate(data any, context any, selectedPaths []string, token *cancel.Token) (any, error) {
	return e.Driver.Evaluate(data, context, selectedPaths, token)
}

// EvaluateDependents implements the incremental update entry point.
func (e *Engine) EvaluateDependents(changedPaths []string, data any, context any, reEvaluate bool, token *cancel.Token) (map[string]any, error) {
	return e.Driver.EvaluateDependents(changedPaths, data, context, reEvaluate, token)
}

// Validate runs the schema's rule blocks against current working data.
// selectedPaths, when non-nil, restricts validation to those field paths.
func (e *Engine) Validate(selectedPaths []string, token *cancel.Token) (validator.Result, error) {
	return e.Driver.Validate(toCanonicalPaths(selectedPaths), token)
}

// ResolveLayout materializes every layout reference. alsoEvaluate, when
// true, runs a full Evaluate pass first against data/context.
func (e *Engine) ResolveLayout(alsoEvaluate bool, data any, context any, token *cancel.Token) (map[string]any, error) {
	return e.Driver.ResolveLayout(e.Parsed.Raw, alsoEvaluate, data, context, token)
}

// EnableCache turns the result cache back on for this engine and every
// subform it creates.
func (e *Engine) EnableCache() { e.Driver.EnableCache() }

// DisableCache clears and disables the result cache.
func (e *Engine) DisableCache() { e.Driver.DisableCache() }

// ClearCache empties the cache without changing its enabled state.
func (e *Engine) ClearCache() { e.Driver.Cache.Clear() }

// CacheLen reports the number of entries currently cached.
func (e *Engine) CacheLen() int { return e.Driver.Cache.Len() }

// CacheStats reports running hits, misses, and entry count.
func (e *Engine) CacheStats() resultcache.Stats { return e.Driver.Cache.Stats() }

func toCanonicalPaths(raw []string) []evalpath.Path {
	if raw == nil {
		return nil
	}
	out := make([]evalpath.Path, len(raw))
	for i, p := range raw {
		out[i] = evalpath.Normalize(p)
	}
	return out
}

// CompileLogic compiles an externally authored expression through the
// process-wide compiled-logic registry and returns a stable opaque
// handle. Structurally equal expressions compiled at different times
// intern to the same underlying ID, though each call mints its own
// handle string.
func CompileLogic(expression any) (string, error) {
	handle, _, err := logic.Global().Register(expression)
	return handle, err
}

// RunLogic evaluates a previously compiled expression (by its CompileLogic
// handle) against an ad hoc data/context view. This does not touch any
// Engine's own working data; it is a standalone evaluation for externally
// authored logic snippets registered once and run many times against
// different data.
func RunLogic(handle string, data any, context any) (any, error) {
	id, ok := logic.Global().Resolve(handle)
	if !ok {
		return nil, &evalerr.UnknownReference{Path: handle}
	}
	store := workingdata.New()
	store.ReplaceRoot(normalizeRoot(data))
	if context != nil {
		store.Set(evalpath.FromSegments("$context"), context)
	}
	return evaluator.New(logic.Global()).Eval(id, store)
}

func normalizeRoot(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
