// Package evaluator implements the expression evaluator: a
// stateless executor over a compiled term, a user-data view, and a bounded
// recursion depth, following the type-switch dispatch pattern the compiled
// intermediate representation's own evaluator uses: one small evalXxx
// helper per operator family, fanned out from a single switch.
package evaluator

import (
	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

// defaultMaxDepth bounds expression recursion. A schema-authored expression
// nesting this deep is almost certainly a runaway self-reference rather
// than legitimate business logic.
const defaultMaxDepth = 256

// TermSource resolves a compiled expression ID to its Term, the same
// narrow view logic.Compiler and logic.Registry both already satisfy.
type TermSource interface {
	Term(id logic.ID) logic.Term
}

// Getter resolves a canonical path against a value tree. workingdata.Store
// satisfies this directly; quantifier and reducer operators construct
// lightweight Getters scoped to a single element via ValueGetter.
type Getter interface {
	Get(path evalpath.Path) (any, bool)
}

// ValueGetter adapts a bare value (the element a quantifier or map/filter
// predicate is currently considering) into a Getter, so predicate
// expressions can address it with ordinary variable paths.
type ValueGetter struct{ Value any }

// Get implements Getter by walking the wrapped value.
func (g ValueGetter) Get(p evalpath.Path) (any, bool) {
	return evalpath.Get(g.Value, p)
}

// ReturnValue marks the result of a "return" control operator. The driver
// unwraps it to its operand when it stores a top-level result; the table
// executor stores it as returned.
type ReturnValue struct{ Value any }

// Option configures an Evaluator at construction time.
type Option func(*Evaluator)

// WithMaxDepth overrides the default recursion bound.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) { e.maxDepth = n }
}

// WithTimezoneOffsetMinutes sets the evaluator's timezone offset (minutes
// east of UTC), consulted by TODAY and NOW.
func WithTimezoneOffsetMinutes(minutes int) Option {
	return func(e *Evaluator) { e.tzOffsetMin = minutes }
}

// WithSafeNaNHandling makes non-finite arithmetic results (division or
// modulo by zero) coalesce to 0 instead of null, per the
// safe_nan_handling configuration knob.
func WithSafeNaNHandling(enabled bool) Option {
	return func(e *Evaluator) { e.safeNaN = enabled }
}

// WithTableIndex registers a prebuilt table index for the table
// living at the given canonical path, consulted by match/indexat whenever
// their table argument is a direct variable reference to that path.
func WithTableIndex(path evalpath.Path, idx *TableIndex) Option {
	return func(e *Evaluator) {
		if e.tables == nil {
			e.tables = make(map[string]*TableIndex)
		}
		e.tables[path.String()] = idx
	}
}

// Evaluator is the stateless expression executor. It holds
// no working data of its own; every Eval call takes the Getter to
// evaluate against, so one Evaluator can serve an arbitrary number of
// concurrent evaluations (so long as the underlying TermSource is
// read-only, which logic.Compiler and logic.Registry both guarantee once
// compilation has finished).
type Evaluator struct {
	terms       TermSource
	maxDepth    int
	tzOffsetMin int
	safeNaN     bool
	tables      map[string]*TableIndex
}

// New constructs an Evaluator reading compiled terms from the given source.
func New(terms TermSource, opts ...Option) *Evaluator {
	e := &Evaluator{terms: terms, maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetTableIndex installs or replaces the table index consulted by
// match/indexat for the table living at path. The driver calls this after
// (re-)executing a table whose rows changed, so a stale index is never
// consulted after the table value is replaced.
func (e *Evaluator) SetTableIndex(path evalpath.Path, idx *TableIndex) {
	if e.tables == nil {
		e.tables = make(map[string]*TableIndex)
	}
	e.tables[path.String()] = idx
}

// Eval evaluates a compiled expression against a data view, returning a
// plain JSON-shaped value (nil / bool / float64 / string / []any /
// map[string]any), possibly wrapped in ReturnValue.
func (e *Evaluator) Eval(id logic.ID, data Getter) (any, error) {
	return e.eval(id, data, 0)
}

func (e *Evaluator) eval(id logic.ID, data Getter, depth int) (any, error) {
	if depth >= e.maxDepth {
		return nil, &evalerr.RecursionLimit{}
	}

	term := e.terms.Term(id)
	switch term.Kind {
	case logic.KindLiteralNull:
		return nil, nil
	case logic.KindLiteralBoolean:
		return term.BoolValue, nil
	case logic.KindLiteralString:
		return term.StringValue, nil
	case logic.KindLiteralNumber:
		return literalNumber(term.NumberText), nil
	case logic.KindVariable:
		return e.evalVariable(term, data, depth)
	case logic.KindArray:
		return e.evalArrayLiteral(term, data, depth)
	case logic.KindObject:
		return e.evalObjectLiteral(term, data, depth)
	case logic.KindApply:
		return e.evalApply(term, data, depth)
	default:
		return nil, &evalerr.ParseError{Reason: "unrecognized compiled term kind"}
	}
}

func (e *Evaluator) evalVariable(term logic.Term, data Getter, depth int) (any, error) {
	if v, ok := data.Get(term.VarPath); ok {
		return v, nil
	}
	if term.VarHasDefault {
		return e.eval(term.VarDefault, data, depth+1)
	}
	return nil, nil
}

func (e *Evaluator) evalArrayLiteral(term logic.Term, data Getter, depth int) (any, error) {
	out := make([]any, len(term.Items))
	for i, id := range term.Items {
		v, err := e.eval(id, data, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Evaluator) evalObjectLiteral(term logic.Term, data Getter, depth int) (any, error) {
	out := make(map[string]any, len(term.Keys))
	for i, k := range term.Keys {
		v, err := e.eval(term.Values[i], data, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (e *Evaluator) evalApply(term logic.Term, data Getter, depth int) (any, error) {
	switch term.Op {
	case "+", "-", "*", "/", "%", "pow":
		return e.evalArithmetic(term.Op, term.Args, data, depth)
	case "==", "===", "!=", "!==", "<", "<=", ">", ">=":
		return e.evalCompare(term.Op, term.Args, data, depth)
	case "and", "or", "!":
		return e.evalLogical(term.Op, term.Args, data, depth)
	case "all", "some", "none":
		return e.evalQuantifier(term.Op, term.Args, data, depth)
	case "min", "max", "sum":
		return e.evalAggregate(term.Op, term.Args, data, depth)
	case "match", "indexat":
		return e.evalLookup(term.Op, term.Args, data, depth)
	case "cat", "substr", "template":
		return e.evalString(term.Op, term.Args, data, depth)
	case "today", "now", "year", "month", "day":
		return e.evalDate(term.Op, term.Args, data, depth)
	case "if", "return", "var":
		return e.evalControl(term.Op, term.Args, data, depth)
	case "round", "ceil", "floor", "abs":
		return e.evalRounding(term.Op, term.Args, data, depth)
	case "map", "filter", "reduce", "merge", "in":
		return e.evalCollection(term.Op, term.Args, data, depth)
	default:
		return nil, &evalerr.UnknownOperator{Name: term.Op}
	}
}

// evalArgs evaluates every argument ID in order, short-circuiting on the
// first error.
func (e *Evaluator) evalArgs(ids []logic.ID, data Getter, depth int) ([]any, error) {
	out := make([]any, len(ids))
	for i, id := range ids {
		v, err := e.eval(id, data, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
