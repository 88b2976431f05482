package logic

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/flowschema/evalengine/pkg/evalerr"
	"github.com/flowschema/evalengine/pkg/evalpath"
)

// operators is the fixed set of operator names the compiler accepts inside
// a single-key {"op": args} application node. Unknown operator names fail
// compilation with evalerr.UnknownOperator.
var operators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "pow": true,
	"==": true, "===": true, "!=": true, "!==": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"and": true, "or": true, "!": true,
	"all": true, "some": true, "none": true,
	"min": true, "max": true, "sum": true,
	"match": true, "indexat": true,
	"cat": true, "substr": true, "template": true,
	"today": true, "now": true, "year": true, "month": true, "day": true,
	"if": true, "return": true, "var": true,
	"round": true, "ceil": true, "floor": true, "abs": true,
	"map": true, "filter": true, "reduce": true, "merge": true, "in": true,
}

// refKeywords are the single-key object forms which denote a variable
// reference rather than an ordinary operator application.
var refKeywords = map[string]bool{"var": true, "$ref": true, "ref": true}

// Compiler translates raw expression trees (decoded JSON: map[string]any /
// []any / literals) into compiled Terms, interning by structural identity
// so that two structurally equal trees always resolve to the same ID.
//
// A Compiler is not safe for concurrent use; callers needing a shared,
// thread-safe compiler should use Registry (registry.go), which wraps a
// single Compiler under a mutex.
type Compiler struct {
	terms    []Term
	deps     []*DependencySet
	intern   *internTable
	visiting map[uintptr]bool
}

// NewCompiler constructs an empty Compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		intern:   newInternTable(),
		visiting: make(map[uintptr]bool),
	}
}

// Term returns the compiled Term for a previously returned ID.
func (c *Compiler) Term(id ID) Term {
	return c.terms[id]
}

// Dependencies returns the dependency set computed for a previously
// returned ID.
func (c *Compiler) Dependencies(id ID) *DependencySet {
	return c.deps[id]
}

// Compile compiles a raw expression tree, returning its (possibly reused)
// ID. Compilation is pure and deterministic: a structurally equal tree
// passed in a later call returns the same ID.
func (c *Compiler) Compile(raw any) (ID, error) {
	return c.compile(raw)
}

func (c *Compiler) compile(raw any) (ID, error) {
	switch v := raw.(type) {
	case nil:
		return c.internTerm("null:", Term{Kind: KindLiteralNull}, nil)
	case bool:
		return c.internTerm("bool:"+strconv.FormatBool(v), Term{Kind: KindLiteralBoolean, BoolValue: v}, nil)
	case string:
		return c.internTerm("str:"+v, Term{Kind: KindLiteralString, StringValue: v}, nil)
	case float64:
		text := strconv.FormatFloat(v, 'g', -1, 64)
		return c.internTerm("num:"+text, Term{Kind: KindLiteralNumber, NumberText: text}, nil)
	case int:
		text := strconv.Itoa(v)
		return c.internTerm("num:"+text, Term{Kind: KindLiteralNumber, NumberText: text}, nil)
	case int64:
		// MessagePack decoding yields int64 for integral numbers where the
		// JSON path yields float64; both intern under the same textual key.
		text := strconv.FormatInt(v, 10)
		return c.internTerm("num:"+text, Term{Kind: KindLiteralNumber, NumberText: text}, nil)
	case uint64:
		text := strconv.FormatUint(v, 10)
		return c.internTerm("num:"+text, Term{Kind: KindLiteralNumber, NumberText: text}, nil)
	case json.Number:
		return c.internTerm("num:"+string(v), Term{Kind: KindLiteralNumber, NumberText: string(v)}, nil)
	case []any:
		return c.compileArray(v)
	case map[string]any:
		return c.compileMap(v)
	default:
		return 0, &evalerr.ParseError{Location: "", Reason: fmt.Sprintf("unsupported expression node type %T", raw)}
	}
}

func (c *Compiler) compileArray(items []any) (ID, error) {
	if err := c.enterCycleGuard(items); err != nil {
		return 0, err
	}
	defer c.exitCycleGuard(items)

	ids := make([]ID, len(items))
	deps := NewDependencySet()
	keyParts := make([]string, len(items))

	for i, item := range items {
		id, err := c.compile(item)
		if err != nil {
			return 0, err
		}
		ids[i] = id
		mergeDeps(deps, c.deps[id])
		keyParts[i] = strconv.FormatUint(uint64(id), 10)
	}

	key := "arr:" + strings.Join(keyParts, ",")
	return c.internTerm(key, Term{Kind: KindArray, Items: ids}, deps)
}

func (c *Compiler) compileMap(m map[string]any) (ID, error) {
	if err := c.enterCycleGuard(m); err != nil {
		return 0, err
	}
	defer c.exitCycleGuard(m)

	if len(m) == 1 {
		for key, val := range m {
			if refKeywords[key] {
				return c.compileVariable(val)
			}
			if operators[key] {
				return c.compileApply(key, val)
			}
			// A single-key map whose key is neither a known ref keyword
			// nor a known operator is ambiguous: treat as an unknown
			// operator.
			return 0, &evalerr.UnknownOperator{Name: key}
		}
	}

	return c.compileObjectLiteral(m)
}

func (c *Compiler) compileVariable(raw any) (ID, error) {
	var (
		pathRaw any
		defRaw  any
		hasDef  bool
	)
	switch v := raw.(type) {
	case string:
		pathRaw = v
	case []any:
		if len(v) == 0 {
			pathRaw = ""
		} else {
			pathRaw = v[0]
		}
		if len(v) > 1 {
			defRaw, hasDef = v[1], true
		}
	default:
		pathRaw = v
	}

	pathStr, _ := pathRaw.(string)
	path := evalpath.Normalize(pathStr)

	term := Term{
		Kind:             KindVariable,
		VarPath:          path,
		VarContextRooted: path.IsContextRooted(),
	}
	deps := NewDependencySet()
	deps.Add(path)

	key := "var:" + path.String()
	if hasDef {
		defID, err := c.compile(defRaw)
		if err != nil {
			return 0, err
		}
		term.VarDefault = defID
		term.VarHasDefault = true
		mergeDeps(deps, c.deps[defID])
		key += "|d" + strconv.FormatUint(uint64(defID), 10)
	}

	return c.internTerm(key, term, deps)
}

func (c *Compiler) compileApply(op string, raw any) (ID, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case nil:
		items = nil
	default:
		items = []any{v}
	}

	args := make([]ID, len(items))
	deps := NewDependencySet()
	keyParts := make([]string, len(items))

	for i, item := range items {
		id, err := c.compile(item)
		if err != nil {
			return 0, err
		}
		args[i] = id
		mergeDeps(deps, c.deps[id])
		keyParts[i] = strconv.FormatUint(uint64(id), 10)
	}

	key := "op:" + op + ":" + strings.Join(keyParts, ",")
	return c.internTerm(key, Term{Kind: KindApply, Op: op, Args: args}, deps)
}

func (c *Compiler) compileObjectLiteral(m map[string]any) (ID, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]ID, len(keys))
	deps := NewDependencySet()
	keyParts := make([]string, len(keys))

	for i, k := range keys {
		id, err := c.compile(m[k])
		if err != nil {
			return 0, err
		}
		values[i] = id
		mergeDeps(deps, c.deps[id])
		keyParts[i] = k + "=" + strconv.FormatUint(uint64(id), 10)
	}

	key := "obj:" + strings.Join(keyParts, ",")
	return c.internTerm(key, Term{Kind: KindObject, Keys: keys, Values: values}, deps)
}

func (c *Compiler) internTerm(key string, term Term, deps *DependencySet) (ID, error) {
	if id, ok := c.intern.lookup(key); ok {
		return id, nil
	}
	if deps == nil {
		deps = NewDependencySet()
	}
	id := ID(len(c.terms))
	c.terms = append(c.terms, term)
	c.deps = append(c.deps, deps)
	c.intern.insert(key, id)
	return id, nil
}

func mergeDeps(into *DependencySet, from *DependencySet) {
	if from == nil {
		return
	}
	for _, p := range from.Paths() {
		into.Add(p)
	}
}

// enterCycleGuard detects a raw node revisiting itself deeper in its own
// subtree, which is the only way a decoded-JSON tree can contain a cycle
// (a caller building the tree programmatically with a self-reference).
func (c *Compiler) enterCycleGuard(node any) error {
	ptr := reflect.ValueOf(node).Pointer()
	if c.visiting[ptr] {
		return &evalerr.ParseError{Location: "", Reason: "cyclic expression tree"}
	}
	c.visiting[ptr] = true
	return nil
}

func (c *Compiler) exitCycleGuard(node any) {
	ptr := reflect.ValueOf(node).Pointer()
	delete(c.visiting, ptr)
}
