package logic

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the process-wide compiled-logic registry: a thread-safe
// store so externally authored expressions,
// submitted from many evaluator instances, compile once and run many
// times. Every Registry method is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	compiler *Compiler
	handles  map[string]ID
}

// NewRegistry constructs an empty, independent registry. Most callers want
// the process-wide Global() instance instead.
func NewRegistry() *Registry {
	return &Registry{
		compiler: NewCompiler(),
		handles:  make(map[string]ID),
	}
}

var global = NewRegistry()

// Global returns the process-wide compiled-logic registry shared by every
// evaluator instance in this process.
func Global() *Registry {
	return global
}

// Compile compiles a raw expression tree and returns its interned ID. Safe
// for concurrent use; two goroutines compiling structurally equal trees
// observe the same ID.
func (r *Registry) Compile(raw any) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compiler.Compile(raw)
}

// Register compiles an expression and additionally hands back a stable,
// opaque external handle (a UUID string) that callers can use to refer to
// the compiled logic without holding onto the numeric ID, the
// compile-once/run-many contract external callers rely on.
func (r *Registry) Register(raw any) (string, ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.compiler.Compile(raw)
	if err != nil {
		return "", 0, err
	}
	handle := uuid.NewString()
	r.handles[handle] = id
	return handle, id, nil
}

// Resolve looks up the ID previously returned for an external handle.
func (r *Registry) Resolve(handle string) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.handles[handle]
	return id, ok
}

// Term returns the compiled Term for an ID.
func (r *Registry) Term(id ID) Term {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compiler.Term(id)
}

// Dependencies returns the dependency set computed for an ID.
func (r *Registry) Dependencies(id ID) *DependencySet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compiler.Dependencies(id)
}

// Snapshot returns the underlying *Compiler protected by a lock held for
// the duration of fn, letting callers batch several term/dependency reads
// without repeatedly acquiring the mutex.
func (r *Registry) Snapshot(fn func(*Compiler)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.compiler)
}
