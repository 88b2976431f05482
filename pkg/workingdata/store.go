// Package workingdata implements the mutable document the evaluator reads
// and writes through canonical pointers. The root starts as an empty
// JSON object and ReplaceRoot(nil) resets it to one; writes create
// missing intermediate objects and extend arrays with null padding when an
// index segment exceeds the array's current length.
package workingdata

import (
	"strconv"

	"github.com/flowschema/evalengine/pkg/evalpath"
)

// Store wraps a JSON-shaped document (nested map[string]any / []any /
// literals) and exposes canonical-path read/write operations. Store is not
// safe for concurrent use; exactly one evaluator owns a Store.
type Store struct {
	root any
}

// New constructs an empty store whose root is an empty object.
func New() *Store {
	return &Store{root: map[string]any{}}
}

// Root returns the current root value. Callers must not mutate the
// returned tree directly; use Set.
func (s *Store) Root() any {
	return s.root
}

// ReplaceRoot atomically swaps the entire document, used by evaluate and
// reload_schema (driver-level operations).
func (s *Store) ReplaceRoot(value any) {
	if value == nil {
		value = map[string]any{}
	}
	s.root = value
}

// Get looks up a canonical path, returning the value and true, or nil and
// false if any segment along the way is missing.
func (s *Store) Get(p evalpath.Path) (any, bool) {
	return evalpath.Get(s.root, p)
}

// Set upserts a value at a canonical path, creating missing intermediate
// containers and extending arrays with nil padding as needed. Setting at
// the root path replaces the whole document.
func (s *Store) Set(p evalpath.Path, value any) {
	if p.IsRoot() {
		s.root = value
		return
	}
	s.root = setAt(s.root, p.Segments(), value)
}

func setAt(container any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}

	seg, rest := segments[0], segments[1:]

	if idx, ok := arrayIndex(seg); ok {
		arr, _ := container.([]any)
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		arr[idx] = setAt(arr[idx], rest, value)
		return arr
	}

	obj, ok := container.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	obj[seg] = setAt(obj[seg], rest, value)
	return obj
}

// arrayIndex reports whether a path segment denotes a non-negative decimal
// array index, matching the convention evalpath.Get uses when resolving.
func arrayIndex(seg string) (int, bool) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}
