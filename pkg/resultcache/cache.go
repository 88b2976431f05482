// Package resultcache implements the result cache: entries
// keyed on (expression ID, fingerprint), where the fingerprint is a
// digest of the values currently held at every path the expression
// depends on. A cache hit is only valid for as long as that digest keeps
// matching the live data view, so mutating any dependency invalidates the
// entry implicitly rather than requiring an explicit eviction pass.
package resultcache

import (
	"sync"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/flowschema/evalengine/pkg/evalpath"
	"github.com/flowschema/evalengine/pkg/logic"
)

// Getter resolves a canonical path against a data view, the same narrow
// contract workingdata.Store and evaluator.ValueGetter both satisfy.
type Getter interface {
	Get(path evalpath.Path) (any, bool)
}

type entry struct {
	fingerprint uint64
	value       any
}

// Cache is a single subform's result cache. The top-level evaluator and
// every sub-evaluator each own one; Disable/Enable on a parent recurses
// into every child attached via Attach, so subform caches always follow
// their parent's state.
type Cache struct {
	mu       sync.Mutex
	enabled  bool
	entries  map[logic.ID]entry
	hits     int
	misses   int
	children []*Cache
}

// New constructs an enabled, empty cache.
func New() *Cache {
	return &Cache{enabled: true, entries: make(map[logic.ID]entry)}
}

// Attach registers a child cache (typically a sub-evaluator's) so it
// follows this cache's Enable/Disable state.
func (c *Cache) Attach(child *Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children = append(c.children, child)
}

// Enabled reports whether lookups are currently being served from cache.
func (c *Cache) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Disable clears every entry and recursively disables all attached
// children. Subsequent Get calls always miss until Enable is called.
func (c *Cache) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.entries = make(map[logic.ID]entry)
	children := append([]*Cache(nil), c.children...)
	c.mu.Unlock()

	for _, child := range children {
		child.Disable()
	}
}

// Clear empties every entry in this cache and, recursively, every attached
// child, without changing the enabled/disabled state of any of them.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[logic.ID]entry)
	children := append([]*Cache(nil), c.children...)
	c.mu.Unlock()

	for _, child := range children {
		child.Clear()
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Enable turns caching back on, recursively, for this cache and every
// attached child. It does not repopulate entries; they are rebuilt lazily
// as expressions are re-evaluated.
func (c *Cache) Enable() {
	c.mu.Lock()
	c.enabled = true
	children := append([]*Cache(nil), c.children...)
	c.mu.Unlock()

	for _, child := range children {
		child.Enable()
	}
}

// Get looks up a cached result for id, validating it against the current
// data view by recomputing the fingerprint over deps' dependency paths.
// A stale fingerprint (any dependency changed since the value was cached)
// is treated as a miss, never returned.
func (c *Cache) Get(id logic.ID, deps *logic.DependencySet, data Getter) (any, bool) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return nil, false
	}
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		c.recordMiss()
		return nil, false
	}

	fp, err := fingerprint(deps, data)
	if err != nil || fp != e.fingerprint {
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return e.value, true
}

// Put stores a freshly computed result under the fingerprint of the
// dependency values that produced it.
func (c *Cache) Put(id logic.ID, deps *logic.DependencySet, data Getter, value any) {
	fp, err := fingerprint(deps, data)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.entries[id] = entry{fingerprint: fp, value: value}
}

// Stats reports cache_stats: running hits, misses, and the current entry
// count.
type Stats struct {
	Hits    int
	Misses  int
	Entries int
}

// Stats returns a snapshot of this cache's running counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// fingerprint digests the ordered sequence of values currently held at
// every path an expression depends on. Two evaluations see the same
// fingerprint iff every one of those values is unchanged.
func fingerprint(deps *logic.DependencySet, data Getter) (uint64, error) {
	paths := deps.Paths()
	values := make([]any, len(paths))
	for i, p := range paths {
		v, _ := data.Get(p)
		values[i] = v
	}
	return hashstructure.Hash(values, hashstructure.FormatV2, nil)
}
