// Package schemacache implements the parsed-schema cache:
// a process-wide, thread-safe keyed registry of parsed schemas so many
// evaluator instances can share the same compiled artifacts cheaply,
// mirroring the bucketed-map pattern pkg/logic's intern table already
// uses for the same "compile once, reuse everywhere" concern.
package schemacache

import (
	"sync"

	"github.com/flowschema/evalengine/pkg/schemaparse"
)

// Cache is a keyed store of *schemaparse.ParsedSchema. Every method is
// safe for concurrent use. It has no effect on evaluation semantics; it
// exists purely so a caller holding an opaque key can seed a new
// evaluator instance without re-parsing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*schemaparse.ParsedSchema
}

// New constructs an empty, independent cache. Most callers want the
// process-wide Global() instance instead.
func New() *Cache {
	return &Cache{entries: make(map[string]*schemaparse.ParsedSchema)}
}

var global = New()

// Global returns the process-wide parsed-schema cache.
func Global() *Cache {
	return global
}

// Insert records parsed under key, replacing any prior entry.
func (c *Cache) Insert(key string, parsed *schemaparse.ParsedSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = parsed
}

// Get returns the parsed schema stored under key, if any.
func (c *Cache) Get(key string) (*schemaparse.ParsedSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[key]
	return p, ok
}

// Remove evicts the entry stored under key, if any.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
