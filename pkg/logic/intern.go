package logic

import "github.com/cespare/xxhash/v2"

// internTable is a bucketed hash table mapping a structural key string to
// the ID already assigned to it. It mirrors a classic hash-consing table:
// collisions are handled with buckets rather than discarded, since xxhash
// collisions, while rare, are not cryptographically ruled out.
type internTable struct {
	buckets map[uint64][]internEntry
}

type internEntry struct {
	key string
	id  ID
}

func newInternTable() *internTable {
	return &internTable{buckets: make(map[uint64][]internEntry)}
}

// lookup returns the ID previously stored under key, if any.
func (t *internTable) lookup(key string) (ID, bool) {
	h := xxhash.Sum64String(key)
	for _, e := range t.buckets[h] {
		if e.key == key {
			return e.id, true
		}
	}
	return 0, false
}

// insert records key -> id. Callers must have already confirmed (via
// lookup) that key is not already present.
func (t *internTable) insert(key string, id ID) {
	h := xxhash.Sum64String(key)
	t.buckets[h] = append(t.buckets[h], internEntry{key, id})
}
