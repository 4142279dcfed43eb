package watchcache

import (
	"sync"
)

// Cache is the published, concurrently readable collection of entries for
// one kind. Entries are unique by Identity. The lock is only ever held for
// the in-memory step of an operation.
type Cache[E any] struct {
	mu       sync.RWMutex
	kind     string
	identity func(E) Identity
	carry    func(prev, next E) E

	entries []E
	index   map[Identity]int
}

// NewCache creates an empty cache. carry may be nil; when set it is applied
// whenever Upsert or Publish replaces an entry of the same identity so
// fields the feed does not own survive the replacement.
func NewCache[E any](kind string, identity func(E) Identity, carry func(prev, next E) E) *Cache[E] {
	return &Cache[E]{
		kind:     kind,
		identity: identity,
		carry:    carry,
		index:    make(map[Identity]int),
	}
}

// Kind returns the kind this cache mirrors
func (c *Cache[E]) Kind() string {
	return c.kind
}

// Publish replaces the entire contents in one critical section. Later
// entries win over earlier ones with the same identity.
func (c *Cache[E]) Publish(snapshot []E) {
	entries := make([]E, 0, len(snapshot))
	index := make(map[Identity]int, len(snapshot))
	for _, e := range snapshot {
		id := c.identity(e)
		if i, ok := index[id]; ok {
			entries[i] = e
			continue
		}
		index[id] = len(entries)
		entries = append(entries, e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.carry != nil {
		for i, e := range entries {
			if prev, ok := c.index[c.identity(e)]; ok {
				entries[i] = c.carry(c.entries[prev], e)
			}
		}
	}
	c.entries = entries
	c.index = index
}

// Upsert replaces the entry with the same identity in place, or appends it.
// It reports whether the entry was newly created.
func (c *Cache[E]) Upsert(e E) bool {
	id := c.identity(e)

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[id]; ok {
		if c.carry != nil {
			e = c.carry(c.entries[i], e)
		}
		c.entries[i] = e
		return false
	}
	c.index[id] = len(c.entries)
	c.entries = append(c.entries, e)
	return true
}

// Remove deletes the entry with the given identity. Absence is not an error.
func (c *Cache[E]) Remove(id Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}
	last := len(c.entries) - 1
	if i != last {
		c.entries[i] = c.entries[last]
		c.index[c.identity(c.entries[i])] = i
	}
	var zero E
	c.entries[last] = zero
	c.entries = c.entries[:last]
	delete(c.index, id)
	return true
}

// Merge applies fn to the entry with the given identity and stores the
// result when fn reports a change. It is a no-op when the identity is not
// present.
func (c *Cache[E]) Merge(id Identity, fn func(E) (E, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}
	next, changed := fn(c.entries[i])
	if !changed {
		return false
	}
	c.entries[i] = next
	return true
}

// Get returns the entry with the given identity
func (c *Cache[E]) Get(id Identity) (E, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i, ok := c.index[id]; ok {
		return c.entries[i], true
	}
	var zero E
	return zero, false
}

// Read returns a copy of the current contents. Order is unspecified.
func (c *Cache[E]) Read() []E {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]E, len(c.entries))
	copy(result, c.entries)
	return result
}

// Len returns the number of entries
func (c *Cache[E]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
