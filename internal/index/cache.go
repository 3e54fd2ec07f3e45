package index

import (
	"fmt"
	"sync"
)

// Cache is the process-wide index cache for one entity kind. It answers point
// and secondary lookups in O(1) without touching the backing store. Size is
// bounded by the number of live rows of the kind; there is no eviction.
//
// Many readers may hold the read lock concurrently; overlay merges serialize
// on the write lock so two committing transactions can never interleave a
// partial merge.
type Cache struct {
	mu      sync.RWMutex
	records map[string]Record
	unique  map[string]map[string]string
	refs    map[string]map[string]map[string]struct{}
}

// NewCache builds a cache from the full set of committed index records. It
// fails if any primary key or unique secondary key repeats; this is the
// startup integrity check against a corrupted index table.
func NewCache(records []Record) (*Cache, error) {
	c := &Cache{
		records: make(map[string]Record, len(records)),
		unique:  make(map[string]map[string]string),
		refs:    make(map[string]map[string]map[string]struct{}),
	}
	for _, r := range records {
		if _, ok := c.records[r.ID]; ok {
			return nil, fmt.Errorf("duplicate primary key %s", r.ID)
		}
		for name, value := range r.Unique {
			if holder, ok := c.unique[name][value]; ok {
				return nil, fmt.Errorf("duplicate %s key %s held by %s and %s", name, value, holder, r.ID)
			}
		}
		c.insert(r.Clone())
	}
	return c, nil
}

// Len reports the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// IDs returns every cached primary key. Order is unspecified.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.records))
	for id := range c.records {
		out = append(out, id)
	}
	return out
}

// Contains reports whether a primary key is cached.
func (c *Cache) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[id]
	return ok
}

// Get returns the record for a primary key.
func (c *Cache) Get(id string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// LookupUnique resolves a unique secondary key to the primary key holding it.
func (c *Cache) LookupUnique(index, value string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.unique[index][value]
	return id, ok
}

// ListRefs returns the primary keys referencing parent through a one-to-many
// index. Order is unspecified.
func (c *Cache) ListRefs(index, parent string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	members := c.refs[index][parent]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Add inserts a record. Inserting an already-present primary key is a no-op:
// callers validate uniqueness before staging, so a repeat add is an idempotent
// replay, not an error.
func (c *Cache) Add(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(r)
}

// Remove drops a record from the primary map and every secondary map.
func (c *Cache) Remove(id string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(id)
}

// Apply merges one transaction's staged additions and deletions under a single
// write lock so concurrent commits cannot observe a partial merge.
func (c *Cache) Apply(adds []Record, removes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range removes {
		c.remove(id)
	}
	for _, r := range adds {
		// An update is staged as remove-then-add of the same key.
		c.remove(r.ID)
		c.add(r)
	}
}

func (c *Cache) add(r Record) {
	if _, ok := c.records[r.ID]; ok {
		return
	}
	c.insert(r.Clone())
}

func (c *Cache) insert(r Record) {
	c.records[r.ID] = r
	for name, value := range r.Unique {
		m := c.unique[name]
		if m == nil {
			m = make(map[string]string)
			c.unique[name] = m
		}
		m[value] = r.ID
	}
	for name, parent := range r.Refs {
		byParent := c.refs[name]
		if byParent == nil {
			byParent = make(map[string]map[string]struct{})
			c.refs[name] = byParent
		}
		members := byParent[parent]
		if members == nil {
			members = make(map[string]struct{})
			byParent[parent] = members
		}
		members[r.ID] = struct{}{}
	}
}

func (c *Cache) remove(id string) (Record, bool) {
	r, ok := c.records[id]
	if !ok {
		return Record{}, false
	}
	delete(c.records, id)
	for name, value := range r.Unique {
		if c.unique[name][value] == id {
			delete(c.unique[name], value)
		}
	}
	for name, parent := range r.Refs {
		if members := c.refs[name][parent]; members != nil {
			delete(members, id)
			if len(members) == 0 {
				delete(c.refs[name], parent)
			}
		}
	}
	return r, true
}
