package index

// Overlay gives one in-flight unit of work a consistent view that includes its
// own uncommitted writes and hides its own uncommitted deletes, without
// touching the shared cache until commit.
//
// An Overlay is private to its unit of work and is not safe for concurrent
// use; only Commit touches shared state, under the cache's write lock.
type Overlay struct {
	shared  *Cache
	added   map[string]Record
	removed map[string]struct{}
}

// NewOverlay wraps a shared cache for the lifetime of one unit of work.
func NewOverlay(shared *Cache) *Overlay {
	return &Overlay{
		shared:  shared,
		added:   make(map[string]Record),
		removed: make(map[string]struct{}),
	}
}

// Contains follows the three-way precedence: locally added wins, locally
// deleted hides, otherwise the shared cache answers.
func (o *Overlay) Contains(id string) bool {
	if _, ok := o.added[id]; ok {
		return true
	}
	if _, ok := o.removed[id]; ok {
		return false
	}
	return o.shared.Contains(id)
}

// Get returns the record visible to this unit of work.
func (o *Overlay) Get(id string) (Record, bool) {
	if r, ok := o.added[id]; ok {
		return r.Clone(), true
	}
	if _, ok := o.removed[id]; ok {
		return Record{}, false
	}
	return o.shared.Get(id)
}

// LookupUnique resolves a unique secondary key in the merged view. Local
// additions are scanned first (batches are small); the shared answer is
// suppressed when its holder is locally deleted or locally re-projected under
// a different value.
func (o *Overlay) LookupUnique(index, value string) (string, bool) {
	for id, r := range o.added {
		if r.Unique[index] == value {
			return id, true
		}
	}
	id, ok := o.shared.LookupUnique(index, value)
	if !ok {
		return "", false
	}
	if _, gone := o.removed[id]; gone {
		return "", false
	}
	if local, ok := o.added[id]; ok && local.Unique[index] != value {
		return "", false
	}
	return id, true
}

// ListRefs merges one-to-many lookups across local additions and the shared
// cache, filtering out locally deleted and locally re-parented keys.
func (o *Overlay) ListRefs(index, parent string) []string {
	seen := make(map[string]struct{})
	var out []string
	for id, r := range o.added {
		if r.Refs[index] == parent {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range o.shared.ListRefs(index, parent) {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, gone := o.removed[id]; gone {
			continue
		}
		if local, ok := o.added[id]; ok && local.Refs[index] != parent {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Add stages a record locally and clears any pending tombstone for its key.
func (o *Overlay) Add(r Record) {
	delete(o.removed, r.ID)
	o.added[r.ID] = r.Clone()
}

// Remove stages a tombstone. A key that only ever existed as a local addition
// is simply retracted: it was never committed and must never become visible.
func (o *Overlay) Remove(id string) {
	if _, local := o.added[id]; local {
		delete(o.added, id)
		if o.shared.Contains(id) {
			o.removed[id] = struct{}{}
		}
		return
	}
	o.removed[id] = struct{}{}
}

// Commit merges the staged additions and tombstones into the shared cache in
// one write-lock critical section, then clears the local sets. Commit cannot
// fail; any failure belongs to the database statement that preceded it.
func (o *Overlay) Commit() {
	adds := make([]Record, 0, len(o.added))
	for _, r := range o.added {
		adds = append(adds, r)
	}
	removes := make([]string, 0, len(o.removed))
	for id := range o.removed {
		removes = append(removes, id)
	}
	o.shared.Apply(adds, removes)
	o.added = make(map[string]Record)
	o.removed = make(map[string]struct{})
}

// Rollback discards the local sets without touching the shared cache.
func (o *Overlay) Rollback() {
	o.added = make(map[string]Record)
	o.removed = make(map[string]struct{})
}

// Dirty reports whether the overlay has staged state.
func (o *Overlay) Dirty() bool {
	return len(o.added) > 0 || len(o.removed) > 0
}
