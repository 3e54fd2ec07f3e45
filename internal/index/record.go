package index

// Record is the lightweight projection of an entity held by the shared cache:
// the primary key, the version and content hash of the last accepted state,
// and the extracted secondary-key values the cache indexes by.
//
// Unique maps index name to the single value the entity occupies in that
// unique index. Refs maps index name to the parent primary key for one-to-many
// lookups ("all subdivisions of a country").
type Record struct {
	ID      string
	Version int64
	Hash    int64
	Unique  map[string]string
	Refs    map[string]string
}

// Clone returns a deep copy so cached records never alias caller maps.
func (r Record) Clone() Record {
	cp := r
	if r.Unique != nil {
		cp.Unique = make(map[string]string, len(r.Unique))
		for k, v := range r.Unique {
			cp.Unique[k] = v
		}
	}
	if r.Refs != nil {
		cp.Refs = make(map[string]string, len(r.Refs))
		for k, v := range r.Refs {
			cp.Refs[k] = v
		}
	}
	return cp
}
