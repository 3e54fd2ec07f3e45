// Package core is the repository engine: it owns the shared index caches,
// hands out units of work, and turns domain writes into entity + index +
// audit rows against a pluggable storage backend.
package core

import (
	"bankcore/internal/schema"
	"bankcore/pkg/domain"
)

// Tables names the three backing tables of an entity kind.
type Tables struct {
	Kind   domain.EntityType
	Entity string
	Index  string
	Audit  string
}

func tablesFor(kind domain.EntityType) Tables {
	k := string(kind)
	return Tables{
		Kind:   kind,
		Entity: schema.EntityTable(k),
		Index:  schema.IndexTable(k),
		Audit:  schema.AuditTable(k),
	}
}

// Parent declares a required foreign reference that must exist, in the same
// unit of work's merged view, at the moment of a write.
type Parent[E any] struct {
	Kind domain.EntityType
	// Key extracts the referenced primary key; ok=false means the reference
	// is unset and nothing is validated.
	Key func(E) (string, bool)
}

// Dependent declares a one-to-many back reference that blocks deletion: a
// record may not be removed while any row of Kind still references it through
// the named index.
type Dependent struct {
	Kind  domain.EntityType
	Index string
}

// Descriptor parameterizes the generic repository over one entity kind. This
// is the single module that replaces the per-entity cache/repository
// boilerplate: key access, index projection, parent validation, and cascade
// protection are all declared data.
type Descriptor[E any] struct {
	Tables
	// Key returns the primary key; empty means the engine assigns one.
	Key func(E) string
	// WithKey returns a copy of the entity carrying the assigned key.
	WithKey func(E, string) E
	// Project builds the index record for the entity: primary key plus the
	// unique and one-to-many secondary key values. Version and Hash are
	// filled by the engine.
	Project func(E) Record
	// Parents are validated against the overlay before any row is written.
	Parents []Parent[E]
	// Dependents are consulted before deletes.
	Dependents []Dependent
}
