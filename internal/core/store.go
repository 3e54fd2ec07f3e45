package core

import (
	"context"
	"encoding/json"
	"fmt"

	"bankcore/internal/index"
	"bankcore/internal/schema"
	"bankcore/internal/storage"
	"bankcore/pkg/domain"
)

// Record aliases the index projection type used throughout the engine.
type Record = index.Record

// Store is the process root of the persistence engine. It owns one shared
// index cache per entity kind and the storage backend; every unit of work is
// opened through it.
type Store struct {
	backend storage.Backend
	caches  map[domain.EntityType]*index.Cache
	metrics MetricsRecorder
}

// Option configures a Store at open time.
type Option func(*Store)

// WithMetrics attaches a metrics recorder observed around repository and
// batch operations.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Store) { s.metrics = rec }
}

// Open builds the shared caches from the backend's index tables. It fails if
// any index table holds a duplicated primary or unique secondary key; this is
// the startup integrity check over the system of record.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		caches:  make(map[domain.EntityType]*index.Cache, len(schema.Kinds)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, kind := range schema.Kinds {
		rows, err := backend.LoadIndex(ctx, schema.IndexTable(kind))
		if err != nil {
			return nil, domain.StoreError{Op: "load index " + kind, Err: err}
		}
		records := make([]Record, 0, len(rows))
		for _, row := range rows {
			rec, err := recordFromRow(row)
			if err != nil {
				return nil, fmt.Errorf("index table %s: %w", kind, err)
			}
			records = append(records, rec)
		}
		cache, err := index.NewCache(records)
		if err != nil {
			return nil, fmt.Errorf("index table %s: %w", kind, err)
		}
		s.caches[domain.EntityType(kind)] = cache
	}
	return s, nil
}

// Begin opens a unit of work: one backend transaction plus one overlay per
// entity kind touched. Entity, index, and audit writes issued through the
// session commit or roll back atomically with the overlay merge.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.backend.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError{Op: "begin", Err: err}
	}
	return &Session{
		store:    s,
		tx:       tx,
		overlays: make(map[domain.EntityType]*index.Overlay),
	}, nil
}

// AuditHistory reads an entity's audit rows ordered by version. This is a
// reporting tap for external consumers (archiver, tests); it is deliberately
// not part of the repository surface.
func (s *Store) AuditHistory(ctx context.Context, kind domain.EntityType, id string) ([]domain.AuditEntry, error) {
	rows, err := s.backend.AuditHistory(ctx, schema.AuditTable(string(kind)), id)
	if err != nil {
		return nil, domain.StoreError{Op: "audit history", Err: err}
	}
	out := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.AuditEntry{
			ID:         row.ID,
			Version:    row.Version,
			Hash:       row.Hash,
			Snapshot:   row.Snapshot,
			AuditLogID: row.AuditLogID,
		})
	}
	return out, nil
}

// CacheIDs returns the primary keys currently cached for a kind. Order is
// unspecified.
func (s *Store) CacheIDs(kind domain.EntityType) []string {
	if c := s.caches[kind]; c != nil {
		return c.IDs()
	}
	return nil
}

// CacheLen reports the shared-cache population of a kind.
func (s *Store) CacheLen(kind domain.EntityType) int {
	if c := s.caches[kind]; c != nil {
		return c.Len()
	}
	return 0
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) cacheFor(kind domain.EntityType) *index.Cache {
	return s.caches[kind]
}

func recordFromRow(row storage.IndexRow) (Record, error) {
	rec := Record{ID: row.ID, Version: row.Version, Hash: row.Hash}
	if row.UniqueKeys != "" {
		if err := json.Unmarshal([]byte(row.UniqueKeys), &rec.Unique); err != nil {
			return Record{}, fmt.Errorf("decode unique keys for %s: %w", row.ID, err)
		}
	}
	if row.Refs != "" {
		if err := json.Unmarshal([]byte(row.Refs), &rec.Refs); err != nil {
			return Record{}, fmt.Errorf("decode refs for %s: %w", row.ID, err)
		}
	}
	return rec, nil
}

