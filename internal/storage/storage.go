// Package storage defines the column-oriented contract between the repository
// engine and the concrete persistence backends. The engine builds one
// array-of-values per column; backends bind those arrays in a single
// multi-row statement per table per batch.
package storage

import "context"

// Column SQL types understood by every backend.
const (
	TypeText   = "text"
	TypeBigint = "bigint"
	TypeJSONB  = "jsonb"
)

// Column carries all values of one column for a multi-row statement.
// Values is []string for text and jsonb (jsonb travels as encoded JSON text)
// and []int64 for bigint.
type Column struct {
	Name   string
	Type   string
	Values any
}

// Rows reports the row count of a column set.
func Rows(cols []Column) int {
	if len(cols) == 0 {
		return 0
	}
	switch v := cols[0].Values.(type) {
	case []string:
		return len(v)
	case []int64:
		return len(v)
	default:
		return 0
	}
}

// Tx is one backend transaction. Entity, index, and audit rows written through
// the same Tx commit or roll back atomically.
type Tx interface {
	// InsertRows executes a single multi-row insert.
	InsertRows(ctx context.Context, table string, cols []Column) error
	// UpsertRows executes a single multi-row insert-or-update keyed by keyCol.
	UpsertRows(ctx context.Context, table string, keyCol string, cols []Column) error
	// DeleteRows removes every row whose keyCol is in keys, in one statement.
	DeleteRows(ctx context.Context, table string, keyCol string, keys []string) error
	// GetPayload fetches one payload column value by key.
	GetPayload(ctx context.Context, table, keyCol, payloadCol, key string) (string, bool, error)
	// GetPayloads fetches payloads for many keys in one statement. Missing
	// keys are simply absent from the result.
	GetPayloads(ctx context.Context, table, keyCol, payloadCol string, keys []string) (map[string]string, error)
	// MaxVersions returns the highest versionCol value per key, in one
	// statement. Keys with no rows are absent from the result. The engine
	// uses this against audit tables so a re-created primary key resumes
	// its version sequence instead of reusing old numbers.
	MaxVersions(ctx context.Context, table, keyCol, versionCol string, keys []string) (map[string]int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// IndexRow is the persisted form of one index record. UniqueKeys and Refs are
// JSON object encodings of the record's secondary-key maps.
type IndexRow struct {
	ID         string
	Version    int64
	Hash       int64
	UniqueKeys string
	Refs       string
}

// AuditRow is one appended audit entry as stored.
type AuditRow struct {
	ID         string
	Version    int64
	Hash       int64
	Snapshot   string
	AuditLogID string
}

// Backend is a transactional backing store. Implementations live under
// internal/infra/persistence and are selected at open time.
type Backend interface {
	Begin(ctx context.Context) (Tx, error)
	// LoadIndex reads every row of an index table to rebuild the shared cache
	// at startup.
	LoadIndex(ctx context.Context, table string) ([]IndexRow, error)
	// AuditHistory reads an entity's audit rows ordered by version. This is
	// the reporting tap; the repository surface never exposes it.
	AuditHistory(ctx context.Context, table, id string) ([]AuditRow, error)
	Close() error
}
