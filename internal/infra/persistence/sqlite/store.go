// Package sqlite provides the embedded default backend. SQLite has no array
// binding, so bulk writes expand into a single multi-row VALUES statement per
// table per batch, which preserves the one-statement contract.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"bankcore/internal/schema"
	"bankcore/internal/storage"
)

// Compile-time contract assertion.
var _ storage.Backend = (*Store)(nil)

// Store persists rows to a single SQLite file, applying the schema DDL on
// open.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the sqlite file at path and applies the
// entity/index/audit DDL for every kind.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "bankcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY between concurrent units of work.
	db.SetMaxOpenConns(1)
	for _, stmt := range schema.SplitStatements(schema.SQLite()) {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply ddl: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Begin opens a database transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sqlite tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// LoadIndex reads every row of an index table.
func (s *Store) LoadIndex(ctx context.Context, table string) ([]storage.IndexRow, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, version, hash, unique_keys, refs FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("select index %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.IndexRow
	for rows.Next() {
		var r storage.IndexRow
		if err := rows.Scan(&r.ID, &r.Version, &r.Hash, &r.UniqueKeys, &r.Refs); err != nil {
			return nil, fmt.Errorf("scan index %s: %w", table, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AuditHistory reads an entity's audit rows ordered by version.
func (s *Store) AuditHistory(ctx context.Context, table, id string) ([]storage.AuditRow, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, version, hash, snapshot, audit_log_id FROM %s WHERE id = ? ORDER BY version`, table), id)
	if err != nil {
		return nil, fmt.Errorf("select audit %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.AuditRow
	for rows.Next() {
		var r storage.AuditRow
		if err := rows.Scan(&r.ID, &r.Version, &r.Hash, &r.Snapshot, &r.AuditLogID); err != nil {
			return nil, fmt.Errorf("scan audit %s: %w", table, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Tx wraps one sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// InsertRows executes one multi-row INSERT.
func (t *Tx) InsertRows(ctx context.Context, table string, cols []storage.Column) error {
	stmt, args, err := valuesStatement(table, cols, "")
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, stmt, args...)
	return err
}

// UpsertRows executes one multi-row INSERT ... ON CONFLICT DO UPDATE.
func (t *Tx) UpsertRows(ctx context.Context, table string, keyCol string, cols []storage.Column) error {
	var sets []string
	for _, c := range cols {
		if c.Name == keyCol {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s=excluded.%s", c.Name, c.Name))
	}
	suffix := fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", keyCol, strings.Join(sets, ", "))
	stmt, args, err := valuesStatement(table, cols, suffix)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, stmt, args...)
	return err
}

// DeleteRows removes all keys in one statement.
func (t *Tx) DeleteRows(ctx context.Context, table string, keyCol string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`, table, keyCol, placeholders), args...)
	return err
}

// GetPayload fetches one payload value by key.
func (t *Tx) GetPayload(ctx context.Context, table, keyCol, payloadCol, key string) (string, bool, error) {
	var payload string
	err := t.tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, payloadCol, table, keyCol), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return payload, true, nil
}

// GetPayloads fetches payloads for many keys in one statement.
func (t *Tx) GetPayloads(ctx context.Context, table, keyCol, payloadCol string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s IN (%s)`, keyCol, payloadCol, table, keyCol, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k, payload string
		if err := rows.Scan(&k, &payload); err != nil {
			return nil, err
		}
		out[k] = payload
	}
	return out, rows.Err()
}

// MaxVersions returns the highest versionCol value per key in one statement.
func (t *Tx) MaxVersions(ctx context.Context, table, keyCol, versionCol string, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(`SELECT %s, MAX(%s) FROM %s WHERE %s IN (%s) GROUP BY %s`, keyCol, versionCol, table, keyCol, placeholders, keyCol), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k string
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// valuesStatement renders "INSERT INTO t (cols...) VALUES (...),(...)" with
// row-major args.
func valuesStatement(table string, cols []storage.Column, suffix string) (string, []any, error) {
	n := storage.Rows(cols)
	if n == 0 {
		return "", nil, fmt.Errorf("sqlite: empty column set for %s", table)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"
	placeholders := strings.TrimSuffix(strings.Repeat(rowPlaceholder+",", n), ",")

	args := make([]any, 0, n*len(cols))
	for i := 0; i < n; i++ {
		for _, c := range cols {
			switch vals := c.Values.(type) {
			case []string:
				args = append(args, vals[i])
			case []int64:
				args = append(args, vals[i])
			default:
				return "", nil, fmt.Errorf("sqlite: unsupported column values %T for %s", c.Values, c.Name)
			}
		}
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s%s`, table, strings.Join(names, ", "), placeholders, suffix)
	return stmt, args, nil
}
