// Package postgres provides the production backend on pgx. Multi-row writes
// bind one array parameter per column and expand them server-side with
// unnest, so a batch of any size stays a single statement per table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bankcore/internal/schema"
	"bankcore/internal/storage"
)

// Compile-time contract assertion.
var _ storage.Backend = (*Store)(nil)

// Store persists rows to Postgres through a pgx connection pool, applying the
// entity/index/audit DDL on open.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and applies the schema DDL for every kind.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range schema.SplitStatements(schema.Postgres()) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply ddl: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for integration testing hooks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Begin opens a database transaction.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin postgres tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// LoadIndex reads every row of an index table.
func (s *Store) LoadIndex(ctx context.Context, table string) ([]storage.IndexRow, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, version, hash, unique_keys::text, refs::text FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("select index %s: %w", table, err)
	}
	defer rows.Close()
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
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, version, hash, snapshot::text, audit_log_id FROM %s WHERE id = $1 ORDER BY version`, table), id)
	if err != nil {
		return nil, fmt.Errorf("select audit %s: %w", table, err)
	}
	defer rows.Close()
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

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Tx wraps one pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// InsertRows executes one INSERT ... SELECT unnest(...) statement.
func (t *Tx) InsertRows(ctx context.Context, table string, cols []storage.Column) error {
	stmt, args, err := unnestStatement(table, cols, "")
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, stmt, args...)
	return err
}

// UpsertRows executes one INSERT ... SELECT unnest(...) ON CONFLICT DO UPDATE.
func (t *Tx) UpsertRows(ctx context.Context, table string, keyCol string, cols []storage.Column) error {
	var sets []string
	for _, c := range cols {
		if c.Name == keyCol {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s=excluded.%s", c.Name, c.Name))
	}
	suffix := fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", keyCol, strings.Join(sets, ", "))
	stmt, args, err := unnestStatement(table, cols, suffix)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, stmt, args...)
	return err
}

// DeleteRows removes all keys in one statement.
func (t *Tx) DeleteRows(ctx context.Context, table string, keyCol string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1)`, table, keyCol), keys)
	return err
}

// GetPayload fetches one payload value by key.
func (t *Tx) GetPayload(ctx context.Context, table, keyCol, payloadCol, key string) (string, bool, error) {
	var payload string
	err := t.tx.QueryRow(ctx, fmt.Sprintf(`SELECT %s::text FROM %s WHERE %s = $1`, payloadCol, table, keyCol), key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := t.tx.Query(ctx, fmt.Sprintf(`SELECT %s, %s::text FROM %s WHERE %s = ANY($1)`, keyCol, payloadCol, table, keyCol), keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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
	rows, err := t.tx.Query(ctx, fmt.Sprintf(`SELECT %s, MAX(%s) FROM %s WHERE %s = ANY($1) GROUP BY %s`, keyCol, versionCol, table, keyCol, keyCol), keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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
func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

// Rollback aborts the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// unnestStatement renders
// "INSERT INTO t (a, b) SELECT unnest($1::text[]), unnest($2::bigint[])"
// with one array argument per column.
func unnestStatement(table string, cols []storage.Column, suffix string) (string, []any, error) {
	if storage.Rows(cols) == 0 {
		return "", nil, fmt.Errorf("postgres: empty column set for %s", table)
	}
	names := make([]string, len(cols))
	selects := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		var sqlType string
		switch c.Type {
		case storage.TypeText:
			sqlType = "text"
		case storage.TypeBigint:
			sqlType = "bigint"
		case storage.TypeJSONB:
			sqlType = "jsonb"
		default:
			return "", nil, fmt.Errorf("postgres: unsupported column type %q for %s", c.Type, c.Name)
		}
		selects[i] = fmt.Sprintf("unnest($%d::%s[])", i+1, sqlType)
		args[i] = c.Values
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s%s`,
		table, strings.Join(names, ", "), strings.Join(selects, ", "), suffix)
	return stmt, args, nil
}
