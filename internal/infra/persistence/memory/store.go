// Package memory provides an in-memory implementation of the storage backend
// used for tests and ephemeral environments. A transaction reads from a deep
// copy of the table state taken at begin and records every write as a row
// delta; commit replays the deltas onto the live state under the store mutex,
// so concurrent transactions never discard each other's committed rows, and
// rollback is simply dropping the copy.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"bankcore/internal/storage"
)

// Compile-time contract assertion.
var _ storage.Backend = (*Store)(nil)

type row map[string]any

type state map[string][]row

func (s state) clone() state {
	cloned := make(state, len(s))
	for table, rows := range s {
		out := make([]row, len(rows))
		for i, r := range rows {
			cp := make(row, len(r))
			for k, v := range r {
				cp[k] = v
			}
			out[i] = cp
		}
		cloned[table] = out
	}
	return cloned
}

// Store keeps every table as a slice of column-name → value rows.
type Store struct {
	mu    sync.Mutex
	state state
}

// NewStore constructs an empty in-memory backend.
func NewStore() *Store {
	return &Store{state: make(state)}
}

// Begin snapshots the current state into a private transaction copy.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Tx{store: s, state: s.state.clone()}, nil
}

// LoadIndex reads every row of an index table.
func (s *Store) LoadIndex(ctx context.Context, table string) ([]storage.IndexRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.state[table]
	out := make([]storage.IndexRow, 0, len(rows))
	for _, r := range rows {
		ir, err := indexRowOf(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ir)
	}
	return out, nil
}

// AuditHistory reads an entity's audit rows ordered by version.
func (s *Store) AuditHistory(ctx context.Context, table, id string) ([]storage.AuditRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.AuditRow
	for _, r := range s.state[table] {
		if asString(r["id"]) != id {
			continue
		}
		out = append(out, storage.AuditRow{
			ID:         id,
			Version:    asInt64(r["version"]),
			Hash:       asInt64(r["hash"]),
			Snapshot:   asString(r["snapshot"]),
			AuditLogID: asString(r["audit_log_id"]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

// Tx is one transaction: a private state copy for reads and a delta log for
// commit. Writes apply to the copy immediately (own-write visibility) and are
// replayed onto the live state at commit.
type Tx struct {
	store *Store
	state state
	ops   []op
	done  bool
}

var errTxDone = errors.New("memory: transaction already finished")

type opKind int

const (
	opInsert opKind = iota
	opUpsert
	opDelete
)

// op is one recorded write. rows carries inserted or upserted rows; keys
// carries deleted key values.
type op struct {
	kind   opKind
	table  string
	keyCol string
	rows   []row
	keys   []string
}

func apply(st state, o op) {
	switch o.kind {
	case opInsert:
		st[o.table] = append(st[o.table], o.rows...)
	case opUpsert:
		for _, nr := range o.rows {
			replaced := false
			for i, existing := range st[o.table] {
				if existing[o.keyCol] == nr[o.keyCol] {
					st[o.table][i] = nr
					replaced = true
					break
				}
			}
			if !replaced {
				st[o.table] = append(st[o.table], nr)
			}
		}
	case opDelete:
		drop := make(map[string]struct{}, len(o.keys))
		for _, k := range o.keys {
			drop[k] = struct{}{}
		}
		kept := st[o.table][:0]
		for _, r := range st[o.table] {
			if _, gone := drop[asString(r[o.keyCol])]; gone {
				continue
			}
			kept = append(kept, r)
		}
		st[o.table] = kept
	}
}

// cloned deep-copies the op's rows so replayed rows never alias the
// transaction's private state.
func (o op) cloned() op {
	if o.rows == nil {
		return o
	}
	cp := o
	cp.rows = make([]row, len(o.rows))
	for i, r := range o.rows {
		nr := make(row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		cp.rows[i] = nr
	}
	return cp
}

func (t *Tx) record(o op) {
	apply(t.state, o)
	t.ops = append(t.ops, o)
}

// InsertRows appends the column set as rows.
func (t *Tx) InsertRows(ctx context.Context, table string, cols []storage.Column) error {
	if t.done {
		return errTxDone
	}
	rows, err := explode(cols)
	if err != nil {
		return err
	}
	t.record(op{kind: opInsert, table: table, rows: rows})
	return nil
}

// UpsertRows replaces rows sharing keyCol, appending the rest.
func (t *Tx) UpsertRows(ctx context.Context, table string, keyCol string, cols []storage.Column) error {
	if t.done {
		return errTxDone
	}
	rows, err := explode(cols)
	if err != nil {
		return err
	}
	t.record(op{kind: opUpsert, table: table, keyCol: keyCol, rows: rows})
	return nil
}

// DeleteRows removes every row whose keyCol value is in keys.
func (t *Tx) DeleteRows(ctx context.Context, table string, keyCol string, keys []string) error {
	if t.done {
		return errTxDone
	}
	t.record(op{kind: opDelete, table: table, keyCol: keyCol, keys: append([]string(nil), keys...)})
	return nil
}

// GetPayload fetches one payload value by key.
func (t *Tx) GetPayload(ctx context.Context, table, keyCol, payloadCol, key string) (string, bool, error) {
	if t.done {
		return "", false, errTxDone
	}
	for _, r := range t.state[table] {
		if asString(r[keyCol]) == key {
			return asString(r[payloadCol]), true, nil
		}
	}
	return "", false, nil
}

// GetPayloads fetches payloads for many keys; absentees are omitted.
func (t *Tx) GetPayloads(ctx context.Context, table, keyCol, payloadCol string, keys []string) (map[string]string, error) {
	if t.done {
		return nil, errTxDone
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := make(map[string]string)
	for _, r := range t.state[table] {
		k := asString(r[keyCol])
		if _, ok := want[k]; ok {
			out[k] = asString(r[payloadCol])
		}
	}
	return out, nil
}

// MaxVersions returns the highest versionCol value per key.
func (t *Tx) MaxVersions(ctx context.Context, table, keyCol, versionCol string, keys []string) (map[string]int64, error) {
	if t.done {
		return nil, errTxDone
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := make(map[string]int64)
	for _, r := range t.state[table] {
		k := asString(r[keyCol])
		if _, ok := want[k]; !ok {
			continue
		}
		v := asInt64(r[versionCol])
		if cur, seen := out[k]; !seen || v > cur {
			out[k] = v
		}
	}
	return out, nil
}

// Commit replays the delta log onto the live state under the store mutex.
// Deltas of concurrently committed transactions interleave instead of
// overwriting each other.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.mu.Lock()
	for _, o := range t.ops {
		apply(t.store.state, o.cloned())
	}
	t.store.mu.Unlock()
	t.state = nil
	t.ops = nil
	return nil
}

// Rollback drops the private copy and the delta log.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.state = nil
	t.ops = nil
	return nil
}

func explode(cols []storage.Column) ([]row, error) {
	n := storage.Rows(cols)
	rows := make([]row, n)
	for i := range rows {
		rows[i] = make(row, len(cols))
	}
	for _, c := range cols {
		switch vals := c.Values.(type) {
		case []string:
			if len(vals) != n {
				return nil, fmt.Errorf("memory: ragged column %s", c.Name)
			}
			for i, v := range vals {
				rows[i][c.Name] = v
			}
		case []int64:
			if len(vals) != n {
				return nil, fmt.Errorf("memory: ragged column %s", c.Name)
			}
			for i, v := range vals {
				rows[i][c.Name] = v
			}
		default:
			return nil, fmt.Errorf("memory: unsupported column values %T for %s", c.Values, c.Name)
		}
	}
	return rows, nil
}

func indexRowOf(r row) (storage.IndexRow, error) {
	return storage.IndexRow{
		ID:         asString(r["id"]),
		Version:    asInt64(r["version"]),
		Hash:       asInt64(r["hash"]),
		UniqueKeys: asString(r["unique_keys"]),
		Refs:       asString(r["refs"]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	n, _ := v.(int64)
	return n
}
