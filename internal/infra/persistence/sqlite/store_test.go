package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"bankcore/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entityCols(ids, payloads []string) []storage.Column {
	return []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: ids},
		{Name: "payload", Type: storage.TypeJSONB, Values: payloads},
	}
}

func indexCols(ids []string, versions, hashes []int64) []storage.Column {
	uniques := make([]string, len(ids))
	refs := make([]string, len(ids))
	for i := range ids {
		uniques[i] = `{"iso2":"` + ids[i] + `"}`
		refs[i] = "{}"
	}
	return []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: ids},
		{Name: "version", Type: storage.TypeBigint, Values: versions},
		{Name: "hash", Type: storage.TypeBigint, Values: hashes},
		{Name: "unique_keys", Type: storage.TypeJSONB, Values: uniques},
		{Name: "refs", Type: storage.TypeJSONB, Values: refs},
	}
}

func TestMultiRowInsertAndLoadIndex(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.InsertRows(ctx, "country_index", indexCols([]string{"nl", "be"}, []int64{0, 0}, []int64{10, 20})); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rows, err := store.LoadIndex(ctx, "country_index")
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	byID := map[string]storage.IndexRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	if byID["nl"].Hash != 10 || byID["nl"].UniqueKeys != `{"iso2":"nl"}` {
		t.Fatalf("unexpected nl row: %+v", byID["nl"])
	}
}

func TestUpsertAdvancesExistingRows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx, _ := store.Begin(ctx)
	if err := tx.InsertRows(ctx, "country_index", indexCols([]string{"nl"}, []int64{0}, []int64{10})); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.UpsertRows(ctx, "country_index", "id", indexCols([]string{"nl", "be"}, []int64{1, 0}, []int64{11, 20})); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rows, err := store.LoadIndex(ctx, "country_index")
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	byID := map[string]int64{}
	for _, r := range rows {
		byID[r.ID] = r.Version
	}
	if len(byID) != 2 || byID["nl"] != 1 || byID["be"] != 0 {
		t.Fatalf("unexpected versions: %v", byID)
	}
}

func TestRollbackDiscardsTransaction(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx, _ := store.Begin(ctx)
	if err := tx.InsertRows(ctx, "country", entityCols([]string{"nl"}, []string{`{"iso2":"NL"}`})); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	tx2, _ := store.Begin(ctx)
	defer func() { _ = tx2.Rollback(ctx) }()
	if _, found, err := tx2.GetPayload(ctx, "country", "id", "payload", "nl"); err != nil || found {
		t.Fatalf("rolled-back row visible: found=%v err=%v", found, err)
	}
}

func TestPayloadReadsAndDeletes(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx, _ := store.Begin(ctx)
	if err := tx.InsertRows(ctx, "country", entityCols([]string{"nl", "be", "de"}, []string{`{"v":1}`, `{"v":2}`, `{"v":3}`})); err != nil {
		t.Fatalf("insert: %v", err)
	}

	payload, found, err := tx.GetPayload(ctx, "country", "id", "payload", "be")
	if err != nil || !found || payload != `{"v":2}` {
		t.Fatalf("expected own write visible, got %q found=%v err=%v", payload, found, err)
	}
	if err := tx.DeleteRows(ctx, "country", "id", []string{"nl", "de"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	payloads, err := tx.GetPayloads(ctx, "country", "id", "payload", []string{"nl", "be", "de"})
	if err != nil {
		t.Fatalf("get payloads: %v", err)
	}
	if len(payloads) != 1 || payloads["be"] != `{"v":2}` {
		t.Fatalf("expected only be, got %v", payloads)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAuditHistoryOrderedByVersion(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx, _ := store.Begin(ctx)
	cols := []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: []string{"nl", "nl", "be"}},
		{Name: "version", Type: storage.TypeBigint, Values: []int64{1, 0, 0}},
		{Name: "hash", Type: storage.TypeBigint, Values: []int64{11, 10, 20}},
		{Name: "snapshot", Type: storage.TypeJSONB, Values: []string{`{"v":1}`, `{"v":0}`, `{}`}},
		{Name: "audit_log_id", Type: storage.TypeText, Values: []string{"l2", "l1", "l1"}},
	}
	if err := tx.InsertRows(ctx, "country_audit", cols); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rows, err := store.AuditHistory(ctx, "country_audit", "nl")
	if err != nil {
		t.Fatalf("audit history: %v", err)
	}
	if len(rows) != 2 || rows[0].Version != 0 || rows[1].Version != 1 {
		t.Fatalf("expected versions [0 1], got %+v", rows)
	}
}

func TestSchemaAppliedOnOpen(t *testing.T) {
	store := openTestStore(t)
	var count int
	err := store.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE '%_audit'`).Scan(&count)
	if err != nil {
		t.Fatalf("query master: %v", err)
	}
	if count != 6 {
		t.Fatalf("expected 6 audit tables, got %d", count)
	}
}

func TestMaxVersionsPerKey(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	cols := []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: []string{"nl", "nl", "be"}},
		{Name: "version", Type: storage.TypeBigint, Values: []int64{0, 1, 3}},
		{Name: "hash", Type: storage.TypeBigint, Values: []int64{10, 11, 20}},
		{Name: "snapshot", Type: storage.TypeJSONB, Values: []string{`{}`, `{}`, `{}`}},
		{Name: "audit_log_id", Type: storage.TypeText, Values: []string{"l1", "l2", "l1"}},
	}
	if err := tx.InsertRows(ctx, "country_audit", cols); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := tx.MaxVersions(ctx, "country_audit", "id", "version", []string{"nl", "be", "ghost"})
	if err != nil {
		t.Fatalf("max versions: %v", err)
	}
	if len(got) != 2 || got["nl"] != 1 || got["be"] != 3 {
		t.Fatalf("expected nl=1 be=3, got %v", got)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}
