package schema

import (
	"strings"
	"testing"
)

func TestTableNames(t *testing.T) {
	if EntityTable("country") != "country" {
		t.Fatalf("unexpected entity table: %s", EntityTable("country"))
	}
	if IndexTable("country") != "country_index" {
		t.Fatalf("unexpected index table: %s", IndexTable("country"))
	}
	if AuditTable("country") != "country_audit" {
		t.Fatalf("unexpected audit table: %s", AuditTable("country"))
	}
}

func TestBundlesCoverEveryKind(t *testing.T) {
	for _, ddl := range []string{Postgres(), SQLite()} {
		for _, kind := range Kinds {
			for _, table := range []string{EntityTable(kind), IndexTable(kind), AuditTable(kind)} {
				if !strings.Contains(ddl, "CREATE TABLE IF NOT EXISTS "+table+" (") {
					t.Fatalf("missing table %s in bundle", table)
				}
			}
		}
	}
}

func TestSplitStatements(t *testing.T) {
	ddl := "-- comment\nCREATE TABLE a (\n\tid TEXT\n);\n\nCREATE TABLE b (id TEXT);\n"
	stmts := SplitStatements(ddl)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
	if !strings.HasPrefix(stmts[0], "CREATE TABLE a") || !strings.HasPrefix(stmts[1], "CREATE TABLE b") {
		t.Fatalf("unexpected statements: %v", stmts)
	}
	if got := len(SplitStatements(Postgres())); got != 3*len(Kinds) {
		t.Fatalf("expected %d statements, got %d", 3*len(Kinds), got)
	}
}
