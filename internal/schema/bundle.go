// Package schema exposes the DDL for the entity, index, and audit tables of
// every entity kind, in both supported dialects, plus statement splitting for
// drivers that execute one statement at a time.
package schema

import (
	"bufio"
	"fmt"
	"strings"
)

// Kinds lists the table-name stems in creation order.
var Kinds = []string{
	"country",
	"country_subdivision",
	"locality",
	"location",
	"person",
	"entity_reference",
}

// EntityTable returns the full-row table name for a kind.
func EntityTable(kind string) string { return kind }

// IndexTable returns the index-projection table name for a kind.
func IndexTable(kind string) string { return kind + "_index" }

// AuditTable returns the append-only audit table name for a kind.
func AuditTable(kind string) string { return kind + "_audit" }

// Postgres returns the Postgres DDL for all kinds.
func Postgres() string {
	var b strings.Builder
	for _, kind := range Kinds {
		fmt.Fprintf(&b, `CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	payload JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	version BIGINT NOT NULL,
	hash BIGINT NOT NULL,
	unique_keys JSONB NOT NULL,
	refs JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	version BIGINT NOT NULL,
	hash BIGINT NOT NULL,
	snapshot JSONB NOT NULL,
	audit_log_id TEXT NOT NULL,
	PRIMARY KEY (id, version)
);
`, EntityTable(kind), IndexTable(kind), AuditTable(kind))
	}
	return b.String()
}

// SQLite returns the SQLite DDL for all kinds. JSON columns degrade to TEXT.
func SQLite() string {
	var b strings.Builder
	for _, kind := range Kinds {
		fmt.Fprintf(&b, `CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	hash INTEGER NOT NULL,
	unique_keys TEXT NOT NULL,
	refs TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	version INTEGER NOT NULL,
	hash INTEGER NOT NULL,
	snapshot TEXT NOT NULL,
	audit_log_id TEXT NOT NULL,
	PRIMARY KEY (id, version)
);
`, EntityTable(kind), IndexTable(kind), AuditTable(kind))
	}
	return b.String()
}

// SplitStatements splits a semicolon-terminated DDL script into executable
// statements, dropping blank lines and "--" comments.
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return stmts
}
