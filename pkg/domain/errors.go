package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NotFoundError reports one or more primary keys that do not exist. IDs always
// carries the complete offending set, never just the first failure.
type NotFoundError struct {
	Entity EntityType
	IDs    []string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, joinIDs(e.IDs))
}

// AlreadyExistsError reports primary keys already present on insert.
type AlreadyExistsError struct {
	Entity EntityType
	IDs    []string
}

func (e AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, joinIDs(e.IDs))
}

// ParentNotFoundError reports a required foreign reference that does not exist
// at write time. Entity names the referenced kind, not the referencing one.
type ParentNotFoundError struct {
	Entity EntityType
	ID     string
}

func (e ParentNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DuplicateKeyError reports a unique secondary key (ISO2 code, code hash,
// external-identifier hash) that would map to two distinct primary keys.
type DuplicateKeyError struct {
	Entity EntityType
	Index  string
	Values []string
}

func (e DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s duplicate %s: %s", e.Entity, e.Index, joinIDs(e.Values))
}

// CascadeBlockedError reports a delete refused because live dependents still
// reference the listed primary keys.
type CascadeBlockedError struct {
	Entity EntityType
	IDs    []string
}

func (e CascadeBlockedError) Error() string {
	return fmt.Sprintf("%s still referenced by dependents: %s", e.Entity, joinIDs(e.IDs))
}

// StoreError wraps an otherwise unclassified backing-store failure. The
// enclosing unit of work must be rolled back; the core never retries.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func joinIDs(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
