package domain

import "time"

// SaveOutcome distinguishes the three results of a save so callers never have
// to compare timestamps or versions to learn what happened.
type SaveOutcome string

const (
	// SaveCreated indicates the entity did not exist and was inserted at version 0.
	SaveCreated SaveOutcome = "created"
	// SaveUpdated indicates the content hash changed and the version advanced.
	SaveUpdated SaveOutcome = "updated"
	// SaveUnchanged indicates the content hash matched the cached record; no
	// rows were written and no audit entry was produced.
	SaveUnchanged SaveOutcome = "unchanged"
)

// BatchReport summarizes a chunked batch run. Failed chunks are reported here
// rather than aborting the remaining chunks.
type BatchReport struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Failures  []error
}

// AuditEntry is one immutable row of an entity's audit history: the full field
// snapshot at a version, the content hash at that version, and the external
// audit-log id supplied by the caller.
type AuditEntry struct {
	ID         string `json:"id"`
	Version    int64  `json:"version"`
	Hash       int64  `json:"hash"`
	Snapshot   string `json:"snapshot"`
	AuditLogID string `json:"audit_log_id"`
}
