// Package audit exports audit history to a blob store as JSONL archives, one
// line per audit entry, under audit/<kind>/<timestamp>.jsonl.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"bankcore/internal/blob"
	"bankcore/internal/core"
	"bankcore/pkg/domain"
)

// Archiver snapshots audit trails out of the store into an archive object.
type Archiver struct {
	store *core.Store
	blobs blob.Store
	now   func() time.Time
}

// NewArchiver wires the persistence store to an archive blob store.
func NewArchiver(store *core.Store, blobs blob.Store) *Archiver {
	return &Archiver{store: store, blobs: blobs, now: time.Now}
}

type archiveLine struct {
	Kind       string          `json:"kind"`
	ID         string          `json:"id"`
	Version    int64           `json:"version"`
	Hash       int64           `json:"hash"`
	Snapshot   json.RawMessage `json:"snapshot"`
	AuditLogID string          `json:"audit_log_id"`
}

// Archive exports the full audit history of the given ids of one kind into a
// single timestamped JSONL object and returns its blob info. Entries are
// ordered by id then version so re-archiving identical history yields
// identical content.
func (a *Archiver) Archive(ctx context.Context, kind domain.EntityType, ids []string) (blob.Info, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range sorted {
		entries, err := a.store.AuditHistory(ctx, kind, id)
		if err != nil {
			return blob.Info{}, err
		}
		for _, e := range entries {
			line := archiveLine{
				Kind:       string(kind),
				ID:         e.ID,
				Version:    e.Version,
				Hash:       e.Hash,
				Snapshot:   json.RawMessage(e.Snapshot),
				AuditLogID: e.AuditLogID,
			}
			if err := enc.Encode(line); err != nil {
				return blob.Info{}, fmt.Errorf("encode audit line %s v%d: %w", e.ID, e.Version, err)
			}
		}
	}

	key := fmt.Sprintf("audit/%s/%s.jsonl", kind, a.now().UTC().Format("20060102T150405Z"))
	return a.blobs.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"kind": string(kind), "entities": fmt.Sprintf("%d", len(sorted))},
	})
}

// ArchiveLive exports the audit history of every entity currently live in the
// shared cache of a kind. Entities deleted before the archive run are not
// included; archive before deleting when the full trail matters.
func (a *Archiver) ArchiveLive(ctx context.Context, kind domain.EntityType) (blob.Info, error) {
	return a.Archive(ctx, kind, a.store.CacheIDs(kind))
}
