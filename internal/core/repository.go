package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bankcore/internal/index"
	"bankcore/internal/storage"
	"bankcore/pkg/domain"
)

// Repository is the only component that turns a domain write into entity +
// index + audit rows and the only mutator of a session's overlays. One
// Repository value binds a descriptor to a session; it is as cheap to create
// as it is to copy.
type Repository[E any] struct {
	desc *Descriptor[E]
	sess *Session
}

func newRepository[E any](s *Session, d *Descriptor[E]) Repository[E] {
	return Repository[E]{desc: d, sess: s}
}

func (r Repository[E]) overlay() *index.Overlay {
	return r.sess.overlayFor(r.desc.Kind)
}

// Save inserts or updates one entity. The content hash decides which: an
// unchanged hash is an idempotent re-save that writes no rows and produces no
// audit entry. The hash is a change detector, not a conflict detector: two
// sessions updating to the same new value both succeed, and a lost update is
// never surfaced as an error.
func (r Repository[E]) Save(ctx context.Context, e E, auditLogID string) (E, domain.SaveOutcome, error) {
	start := time.Now()
	saved, outcome, err := r.save(ctx, e, auditLogID)
	r.sess.observe(ctx, string(r.desc.Kind)+".save", start, err)
	return saved, outcome, err
}

func (r Repository[E]) save(ctx context.Context, e E, auditLogID string) (E, domain.SaveOutcome, error) {
	id := r.desc.Key(e)
	if id == "" {
		id = uuid.NewString()
		e = r.desc.WithKey(e, id)
	}
	if err := r.validateParents(e); err != nil {
		return e, "", err
	}

	rec := r.desc.Project(e)
	h, err := index.Sum(e)
	if err != nil {
		return e, "", err
	}
	rec.Hash = h

	ov := r.overlay()
	prev, exists := ov.Get(id)
	if exists && prev.Hash == rec.Hash {
		return e, domain.SaveUnchanged, nil
	}
	if exists {
		rec.Version = prev.Version + 1
	} else {
		// An id re-created after an audited delete resumes its version
		// sequence; version numbers are never reused per primary key.
		prior, err := r.sess.tx.MaxVersions(ctx, r.desc.Audit, "id", "version", []string{id})
		if err != nil {
			return e, "", domain.StoreError{Op: "load versions " + string(r.desc.Kind), Err: err}
		}
		if last, ok := prior[id]; ok {
			rec.Version = last + 1
		}
	}

	for name, value := range rec.Unique {
		if holder, ok := ov.LookupUnique(name, value); ok && holder != id {
			return e, "", domain.DuplicateKeyError{Entity: r.desc.Kind, Index: name, Values: []string{value}}
		}
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return e, "", fmt.Errorf("encode %s %s: %w", r.desc.Kind, id, err)
	}
	if err := r.writeRows(ctx, []Record{rec}, []string{string(payload)}, auditLogID, exists); err != nil {
		return e, "", err
	}

	if exists {
		ov.Remove(id)
	}
	ov.Add(rec)
	if exists {
		return e, domain.SaveUpdated, nil
	}
	return e, domain.SaveCreated, nil
}

// Delete removes one entity, refusing when live dependents still reference
// it. The pre-delete state is audited at version last+1 before the rows go.
func (r Repository[E]) Delete(ctx context.Context, id, auditLogID string) error {
	start := time.Now()
	err := r.delete(ctx, id, auditLogID)
	r.sess.observe(ctx, string(r.desc.Kind)+".delete", start, err)
	return err
}

func (r Repository[E]) delete(ctx context.Context, id, auditLogID string) error {
	ov := r.overlay()
	prev, ok := ov.Get(id)
	if !ok {
		return domain.NotFoundError{Entity: r.desc.Kind, IDs: []string{id}}
	}
	if blocked := r.dependentsOf([]string{id}); len(blocked) > 0 {
		return domain.CascadeBlockedError{Entity: r.desc.Kind, IDs: blocked}
	}

	snapshot, found, err := r.sess.tx.GetPayload(ctx, r.desc.Entity, "id", "payload", id)
	if err != nil {
		return domain.StoreError{Op: "load " + string(r.desc.Kind), Err: err}
	}
	if !found {
		return domain.NotFoundError{Entity: r.desc.Kind, IDs: []string{id}}
	}

	audit := auditColumns([]Record{{ID: id, Version: prev.Version + 1, Hash: prev.Hash}}, []string{snapshot}, auditLogID)
	if err := r.sess.tx.InsertRows(ctx, r.desc.Audit, audit); err != nil {
		return domain.StoreError{Op: "append audit " + string(r.desc.Kind), Err: err}
	}
	if err := r.sess.tx.DeleteRows(ctx, r.desc.Index, "id", []string{id}); err != nil {
		return domain.StoreError{Op: "delete index " + string(r.desc.Kind), Err: err}
	}
	if err := r.sess.tx.DeleteRows(ctx, r.desc.Entity, "id", []string{id}); err != nil {
		return domain.StoreError{Op: "delete " + string(r.desc.Kind), Err: err}
	}

	ov.Remove(id)
	return nil
}

// Load fetches the full entity row. The overlay only carries index records,
// so this is the one read that goes to the backing store. It reads through
// the session's transaction, so own writes are visible.
func (r Repository[E]) Load(ctx context.Context, id string) (E, error) {
	var e E
	payload, found, err := r.sess.tx.GetPayload(ctx, r.desc.Entity, "id", "payload", id)
	if err != nil {
		return e, domain.StoreError{Op: "load " + string(r.desc.Kind), Err: err}
	}
	if !found {
		return e, domain.NotFoundError{Entity: r.desc.Kind, IDs: []string{id}}
	}
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return e, fmt.Errorf("decode %s %s: %w", r.desc.Kind, id, err)
	}
	return e, nil
}

// LoadBatch fetches many entity rows in one statement. Any missing id fails
// the whole read with the complete missing set.
func (r Repository[E]) LoadBatch(ctx context.Context, ids []string) ([]E, error) {
	payloads, err := r.sess.tx.GetPayloads(ctx, r.desc.Entity, "id", "payload", ids)
	if err != nil {
		return nil, domain.StoreError{Op: "load batch " + string(r.desc.Kind), Err: err}
	}
	var missing []string
	out := make([]E, 0, len(ids))
	for _, id := range ids {
		payload, ok := payloads[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		var e E
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", r.desc.Kind, id, err)
		}
		out = append(out, e)
	}
	if len(missing) > 0 {
		return nil, domain.NotFoundError{Entity: r.desc.Kind, IDs: missing}
	}
	return out, nil
}

// FindByID returns the cached index record visible to this unit of work.
func (r Repository[E]) FindByID(id string) (Record, bool) {
	return r.overlay().Get(id)
}

// FindByIDs returns the visible index records for the given ids, skipping
// absentees.
func (r Repository[E]) FindByIDs(ids []string) []Record {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.overlay().Get(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// ExistsByID reports visibility of one primary key.
func (r Repository[E]) ExistsByID(id string) bool {
	return r.overlay().Contains(id)
}

// ExistByIDs returns the ids that are not visible; empty means all exist.
func (r Repository[E]) ExistByIDs(ids []string) []string {
	var missing []string
	for _, id := range ids {
		if !r.overlay().Contains(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// LookupUnique resolves a unique secondary key in the merged view. Typed
// repositories wrap this with entity-specific finders.
func (r Repository[E]) LookupUnique(indexName, value string) (string, bool) {
	return r.overlay().LookupUnique(indexName, value)
}

// ListRefs lists the visible primary keys referencing parent through a
// one-to-many index.
func (r Repository[E]) ListRefs(indexName, parent string) []string {
	return r.overlay().ListRefs(indexName, parent)
}

func (r Repository[E]) validateParents(e E) error {
	for _, p := range r.desc.Parents {
		pid, set := p.Key(e)
		if !set {
			continue
		}
		if !r.sess.overlayFor(p.Kind).Contains(pid) {
			return domain.ParentNotFoundError{Entity: p.Kind, ID: pid}
		}
	}
	return nil
}

// dependentsOf returns the subset of ids that still have live dependents.
func (r Repository[E]) dependentsOf(ids []string) []string {
	var blocked []string
	for _, id := range ids {
		for _, d := range r.desc.Dependents {
			if len(r.sess.overlayFor(d.Kind).ListRefs(d.Index, id)) > 0 {
				blocked = append(blocked, id)
				break
			}
		}
	}
	return blocked
}

// writeRows writes audit, entity, and index rows for a set of accepted
// records, in that order, each as one multi-row statement. upsert selects
// insert-or-update for the entity and index tables (updates) versus plain
// inserts (creates).
func (r Repository[E]) writeRows(ctx context.Context, recs []Record, payloads []string, auditLogID string, upsert bool) error {
	if err := r.sess.tx.InsertRows(ctx, r.desc.Audit, auditColumns(recs, payloads, auditLogID)); err != nil {
		return domain.StoreError{Op: "append audit " + string(r.desc.Kind), Err: err}
	}
	entityCols := entityColumns(recs, payloads)
	indexCols, err := indexColumns(recs)
	if err != nil {
		return err
	}
	if upsert {
		if err := r.sess.tx.UpsertRows(ctx, r.desc.Entity, "id", entityCols); err != nil {
			return domain.StoreError{Op: "write " + string(r.desc.Kind), Err: err}
		}
		if err := r.sess.tx.UpsertRows(ctx, r.desc.Index, "id", indexCols); err != nil {
			return domain.StoreError{Op: "write index " + string(r.desc.Kind), Err: err}
		}
		return nil
	}
	if err := r.sess.tx.InsertRows(ctx, r.desc.Entity, entityCols); err != nil {
		return domain.StoreError{Op: "write " + string(r.desc.Kind), Err: err}
	}
	if err := r.sess.tx.InsertRows(ctx, r.desc.Index, indexCols); err != nil {
		return domain.StoreError{Op: "write index " + string(r.desc.Kind), Err: err}
	}
	return nil
}

func entityColumns(recs []Record, payloads []string) []storage.Column {
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	return []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: ids},
		{Name: "payload", Type: storage.TypeJSONB, Values: payloads},
	}
}

func indexColumns(recs []Record) ([]storage.Column, error) {
	ids := make([]string, len(recs))
	versions := make([]int64, len(recs))
	hashes := make([]int64, len(recs))
	uniques := make([]string, len(recs))
	refs := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		versions[i] = rec.Version
		hashes[i] = rec.Hash
		u, err := json.Marshal(orEmpty(rec.Unique))
		if err != nil {
			return nil, fmt.Errorf("encode unique keys for %s: %w", rec.ID, err)
		}
		f, err := json.Marshal(orEmpty(rec.Refs))
		if err != nil {
			return nil, fmt.Errorf("encode refs for %s: %w", rec.ID, err)
		}
		uniques[i] = string(u)
		refs[i] = string(f)
	}
	return []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: ids},
		{Name: "version", Type: storage.TypeBigint, Values: versions},
		{Name: "hash", Type: storage.TypeBigint, Values: hashes},
		{Name: "unique_keys", Type: storage.TypeJSONB, Values: uniques},
		{Name: "refs", Type: storage.TypeJSONB, Values: refs},
	}, nil
}

func auditColumns(recs []Record, snapshots []string, auditLogID string) []storage.Column {
	ids := make([]string, len(recs))
	versions := make([]int64, len(recs))
	hashes := make([]int64, len(recs))
	logIDs := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		versions[i] = rec.Version
		hashes[i] = rec.Hash
		logIDs[i] = auditLogID
	}
	return []storage.Column{
		{Name: "id", Type: storage.TypeText, Values: ids},
		{Name: "version", Type: storage.TypeBigint, Values: versions},
		{Name: "hash", Type: storage.TypeBigint, Values: hashes},
		{Name: "snapshot", Type: storage.TypeJSONB, Values: snapshots},
		{Name: "audit_log_id", Type: storage.TypeText, Values: logIDs},
	}
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
