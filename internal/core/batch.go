package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"bankcore/internal/index"
	"bankcore/pkg/domain"
)

// CreateBatch inserts a collection all-or-nothing. Pre-flight validation
// covers primary-key existence, parent existence, and unique secondary keys
// (including collisions inside the batch itself); any failure rejects the
// whole batch with the complete offending id list before a single row is
// written.
func (r Repository[E]) CreateBatch(ctx context.Context, items []E, auditLogID string) ([]E, error) {
	start := time.Now()
	created, err := r.createBatch(ctx, items, auditLogID)
	r.sess.observe(ctx, string(r.desc.Kind)+".create_batch", start, err)
	return created, err
}

func (r Repository[E]) createBatch(ctx context.Context, items []E, auditLogID string) ([]E, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ov := r.overlay()

	out := make([]E, len(items))
	recs := make([]Record, len(items))
	payloads := make([]string, len(items))

	var existing []string
	seenIDs := make(map[string]struct{}, len(items))
	for i, e := range items {
		id := r.desc.Key(e)
		if id == "" {
			id = uuid.NewString()
			e = r.desc.WithKey(e, id)
		}
		if _, dup := seenIDs[id]; dup {
			existing = append(existing, id)
		}
		seenIDs[id] = struct{}{}
		if ov.Contains(id) {
			existing = append(existing, id)
		}
		out[i] = e
	}
	if len(existing) > 0 {
		return nil, domain.AlreadyExistsError{Entity: r.desc.Kind, IDs: dedupe(existing)}
	}

	if err := r.validateParentsBatch(out, seenIDs); err != nil {
		return nil, err
	}

	// Unique secondary keys: against the merged view and within the batch.
	taken := make(map[string]string)
	var duplicates []string
	for i, e := range out {
		rec := r.desc.Project(e)
		h, err := index.Sum(e)
		if err != nil {
			return nil, err
		}
		rec.Hash = h
		for name, value := range rec.Unique {
			composite := name + "\x1f" + value
			if _, clash := taken[composite]; clash {
				duplicates = append(duplicates, value)
			}
			taken[composite] = rec.ID
			if holder, ok := ov.LookupUnique(name, value); ok && holder != rec.ID {
				duplicates = append(duplicates, value)
			}
		}
		recs[i] = rec
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.desc.Kind, rec.ID, err)
		}
		payloads[i] = string(payload)
	}
	if len(duplicates) > 0 {
		return nil, domain.DuplicateKeyError{Entity: r.desc.Kind, Index: "unique", Values: dedupe(duplicates)}
	}

	// Ids re-created after an audited delete resume their version sequence.
	idList := make([]string, len(recs))
	for i, rec := range recs {
		idList[i] = rec.ID
	}
	prior, err := r.sess.tx.MaxVersions(ctx, r.desc.Audit, "id", "version", idList)
	if err != nil {
		return nil, domain.StoreError{Op: "load versions " + string(r.desc.Kind), Err: err}
	}
	for i := range recs {
		if last, ok := prior[recs[i].ID]; ok {
			recs[i].Version = last + 1
		}
	}

	if err := r.writeRows(ctx, recs, payloads, auditLogID, false); err != nil {
		return nil, err
	}
	for _, rec := range recs {
		ov.Add(rec)
	}
	return out, nil
}

// UpdateBatch applies a collection of updates. Every id must already exist;
// otherwise the whole batch is rejected with the complete missing set.
// Items whose content hash is unchanged are skipped; partial success is the
// contract here, unlike create. The returned outcomes align with items.
func (r Repository[E]) UpdateBatch(ctx context.Context, items []E, auditLogID string) ([]domain.SaveOutcome, error) {
	start := time.Now()
	outcomes, err := r.updateBatch(ctx, items, auditLogID)
	r.sess.observe(ctx, string(r.desc.Kind)+".update_batch", start, err)
	return outcomes, err
}

func (r Repository[E]) updateBatch(ctx context.Context, items []E, auditLogID string) ([]domain.SaveOutcome, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ov := r.overlay()

	var missing []string
	ids := make(map[string]struct{}, len(items))
	for _, e := range items {
		id := r.desc.Key(e)
		ids[id] = struct{}{}
		if !ov.Contains(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NotFoundError{Entity: r.desc.Kind, IDs: dedupe(missing)}
	}

	if err := r.validateParentsBatch(items, ids); err != nil {
		return nil, err
	}

	outcomes := make([]domain.SaveOutcome, len(items))
	taken := make(map[string]string)
	var duplicates []string
	var changed []Record
	var payloads []string
	for i, e := range items {
		rec := r.desc.Project(e)
		h, err := index.Sum(e)
		if err != nil {
			return nil, err
		}
		rec.Hash = h
		prev, _ := ov.Get(rec.ID)
		if prev.Hash == rec.Hash {
			outcomes[i] = domain.SaveUnchanged
			continue
		}
		rec.Version = prev.Version + 1
		for name, value := range rec.Unique {
			composite := name + "\x1f" + value
			if holder, clash := taken[composite]; clash && holder != rec.ID {
				duplicates = append(duplicates, value)
			}
			taken[composite] = rec.ID
			if holder, ok := ov.LookupUnique(name, value); ok && holder != rec.ID {
				duplicates = append(duplicates, value)
			}
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", r.desc.Kind, rec.ID, err)
		}
		outcomes[i] = domain.SaveUpdated
		changed = append(changed, rec)
		payloads = append(payloads, string(payload))
	}
	if len(duplicates) > 0 {
		return nil, domain.DuplicateKeyError{Entity: r.desc.Kind, Index: "unique", Values: dedupe(duplicates)}
	}
	if len(changed) == 0 {
		return outcomes, nil
	}

	if err := r.writeRows(ctx, changed, payloads, auditLogID, true); err != nil {
		return nil, err
	}
	for _, rec := range changed {
		ov.Remove(rec.ID)
		ov.Add(rec)
	}
	return outcomes, nil
}

// DeleteBatch removes a collection all-or-nothing. Missing ids and ids with
// live dependents each reject the whole batch with the complete offending
// list. Pre-delete snapshots are audited before the rows are removed.
func (r Repository[E]) DeleteBatch(ctx context.Context, ids []string, auditLogID string) error {
	start := time.Now()
	err := r.deleteBatch(ctx, ids, auditLogID)
	r.sess.observe(ctx, string(r.desc.Kind)+".delete_batch", start, err)
	return err
}

func (r Repository[E]) deleteBatch(ctx context.Context, ids []string, auditLogID string) error {
	if len(ids) == 0 {
		return nil
	}
	ov := r.overlay()

	var missing []string
	recs := make([]Record, 0, len(ids))
	for _, id := range ids {
		prev, ok := ov.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		recs = append(recs, Record{ID: id, Version: prev.Version + 1, Hash: prev.Hash})
	}
	if len(missing) > 0 {
		return domain.NotFoundError{Entity: r.desc.Kind, IDs: dedupe(missing)}
	}
	if blocked := r.dependentsOf(ids); len(blocked) > 0 {
		return domain.CascadeBlockedError{Entity: r.desc.Kind, IDs: blocked}
	}

	payloads, err := r.sess.tx.GetPayloads(ctx, r.desc.Entity, "id", "payload", ids)
	if err != nil {
		return domain.StoreError{Op: "load batch " + string(r.desc.Kind), Err: err}
	}
	snapshots := make([]string, len(recs))
	for i, rec := range recs {
		snapshot, ok := payloads[rec.ID]
		if !ok {
			return domain.NotFoundError{Entity: r.desc.Kind, IDs: []string{rec.ID}}
		}
		snapshots[i] = snapshot
	}

	if err := r.sess.tx.InsertRows(ctx, r.desc.Audit, auditColumns(recs, snapshots, auditLogID)); err != nil {
		return domain.StoreError{Op: "append audit " + string(r.desc.Kind), Err: err}
	}
	if err := r.sess.tx.DeleteRows(ctx, r.desc.Index, "id", ids); err != nil {
		return domain.StoreError{Op: "delete index " + string(r.desc.Kind), Err: err}
	}
	if err := r.sess.tx.DeleteRows(ctx, r.desc.Entity, "id", ids); err != nil {
		return domain.StoreError{Op: "delete " + string(r.desc.Kind), Err: err}
	}

	for _, id := range ids {
		ov.Remove(id)
	}
	return nil
}

// CreateBatchChunked splits items into chunks of chunkSize and runs
// CreateBatch per chunk, accumulating a report instead of failing the whole
// operation on one bad chunk. Validation failures are collected; a backing
// store failure still aborts, since the enclosing transaction is poisoned.
func (r Repository[E]) CreateBatchChunked(ctx context.Context, items []E, auditLogID string, chunkSize int) (domain.BatchReport, error) {
	start := time.Now()
	if chunkSize <= 0 {
		chunkSize = 500
	}
	report := domain.BatchReport{Total: len(items)}
	for lo := 0; lo < len(items); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(items) {
			hi = len(items)
		}
		chunk := items[lo:hi]
		if _, err := r.createBatch(ctx, chunk, auditLogID); err != nil {
			var storeErr domain.StoreError
			if errors.As(err, &storeErr) {
				report.Elapsed = time.Since(start)
				return report, err
			}
			report.Failed += len(chunk)
			report.Failures = append(report.Failures, err)
			continue
		}
		report.Succeeded += len(chunk)
	}
	report.Elapsed = time.Since(start)
	r.sess.observe(ctx, string(r.desc.Kind)+".create_batch_chunked", start, nil)
	return report, nil
}

// validateParentsBatch checks parent existence once for the whole batch.
// Parents satisfied by other members of the same batch are accepted; every
// missing parent is reported, as the same ParentNotFoundError the single-item
// path produces, joined in (kind, id) order.
func (r Repository[E]) validateParentsBatch(items []E, batchIDs map[string]struct{}) error {
	type parentRef struct {
		kind domain.EntityType
		id   string
	}
	missing := make(map[parentRef]struct{})
	for _, e := range items {
		for _, p := range r.desc.Parents {
			pid, set := p.Key(e)
			if !set {
				continue
			}
			if p.Kind == r.desc.Kind {
				if _, inBatch := batchIDs[pid]; inBatch {
					continue
				}
			}
			if r.sess.overlayFor(p.Kind).Contains(pid) {
				continue
			}
			missing[parentRef{kind: p.Kind, id: pid}] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	refs := make([]parentRef, 0, len(missing))
	for ref := range missing {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].kind != refs[j].kind {
			return refs[i].kind < refs[j].kind
		}
		return refs[i].id < refs[j].id
	})
	errs := make([]error, len(refs))
	for i, ref := range refs {
		errs[i] = domain.ParentNotFoundError{Entity: ref.kind, ID: ref.id}
	}
	return errors.Join(errs...)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
