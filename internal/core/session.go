package core

import (
	"context"
	"errors"
	"time"

	"bankcore/internal/index"
	"bankcore/internal/storage"
	"bankcore/pkg/domain"
)

// ErrSessionDone is returned when a finished session is committed or rolled
// back again.
var ErrSessionDone = errors.New("session already finished")

// Session is one unit of work: a backend transaction plus a transaction
// overlay per entity kind touched. Writes issued through the session are
// visible to its own subsequent reads and invisible to every other session
// until Commit.
//
// A Session is not safe for concurrent use; each goroutine opens its own.
type Session struct {
	store    *Store
	tx       storage.Tx
	overlays map[domain.EntityType]*index.Overlay
	done     bool
}

// Commit commits the backend transaction, then merges every live overlay into
// its shared cache. The database commit runs first so durable state can never
// lag the in-memory caches; the merge itself cannot fail.
func (s *Session) Commit(ctx context.Context) error {
	if s.done {
		return ErrSessionDone
	}
	if err := s.tx.Commit(ctx); err != nil {
		return domain.StoreError{Op: "commit", Err: err}
	}
	for _, ov := range s.overlays {
		ov.Commit()
	}
	s.done = true
	return nil
}

// Rollback discards the backend transaction and every overlay's staged state.
// Rolling back a finished session is a no-op safety net, not the primary
// trigger; callers are expected to resolve every session explicitly.
func (s *Session) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	for _, ov := range s.overlays {
		ov.Rollback()
	}
	if err := s.tx.Rollback(ctx); err != nil {
		return domain.StoreError{Op: "rollback", Err: err}
	}
	return nil
}

func (s *Session) overlayFor(kind domain.EntityType) *index.Overlay {
	ov, ok := s.overlays[kind]
	if !ok {
		ov = index.NewOverlay(s.store.cacheFor(kind))
		s.overlays[kind] = ov
	}
	return ov
}

func (s *Session) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.store.metrics == nil {
		return
	}
	s.store.metrics.Observe(ctx, op, err == nil, time.Since(start))
}
