package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"bankcore/pkg/domain"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatal("expected a generated export name")
	}
	ctx := context.Background()
	rec.Observe(ctx, "country.save", true, 2*time.Millisecond)
	rec.Observe(ctx, "country.save", true, 3*time.Millisecond)
	rec.Observe(ctx, "country.save", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	snap := rec.Snapshot()
	if snap.Results["country.save"]["success"] != 2 {
		t.Fatalf("expected 2 successes, got %d", snap.Results["country.save"]["success"])
	}
	if snap.Results["country.save"]["error"] != 1 {
		t.Fatalf("expected 1 error, got %d", snap.Results["country.save"]["error"])
	}
	if snap.DurationsMS["country.save"] < 5 {
		t.Fatalf("expected at least 5ms recorded, got %f", snap.DurationsMS["country.save"])
	}
	if _, ok := snap.Results[""]; ok {
		t.Fatal("empty operation must be ignored")
	}
}

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "person.save", true, 4*time.Millisecond)
	rec.Observe(ctx, "person.save", false, time.Millisecond)

	if got := promtest.ToFloat64(rec.results.WithLabelValues("person.save", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %f", got)
	}
	if got := promtest.ToFloat64(rec.results.WithLabelValues("person.save", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %f", got)
	}
	if got := promtest.ToFloat64(rec.durations.WithLabelValues("person.save")); got < 5 {
		t.Fatalf("expected at least 5ms recorded, got %f", got)
	}

	// Registering the collectors twice must surface the registry error.
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestStoreObservesRepositoryOperations(t *testing.T) {
	ctx := context.Background()
	rec := NewExpvarMetricsRecorder("")
	store := openTestStore(t, WithMetrics(rec))
	sess := beginSession(t, store)
	if _, _, err := sess.Countries().Save(ctx, domain.Country{ID: "nl", ISO2: "NL", NameL1: "Netherlands"}, "log-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sess.Countries().Delete(ctx, "ghost", "log-1"); err == nil {
		t.Fatal("expected delete of missing id to fail")
	}
	commitSession(t, sess)

	snap := rec.Snapshot()
	if snap.Results["country.save"]["success"] != 1 {
		t.Fatalf("expected save observation, got %+v", snap.Results)
	}
	if snap.Results["country.delete"]["error"] != 1 {
		t.Fatalf("expected delete error observation, got %+v", snap.Results)
	}
}
