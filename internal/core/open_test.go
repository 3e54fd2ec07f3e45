package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bankcore/internal/infra/persistence/memory"
	"bankcore/internal/infra/persistence/sqlite"
)

func withEnv(key, value string, fn func()) {
	orig, had := os.LookupEnv(key)
	_ = os.Setenv(key, value)
	defer func() {
		if had {
			_ = os.Setenv(key, orig)
		} else {
			_ = os.Unsetenv(key)
		}
	}()
	fn()
}

func TestOpenBackendMemory(t *testing.T) {
	withEnv("BANKCORE_STORAGE_DRIVER", "memory", func() {
		backend, err := OpenBackend(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := backend.(*memory.Store); !ok {
			t.Fatalf("expected *memory.Store, got %T", backend)
		}
	})
}

func TestOpenBackendDefaultSQLite(t *testing.T) {
	withEnv("BANKCORE_STORAGE_DRIVER", "", func() {
		path := filepath.Join(t.TempDir(), "default.db")
		withEnv("BANKCORE_SQLITE_PATH", path, func() {
			backend, err := OpenBackend(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer func() { _ = backend.Close() }()
			store, ok := backend.(*sqlite.Store)
			if !ok {
				t.Fatalf("expected *sqlite.Store, got %T", backend)
			}
			if store.Path() != path {
				t.Fatalf("expected %s, got %s", path, store.Path())
			}
		})
	})
}

func TestOpenBackendUnknownDriver(t *testing.T) {
	withEnv("BANKCORE_STORAGE_DRIVER", "oracle", func() {
		if _, err := OpenBackend(context.Background()); err == nil {
			t.Fatal("expected error for unknown driver")
		}
	})
}

func TestOpenBackendPostgresRequiresDSN(t *testing.T) {
	withEnv("BANKCORE_STORAGE_DRIVER", "postgres", func() {
		withEnv("BANKCORE_POSTGRES_DSN", "", func() {
			if _, err := OpenBackend(context.Background()); err == nil {
				t.Fatal("expected error for empty dsn")
			}
		})
	})
}

func TestOpenFromEnvLoadsCaches(t *testing.T) {
	withEnv("BANKCORE_STORAGE_DRIVER", "sqlite", func() {
		path := filepath.Join(t.TempDir(), "caches.db")
		withEnv("BANKCORE_SQLITE_PATH", path, func() {
			store, err := OpenFromEnv(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
		})
	})
}
