package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("open fs store: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", store.Driver())
	}

	info, err := store.Put(ctx, "audit/country/a.jsonl", strings.NewReader("line\n"), PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"kind": "country"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info: %+v", info)
	}

	if _, err := store.Put(ctx, "audit/country/a.jsonl", strings.NewReader("x"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, "audit/country/a.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "line\n" || got.ContentType != "application/x-ndjson" || got.Metadata["kind"] != "country" {
		t.Fatalf("unexpected content %q info %+v", body, got)
	}
}

func TestFSStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("open fs store: %v", err)
	}
	for _, key := range []string{"audit/country/a.jsonl", "audit/person/b.jsonl"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "audit/country/")
	if err != nil || len(infos) != 1 || infos[0].Key != "audit/country/a.jsonl" {
		t.Fatalf("unexpected listing: %+v err=%v", infos, err)
	}

	existed, err := store.Delete(ctx, "audit/country/a.jsonl")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if existed, _ := store.Delete(ctx, "audit/country/a.jsonl"); existed {
		t.Fatal("expected second delete to report absence")
	}
	if _, _, err := store.Get(ctx, "audit/country/a.jsonl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStoreRejectsTraversalKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("open fs store: %v", err)
	}
	for _, key := range []string{"", "/abs/path", "../escape", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	t.Setenv("BANKCORE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}

	t.Setenv("BANKCORE_BLOB_DRIVER", "s3")
	t.Setenv("BANKCORE_BLOB_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected missing bucket to fail")
	}

	t.Setenv("BANKCORE_BLOB_DRIVER", "carrier-pigeon")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
}
