package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}

	info, err := store.Put(ctx, "audit/country/a.jsonl", strings.NewReader("line\n"), PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"kind": "country"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || info.ContentType != "application/x-ndjson" {
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
	if string(body) != "line\n" || got.Metadata["kind"] != "country" {
		t.Fatalf("unexpected content %q info %+v", body, got)
	}

	existed, err := store.Delete(ctx, "audit/country/a.jsonl")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	if _, _, err := store.Get(ctx, "audit/country/a.jsonl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if existed, _ := store.Delete(ctx, "audit/country/a.jsonl"); existed {
		t.Fatal("expected second delete to report absence")
	}
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, key := range []string{"audit/country/b.jsonl", "audit/country/a.jsonl", "audit/person/c.jsonl"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "audit/country/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "audit/country/a.jsonl" || infos[1].Key != "audit/country/b.jsonl" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 objects, got %d err=%v", len(all), err)
	}
}
