package index

import (
	"sort"
	"testing"
)

func rec(id string, unique, refs map[string]string) Record {
	return Record{ID: id, Unique: unique, Refs: refs}
}

func TestNewCacheRejectsDuplicatePrimaryKey(t *testing.T) {
	_, err := NewCache([]Record{rec("a", nil, nil), rec("a", nil, nil)})
	if err == nil {
		t.Fatal("expected duplicate primary key to fail")
	}
}

func TestNewCacheRejectsDuplicateUniqueKey(t *testing.T) {
	_, err := NewCache([]Record{
		rec("a", map[string]string{"iso2": "NL"}, nil),
		rec("b", map[string]string{"iso2": "NL"}, nil),
	})
	if err == nil {
		t.Fatal("expected duplicate unique key to fail")
	}
}

func TestCacheLookups(t *testing.T) {
	c, err := NewCache([]Record{
		rec("nl", map[string]string{"iso2": "NL"}, nil),
		rec("nh", map[string]string{"code": "NH"}, map[string]string{"country": "nl"}),
		rec("zh", map[string]string{"code": "ZH"}, map[string]string{"country": "nl"}),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", c.Len())
	}
	if !c.Contains("nl") || c.Contains("be") {
		t.Fatal("containment answers wrong")
	}
	if id, ok := c.LookupUnique("iso2", "NL"); !ok || id != "nl" {
		t.Fatalf("expected nl, got %q ok=%v", id, ok)
	}
	got := c.ListRefs("country", "nl")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "nh" || got[1] != "zh" {
		t.Fatalf("expected [nh zh], got %v", got)
	}
	ids := c.IDs()
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %v", ids)
	}
}

func TestCacheGetReturnsClone(t *testing.T) {
	c, err := NewCache([]Record{rec("a", map[string]string{"iso2": "NL"}, nil)})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	r, ok := c.Get("a")
	if !ok {
		t.Fatal("expected record")
	}
	r.Unique["iso2"] = "BE"
	if id, ok := c.LookupUnique("iso2", "NL"); !ok || id != "a" {
		t.Fatal("mutating a returned record leaked into the cache")
	}
}

func TestCacheRemoveDropsSecondaryKeys(t *testing.T) {
	c, err := NewCache([]Record{
		rec("nl", map[string]string{"iso2": "NL"}, nil),
		rec("nh", nil, map[string]string{"country": "nl"}),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := c.Remove("nl"); !ok {
		t.Fatal("expected removal")
	}
	if _, ok := c.LookupUnique("iso2", "NL"); ok {
		t.Fatal("unique key survived removal")
	}
	if _, ok := c.Remove("nl"); ok {
		t.Fatal("expected second removal to be a no-op")
	}
	c.Remove("nh")
	if refs := c.ListRefs("country", "nl"); len(refs) != 0 {
		t.Fatalf("ref index survived removal: %v", refs)
	}
}

func TestCacheApplyMergesUpdates(t *testing.T) {
	c, err := NewCache([]Record{
		rec("nl", map[string]string{"iso2": "NL"}, nil),
		rec("be", map[string]string{"iso2": "BE"}, nil),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Update nl's projection, delete be, add de in one merge.
	c.Apply(
		[]Record{
			{ID: "nl", Version: 1, Unique: map[string]string{"iso2": "NX"}},
			rec("de", map[string]string{"iso2": "DE"}, nil),
		},
		[]string{"be"},
	)
	if c.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", c.Len())
	}
	if _, ok := c.LookupUnique("iso2", "NL"); ok {
		t.Fatal("stale unique key survived update merge")
	}
	if id, ok := c.LookupUnique("iso2", "NX"); !ok || id != "nl" {
		t.Fatal("updated unique key missing")
	}
	if c.Contains("be") {
		t.Fatal("deleted record survived merge")
	}
	if r, _ := c.Get("nl"); r.Version != 1 {
		t.Fatalf("expected version 1, got %d", r.Version)
	}
}

func TestCacheAddExistingIsNoop(t *testing.T) {
	c, err := NewCache([]Record{{ID: "a", Version: 3}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	c.Add(Record{ID: "a", Version: 9})
	if r, _ := c.Get("a"); r.Version != 3 {
		t.Fatalf("expected replay add to be ignored, got version %d", r.Version)
	}
}
