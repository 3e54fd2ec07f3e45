package index

import (
	"strconv"
	"testing"
)

func TestSumStableAcrossCalls(t *testing.T) {
	type entity struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	a, err := Sum(entity{ID: "x", Name: "alpha"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := Sum(entity{ID: "x", Name: "alpha"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a != b {
		t.Fatalf("expected identical digests, got %d and %d", a, b)
	}
}

func TestSumDetectsChange(t *testing.T) {
	type entity struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	a, err := Sum(entity{ID: "x", Name: "alpha"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := Sum(entity{ID: "x", Name: "beta"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a == b {
		t.Fatal("expected different digests for different content")
	}
}

func TestSumRejectsUnencodable(t *testing.T) {
	if _, err := Sum(func() {}); err == nil {
		t.Fatal("expected error for unencodable value")
	}
}

func TestKeyOfSeparatesParts(t *testing.T) {
	if KeyOf("ab", "c") == KeyOf("a", "bc") {
		t.Fatal("expected part boundaries to matter")
	}
	if KeyOf("country-1", "NY") != KeyOf("country-1", "NY") {
		t.Fatal("expected stable derived keys")
	}
}

func TestKeyOfSinglePartMatchesSumString(t *testing.T) {
	want := strconv.FormatInt(SumString("ext-123"), 10)
	if got := KeyOf("ext-123"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
