package lru

import (
	"testing"
	"time"
)

func TestSetGetBasic(t *testing.T) {
	c := New[string, int](2)
	if err := c.Set("a", 1, 10, "label-a", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v, want 1, true", v, ok)
	}
}

func TestEvictionOrderIsStrictLRU(t *testing.T) {
	// Mirrors spec.md §8 scenario 1.
	c := New[int, string](3)
	must(t, c.Set(2022, "y2022", 1, "year:2022", nil))
	must(t, c.Set(2023, "y2023", 1, "year:2023", nil))
	must(t, c.Set(2024, "y2024", 1, "year:2024", nil))

	if _, ok := c.Get(2022); !ok {
		t.Fatal("2022 should be present")
	}
	// order is now [2023, 2024, 2022] LRU->MRU
	if got := c.KeysOldestFirst(); !equalInts(got, []int{2023, 2024, 2022}) {
		t.Fatalf("order = %v, want [2023 2024 2022]", got)
	}

	must(t, c.Set(2021, "y2021", 1, "year:2021", nil))
	if c.Has(2023) {
		t.Fatal("2023 should have been evicted")
	}
	if !c.Has(2024) || !c.Has(2022) || !c.Has(2021) {
		t.Fatal("2024, 2022, 2021 should remain")
	}
}

func TestSetReplacePreservesHitCount(t *testing.T) {
	c := New[string, int](2)
	must(t, c.Set("a", 1, 10, "a", nil))
	c.Get("a")
	c.Get("a")

	must(t, c.Set("a", 2, 20, "a-v2", nil))
	e, ok := c.Entry("a")
	if !ok {
		t.Fatal("a should exist")
	}
	if e.HitCount != 2 {
		t.Errorf("HitCount = %d, want 2 (preserved across replace)", e.HitCount)
	}
	if e.Value != 2 || e.SizeBytes != 20 || e.Label != "a-v2" {
		t.Errorf("replace did not update value/size/label: %+v", e)
	}
}

func TestNegativeSizeRejected(t *testing.T) {
	c := New[string, int](2)
	err := c.Set("a", 1, -1, "a", nil)
	if err == nil {
		t.Fatal("expected error for negative size_bytes")
	}
}

func TestExpiryTreatedAsAbsent(t *testing.T) {
	c := New[string, int](2)
	past := time.Now().Add(-time.Hour)
	must(t, c.Set("a", 1, 10, "a", &past))

	if c.Has("a") {
		t.Fatal("expired entry should be absent via Has")
	}
	if c.Len() != 0 {
		t.Fatal("expired entry should be swept on first touch")
	}
}

func TestExpiryOnGet(t *testing.T) {
	c := New[string, int](2)
	past := time.Now().Add(-time.Hour)
	must(t, c.Set("a", 1, 10, "a", &past))

	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should not be returned by Get")
	}
}

func TestStatsTotalBytes(t *testing.T) {
	c := New[string, int](5)
	must(t, c.Set("a", 1, 10, "a", nil))
	must(t, c.Set("b", 2, 20, "b", nil))
	must(t, c.Set("c", 3, 30, "c", nil))

	s := c.Stats()
	if s.TotalBytes != 60 {
		t.Errorf("TotalBytes = %d, want 60", s.TotalBytes)
	}
	if s.Count != 3 {
		t.Errorf("Count = %d, want 3", s.Count)
	}
	if !equalStrings(s.LabelsOldestFirst, []string{"a", "b", "c"}) {
		t.Errorf("LabelsOldestFirst = %v", s.LabelsOldestFirst)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[string, int](5)
	must(t, c.Set("a", 1, 10, "a", nil))
	must(t, c.Set("b", 2, 20, "b", nil))
	c.Delete("a")
	if c.Has("a") {
		t.Fatal("a should be gone after Delete")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatal("Clear should empty the cache")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
