package config

import "testing"

func TestDefaultIsSane(t *testing.T) {
	c := Default()
	if c.MaxCachedYears <= 0 {
		t.Error("MaxCachedYears must be positive")
	}
	if c.RequestQueue.MaxConcurrent <= 0 {
		t.Error("MaxConcurrent must be positive")
	}
	if c.Rendering.MaxRow < c.Rendering.MinRowLong {
		t.Error("MaxRow must be >= MinRowLong")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MaxCachedYears != Default().MaxCachedYears {
		t.Errorf("Load() without file should match Default()")
	}
}
