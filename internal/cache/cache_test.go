package cache

import (
	"errors"
	"testing"
	"time"
)

func TestSetGetExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New()
	c.now = func() time.Time { return now }

	c.Set("issue:1", "hello", time.Minute)
	if v, ok := c.Get("issue:1"); !ok || v != "hello" {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("issue:1"); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry removed", c.Len())
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	c.Set("k", 1, time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("nil cache returned a value")
	}
	c.Delete("k")
	if c.Len() != 0 {
		t.Error("nil cache has entries")
	}
}

func TestLookupTyped(t *testing.T) {
	c := New()
	c.Set("n", 42, time.Minute)

	if v, ok := Lookup[int](c, "n"); !ok || v != 42 {
		t.Errorf("Lookup[int] = %v, %v", v, ok)
	}
	if _, ok := Lookup[string](c, "n"); ok {
		t.Error("Lookup with wrong type succeeded")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := New()
	calls := 0
	load := func() (string, error) {
		calls++

		return "main", nil
	}

	for range 3 {
		v, err := GetOrLoad(c, "branch", time.Minute, load)
		if err != nil || v != "main" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	_, err := GetOrLoad(c, "other", time.Minute, func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Errorf("GetOrLoad error = %v", err)
	}
	if _, ok := c.Get("other"); ok {
		t.Error("error result was cached")
	}
}
