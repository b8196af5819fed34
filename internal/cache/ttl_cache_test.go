package cache

import (
	"testing"
	"time"
)

func TestGetReturnsStoredValue(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 42, time.Minute)

	got, ok := c.Get("a")
	if !ok || got != 42 {
		t.Fatalf("expected 42, got %d ok=%v", got, ok)
	}
}

func TestExpiredEntryIsDropped(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to be gone")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 0)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected zero-ttl entry to stay")
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("a", 1, time.Minute)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Fatal("nil cache must miss")
	}
}
