package hash

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(":memory:")
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheMissThenHit(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, fromCache, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fromCache {
		t.Error("first Get must be a miss")
	}

	second, fromCache, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !fromCache {
		t.Error("second Get must be a hit")
	}
	if first != second {
		t.Errorf("hit returned different sum: %s vs %s", first, second)
	}
}

func TestCacheInvalidatedByMtime(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("version one"), 0o644); err != nil {
		t.Fatal(err)
	}
	old, _, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}

	// Same length, different content. The mtime bump must be larger than
	// the one second slack or the stale sum would be trusted.
	if err := os.WriteFile(path, []byte("version two"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	sum, fromCache, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if fromCache {
		t.Error("changed file served from cache")
	}
	if sum == old {
		t.Error("sum unchanged after content change")
	}
}

func TestCacheInvalidatedBySize(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Get(path); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("much longer content"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, fromCache, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if fromCache {
		t.Error("size change not detected")
	}
}

func TestCacheMissingFile(t *testing.T) {
	c := newTestCache(t)
	if _, _, err := c.Get(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPerfTableBounded(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	for i := 0; i < DefaultMaxPerfRows+5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%02d.txt", i))
		if err := os.WriteFile(path, []byte(fmt.Sprintf("content %d", i)), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := c.Get(path); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := c.PerfEntries()
	if err != nil {
		t.Fatalf("PerfEntries failed: %v", err)
	}
	if len(entries) > DefaultMaxPerfRows {
		t.Errorf("perf table holds %d rows, cap is %d", len(entries), DefaultMaxPerfRows)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seconds > entries[i-1].Seconds {
			t.Errorf("entries not sorted slowest first at %d", i)
		}
	}
}
