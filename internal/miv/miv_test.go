package miv

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPeekMissing(t *testing.T) {
	v, err := Peek(t.TempDir())
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if v != 0 {
		t.Errorf("missing value file should read as 0, got %d", v)
	}
}

func TestNextIncrements(t *testing.T) {
	dir := t.TempDir()
	for want := uint64(1); want <= 3; want++ {
		got, err := Next(dir)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("Next = %d, want %d", got, want)
		}
	}
	v, err := Peek(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Errorf("Peek after three increments = %d, want 3", v)
	}
}

func TestNextReleasesLock(t *testing.T) {
	dir := t.TempDir()
	if _, err := Next(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, lockFile)); !os.IsNotExist(err) {
		t.Error("lock file left behind after Next")
	}
}

func TestNextConcurrentUnique(t *testing.T) {
	dir := t.TempDir()
	const workers = 8
	const perWorker = 5

	var mu sync.Mutex
	var got []uint64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				v, err := Next(dir)
				if err != nil {
					t.Errorf("Next failed: %v", err)
					return
				}
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != workers*perWorker {
		t.Fatalf("got %d values, want %d", len(got), workers*perWorker)
	}
	for i, v := range got {
		if v != uint64(i+1) {
			t.Fatalf("values not a dense unique sequence at index %d: %v", i, got)
		}
	}
}

func TestStaleLockBroken(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, lockFile)
	if err := os.WriteFile(lock, []byte("999 crashed"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(lock, old, old); err != nil {
		t.Fatal(err)
	}

	v, err := Next(dir)
	if err != nil {
		t.Fatalf("Next did not break stale lock: %v", err)
	}
	if v != 1 {
		t.Errorf("Next = %d, want 1", v)
	}
}

func TestCorruptValue(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, valueFile), []byte("banana"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Peek(dir); err == nil {
		t.Fatal("expected error for corrupt value file")
	}
	if _, err := Next(dir); err == nil {
		t.Fatal("Next must not silently reset a corrupt value")
	}
}
