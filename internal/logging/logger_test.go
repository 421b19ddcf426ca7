package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func readCategoryLog(t *testing.T, dir string, c Category) string {
	t.Helper()
	date := time.Now().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(dir, date+"_"+string(c)+".log"))
	if err != nil {
		t.Fatalf("reading %s log: %v", c, err)
	}
	return string(data)
}

func TestDisabledProducesNoFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Sync("should not appear")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty log dir, got %d entries", len(entries))
	}
}

func TestWritesToCategoryFile(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: true, Level: "info"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	Local("scanned %d files", 7)
	CloseAll()

	got := readCategoryLog(t, dir, CategoryLocal)
	if !strings.Contains(got, "[INFO] scanned 7 files") {
		t.Errorf("log missing entry, got:\n%s", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: true, Level: "warn"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	l := Get(CategoryHash)
	l.Debug("quiet debug")
	l.Info("quiet info")
	l.Warn("loud warn")
	l.Error("loud error")
	CloseAll()

	got := readCategoryLog(t, dir, CategoryHash)
	if strings.Contains(got, "quiet") {
		t.Errorf("below-level messages leaked:\n%s", got)
	}
	if !strings.Contains(got, "loud warn") || !strings.Contains(got, "loud error") {
		t.Errorf("expected warn and error entries:\n%s", got)
	}
}

func TestCategoryDisable(t *testing.T) {
	dir := t.TempDir()
	s := Settings{
		Enabled:    true,
		Level:      "debug",
		Categories: map[string]bool{"watch": false},
	}
	if err := Initialize(dir, s); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if IsCategoryEnabled(CategoryWatch) {
		t.Error("watch should be disabled")
	}
	if !IsCategoryEnabled(CategorySync) {
		t.Error("unlisted categories should default to enabled")
	}

	Watch("dropped")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	if _, err := os.Stat(filepath.Join(dir, date+"_watch.log")); !os.IsNotExist(err) {
		t.Error("disabled category wrote a log file")
	}
}

func TestReinitializeChangesLevel(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: true, Level: "info"}); err != nil {
		t.Fatal(err)
	}
	defer CloseAll()

	Get(CategorySync).Debug("before reinit")
	if err := Initialize(dir, Settings{Enabled: true, Level: "debug"}); err != nil {
		t.Fatal(err)
	}
	Get(CategorySync).Debug("after reinit")
	CloseAll()

	got := readCategoryLog(t, dir, CategorySync)
	if strings.Contains(got, "before reinit") {
		t.Errorf("debug leaked at info level:\n%s", got)
	}
	if !strings.Contains(got, "after reinit") {
		t.Errorf("debug missing after level change:\n%s", got)
	}
}

// Exercises Initialize racing already-running loggers; failures show up
// under the race detector.
func TestConcurrentInitializeAndLog(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: true, Level: "info"}); err != nil {
		t.Fatal(err)
	}
	defer CloseAll()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Sync("message %d", j)
				SyncDebug("debug %d", j)
			}
		}()
	}
	for _, level := range []string{"debug", "warn", "info"} {
		if err := Initialize(dir, Settings{Enabled: true, Level: level}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}

func TestTimerStop(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	timer := StartTimer(CategoryHash, "hash file")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Errorf("negative elapsed time: %v", elapsed)
	}
	CloseAll()

	got := readCategoryLog(t, dir, CategoryHash)
	if !strings.Contains(got, "hash file completed in") {
		t.Errorf("timer entry missing:\n%s", got)
	}
}

func TestTimerThreshold(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, Settings{Enabled: true, Level: "info"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	timer := StartTimer(CategorySync, "slow scan")
	time.Sleep(5 * time.Millisecond)
	timer.StopWithThreshold(time.Nanosecond)
	CloseAll()

	got := readCategoryLog(t, dir, CategorySync)
	if !strings.Contains(got, "[WARN] slow scan took") {
		t.Errorf("threshold warning missing:\n%s", got)
	}
}
