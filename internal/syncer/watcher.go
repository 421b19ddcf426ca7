package syncer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"latus/internal/folders"
	"latus/internal/logging"
)

// WatcherStats tracks watcher activity for status reporting and debugging.
type WatcherStats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Scans         int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
}

// watcher turns raw fsnotify events into debounced full rescans of one sync
// side. Cloud clients deliver bursts of events while they replicate, so each
// event only arms the debounce; the scan runs once the burst settles.
type watcher struct {
	mu          sync.RWMutex
	fsw         *fsnotify.Watcher
	kind        string // "local" or "cloud"
	dirs        []string
	recursive   bool // fsnotify watches are per-directory; descend into subdirs
	match       func(name string) bool
	scan        func(ctx context.Context)
	pending     bool
	lastEvent   time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

func newWatcher(kind string, dirs []string, recursive bool, match func(string) bool, scan func(context.Context)) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{
		fsw:         fsw,
		kind:        kind,
		dirs:        dirs,
		recursive:   recursive,
		match:       match,
		scan:        scan,
		debounceDur: 500 * time.Millisecond, // settle window for rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// start performs an initial full scan, then begins watching.
// Non-blocking; the event loop runs in a goroutine.
func (w *watcher) start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Rescan the entire folder before the watcher starts so changes made
	// while sync was down are picked up.
	w.runScan(ctx)

	for _, dir := range w.dirs {
		w.watchDir(dir)
	}

	go w.run(ctx)
	return nil
}

// watchDir registers dir with fsnotify, descending into every subdirectory
// when the watcher is recursive. The hidden metadata tree is excluded so
// blob and database churn under a cloud root never feeds back as events.
func (w *watcher) watchDir(dir string) {
	if !w.recursive {
		w.add(dir)
		return
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == "."+folders.Name {
			return filepath.SkipDir
		}
		w.add(path)
		return nil
	})
	if err != nil {
		logging.Get(logging.CategoryWatch).Warn("%s: walk of %s failed: %v", w.kind, dir, err)
	}
}

func (w *watcher) add(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		logging.Get(logging.CategoryWatch).Warn("%s: watch of %s failed: %v", w.kind, dir, err)
	} else {
		logging.Watch("%s: watching %s", w.kind, dir)
	}
}

// stop halts the watcher and waits for the event loop to exit.
func (w *watcher) stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fsw.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("%s: error closing watcher: %v", w.kind, err)
	}
	logging.Watch("%s: stopped", w.kind)
}

// run is the main event loop.
func (w *watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("%s: context cancelled", w.kind)
			return

		case <-w.stopCh:
			logging.WatchDebug("%s: stop signal received", w.kind)
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("%s: watcher error: %v", w.kind, err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.maybeScan(ctx)
		}
	}
}

// handleEvent records a single filesystem event and arms the debounce.
func (w *watcher) handleEvent(event fsnotify.Event) {
	if w.match != nil && !w.match(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // ignore chmod etc.
	}

	logging.WatchDebug("%s: %s event for %s", w.kind, eventType, event.Name)

	// A new directory must be watched before its contents change. Files
	// created inside it before the Add lands are caught by the rescan this
	// very event arms.
	if w.recursive && eventType == "create" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if info.Name() != "."+folders.Name {
				w.add(event.Name)
			}
		}
	}

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType
	switch eventType {
	case "create":
		w.stats.FilesCreated++
	case "modify":
		w.stats.FilesModified++
	case "delete", "rename":
		w.stats.FilesDeleted++
	}
	w.pending = true
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// maybeScan runs the scan once events have settled past the debounce window.
func (w *watcher) maybeScan(ctx context.Context) {
	w.mu.Lock()
	due := w.pending && time.Since(w.lastEvent) >= w.debounceDur
	if due {
		w.pending = false
	}
	w.mu.Unlock()
	if due {
		w.runScan(ctx)
	}
}

func (w *watcher) runScan(ctx context.Context) {
	w.mu.Lock()
	w.stats.Scans++
	w.mu.Unlock()
	w.scan(ctx)
}

// Stats returns a copy of the current watcher statistics.
func (w *watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}
