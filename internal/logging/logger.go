// Package logging provides categorized file-based diagnostic logging for
// latus. Logs are written under the application log directory with a separate
// file per category. This is developer-facing output for diagnosing sync
// behavior after the fact; user-facing verbosity is handled separately by the
// CLI and stays independent of these levels.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot   Category = "boot"   // Startup, config, key loading
	CategorySync   Category = "sync"   // Composite sync lifecycle
	CategoryLocal  Category = "local"  // Local folder scans
	CategoryCloud  Category = "cloud"  // Cloud folder scans, winner resolution
	CategoryStore  Category = "store"  // Node database operations
	CategoryHash   Category = "hash"   // Hashing and hash cache
	CategoryCrypto Category = "crypto" // Encrypt/decrypt of cache blobs
	CategoryWatch  Category = "watch"  // Filesystem watcher events
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Settings controls what gets written. Zero value disables all logging.
type Settings struct {
	Enabled    bool
	Level      string          // debug, info, warn, error
	Categories map[string]bool // nil means all categories enabled
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	logsDir  string
	settings Settings
	logLevel int
)

// Initialize sets up the log directory and applies settings.
// Called once at startup; a no-op when settings disable logging.
func Initialize(dir string, s Settings) error {
	mu.Lock()
	settings = s
	logsDir = dir
	switch s.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	mu.Unlock()

	if !s.Enabled {
		return nil
	}
	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== latus logging initialized ===")
	boot.Info("logs directory: %s", dir)
	boot.Info("level: %s", s.Level)
	return nil
}

// IsCategoryEnabled reports whether a category produces output.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !settings.Enabled {
		return false
	}
	if settings.Categories == nil {
		return true
	}
	enabled, ok := settings.Categories[string(category)]
	if !ok {
		return true // enabled by default when not listed
	}
	return enabled
}

// currentLevel reads the level gate under the lock; Initialize may run
// while other goroutines are already logging.
func currentLevel() int {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if logging or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	mu.RLock()
	dir := logsDir
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	if dir == "" {
		return &Logger{category: category}
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation a matter of deleting old files.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || currentLevel() > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || currentLevel() > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || currentLevel() > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if the logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions; no-ops when the category is disabled.

// Boot logs to the boot category.
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// Sync logs to the sync category.
func Sync(format string, args ...interface{}) { Get(CategorySync).Info(format, args...) }

// SyncDebug logs debug to the sync category.
func SyncDebug(format string, args ...interface{}) { Get(CategorySync).Debug(format, args...) }

// Local logs to the local category.
func Local(format string, args ...interface{}) { Get(CategoryLocal).Info(format, args...) }

// LocalDebug logs debug to the local category.
func LocalDebug(format string, args ...interface{}) { Get(CategoryLocal).Debug(format, args...) }

// Cloud logs to the cloud category.
func Cloud(format string, args ...interface{}) { Get(CategoryCloud).Info(format, args...) }

// CloudDebug logs debug to the cloud category.
func CloudDebug(format string, args ...interface{}) { Get(CategoryCloud).Debug(format, args...) }

// Store logs to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Hash logs to the hash category.
func Hash(format string, args ...interface{}) { Get(CategoryHash).Info(format, args...) }

// HashDebug logs debug to the hash category.
func HashDebug(format string, args ...interface{}) { Get(CategoryHash).Debug(format, args...) }

// Crypto logs to the crypto category.
func Crypto(format string, args ...interface{}) { Get(CategoryCrypto).Info(format, args...) }

// Watch logs to the watch category.
func Watch(format string, args ...interface{}) { Get(CategoryWatch).Info(format, args...) }

// WatchDebug logs debug to the watch category.
func WatchDebug(format string, args ...interface{}) { Get(CategoryWatch).Debug(format, args...) }

// Timer helps measure operation duration.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
