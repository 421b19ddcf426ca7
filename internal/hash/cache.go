package hash

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"latus/internal/logging"
)

// DefaultMaxPerfRows is how many slow-hash records are retained.
const DefaultMaxPerfRows = 10

// mtimeSlack is the granularity at which modification times are considered
// equal. Filesystems and cloud clients round mtimes differently; within a
// second, same path+size is trusted to mean same content.
const mtimeSlack = time.Second

// Cache is an sqlite-backed hash cache. The invariant it relies on: for a
// given absolute path, if mtime and size are unchanged the content hash is
// unchanged.
type Cache struct {
	db          *sql.DB
	mu          sync.Mutex
	maxPerfRows int
}

// PerfEntry records one slow hash calculation.
type PerfEntry struct {
	Path    string
	Size    int64
	Seconds float64
}

// NewCache opens (or creates) the cache database at path.
// Use ":memory:" in tests.
func NewCache(path string) (*Cache, error) {
	timer := logging.StartTimer(logging.CategoryHash, "NewCache")
	defer timer.Stop()

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.HashDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.HashDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	c := &Cache{db: db, maxPerfRows: DefaultMaxPerfRows}
	if err := c.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hash_cache (
		abspath TEXT PRIMARY KEY,
		mtime_ns INTEGER NOT NULL,
		size INTEGER NOT NULL,
		sha512 TEXT NOT NULL,
		calc_seconds REAL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_hash_cache_sha512 ON hash_cache(sha512);

	CREATE TABLE IF NOT EXISTS hash_perf (
		abspath TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		seconds REAL NOT NULL
	);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize hash cache schema: %w", err)
	}
	return nil
}

// Get returns the SHA-512 of the file at path, from the cache when the
// stored mtime/size still match, recomputing and upserting otherwise.
func (c *Cache) Get(path string) (sum string, fromCache bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", false, fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	mtime := info.ModTime().UnixNano()
	size := info.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	var cachedMtime, cachedSize int64
	var cachedSum string
	row := c.db.QueryRow(
		"SELECT mtime_ns, size, sha512 FROM hash_cache WHERE abspath = ?", abs)
	switch err := row.Scan(&cachedMtime, &cachedSize, &cachedSum); err {
	case nil:
		if cachedSize == size && withinSlack(cachedMtime, mtime) {
			logging.HashDebug("cache hit for %s", abs)
			return cachedSum, true, nil
		}
	case sql.ErrNoRows:
		// fall through to recompute
	default:
		return "", false, fmt.Errorf("hash cache query failed: %w", err)
	}

	sum, elapsed, err := Sum(abs)
	if err != nil {
		return "", false, err
	}
	seconds := elapsed.Seconds()
	_, err = c.db.Exec(`
		INSERT INTO hash_cache (abspath, mtime_ns, size, sha512, calc_seconds, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(abspath) DO UPDATE SET
			mtime_ns = excluded.mtime_ns,
			size = excluded.size,
			sha512 = excluded.sha512,
			calc_seconds = excluded.calc_seconds,
			updated_at = CURRENT_TIMESTAMP`,
		abs, mtime, size, sum, seconds)
	if err != nil {
		return "", false, fmt.Errorf("hash cache upsert failed: %w", err)
	}

	c.recordPerf(abs, size, seconds)
	return sum, false, nil
}

// recordPerf keeps only the slowest calculations. If the table is full and
// the candidate is faster than the current fastest entry it is dropped.
func (c *Cache) recordPerf(abs string, size int64, seconds float64) {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM hash_perf").Scan(&count); err != nil {
		logging.HashDebug("hash perf count failed: %v", err)
		return
	}
	if count >= c.maxPerfRows {
		var fastestPath string
		var fastest float64
		err := c.db.QueryRow(
			"SELECT abspath, seconds FROM hash_perf ORDER BY seconds ASC LIMIT 1").
			Scan(&fastestPath, &fastest)
		if err != nil || seconds <= fastest {
			return
		}
		if _, err := c.db.Exec("DELETE FROM hash_perf WHERE abspath = ?", fastestPath); err != nil {
			logging.HashDebug("hash perf evict failed: %v", err)
			return
		}
	}
	_, err := c.db.Exec(`
		INSERT INTO hash_perf (abspath, size, seconds) VALUES (?, ?, ?)
		ON CONFLICT(abspath) DO UPDATE SET size = excluded.size, seconds = excluded.seconds`,
		abs, size, seconds)
	if err != nil {
		logging.HashDebug("hash perf insert failed: %v", err)
	}
}

// PerfEntries returns the retained slow-hash records, slowest first.
func (c *Cache) PerfEntries() ([]PerfEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(
		"SELECT abspath, size, seconds FROM hash_perf ORDER BY seconds DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PerfEntry
	for rows.Next() {
		var e PerfEntry
		if err := rows.Scan(&e.Path, &e.Size, &e.Seconds); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func withinSlack(a, b int64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return time.Duration(d) <= mtimeSlack
}
