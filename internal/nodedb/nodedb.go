// Package nodedb implements the per-node file event database.
//
// Each node owns exactly one sqlite file in the shared nodedb folder,
// named <nodeID>.db. A node appends events only to its own database and
// reads everyone's; that single-writer rule is what lets plain file
// replication act as the transport. The event log is never rewritten:
// the current state of a path is always its newest event.
package nodedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"latus/internal/logging"
)

// Ext is the node database filename extension.
const Ext = ".db"

// FileEvent is one recorded change. A deletion has an empty Hash and zero
// Size/MTime, mirroring the NULL columns on disk.
type FileEvent struct {
	Seq   uint64 // global miv sequence
	Path  string // slash-relative path inside the sync folder
	Size  int64
	Hash  string // hex SHA-512 of content; empty for deletions
	MTime time.Time
	Node  string // node ID the event came from (set by readers)
}

// Deleted reports whether the event records a deletion.
func (e FileEvent) Deleted() bool { return e.Hash == "" }

// DB is one node's event database.
type DB struct {
	db     *sql.DB
	mu     sync.Mutex
	nodeID string
	path   string
}

// Open opens (or creates) the database for nodeID inside dir.
func Open(dir, nodeID string) (*DB, error) {
	timer := logging.StartTimer(logging.CategoryStore, "nodedb.Open")
	defer timer.Stop()

	if nodeID == "" {
		return nil, fmt.Errorf("node ID required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create nodedb folder: %w", err)
	}
	path := filepath.Join(dir, nodeID+Ext)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open node database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set sqlite journal_mode=WAL: %v", err)
	}

	n := &DB{db: db, nodeID: nodeID, path: path}
	if err := n.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("node database ready: %s", path)
	return n, nil
}

func (n *DB) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seq INTEGER NOT NULL,
		path TEXT NOT NULL,
		size INTEGER,
		sha512 TEXT,
		mtime_ns INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);
	CREATE INDEX IF NOT EXISTS idx_events_seq ON events(seq);
	`
	if _, err := n.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize events schema: %w", err)
	}
	return nil
}

// NodeID returns the owning node's ID.
func (n *DB) NodeID() string { return n.nodeID }

// Path returns the database file path.
func (n *DB) Path() string { return n.path }

// Record appends a change event for path.
func (n *DB) Record(seq uint64, path string, size int64, hash string, mtime time.Time) error {
	if hash == "" {
		return fmt.Errorf("empty hash; use RecordDelete for deletions")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := n.db.Exec(
		"INSERT INTO events (seq, path, size, sha512, mtime_ns) VALUES (?, ?, ?, ?, ?)",
		seq, path, size, hash, mtime.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	logging.StoreDebug("%s: recorded seq=%d path=%s", n.nodeID, seq, path)
	return nil
}

// RecordDelete appends a deletion event for path.
func (n *DB) RecordDelete(seq uint64, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := n.db.Exec(
		"INSERT INTO events (seq, path, size, sha512, mtime_ns) VALUES (?, ?, NULL, NULL, NULL)",
		seq, path)
	if err != nil {
		return fmt.Errorf("failed to record deletion: %w", err)
	}
	logging.StoreDebug("%s: recorded deletion seq=%d path=%s", n.nodeID, seq, path)
	return nil
}

// MostRecent returns the newest event for path, if any.
func (n *DB) MostRecent(path string) (FileEvent, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mostRecentLocked(path)
}

func (n *DB) mostRecentLocked(path string) (FileEvent, bool, error) {
	row := n.db.QueryRow(`
		SELECT seq, path, size, sha512, mtime_ns FROM events
		WHERE path = ? ORDER BY id DESC LIMIT 1`, path)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return FileEvent{}, false, nil
	}
	if err != nil {
		return FileEvent{}, false, fmt.Errorf("failed to query events: %w", err)
	}
	ev.Node = n.nodeID
	return ev, true, nil
}

// MostRecentHash returns the hash of the newest event for path, empty when
// the path is unknown or its latest event is a deletion.
func (n *DB) MostRecentHash(path string) (string, error) {
	ev, ok, err := n.MostRecent(path)
	if err != nil || !ok {
		return "", err
	}
	return ev.Hash, nil
}

// LastSeq returns the sequence of the newest event for path, zero if none.
func (n *DB) LastSeq(path string) (uint64, error) {
	ev, ok, err := n.MostRecent(path)
	if err != nil || !ok {
		return 0, err
	}
	return ev.Seq, nil
}

// Paths returns every path this database has ever seen, sorted.
func (n *DB) Paths() ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rows, err := n.db.Query("SELECT DISTINCT path FROM events ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Latest returns the newest event per path, sorted by path.
func (n *DB) Latest() ([]FileEvent, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rows, err := n.db.Query(`
		SELECT e.seq, e.path, e.size, e.sha512, e.mtime_ns
		FROM events e
		JOIN (SELECT path, MAX(id) AS maxid FROM events GROUP BY path) m
		  ON e.id = m.maxid
		ORDER BY e.path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest events: %w", err)
	}
	defer rows.Close()

	var events []FileEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		ev.Node = n.nodeID
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (n *DB) Close() error {
	return n.db.Close()
}

// ListNodeIDs returns the node IDs present in a nodedb folder, sorted.
func ListNodeIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read nodedb folder: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, Ext) {
			continue
		}
		// sqlite WAL side files end in .db-wal / .db-shm and are skipped
		// by the suffix check above already.
		ids = append(ids, strings.TrimSuffix(name, Ext))
	}
	sort.Strings(ids)
	return ids, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (FileEvent, error) {
	var ev FileEvent
	var size sql.NullInt64
	var hash sql.NullString
	var mtime sql.NullInt64
	if err := s.Scan(&ev.Seq, &ev.Path, &size, &hash, &mtime); err != nil {
		return FileEvent{}, err
	}
	if size.Valid {
		ev.Size = size.Int64
	}
	if hash.Valid {
		ev.Hash = hash.String
	}
	if mtime.Valid {
		ev.MTime = time.Unix(0, mtime.Int64).UTC()
	}
	return ev, nil
}
