// Package syncer wires the two halves of latus synchronization together.
//
// LocalSync publishes this node's changes (event log entries plus encrypted
// content blobs); CloudSync applies everyone's winning events to the local
// folder. Both rescan wholesale on debounced filesystem events, so missed
// notifications cost latency, never correctness.
package syncer

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"latus/internal/crypto"
	"latus/internal/folders"
	"latus/internal/hash"
	"latus/internal/logging"
	"latus/internal/nodedb"
)

// Options configures a Sync.
type Options struct {
	Key         crypto.Key
	NodeID      string
	LatusFolder string // local folder being synchronized
	CloudRoot   string // mounted cloud folder
	StatusDir   string // where local.json / cloud.json land
	CacheDBPath string // hash cache sqlite file; empty derives from StatusDir
}

// Sync owns both sync sides plus their shared stores.
type Sync struct {
	local  *LocalSync
	cloud  *CloudSync
	db     *nodedb.DB
	hashes *hash.Cache
}

// New builds a Sync, creating the cloud folder layout and opening this
// node's event database and hash cache.
func New(opts Options) (*Sync, error) {
	if len(opts.Key) != crypto.KeySize {
		return nil, fmt.Errorf("invalid key length %d", len(opts.Key))
	}
	if opts.NodeID == "" || opts.LatusFolder == "" || opts.CloudRoot == "" {
		return nil, fmt.Errorf("node ID, latus folder and cloud root are all required")
	}

	logging.Sync("node_id : %s", opts.NodeID)
	logging.Sync("latus_folder : %s", opts.LatusFolder)
	logging.Sync("cloud_root : %s", opts.CloudRoot)

	cloud := folders.NewCloudFolders(opts.CloudRoot)
	if err := cloud.EnsureAll(); err != nil {
		return nil, err
	}

	db, err := nodedb.Open(cloud.NodeDB(), opts.NodeID)
	if err != nil {
		return nil, err
	}

	cachePath := opts.CacheDBPath
	if cachePath == "" {
		cachePath = filepath.Join(opts.StatusDir, "hashcache.db")
	}
	hashes, err := hash.NewCache(cachePath)
	if err != nil {
		db.Close()
		return nil, err
	}

	local, err := newLocalSync(opts.Key, opts.LatusFolder, cloud, db, hashes, opts.StatusDir)
	if err != nil {
		db.Close()
		hashes.Close()
		return nil, err
	}
	remote, err := newCloudSync(opts.Key, opts.LatusFolder, cloud, db, hashes, opts.StatusDir)
	if err != nil {
		db.Close()
		hashes.Close()
		return nil, err
	}

	return &Sync{local: local, cloud: remote, db: db, hashes: hashes}, nil
}

// Start runs the initial scans (concurrently) and begins watching. The
// watcher loops outlive Start; they run on ctx until it is cancelled or
// Stop is called, so ctx must not be scoped to this call.
func (s *Sync) Start(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.local.start(ctx) })
	g.Go(func() error { return s.cloud.start(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	logging.Sync("sync started")
	return nil
}

// Scan forces a full pass on both sides, local first so fresh changes are
// published before winners are applied.
func (s *Sync) Scan(ctx context.Context) {
	s.local.scan(ctx)
	s.cloud.scan(ctx)
}

// Stop halts the watchers and closes the stores.
func (s *Sync) Stop() {
	s.local.stop()
	s.cloud.stop()
	if err := s.hashes.Close(); err != nil {
		logging.Get(logging.CategorySync).Warn("hash cache close: %v", err)
	}
	if err := s.db.Close(); err != nil {
		logging.Get(logging.CategorySync).Warn("node db close: %v", err)
	}
	logging.Sync("sync stopped")
}

// LocalStats and CloudStats expose watcher statistics for the status command.
func (s *Sync) LocalStats() WatcherStats { return s.local.Stats() }
func (s *Sync) CloudStats() WatcherStats { return s.cloud.Stats() }
