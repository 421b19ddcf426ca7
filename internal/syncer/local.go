package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"latus/internal/crypto"
	"latus/internal/folders"
	"latus/internal/hash"
	"latus/internal/logging"
	"latus/internal/miv"
	"latus/internal/nodedb"
	"latus/internal/walker"
)

// LocalSync pushes local changes out: it watches the latus folder, records
// created/updated/deleted files in this node's event database, and fills the
// shared cache with encrypted blobs for any content not yet uploaded.
type LocalSync struct {
	key    crypto.Key
	folder string
	cloud  folders.CloudFolders
	db     *nodedb.DB
	hashes *hash.Cache
	status *statusWriter
	w      *watcher

	mu       sync.Mutex
	scanning bool
	scans    int
}

func newLocalSync(key crypto.Key, folder string, cloud folders.CloudFolders,
	db *nodedb.DB, hashes *hash.Cache, statusDir string) (*LocalSync, error) {

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, err
	}
	ls := &LocalSync{
		key:    key,
		folder: folder,
		cloud:  cloud,
		db:     db,
		hashes: hashes,
		status: newStatusWriter(statusDir, "local"),
	}
	w, err := newWatcher("local", []string{folder}, true, nil, ls.scan)
	if err != nil {
		return nil, err
	}
	ls.w = w
	ls.status.write(StateReady)
	return ls, nil
}

func (ls *LocalSync) start(ctx context.Context) error { return ls.w.start(ctx) }
func (ls *LocalSync) stop()                           { ls.w.stop() }

// Stats returns the underlying watcher statistics.
func (ls *LocalSync) Stats() WatcherStats { return ls.w.Stats() }

// scan walks the whole local folder once: new/updated content first, then a
// deletion pass over everything the database has seen. Scans serialize; a
// scan triggered while one is running waits its turn.
func (ls *LocalSync) scan(ctx context.Context) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.scans++

	timer := logging.StartTimer(logging.CategoryLocal, "local scan")
	defer timer.Stop()

	ls.setScanning(true)
	defer ls.setScanning(false)

	paths, err := walker.Walk(ls.folder)
	if err != nil {
		logging.Get(logging.CategoryLocal).Error("walk failed: %v", err)
		return
	}

	for _, rel := range paths {
		if ctx.Err() != nil {
			return
		}
		ls.scanFile(rel)
	}

	ls.deletionPass(ctx)
}

// scanFile handles one walked file: record the change if the content is new
// for this path, and ensure the content blob exists in the shared cache.
func (ls *LocalSync) scanFile(rel string) {
	full := walker.FullPath(ls.folder, rel)
	sum, _, err := ls.hashes.Get(full)
	if err != nil {
		// File unreadable or gone mid-scan; never record a change for it.
		logging.Get(logging.CategoryLocal).Warn("no hash for %s: %v", full, err)
		return
	}

	lastHash, err := ls.db.MostRecentHash(rel)
	if err != nil {
		logging.Get(logging.CategoryLocal).Error("db lookup failed for %s: %v", rel, err)
		return
	}
	if sum != lastHash {
		info, err := os.Stat(full)
		if err != nil {
			logging.Get(logging.CategoryLocal).Warn("%s vanished mid-scan: %v", rel, err)
			return
		}
		seq, err := miv.Next(ls.cloud.MIV())
		if err != nil {
			logging.Get(logging.CategoryLocal).Error("miv failed: %v", err)
			return
		}
		if err := ls.db.Record(seq, rel, info.Size(), sum, info.ModTime().UTC()); err != nil {
			logging.Get(logging.CategoryLocal).Error("record failed for %s: %v", rel, err)
			return
		}
		logging.Local("%s created or updated (seq %d)", rel, seq)
	}

	blob := filepath.Join(ls.cloud.Cache(), sum+crypto.BlobExt)
	if _, err := os.Stat(blob); os.IsNotExist(err) {
		logging.Local("writing %s (%s)", rel, filepath.Base(blob))
		if err := crypto.Compress(ls.key, ls.folder, rel, blob); err != nil {
			logging.Get(logging.CategoryCrypto).Error("compress failed for %s: %v", rel, err)
		}
	}
}

// deletionPass records a deletion for any known path whose latest event
// still has content but whose local file is gone.
func (ls *LocalSync) deletionPass(ctx context.Context) {
	known, err := ls.db.Paths()
	if err != nil {
		logging.Get(logging.CategoryLocal).Error("paths query failed: %v", err)
		return
	}
	for _, rel := range known {
		if ctx.Err() != nil {
			return
		}
		ev, ok, err := ls.db.MostRecent(rel)
		if err != nil || !ok || ev.Deleted() {
			continue
		}
		full := walker.FullPath(ls.folder, rel)
		if _, err := os.Stat(full); !os.IsNotExist(err) {
			continue
		}
		seq, err := miv.Next(ls.cloud.MIV())
		if err != nil {
			logging.Get(logging.CategoryLocal).Error("miv failed: %v", err)
			return
		}
		if err := ls.db.RecordDelete(seq, rel); err != nil {
			logging.Get(logging.CategoryLocal).Error("record delete failed for %s: %v", rel, err)
			continue
		}
		logging.Local("%s deleted (seq %d)", rel, seq)
	}
}

// setScanning flips the scanning flag and mirrors it into the status file.
func (ls *LocalSync) setScanning(on bool) {
	if on == ls.scanning {
		logging.Get(logging.CategoryLocal).Warn("scanning flag already %v", on)
	}
	ls.scanning = on
	if on {
		ls.status.write(StateScanning)
	} else {
		ls.status.write(StateWaiting)
	}
}
