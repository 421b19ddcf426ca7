package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"latus/internal/crypto"
	"latus/internal/folders"
	"latus/internal/hash"
	"latus/internal/logging"
	"latus/internal/nodedb"
	"latus/internal/walker"
)

// CloudSync pulls remote changes in: it watches the shared nodedb folder and,
// whenever any node's database changes, resolves the winning event per path
// and makes the local folder match.
type CloudSync struct {
	key    crypto.Key
	folder string
	cloud  folders.CloudFolders
	db     *nodedb.DB // this node's own database
	hashes *hash.Cache
	status *statusWriter
	w      *watcher

	mu       sync.Mutex
	scanning bool
}

func newCloudSync(key crypto.Key, folder string, cloud folders.CloudFolders,
	db *nodedb.DB, hashes *hash.Cache, statusDir string) (*CloudSync, error) {

	cs := &CloudSync{
		key:    key,
		folder: folder,
		cloud:  cloud,
		db:     db,
		hashes: hashes,
		status: newStatusWriter(statusDir, "cloud"),
	}
	// Only node database files matter; sqlite WAL/SHM churn and cache blob
	// uploads would otherwise trigger pointless rescans.
	match := func(name string) bool {
		return strings.HasSuffix(name, nodedb.Ext)
	}
	w, err := newWatcher("cloud", []string{cloud.NodeDB()}, false, match, cs.scan)
	if err != nil {
		return nil, err
	}
	cs.w = w
	cs.status.write(StateReady)
	return cs, nil
}

func (cs *CloudSync) start(ctx context.Context) error { return cs.w.start(ctx) }
func (cs *CloudSync) stop()                           { cs.w.stop() }

// Stats returns the underlying watcher statistics.
func (cs *CloudSync) Stats() WatcherStats { return cs.w.Stats() }

// scan resolves winners across every node database and applies them locally.
func (cs *CloudSync) scan(ctx context.Context) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryCloud, "cloud scan")
	defer timer.Stop()

	cs.setScanning(true)
	defer cs.setScanning(false)

	winners, err := ResolveWinners(cs.cloud.NodeDB())
	if err != nil {
		logging.Get(logging.CategoryCloud).Error("winner resolution failed: %v", err)
		return
	}

	for _, win := range winners {
		if ctx.Err() != nil {
			return
		}
		cs.apply(win)
	}
}

// apply makes the local folder agree with one winning event.
func (cs *CloudSync) apply(win nodedb.FileEvent) {
	local := walker.FullPath(cs.folder, win.Path)

	localHash := ""
	if _, err := os.Stat(local); err == nil {
		h, _, herr := cs.hashes.Get(local)
		if herr != nil {
			logging.Get(logging.CategoryCloud).Warn("no hash for %s: %v", local, herr)
			return
		}
		localHash = h
	}

	if !win.Deleted() {
		if win.Hash == localHash {
			return // already in agreement
		}
		blob := filepath.Join(cs.cloud.Cache(), win.Hash+crypto.BlobExt)
		logging.Cloud("%s changed %s (seq %d) - propagating to %s", win.Node, win.Path, win.Seq, local)
		if err := crypto.Expand(cs.key, blob, local); err != nil {
			// Blob not replicated yet (or damaged); leave the local file
			// alone and let the next scan retry.
			logging.Get(logging.CategoryCloud).Error("expand failed for %s: %v", win.Path, err)
			return
		}
		cs.mirror(win)
		return
	}

	if localHash != "" {
		logging.Cloud("%s deleted %s (seq %d)", win.Node, win.Path, win.Seq)
		if err := moveToTrash(cs.cloud.Trash(), cs.folder, win.Path); err != nil {
			logging.Get(logging.CategoryCloud).Error("trash failed for %s: %v", win.Path, err)
			return
		}
		cs.mirrorDelete(win)
	}
}

// mirror copies a remote event into this node's own database so its log
// reflects the state it now holds, without minting a new sequence number.
func (cs *CloudSync) mirror(win nodedb.FileEvent) {
	last, err := cs.db.LastSeq(win.Path)
	if err != nil {
		logging.Get(logging.CategoryCloud).Error("last seq lookup failed for %s: %v", win.Path, err)
		return
	}
	if win.Seq == last {
		return
	}
	if err := cs.db.Record(win.Seq, win.Path, win.Size, win.Hash, win.MTime); err != nil {
		logging.Get(logging.CategoryCloud).Error("mirror failed for %s: %v", win.Path, err)
	}
}

func (cs *CloudSync) mirrorDelete(win nodedb.FileEvent) {
	last, err := cs.db.LastSeq(win.Path)
	if err != nil {
		logging.Get(logging.CategoryCloud).Error("last seq lookup failed for %s: %v", win.Path, err)
		return
	}
	if win.Seq == last {
		return
	}
	if err := cs.db.RecordDelete(win.Seq, win.Path); err != nil {
		logging.Get(logging.CategoryCloud).Error("mirror delete failed for %s: %v", win.Path, err)
	}
}

func (cs *CloudSync) setScanning(on bool) {
	if on == cs.scanning {
		logging.Get(logging.CategoryCloud).Warn("scanning flag already %v", on)
	}
	cs.scanning = on
	if on {
		cs.status.write(StateScanning)
	} else {
		cs.status.write(StateWaiting)
	}
}

// ResolveWinners determines, for every path mentioned in any node database,
// the event all nodes must converge on: highest sequence wins, and equal
// sequences are broken by node ID ordering so resolution is deterministic
// everywhere.
func ResolveWinners(dir string) (map[string]nodedb.FileEvent, error) {
	ids, err := nodedb.ListNodeIDs(dir)
	if err != nil {
		return nil, err
	}
	winners := make(map[string]nodedb.FileEvent)
	for _, id := range ids {
		db, err := nodedb.OpenRead(dir, id)
		if err != nil {
			logging.Get(logging.CategoryCloud).Warn("skipping node %s: %v", id, err)
			continue
		}
		events, err := db.Latest()
		db.Close()
		if err != nil {
			logging.Get(logging.CategoryCloud).Warn("skipping node %s: %v", id, err)
			continue
		}
		for _, ev := range events {
			cur, ok := winners[ev.Path]
			if !ok || ev.Seq > cur.Seq || (ev.Seq == cur.Seq && ev.Node < cur.Node) {
				winners[ev.Path] = ev
			}
		}
	}
	return winners, nil
}
