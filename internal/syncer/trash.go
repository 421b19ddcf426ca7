package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"latus/internal/logging"
)

// moveToTrash moves root/relPath into a timestamped folder under trashDir
// instead of unlinking it. Remote deletions are the one place sync destroys
// user data, so they get a safety net. Falls back to a plain remove when the
// rename fails (e.g. trash on another filesystem).
func moveToTrash(trashDir, root, relPath string) error {
	src := filepath.Join(root, filepath.FromSlash(relPath))
	dstDir := filepath.Join(trashDir, time.Now().UTC().Format("2006-01-02T15-04-05"))
	dst := filepath.Join(dstDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to prepare trash folder: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		logging.Get(logging.CategorySync).Warn("trash rename failed for %s, removing instead: %v", relPath, err)
		if rerr := os.Remove(src); rerr != nil {
			return fmt.Errorf("failed to remove %s: %w", relPath, rerr)
		}
	}
	return nil
}
