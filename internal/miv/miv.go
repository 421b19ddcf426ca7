// Package miv implements the shared monotonically increasing value that
// orders file events across nodes. It lives in a folder replicated by the
// cloud service, so the only primitives available are files: a value file
// plus an O_CREATE|O_EXCL lock file for mutual exclusion.
package miv

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"latus/internal/logging"
)

const (
	valueFile = "value"
	lockFile  = "lock"

	retryDelay   = 50 * time.Millisecond
	acquireLimit = 30 * time.Second

	// A lock older than this is assumed to belong to a crashed node.
	staleAfter = 10 * time.Second
)

// Next returns the next global sequence number, persisting the increment
// under the miv folder's lock. Values are strictly increasing across all
// nodes as long as the cloud service replicates the folder.
func Next(dir string) (uint64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create miv folder: %w", err)
	}
	if err := acquire(dir); err != nil {
		return 0, err
	}
	defer release(dir)

	v, err := Peek(dir)
	if err != nil {
		return 0, err
	}
	v++
	tmp := filepath.Join(dir, valueFile+".tmp")
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(v, 10)), 0o644); err != nil {
		return 0, fmt.Errorf("failed to write miv value: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, valueFile)); err != nil {
		return 0, fmt.Errorf("failed to finalize miv value: %w", err)
	}
	logging.StoreDebug("miv advanced to %d", v)
	return v, nil
}

// Peek reads the current value without incrementing. A missing value file
// reads as zero.
func Peek(dir string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(dir, valueFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read miv value: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt miv value %q: %w", string(data), err)
	}
	return v, nil
}

// acquire takes the lock file, breaking stale locks from crashed nodes.
func acquire(dir string) error {
	path := filepath.Join(dir, lockFile)
	deadline := time.Now().Add(acquireLimit)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to take miv lock: %w", err)
		}
		if info, serr := os.Stat(path); serr == nil && time.Since(info.ModTime()) > staleAfter {
			logging.Get(logging.CategoryStore).Warn("breaking stale miv lock (age %v)", time.Since(info.ModTime()))
			os.Remove(path)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for miv lock at %s", path)
		}
		time.Sleep(retryDelay)
	}
}

func release(dir string) {
	if err := os.Remove(filepath.Join(dir, lockFile)); err != nil {
		logging.Get(logging.CategoryStore).Warn("failed to release miv lock: %v", err)
	}
}
