// Package hash computes content hashes for sync and maintains a cache so
// unchanged files are never re-read. SHA-512 was measured faster than
// SHA-256 on 64-bit hardware in the original project and keeps collision
// questions out of scope entirely.
package hash

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"latus/internal/logging"
)

// Sum returns the hex SHA-512 of the file at path and how long the
// calculation took. Reading a buffer at a time is orders of magnitude
// faster than byte-wise reads.
func Sum(path string) (string, time.Duration, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha512.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	elapsed := time.Since(start)
	sum := hex.EncodeToString(h.Sum(nil))
	logging.HashDebug("sha512 %s in %v", path, elapsed)
	return sum, elapsed, nil
}
