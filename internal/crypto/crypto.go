// Package crypto implements the content protection latus applies before
// anything touches the cloud folder: a random 256-bit key, gzip compression,
// and an XChaCha20-Poly1305 envelope. Cache blobs carry the ".fer" extension
// and a small magic header so foreign files are rejected early.
package crypto

import (
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"latus/internal/logging"
)

const (
	// KeySize is the symmetric key length in bytes.
	KeySize = chacha20poly1305.KeySize

	// BlobExt is the extension of encrypted cache blobs.
	BlobExt = ".fer"
)

// blobMagic prefixes every encrypted blob. The digit is the format version.
var blobMagic = []byte("LF1")

var (
	// ErrBadBlob is returned for truncated or foreign blob files.
	ErrBadBlob = errors.New("not a latus blob or blob corrupted")

	// ErrAuth is returned when the key is wrong or the ciphertext was
	// modified. No partial plaintext is ever produced.
	ErrAuth = errors.New("blob authentication failed (wrong key or tampered data)")
)

// Key is the symmetric content key shared by all of a user's nodes.
type Key []byte

// NewKey generates a fresh random key.
func NewKey() (Key, error) {
	k := make(Key, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return k, nil
}

// Compress reads root/relPath, compresses and seals it, and writes the blob
// to dst atomically (temp file + rename) so a crashed writer never leaves a
// half-written blob in the shared cache.
func Compress(key Key, root, relPath, dst string) error {
	timer := logging.StartTimer(logging.CategoryCrypto, "compress "+relPath)
	defer timer.Stop()

	plaintext, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plaintext); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, 0, len(blobMagic)+len(nonce)+buf.Len()+aead.Overhead())
	blob = append(blob, blobMagic...)
	blob = append(blob, nonce...)
	blob = aead.Seal(blob, nonce, buf.Bytes(), nil)

	return writeAtomic(dst, blob, 0o644)
}

// Expand decrypts and decompresses the blob at src into dst, creating parent
// directories. The destination write is atomic so watchers on the sync folder
// only ever see complete files.
func Expand(key Key, src, dst string) error {
	timer := logging.StartTimer(logging.CategoryCrypto, "expand "+filepath.Base(src))
	defer timer.Stop()

	blob, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	minLen := len(blobMagic) + aead.NonceSize() + aead.Overhead()
	if len(blob) < minLen || !bytes.Equal(blob[:len(blobMagic)], blobMagic) {
		return ErrBadBlob
	}
	nonce := blob[len(blobMagic) : len(blobMagic)+aead.NonceSize()]
	ct := blob[len(blobMagic)+aead.NonceSize():]

	compressed, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return ErrAuth
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	plaintext, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}
	if err := zr.Close(); err != nil {
		return fmt.Errorf("decompression failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	return writeAtomic(dst, plaintext, 0o644)
}

// writeAtomic writes data to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".latus-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return fmt.Errorf("failed to write %s: %w", path, werr)
		}
		return fmt.Errorf("failed to write %s: %w", path, cerr)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
