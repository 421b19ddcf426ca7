package crypto

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testKey(t *testing.T) Key {
	t.Helper()
	key, err := NewKey()
	if err != nil {
		t.Fatalf("NewKey failed: %v", err)
	}
	return key
}

func TestNewKey(t *testing.T) {
	a := testKey(t)
	b := testKey(t)
	if len(a) != KeySize {
		t.Fatalf("key length = %d, want %d", len(a), KeySize)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two generated keys are identical")
	}
}

func TestCompressExpandRoundTrip(t *testing.T) {
	key := testKey(t)
	root := t.TempDir()
	content := bytes.Repeat([]byte("latus test content\n"), 200)
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "doc.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	blob := filepath.Join(t.TempDir(), "abc123"+BlobExt)
	if err := Compress(key, root, "sub/doc.txt", blob); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	raw, err := os.ReadFile(blob)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("latus test content")) {
		t.Fatal("plaintext visible in blob")
	}
	if !bytes.HasPrefix(raw, blobMagic) {
		t.Fatalf("blob missing magic header: %q", raw[:8])
	}

	dst := filepath.Join(t.TempDir(), "restore", "doc.txt")
	if err := Expand(key, blob, dst); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("round trip changed content")
	}
}

func TestExpandEmptyFile(t *testing.T) {
	key := testKey(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "empty"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	blob := filepath.Join(t.TempDir(), "e"+BlobExt)
	if err := Compress(key, root, "empty", blob); err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "empty")
	if err := Expand(key, blob, dst); err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty file, got %d bytes", len(got))
	}
}

func TestExpandWrongKey(t *testing.T) {
	key := testKey(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	blob := filepath.Join(t.TempDir(), "f"+BlobExt)
	if err := Compress(key, root, "f", blob); err != nil {
		t.Fatal(err)
	}

	other := testKey(t)
	dst := filepath.Join(t.TempDir(), "out")
	if err := Expand(other, blob, dst); !errors.Is(err, ErrAuth) {
		t.Fatalf("wrong key: err = %v, want ErrAuth", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatal("destination written despite failed authentication")
	}
}

func TestExpandTamperedBlob(t *testing.T) {
	key := testKey(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	blob := filepath.Join(t.TempDir(), "f"+BlobExt)
	if err := Compress(key, root, "f", blob); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(blob)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(blob, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Expand(key, blob, filepath.Join(t.TempDir(), "out")); !errors.Is(err, ErrAuth) {
		t.Fatalf("tampered blob: err = %v, want ErrAuth", err)
	}
}

func TestExpandForeignFile(t *testing.T) {
	key := testKey(t)
	blob := filepath.Join(t.TempDir(), "junk"+BlobExt)
	if err := os.WriteFile(blob, []byte("this is not a blob at all, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Expand(key, blob, filepath.Join(t.TempDir(), "out")); !errors.Is(err, ErrBadBlob) {
		t.Fatalf("foreign file: err = %v, want ErrBadBlob", err)
	}
}

func TestExpandTruncatedBlob(t *testing.T) {
	key := testKey(t)
	blob := filepath.Join(t.TempDir(), "short"+BlobExt)
	if err := os.WriteFile(blob, blobMagic, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Expand(key, blob, filepath.Join(t.TempDir(), "out")); !errors.Is(err, ErrBadBlob) {
		t.Fatalf("truncated blob: err = %v, want ErrBadBlob", err)
	}
}
