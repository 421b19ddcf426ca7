package syncer

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestMoveToTrash(t *testing.T) {
	root := t.TempDir()
	trash := t.TempDir()
	src := filepath.Join(root, "docs", "keep.txt")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("precious"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := moveToTrash(trash, root, "docs/keep.txt"); err != nil {
		t.Fatalf("moveToTrash failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still present after trashing")
	}

	var rescued string
	err := filepath.WalkDir(trash, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Base(path) == "keep.txt" {
			rescued = path
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if rescued == "" {
		t.Fatal("file not found under trash")
	}
	got, err := os.ReadFile(rescued)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "precious" {
		t.Errorf("trashed content = %q", got)
	}
}

func TestMoveToTrashMissingSource(t *testing.T) {
	if err := moveToTrash(t.TempDir(), t.TempDir(), "ghost.txt"); err == nil {
		t.Fatal("expected error when the source does not exist")
	}
}
