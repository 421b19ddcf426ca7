package folders

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCloudFoldersLayout(t *testing.T) {
	c := NewCloudFolders(filepath.Join("some", "cloud"))

	want := filepath.Join("some", "cloud", ".latus")
	if c.Latus() != want {
		t.Errorf("Latus() = %q, want %q", c.Latus(), want)
	}
	if filepath.Dir(c.Cache()) != want {
		t.Errorf("Cache() not under metadata folder: %q", c.Cache())
	}
	if filepath.Base(c.NodeDB()) != "nodedb" {
		t.Errorf("NodeDB() = %q", c.NodeDB())
	}
	if filepath.Base(c.MIV()) != "miv" {
		t.Errorf("MIV() = %q", c.MIV())
	}
	if filepath.Base(c.Trash()) != "trash" {
		t.Errorf("Trash() = %q", c.Trash())
	}
}

func TestEnsureAll(t *testing.T) {
	root := t.TempDir()
	c := NewCloudFolders(root)
	if err := c.EnsureAll(); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	for _, dir := range []string{c.Cache(), c.NodeDB(), c.MIV(), c.Trash()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("missing %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestAppDirs(t *testing.T) {
	base := t.TempDir()
	a := NewAppDirs(base)
	if a.Base() != base {
		t.Errorf("Base() = %q, want %q", a.Base(), base)
	}
	if filepath.Dir(a.ConfigFile()) != base {
		t.Errorf("ConfigFile() not under base: %q", a.ConfigFile())
	}
	if filepath.Dir(a.Logs()) != base {
		t.Errorf("Logs() not under base: %q", a.Logs())
	}
}

func TestAppDirsDefault(t *testing.T) {
	a := NewAppDirs("")
	if filepath.Base(a.Base()) != "."+Name {
		t.Errorf("default base = %q, want a .%s directory", a.Base(), Name)
	}
}
