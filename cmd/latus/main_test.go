package main

import (
	"path/filepath"
	"testing"
)

func TestPassphrasePrecedence(t *testing.T) {
	t.Setenv("LATUS_PASSPHRASE", "from-env")
	if got := passphrase("from-flag"); got != "from-flag" {
		t.Errorf("flag must win: got %q", got)
	}
	if got := passphrase(""); got != "from-env" {
		t.Errorf("empty flag falls back to env: got %q", got)
	}

	t.Setenv("LATUS_PASSPHRASE", "")
	if got := passphrase(""); got != "" {
		t.Errorf("no flag, no env: got %q", got)
	}
}

func TestAppDirsFollowsConfigFlag(t *testing.T) {
	orig := configDir
	defer func() { configDir = orig }()

	configDir = filepath.Join("custom", "dir")
	dirs := appDirs()
	if dirs.Base() != configDir {
		t.Errorf("Base = %q, want %q", dirs.Base(), configDir)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"init": false, "sync": false, "scan": false,
		"status": false, "analyze": false, "key": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
