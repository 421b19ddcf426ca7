package syncer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStatusWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	w := newStatusWriter(dir, "local")

	w.write(StateScanning)
	st, err := ReadStatus(dir, "local")
	if err != nil {
		t.Fatalf("ReadStatus failed: %v", err)
	}
	if st.State != StateScanning {
		t.Errorf("state = %q, want %q", st.State, StateScanning)
	}
	if st.Count != 0 {
		t.Errorf("first write count = %d, want 0", st.Count)
	}
	if st.Timestamp <= 0 {
		t.Errorf("timestamp not set: %v", st.Timestamp)
	}

	w.write(StateWaiting)
	st, err = ReadStatus(dir, "local")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateWaiting || st.Count != 1 {
		t.Errorf("second write = %+v, want waiting/1", st)
	}
}

func TestStatusCorruptFileResetsCount(t *testing.T) {
	dir := t.TempDir()
	w := newStatusWriter(dir, "cloud")
	w.write(StateReady)
	w.write(StateReady)

	path := filepath.Join(dir, "cloud.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadStatus(dir, "cloud"); err == nil {
		t.Error("ReadStatus should fail on corrupt file")
	}

	w.write(StateScanning)
	st, err := ReadStatus(dir, "cloud")
	if err != nil {
		t.Fatalf("write did not repair corrupt status: %v", err)
	}
	if st.Count != 0 {
		t.Errorf("count after corruption = %d, want 0", st.Count)
	}
}

func TestReadStatusMissing(t *testing.T) {
	if _, err := ReadStatus(t.TempDir(), "local"); err == nil {
		t.Fatal("expected error for missing status file")
	}
}
