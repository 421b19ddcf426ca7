package syncer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"latus/internal/logging"
)

// Status is the small user-visible state file each sync side maintains,
// e.g. local.json / cloud.json in the status directory. Count increments on
// every state change so external tooling can tell a live sync from a stuck
// one.
type Status struct {
	Count     int     `json:"count"`
	State     string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// Sync states written to the status file.
const (
	StateReady    = "ready"
	StateScanning = "scanning"
	StateWaiting  = "waiting"
)

// statusWriter persists the status for one sync side.
type statusWriter struct {
	path string
}

func newStatusWriter(dir, kind string) *statusWriter {
	return &statusWriter{path: filepath.Join(dir, kind+".json")}
}

// write records the new state. A corrupt or missing file resets the count
// rather than failing the sync.
func (w *statusWriter) write(state string) {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		logging.Get(logging.CategorySync).Warn("cannot write status file: %v", err)
		return
	}
	var st Status
	if data, err := os.ReadFile(w.path); err == nil {
		if err := json.Unmarshal(data, &st); err != nil {
			st = Status{}
		} else {
			st.Count++
		}
	}
	st.State = state
	st.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	data, err := json.Marshal(st)
	if err != nil {
		logging.Get(logging.CategorySync).Warn("cannot marshal status: %v", err)
		return
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		logging.Get(logging.CategorySync).Warn("cannot write status file: %v", err)
	}
}

// ReadStatus loads the status file for one sync side ("local" or "cloud").
func ReadStatus(dir, kind string) (Status, error) {
	var st Status
	data, err := os.ReadFile(filepath.Join(dir, kind+".json"))
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}
