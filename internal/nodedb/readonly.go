package nodedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// OpenRead opens another node's database read-only. A node must never write
// (or even journal into) a database it does not own, so no pragmas, schema
// statements or migrations are run here.
func OpenRead(dir, nodeID string) (*DB, error) {
	path := filepath.Join(dir, nodeID+Ext)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("node database missing: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open node database read-only: %w", err)
	}
	return &DB{db: db, nodeID: nodeID, path: path}, nil
}
