// Package folders defines the on-disk layout latus uses on both sides:
// the hidden metadata tree inside the cloud root and the per-user
// application directories (config, logs) on the local machine.
package folders

import (
	"fmt"
	"os"
	"path/filepath"
)

// Name is the project name. It prefixes the hidden cloud metadata folder
// (".latus") so the cloud client replicates it without showing it to users.
const Name = "latus"

// CloudFolders derives the metadata paths under a cloud root.
// All nodes agree on this layout; it is the only rendezvous between them.
type CloudFolders struct {
	root string
}

// NewCloudFolders returns the layout rooted at cloudRoot.
func NewCloudFolders(cloudRoot string) CloudFolders {
	return CloudFolders{root: filepath.Join(cloudRoot, "."+Name)}
}

// Latus is the hidden metadata folder itself.
func (c CloudFolders) Latus() string { return c.root }

// Cache holds the encrypted content blobs, one per unique file content,
// named <sha512hex>.fer.
func (c CloudFolders) Cache() string { return filepath.Join(c.root, "cache") }

// NodeDB holds one sqlite event database per node (<nodeID>.db).
func (c CloudFolders) NodeDB() string { return filepath.Join(c.root, "nodedb") }

// MIV holds the shared monotonically increasing value.
func (c CloudFolders) MIV() string { return filepath.Join(c.root, "miv") }

// Trash receives files removed by remote deletions instead of unlinking them.
func (c CloudFolders) Trash() string { return filepath.Join(c.root, "trash") }

// EnsureAll creates every cloud-side folder.
func (c CloudFolders) EnsureAll() error {
	for _, dir := range []string{c.Cache(), c.NodeDB(), c.MIV(), c.Trash()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// AppDirs locates the per-user latus directories on the local machine.
type AppDirs struct {
	base string
}

// NewAppDirs returns the application directories rooted at base.
// An empty base falls back to ~/.latus (or the cwd if the home directory
// cannot be resolved, mirroring how tests run in scratch dirs).
func NewAppDirs(base string) AppDirs {
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, "."+Name)
	}
	return AppDirs{base: base}
}

// Base is the root application directory.
func (a AppDirs) Base() string { return a.base }

// ConfigFile is the YAML configuration path.
func (a AppDirs) ConfigFile() string { return filepath.Join(a.base, "config.yaml") }

// KeyFile is the default armored key path.
func (a AppDirs) KeyFile() string { return filepath.Join(a.base, "latus.key") }

// Logs is the diagnostic log directory.
func (a AppDirs) Logs() string { return filepath.Join(a.base, "logs") }
