// Package walker enumerates the regular files under a sync root.
package walker

import (
	"io/fs"
	"path/filepath"
	"strings"

	"latus/internal/folders"
)

// Walk returns the slash-separated relative paths of all regular files under
// root, in lexicographic order. The hidden latus metadata tree and common
// editor droppings are skipped so a cloud root can double as a sync root
// without the metadata feeding back into itself.
func Walk(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == "."+folders.Name {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || skipFile(name) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// FullPath joins a relative path from Walk back onto its root.
func FullPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// skipFile filters editor temp/swap files that churn during saves.
func skipFile(name string) bool {
	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") {
		return true
	}
	return name == ".DS_Store"
}
