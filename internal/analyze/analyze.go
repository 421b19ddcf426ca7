// Package analyze provides content-based set operations over folders:
// duplicate detection within a folder and difference/intersection between
// two folders. Two files are "the same" when their SHA-512 matches,
// regardless of name or location.
package analyze

import (
	"path/filepath"
	"sort"

	"latus/internal/hash"
	"latus/internal/logging"
	"latus/internal/walker"
)

// FilePath pairs a root with a relative path.
type FilePath struct {
	Root string
	Path string
}

// Abs returns the full path.
func (f FilePath) Abs() string {
	return filepath.Join(f.Root, filepath.FromSlash(f.Path))
}

// Analyzer runs content analysis using a shared hash cache, so repeated
// analysis of large folders stays cheap.
type Analyzer struct {
	hashes *hash.Cache
}

// New returns an Analyzer on top of cache.
func New(cache *hash.Cache) *Analyzer {
	return &Analyzer{hashes: cache}
}

// Hashes walks root and returns hash -> relative paths with that content.
func (a *Analyzer) Hashes(root string) (map[string][]string, error) {
	timer := logging.StartTimer(logging.CategoryHash, "analyze "+root)
	defer timer.Stop()

	paths, err := walker.Walk(root)
	if err != nil {
		return nil, err
	}
	byHash := make(map[string][]string)
	for _, rel := range paths {
		sum, _, err := a.hashes.Get(walker.FullPath(root, rel))
		if err != nil {
			logging.Get(logging.CategoryHash).Warn("no hash for %s: %v", rel, err)
			continue
		}
		byHash[sum] = append(byHash[sum], rel)
	}
	return byHash, nil
}

// NonUniques returns hash -> paths for contents occurring more than once
// under root.
func (a *Analyzer) NonUniques(root string) (map[string][]string, error) {
	byHash, err := a.Hashes(root)
	if err != nil {
		return nil, err
	}
	dupes := make(map[string][]string)
	for sum, paths := range byHash {
		if len(paths) > 1 {
			dupes[sum] = paths
		}
	}
	return dupes, nil
}

// Difference returns one representative file per content present in a but
// not in b. Moving the result into b makes b the union of both.
func (a *Analyzer) Difference(rootA, rootB string) ([]FilePath, error) {
	hashesA, err := a.Hashes(rootA)
	if err != nil {
		return nil, err
	}
	hashesB, err := a.Hashes(rootB)
	if err != nil {
		return nil, err
	}
	var out []FilePath
	for sum, paths := range hashesA {
		if _, ok := hashesB[sum]; !ok {
			out = append(out, FilePath{Root: rootA, Path: paths[0]})
		}
	}
	sortFilePaths(out)
	return out, nil
}

// Intersection returns one representative file per content present in both
// a and b, drawn from b.
func (a *Analyzer) Intersection(rootA, rootB string) ([]FilePath, error) {
	hashesA, err := a.Hashes(rootA)
	if err != nil {
		return nil, err
	}
	hashesB, err := a.Hashes(rootB)
	if err != nil {
		return nil, err
	}
	var out []FilePath
	for sum, paths := range hashesB {
		if _, ok := hashesA[sum]; ok {
			out = append(out, FilePath{Root: rootB, Path: paths[0]})
		}
	}
	sortFilePaths(out)
	return out, nil
}

func sortFilePaths(fps []FilePath) {
	sort.Slice(fps, func(i, j int) bool { return fps[i].Path < fps[j].Path })
}
