// Package workspace discovers MiniYaml files on disk and seeds the
// query database with their contents.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oraide/oraml/internal/miniyaml"
	"github.com/oraide/oraml/internal/querydb"
)

// Scan walks root, loads every regular file matching one of the
// include globs, and adds it to db keyed by its slash-separated path
// relative to root. It returns the ids of the files added.
func Scan(db *querydb.Database, root string, include []string) ([]miniyaml.FileId, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var ids []miniyaml.FileId
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matches(rel, include) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ids = append(ids, db.AddFile(rel, string(raw)))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return ids, nil
}

func matches(rel string, include []string) bool {
	for _, pat := range include {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// NormalizeURI maps a file:// URI or plain path to the relative name
// used as the database key, given the workspace root.
func NormalizeURI(uri, root string) string {
	path := strings.TrimPrefix(uri, "file://")
	if abs, err := filepath.Abs(root); err == nil {
		if rel, err := filepath.Rel(abs, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
