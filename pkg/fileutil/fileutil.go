// Package fileutil provides case-insensitive file lookup over real and
// embedded file systems. Flowchart documents and music files authored on
// case-insensitive systems keep working on Linux.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive searches dir for a regular file named filename,
// ignoring case, and returns its actual path.
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/path/to/dir", "Theme.MID")
//	// Will find "theme.mid", "THEME.MID", "Theme.mid", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	name, err := findEntry(os.DirFS(dir), ".", filename, false)
	if err != nil {
		return "", fmt.Errorf("%w (searched in %s)", err, dir)
	}
	return filepath.Join(dir, name), nil
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive for an fs.FS.
// Paths use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	name, err := findEntry(fsys, dir, filename, false)
	if err != nil {
		return "", fmt.Errorf("%w (searched in %s)", err, dir)
	}
	return path.Join(dir, name), nil
}

// findEntry returns the real name of the entry of dir matching name.
// Exact matches win over case-folded ones.
func findEntry(fsys fs.FS, dir, name string, wantDir bool) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	match := ""
	for _, entry := range entries {
		if entry.IsDir() != wantDir {
			continue
		}
		if entry.Name() == name {
			return name, nil
		}
		if match == "" && strings.EqualFold(entry.Name(), name) {
			match = entry.Name()
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", fs.ErrNotExist, name)
	}
	return match, nil
}

// HasExt reports whether name ends in one of exts, ignoring case.
// Extensions include the dot: HasExt("A.TOML", ".toml") is true.
func HasExt(name string, exts ...string) bool {
	ext := path.Ext(strings.ReplaceAll(name, "\\", "/"))
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
