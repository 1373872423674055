// Package fsutil provides the filesystem probes the daemon is built on.
// Probes are deliberately tolerant: a missing or unreadable path reads as
// "no results", and symlink creation swallows conflicts so that re-running
// an operation over the same run is idempotent.
package fsutil

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
)

// ListDir returns the absolute paths of the directory's children in lexical
// order. Missing or unreadable directories return an empty slice.
func ListDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Exists reports whether the path exists. Symlinks are followed, so a
// dangling link reads as absent.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether the path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// MkdirTree creates the directory and any missing parents, then applies the
// mode to the leaf.
func MkdirTree(path string, mode os.FileMode) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return err
	}
	return SetMode(path, mode)
}

// SetMode applies the mode to a single path.
func SetMode(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// RemoveTree removes the path and everything below it.
func RemoveTree(path string) error {
	return os.RemoveAll(path)
}

// Symlink creates a symbolic link from dest to src. The destination's parent
// is created if needed and any pre-existing file at dest is removed first.
// An empty src or dest is a no-op, and all errors (already exists, I/O) are
// swallowed; callers verify the link with Exists when they need to know.
func Symlink(src, dest string) {
	if src == "" || dest == "" {
		return
	}
	_ = os.MkdirAll(filepath.Dir(dest), 0o755)
	_ = os.Remove(dest)
	_ = os.Symlink(src, dest)
}

// Glob returns the paths under dir matching the shell pattern, lexically
// sorted. Errors read as no matches.
func Glob(dir, pattern string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// ChmodTree walks the tree and applies dirMode to directories and fileMode to
// regular files. Symlinks are left alone. The first error stops the walk.
func ChmodTree(root string, dirMode, fileMode os.FileMode) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return SetMode(path, dirMode)
		}
		return SetMode(path, fileMode)
	})
}

// WriteJSON marshals v and writes it atomically to path with the given mode,
// creating parent directories as needed.
func WriteJSON(path string, v any, mode os.FileMode) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, append(data, '\n'), mode)
}
