package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNotDirectory = errors.New("not a directory")

// EnsureReadableDir checks that dir exists, is a directory, and can be listed.
func EnsureReadableDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("watch directory not configured")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // read-only handle
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ListAudioFiles returns the absolute paths of regular files directly inside
// dir whose extension is in exts. Symlinks to regular files are listed under
// their link path. Subdirectories are not descended into and
// hidden files are skipped. The result is sorted.
func ListAudioFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := allowed[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		path := filepath.Join(absDir, name)
		if !isRegularFile(entry, path) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// isRegularFile accepts regular files and symlinks that resolve to one.
// Broken links are skipped.
func isRegularFile(entry fs.DirEntry, path string) bool {
	mode := entry.Type()
	if mode.IsRegular() {
		return true
	}
	if mode&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsSupported reports whether path carries one of exts, ignoring case.
func IsSupported(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
