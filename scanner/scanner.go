// Package scanner fingerprints the SQL files under a directory tree.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
)

// MetadataDir is skipped during scans; it holds template metadata, not SQL.
const MetadataDir = ".pgtemplate"

// File is a scanned file: its slash-separated path relative to the scan
// root and the hex digest of its contents.
type File struct {
	Path string
	Hash string
}

// ScanError wraps any failure encountered while walking or reading.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("failed to scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scanner walks a tree and hashes the files it is configured to track.
type Scanner struct {
	extSet  map[string]struct{}
	exclude []string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions replaces the tracked extensions (default ".sql").
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.extSet = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extSet[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// WithExclude skips relative paths matching any of the doublestar patterns.
func WithExclude(patterns ...string) Option {
	return func(s *Scanner) {
		s.exclude = append(s.exclude, patterns...)
	}
}

// New returns a Scanner tracking .sql files.
func New(opts ...Option) *Scanner {
	s := &Scanner{extSet: map[string]struct{}{".sql": {}}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan hashes every .sql file under root with the default scanner.
func Scan(root string) ([]File, error) {
	return New().Scan(root)
}

// Scan returns the tracked files under root sorted by path. It either
// returns every file or an error; partial results are never returned.
func (s *Scanner) Scan(root string) ([]File, error) {
	slog.Debug("scanning directory", "root", root)

	// WalkDir does not descend into a symlinked root, so resolve it first.
	// Symlinks below the root are still skipped.
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	var files []File
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			slog.Debug("skipping symlink", "path", rel)
			return nil
		}

		if d.IsDir() {
			if rel != "." && (d.Name() == MetadataDir || s.isExcluded(rel)) {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !s.shouldTrack(rel) {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		files = append(files, File{Path: rel, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	slog.Debug("scan completed", "root", root, "files", len(files))
	return files, nil
}

func (s *Scanner) shouldTrack(rel string) bool {
	if _, ok := s.extSet[strings.ToLower(filepath.Ext(rel))]; !ok {
		return false
	}
	return !s.isExcluded(rel)
}

func (s *Scanner) isExcluded(rel string) bool {
	for _, pattern := range s.exclude {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// HashBytes formats the xxhash64 digest of data as 16 lowercase hex digits.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}
