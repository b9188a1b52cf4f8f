// Package changes decides whether a template database is stale relative to
// the SQL files it was built from.
//
// Each template's last-known file hashes live in a TOML record under
// <root>/.pgtemplate/<template>.toml. A missing record always means the
// template needs a rebuild. Scanner and storage failures are returned to the
// caller and never treated as staleness.
//
// Writers of the same template name are serialised around the final rename,
// but the last writer wins; callers that need one build per name at a time
// must coordinate that themselves.
package changes

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"

	"github.com/alc6/pgtemplate/dbname"
	"github.com/alc6/pgtemplate/scanner"
)

const metadataExt = ".toml"

// ErrNoMetadata is returned by LoadMetadata when no record exists.
var ErrNoMetadata = errors.New("no template metadata")

// Reason explains why a file makes a template stale.
type Reason string

const (
	ReasonNeverBuilt Reason = "never built"
	ReasonChanged    Reason = "file changed"
	ReasonAdded      Reason = "new file"
	ReasonMissing    Reason = "file missing"
)

// Change is a single difference between the stored record and a scan.
type Change struct {
	Path   string
	Reason Reason
}

// Report is the result of comparing a template's record with the tree.
type Report struct {
	Template string
	Stale    bool
	// BuiltAt is zero when the template has never been built.
	BuiltAt time.Time
	Changes []Change
}

// Metadata is the persisted record of a successful template build.
type Metadata struct {
	TemplateName string            `toml:"template_name"`
	CreatedAt    time.Time         `toml:"created_at"`
	FileHashes   map[string]string `toml:"file_hashes"`
}

// Files returns the stored hashes as scanner files sorted by path.
func (m *Metadata) Files() []scanner.File {
	files := make([]scanner.File, 0, len(m.FileHashes))
	for path, hash := range m.FileHashes {
		files = append(files, scanner.File{Path: path, Hash: hash})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files
}

// Detector compares scans of one repository root against stored records.
type Detector struct {
	root    string
	metaDir string
	scanner *scanner.Scanner
	now     func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithScanner replaces the default .sql scanner.
func WithScanner(s *scanner.Scanner) Option {
	return func(d *Detector) {
		d.scanner = s
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector returns a detector for the repository at root. Metadata is
// kept in root's .pgtemplate directory.
func NewDetector(root string, opts ...Option) *Detector {
	d := &Detector{
		root:    root,
		metaDir: filepath.Join(root, scanner.MetadataDir),
		scanner: scanner.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the scanned repository root.
func (d *Detector) Root() string {
	return d.root
}

// MetadataDir returns the directory holding template records.
func (d *Detector) MetadataDir() string {
	return d.metaDir
}

// Scan fingerprints the repository.
func (d *Detector) Scan() ([]scanner.File, error) {
	return d.scanner.Scan(d.root)
}

// NeedsRebuild reports whether the template has no record or its record no
// longer matches the repository.
func (d *Detector) NeedsRebuild(name string) (bool, error) {
	report, err := d.Check(name)
	if err != nil {
		return false, err
	}
	return report.Stale, nil
}

// Check compares the stored record for name with a fresh scan.
func (d *Detector) Check(name string) (*Report, error) {
	meta, err := d.LoadMetadata(name)
	if errors.Is(err, ErrNoMetadata) {
		slog.Debug("no metadata for template", "template", name)
		return &Report{
			Template: name,
			Stale:    true,
			Changes:  []Change{{Reason: ReasonNeverBuilt}},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	files, err := d.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository: %w", err)
	}

	changes := Compare(meta.FileHashes, files)
	report := &Report{
		Template: name,
		Stale:    len(changes) > 0 || len(files) != len(meta.FileHashes),
		BuiltAt:  meta.CreatedAt,
		Changes:  changes,
	}
	slog.Debug("checked template", "template", name, "stale", report.Stale, "changes", len(changes))
	return report, nil
}

// Compare returns the differences between stored hashes and a scan, sorted
// by path.
func Compare(stored map[string]string, current []scanner.File) []Change {
	var changes []Change
	seen := make(map[string]struct{}, len(current))

	for _, f := range current {
		seen[f.Path] = struct{}{}
		hash, ok := stored[f.Path]
		switch {
		case !ok:
			changes = append(changes, Change{Path: f.Path, Reason: ReasonAdded})
		case hash != f.Hash:
			changes = append(changes, Change{Path: f.Path, Reason: ReasonChanged})
		}
	}
	for path := range stored {
		if _, ok := seen[path]; !ok {
			changes = append(changes, Change{Path: path, Reason: ReasonMissing})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes
}

// StoreMetadata replaces the record for name with files.
func (d *Detector) StoreMetadata(name string, files []scanner.File) error {
	path, err := d.metadataPath(name)
	if err != nil {
		return err
	}

	meta := Metadata{
		TemplateName: name,
		CreatedAt:    d.now().UTC().Truncate(time.Second),
		FileHashes:   make(map[string]string, len(files)),
	}
	for _, f := range files {
		meta.FileHashes[f.Path] = f.Hash
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", name, err)
	}

	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(d.metaDir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	fileLock := flock.New(path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("failed to lock metadata for %s: %w", name, err)
	}
	defer func() { _ = fileLock.Unlock() }()

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", name, err)
	}

	slog.Debug("stored template metadata", "template", name, "files", len(files), "path", path)
	return nil
}

// Metadata returns the stored files for name sorted by path. ok is false
// when the template has no record.
func (d *Detector) Metadata(name string) (files []scanner.File, ok bool, err error) {
	meta, err := d.LoadMetadata(name)
	if errors.Is(err, ErrNoMetadata) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return meta.Files(), true, nil
}

// LoadMetadata reads the full record for name. It returns ErrNoMetadata
// when none exists.
func (d *Detector) LoadMetadata(name string) (*Metadata, error) {
	path, err := d.metadataPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoMetadata
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata for %s: %w", name, err)
	}

	var meta Metadata
	if _, err := toml.Decode(string(data), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", name, err)
	}
	if meta.FileHashes == nil {
		meta.FileHashes = map[string]string{}
	}
	return &meta, nil
}

// RemoveMetadata deletes the record for name. Removing a missing record is
// not an error.
func (d *Detector) RemoveMetadata(name string) error {
	path, err := d.metadataPath(name)
	if err != nil {
		return err
	}

	mu := lockFor(path)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove metadata for %s: %w", name, err)
	}
	_ = os.Remove(path + ".lock")
	return nil
}

// List returns every stored record sorted by template name.
func (d *Detector) List() ([]Metadata, error) {
	entries, err := os.ReadDir(d.metaDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata directory: %w", err)
	}

	var records []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metadataExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), metadataExt)
		if dbname.Validate(name) != nil {
			continue
		}
		meta, err := d.LoadMetadata(name)
		if errors.Is(err, ErrNoMetadata) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *meta)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].TemplateName < records[j].TemplateName
	})
	return records, nil
}

func (d *Detector) metadataPath(name string) (string, error) {
	if err := dbname.Validate(name); err != nil {
		return "", err
	}
	return filepath.Join(d.metaDir, name+metadataExt), nil
}

// flock does not exclude goroutines of the same process, so writers also
// hold a per-path mutex.
var pathLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
