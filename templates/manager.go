// Package templates builds template databases from ordered SQL files and
// skips the build when the files have not changed since the last one.
package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alc6/pgtemplate/changes"
	"github.com/alc6/pgtemplate/dbname"
	"github.com/alc6/pgtemplate/splitter"
	"github.com/alc6/pgtemplate/sqlrepo"
)

// State is the build state of a template.
type State int

const (
	// Absent means no metadata record exists.
	Absent State = iota
	// Stale means the record no longer matches the SQL files.
	Stale
	// Current means the record matches the SQL files.
	Current
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Stale:
		return "stale"
	case Current:
		return "current"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BuildError identifies the file and statement that failed a build.
// Statement is 1-based; it is 0 when the failure was not tied to a statement.
type BuildError struct {
	Template  string
	File      string
	Statement int
	Err       error
}

func (e *BuildError) Error() string {
	if e.Statement > 0 {
		return fmt.Sprintf("failed to build template %s: %s statement %d: %v", e.Template, e.File, e.Statement, e.Err)
	}
	return fmt.Sprintf("failed to build template %s: %s: %v", e.Template, e.File, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Info describes a template known to the metadata store.
type Info struct {
	Name      string
	CreatedAt time.Time
	Files     int
	Exists    bool
}

// Manager owns the lifecycle of template databases.
type Manager struct {
	admin    Admin
	detector *changes.Detector
}

// NewManager returns a Manager that records builds with detector.
func NewManager(admin Admin, detector *changes.Detector) *Manager {
	return &Manager{
		admin:    admin,
		detector: detector,
	}
}

// Create builds template name from files, executed in order with one
// transaction per file. The stored metadata is invalidated once the
// database has been created, so a failed build leaves the template stale
// while a rejected CREATE DATABASE leaves an existing record untouched.
func (m *Manager) Create(ctx context.Context, name string, files []string) error {
	if err := dbname.Validate(name); err != nil {
		return err
	}

	// The scan is taken before execution so edits made during the build
	// show up as changes on the next check.
	scanned, err := m.detector.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan repository: %w", err)
	}

	slog.Info("creating template", "template", name, "files", len(files))
	start := time.Now()

	if err := m.admin.CreateDatabase(ctx, name); err != nil {
		return fmt.Errorf("failed to create template database %s: %w", name, err)
	}

	if err := m.detector.RemoveMetadata(name); err != nil {
		return err
	}

	session, err := m.admin.Connect(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to connect to template %s: %w", name, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Error("failed to close template session", "template", name, "error", err)
		}
	}()

	for _, file := range files {
		if err := m.executeFile(ctx, session, name, file); err != nil {
			return err
		}
	}

	if err := m.detector.StoreMetadata(name, scanned); err != nil {
		return fmt.Errorf("failed to store metadata for %s: %w", name, err)
	}

	slog.Info("template created", "template", name, "files", len(files), "duration", time.Since(start))
	return nil
}

func (m *Manager) executeFile(ctx context.Context, session Session, name, file string) error {
	content, err := sqlrepo.LoadSQLContent(file)
	if err != nil {
		return &BuildError{Template: name, File: file, Err: err}
	}
	statements := splitter.Split(content)
	slog.Debug("executing sql file", "template", name, "file", file, "statements", len(statements))

	tx, err := session.Begin(ctx)
	if err != nil {
		return &BuildError{Template: name, File: file, Err: err}
	}

	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			rollback(tx, name, file)
			return &BuildError{Template: name, File: file, Statement: i + 1, Err: err}
		}
		if err := tx.Exec(ctx, stmt); err != nil {
			rollback(tx, name, file)
			return &BuildError{Template: name, File: file, Statement: i + 1, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &BuildError{Template: name, File: file, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func rollback(tx Tx, name, file string) {
	if err := tx.Rollback(); err != nil {
		slog.Error("failed to roll back", "template", name, "file", file, "error", err)
	}
}

// SmartCreate rebuilds name only when its files changed or the database is
// missing. It reports whether a build ran.
func (m *Manager) SmartCreate(ctx context.Context, name string, files []string) (bool, error) {
	if err := dbname.Validate(name); err != nil {
		return false, err
	}

	stale, err := m.detector.NeedsRebuild(name)
	if err != nil {
		return false, fmt.Errorf("failed to check template %s: %w", name, err)
	}

	exists, err := m.admin.DatabaseExists(ctx, name)
	if err != nil {
		return false, err
	}

	if !stale && exists {
		slog.Info("template is current, skipping build", "template", name)
		return false, nil
	}
	if !stale {
		slog.Warn("template metadata is current but database is missing", "template", name)
	}

	if exists {
		if err := m.admin.DropDatabase(ctx, name); err != nil {
			return false, fmt.Errorf("failed to drop stale template %s: %w", name, err)
		}
	}

	if err := m.Create(ctx, name, files); err != nil {
		return false, err
	}
	return true, nil
}

// State returns the build state of name according to its metadata.
func (m *Manager) State(name string) (State, error) {
	report, err := m.detector.Check(name)
	if err != nil {
		return Absent, err
	}
	switch {
	case report.BuiltAt.IsZero():
		return Absent, nil
	case report.Stale:
		return Stale, nil
	default:
		return Current, nil
	}
}

// Exists reports whether the template database exists.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if err := dbname.Validate(name); err != nil {
		return false, err
	}
	return m.admin.DatabaseExists(ctx, name)
}

// Drop drops the template database if present and forgets its metadata.
func (m *Manager) Drop(ctx context.Context, name string) error {
	if err := dbname.Validate(name); err != nil {
		return err
	}
	if err := m.admin.DropDatabase(ctx, name); err != nil {
		return fmt.Errorf("failed to drop template %s: %w", name, err)
	}
	if err := m.detector.RemoveMetadata(name); err != nil {
		return err
	}
	slog.Info("template dropped", "template", name)
	return nil
}

// List returns every template with stored metadata.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	records, err := m.detector.List()
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(records))
	for _, rec := range records {
		exists, err := m.admin.DatabaseExists(ctx, rec.TemplateName)
		if err != nil {
			return nil, err
		}
		infos = append(infos, Info{
			Name:      rec.TemplateName,
			CreatedAt: rec.CreatedAt,
			Files:     len(rec.FileHashes),
			Exists:    exists,
		})
	}
	return infos, nil
}

// Check returns the change report for name.
func (m *Manager) Check(name string) (*changes.Report, error) {
	return m.detector.Check(name)
}

// IsBuildError reports whether err came from executing SQL files.
func IsBuildError(err error) bool {
	var buildErr *BuildError
	return errors.As(err, &buildErr)
}
