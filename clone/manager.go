// Package clone copies template databases into new databases with
// CREATE DATABASE ... WITH TEMPLATE.
package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/alc6/pgtemplate/dbname"
	"github.com/alc6/pgtemplate/pg"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = 10

	cleanupTimeout = 30 * time.Second
)

// Options bounds clone operations.
type Options struct {
	Timeout       time.Duration
	MaxConcurrent int
}

// Manager clones and drops databases.
type Manager struct {
	admin   Admin
	timeout time.Duration
	sem     *semaphore.Weighted
}

// NewManager returns a Manager; zero option values take the defaults.
func NewManager(admin Admin, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Manager{
		admin:   admin,
		timeout: opts.Timeout,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

// ValidateDatabaseName checks name against PostgreSQL identifier rules.
func ValidateDatabaseName(name string) error {
	if err := dbname.Validate(name); err != nil {
		var nameErr *dbname.Error
		reason := err.Error()
		if errors.As(err, &nameErr) {
			reason = nameErr.Reason
		}
		return &Error{Kind: KindInvalidDatabaseName, Name: name, Reason: reason, Err: err}
	}
	return nil
}

// Clone creates database name from template. At most MaxConcurrent clones
// run at once; callers over the limit fail immediately.
func (m *Manager) Clone(ctx context.Context, template, name string) error {
	if err := ValidateDatabaseName(template); err != nil {
		return err
	}
	if err := ValidateDatabaseName(name); err != nil {
		return err
	}

	if !m.sem.TryAcquire(1) {
		return &Error{Kind: KindConnectionPoolExhausted, Name: name}
	}
	defer m.sem.Release(1)

	slog.Debug("cloning database", "template", template, "clone", name, "timeout", m.timeout)
	start := time.Now()

	cloneCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.admin.CreateDatabaseFromTemplate(cloneCtx, name, template)
	elapsed := time.Since(start)
	if err != nil {
		return m.classify(ctx, cloneCtx, err, template, name)
	}

	if ctx.Err() == nil && (elapsed > m.timeout || errors.Is(cloneCtx.Err(), context.DeadlineExceeded)) {
		slog.Warn("clone finished after timeout, dropping it", "clone", name, "elapsed", elapsed)
		m.cleanup(name)
		return &Error{Kind: KindCloneTimeout, Name: name, Timeout: m.timeout}
	}

	slog.Info("database cloned", "template", template, "clone", name, "duration", elapsed)
	return nil
}

// classify maps a failed CREATE DATABASE to an Error. A timeout is reported
// only when the clone's own deadline fired while the caller was still
// waiting.
func (m *Manager) classify(ctx, cloneCtx context.Context, err error, template, name string) error {
	if cause := ctx.Err(); cause != nil {
		return &Error{Kind: KindDatabaseError, Name: name, Reason: "clone canceled: " + cause.Error(), Err: errors.Join(cause, err)}
	}
	timedOut := errors.Is(cloneCtx.Err(), context.DeadlineExceeded)
	if timedOut && (errors.Is(err, context.DeadlineExceeded) || pg.SQLState(err) == pg.CodeQueryCanceled) {
		return &Error{Kind: KindCloneTimeout, Name: name, Timeout: m.timeout, Err: err}
	}

	switch pg.SQLState(err) {
	case pg.CodeDuplicateDatabase:
		return &Error{Kind: KindCloneAlreadyExists, Name: name, Err: err}
	case pg.CodeInvalidCatalogName:
		return &Error{Kind: KindTemplateNotFound, Name: template, Err: err}
	case pg.CodeInsufficientPrivilege:
		return &Error{Kind: KindInsufficientPermissions, Name: name, Reason: pg.ErrorMessage(err), Err: err}
	case pg.CodeTooManyConnections:
		return &Error{Kind: KindConnectionPoolExhausted, Name: name, Err: err}
	}
	return &Error{Kind: KindDatabaseError, Name: name, Reason: pg.ErrorMessage(err), Err: err}
}

// cleanup drops a clone that completed after its deadline. The caller's
// context may already be done, so a fresh one is used.
func (m *Manager) cleanup(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := m.admin.DropDatabase(ctx, name); err != nil {
		slog.Error("failed to drop timed out clone", "clone", name, "error", err)
	}
}

// Drop drops database name; dropping a missing database succeeds.
func (m *Manager) Drop(ctx context.Context, name string) error {
	if err := ValidateDatabaseName(name); err != nil {
		return err
	}
	if err := m.admin.DropDatabase(ctx, name); err != nil {
		switch pg.SQLState(err) {
		case pg.CodeInsufficientPrivilege:
			return &Error{Kind: KindInsufficientPermissions, Name: name, Reason: pg.ErrorMessage(err), Err: err}
		}
		return &Error{Kind: KindDatabaseError, Name: name, Reason: pg.ErrorMessage(err), Err: err}
	}
	slog.Info("database dropped", "database", name)
	return nil
}

// VerifyExists reports whether database name exists.
func (m *Manager) VerifyExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateDatabaseName(name); err != nil {
		return false, err
	}
	exists, err := m.admin.DatabaseExists(ctx, name)
	if err != nil {
		return false, &Error{Kind: KindDatabaseError, Name: name, Reason: pg.ErrorMessage(err), Err: err}
	}
	return exists, nil
}

// VerifyNotExists reports whether database name is absent.
func (m *Manager) VerifyNotExists(ctx context.Context, name string) (bool, error) {
	exists, err := m.VerifyExists(ctx, name)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// GenerateName returns prefix followed by a random suffix. The result is a
// valid database name whenever prefix is.
func GenerateName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return "db_" + suffix[:16]
	}
	if limit := dbname.MaxLength - 17; len(prefix) > limit {
		prefix = prefix[:limit]
	}
	return fmt.Sprintf("%s_%s", prefix, suffix[:16])
}
