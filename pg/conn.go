package pg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/alc6/pgtemplate/dbname"
)

// Conn is a single-connection pool scoped to one database.
type Conn struct {
	db   *sqlx.DB
	name string
}

// Connect opens a connection to database name using the server's
// credentials.
func (s *Server) Connect(ctx context.Context, name string) (*Conn, error) {
	if err := dbname.Validate(name); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driverName, s.cfg.DSN(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", name, err)
	}
	db.SetMaxOpenConns(1)

	slog.Debug("connected to database", "database", name)
	return &Conn{db: db, name: name}, nil
}

// Name returns the database the connection is bound to.
func (c *Conn) Name() string {
	return c.name
}

// DB exposes the connection for ad hoc queries.
func (c *Conn) DB() *sqlx.DB {
	return c.db
}

// Begin starts a transaction.
func (c *Conn) Begin(ctx context.Context) (*Tx, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction on %s: %w", c.name, err)
	}
	return &Tx{tx: tx}, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.db.Close()
}

// Tx is an open transaction.
type Tx struct {
	tx *sqlx.Tx
}

// Exec runs one statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string) error {
	_, err := t.tx.ExecContext(ctx, query)
	return err
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
