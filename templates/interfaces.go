package templates

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mocks/mock_templates.go -package=mocks

// Admin manages databases over the administrative connection
type Admin interface {
	// CreateDatabase creates an empty database
	CreateDatabase(ctx context.Context, name string) error
	// DropDatabase drops a database if it exists
	DropDatabase(ctx context.Context, name string) error
	// DatabaseExists checks the catalog for a database
	DatabaseExists(ctx context.Context, name string) (bool, error)
	// Connect opens a session scoped to one database
	Connect(ctx context.Context, name string) (Session, error)
}

// Session is a connection to a single database
type Session interface {
	// Begin starts a transaction
	Begin(ctx context.Context) (Tx, error)
	// Close releases the connection
	Close() error
}

// Tx is an open transaction
type Tx interface {
	// Exec runs one statement
	Exec(ctx context.Context, query string) error
	// Commit commits the transaction
	Commit() error
	// Rollback aborts the transaction
	Rollback() error
}
