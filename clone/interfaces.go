package clone

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mocks/mock_clone.go -package=mocks -mock_names=Admin=MockCloneAdmin

// Admin issues database DDL on behalf of the clone manager
type Admin interface {
	// CreateDatabaseFromTemplate runs CREATE DATABASE name WITH TEMPLATE template
	CreateDatabaseFromTemplate(ctx context.Context, name, template string) error
	// DropDatabase drops a database if it exists
	DropDatabase(ctx context.Context, name string) error
	// DatabaseExists checks the catalog for a database
	DatabaseExists(ctx context.Context, name string) (bool, error)
}
