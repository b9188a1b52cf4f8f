package main

import (
	"context"

	"github.com/alc6/pgtemplate/changes"
	"github.com/alc6/pgtemplate/pg"
	"github.com/alc6/pgtemplate/templates"
)

// FileDiscoverer finds the SQL files that make up a template
type FileDiscoverer interface {
	// DiscoverFiles returns the files for env in execution order; env may be empty
	DiscoverFiles(env string) ([]string, error)
	// Root returns the repository directory
	Root() string
}

// TemplateBuilder builds and inspects template databases
type TemplateBuilder interface {
	// Create builds a template unconditionally
	Create(ctx context.Context, name string, files []string) error
	// SmartCreate builds a template only when it is stale or missing
	SmartCreate(ctx context.Context, name string, files []string) (bool, error)
	// Check compares a template's metadata with the repository
	Check(name string) (*changes.Report, error)
	// Exists checks whether the template database exists
	Exists(ctx context.Context, name string) (bool, error)
	// List returns every recorded template
	List(ctx context.Context) ([]templates.Info, error)
	// Drop drops a template and its metadata
	Drop(ctx context.Context, name string) error
}

// DatabaseCloner copies templates into new databases
type DatabaseCloner interface {
	// Clone creates name from template
	Clone(ctx context.Context, template, name string) error
	// Drop drops a database
	Drop(ctx context.Context, name string) error
}

// Catalog describes the databases on the server
type Catalog interface {
	// DescribeDatabases lists databases with their sizes
	DescribeDatabases(ctx context.Context) ([]pg.DatabaseInfo, error)
}
