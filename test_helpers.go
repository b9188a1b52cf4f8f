package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/alc6/pgtemplate/changes"
	"github.com/alc6/pgtemplate/pg"
	"github.com/alc6/pgtemplate/templates"
)

// MockFileDiscoverer is a mock implementation of FileDiscoverer for testing
type MockFileDiscoverer struct {
	DiscoverFilesFunc func(env string) ([]string, error)
	RootDir           string

	// Track calls for verification
	DiscoverFilesCalled bool
	DiscoveredEnv       string
}

func (m *MockFileDiscoverer) DiscoverFiles(env string) ([]string, error) {
	m.DiscoverFilesCalled = true
	m.DiscoveredEnv = env
	if m.DiscoverFilesFunc != nil {
		return m.DiscoverFilesFunc(env)
	}
	return []string{"/repo/0_schema/001_init.sql"}, nil
}

func (m *MockFileDiscoverer) Root() string {
	if m.RootDir != "" {
		return m.RootDir
	}
	return "/repo"
}

// MockTemplateBuilder is a mock implementation of TemplateBuilder for testing
type MockTemplateBuilder struct {
	CreateFunc      func(ctx context.Context, name string, files []string) error
	SmartCreateFunc func(ctx context.Context, name string, files []string) (bool, error)
	CheckFunc       func(name string) (*changes.Report, error)
	ExistsFunc      func(ctx context.Context, name string) (bool, error)
	ListFunc        func(ctx context.Context) ([]templates.Info, error)
	DropFunc        func(ctx context.Context, name string) error

	// Track calls for verification
	CreateCalled      bool
	SmartCreateCalled bool
	DropCalled        bool
	BuiltFiles        []string
}

func (m *MockTemplateBuilder) Create(ctx context.Context, name string, files []string) error {
	m.CreateCalled = true
	m.BuiltFiles = files
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, name, files)
	}
	return nil
}

func (m *MockTemplateBuilder) SmartCreate(ctx context.Context, name string, files []string) (bool, error) {
	m.SmartCreateCalled = true
	m.BuiltFiles = files
	if m.SmartCreateFunc != nil {
		return m.SmartCreateFunc(ctx, name, files)
	}
	return false, nil
}

func (m *MockTemplateBuilder) Check(name string) (*changes.Report, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(name)
	}
	return &changes.Report{
		Template: name,
		Stale:    true,
		Changes:  []changes.Change{{Reason: changes.ReasonNeverBuilt}},
	}, nil
}

func (m *MockTemplateBuilder) Exists(ctx context.Context, name string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, name)
	}
	return false, nil
}

func (m *MockTemplateBuilder) List(ctx context.Context) ([]templates.Info, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []templates.Info{}, nil
}

func (m *MockTemplateBuilder) Drop(ctx context.Context, name string) error {
	m.DropCalled = true
	if m.DropFunc != nil {
		return m.DropFunc(ctx, name)
	}
	return nil
}

// MockDatabaseCloner is a mock implementation of DatabaseCloner for testing
type MockDatabaseCloner struct {
	CloneFunc func(ctx context.Context, template, name string) error
	DropFunc  func(ctx context.Context, name string) error

	mu      sync.Mutex
	Clones  []string
	Dropped []string
}

func (m *MockDatabaseCloner) Clone(ctx context.Context, template, name string) error {
	m.mu.Lock()
	m.Clones = append(m.Clones, name)
	m.mu.Unlock()
	if m.CloneFunc != nil {
		return m.CloneFunc(ctx, template, name)
	}
	return nil
}

func (m *MockDatabaseCloner) Drop(ctx context.Context, name string) error {
	m.mu.Lock()
	m.Dropped = append(m.Dropped, name)
	m.mu.Unlock()
	if m.DropFunc != nil {
		return m.DropFunc(ctx, name)
	}
	return nil
}

// MockCatalog is a mock implementation of Catalog for testing
type MockCatalog struct {
	DescribeDatabasesFunc func(ctx context.Context) ([]pg.DatabaseInfo, error)
}

func (m *MockCatalog) DescribeDatabases(ctx context.Context) ([]pg.DatabaseInfo, error) {
	if m.DescribeDatabasesFunc != nil {
		return m.DescribeDatabasesFunc(ctx)
	}
	return []pg.DatabaseInfo{}, nil
}

// SimulateError simulates various database errors for testing
func SimulateError(errType string) error {
	switch errType {
	case "connection":
		return fmt.Errorf("connection refused")
	case "syntax":
		return fmt.Errorf("syntax error at or near 'INVALID'")
	case "permission":
		return fmt.Errorf("permission denied")
	default:
		return fmt.Errorf("simulated error: %s", errType)
	}
}
