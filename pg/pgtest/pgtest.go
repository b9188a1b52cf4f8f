// Package pgtest starts a disposable PostgreSQL server for integration
// tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alc6/pgtemplate/pg"
)

// Image is the PostgreSQL image used by integration tests.
const Image = "postgres:16-alpine"

// Start runs a PostgreSQL container for the duration of t and returns the
// configuration of its administrative database. It skips t in -short mode.
func Start(t testing.TB) pg.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgresql integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		Image,
		postgres.WithDatabase("postgres"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute)),
	)
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	cfg, err := pg.ConfigFromURL(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	cfg.MaxOpenConns = 8
	return cfg
}

// Open starts a server with Start and connects to it.
func Open(t testing.TB) *pg.Server {
	t.Helper()
	cfg := Start(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	server, err := pg.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to open server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })
	return server
}
