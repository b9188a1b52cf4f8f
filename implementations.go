package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alc6/pgtemplate/changes"
	"github.com/alc6/pgtemplate/clone"
	"github.com/alc6/pgtemplate/config"
	"github.com/alc6/pgtemplate/pg"
	"github.com/alc6/pgtemplate/scanner"
	"github.com/alc6/pgtemplate/sqlrepo"
	"github.com/alc6/pgtemplate/templates"
)

// PostgreSQLAdmin adapts a pg.Server to the template manager.
type PostgreSQLAdmin struct {
	*pg.Server
}

func NewPostgreSQLAdmin(server *pg.Server) templates.Admin {
	return &PostgreSQLAdmin{Server: server}
}

func (a *PostgreSQLAdmin) Connect(ctx context.Context, name string) (templates.Session, error) {
	conn, err := a.Server.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	return &postgreSQLSession{conn: conn}, nil
}

type postgreSQLSession struct {
	conn *pg.Conn
}

func (s *postgreSQLSession) Begin(ctx context.Context) (templates.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *postgreSQLSession) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", s.conn.Name(), err)
	}
	return nil
}

// RepositoryDiscoverer discovers files with the configured environment
// filters.
type RepositoryDiscoverer struct {
	repo *sqlrepo.Repository
	cfg  config.Config
}

func NewRepositoryDiscoverer(repo *sqlrepo.Repository, cfg config.Config) FileDiscoverer {
	return &RepositoryDiscoverer{repo: repo, cfg: cfg}
}

func (d *RepositoryDiscoverer) DiscoverFiles(env string) ([]string, error) {
	if env == "" {
		return d.repo.Discover()
	}
	if _, ok := d.cfg.Environments[env]; !ok {
		slog.Debug("environment has no config section, using directory rules only",
			"env", env, "configured", d.cfg.EnvironmentNames())
	}
	return d.repo.DiscoverFilter(d.cfg.Filter(env))
}

func (d *RepositoryDiscoverer) Root() string {
	return d.repo.Root()
}

// Workspace wires a repository and a server together.
type Workspace struct {
	Server     *pg.Server
	Discoverer FileDiscoverer
	Templates  *templates.Manager
	Clones     *clone.Manager
	Debounce   time.Duration
}

// OpenWorkspace connects to the server and prepares the managers for the
// configured repository.
func OpenWorkspace(ctx context.Context, cfg config.Config) (*Workspace, error) {
	repo, err := sqlrepo.New(cfg.Repository.Path)
	if err != nil {
		return nil, err
	}

	server, err := pg.Open(ctx, cfg.PG())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	detector := changes.NewDetector(repo.Root(),
		changes.WithScanner(scanner.New(scanner.WithExclude(cfg.Repository.Exclude...))))

	slog.Debug("workspace ready", "repository", repo.Root(), "host", cfg.Database.Host)
	return &Workspace{
		Server:     server,
		Discoverer: NewRepositoryDiscoverer(repo, cfg),
		Templates:  templates.NewManager(NewPostgreSQLAdmin(server), detector),
		Clones: clone.NewManager(server, clone.Options{
			Timeout:       cfg.Clone.Timeout.Duration,
			MaxConcurrent: cfg.Clone.MaxConcurrent,
		}),
		Debounce: cfg.Watch.Debounce.Duration,
	}, nil
}

func (w *Workspace) Close() error {
	return w.Server.Close()
}
