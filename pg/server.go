// Package pg is the PostgreSQL side of pgtemplate: it opens connections and
// issues the DDL and catalog queries the template and clone managers need.
package pg

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/alc6/pgtemplate/dbname"
)

const driverName = "postgres"

// Config holds connection parameters for the administrative database.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	ConnectTimeout time.Duration
	MaxOpenConns   int
}

// DSN returns a lib/pq key=value connection string for database.
func (c Config) DSN(database string) string {
	params := []struct{ key, value string }{
		{"host", c.Host},
		{"port", portString(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", database},
		{"sslmode", c.SSLMode},
	}
	if c.ConnectTimeout > 0 {
		params = append(params, struct{ key, value string }{"connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds()))})
	}

	var parts []string
	for _, p := range params {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteParam(p.value))
	}
	return strings.Join(parts, " ")
}

// ConfigFromURL parses a postgres:// URL, as returned by testcontainers,
// into a Config.
func ConfigFromURL(raw string) (Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse connection url: %w", err)
	}

	cfg := Config{
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}
	if port := u.Port(); port != "" {
		cfg.Port, err = strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid port %q: %w", port, err)
		}
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	return cfg, nil
}

func portString(port int) string {
	if port == 0 {
		return ""
	}
	return strconv.Itoa(port)
}

func quoteParam(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Server is a connection to the administrative database, used for
// CREATE/DROP DATABASE and catalog lookups.
type Server struct {
	db  *sqlx.DB
	cfg Config
}

// Open connects to cfg.Database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Server, error) {
	slog.Debug("connecting to postgresql", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)

	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Database, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	slog.Debug("postgresql connection ready", "database", cfg.Database)
	return &Server{db: db, cfg: cfg}, nil
}

// DB returns the underlying administrative connection pool.
func (s *Server) DB() *sqlx.DB {
	return s.db
}

// Config returns the configuration the server was opened with.
func (s *Server) Config() Config {
	return s.cfg
}

// Close releases the pool.
func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const (
	createDatabaseStmt     = `CREATE DATABASE %s`
	createFromTemplateStmt = `CREATE DATABASE %s WITH TEMPLATE %s`
	dropDatabaseStmt       = `DROP DATABASE IF EXISTS %s`
)

// CreateDatabase creates an empty database.
func (s *Server) CreateDatabase(ctx context.Context, name string) error {
	ident, err := quoteName(name)
	if err != nil {
		return err
	}
	slog.Debug("creating database", "database", name)
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(createDatabaseStmt, ident))
	return err
}

// CreateDatabaseFromTemplate creates name as a copy of template.
func (s *Server) CreateDatabaseFromTemplate(ctx context.Context, name, template string) error {
	ident, err := quoteName(name)
	if err != nil {
		return err
	}
	tmpl, err := quoteName(template)
	if err != nil {
		return err
	}
	slog.Debug("creating database from template", "database", name, "template", template)
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(createFromTemplateStmt, ident, tmpl))
	return err
}

// DropDatabase drops name if it exists.
func (s *Server) DropDatabase(ctx context.Context, name string) error {
	ident, err := quoteName(name)
	if err != nil {
		return err
	}
	slog.Debug("dropping database", "database", name)
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(dropDatabaseStmt, ident))
	return err
}

// quoteName validates name and returns it as a quoted identifier.
func quoteName(name string) (string, error) {
	if err := dbname.Validate(name); err != nil {
		return "", err
	}
	return pq.QuoteIdentifier(name), nil
}
