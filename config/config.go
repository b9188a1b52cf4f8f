// Package config loads pgtemplate settings from a TOML file, an optional
// .env file and the standard libpq environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alc6/pgtemplate/pg"
	"github.com/alc6/pgtemplate/sqlrepo"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "pgtemplate.toml"

// Duration is a time.Duration that decodes from strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Database holds the administrative connection settings.
type Database struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	Name           string   `toml:"name"`
	SSLMode        string   `toml:"sslmode"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	MaxOpenConns   int      `toml:"max_open_conns"`
}

// Repository locates the SQL files.
type Repository struct {
	Path    string   `toml:"path"`
	Exclude []string `toml:"exclude"`
}

// Clone bounds clone operations.
type Clone struct {
	Timeout       Duration `toml:"timeout"`
	MaxConcurrent int      `toml:"max_concurrent"`
}

// Watch configures the watch command.
type Watch struct {
	Debounce Duration `toml:"debounce"`
}

// Environment adjusts directory discovery for one environment.
type Environment struct {
	IncludeDirectories []string `toml:"include_directories"`
	ExcludeDirectories []string `toml:"exclude_directories"`
}

// Config holds all application configuration.
type Config struct {
	Database     Database               `toml:"database"`
	Repository   Repository             `toml:"repository"`
	Clone        Clone                  `toml:"clone"`
	Watch        Watch                  `toml:"watch"`
	Environments map[string]Environment `toml:"environments"`
}

// Load reads path, then .env, then the environment, and returns a
// validated Config. A missing config file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	applyDefaults(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Database.Host, "PGHOST")
	setString(&cfg.Database.User, "PGUSER")
	setString(&cfg.Database.Password, "PGPASSWORD")
	setString(&cfg.Database.Name, "PGDATABASE")
	setString(&cfg.Database.SSLMode, "PGSSLMODE")
	setString(&cfg.Repository.Path, "PGTEMPLATE_REPO")

	if v := os.Getenv("PGPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PGPORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "postgres"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnectTimeout.Duration == 0 {
		cfg.Database.ConnectTimeout.Duration = 10 * time.Second
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Repository.Path == "" {
		cfg.Repository.Path = "sql"
	}
	if cfg.Clone.Timeout.Duration == 0 {
		cfg.Clone.Timeout.Duration = 30 * time.Second
	}
	if cfg.Clone.MaxConcurrent == 0 {
		cfg.Clone.MaxConcurrent = 10
	}
	if cfg.Watch.Debounce.Duration == 0 {
		cfg.Watch.Debounce.Duration = 500 * time.Millisecond
	}
}

func validate(cfg Config) error {
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}
	if cfg.Database.MaxOpenConns < 1 {
		return errors.New("database.max_open_conns must be >= 1")
	}
	if cfg.Clone.Timeout.Duration < 0 {
		return errors.New("clone.timeout must not be negative")
	}
	if cfg.Clone.MaxConcurrent < 1 {
		return errors.New("clone.max_concurrent must be >= 1")
	}
	if cfg.Watch.Debounce.Duration < 0 {
		return errors.New("watch.debounce must not be negative")
	}
	for name, env := range cfg.Environments {
		for _, dir := range env.IncludeDirectories {
			for _, excluded := range env.ExcludeDirectories {
				if dir == excluded {
					return fmt.Errorf("environments.%s: %q is both included and excluded", name, dir)
				}
			}
		}
	}
	return nil
}

// PG returns the connection settings for the pg package.
func (c Config) PG() pg.Config {
	return pg.Config{
		Host:           c.Database.Host,
		Port:           c.Database.Port,
		User:           c.Database.User,
		Password:       c.Database.Password,
		Database:       c.Database.Name,
		SSLMode:        c.Database.SSLMode,
		ConnectTimeout: c.Database.ConnectTimeout.Duration,
		MaxOpenConns:   c.Database.MaxOpenConns,
	}
}

// Filter returns the discovery filter for env. Environments without a
// config section discover with the built-in directory rules only.
func (c Config) Filter(env string) sqlrepo.Filter {
	e := c.Environments[env]
	return sqlrepo.Filter{
		Name:               env,
		IncludeDirectories: e.IncludeDirectories,
		ExcludeDirectories: e.ExcludeDirectories,
	}
}

// EnvironmentNames returns the configured environments sorted by name.
func (c Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
