package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv isolates a test from the caller's libpq environment and .env.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE", "PGTEMPLATE_REPO"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgtemplate.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[database]
host = "db.internal"
port = 6543
user = "builder"
password = "secret"
name = "admin"
connect_timeout = "3s"

[repository]
path = "migrations"
exclude = ["**/scratch/**"]

[clone]
timeout = "45s"
max_concurrent = 4

[watch]
debounce = "2s"

[environments.test]
include_directories = ["3_functions"]
exclude_directories = ["2_seed_test_large"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 3*time.Second, cfg.Database.ConnectTimeout.Duration)
	assert.Equal(t, "migrations", cfg.Repository.Path)
	assert.Equal(t, []string{"**/scratch/**"}, cfg.Repository.Exclude)
	assert.Equal(t, 45*time.Second, cfg.Clone.Timeout.Duration)
	assert.Equal(t, 4, cfg.Clone.MaxConcurrent)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce.Duration)

	filter := cfg.Filter("test")
	assert.Equal(t, "test", filter.Name)
	assert.Equal(t, []string{"3_functions"}, filter.IncludeDirectories)
	assert.Equal(t, []string{"2_seed_test_large"}, filter.ExcludeDirectories)
	assert.Equal(t, []string{"test"}, cfg.EnvironmentNames())
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "postgres", cfg.Database.Name)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "sql", cfg.Repository.Path)
	assert.Equal(t, 30*time.Second, cfg.Clone.Timeout.Duration)
	assert.Equal(t, 10, cfg.Clone.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce.Duration)

	filter := cfg.Filter("dev")
	assert.Equal(t, "dev", filter.Name)
	assert.Empty(t, filter.IncludeDirectories)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[database]
host = "from-file"
port = 5432
`)
	t.Setenv("PGHOST", "from-env")
	t.Setenv("PGPORT", "15432")
	t.Setenv("PGPASSWORD", "envpass")
	t.Setenv("PGTEMPLATE_REPO", "/srv/sql")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.Equal(t, "envpass", cfg.Database.Password)
	assert.Equal(t, "/srv/sql", cfg.Repository.Path)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is set, even to "".
	require.NoError(t, os.Unsetenv("PGUSER"))
	require.NoError(t, os.WriteFile(".env", []byte("PGUSER=dotenv_user\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv_user", cfg.Database.User)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		errMsg  string
	}{
		{
			name:    "malformed_toml",
			content: "[database\nhost = ",
			errMsg:  "failed to parse config file",
		},
		{
			name:    "bad_duration",
			content: "[clone]\ntimeout = \"soon\"",
			errMsg:  "failed to parse config file",
		},
		{
			name:    "port_out_of_range",
			content: "[database]\nport = 70000",
			errMsg:  "database.port",
		},
		{
			name:    "negative_concurrency",
			content: "[clone]\nmax_concurrent = -1",
			errMsg:  "clone.max_concurrent",
		},
		{
			name:    "invalid_pgport",
			content: "",
			env:     map[string]string{"PGPORT": "abc"},
			errMsg:  "invalid PGPORT",
		},
		{
			name:    "conflicting_environment",
			content: "[environments.ci]\ninclude_directories = [\"3_x\"]\nexclude_directories = [\"3_x\"]",
			errMsg:  "both included and excluded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfigPG(t *testing.T) {
	cfg := Config{Database: Database{
		Host:           "localhost",
		Port:           5432,
		User:           "postgres",
		Password:       "pw",
		Name:           "postgres",
		SSLMode:        "disable",
		ConnectTimeout: Duration{5 * time.Second},
		MaxOpenConns:   3,
	}}

	pgCfg := cfg.PG()
	assert.Equal(t, "localhost", pgCfg.Host)
	assert.Equal(t, 5*time.Second, pgCfg.ConnectTimeout)
	assert.Equal(t, 3, pgCfg.MaxOpenConns)
	assert.Equal(t, "postgres", pgCfg.Database)
}
