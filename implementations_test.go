package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alc6/pgtemplate/config"
	"github.com/alc6/pgtemplate/pg"
	"github.com/alc6/pgtemplate/sqlrepo"
	"github.com/alc6/pgtemplate/templates"
)

func TestPostgreSQLAdmin(t *testing.T) {
	t.Run("new_postgresql_admin", func(t *testing.T) {
		admin := NewPostgreSQLAdmin(&pg.Server{})
		assert.NotNil(t, admin)
		var _ templates.Admin = admin
	})
}

func TestRepositoryDiscoverer(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"0_schema/001_users.sql":        "create table users (id int);",
		"1_seed_common/001_roles.sql":   "insert into roles values (1);",
		"2_seed_test/001_fixtures.sql":  "insert into users values (1);",
		"3_functions/001_helpers.sql":   "create function f() returns int as $$ select 1 $$ language sql;",
		"4_seed_dev/001_dev_users.sql":  "insert into users values (2);",
		"5_fixtures_test/001_extra.sql": "insert into users values (3);",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	repo, err := sqlrepo.New(root)
	require.NoError(t, err)

	cfg := config.Config{Environments: map[string]config.Environment{
		"test": {
			IncludeDirectories: []string{"3_functions"},
			ExcludeDirectories: []string{"5_fixtures_test"},
		},
	}}
	discoverer := NewRepositoryDiscoverer(repo, cfg)
	assert.Equal(t, root, discoverer.Root())

	rel := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			r, err := filepath.Rel(root, p)
			require.NoError(t, err)
			out[i] = filepath.ToSlash(r)
		}
		return out
	}

	t.Run("no_environment", func(t *testing.T) {
		found, err := discoverer.DiscoverFiles("")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"1_seed_common/001_roles.sql",
			"3_functions/001_helpers.sql",
		}, rel(found))
	})

	t.Run("configured_environment", func(t *testing.T) {
		found, err := discoverer.DiscoverFiles("test")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"1_seed_common/001_roles.sql",
			"2_seed_test/001_fixtures.sql",
			"3_functions/001_helpers.sql",
		}, rel(found))
	})

	t.Run("unconfigured_environment", func(t *testing.T) {
		found, err := discoverer.DiscoverFiles("dev")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"1_seed_common/001_roles.sql",
			"4_seed_dev/001_dev_users.sql",
		}, rel(found))
	})
}
