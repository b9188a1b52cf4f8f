package sqlrepo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// relative strips root from discovered paths for readable assertions.
func relative(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func structuredRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"0_schema/002_posts.sql":      "create table posts (id int);",
		"0_schema/001_users.sql":      "create table users (id int);",
		"1_seed_common/001_roles.sql": "insert into roles values (1);",
		"2_seed_dev/001_demo.sql":     "insert into users values (1);",
		"2_seed_prod/001_admin.sql":   "insert into users values (2);",
		"3_functions/001_fn.sql":      "create function f() returns int as $$ select 1 $$ language sql;",
		"0_schema/README.md":          "ignored",
	})
	return root
}

func TestNew(t *testing.T) {
	t.Run("existing_directory", func(t *testing.T) {
		repo, err := New(t.TempDir())
		require.NoError(t, err)
		assert.NotNil(t, repo)
	})

	t.Run("missing_directory", func(t *testing.T) {
		_, err := New("/non/existent/directory")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/non/existent/directory")
	})

	t.Run("file_instead_of_directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.sql")
		require.NoError(t, os.WriteFile(path, []byte("select 1;"), 0644))

		_, err := New(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})
}

func TestDiscoverFlat(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"002_posts.sql":   "create table posts (id int);",
		"001_users.sql":   "create table users (id int);",
		"notes.txt":       "ignored",
		"nested/003.sql":  "ignored, not at the root",
		"schema/004.sql":  "ignored, not numbered",
		"010_indexes.SQL": "create index i on users(id);",
	})

	repo, err := New(root)
	require.NoError(t, err)

	structured, err := repo.IsStructured()
	require.NoError(t, err)
	assert.False(t, structured)

	files, err := repo.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_users.sql", "002_posts.sql", "010_indexes.SQL"}, relative(t, root, files))

	withEnv, err := repo.Discover("dev")
	require.NoError(t, err)
	assert.Equal(t, files, withEnv)
}

func TestDiscoverStructured(t *testing.T) {
	root := structuredRepo(t)
	repo, err := New(root)
	require.NoError(t, err)

	structured, err := repo.IsStructured()
	require.NoError(t, err)
	assert.True(t, structured)

	t.Run("dev_environment", func(t *testing.T) {
		files, err := repo.Discover("dev")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"0_schema/002_posts.sql",
			"1_seed_common/001_roles.sql",
			"2_seed_dev/001_demo.sql",
		}, relative(t, root, files))
	})

	t.Run("multiple_environments", func(t *testing.T) {
		files, err := repo.Discover("dev", "prod")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"0_schema/002_posts.sql",
			"1_seed_common/001_roles.sql",
			"2_seed_dev/001_demo.sql",
			"2_seed_prod/001_admin.sql",
		}, relative(t, root, files))
	})

	t.Run("no_environment_includes_untagged", func(t *testing.T) {
		files, err := repo.Discover()
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"0_schema/002_posts.sql",
			"1_seed_common/001_roles.sql",
			"3_functions/001_fn.sql",
		}, relative(t, root, files))
	})

	t.Run("stable_across_calls", func(t *testing.T) {
		first, err := repo.Discover("dev")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := repo.Discover("dev")
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

func TestDiscoverEnvironmentContains(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"0_schema/001.sql":      "select 1;",
		"1_fixtures_test/a.sql": "select 2;",
		"2_devices/a.sql":       "select 3;",
		"3_data_dev1/a.sql":     "select 4;",
	})
	repo, err := New(root)
	require.NoError(t, err)

	files, err := repo.Discover("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"0_schema/001.sql", "1_fixtures_test/a.sql"}, relative(t, root, files))

	// Any directory whose name contains _dev belongs to dev.
	files, err = repo.Discover("dev")
	require.NoError(t, err)
	assert.Equal(t, []string{"0_schema/001.sql", "2_devices/a.sql", "3_data_dev1/a.sql"}, relative(t, root, files))

	files, err = repo.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"0_schema/001.sql", "2_devices/a.sql", "3_data_dev1/a.sql"}, relative(t, root, files))
}

func TestDiscoverNumericDirectoryOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"10_schema_late/a.sql": "select 10;",
		"2_schema_views/a.sql": "select 2;",
		"0_schema/a.sql":       "select 0;",
	})
	repo, err := New(root)
	require.NoError(t, err)

	files, err := repo.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0_schema/a.sql",
		"2_schema_views/a.sql",
		"10_schema_late/a.sql",
	}, relative(t, root, files))
}

func TestDiscoverFilter(t *testing.T) {
	root := structuredRepo(t)
	repo, err := New(root)
	require.NoError(t, err)

	t.Run("include_extra_directory", func(t *testing.T) {
		files, err := repo.DiscoverFilter(Filter{
			Name:               "dev",
			IncludeDirectories: []string{"3_functions"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"0_schema/002_posts.sql",
			"1_seed_common/001_roles.sql",
			"2_seed_dev/001_demo.sql",
			"3_functions/001_fn.sql",
		}, relative(t, root, files))
	})

	t.Run("exclude_directory", func(t *testing.T) {
		files, err := repo.DiscoverFilter(Filter{
			Name:               "prod",
			ExcludeDirectories: []string{"1_seed_common"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0_schema/001_users.sql",
			"0_schema/002_posts.sql",
			"2_seed_prod/001_admin.sql",
		}, relative(t, root, files))
	})

	t.Run("empty_filter_matches_discover", func(t *testing.T) {
		filtered, err := repo.DiscoverFilter(Filter{})
		require.NoError(t, err)
		plain, err := repo.Discover()
		require.NoError(t, err)
		assert.Equal(t, plain, filtered)
	})
}

func TestLoadSQLContent(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads_text", func(t *testing.T) {
		path := filepath.Join(dir, "a.sql")
		require.NoError(t, os.WriteFile(path, []byte("\ufeffselect 1;"), 0644))

		content, err := LoadSQLContent(path)
		require.NoError(t, err)
		assert.Equal(t, "select 1;", content)
	})

	t.Run("missing_file", func(t *testing.T) {
		path := filepath.Join(dir, "missing.sql")
		_, err := LoadSQLContent(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("invalid_utf8", func(t *testing.T) {
		path := filepath.Join(dir, "bad.sql")
		require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0644))

		_, err := LoadSQLContent(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "utf-8")
	})
}

func TestDiscoverPermissionError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping permission test when running as root")
	}

	root := structuredRepo(t)
	repo, err := New(root)
	require.NoError(t, err)

	dir := filepath.Join(root, "0_schema")
	require.NoError(t, os.Chmod(dir, 0000))
	defer os.Chmod(dir, 0755)

	_, err = repo.Discover("dev")
	assert.Error(t, err)
}
