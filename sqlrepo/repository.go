// Package sqlrepo discovers the SQL files that make up a template, in the
// order they must be executed.
//
// A repository is either flat (.sql files directly under the root) or
// structured: numbered subdirectories such as 0_schema, 1_seed_common and
// 2_seed_dev whose names encode execution order and environment.
package sqlrepo

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const sqlExt = ".sql"

var structuredDir = regexp.MustCompile(`^[0-9]+_`)

// knownEnvironments are suffixes that tag a directory as environment
// specific even without a _seed_ prefix.
var knownEnvironments = map[string]struct{}{
	"dev":         {},
	"development": {},
	"test":        {},
	"testing":     {},
	"ci":          {},
	"local":       {},
	"staging":     {},
	"stage":       {},
	"qa":          {},
	"prod":        {},
	"production":  {},
}

// Filter selects directories for one named environment.
type Filter struct {
	Name               string
	IncludeDirectories []string
	ExcludeDirectories []string
}

// Repository is a validated SQL repository root.
type Repository struct {
	root string
}

// New returns a Repository rooted at path, which must be an existing
// directory.
func New(path string) (*Repository, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("sql repository does not exist: %s", path)
		}
		return nil, fmt.Errorf("failed to stat sql repository %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sql repository is not a directory: %s", path)
	}
	return &Repository{root: path}, nil
}

// Root returns the repository path.
func (r *Repository) Root() string {
	return r.root
}

// IsStructured reports whether the root has at least one numbered
// subdirectory.
func (r *Repository) IsStructured() (bool, error) {
	dirs, err := r.subdirectories()
	if err != nil {
		return false, err
	}
	for _, dir := range dirs {
		if structuredDir.MatchString(dir) {
			return true, nil
		}
	}
	return false, nil
}

// Discover returns the SQL files for the given environments in execution
// order.
func (r *Repository) Discover(envs ...string) ([]string, error) {
	structured, err := r.IsStructured()
	if err != nil {
		return nil, err
	}
	if !structured {
		files, err := sqlFiles(r.root)
		if err != nil {
			return nil, err
		}
		slog.Debug("discovered flat repository", "root", r.root, "files", len(files))
		return files, nil
	}

	dirs, err := r.subdirectories()
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, dir := range dirs {
		if structuredDir.MatchString(dir) && includeDirectory(dir, envs) {
			selected = append(selected, dir)
		}
	}
	return r.collect(selected, envs)
}

// DiscoverFilter discovers files for filter.Name, then adds the filter's
// include directories and removes its exclude directories.
func (r *Repository) DiscoverFilter(filter Filter) ([]string, error) {
	structured, err := r.IsStructured()
	if err != nil {
		return nil, err
	}

	var envs []string
	if filter.Name != "" {
		envs = []string{filter.Name}
	}
	if !structured {
		return r.Discover(envs...)
	}

	dirs, err := r.subdirectories()
	if err != nil {
		return nil, err
	}

	include := toSet(filter.IncludeDirectories)
	exclude := toSet(filter.ExcludeDirectories)

	var selected []string
	for _, dir := range dirs {
		if _, ok := exclude[dir]; ok {
			continue
		}
		if _, ok := include[dir]; ok {
			selected = append(selected, dir)
			continue
		}
		if structuredDir.MatchString(dir) && includeDirectory(dir, envs) {
			selected = append(selected, dir)
		}
	}
	return r.collect(selected, envs)
}

func (r *Repository) collect(dirs []string, envs []string) ([]string, error) {
	sortDirectories(dirs)

	var files []string
	for _, dir := range dirs {
		dirFiles, err := sqlFiles(filepath.Join(r.root, dir))
		if err != nil {
			return nil, err
		}
		files = append(files, dirFiles...)
	}

	slog.Debug("discovered structured repository", "root", r.root, "environments", envs, "directories", dirs, "files", len(files))
	return files, nil
}

// sortDirectories orders by numeric prefix value, so 10_x runs after 2_x,
// then by name.
func sortDirectories(dirs []string) {
	sort.SliceStable(dirs, func(i, j int) bool {
		pi, iok := numericPrefix(dirs[i])
		pj, jok := numericPrefix(dirs[j])
		if iok && jok && pi != pj {
			return pi < pj
		}
		if iok != jok {
			return iok
		}
		return dirs[i] < dirs[j]
	})
}

func numericPrefix(dir string) (int, bool) {
	digits := dir[:len(dir)-len(strings.TrimLeft(dir, "0123456789"))]
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r *Repository) subdirectories() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read sql repository %s: %w", r.root, err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	return dirs, nil
}

// includeDirectory applies the environment selection rules to one
// numbered directory name.
func includeDirectory(dir string, envs []string) bool {
	if strings.Contains(dir, "_schema") || strings.Contains(dir, "_seed_common") {
		return true
	}
	if len(envs) == 0 {
		return !isEnvironmentTagged(dir)
	}
	for _, env := range envs {
		if env == "" {
			continue
		}
		if strings.Contains(dir, "_seed_"+env) || strings.Contains(dir, "_"+env) {
			return true
		}
	}
	return false
}

func isEnvironmentTagged(dir string) bool {
	if strings.Contains(dir, "_seed_") {
		return true
	}
	tokens := strings.Split(dir, "_")
	_, ok := knownEnvironments[strings.ToLower(tokens[len(tokens)-1])]
	return ok && len(tokens) > 1
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), sqlExt) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// LoadSQLContent reads a SQL file as UTF-8 text.
func LoadSQLContent(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read sql file %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("sql file %s is not valid utf-8", path)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
