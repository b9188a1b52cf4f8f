package pg

import (
	"context"
	"fmt"
	"log/slog"
)

// DatabaseInfo is a row of pg_database.
type DatabaseInfo struct {
	Name       string `db:"datname"`
	IsTemplate bool   `db:"datistemplate"`
	SizeBytes  int64  `db:"size_bytes"`
}

// DatabaseExists reports whether pg_database has a row for name.
func (s *Server) DatabaseExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`

	var exists bool
	if err := s.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("failed to check database %s: %w", name, err)
	}
	return exists, nil
}

// DescribeDatabases returns name, template flag and size for every
// connectable database other than template0/template1.
func (s *Server) DescribeDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	query := `
		SELECT
			datname,
			datistemplate,
			pg_database_size(datname) AS size_bytes
		FROM pg_database
		WHERE datallowconn
		AND datname NOT IN ('template0', 'template1')
		ORDER BY datname
	`

	var infos []DatabaseInfo
	if err := s.db.SelectContext(ctx, &infos, query); err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	slog.Debug("listed databases", "count", len(infos))
	return infos, nil
}
