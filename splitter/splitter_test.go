package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSimpleStatements(t *testing.T) {
	stmts := Split("CREATE TABLE t (id INT);\nINSERT INTO t VALUES (1);\n")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE t (id INT)", stmts[0])
	assert.Equal(t, "INSERT INTO t VALUES (1)", stmts[1])

	for _, stmt := range stmts {
		assert.Equal(t, strings.TrimSpace(stmt), stmt)
		assert.False(t, strings.HasSuffix(stmt, ";"))
	}
}

func TestSplitDollarQuotedFunction(t *testing.T) {
	sql := `
CREATE OR REPLACE FUNCTION notify_all() RETURNS void AS $$
BEGIN
    RAISE NOTICE 'a; b; c;';
END;
$$ LANGUAGE plpgsql;

GRANT EXECUTE ON FUNCTION notify_all() TO app_user;
`
	stmts := Split(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, 5, strings.Count(stmts[0], ";"))
	assert.Contains(t, stmts[0], "RAISE NOTICE 'a; b; c;';")
	assert.Contains(t, stmts[0], "END;")
	assert.True(t, strings.HasSuffix(stmts[0], "LANGUAGE plpgsql"))
	assert.Equal(t, "GRANT EXECUTE ON FUNCTION notify_all() TO app_user", stmts[1])
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "empty_input",
			sql:  "",
			want: nil,
		},
		{
			name: "only_comments_and_blank_lines",
			sql:  "-- header\n\n/* block\n comment */\n   \n",
			want: nil,
		},
		{
			name: "multiple_statements_on_one_line",
			sql:  "SELECT 1; SELECT 2;SELECT 3;",
			want: []string{"SELECT 1", "SELECT 2", "SELECT 3"},
		},
		{
			name: "missing_trailing_semicolon",
			sql:  "SELECT 1;\nSELECT 2\n",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "multi_line_statement",
			sql:  "CREATE TABLE users (\n    id serial primary key,\n    email text\n);",
			want: []string{"CREATE TABLE users (\n    id serial primary key,\n    email text\n)"},
		},
		{
			name: "semicolon_in_string_literal",
			sql:  "INSERT INTO t VALUES ('a;b');\nSELECT 1;",
			want: []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name: "doubled_quote_in_string",
			sql:  "INSERT INTO t VALUES ('it''s; fine');SELECT 2;",
			want: []string{"INSERT INTO t VALUES ('it''s; fine')", "SELECT 2"},
		},
		{
			name: "escape_string",
			sql:  `INSERT INTO t VALUES (E'a\'; b');SELECT 2;`,
			want: []string{`INSERT INTO t VALUES (E'a\'; b')`, "SELECT 2"},
		},
		{
			name: "semicolon_in_quoted_identifier",
			sql:  `CREATE TABLE "odd;name" (id int);SELECT 1;`,
			want: []string{`CREATE TABLE "odd;name" (id int)`, "SELECT 1"},
		},
		{
			name: "trailing_line_comment",
			sql:  "SELECT 1; -- first\nSELECT 2; -- second; with semicolon\n",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "comment_between_lines_of_statement",
			sql:  "SELECT a,\n-- pick b too;\n b FROM t;",
			want: []string{"SELECT a,\n\n b FROM t"},
		},
		{
			name: "nested_block_comment",
			sql:  "/* outer /* inner; */ still comment; */ SELECT 1;",
			want: []string{"SELECT 1"},
		},
		{
			name: "named_dollar_tag",
			sql:  "CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $body$ LANGUAGE sql;SELECT 2;",
			want: []string{"CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $body$ LANGUAGE sql", "SELECT 2"},
		},
		{
			name: "nested_distinct_tags",
			sql:  "DO $outer$ BEGIN EXECUTE $inner$ SELECT 1; $inner$; END $outer$;SELECT 2;",
			want: []string{"DO $outer$ BEGIN EXECUTE $inner$ SELECT 1; $inner$; END $outer$", "SELECT 2"},
		},
		{
			name: "other_tag_does_not_close",
			sql:  "SELECT $a$ x $b$; y $a$;SELECT 2;",
			want: []string{"SELECT $a$ x $b$; y $a$", "SELECT 2"},
		},
		{
			name: "empty_dollar_body",
			sql:  "CREATE FUNCTION noop() RETURNS void AS $$$$ LANGUAGE sql;\nSELECT 1;",
			want: []string{"CREATE FUNCTION noop() RETURNS void AS $$$$ LANGUAGE sql", "SELECT 1"},
		},
		{
			name: "comments_inside_dollar_body_are_kept",
			sql:  "DO $$\n-- keep; me\n/* and; me */\nBEGIN NULL; END\n$$;",
			want: []string{"DO $$\n-- keep; me\n/* and; me */\nBEGIN NULL; END\n$$"},
		},
		{
			name: "positional_parameter_is_not_a_tag",
			sql:  "PREPARE q AS SELECT $1;SELECT 2;",
			want: []string{"PREPARE q AS SELECT $1", "SELECT 2"},
		},
		{
			name: "dollar_inside_identifier_is_not_a_tag",
			sql:  "SELECT price$usd$ FROM t;SELECT 2;",
			want: []string{"SELECT price$usd$ FROM t", "SELECT 2"},
		},
		{
			name: "unterminated_dollar_quote",
			sql:  "SELECT 1;\nDO $$ BEGIN; END;",
			want: []string{"SELECT 1", "DO $$ BEGIN; END;"},
		},
		{
			name: "unterminated_string",
			sql:  "SELECT 'open; still open",
			want: []string{"SELECT 'open; still open"},
		},
		{
			name: "empty_statements_dropped",
			sql:  ";;SELECT 1;;\n;",
			want: []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.sql))
		})
	}
}

func TestSplitMultipleFunctions(t *testing.T) {
	sql := `
-- schema
CREATE TABLE audit (id serial primary key, msg text);

CREATE FUNCTION log_msg(m text) RETURNS void AS $fn$
BEGIN
    INSERT INTO audit (msg) VALUES (m || ';');
END;
$fn$ LANGUAGE plpgsql;

CREATE FUNCTION touch() RETURNS trigger AS $$
BEGIN
    NEW.updated_at := now(); -- set timestamp;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

/* seed */
SELECT log_msg('ready');
`
	stmts := Split(sql)
	require.Len(t, stmts, 4)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE audit"))
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE FUNCTION log_msg"))
	assert.Contains(t, stmts[1], "VALUES (m || ';');")
	assert.True(t, strings.HasPrefix(stmts[2], "CREATE FUNCTION touch"))
	assert.Contains(t, stmts[2], "-- set timestamp;")
	assert.Equal(t, "SELECT log_msg('ready')", stmts[3])
}
