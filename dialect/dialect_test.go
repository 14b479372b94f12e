package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax"
)

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$3", PostgreSQL.Placeholder(3))
	assert.Equal(t, "?", MySQL.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))
	assert.Equal(t, "@P3", MSSQL.Placeholder(3))
	assert.Equal(t, "$3, $4, $5", PostgreSQL.Placeholders(2, 3))
	assert.Equal(t, "?, ?", MySQL.Placeholders(7, 2))
	assert.Equal(t, "", MSSQL.Placeholders(0, 0))
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		d    DatabaseType
		in   string
		want string
	}{
		{PostgreSQL, "users", "users"},
		{PostgreSQL, "user", `"user"`},
		{PostgreSQL, "Order", `"Order"`},
		{PostgreSQL, "first name", `"first name"`},
		{PostgreSQL, `a"b`, `"a""b"`},
		{SQLite, "group", `"group"`},
		{MySQL, "key", "`key`"},
		{MySQL, "a`b", "`a``b`"},
		{MySQL, "email", "email"},
		{MSSQL, "order", "[order]"},
		{MSSQL, "a]b", "[a]]b]"},
		{MSSQL, "name", "name"},
		{PostgreSQL, "1abc", `"1abc"`},
		{PostgreSQL, "_ok1", "_ok1"},
	}
	for _, tt := range tests {
		t.Run(tt.d.String()+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.QuoteIdent(tt.in))
		})
	}
	assert.Equal(t, `public."user"`, PostgreSQL.QuoteQualified("public", "user"))
	assert.Equal(t, "users", PostgreSQL.QuoteQualified("", "users"))
	assert.Equal(t, `u."select"`, PostgreSQL.QuoteColumn("u.select"))
	assert.Equal(t, "u.*", MySQL.QuoteColumn("u.*"))
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, `'it''s'`, PostgreSQL.Literal("it's"))
	assert.Equal(t, `N'it''s'`, MSSQL.Literal("it's"))
	assert.Equal(t, `'a\\b'`, MySQL.Literal(`a\b`))
	assert.Equal(t, `'x'`, SQLite.Literal("x"))
}

func TestTransactionKeywords(t *testing.T) {
	assert.Equal(t, "BEGIN", PostgreSQL.Begin())
	assert.Equal(t, "START TRANSACTION", MySQL.Begin())
	assert.Equal(t, "BEGIN", SQLite.Begin())
	assert.Equal(t, "BEGIN TRANSACTION", MSSQL.Begin())
	assert.Equal(t, "COMMIT", MySQL.Commit())
	assert.Equal(t, "COMMIT TRANSACTION", MSSQL.Commit())
	assert.Equal(t, "ROLLBACK", PostgreSQL.Rollback())
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name          string
		d             DatabaseType
		query         string
		limit, offset int
		want          string
	}{
		{"PGLimit", PostgreSQL, "SELECT * FROM t", 10, 0, "SELECT * FROM t LIMIT 10"},
		{"PGBoth", PostgreSQL, "SELECT * FROM t", 10, 5, "SELECT * FROM t LIMIT 10 OFFSET 5"},
		{"PGOffsetOnly", PostgreSQL, "SELECT * FROM t", -1, 5, "SELECT * FROM t OFFSET 5"},
		{"MySQLOffsetOnly", MySQL, "SELECT * FROM t", -1, 5, "SELECT * FROM t LIMIT 18446744073709551615 OFFSET 5"},
		{"SQLiteOffsetOnly", SQLite, "SELECT * FROM t", -1, 5, "SELECT * FROM t LIMIT -1 OFFSET 5"},
		{"None", MSSQL, "SELECT * FROM t", -1, 0, "SELECT * FROM t"},
		{"MSSQLTop", MSSQL, "SELECT * FROM t", 10, 0, "SELECT TOP 10 * FROM t"},
		{"MSSQLTopDistinct", MSSQL, "SELECT DISTINCT a FROM t", 3, 0, "SELECT DISTINCT TOP 3 a FROM t"},
		{"MSSQLFetch", MSSQL, "SELECT * FROM t ORDER BY id", 10, 0, "SELECT * FROM t ORDER BY id OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"MSSQLOffsetNoOrder", MSSQL, "SELECT * FROM t", 10, 20, "SELECT * FROM t ORDER BY (SELECT NULL) OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"MSSQLSubqueryOrder", MSSQL, "SELECT * FROM (SELECT a FROM t ORDER BY a) x", 1, 0, "SELECT TOP 1 * FROM (SELECT a FROM t ORDER BY a) x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Paginate(tt.query, tt.limit, tt.offset))
		})
	}
}

func TestHasOrderBy(t *testing.T) {
	assert.True(t, HasOrderBy("select a from t order by a"))
	assert.False(t, HasOrderBy("SELECT 'ORDER BY' FROM t"))
	assert.False(t, HasOrderBy("SELECT reorder BY FROM t"))
	assert.False(t, HasOrderBy("SELECT * FROM (SELECT a FROM t ORDER BY a) x"))
}

func TestParse(t *testing.T) {
	for name, want := range map[string]DatabaseType{
		"postgresql": PostgreSQL,
		"Postgres":   PostgreSQL,
		"mysql":      MySQL,
		"mariadb":    MySQL,
		"sqlite3":    SQLite,
		"sqlserver":  MSSQL,
		"mssql":      MSSQL,
	} {
		got, ok := Parse(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := Parse("oracle")
	assert.False(t, ok)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", PostgreSQL.DriverName())
	assert.Equal(t, "mysql", MySQL.DriverName())
	assert.Equal(t, "sqlite", SQLite.DriverName())
	assert.Equal(t, "sqlserver", MSSQL.DriverName())
	assert.Equal(t, "", DatabaseType(0).DriverName())
	assert.Equal(t, "DatabaseType(9)", DatabaseType(9).String())
}

func TestUnsupported(t *testing.T) {
	err := SQLite.Unsupported("partitioning", "no %s support", "table partitions")
	assert.True(t, prax.IsUnsupported(err))
	assert.EqualError(t, err, "prax: partitioning is unsupported on SQLite: no table partitions support")
}

func TestBooleans(t *testing.T) {
	assert.Equal(t, "TRUE", PostgreSQL.True())
	assert.Equal(t, "FALSE", SQLite.False())
	assert.Equal(t, "1 = 1", MSSQL.True())
	assert.Equal(t, "1 = 0", MSSQL.False())
}
