package cte

import (
	stdsql "database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

func TestBuild_PostgresRecursive(t *testing.T) {
	stmt, err := With(CTE{
		Name:      "tree",
		Columns:   []string{"id", "parent_id", "depth"},
		Query:     sql.NewStatement("SELECT id, parent_id, 0 FROM categories WHERE id = $1 UNION ALL SELECT c.id, c.parent_id, t.depth + 1 FROM categories c JOIN tree t ON c.parent_id = t.id", 7),
		Recursive: true,
		Search:    &Search{DepthFirst: true, By: []string{"id"}, Set: "ord"},
		Cycle:     &Cycle{Columns: []string{"id"}, Set: "is_cycle", Using: "path"},
	}).Select("SELECT * FROM tree WHERE depth < $1", 3).Build(dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, "WITH RECURSIVE tree (id, parent_id, depth) AS ("+
		"SELECT id, parent_id, 0 FROM categories WHERE id = $1 UNION ALL SELECT c.id, c.parent_id, t.depth + 1 FROM categories c JOIN tree t ON c.parent_id = t.id)"+
		" SEARCH DEPTH FIRST BY id SET ord CYCLE id SET is_cycle USING path"+
		" SELECT * FROM tree WHERE depth < $2", stmt.SQL)
	assert.Equal(t, []sql.Value{sql.IntValue(7), sql.IntValue(3)}, stmt.Params)
	assert.True(t, stmt.ExpectsRows)
}

func TestBuild_Renumbering(t *testing.T) {
	stmt, err := With(
		CTE{Name: "a", Query: sql.NewStatement("SELECT id FROM users WHERE org = $1", "acme")},
		CTE{Name: "b", Query: sql.NewStatement("SELECT id FROM posts WHERE score > $1 AND kind = $2", 10, "x")},
	).Select("SELECT * FROM a JOIN b USING (id) WHERE a.id <> $1", 0).Build(dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, "WITH a AS (SELECT id FROM users WHERE org = $1), b AS (SELECT id FROM posts WHERE score > $2 AND kind = $3)"+
		" SELECT * FROM a JOIN b USING (id) WHERE a.id <> $4", stmt.SQL)
	assert.Len(t, stmt.Params, 4)
	assert.Equal(t, len(stmt.Params), sql.CountParams(stmt.SQL))
}

func TestBuild_Dialects(t *testing.T) {
	nums := func(placeholder string) CTE {
		return CTE{
			Name:         "nums",
			Columns:      []string{"n"},
			Query:        sql.NewStatement("SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < "+placeholder, 10),
			Recursive:    true,
			Materialized: Materialized,
			Search:       &Search{By: []string{"n"}, Set: "ord"},
		}
	}
	tests := []struct {
		name string
		d    dialect.DatabaseType
		b    *Builder
		sql  string
	}{
		{
			name: "Postgres",
			d:    dialect.PostgreSQL,
			b:    With(nums("$1")).Select("SELECT n FROM nums").Limit(5).Offset(2),
			sql:  "WITH RECURSIVE nums (n) AS MATERIALIZED (SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < $1) SEARCH BREADTH FIRST BY n SET ord SELECT n FROM nums LIMIT 5 OFFSET 2",
		},
		{
			name: "MySQL",
			d:    dialect.MySQL,
			b:    With(nums("?")).Select("SELECT n FROM nums").Limit(5),
			sql:  "WITH RECURSIVE nums (n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < ?) SELECT n FROM nums LIMIT 5",
		},
		{
			name: "SQLite",
			d:    dialect.SQLite,
			b:    With(nums("?")).Select("SELECT n FROM nums"),
			sql:  "WITH RECURSIVE nums (n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < ?) SELECT n FROM nums",
		},
		{
			name: "MSSQLTop",
			d:    dialect.MSSQL,
			b:    With(nums("@P1")).Select("SELECT n FROM nums").Limit(5),
			sql:  "WITH nums (n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < @P1) SELECT TOP 5 n FROM nums",
		},
		{
			name: "MSSQLFetch",
			d:    dialect.MSSQL,
			b:    With(nums("@P1")).Select("SELECT n FROM nums ORDER BY n").Limit(5),
			sql:  "WITH nums (n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < @P1) SELECT n FROM nums ORDER BY n OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.b.Build(tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, stmt.SQL)
			assert.Equal(t, []sql.Value{sql.IntValue(10)}, stmt.Params)
		})
	}
}

func TestBuild_NotMaterialized(t *testing.T) {
	c := CTE{Name: "recent", Query: sql.NewStatement("SELECT * FROM posts"), Materialized: NotMaterialized}
	stmt, err := With(c).Select("SELECT * FROM recent").Build(dialect.PostgreSQL)
	require.NoError(t, err)
	assert.Equal(t, "WITH recent AS NOT MATERIALIZED (SELECT * FROM posts) SELECT * FROM recent", stmt.SQL)

	stmt, err = With(c).Select("SELECT * FROM recent").Build(dialect.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "WITH recent AS (SELECT * FROM posts) SELECT * FROM recent", stmt.SQL)
}

func TestBuild_Errors(t *testing.T) {
	q := sql.NewStatement("SELECT 1")
	for name, b := range map[string]*Builder{
		"NoCTE":        With().Select("SELECT 1"),
		"NoMain":       With(CTE{Name: "a", Query: q}),
		"NoName":       With(CTE{Query: q}).Select("SELECT 1"),
		"NoQuery":      With(CTE{Name: "a"}).Select("SELECT 1"),
		"Duplicate":    With(CTE{Name: "a", Query: q}).Add(CTE{Name: "a", Query: q}).Select("SELECT 1"),
		"SearchNoRec":  With(CTE{Name: "a", Query: q, Search: &Search{By: []string{"id"}, Set: "o"}}).Select("SELECT 1"),
		"CycleNoUsing": With(CTE{Name: "a", Query: q, Recursive: true, Cycle: &Cycle{Columns: []string{"id"}, Set: "c"}}).Select("SELECT 1"),
		"SearchNoBy":   With(CTE{Name: "a", Query: q, Recursive: true, Search: &Search{Set: "o"}}).Select("SELECT 1"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build(dialect.PostgreSQL)
			require.Error(t, err)
			assert.True(t, prax.IsInvalidInput(err))
		})
	}
}

func TestBuild_SQLiteExec(t *testing.T) {
	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmt, err := With(CTE{
		Name:      "nums",
		Columns:   []string{"n"},
		Query:     sql.NewStatement("SELECT ? UNION ALL SELECT n + 1 FROM nums WHERE n < ?", 1, 10),
		Recursive: true,
	}).Select("SELECT n FROM nums WHERE n % ? = 0", 2).Limit(3).Offset(1).Build(dialect.SQLite)
	require.NoError(t, err)

	rows, err := db.Query(stmt.SQL, stmt.Args()...)
	require.NoError(t, err)
	defer rows.Close()
	var got []int
	for rows.Next() {
		var n int
		require.NoError(t, rows.Scan(&n))
		got = append(got, n)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{4, 6, 8}, got)
}
