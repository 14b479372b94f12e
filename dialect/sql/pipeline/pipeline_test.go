package pipeline

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

func TestToBatchSQL(t *testing.T) {
	p := New(dialect.PostgreSQL).
		Query("SELECT $1", 1).
		Query("SELECT $1, $2", 2, 3)
	query, params := p.ToBatchSQL()
	assert.Equal(t, "SELECT $1;\nSELECT $2, $3", query)
	assert.Equal(t, []sql.Value{sql.IntValue(1), sql.IntValue(2), sql.IntValue(3)}, params)

	p = New(dialect.MSSQL).
		Exec("UPDATE t SET a = @P1 WHERE id = @P2", "x", 1).
		Exec("DELETE FROM t WHERE id = @P1", 2)
	query, params = p.ToBatchSQL()
	assert.Equal(t, "UPDATE t SET a = @P1 WHERE id = @P2;\nDELETE FROM t WHERE id = @P3", query)
	assert.Len(t, params, 3)

	p = New(dialect.MySQL).Exec("DELETE FROM t WHERE id = ?", 1).Exec("SELECT 1")
	query, params = p.ToBatchSQL()
	assert.Equal(t, "DELETE FROM t WHERE id = ?;\nSELECT 1", query)
	assert.Len(t, params, 1)

	query, params = New(dialect.PostgreSQL).ToBatchSQL()
	assert.Empty(t, query)
	assert.Empty(t, params)
}

func TestToBatchSQL_Filters(t *testing.T) {
	p := New(dialect.PostgreSQL)
	for _, f := range []sql.Filter{
		sql.And(sql.Equals("a", 1), sql.In("b", 2, 3)),
		sql.Or(sql.Gt("c", 4), sql.IsNull("d")),
		sql.Contains("e", "x"),
	} {
		where, params := f.ToSQL(0)
		p.Statement(sql.Statement{SQL: "SELECT * FROM t WHERE " + where, Params: params, ExpectsRows: true})
	}
	query, params := p.ToBatchSQL()
	assert.Equal(t, "SELECT * FROM t WHERE (a = $1 AND b IN ($2, $3));\n"+
		"SELECT * FROM t WHERE (c > $4 OR d IS NULL);\n"+
		"SELECT * FROM t WHERE e LIKE $5", query)
	assert.Len(t, params, 5)
	assert.Equal(t, len(params), sql.CountParams(query))
}

func TestToTransactionSQL(t *testing.T) {
	for _, tt := range []struct {
		d             dialect.DatabaseType
		begin, commit string
	}{
		{dialect.PostgreSQL, "BEGIN", "COMMIT"},
		{dialect.MySQL, "START TRANSACTION", "COMMIT"},
		{dialect.SQLite, "BEGIN", "COMMIT"},
		{dialect.MSSQL, "BEGIN TRANSACTION", "COMMIT TRANSACTION"},
	} {
		t.Run(tt.d.String(), func(t *testing.T) {
			stmts := New(tt.d).Exec("A").Query("B").ToTransactionSQL()
			require.Len(t, stmts, 4)
			assert.Equal(t, tt.begin, stmts[0].SQL)
			assert.Equal(t, "A", stmts[1].SQL)
			assert.True(t, stmts[2].ExpectsRows)
			assert.Equal(t, tt.commit, stmts[3].SQL)
		})
	}
}

func TestIDs(t *testing.T) {
	p := New(dialect.SQLite).Exec("A").Exec("B").Push(Query{ID: "mine", SQL: "C"})
	qs := p.Queries()
	require.Len(t, qs, 3)
	assert.NotEmpty(t, qs[0].ID)
	assert.NotEqual(t, qs[0].ID, qs[1].ID)
	assert.Equal(t, "mine", qs[2].ID)
}

func TestIntoBatches(t *testing.T) {
	p := New(dialect.PostgreSQL)
	for i := range 5 {
		p.Exec(fmt.Sprintf("SELECT %d", i))
	}
	batches := p.IntoBatches(2)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{2, 2, 1}, []int{batches[0].Len(), batches[1].Len(), batches[2].Len()})
	assert.Equal(t, "SELECT 4", batches[2].Queries()[0].SQL)
	assert.Len(t, p.IntoBatches(0), 1)
	assert.Len(t, p.IntoBatches(10), 1)
	assert.Equal(t, dialect.PostgreSQL, batches[1].Dialect())
}

func TestBulkInsert(t *testing.T) {
	b := NewBulkInsert(dialect.PostgreSQL, "users", "email", "name").BatchSize(2)
	require.NoError(t, b.AddRow("a@x.io", "A"))
	require.NoError(t, b.AddRow("b@x.io", "B"))
	require.NoError(t, b.AddRow("c@x.io", "C"))
	stmts, err := b.ToInsertStatements()
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "INSERT INTO users (email, name) VALUES ($1, $2), ($3, $4)", stmts[0].SQL)
	assert.Equal(t, "INSERT INTO users (email, name) VALUES ($1, $2)", stmts[1].SQL)
	assert.Equal(t, []sql.Value{sql.StringValue("c@x.io"), sql.StringValue("C")}, stmts[1].Params)

	err = b.AddRow("only-one")
	require.Error(t, err)
	assert.True(t, prax.IsInvalidInput(err))
	assert.Equal(t, 3, b.Len())
}

func TestBulkInsert_Batching(t *testing.T) {
	for _, d := range dialect.All {
		for _, tt := range []struct{ rows, size, cols int }{
			{0, 3, 2}, {1, 3, 2}, {3, 3, 1}, {10, 3, 3}, {7, 1, 2}, {100, 7, 4},
		} {
			t.Run(fmt.Sprintf("%s/%d_%d_%d", d, tt.rows, tt.size, tt.cols), func(t *testing.T) {
				cols := make([]string, tt.cols)
				for i := range cols {
					cols[i] = fmt.Sprintf("c%d", i)
				}
				b := NewBulkInsert(d, "t", cols...).BatchSize(tt.size)
				for i := range tt.rows {
					row := make([]any, tt.cols)
					for j := range row {
						row[j] = i*tt.cols + j
					}
					require.NoError(t, b.AddRow(row...))
				}
				stmts, err := b.ToInsertStatements()
				require.NoError(t, err)
				require.Len(t, stmts, (tt.rows+tt.size-1)/tt.size)
				remaining := tt.rows
				for _, s := range stmts {
					want := min(tt.size, remaining) * tt.cols
					assert.Len(t, s.Params, want)
					assert.Equal(t, want, sql.CountParamsFor(d, s.SQL))
					remaining -= min(tt.size, remaining)
				}
			})
		}
	}
}

func TestBulkInsert_ParamLimit(t *testing.T) {
	cols := make([]string, 10)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	b := NewBulkInsert(dialect.MSSQL, "t", cols...).BatchSize(1000)
	assert.Equal(t, 210, b.EffectiveBatchSize())
	assert.Equal(t, 1000, NewBulkInsert(dialect.PostgreSQL, "t", cols...).EffectiveBatchSize())
	assert.Equal(t, DefaultBatchSize, NewBulkInsert(dialect.MySQL, "t", "a").BatchSize(0).EffectiveBatchSize())

	_, err := NewBulkInsert(dialect.MySQL, "", "a").ToInsertStatements()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = NewBulkInsert(dialect.MySQL, "t").ToInsertStatements()
	assert.True(t, prax.IsInvalidInput(err))
}

func newMock(t *testing.T, d dialect.DatabaseType) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(d, db), mock
}

func TestExecutor(t *testing.T) {
	drv, mock := newMock(t, dialect.PostgreSQL)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name FROM users WHERE id = $1").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ann"))
	mock.ExpectExec("DELETE FROM users WHERE id = $1").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := New(dialect.PostgreSQL).
		Query("SELECT name FROM users WHERE id = $1", 1).
		Exec("DELETE FROM users WHERE id = $1", 2)
	results, err := NewExecutor(drv, WithTransaction()).Execute(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []map[string]any{{"name": "Ann"}}, results[0].Rows)
	assert.Equal(t, int64(1), results[1].RowsAffected)
	assert.Equal(t, p.Queries()[1].ID, results[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_Rollback(t *testing.T) {
	drv, mock := newMock(t, dialect.MySQL)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t (a) VALUES (?)").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO t (a) VALUES (?)").WithArgs(int64(1)).WillReturnError(errors.New("duplicate"))
	mock.ExpectRollback()

	p := New(dialect.MySQL).Exec("INSERT INTO t (a) VALUES (?)", 1).Exec("INSERT INTO t (a) VALUES (?)", 1)
	_, err := NewExecutor(drv, WithTransaction()).Execute(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Contains(t, err.Error(), p.Queries()[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_DialectMismatch(t *testing.T) {
	drv, _ := newMock(t, dialect.MySQL)
	_, err := NewExecutor(drv).Execute(context.Background(), New(dialect.PostgreSQL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PostgreSQL pipeline on a MySQL driver")
}

func TestExecutor_SQLite(t *testing.T) {
	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	drv := sql.OpenDB(dialect.SQLite, db)
	ex := NewExecutor(drv, WithTransaction())

	_, err = ex.Execute(context.Background(), New(dialect.SQLite).Exec("CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)"))
	require.NoError(t, err)

	b := NewBulkInsert(dialect.SQLite, "users", "id", "email").BatchSize(2)
	for i := 1; i <= 5; i++ {
		require.NoError(t, b.AddRow(i, fmt.Sprintf("u%d@x.io", i)))
	}
	p, err := b.Pipeline()
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())
	p.Query("SELECT COUNT(*) AS n FROM users")
	results, err := ex.Execute(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, int64(2), results[0].RowsAffected)
	assert.Equal(t, int64(1), results[2].RowsAffected)
	assert.Equal(t, int64(5), results[3].Rows[0]["n"])
}
