package upsert

import (
	stdsql "database/sql"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	_ "modernc.org/sqlite"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

func users() *Builder {
	return Into("users").Columns("email", "name").Values("a@x.io", "Ann")
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		dialect dialect.DatabaseType
		sql     string
		params  []sql.Value
	}{
		{
			name:    "MySQLDoUpdate",
			builder: users().OnConflict(Columns("email")).DoUpdate("name"),
			dialect: dialect.MySQL,
			sql:     "INSERT INTO users (email, name) VALUES (?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name)",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name:    "MySQLDoNothing",
			builder: users().OnConflict(Columns("email")).DoNothing(),
			dialect: dialect.MySQL,
			sql:     "INSERT IGNORE INTO users (email, name) VALUES (?, ?)",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name: "MySQLIncrementMultiRow",
			builder: Into("counters").Columns("k", "n").Values("a", 1).Values("b", 1).
				OnConflict(Columns("k")).DoUpdateSet(Increment("n", 1)),
			dialect: dialect.MySQL,
			sql:     "INSERT INTO counters (k, n) VALUES (?, ?), (?, ?) ON DUPLICATE KEY UPDATE n = n + ?",
			params:  []sql.Value{sql.StringValue("a"), sql.IntValue(1), sql.StringValue("b"), sql.IntValue(1), sql.IntValue(1)},
		},
		{
			name:    "MySQLPush",
			builder: Into("posts").Columns("id", "tags").Values(1, `["a"]`).OnConflict(Columns("id")).DoUpdateSet(Push("tags", "b")),
			dialect: dialect.MySQL,
			sql:     "INSERT INTO posts (id, tags) VALUES (?, ?) ON DUPLICATE KEY UPDATE tags = JSON_ARRAY_APPEND(tags, '$', ?)",
			params:  []sql.Value{sql.IntValue(1), sql.StringValue(`["a"]`), sql.StringValue("b")},
		},
		{
			name: "PostgresDoUpdate",
			builder: users().OnConflict(Columns("email")).DoUpdate("name").
				Where(sql.Equals("users.active", true)).Returning("id"),
			dialect: dialect.PostgreSQL,
			sql:     "INSERT INTO users (email, name) VALUES ($1, $2) ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name WHERE users.active = $3 RETURNING id",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann"), sql.BoolValue(true)},
		},
		{
			name:    "PostgresImplicitDoNothing",
			builder: users().DoNothing(),
			dialect: dialect.PostgreSQL,
			sql:     "INSERT INTO users (email, name) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name:    "PostgresConstraint",
			builder: users().OnConflict(Constraint("users_email_key")),
			dialect: dialect.PostgreSQL,
			sql:     "INSERT INTO users (email, name) VALUES ($1, $2) ON CONFLICT ON CONSTRAINT users_email_key DO NOTHING",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name:    "PostgresExpression",
			builder: users().OnConflict(IndexExpression("lower(email)")).DoUpdate("name"),
			dialect: dialect.PostgreSQL,
			sql:     "INSERT INTO users (email, name) VALUES ($1, $2) ON CONFLICT ((lower(email))) DO UPDATE SET name = EXCLUDED.name",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name: "PostgresAssignments",
			builder: Into("page_views").Columns("path", "visits").Values("/", 1).OnConflict(Columns("path")).
				DoUpdateSet(Increment("visits", 1), Set("seen_at", sql.Raw("now()")), Push("refs", "x")),
			dialect: dialect.PostgreSQL,
			sql:     "INSERT INTO page_views (path, visits) VALUES ($1, $2) ON CONFLICT (path) DO UPDATE SET visits = page_views.visits + $3, seen_at = now(), refs = array_append(page_views.refs, $4)",
			params:  []sql.Value{sql.StringValue("/"), sql.IntValue(1), sql.IntValue(1), sql.StringValue("x")},
		},
		{
			name:    "PostgresReservedAndExpr",
			builder: Into("public.order").Columns("user", "at").Values(1, sql.Raw("now()")).OnConflict(Columns("user")).DoUpdate("at"),
			dialect: dialect.PostgreSQL,
			sql:     `INSERT INTO public."order" ("user", at) VALUES ($1, now()) ON CONFLICT ("user") DO UPDATE SET at = EXCLUDED.at`,
			params:  []sql.Value{sql.IntValue(1)},
		},
		{
			name:    "SQLite",
			builder: users().OnConflict(Columns("email")).DoUpdate("name"),
			dialect: dialect.SQLite,
			sql:     "INSERT INTO users (email, name) VALUES (?, ?) ON CONFLICT (email) DO UPDATE SET name = excluded.name",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name:    "SQLiteExpression",
			builder: users().OnConflict(IndexExpression("lower(email)")),
			dialect: dialect.SQLite,
			sql:     "INSERT INTO users (email, name) VALUES (?, ?) ON CONFLICT (lower(email)) DO NOTHING",
			params:  []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name:    "MSSQLMerge",
			builder: users().OnConflict(Columns("email")).DoUpdate("name").Returning("id"),
			dialect: dialect.MSSQL,
			sql: "MERGE INTO users AS target USING (SELECT @P1 AS email, @P2 AS name) AS source" +
				" ON target.email = source.email" +
				" WHEN MATCHED THEN UPDATE SET target.name = source.name" +
				" WHEN NOT MATCHED THEN INSERT (email, name) VALUES (source.email, source.name)" +
				" OUTPUT inserted.id;",
			params: []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann")},
		},
		{
			name:    "MSSQLDoNothingMultiRow",
			builder: users().Values("b@x.io", "Bob").OnConflict(Columns("email")),
			dialect: dialect.MSSQL,
			sql: "MERGE INTO users AS target USING (VALUES (@P1, @P2), (@P3, @P4)) AS source (email, name)" +
				" ON target.email = source.email" +
				" WHEN NOT MATCHED THEN INSERT (email, name) VALUES (source.email, source.name);",
			params: []sql.Value{sql.StringValue("a@x.io"), sql.StringValue("Ann"), sql.StringValue("b@x.io"), sql.StringValue("Bob")},
		},
		{
			name: "MSSQLConditional",
			builder: Into("docs").Columns("id", "body", "version").Values(7, "x", 2).OnConflict(Columns("id")).
				DoUpdateSet(Excluded("body"), Increment("version", 1)).Where(sql.Lt("target.version", 2)),
			dialect: dialect.MSSQL,
			sql: "MERGE INTO docs AS target USING (SELECT @P1 AS id, @P2 AS body, @P3 AS version) AS source" +
				" ON target.id = source.id" +
				" WHEN MATCHED AND target.version < @P4 THEN UPDATE SET target.body = source.body, target.version = target.version + @P5" +
				" WHEN NOT MATCHED THEN INSERT (id, body, version) VALUES (source.id, source.body, source.version);",
			params: []sql.Value{sql.IntValue(7), sql.StringValue("x"), sql.IntValue(2), sql.IntValue(2), sql.IntValue(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := tt.builder.Build(tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, stmt.SQL)
			assert.Equal(t, tt.params, stmt.Params)
		})
	}
}

func TestBuild_ExpectsRows(t *testing.T) {
	stmt, err := users().Returning("id").Build(dialect.SQLite)
	require.NoError(t, err)
	assert.True(t, stmt.ExpectsRows)
	stmt, err = users().Build(dialect.SQLite)
	require.NoError(t, err)
	assert.False(t, stmt.ExpectsRows)
}

func TestBuild_PostgresExcludedShape(t *testing.T) {
	re := regexp.MustCompile(`^INSERT INTO .* ON CONFLICT .* DO UPDATE SET .* = EXCLUDED\.`)
	for _, b := range []*Builder{
		users().OnConflict(Columns("email")).DoUpdate("name"),
		users().OnConflict(Columns("email", "name")).DoUpdate("email", "name"),
		Into("t").Columns("a").Values(nil).OnConflict(Columns("a")).DoUpdate("a"),
	} {
		stmt, err := b.Build(dialect.PostgreSQL)
		require.NoError(t, err)
		assert.Regexp(t, re, stmt.SQL)
	}
}

func TestBuild_MergeTerminated(t *testing.T) {
	for _, b := range []*Builder{
		users().OnConflict(Columns("email")),
		users().OnConflict(Columns("email")).DoUpdate("name"),
	} {
		stmt, err := b.Build(dialect.MSSQL)
		require.NoError(t, err)
		assert.Contains(t, stmt.SQL, "WHEN NOT MATCHED THEN INSERT")
		assert.Regexp(t, `;$`, stmt.SQL)
	}
}

func TestBuild_Errors(t *testing.T) {
	unsupported := []struct {
		name    string
		builder *Builder
		dialect dialect.DatabaseType
	}{
		{"MySQLReturning", users().Returning("id"), dialect.MySQL},
		{"MySQLWhere", users().OnConflict(Columns("email")).DoUpdate("name").Where(sql.Equals("a", 1)), dialect.MySQL},
		{"PostgresImplicitUpdate", users().DoUpdate("name"), dialect.PostgreSQL},
		{"SQLiteConstraint", users().OnConflict(Constraint("c")), dialect.SQLite},
		{"MSSQLImplicit", users().DoUpdate("name"), dialect.MSSQL},
		{"MSSQLConstraint", users().OnConflict(Constraint("c")), dialect.MSSQL},
	}
	for _, tt := range unsupported {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build(tt.dialect)
			require.Error(t, err)
			assert.True(t, prax.IsUnsupported(err))
			assert.Contains(t, err.Error(), "unsupported")
		})
	}

	invalid := []struct {
		name    string
		builder *Builder
	}{
		{"NoTable", Into("").Columns("a").Values(1)},
		{"NoColumns", Into("t").Values()},
		{"NoRows", Into("t").Columns("a")},
		{"RowArity", Into("t").Columns("a", "b").Values(1)},
		{"EmptyUpdate", users().OnConflict(Columns("email")).DoUpdate()},
		{"ExcludedNotInserted", users().OnConflict(Columns("email")).DoUpdate("age")},
		{"WhereWithoutUpdate", users().Where(sql.Equals("a", 1))},
		{"EmptyTarget", users().OnConflict(Columns())},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build(dialect.PostgreSQL)
			require.Error(t, err)
			assert.True(t, prax.IsInvalidInput(err))
		})
	}
}

func TestBuild_SQLiteExec(t *testing.T) {
	db, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	_, err = db.Exec("CREATE TABLE users (email TEXT PRIMARY KEY, name TEXT NOT NULL, visits INTEGER NOT NULL DEFAULT 0)")
	require.NoError(t, err)

	upsert := func(name string) int64 {
		stmt, err := Into("users").Columns("email", "name", "visits").Values("a@x.io", name, 1).
			OnConflict(Columns("email")).
			DoUpdateSet(Excluded("name"), Increment("visits", 1)).
			Returning("visits").
			Build(dialect.SQLite)
		require.NoError(t, err)
		var visits int64
		require.NoError(t, db.QueryRow(stmt.SQL, stmt.Args()...).Scan(&visits))
		return visits
	}
	assert.Equal(t, int64(1), upsert("Ann"))
	assert.Equal(t, int64(2), upsert("Annie"))

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM users WHERE email = ?", "a@x.io").Scan(&name))
	assert.Equal(t, "Annie", name)

	stmt, err := users().OnConflict(Columns("email")).DoNothing().Build(dialect.SQLite)
	require.NoError(t, err)
	res, err := db.Exec(stmt.SQL, stmt.Args()...)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestToMongo(t *testing.T) {
	cmd, err := Into("users").Columns("email", "name", "visits").Values("a@x.io", "Ann", 1).
		OnConflict(Columns("email")).
		DoUpdateSet(Excluded("name"), Increment("visits", 1), Push("tags", "new")).
		Returning("_id").
		ToMongo()
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "findAndModify", Value: "users"},
		{Key: "query", Value: bson.D{{Key: "email", Value: "a@x.io"}}},
		{Key: "update", Value: bson.D{
			{Key: "$set", Value: bson.D{{Key: "name", Value: "Ann"}}},
			{Key: "$inc", Value: bson.D{{Key: "visits", Value: int64(1)}}},
			{Key: "$push", Value: bson.D{{Key: "tags", Value: "new"}}},
		}},
		{Key: "new", Value: true},
		{Key: "upsert", Value: true},
		{Key: "fields", Value: bson.D{{Key: "_id", Value: 1}}},
	}, cmd)

	cmd, err = users().OnConflict(Columns("email")).ToMongo()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "name", Value: "Ann"}}}}, cmd[2].Value)

	cmd, err = users().OnConflict(Columns("email")).DoUpdate("name").Where(sql.Equals("active", true)).ToMongo()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "email", Value: "a@x.io"}},
		bson.D{{Key: "active", Value: true}},
	}}}, cmd[1].Value)

	cmd, err = users().OnConflict(Columns("email")).DoUpdate("name").
		Where(sql.Not(sql.Or(sql.Equals("banned", true), sql.IsNull("name")))).ToMongo()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "email", Value: "a@x.io"}},
		bson.D{{Key: "$nor", Value: bson.A{
			bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "banned", Value: true}},
				bson.D{{Key: "name", Value: nil}},
			}}},
		}}},
	}}}, cmd[1].Value)

	cmd, err = Into("users").Columns("_id").Values("u1").ToMongo()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: "u1"}}}}, cmd[2].Value)
}

func TestToMongo_Errors(t *testing.T) {
	_, err := users().Values("b", "B").OnConflict(Columns("email")).ToMongo()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = users().ToMongo()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = users().OnConflict(Constraint("c")).ToMongo()
	assert.True(t, prax.IsUnsupported(err))
	_, err = users().OnConflict(Columns("email")).DoUpdateSet(SetExpr("name", "upper(name)")).ToMongo()
	assert.True(t, prax.IsUnsupported(err))
	_, err = users().OnConflict(Columns("id")).ToMongo()
	assert.True(t, prax.IsInvalidInput(err))
}
