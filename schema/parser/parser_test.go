package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema"
)

const fullSource = `
/// Application database.
datasource db { provider = "postgresql" url = env("DATABASE_URL") }

generator client {
  provider = "prax-go"
  output   = "./gen"
}

/// A registered account.
model User {
  /// Surrogate key.
  id    Int    @id @auto
  email String @unique
  role  Role   @default(User)
  tags  String[]?
  posts Post[]
  @@map("users")
}

model Post {
  id       Int      @id @default(autoincrement())
  title    String   @db.VarChar(255)
  authorId Int
  author   User     @relation(fields: [authorId], references: [id], onDelete: Cascade)
  meta     Unsupported("tsvector")?
  created  DateTime @default(now())
  @@index([authorId, created], name: "post_author_created")
}

enum Role { User  Admin @map("ADMINISTRATOR") }

type Address {
  street String
  zip    String?
}

view ActiveUser {
  id Int @unique
  @@sql("SELECT id FROM users WHERE active")
}

policy ReadOwn on User {
  for SELECT
  to authenticated
  using "id = auth.uid()"
}

policy Writers on Post {
  for [INSERT, UPDATE]
  to editor, "admin role"
  as restrictive
  check """author_id = current_user_id() AND "title" <> ''"""
  mssqlSchema "Sec"
  mssqlBlock [AFTER_INSERT, BeforeUpdate]
}

serverGroup Db {
  @@strategy(ReadReplica)
  server primary { url = env("DATABASE_URL") role = "primary" }
  server replica { url = env("REPLICA_URL") role = "replica" weight = 2 }
}

// ignored comment
raw_sql refresh """REFRESH MATERIALIZED VIEW active_users"""
`

func TestParse_Minimal(t *testing.T) {
	s, err := Parse(`model User { id Int @id @auto  email String @unique }`)
	require.NoError(t, err)
	require.Len(t, s.Models, 1)
	user := s.Model("User")
	require.NotNil(t, user)
	require.Len(t, user.Fields, 2)
	assert.Equal(t, []string{"id"}, user.PrimaryKey())
	require.NotNil(t, user.Field("email"))
	assert.True(t, user.Field("email").IsUnique())
	assert.True(t, user.Field("id").IsAuto())
}

func TestParse_Full(t *testing.T) {
	s, err := Parse(fullSource)
	require.NoError(t, err)

	t.Run("Datasource", func(t *testing.T) {
		ds := s.Datasource()
		require.NotNil(t, ds)
		assert.Equal(t, "db", ds.Name)
		assert.Equal(t, "postgresql", ds.Provider())
		env, ok := ds.URL().EnvVar()
		assert.True(t, ok)
		assert.Equal(t, "DATABASE_URL", env)
		assert.Equal(t, "Application database.", ds.Doc)
	})

	t.Run("Generator", func(t *testing.T) {
		require.Len(t, s.Generators, 1)
		assert.Equal(t, "prax-go", s.Generators[0].Provider())
		assert.Equal(t, "./gen", s.Generators[0].Output())
	})

	t.Run("User", func(t *testing.T) {
		user := s.Model("User")
		require.NotNil(t, user)
		assert.Equal(t, "A registered account.", user.Doc)
		assert.Equal(t, "users", user.TableName())
		assert.Equal(t, "Surrogate key.", user.Field("id").Doc)
		assert.Equal(t, schema.NamedOf("Role"), user.Field("role").Type)
		def, ok := user.Field("role").Default()
		require.True(t, ok)
		assert.Equal(t, schema.ValueIdent, def.Kind)
		assert.Equal(t, schema.OptionalList, user.Field("tags").Modifier)
		assert.Equal(t, schema.List, user.Field("posts").Modifier)
		assert.Equal(t, "User", s.Models[0].Name, "insertion order is preserved")
	})

	t.Run("Post", func(t *testing.T) {
		post := s.Model("Post")
		require.NotNil(t, post)
		assert.True(t, post.Field("id").IsAuto())
		native := post.Field("title").NativeType()
		require.NotNil(t, native)
		assert.Equal(t, "db.VarChar", native.Name)
		rel, ok := post.Field("author").Relation()
		require.True(t, ok)
		assert.Equal(t, []string{"authorId"}, rel.Fields)
		assert.Equal(t, schema.Cascade, *rel.OnDelete)
		assert.Equal(t, schema.UnsupportedOf("tsvector"), post.Field("meta").Type)
		assert.Equal(t, schema.Optional, post.Field("meta").Modifier)
		idx := post.Indexes()
		require.Len(t, idx, 1)
		assert.Equal(t, "post_author_created", idx[0].Name)
		assert.Equal(t, []string{"authorId", "created"}, idx[0].Fields)
		def, _ := post.Field("created").Default()
		assert.True(t, def.IsFunc("now"))
	})

	t.Run("Enum", func(t *testing.T) {
		role := s.Enum("Role")
		require.NotNil(t, role)
		assert.Equal(t, []string{"User", "ADMINISTRATOR"}, role.DBValues())
	})

	t.Run("TypeAndView", func(t *testing.T) {
		addr := s.Type("Address")
		require.NotNil(t, addr)
		assert.True(t, addr.Field("zip").IsOptional())
		view := s.View("ActiveUser")
		require.NotNil(t, view)
		assert.Equal(t, "SELECT id FROM users WHERE active", view.Definition())
	})

	t.Run("Policies", func(t *testing.T) {
		read := s.Policy("ReadOwn")
		require.NotNil(t, read)
		assert.Equal(t, "User", read.Table)
		assert.Equal(t, []schema.PolicyCommand{schema.CommandSelect}, read.Commands)
		assert.Equal(t, []string{"authenticated"}, read.Roles)
		assert.Equal(t, "id = auth.uid()", read.Using)
		assert.Empty(t, read.Check)

		w := s.Policy("Writers")
		require.NotNil(t, w)
		assert.Equal(t, schema.Restrictive, w.Type)
		assert.Equal(t, []schema.PolicyCommand{schema.CommandInsert, schema.CommandUpdate}, w.Commands)
		assert.Equal(t, []string{"editor", "admin role"}, w.Roles)
		assert.Equal(t, `author_id = current_user_id() AND "title" <> ''`, w.Check)
		assert.Equal(t, "Sec", w.MSSQLSchema)
		assert.Equal(t, []schema.BlockOperation{schema.AfterInsert, schema.BeforeUpdate}, w.MSSQLBlockOps)
	})

	t.Run("ServerGroup", func(t *testing.T) {
		g := s.ServerGroup("Db")
		require.NotNil(t, g)
		assert.Equal(t, "ReadReplica", g.Strategy())
		require.Len(t, g.Servers, 2)
		assert.Equal(t, "primary", g.Servers[0].Role())
		assert.Equal(t, int64(2), g.Server("replica").Weight())
	})

	t.Run("RawSQL", func(t *testing.T) {
		raw := s.RawSQLBlock("refresh")
		require.NotNil(t, raw)
		assert.Equal(t, "REFRESH MATERIALIZED VIEW active_users", raw.SQL)
	})
}

func TestParse_Spans(t *testing.T) {
	src := `model User { id Int @id }`
	s, err := Parse(src)
	require.NoError(t, err)
	m := s.Model("User")
	assert.Equal(t, "User { id Int @id }", src[m.Span.Start:m.Span.End])
	f := m.Field("id")
	assert.Equal(t, "id Int @id", src[f.Span.Start:f.Span.End])
	assert.Equal(t, "@id", src[f.Attributes[0].Span.Start:f.Attributes[0].Span.End])
}

func TestParse_OrphanDocDiscarded(t *testing.T) {
	s, err := Parse(`model A { id Int @id /// dangling
}
/// trailing`)
	require.NoError(t, err)
	assert.Empty(t, s.Model("A").Doc)
}

func TestParse_StringEscapes(t *testing.T) {
	s, err := Parse(`policy P on A { using "name = \"x\"\n" }`)
	require.NoError(t, err)
	assert.Equal(t, "name = \"x\"\n", s.Policy("P").Using)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		offset int
		msg    string
	}{
		{"UnknownItem", `table User {}`, 0, "top-level declaration"},
		{"MissingBrace", `model User id Int`, 11, "expected '{'"},
		{"BadChar", `model User { id Int # }`, 20, "unexpected character"},
		{"UnterminatedString", `raw_sql x "abc`, 10, "unterminated string"},
		{"UnterminatedTriple", `raw_sql x """abc`, 10, "unterminated triple-quoted string"},
		{"UnknownClause", `policy P on A { grant SELECT }`, 16, "unknown policy clause"},
		{"UnknownCommand", `policy P on A { for TRUNCATE }`, 20, "unknown policy command"},
		{"TypeBlockAttr", `type T { a Int @@map("t") }`, 15, "block attributes"},
		{"BadValue", `model A { id Int @default(}) }`, 26, "expected a value"},
		{"UnclosedModel", `model A { id Int`, 16, "expected a field or '}'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, prax.ErrSyntax))
			var se *prax.SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.offset, se.Offset)
			assert.Contains(t, se.Message, tt.msg)
			assert.Positive(t, se.Length)
		})
	}
}
