package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema"
	"github.com/syssam/prax/schema/parser"
)

const source = `
model User {
  id    Int    @id @auto
  email String @unique
  @@map("users")
}

policy ReadOwn on User {
  for SELECT
  to authenticated
  using "id = auth.uid()"
}
`

func readOwn(t *testing.T) (*schema.Schema, *schema.Policy) {
	t.Helper()
	s, err := parser.Parse(source)
	require.NoError(t, err)
	p := s.Policy("ReadOwn")
	require.NotNil(t, p)
	return s, p
}

func TestPostgres_ReadOwn(t *testing.T) {
	s, p := readOwn(t)
	got, err := New(WithSchema(s)).Postgres(p)
	require.NoError(t, err)
	assert.Equal(t, "CREATE POLICY ReadOwn ON users FOR SELECT TO authenticated USING (id = auth.uid())", got)

	got, err = ToPostgres(p)
	require.NoError(t, err)
	assert.Equal(t, "CREATE POLICY ReadOwn ON \"User\" FOR SELECT TO authenticated USING (id = auth.uid())", got, "unresolved tables use the model name")
}

func TestPostgres_Shapes(t *testing.T) {
	tests := []struct {
		name string
		p    *schema.Policy
		want string
	}{
		{
			name: "AllPublic",
			p:    &schema.Policy{Name: "p", Table: "docs", Commands: []schema.PolicyCommand{schema.CommandAll}, Using: "true"},
			want: "CREATE POLICY p ON docs TO PUBLIC USING (true)",
		},
		{
			name: "NoCommands",
			p:    &schema.Policy{Name: "p", Table: "docs", Check: "owner = current_user"},
			want: "CREATE POLICY p ON docs TO PUBLIC WITH CHECK (owner = current_user)",
		},
		{
			name: "RestrictiveFirstCommand",
			p: &schema.Policy{
				Name:     "w",
				Table:    "docs",
				Type:     schema.Restrictive,
				Commands: []schema.PolicyCommand{schema.CommandInsert, schema.CommandUpdate},
				Roles:    []string{"editor", "admin role"},
				Check:    "author_id = current_user_id()",
			},
			want: `CREATE POLICY w ON docs AS RESTRICTIVE FOR INSERT TO editor, "admin role" WITH CHECK (author_id = current_user_id())`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPostgres(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresAll(t *testing.T) {
	p := &schema.Policy{
		Name:     "own",
		Table:    "docs",
		Commands: []schema.PolicyCommand{schema.CommandSelect, schema.CommandDelete},
		Using:    "owner_id = auth.uid()",
	}
	got, err := ToPostgresAll(p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE POLICY own_select ON docs FOR SELECT TO PUBLIC USING (owner_id = auth.uid())",
		"CREATE POLICY own_delete ON docs FOR DELETE TO PUBLIC USING (owner_id = auth.uid())",
	}, got)

	p.Commands = []schema.PolicyCommand{schema.CommandSelect}
	got, err = ToPostgresAll(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE POLICY own ON docs FOR SELECT TO PUBLIC USING (owner_id = auth.uid())"}, got)
}

func TestPostgres_Duality(t *testing.T) {
	p := &schema.Policy{
		Name:     "tenant",
		Table:    "orders",
		Commands: []schema.PolicyCommand{schema.CommandAll},
		Using:    "org_id = current_setting('app.current_org')",
		Check:    "org_id = current_setting('app.current_org')",
	}
	got, err := ToPostgres(p)
	require.NoError(t, err)
	assert.Contains(t, got, "USING (org_id = current_setting('app.current_org'))")
	assert.Contains(t, got, "WITH CHECK (org_id = current_setting('app.current_org'))")
	assert.NotContains(t, got, " FOR ")

	m, err := ToMSSQL(p, "OrgId")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(m.Policy, "ADD FILTER PREDICATE"))
	assert.Equal(t, 4, strings.Count(m.Policy, "ADD BLOCK PREDICATE"))
	for _, op := range []string{"AFTER INSERT", "AFTER UPDATE", "BEFORE UPDATE", "BEFORE DELETE"} {
		assert.Contains(t, m.Policy, " "+op)
	}

	p.MSSQLBlockOps = []schema.BlockOperation{schema.BeforeDelete}
	m, err = ToMSSQL(p, "OrgId")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(m.Policy, "ADD BLOCK PREDICATE"))
}

func TestMSSQL_ReadOwn(t *testing.T) {
	s, p := readOwn(t)
	m, err := New(WithSchema(s), WithUserColumn("UserId")).MSSQL(p)
	require.NoError(t, err)
	assert.Equal(t, "IF SCHEMA_ID(N'Security') IS NULL EXEC(N'CREATE SCHEMA Security')", m.Schema)
	assert.Equal(t, "CREATE FUNCTION Security.fn_ReadOwn_predicate(@UserId AS INT)\n"+
		"RETURNS TABLE\n"+
		"WITH SCHEMABINDING\n"+
		"AS RETURN SELECT 1 AS fn_securitypredicate_result WHERE id = CAST(SESSION_CONTEXT(N'UserId') AS INT)", m.Function)
	assert.Contains(t, m.Function, "CAST(SESSION_CONTEXT(N'UserId') AS INT)")
	assert.Equal(t, "CREATE SECURITY POLICY Security.ReadOwn\n"+
		"ADD FILTER PREDICATE Security.fn_ReadOwn_predicate(UserId) ON dbo.users\n"+
		"WITH (STATE = ON)", m.Policy)
	assert.True(t, strings.HasSuffix(m.Policy, "WITH (STATE = ON)"))
	assert.Len(t, m.Statements(), 3)
	assert.Equal(t, 3, strings.Count(m.Script(), "\nGO\n"))
}

func TestMSSQL_BindsColumn(t *testing.T) {
	p := &schema.Policy{
		Name:        "own",
		Table:       "docs",
		Commands:    []schema.PolicyCommand{schema.CommandSelect},
		Using:       "UserId = current_user_id()",
		MSSQLSchema: "Sec",
	}
	m, err := ToMSSQL(p, "UserId")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(m.Function, "WHERE @UserId = CAST(SESSION_CONTEXT(N'UserId') AS INT)"))
	assert.Contains(t, m.Policy, "CREATE SECURITY POLICY Sec.own\n")
}

func TestBindColumn(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"UserId = 1", "@UserId = 1"},
		{"userid = 1 OR (USERID IS NULL)", "@UserId = 1 OR (@UserId IS NULL)"},
		{"d.UserId = 1", "d.UserId = 1"},
		{"@UserId = 1", "@UserId = 1"},
		{"N'UserId' = name", "N'UserId' = name"},
		{"UserIdent = 1 AND OwnerUserId = 2", "UserIdent = 1 AND OwnerUserId = 2"},
		{"a=UserId", "a=@UserId"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bindColumn(tt.in, "UserId"), tt.in)
	}
}

func TestMSSQL_NoUsing(t *testing.T) {
	p := &schema.Policy{Name: "w", Table: "docs", Commands: []schema.PolicyCommand{schema.CommandInsert}}
	m, err := ToMSSQL(p, "UserId")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(m.Function, "WHERE 1 = 1"))
	assert.NotContains(t, m.Policy, "FILTER PREDICATE")
	assert.Contains(t, m.Policy, "ADD BLOCK PREDICATE Security.fn_w_predicate(UserId) ON dbo.docs AFTER INSERT\n")
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"id = auth.uid()", "id = CAST(SESSION_CONTEXT(N'UserId') AS INT)"},
		{"owner = current_user_id()", "owner = CAST(SESSION_CONTEXT(N'UserId') AS INT)"},
		{"org_id = current_setting('app.current_org')", "org_id = SESSION_CONTEXT(N'OrgId')"},
		{"org_id = current_setting('app.current_org', true)", "org_id = SESSION_CONTEXT(N'OrgId')"},
		{"published = 1", "published = 1"},
	}
	for _, tt := range tests {
		got, err := Translate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, in := range []string{
		"org_id = current_setting('x.y')::uuid",
		"tenant = current_setting('app.tenant')",
		"name ILIKE 'a%'",
		"meta ->> 'owner' = auth.uid()",
	} {
		_, err := Translate(in)
		require.Error(t, err, in)
		assert.True(t, prax.IsUnsupported(err), in)
	}
}

func TestMSSQL_Override(t *testing.T) {
	p := &schema.Policy{
		Name:     "tenant",
		Table:    "orders",
		Commands: []schema.PolicyCommand{schema.CommandSelect},
		Using:    "org_id = current_setting('x.y')::uuid",
	}
	_, err := ToMSSQL(p, "OrgId")
	require.Error(t, err)
	assert.True(t, prax.IsUnsupported(err))

	p.MSSQLUsing = "@OrgId = CAST(SESSION_CONTEXT(N'OrgId') AS UNIQUEIDENTIFIER)"
	m, err := ToMSSQL(p, "OrgId")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(m.Function, "WHERE "+p.MSSQLUsing))
}

func TestInvalidInput(t *testing.T) {
	for name, p := range map[string]*schema.Policy{
		"Nil":     nil,
		"NoName":  {Table: "t"},
		"NoTable": {Name: "p"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ToPostgres(p)
			assert.True(t, prax.IsInvalidInput(err))
			_, err = ToMSSQL(p, "UserId")
			assert.True(t, prax.IsInvalidInput(err))
		})
	}
	_, err := ToMSSQL(&schema.Policy{Name: "p", Table: "t", Commands: []schema.PolicyCommand{schema.CommandSelect}}, "UserId")
	assert.True(t, prax.IsInvalidInput(err), "nothing to enforce")
	_, err = ToMSSQL(&schema.Policy{Name: "p", Table: "t", Using: "1 = 1"}, "user id")
	assert.True(t, prax.IsInvalidInput(err))
}

func TestRLSStatements(t *testing.T) {
	s, p := readOwn(t)
	c := New(WithSchema(s))
	assert.Equal(t, "ALTER TABLE users ENABLE ROW LEVEL SECURITY", c.EnableRLS(p))
	assert.Equal(t, "DROP POLICY IF EXISTS ReadOwn ON users", c.DropPostgres(p))
	assert.Equal(t, []string{
		"DROP SECURITY POLICY IF EXISTS Security.ReadOwn",
		"DROP FUNCTION IF EXISTS Security.fn_ReadOwn_predicate",
	}, c.DropMSSQL(p))
}
