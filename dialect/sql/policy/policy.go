// Package policy compiles row-level security policies into PostgreSQL
// CREATE POLICY statements and SQL Server security policies.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/schema"
)

const (
	// DefaultMSSQLSchema holds predicate functions and security policies
	// when a policy names no schema.
	DefaultMSSQLSchema = "Security"
	// DefaultUserColumn is the predicate function parameter on SQL Server.
	DefaultUserColumn = "UserId"
)

// Compiler renders policies. The zero value is not usable; call New.
type Compiler struct {
	schema     *schema.Schema
	userColumn string
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSchema resolves policy tables through the models of s, honouring
// @@map and @@schema.
func WithSchema(s *schema.Schema) Option {
	return func(c *Compiler) { c.schema = s }
}

// WithUserColumn sets the column passed to SQL Server predicate functions.
func WithUserColumn(name string) Option {
	return func(c *Compiler) { c.userColumn = name }
}

// New returns a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{userColumn: DefaultUserColumn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToPostgres renders p with a default Compiler.
func ToPostgres(p *schema.Policy) (string, error) { return New().Postgres(p) }

// ToPostgresAll renders p with a default Compiler, one policy per command.
func ToPostgresAll(p *schema.Policy) ([]string, error) { return New().PostgresAll(p) }

// ToMSSQL renders p with a default Compiler whose predicate function takes
// column.
func ToMSSQL(p *schema.Policy, column string) (*MSSQLStatements, error) {
	return New(WithUserColumn(column)).MSSQL(p)
}

func (c *Compiler) table(p *schema.Policy) (schemaName, table string) {
	if c.schema != nil {
		if m := c.schema.Model(p.Table); m != nil {
			return m.SchemaName(), m.TableName()
		}
	}
	return "", p.Table
}

func check(p *schema.Policy) error {
	switch {
	case p == nil:
		return prax.NewInvalidInputError("policy", "policy", "policy is required")
	case p.Name == "":
		return prax.NewInvalidInputError("policy", "name", "policy name is required")
	case p.Table == "":
		return prax.NewInvalidInputError("policy", "table", "policy "+p.Name+" has no table")
	}
	return nil
}

// Postgres renders CREATE POLICY for p. PostgreSQL policies cover a single
// command, so only the first one is written unless the set holds ALL.
func (c *Compiler) Postgres(p *schema.Policy) (string, error) {
	if err := check(p); err != nil {
		return "", err
	}
	cmd := schema.CommandAll
	if !p.AppliesToAll() && len(p.Commands) > 0 {
		cmd = p.Commands[0]
	}
	return c.postgres(p, p.Name, cmd), nil
}

// PostgresAll renders one CREATE POLICY per command of p. When p lists
// several commands each policy name gets a _<command> suffix.
func (c *Compiler) PostgresAll(p *schema.Policy) ([]string, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	if p.AppliesToAll() || len(p.Commands) <= 1 {
		stmt, err := c.Postgres(p)
		if err != nil {
			return nil, err
		}
		return []string{stmt}, nil
	}
	stmts := make([]string, 0, len(p.Commands))
	for _, cmd := range p.Commands {
		name := p.Name + "_" + strings.ToLower(cmd.String())
		stmts = append(stmts, c.postgres(p, name, cmd))
	}
	return stmts, nil
}

func (c *Compiler) postgres(p *schema.Policy, name string, cmd schema.PolicyCommand) string {
	d := dialect.PostgreSQL
	var b strings.Builder
	b.WriteString("CREATE POLICY ")
	b.WriteString(d.QuoteIdent(name))
	b.WriteString(" ON ")
	b.WriteString(d.QuoteQualified(c.table(p)))
	if p.Type == schema.Restrictive {
		b.WriteString(" AS RESTRICTIVE")
	}
	if cmd != schema.CommandAll {
		b.WriteString(" FOR " + cmd.String())
	}
	b.WriteString(" TO ")
	if len(p.Roles) == 0 {
		b.WriteString("PUBLIC")
	} else {
		roles := make([]string, len(p.Roles))
		for i, r := range p.Roles {
			roles[i] = d.QuoteIdent(r)
		}
		b.WriteString(strings.Join(roles, ", "))
	}
	if p.Using != "" {
		b.WriteString(" USING (" + p.Using + ")")
	}
	if p.Check != "" {
		b.WriteString(" WITH CHECK (" + p.Check + ")")
	}
	return b.String()
}

// EnableRLS returns the statement enabling row-level security on the
// table of p. Only PostgreSQL needs one; SQL Server policies take effect
// when created.
func (c *Compiler) EnableRLS(p *schema.Policy) string {
	return "ALTER TABLE " + dialect.PostgreSQL.QuoteQualified(c.table(p)) + " ENABLE ROW LEVEL SECURITY"
}

// DropPostgres returns the statement removing p.
func (c *Compiler) DropPostgres(p *schema.Policy) string {
	d := dialect.PostgreSQL
	return "DROP POLICY IF EXISTS " + d.QuoteIdent(p.Name) + " ON " + d.QuoteQualified(c.table(p))
}

// MSSQLStatements is a SQL Server security policy. Each statement must run
// in its own batch.
type MSSQLStatements struct {
	Schema   string
	Function string
	Policy   string
}

// Statements returns the batches in execution order.
func (m *MSSQLStatements) Statements() []string {
	return []string{m.Schema, m.Function, m.Policy}
}

// Script joins the batches with GO separators.
func (m *MSSQLStatements) Script() string {
	return strings.Join(m.Statements(), "\nGO\n") + "\nGO\n"
}

// translations rewrite PostgreSQL session lookups into SESSION_CONTEXT
// reads. Longer patterns come first.
var translations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)current_setting\(\s*'app\.current_org'\s*(,\s*true\s*)?\)`), "SESSION_CONTEXT(N'OrgId')"},
	{regexp.MustCompile(`(?i)current_setting\(\s*'app\.current_user_id'\s*(,\s*true\s*)?\)`), "CAST(SESSION_CONTEXT(N'UserId') AS INT)"},
	{regexp.MustCompile(`(?i)\bcurrent_user_id\(\s*\)`), "CAST(SESSION_CONTEXT(N'UserId') AS INT)"},
	{regexp.MustCompile(`(?i)\bauth\.uid\(\s*\)`), "CAST(SESSION_CONTEXT(N'UserId') AS INT)"},
}

// pgOnly matches syntax the substitutions cannot express in T-SQL.
var pgOnly = regexp.MustCompile(`::|(?i)current_setting\(|\bILIKE\b|->>?|@>|<@`)

// Translate rewrites a PostgreSQL policy predicate into T-SQL. It is a
// syntactic substitution; the returned error is Unsupported when the
// result still holds PostgreSQL-only syntax.
func Translate(expr string) (string, error) {
	out := expr
	for _, t := range translations {
		out = t.re.ReplaceAllString(out, t.repl)
	}
	if loc := pgOnly.FindStringIndex(out); loc != nil {
		return "", prax.NewUnsupportedError(dialect.MSSQL.String(), "policy expression",
			fmt.Sprintf("cannot translate %q near %q; set mssqlUsing", expr, out[loc[0]:loc[1]]))
	}
	return out, nil
}

// bareIdent matches identifiers not qualified by a table, a parameter
// marker or a string quote.
var bareIdent = regexp.MustCompile(`(^|[^@\w.'])(\w+)`)

// bindColumn points bare references to column at the function parameter.
func bindColumn(expr, column string) string {
	return bareIdent.ReplaceAllStringFunc(expr, func(m string) string {
		sub := bareIdent.FindStringSubmatch(m)
		if !strings.EqualFold(sub[2], column) {
			return m
		}
		return sub[1] + "@" + column
	})
}

// DefaultBlockOps derives block predicates from the policy commands.
func DefaultBlockOps(p *schema.Policy) []schema.BlockOperation {
	var ops []schema.BlockOperation
	if p.HasCommand(schema.CommandInsert) {
		ops = append(ops, schema.AfterInsert)
	}
	if p.HasCommand(schema.CommandUpdate) {
		ops = append(ops, schema.AfterUpdate, schema.BeforeUpdate)
	}
	if p.HasCommand(schema.CommandDelete) {
		ops = append(ops, schema.BeforeDelete)
	}
	return ops
}

// MSSQL renders the schema, predicate function and security policy for p.
func (c *Compiler) MSSQL(p *schema.Policy) (*MSSQLStatements, error) {
	if err := check(p); err != nil {
		return nil, err
	}
	if c.userColumn == "" || !dialect.IsIdentifier(c.userColumn) {
		return nil, prax.NewInvalidInputError("policy", "column", fmt.Sprintf("invalid predicate column %q", c.userColumn))
	}
	d := dialect.MSSQL
	sch := p.MSSQLSchema
	if sch == "" {
		sch = DefaultMSSQLSchema
	}
	predicate := "1 = 1"
	switch {
	case p.MSSQLUsing != "":
		predicate = p.MSSQLUsing
	case p.Using != "":
		tr, err := Translate(p.Using)
		if err != nil {
			return nil, err
		}
		predicate = bindColumn(tr, c.userColumn)
	}
	fn := d.QuoteQualified(sch, "fn_"+p.Name+"_predicate")
	tableSchema, table := c.table(p)
	if tableSchema == "" {
		tableSchema = "dbo"
	}
	target := d.QuoteQualified(tableSchema, table)
	param := "@" + c.userColumn

	stmts := &MSSQLStatements{
		Schema: fmt.Sprintf("IF SCHEMA_ID(%s) IS NULL EXEC(%s)", d.Literal(sch), d.Literal("CREATE SCHEMA "+d.QuoteIdent(sch))),
		Function: "CREATE FUNCTION " + fn + "(" + param + " AS INT)\n" +
			"RETURNS TABLE\n" +
			"WITH SCHEMABINDING\n" +
			"AS RETURN SELECT 1 AS fn_securitypredicate_result WHERE " + predicate,
	}
	call := fn + "(" + d.QuoteIdent(c.userColumn) + ") ON " + target
	var preds []string
	if p.Using != "" || p.MSSQLUsing != "" {
		preds = append(preds, "ADD FILTER PREDICATE "+call)
	}
	ops := p.MSSQLBlockOps
	if len(ops) == 0 {
		ops = DefaultBlockOps(p)
	}
	for _, op := range ops {
		preds = append(preds, "ADD BLOCK PREDICATE "+call+" "+op.String())
	}
	if len(preds) == 0 {
		return nil, prax.NewInvalidInputError("policy", "commands",
			"policy "+p.Name+" has neither a USING expression nor block operations")
	}
	stmts.Policy = "CREATE SECURITY POLICY " + d.QuoteQualified(sch, p.Name) + "\n" +
		strings.Join(preds, ",\n") + "\n" +
		"WITH (STATE = ON)"
	return stmts, nil
}

// DropMSSQL returns the statements removing the security policy and its
// predicate function, in order.
func (c *Compiler) DropMSSQL(p *schema.Policy) []string {
	d := dialect.MSSQL
	sch := p.MSSQLSchema
	if sch == "" {
		sch = DefaultMSSQLSchema
	}
	return []string{
		"DROP SECURITY POLICY IF EXISTS " + d.QuoteQualified(sch, p.Name),
		"DROP FUNCTION IF EXISTS " + d.QuoteQualified(sch, "fn_"+p.Name+"_predicate"),
	}
}
