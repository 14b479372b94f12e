package schema

import (
	"context"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/prax/dialect"
	ast "github.com/syssam/prax/schema"
)

// Option configures DDL planning.
type Option func(*options)

type options struct {
	withForeignKeys bool
	qualifier       *string
	review          []ReviewOption
}

// WithForeignKeys enables or disables foreign key constraints. Enabled by
// default.
func WithForeignKeys(b bool) Option {
	return func(o *options) { o.withForeignKeys = b }
}

// WithSchemaQualifier qualifies every table with q. An empty q writes bare
// table names. By default names are qualified only when some model declares
// @@schema.
func WithSchemaQualifier(q string) Option {
	return func(o *options) { o.qualifier = &q }
}

// WithReview passes review options to Diff.
func WithReview(opts ...ReviewOption) Option {
	return func(o *options) { o.review = append(o.review, opts...) }
}

func newOptions(opts []Option) *options {
	o := &options{withForeignKeys: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// planner returns the atlas planner and differ of d.
func planner(d dialect.DatabaseType) (migrate.PlanApplier, schema.Differ, error) {
	switch d {
	case dialect.PostgreSQL:
		return postgres.DefaultPlan, postgres.DefaultDiff, nil
	case dialect.MySQL:
		return mysql.DefaultPlan, mysql.DefaultDiff, nil
	case dialect.SQLite:
		return sqlite.DefaultPlan, sqlite.DefaultDiff, nil
	}
	return nil, nil, d.Unsupported("migration planning", "no planner")
}

// Create returns the DDL creating every table of s: PostgreSQL enum types
// first, then the tables with their indexes and foreign keys.
func Create(ctx context.Context, d dialect.DatabaseType, s *ast.Schema, opts ...Option) ([]string, error) {
	o := newOptions(opts)
	realm, err := Realm(d, s)
	if err != nil {
		return nil, err
	}
	if !o.withForeignKeys {
		dropForeignKeys(realm)
	}
	if d == dialect.MSSQL {
		return createMSSQL(realm), nil
	}
	var changes []schema.Change
	for _, ns := range realm.Schemas {
		for _, t := range ns.Tables {
			changes = append(changes, &schema.AddTable{T: t})
		}
	}
	stmts, err := plan(ctx, d, "create", changes, o, qualified(s))
	if err != nil {
		return nil, err
	}
	return append(enumTypes(d, s, nil), stmts...), nil
}

// Migration is the DDL moving a database between two schema versions.
type Migration struct {
	Changes    []schema.Change
	Statements []string
	Review     *ReviewResult
}

// Diff plans the migration from one schema version to the next and reviews
// it for destructive changes. A nil from plans the creation of to.
func Diff(ctx context.Context, d dialect.DatabaseType, from, to *ast.Schema, opts ...Option) (*Migration, error) {
	o := newOptions(opts)
	if from == nil {
		from = ast.New()
	}
	_, differ, err := planner(d)
	if err != nil {
		return nil, err
	}
	current, err := Realm(d, from)
	if err != nil {
		return nil, fmt.Errorf("current schema: %w", err)
	}
	desired, err := Realm(d, to)
	if err != nil {
		return nil, fmt.Errorf("desired schema: %w", err)
	}
	if !o.withForeignKeys {
		dropForeignKeys(current)
		dropForeignKeys(desired)
	}
	changes, err := diffSchemas(differ, current, desired)
	if err != nil {
		return nil, fmt.Errorf("diff %s schema: %w", d, err)
	}
	m := &Migration{Changes: changes, Review: Review(changes, o.review...)}
	if len(changes) == 0 {
		return m, nil
	}
	stmts, err := plan(ctx, d, "diff", changes, o, qualified(from) || qualified(to))
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(from.Enums))
	for _, e := range from.Enums {
		existing[e.DBName()] = true
	}
	m.Statements = append(enumTypes(d, to, existing), stmts...)
	return m, nil
}

// diffSchemas compares the realms schema by schema, so schemas appearing or
// vanishing yield table changes rather than CREATE or DROP SCHEMA.
func diffSchemas(differ schema.Differ, current, desired *schema.Realm) ([]schema.Change, error) {
	var (
		changes []schema.Change
		seen    = make(map[string]bool)
	)
	for _, want := range desired.Schemas {
		seen[want.Name] = true
		have, ok := current.Schema(want.Name)
		if !ok {
			have = schema.New(want.Name)
		}
		c, err := differ.SchemaDiff(have, want)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c...)
	}
	for _, have := range current.Schemas {
		if seen[have.Name] {
			continue
		}
		c, err := differ.SchemaDiff(have, schema.New(have.Name))
		if err != nil {
			return nil, err
		}
		changes = append(changes, c...)
	}
	return changes, nil
}

// withQualifier sets the schema name prefixed to planned objects; an empty
// qualifier leaves them unqualified.
func withQualifier(q string) migrate.PlanOption {
	return func(o *migrate.PlanOptions) { o.SchemaQualifier = &q }
}

func plan(ctx context.Context, d dialect.DatabaseType, name string, changes []schema.Change, o *options, qualify bool) ([]string, error) {
	pl, _, err := planner(d)
	if err != nil {
		return nil, err
	}
	var popts []migrate.PlanOption
	switch {
	case o.qualifier != nil:
		popts = append(popts, withQualifier(*o.qualifier))
	case !qualify:
		popts = append(popts, withQualifier(""))
	}
	p, err := pl.PlanChanges(ctx, name, changes, popts...)
	if err != nil {
		return nil, fmt.Errorf("plan %s changes: %w", d, err)
	}
	stmts := make([]string, 0, len(p.Changes))
	for _, c := range p.Changes {
		// Enum types are written by enumTypes ahead of the tables.
		if d == dialect.PostgreSQL && strings.HasPrefix(c.Cmd, "CREATE TYPE") {
			continue
		}
		stmts = append(stmts, c.Cmd)
	}
	return stmts, nil
}

func qualified(s *ast.Schema) bool {
	for _, m := range s.Models {
		if m.SchemaName() != "" {
			return true
		}
	}
	return false
}

// enumTypes returns CREATE TYPE for every enum used by a column on
// PostgreSQL, in declaration order, skipping the existing ones.
func enumTypes(d dialect.DatabaseType, s *ast.Schema, existing map[string]bool) []string {
	if d != dialect.PostgreSQL {
		return nil
	}
	used := make(map[string]bool)
	for _, m := range s.Models {
		if m.IsIgnored() {
			continue
		}
		for _, f := range m.Columns() {
			if f.Type.Kind == ast.KindEnum {
				used[f.Type.Name] = true
			}
		}
	}
	var stmts []string
	for _, e := range s.Enums {
		if !used[e.Name] || existing[e.DBName()] {
			continue
		}
		values := make([]string, len(e.Values))
		for i, v := range e.DBValues() {
			values[i] = d.Literal(v)
		}
		stmts = append(stmts, "CREATE TYPE "+d.Quote(e.DBName())+" AS ENUM ("+strings.Join(values, ", ")+")")
	}
	return stmts
}

func dropForeignKeys(r *schema.Realm) {
	for _, ns := range r.Schemas {
		for _, t := range ns.Tables {
			t.ForeignKeys = nil
		}
	}
}
