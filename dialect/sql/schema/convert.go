// Package schema converts declared models into database tables and plans
// the DDL creating or migrating them.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	ast "github.com/syssam/prax/schema"
)

// DefaultSchema returns the schema tables belong to when the model has no
// @@schema attribute.
func DefaultSchema(d dialect.DatabaseType) string {
	switch d {
	case dialect.PostgreSQL:
		return "public"
	case dialect.SQLite:
		return "main"
	case dialect.MSSQL:
		return "dbo"
	}
	return ""
}

// Realm converts the models of s into tables for d, grouped by schema in
// declaration order. Ignored models are skipped.
func Realm(d dialect.DatabaseType, s *ast.Schema) (*schema.Realm, error) {
	if !d.Valid() {
		return nil, d.Unsupported("table DDL", "unknown dialect")
	}
	c := &converter{d: d, s: s, tables: make(map[string]*schema.Table)}
	realm := schema.NewRealm()
	schemas := make(map[string]*schema.Schema)
	for _, m := range s.Models {
		if m.IsIgnored() {
			continue
		}
		t, err := c.table(m)
		if err != nil {
			return nil, err
		}
		name := m.SchemaName()
		if name == "" {
			name = DefaultSchema(d)
		}
		ns, ok := schemas[name]
		if !ok {
			ns = schema.New(name)
			schemas[name] = ns
			realm.AddSchemas(ns)
		}
		ns.AddTables(t)
	}
	for _, m := range s.Models {
		if m.IsIgnored() {
			continue
		}
		if err := c.foreignKeys(m); err != nil {
			return nil, err
		}
	}
	return realm, nil
}

// Tables returns the tables of every schema of the realm of s.
func Tables(d dialect.DatabaseType, s *ast.Schema) ([]*schema.Table, error) {
	realm, err := Realm(d, s)
	if err != nil {
		return nil, err
	}
	var tables []*schema.Table
	for _, ns := range realm.Schemas {
		tables = append(tables, ns.Tables...)
	}
	return tables, nil
}

type converter struct {
	d      dialect.DatabaseType
	s      *ast.Schema
	tables map[string]*schema.Table
}

func (c *converter) table(m *ast.Model) (*schema.Table, error) {
	t := &schema.Table{Name: m.TableName()}
	if m.Doc != "" {
		t.Attrs = append(t.Attrs, &schema.Comment{Text: m.Doc})
	}
	for _, f := range m.Columns() {
		col, err := c.column(m, f)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		t.Columns = append(t.Columns, col)
		if f.Type.Kind == ast.KindEnum && c.d != dialect.PostgreSQL && c.d != dialect.MySQL {
			t.Attrs = append(t.Attrs, enumCheck(c.d, t, col, c.s.Enum(f.Type.Name)))
		}
	}
	if pk := m.PrimaryKey(); len(pk) > 0 {
		parts, err := c.parts(m, t, pk)
		if err != nil {
			return nil, err
		}
		t.PrimaryKey = &schema.Index{Name: t.Name + "_pkey", Table: t, Parts: parts}
	}
	for _, ix := range m.Indexes() {
		parts, err := c.parts(m, t, ix.Fields)
		if err != nil {
			return nil, err
		}
		name := ix.Name
		if name == "" {
			name = constraintName(t.Name, partColumns(parts), ix.Unique)
		}
		idx := &schema.Index{Name: name, Unique: ix.Unique, Table: t, Parts: parts}
		if ix.Type != "" && c.d == dialect.PostgreSQL {
			idx.Attrs = append(idx.Attrs, &postgres.IndexType{T: strings.ToUpper(ix.Type)})
		}
		t.Indexes = append(t.Indexes, idx)
	}
	c.tables[m.Name] = t
	return t, nil
}

func (c *converter) column(m *ast.Model, f *ast.Field) (*schema.Column, error) {
	typ, err := columnType(c.d, c.s, f)
	if err != nil {
		return nil, err
	}
	col := &schema.Column{
		Name: f.ColumnName(),
		Type: &schema.ColumnType{Type: typ, Null: f.IsOptional()},
	}
	if f.Doc != "" {
		col.Attrs = append(col.Attrs, &schema.Comment{Text: f.Doc})
	}
	if f.IsAuto() {
		if err := c.autoIncrement(m, f, col); err != nil {
			return nil, err
		}
		return col, nil
	}
	if def, ok := f.Default(); ok {
		col.Default = c.defaultExpr(f, def)
	} else if f.IsUpdatedAt() {
		col.Default = &schema.RawExpr{X: "CURRENT_TIMESTAMP"}
	}
	return col, nil
}

func (c *converter) autoIncrement(m *ast.Model, f *ast.Field, col *schema.Column) error {
	if f.Type.Kind != ast.KindScalar || (f.Type.Scalar != ast.Int && f.Type.Scalar != ast.BigInt) {
		return prax.NewInvalidInputError("schema", f.Name, "auto-increment needs an Int or BigInt field")
	}
	switch c.d {
	case dialect.PostgreSQL:
		serial := "serial"
		if f.Type.Scalar == ast.BigInt {
			serial = "bigserial"
		}
		col.Type.Type = &postgres.SerialType{T: serial}
	case dialect.MySQL:
		col.Attrs = append(col.Attrs, &mysql.AutoIncrement{})
	case dialect.SQLite:
		if pk := m.PrimaryKey(); len(pk) != 1 || pk[0] != f.Name {
			return c.d.Unsupported("auto-increment", "only a single-column INTEGER PRIMARY KEY can auto-increment")
		}
		col.Type.Type = &schema.IntegerType{T: "integer"}
		col.Attrs = append(col.Attrs, &sqlite.AutoIncrement{})
	case dialect.MSSQL:
		col.Attrs = append(col.Attrs, &identity{Seed: 1, Increment: 1})
	}
	return nil
}

// identity is the SQL Server IDENTITY column property.
type identity struct {
	schema.Attr
	Seed, Increment int64
}

// defaultExpr renders a @default argument. Generated identifiers other than
// uuid() on PostgreSQL are filled by the client and have no default.
func (c *converter) defaultExpr(f *ast.Field, v ast.Value) schema.Expr {
	switch v.Kind {
	case ast.ValueString:
		return &schema.Literal{V: c.d.Literal(v.Str)}
	case ast.ValueInt:
		return &schema.Literal{V: strconv.FormatInt(v.Int, 10)}
	case ast.ValueFloat:
		return &schema.Literal{V: strconv.FormatFloat(v.Float, 'g', -1, 64)}
	case ast.ValueBool:
		switch {
		case c.d == dialect.MSSQL && v.Bool:
			return &schema.Literal{V: "1"}
		case c.d == dialect.MSSQL:
			return &schema.Literal{V: "0"}
		}
		return &schema.Literal{V: strconv.FormatBool(v.Bool)}
	case ast.ValueIdent:
		if e := c.s.Enum(f.Type.Name); e != nil && e.Value(v.Str) != nil {
			return &schema.Literal{V: c.d.Literal(e.Value(v.Str).DBName())}
		}
		return &schema.Literal{V: c.d.Literal(v.Str)}
	case ast.ValueFunc:
		switch v.Str {
		case "now":
			return &schema.RawExpr{X: "CURRENT_TIMESTAMP"}
		case "dbgenerated":
			if len(v.Items) == 1 && v.Items[0].Kind == ast.ValueString {
				return &schema.RawExpr{X: v.Items[0].Str}
			}
		case "uuid":
			switch c.d {
			case dialect.PostgreSQL:
				return &schema.RawExpr{X: "gen_random_uuid()"}
			case dialect.MSSQL:
				return &schema.RawExpr{X: "NEWID()"}
			}
		}
	}
	return nil
}

func (c *converter) parts(m *ast.Model, t *schema.Table, fields []string) ([]*schema.IndexPart, error) {
	parts := make([]*schema.IndexPart, 0, len(fields))
	for i, name := range fields {
		col, err := c.columnOf(m, t, name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, &schema.IndexPart{SeqNo: i, C: col})
	}
	return parts, nil
}

func (c *converter) columnOf(m *ast.Model, t *schema.Table, field string) (*schema.Column, error) {
	name := field
	if f := m.Field(field); f != nil {
		name = f.ColumnName()
	}
	for _, col := range t.Columns {
		if col.Name == name {
			return col, nil
		}
	}
	return nil, prax.NewInvalidInputError("schema", field, fmt.Sprintf("model %s has no column %q", m.Name, field))
}

// foreignKeys adds a foreign key for every owning @relation field of m.
func (c *converter) foreignKeys(m *ast.Model) error {
	t := c.tables[m.Name]
	for _, f := range m.Fields {
		rel, ok := f.Relation()
		if !ok || !rel.IsOwner() {
			continue
		}
		target := c.s.Model(f.Type.Name)
		ref, ok := c.tables[f.Type.Name]
		if target == nil || !ok {
			return prax.NewInvalidInputError("schema", f.Name, "relation to unknown or ignored model "+f.Type.Name)
		}
		if len(rel.Fields) != len(rel.References) {
			return prax.NewInvalidInputError("schema", f.Name, "relation fields and references differ in length")
		}
		fk := &schema.ForeignKey{Table: t, RefTable: ref, OnUpdate: schema.Cascade, OnDelete: schema.NoAction}
		for i := range rel.Fields {
			col, err := c.columnOf(m, t, rel.Fields[i])
			if err != nil {
				return err
			}
			rcol, err := c.columnOf(target, ref, rel.References[i])
			if err != nil {
				return err
			}
			fk.Columns = append(fk.Columns, col)
			fk.RefColumns = append(fk.RefColumns, rcol)
		}
		if f.IsOptional() {
			fk.OnDelete = schema.SetNull
		}
		if rel.OnDelete != nil {
			fk.OnDelete = referenceOption(c.d, *rel.OnDelete)
		}
		if rel.OnUpdate != nil {
			fk.OnUpdate = referenceOption(c.d, *rel.OnUpdate)
		}
		names := make([]string, len(fk.Columns))
		for i, col := range fk.Columns {
			names[i] = col.Name
		}
		fk.Symbol = t.Name + "_" + strings.Join(names, "_") + "_fkey"
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return nil
}

// referenceOption maps a referential action. SQL Server has no RESTRICT.
func referenceOption(d dialect.DatabaseType, a ast.ReferentialAction) schema.ReferenceOption {
	if a == ast.Restrict && d == dialect.MSSQL {
		return schema.NoAction
	}
	return schema.ReferenceOption(a.SQL())
}

func partColumns(parts []*schema.IndexPart) []string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.C.Name
	}
	return names
}

// constraintName returns <table>_<columns>_key for unique indexes and
// <table>_<columns>_idx otherwise.
func constraintName(table string, columns []string, unique bool) string {
	suffix := "_idx"
	if unique {
		suffix = "_key"
	}
	return table + "_" + strings.Join(columns, "_") + suffix
}

// enumCheck restricts a string column holding an enum to its values.
func enumCheck(d dialect.DatabaseType, t *schema.Table, col *schema.Column, e *ast.Enum) *schema.Check {
	values := make([]string, len(e.Values))
	for i, v := range e.DBValues() {
		values[i] = d.Literal(v)
	}
	return &schema.Check{
		Name: t.Name + "_" + col.Name + "_check",
		Expr: d.QuoteIdent(col.Name) + " IN (" + strings.Join(values, ", ") + ")",
	}
}
