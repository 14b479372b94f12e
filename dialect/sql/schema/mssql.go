package schema

import (
	"strconv"
	"strings"

	"ariga.io/atlas/sql/schema"

	"github.com/syssam/prax/dialect"
)

// createMSSQL writes T-SQL DDL for the realm: one CREATE TABLE per table
// with its primary key, unique constraints and checks inline, then secondary
// indexes, then foreign keys once every table exists.
func createMSSQL(r *schema.Realm) []string {
	d := dialect.MSSQL
	var (
		tables  []string
		indexes []string
		fks     []string
	)
	for _, ns := range r.Schemas {
		for _, t := range ns.Tables {
			name := mssqlName(ns.Name, t.Name)
			tables = append(tables, mssqlTable(name, t))
			for _, idx := range t.Indexes {
				if idx.Unique {
					continue
				}
				indexes = append(indexes, "CREATE NONCLUSTERED INDEX "+d.Quote(idx.Name)+" ON "+name+"("+mssqlParts(idx.Parts)+");")
			}
			for _, fk := range t.ForeignKeys {
				fks = append(fks, mssqlForeignKey(name, fk))
			}
		}
	}
	return append(append(tables, indexes...), fks...)
}

func mssqlName(ns, table string) string {
	if ns == "" {
		ns = DefaultSchema(dialect.MSSQL)
	}
	return dialect.MSSQL.Quote(ns) + "." + dialect.MSSQL.Quote(table)
}

func mssqlTable(name string, t *schema.Table) string {
	d := dialect.MSSQL
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, mssqlColumn(t, c))
	}
	if t.PrimaryKey != nil {
		lines = append(lines, "CONSTRAINT "+d.Quote(t.PrimaryKey.Name)+" PRIMARY KEY CLUSTERED ("+mssqlParts(t.PrimaryKey.Parts)+")")
	}
	for _, idx := range t.Indexes {
		if idx.Unique {
			lines = append(lines, "CONSTRAINT "+d.Quote(idx.Name)+" UNIQUE NONCLUSTERED ("+mssqlParts(idx.Parts)+")")
		}
	}
	for _, a := range t.Attrs {
		if c, ok := a.(*schema.Check); ok {
			lines = append(lines, "CONSTRAINT "+d.Quote(c.Name)+" CHECK ("+c.Expr+")")
		}
	}
	return "CREATE TABLE " + name + " (\n    " + strings.Join(lines, ",\n    ") + "\n);"
}

func mssqlColumn(t *schema.Table, c *schema.Column) string {
	d := dialect.MSSQL
	var b strings.Builder
	b.WriteString(d.Quote(c.Name) + " " + strings.ToUpper(typeString(c.Type.Type)))
	if c.Type.Null {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	for _, a := range c.Attrs {
		if id, ok := a.(*identity); ok {
			b.WriteString(" IDENTITY(" + strconv.FormatInt(id.Seed, 10) + "," + strconv.FormatInt(id.Increment, 10) + ")")
		}
	}
	switch x := c.Default.(type) {
	case *schema.Literal:
		b.WriteString(" CONSTRAINT " + d.Quote(t.Name+"_"+c.Name+"_df") + " DEFAULT " + x.V)
	case *schema.RawExpr:
		b.WriteString(" CONSTRAINT " + d.Quote(t.Name+"_"+c.Name+"_df") + " DEFAULT " + x.X)
	}
	return b.String()
}

func mssqlParts(parts []*schema.IndexPart) string {
	cols := make([]string, len(parts))
	for i, p := range parts {
		cols[i] = dialect.MSSQL.Quote(p.C.Name)
	}
	return strings.Join(cols, ", ")
}

func mssqlForeignKey(table string, fk *schema.ForeignKey) string {
	d := dialect.MSSQL
	cols := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		cols[i] = d.Quote(c.Name)
	}
	refs := make([]string, len(fk.RefColumns))
	for i, c := range fk.RefColumns {
		refs[i] = d.Quote(c.Name)
	}
	ns := ""
	if fk.RefTable.Schema != nil {
		ns = fk.RefTable.Schema.Name
	}
	return "ALTER TABLE " + table + " ADD CONSTRAINT " + d.Quote(fk.Symbol) +
		" FOREIGN KEY (" + strings.Join(cols, ", ") + ") REFERENCES " + mssqlName(ns, fk.RefTable.Name) +
		"(" + strings.Join(refs, ", ") + ") ON DELETE " + string(fk.OnDelete) + " ON UPDATE " + string(fk.OnUpdate) + ";"
}
