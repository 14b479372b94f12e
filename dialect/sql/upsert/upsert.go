// Package upsert builds INSERT statements that resolve unique-key
// conflicts, for every SQL dialect and for MongoDB.
package upsert

import (
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// TargetKind is the variant tag of a ConflictTarget.
type TargetKind uint8

// Conflict target variants.
const (
	TargetImplicit TargetKind = iota
	TargetColumns
	TargetConstraint
	TargetExpression
)

// ConflictTarget names the unique index whose violation triggers the
// conflict action.
type ConflictTarget struct {
	Kind    TargetKind
	Columns []string
	// Name is the constraint name or the index expression.
	Name string
}

// Columns targets the unique index over cols.
func Columns(cols ...string) ConflictTarget {
	return ConflictTarget{Kind: TargetColumns, Columns: cols}
}

// Constraint targets a named constraint.
func Constraint(name string) ConflictTarget {
	return ConflictTarget{Kind: TargetConstraint, Name: name}
}

// IndexExpression targets an expression index such as lower(email).
func IndexExpression(expr string) ConflictTarget {
	return ConflictTarget{Kind: TargetExpression, Name: expr}
}

// Implicit lets the database pick any violated unique index.
func Implicit() ConflictTarget { return ConflictTarget{} }

// AssignKind is the variant tag of an Assignment.
type AssignKind uint8

// Assignment variants.
const (
	// AssignExcluded copies the value proposed for insertion.
	AssignExcluded AssignKind = iota
	AssignValue
	AssignIncrement
	AssignPush
	AssignExpr
)

// Assignment is one SET entry of the conflict update.
type Assignment struct {
	Column string
	Kind   AssignKind
	Value  any
}

// Excluded sets col to the value proposed for insertion.
func Excluded(col string) Assignment { return Assignment{Column: col} }

// Set binds v to col.
func Set(col string, v any) Assignment { return Assignment{Column: col, Kind: AssignValue, Value: v} }

// Increment adds by to the stored value of col.
func Increment(col string, by any) Assignment {
	return Assignment{Column: col, Kind: AssignIncrement, Value: by}
}

// Push appends v to the array stored in col.
func Push(col string, v any) Assignment { return Assignment{Column: col, Kind: AssignPush, Value: v} }

// SetExpr sets col to a raw SQL expression.
func SetExpr(col string, expr sql.Expr) Assignment {
	return Assignment{Column: col, Kind: AssignExpr, Value: expr}
}

// Builder accumulates an upsert. The zero action is DoNothing.
type Builder struct {
	table     string
	columns   []string
	rows      [][]any
	target    ConflictTarget
	update    []Assignment
	doUpdate  bool
	where     sql.Filter
	returning []string
	err       error
}

// Into starts an upsert into table.
func Into(table string) *Builder { return &Builder{table: table} }

// Columns sets the inserted columns.
func (b *Builder) Columns(cols ...string) *Builder {
	b.columns = cols
	return b
}

// Values appends one row. Each row must have one value per column; a
// sql.Expr value is written verbatim.
func (b *Builder) Values(vs ...any) *Builder {
	if b.err == nil && len(vs) != len(b.columns) {
		b.err = prax.NewInvalidInputError("upsert", "values", "row has a different number of values than columns")
	}
	b.rows = append(b.rows, vs)
	return b
}

// OnConflict sets the conflict target.
func (b *Builder) OnConflict(t ConflictTarget) *Builder {
	b.target = t
	return b
}

// DoNothing skips conflicting rows.
func (b *Builder) DoNothing() *Builder {
	b.doUpdate, b.update = false, nil
	return b
}

// DoUpdate overwrites cols with the values proposed for insertion.
func (b *Builder) DoUpdate(cols ...string) *Builder {
	as := make([]Assignment, len(cols))
	for i, c := range cols {
		as[i] = Excluded(c)
	}
	return b.DoUpdateSet(as...)
}

// DoUpdateSet applies the assignments to conflicting rows.
func (b *Builder) DoUpdateSet(as ...Assignment) *Builder {
	b.doUpdate, b.update = true, as
	return b
}

// Where restricts the conflict update to rows matching f.
func (b *Builder) Where(f sql.Filter) *Builder {
	b.where = f
	return b
}

// Returning sets the columns returned for each affected row.
func (b *Builder) Returning(cols ...string) *Builder {
	b.returning = cols
	return b
}

func (b *Builder) check() error {
	switch {
	case b.err != nil:
		return b.err
	case b.table == "":
		return prax.NewInvalidInputError("upsert", "table", "table is required")
	case len(b.columns) == 0:
		return prax.NewInvalidInputError("upsert", "columns", "at least one column is required")
	case len(b.rows) == 0:
		return prax.NewInvalidInputError("upsert", "values", "at least one row is required")
	case b.doUpdate && len(b.update) == 0:
		return prax.NewInvalidInputError("upsert", "update", "DoUpdate needs at least one assignment")
	case !b.doUpdate && !b.where.IsNone():
		return prax.NewInvalidInputError("upsert", "where", "a conflict condition requires DoUpdate")
	case b.target.Kind == TargetColumns && len(b.target.Columns) == 0:
		return prax.NewInvalidInputError("upsert", "target", "conflict target has no columns")
	}
	for _, a := range b.update {
		if a.Column == "" {
			return prax.NewInvalidInputError("upsert", "update", "assignment without a column")
		}
		if a.Kind == AssignExcluded && !b.hasColumn(a.Column) {
			return prax.NewInvalidInputError("upsert", "update", "column "+a.Column+" is not inserted")
		}
	}
	return nil
}

func (b *Builder) hasColumn(name string) bool {
	for _, c := range b.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Build emits the statement for d.
func (b *Builder) Build(d dialect.DatabaseType) (sql.Statement, error) {
	if err := b.check(); err != nil {
		return sql.Statement{}, err
	}
	var (
		stmt sql.Statement
		err  error
	)
	switch d {
	case dialect.PostgreSQL, dialect.SQLite:
		stmt, err = b.onConflict(d)
	case dialect.MySQL:
		stmt, err = b.onDuplicateKey()
	case dialect.MSSQL:
		stmt, err = b.merge()
	default:
		return sql.Statement{}, d.Unsupported("upsert", "unknown dialect")
	}
	if err != nil {
		return sql.Statement{}, err
	}
	stmt.ExpectsRows = len(b.returning) > 0
	return stmt, nil
}

func (b *Builder) insert(sb *sql.Builder, verb string) {
	sb.WriteString(verb)
	sb.WriteString(" INTO ")
	sb.Column(b.table)
	sb.WriteString(" (")
	sb.Idents(b.columns...)
	sb.WriteString(") VALUES ")
	for i, row := range b.rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		sb.Args(row...)
		sb.WriteByte(')')
	}
}

// baseTable is the unqualified table name used to reference the stored row.
func (b *Builder) baseTable() string {
	if i := strings.LastIndexByte(b.table, '.'); i >= 0 {
		return b.table[i+1:]
	}
	return b.table
}

func (b *Builder) onConflict(d dialect.DatabaseType) (sql.Statement, error) {
	sb := sql.NewBuilder(d)
	b.insert(sb, "INSERT")
	sb.WriteString(" ON CONFLICT")
	switch b.target.Kind {
	case TargetColumns:
		sb.WriteString(" (")
		sb.Idents(b.target.Columns...)
		sb.WriteByte(')')
	case TargetConstraint:
		if d == dialect.SQLite {
			return sql.Statement{}, d.Unsupported("upsert", "conflict targets cannot name a constraint")
		}
		sb.WriteString(" ON CONSTRAINT ")
		sb.Ident(b.target.Name)
	case TargetExpression:
		if d == dialect.PostgreSQL {
			sb.WriteString(" ((" + b.target.Name + "))")
		} else {
			sb.WriteString(" (" + b.target.Name + ")")
		}
	case TargetImplicit:
		if b.doUpdate && d == dialect.PostgreSQL {
			return sql.Statement{}, d.Unsupported("upsert", "ON CONFLICT DO UPDATE requires a conflict target")
		}
	}
	if !b.doUpdate {
		sb.WriteString(" DO NOTHING")
	} else {
		excluded := "EXCLUDED."
		if d == dialect.SQLite {
			excluded = "excluded."
		}
		stored := d.QuoteIdent(b.baseTable()) + "."
		sb.WriteString(" DO UPDATE SET ")
		for i, a := range b.update {
			if i > 0 {
				sb.WriteString(", ")
			}
			col := d.QuoteIdent(a.Column)
			sb.WriteString(col + " = ")
			switch a.Kind {
			case AssignExcluded:
				sb.WriteString(excluded + col)
			case AssignValue, AssignExpr:
				sb.Arg(a.Value)
			case AssignIncrement:
				sb.WriteString(stored + col + " + ")
				sb.Arg(a.Value)
			case AssignPush:
				if d == dialect.PostgreSQL {
					sb.WriteString("array_append(" + stored + col + ", ")
				} else {
					sb.WriteString("json_insert(" + stored + col + ", '$[#]', ")
				}
				sb.Arg(a.Value)
				sb.WriteByte(')')
			}
		}
		if !b.where.IsNone() {
			sb.WriteString(" WHERE ")
			sb.Filter(b.where)
		}
	}
	if len(b.returning) > 0 {
		sb.WriteString(" RETURNING ")
		sb.Idents(b.returning...)
	}
	return sb.Statement(), nil
}

func (b *Builder) onDuplicateKey() (sql.Statement, error) {
	d := dialect.MySQL
	switch {
	case !b.where.IsNone():
		return sql.Statement{}, d.Unsupported("upsert", "ON DUPLICATE KEY UPDATE cannot be conditional")
	case len(b.returning) > 0:
		return sql.Statement{}, d.Unsupported("upsert", "INSERT has no RETURNING clause")
	}
	sb := sql.NewBuilder(d)
	if !b.doUpdate {
		b.insert(sb, "INSERT IGNORE")
		return sb.Statement(), nil
	}
	b.insert(sb, "INSERT")
	sb.WriteString(" ON DUPLICATE KEY UPDATE ")
	for i, a := range b.update {
		if i > 0 {
			sb.WriteString(", ")
		}
		col := d.QuoteIdent(a.Column)
		sb.WriteString(col + " = ")
		switch a.Kind {
		case AssignExcluded:
			sb.WriteString("VALUES(" + col + ")")
		case AssignValue, AssignExpr:
			sb.Arg(a.Value)
		case AssignIncrement:
			sb.WriteString(col + " + ")
			sb.Arg(a.Value)
		case AssignPush:
			sb.WriteString("JSON_ARRAY_APPEND(" + col + ", '$', ")
			sb.Arg(a.Value)
			sb.WriteByte(')')
		}
	}
	return sb.Statement(), nil
}

// merge emits a MERGE statement matching rows on the target columns. The
// source rows are aliased "source" and the table "target".
func (b *Builder) merge() (sql.Statement, error) {
	d := dialect.MSSQL
	if b.target.Kind != TargetColumns {
		return sql.Statement{}, d.Unsupported("upsert", "MERGE needs explicit key columns")
	}
	sb := sql.NewBuilder(d)
	sb.WriteString("MERGE INTO ")
	sb.Column(b.table)
	sb.WriteString(" AS target USING (")
	if len(b.rows) == 1 {
		sb.WriteString("SELECT ")
		for i, v := range b.rows[0] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.Arg(v)
			sb.WriteString(" AS ")
			sb.Ident(b.columns[i])
		}
		sb.WriteString(") AS source")
	} else {
		sb.WriteString("VALUES ")
		for i, row := range b.rows {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			sb.Args(row...)
			sb.WriteByte(')')
		}
		sb.WriteString(") AS source (")
		sb.Idents(b.columns...)
		sb.WriteByte(')')
	}
	sb.WriteString(" ON ")
	for i, c := range b.target.Columns {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		col := d.QuoteIdent(c)
		sb.WriteString("target." + col + " = source." + col)
	}
	if b.doUpdate {
		sb.WriteString(" WHEN MATCHED")
		if !b.where.IsNone() {
			sb.WriteString(" AND ")
			sb.Filter(b.where)
		}
		sb.WriteString(" THEN UPDATE SET ")
		for i, a := range b.update {
			if i > 0 {
				sb.WriteString(", ")
			}
			col := d.QuoteIdent(a.Column)
			sb.WriteString("target." + col + " = ")
			switch a.Kind {
			case AssignExcluded:
				sb.WriteString("source." + col)
			case AssignValue, AssignExpr:
				sb.Arg(a.Value)
			case AssignIncrement:
				sb.WriteString("target." + col + " + ")
				sb.Arg(a.Value)
			case AssignPush:
				sb.WriteString("JSON_MODIFY(target." + col + ", 'append $', ")
				sb.Arg(a.Value)
				sb.WriteByte(')')
			}
		}
	}
	sb.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	sb.Idents(b.columns...)
	sb.WriteString(") VALUES (")
	for i, c := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("source." + d.QuoteIdent(c))
	}
	sb.WriteByte(')')
	if len(b.returning) > 0 {
		sb.WriteString(" OUTPUT ")
		for i, c := range b.returning {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("inserted." + d.QuoteIdent(c))
		}
	}
	sb.WriteByte(';')
	return sb.Statement(), nil
}
