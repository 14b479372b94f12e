package sqljson

import (
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// OpKind is the variant tag of an Op.
type OpKind uint8

// Mutation variants.
const (
	OpSet OpKind = iota
	OpInsert
	OpReplace
	OpRemove
	OpArrayAppend
	OpArrayPrepend
	OpMerge
	OpIncrement
)

var opNames = [...]string{
	OpSet:          "set",
	OpInsert:       "insert",
	OpReplace:      "replace",
	OpRemove:       "remove",
	OpArrayAppend:  "array append",
	OpArrayPrepend: "array prepend",
	OpMerge:        "merge",
	OpIncrement:    "increment",
}

func (k OpKind) String() string { return opNames[k] }

// Op is an in-place mutation of a JSON document. Path segments are
// relative to the column and may not contain wildcards.
type Op struct {
	Kind  OpKind
	Path  []Segment
	Value any
}

// Set writes v at path, creating it when missing.
func Set(path []Segment, v any) Op { return Op{Kind: OpSet, Path: path, Value: v} }

// Insert writes v at path only when it is missing.
func Insert(path []Segment, v any) Op { return Op{Kind: OpInsert, Path: path, Value: v} }

// Replace writes v at path only when it exists.
func Replace(path []Segment, v any) Op { return Op{Kind: OpReplace, Path: path, Value: v} }

// Remove deletes path.
func Remove(path []Segment) Op { return Op{Kind: OpRemove, Path: path} }

// ArrayAppend adds v to the end of the array at path.
func ArrayAppend(path []Segment, v any) Op { return Op{Kind: OpArrayAppend, Path: path, Value: v} }

// ArrayPrepend adds v to the start of the array at path.
func ArrayPrepend(path []Segment, v any) Op { return Op{Kind: OpArrayPrepend, Path: path, Value: v} }

// Merge merges the object v into the document.
func Merge(v any) Op { return Op{Kind: OpMerge, Value: v} }

// Increment adds n to the number at path, treating a missing value as 0.
func Increment(path []Segment, n any) Op { return Op{Kind: OpIncrement, Path: path, Value: n} }

// Keys is shorthand for a path of object members.
func Keys(keys ...string) []Segment {
	segs := make([]Segment, len(keys))
	for i, k := range keys {
		segs[i] = Field(k)
	}
	return segs
}

var unsupportedOps = map[dialect.DatabaseType]map[OpKind]string{
	dialect.SQLite: {
		OpArrayPrepend: "json_insert cannot shift array elements",
	},
	dialect.MSSQL: {
		OpInsert:       "JSON_MODIFY cannot write only missing paths",
		OpReplace:      "JSON_MODIFY cannot write only existing paths",
		OpArrayPrepend: "JSON_MODIFY can only append to arrays",
		OpMerge:        "there is no JSON merge function",
	},
}

func (o Op) check(d dialect.DatabaseType) error {
	if reason, ok := unsupportedOps[d][o.Kind]; ok {
		return d.Unsupported("json "+o.Kind.String(), "%s", reason)
	}
	p := Path{Segments: o.Path}
	if !p.plain() {
		return prax.NewInvalidInputError("json", "path", "mutation paths cannot contain wildcards")
	}
	if o.Kind != OpMerge && len(o.Path) == 0 {
		return prax.NewInvalidInputError("json", "path", o.Kind.String()+" needs a path")
	}
	return nil
}

// Update renders the expression applying ops in order to column. Reads
// performed by Increment see the stored value.
func Update(d dialect.DatabaseType, column string, ops ...Op) (sql.Statement, error) {
	if column == "" {
		return sql.Statement{}, prax.NewInvalidInputError("json", "column", "column is required")
	}
	if len(ops) == 0 {
		return sql.Statement{}, prax.NewInvalidInputError("json", "ops", "at least one operation is required")
	}
	for _, o := range ops {
		if err := o.check(d); err != nil {
			return sql.Statement{}, err
		}
	}
	sb := sql.NewBuilder(d)
	col := d.QuoteColumn(column)
	var emit func(i int)
	emit = func(i int) {
		if i < 0 {
			sb.WriteString(col)
			return
		}
		ops[i].render(sb, col, func() { emit(i - 1) })
	}
	emit(len(ops) - 1)
	return sb.Statement(), nil
}

// UpdateStatement renders UPDATE table SET column = <ops> WHERE where.
func UpdateStatement(d dialect.DatabaseType, table, column string, where sql.Filter, ops ...Op) (sql.Statement, error) {
	expr, err := Update(d, column, ops...)
	if err != nil {
		return sql.Statement{}, err
	}
	sb := sql.NewBuilder(d)
	sb.WriteString("UPDATE ")
	sb.Column(table)
	sb.WriteString(" SET ")
	sb.Column(column)
	sb.WriteString(" = ")
	sb.WriteString(expr.SQL)
	stmt := sb.Statement()
	stmt.Params = expr.Params
	if !where.IsNone() {
		cond, params := where.Emit(d, len(stmt.Params))
		stmt.SQL += " WHERE " + cond
		stmt.Params = append(stmt.Params, params...)
	}
	return stmt, nil
}

// render writes the mutation around the expression written by inner.
func (o Op) render(sb *sql.Builder, col string, inner func()) {
	d := sb.Dialect()
	p := Path{Segments: o.Path}
	switch d {
	case dialect.PostgreSQL:
		arr := d.Literal(p.pgArray())
		switch o.Kind {
		case OpSet, OpReplace:
			sb.WriteString("jsonb_set(")
			inner()
			sb.WriteString(", " + arr + ", ")
			sb.Arg(jsonValue(o.Value))
			if o.Kind == OpReplace {
				sb.WriteString("::jsonb, false)")
			} else {
				sb.WriteString("::jsonb)")
			}
		case OpInsert:
			sb.WriteString("jsonb_insert(")
			inner()
			sb.WriteString(", " + arr + ", ")
			sb.Arg(jsonValue(o.Value))
			sb.WriteString("::jsonb)")
		case OpRemove:
			sb.WriteByte('(')
			inner()
			sb.WriteString(" #- " + arr + ")")
		case OpArrayAppend, OpArrayPrepend:
			at, after := "0", ""
			if o.Kind == OpArrayAppend {
				at, after = "-1", ", true"
			}
			elem := strings.TrimSuffix(p.pgArray(), "}") + "," + at + "}"
			sb.WriteString("jsonb_insert(")
			inner()
			sb.WriteString(", " + d.Literal(elem) + ", ")
			sb.Arg(jsonValue(o.Value))
			sb.WriteString("::jsonb" + after + ")")
		case OpMerge:
			sb.WriteByte('(')
			inner()
			sb.WriteString(" || ")
			sb.Arg(jsonValue(o.Value))
			sb.WriteString("::jsonb)")
		case OpIncrement:
			sb.WriteString("jsonb_set(")
			inner()
			sb.WriteString(", " + arr + ", to_jsonb(COALESCE((" + col + " #>> " + arr + ")::numeric, 0) + ")
			sb.Arg(o.Value)
			sb.WriteString("))")
		}
	case dialect.MySQL, dialect.SQLite:
		path := d.Literal(p.JSONPath(d))
		fn := func(name string) string {
			if d == dialect.SQLite {
				return strings.ToLower(name)
			}
			return name
		}
		asJSON := func(v any) {
			if d == dialect.SQLite {
				sb.WriteString("json(")
				sb.Arg(jsonValue(v))
				sb.WriteByte(')')
				return
			}
			sb.WriteString("CAST(")
			sb.Arg(jsonValue(v))
			sb.WriteString(" AS JSON)")
		}
		name := map[OpKind]string{
			OpSet:     "JSON_SET",
			OpInsert:  "JSON_INSERT",
			OpReplace: "JSON_REPLACE",
		}
		switch o.Kind {
		case OpSet, OpInsert, OpReplace:
			sb.WriteString(fn(name[o.Kind]) + "(")
			inner()
			sb.WriteString(", " + path + ", ")
			asJSON(o.Value)
			sb.WriteByte(')')
		case OpRemove:
			sb.WriteString(fn("JSON_REMOVE") + "(")
			inner()
			sb.WriteString(", " + path + ")")
		case OpArrayAppend:
			if d == dialect.SQLite {
				sb.WriteString("json_insert(")
				inner()
				sb.WriteString(", " + d.Literal(p.JSONPath(d)+"[#]") + ", ")
			} else {
				sb.WriteString("JSON_ARRAY_APPEND(")
				inner()
				sb.WriteString(", " + path + ", ")
			}
			asJSON(o.Value)
			sb.WriteByte(')')
		case OpArrayPrepend:
			sb.WriteString("JSON_ARRAY_INSERT(")
			inner()
			sb.WriteString(", " + d.Literal(p.JSONPath(d)+"[0]") + ", ")
			asJSON(o.Value)
			sb.WriteByte(')')
		case OpMerge:
			if d == dialect.SQLite {
				sb.WriteString("json_patch(")
			} else {
				sb.WriteString("JSON_MERGE_PATCH(")
			}
			inner()
			sb.WriteString(", ")
			sb.Arg(jsonValue(o.Value))
			sb.WriteByte(')')
		case OpIncrement:
			sb.WriteString(fn("JSON_SET") + "(")
			inner()
			sb.WriteString(", " + path + ", COALESCE(" + fn("JSON_EXTRACT") + "(" + col + ", " + path + "), 0) + ")
			sb.Arg(o.Value)
			sb.WriteByte(')')
		}
	case dialect.MSSQL:
		path := d.Literal(p.JSONPath(d))
		switch o.Kind {
		case OpSet:
			sb.WriteString("JSON_MODIFY(")
			inner()
			sb.WriteString(", " + path + ", ")
			mssqlValue(sb, o.Value)
			sb.WriteByte(')')
		case OpRemove:
			sb.WriteString("JSON_MODIFY(")
			inner()
			sb.WriteString(", " + path + ", NULL)")
		case OpArrayAppend:
			sb.WriteString("JSON_MODIFY(")
			inner()
			sb.WriteString(", " + d.Literal("append "+p.JSONPath(d)) + ", ")
			mssqlValue(sb, o.Value)
			sb.WriteByte(')')
		case OpIncrement:
			sb.WriteString("JSON_MODIFY(")
			inner()
			sb.WriteString(", " + path + ", COALESCE(CAST(JSON_VALUE(" + col + ", " + path + ") AS FLOAT), 0) + ")
			sb.Arg(o.Value)
			sb.WriteByte(')')
		}
	}
}

// mssqlValue binds scalars directly and wraps documents in JSON_QUERY so
// JSON_MODIFY does not escape them as strings.
func mssqlValue(sb *sql.Builder, v any) {
	switch sql.ValueOf(v).(type) {
	case sql.NullValue, sql.BoolValue, sql.IntValue, sql.FloatValue, sql.StringValue:
		sb.Arg(v)
	default:
		sb.WriteString("JSON_QUERY(")
		sb.Arg(jsonValue(v))
		sb.WriteByte(')')
	}
}
