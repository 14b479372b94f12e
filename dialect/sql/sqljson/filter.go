package sqljson

import (
	"encoding/json"
	"fmt"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

type predKind uint8

const (
	predContains predKind = iota
	predContainedBy
	predHasKey
	predHasAnyKey
	predHasAllKeys
	predPathExists
	predPathMatch
	predEquals
)

// Predicate is a JSON condition over a column.
type Predicate struct {
	kind   predKind
	path   Path
	value  sql.Value
	keys   []string
	jsonpt string
}

// Contains matches documents that contain v (PostgreSQL @>).
func Contains(column string, v any) Predicate {
	return Predicate{kind: predContains, path: Path{Column: column}, value: jsonValue(v)}
}

// ContainedBy matches documents contained in v (PostgreSQL <@).
func ContainedBy(column string, v any) Predicate {
	return Predicate{kind: predContainedBy, path: Path{Column: column}, value: jsonValue(v)}
}

// HasKey matches documents with the top-level key.
func HasKey(column, key string) Predicate {
	return Predicate{kind: predHasKey, path: Path{Column: column}, keys: []string{key}}
}

// HasAnyKey matches documents with at least one of the keys.
func HasAnyKey(column string, keys ...string) Predicate {
	return Predicate{kind: predHasAnyKey, path: Path{Column: column}, keys: keys}
}

// HasAllKeys matches documents with every key.
func HasAllKeys(column string, keys ...string) Predicate {
	return Predicate{kind: predHasAllKeys, path: Path{Column: column}, keys: keys}
}

// PathExists matches documents where the SQL/JSON path yields an item
// (PostgreSQL @?).
func PathExists(column, jsonpath string) Predicate {
	return Predicate{kind: predPathExists, path: Path{Column: column}, jsonpt: jsonpath}
}

// PathMatch matches documents where the SQL/JSON path predicate is true
// (PostgreSQL @@).
func PathMatch(column, jsonpath string) Predicate {
	return Predicate{kind: predPathMatch, path: Path{Column: column}, jsonpt: jsonpath}
}

// jsonValue encodes v as a JSON parameter. Raw JSON passes through.
func jsonValue(v any) sql.Value {
	switch v := v.(type) {
	case json.RawMessage:
		return sql.JSONValue(v)
	case sql.JSONValue:
		return v
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.StringValue(fmt.Sprint(v))
	}
	return sql.JSONValue(b)
}

// Emit renders the predicate for d, numbering placeholders from
// offset+1.
func (p Predicate) Emit(d dialect.DatabaseType, offset int) (string, []sql.Value, error) {
	if err := p.path.check(d); err != nil {
		return "", nil, err
	}
	if (p.kind == predHasKey || p.kind == predHasAnyKey || p.kind == predHasAllKeys) && len(p.keys) == 0 {
		return "", nil, prax.NewInvalidInputError("json", "keys", "at least one key is required")
	}
	e := &emitter{d: d, n: offset}
	col := d.QuoteColumn(p.path.Column)
	switch p.kind {
	case predEquals:
		expr, err := p.path.Expr(d)
		if err != nil {
			return "", nil, err
		}
		e.write(expr + " = ")
		e.bind(p.value)
	case predContains, predContainedBy:
		switch d {
		case dialect.PostgreSQL:
			op := " @> "
			if p.kind == predContainedBy {
				op = " <@ "
			}
			e.write(col + op)
			e.bind(p.value)
			e.write("::jsonb")
		case dialect.MySQL:
			if p.kind == predContains {
				e.write("JSON_CONTAINS(" + col + ", ")
				e.bind(p.value)
				e.write(")")
			} else {
				e.write("JSON_CONTAINS(")
				e.bind(p.value)
				e.write(", " + col + ")")
			}
		default:
			return "", nil, d.Unsupported("json containment", "no JSON containment operator")
		}
	case predHasKey, predHasAnyKey, predHasAllKeys:
		e.keys(p, col)
	case predPathExists, predPathMatch:
		if d != dialect.PostgreSQL {
			return "", nil, d.Unsupported("json path predicate", "SQL/JSON path predicates need PostgreSQL")
		}
		op := " @? "
		if p.kind == predPathMatch {
			op = " @@ "
		}
		e.write(col + op)
		e.bind(sql.StringValue(p.jsonpt))
		e.write("::jsonpath")
	}
	return e.sql, e.params, nil
}

type emitter struct {
	d      dialect.DatabaseType
	n      int
	sql    string
	params []sql.Value
}

func (e *emitter) write(s string) { e.sql += s }

func (e *emitter) bind(v sql.Value) {
	e.n++
	e.params = append(e.params, v)
	e.sql += e.d.Placeholder(e.n)
}

func (e *emitter) keys(p Predicate, col string) {
	all := p.kind == predHasAllKeys
	switch e.d {
	case dialect.PostgreSQL:
		switch p.kind {
		case predHasKey:
			e.write(col + " ? ")
			e.bind(sql.StringValue(p.keys[0]))
			return
		case predHasAnyKey:
			e.write(col + " ?| ARRAY[")
		default:
			e.write(col + " ?& ARRAY[")
		}
		for i, k := range p.keys {
			if i > 0 {
				e.write(", ")
			}
			e.bind(sql.StringValue(k))
		}
		e.write("]")
	case dialect.MySQL:
		mode := "'one'"
		if all {
			mode = "'all'"
		}
		e.write("JSON_CONTAINS_PATH(" + col + ", " + mode)
		for _, k := range p.keys {
			e.write(", ")
			e.bind(sql.StringValue(keyPath(k)))
		}
		e.write(")")
	default:
		sep := " OR "
		if all {
			sep = " AND "
		}
		if len(p.keys) > 1 {
			e.write("(")
		}
		for i, k := range p.keys {
			if i > 0 {
				e.write(sep)
			}
			if e.d == dialect.SQLite {
				e.write("json_type(" + col + ", ")
				e.bind(sql.StringValue(keyPath(k)))
				e.write(") IS NOT NULL")
			} else {
				e.write("JSON_PATH_EXISTS(" + col + ", ")
				e.bind(sql.StringValue(keyPath(k)))
				e.write(") = 1")
			}
		}
		if len(p.keys) > 1 {
			e.write(")")
		}
	}
}

// keyPath returns the JSON path of a top-level member.
func keyPath(key string) string {
	return Path{Segments: []Segment{Field(key)}}.JSONPath(dialect.PostgreSQL)
}
