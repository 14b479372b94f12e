// Package sqljson renders JSON column paths, predicates and in-place
// mutations for each dialect.
package sqljson

import (
	"strconv"
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// SegmentKind is the variant tag of a path Segment.
type SegmentKind uint8

// Segment variants.
const (
	SegField SegmentKind = iota
	SegIndex
	SegWildcard
	SegRecursive
)

// Segment is one step of a JSON path.
type Segment struct {
	Kind  SegmentKind
	Key   string
	Index int
}

// Field selects an object member.
func Field(key string) Segment { return Segment{Kind: SegField, Key: key} }

// Index selects an array element.
func Index(i int) Segment { return Segment{Kind: SegIndex, Index: i} }

// Wildcard selects every array element.
func Wildcard() Segment { return Segment{Kind: SegWildcard} }

// Recursive descends into every nested level.
func Recursive() Segment { return Segment{Kind: SegRecursive} }

// Path addresses a value inside a JSON column. AsText extracts the final
// value as text instead of JSON.
type Path struct {
	Column   string
	Segments []Segment
	AsText   bool
}

// ValuePath returns a path over column following the dotted keys; numeric
// keys select array elements.
func ValuePath(column string, keys ...string) Path {
	p := Path{Column: column}
	for _, k := range keys {
		if i, err := strconv.Atoi(k); err == nil && i >= 0 {
			p.Segments = append(p.Segments, Index(i))
		} else {
			p.Segments = append(p.Segments, Field(k))
		}
	}
	return p
}

// Text returns a copy of p that extracts text.
func (p Path) Text() Path {
	p.AsText = true
	return p
}

func (p Path) plain() bool {
	for _, s := range p.Segments {
		if s.Kind == SegWildcard || s.Kind == SegRecursive {
			return false
		}
	}
	return true
}

// JSONPath returns the SQL/JSON path text, e.g. $.a.b[0]. PostgreSQL
// spells recursive descent .** and MySQL prefixes the next member with **.
func (p Path) JSONPath(d dialect.DatabaseType) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, s := range p.Segments {
		switch s.Kind {
		case SegField:
			b.WriteByte('.')
			if dialect.IsIdentifier(s.Key) {
				b.WriteString(s.Key)
			} else {
				b.WriteString(strconv.Quote(s.Key))
			}
		case SegIndex:
			b.WriteString("[" + strconv.Itoa(s.Index) + "]")
		case SegWildcard:
			b.WriteString("[*]")
		case SegRecursive:
			if d == dialect.MySQL {
				b.WriteString("**")
			} else {
				b.WriteString(".**")
			}
		}
	}
	return b.String()
}

// pgArray returns the text[] path literal used by #>, #- and jsonb_set.
func (p Path) pgArray() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		if s.Kind == SegIndex {
			parts[i] = strconv.Itoa(s.Index)
			continue
		}
		if strings.ContainsAny(s.Key, `,{}" \`) || s.Key == "" {
			parts[i] = strconv.Quote(s.Key)
		} else {
			parts[i] = s.Key
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (p Path) check(d dialect.DatabaseType) error {
	if p.Column == "" {
		return prax.NewInvalidInputError("json", "column", "column is required")
	}
	if !p.plain() && (d == dialect.SQLite || d == dialect.MSSQL) {
		return d.Unsupported("json path", "wildcard and recursive paths are not supported")
	}
	return nil
}

// Expr renders the path extraction for d.
func (p Path) Expr(d dialect.DatabaseType) (string, error) {
	if err := p.check(d); err != nil {
		return "", err
	}
	col := d.QuoteColumn(p.Column)
	switch d {
	case dialect.PostgreSQL:
		if !p.plain() {
			expr := "jsonb_path_query(" + col + ", " + d.Literal(p.JSONPath(d)) + ")"
			if p.AsText {
				expr = "(" + expr + " #>> '{}')"
			}
			return expr, nil
		}
		var b strings.Builder
		b.WriteString(col)
		for i, s := range p.Segments {
			op := " -> "
			if p.AsText && i == len(p.Segments)-1 {
				op = " ->> "
			}
			b.WriteString(op)
			if s.Kind == SegIndex {
				b.WriteString(strconv.Itoa(s.Index))
			} else {
				b.WriteString(d.Literal(s.Key))
			}
		}
		if p.AsText && len(p.Segments) == 0 {
			b.WriteString(" #>> '{}'")
		}
		return b.String(), nil
	case dialect.MySQL:
		expr := "JSON_EXTRACT(" + col + ", " + d.Literal(p.JSONPath(d)) + ")"
		if p.AsText {
			expr = "JSON_UNQUOTE(" + expr + ")"
		}
		return expr, nil
	case dialect.SQLite:
		return "json_extract(" + col + ", " + d.Literal(p.JSONPath(d)) + ")", nil
	case dialect.MSSQL:
		fn := "JSON_QUERY"
		if p.AsText {
			fn = "JSON_VALUE"
		}
		return fn + "(" + col + ", " + d.Literal(p.JSONPath(d)) + ")", nil
	}
	return "", d.Unsupported("json path", "unknown dialect")
}

// MongoPath returns the dotted field path of p.
func (p Path) MongoPath() (string, error) {
	parts := []string{p.Column}
	for _, s := range p.Segments {
		switch s.Kind {
		case SegField:
			parts = append(parts, s.Key)
		case SegIndex:
			parts = append(parts, strconv.Itoa(s.Index))
		default:
			return "", prax.NewUnsupportedError("MongoDB", "json path", "wildcard and recursive paths have no dotted form")
		}
	}
	return strings.Join(parts, "."), nil
}

// Equals matches rows whose value at p equals v. The path is extracted as
// text on every dialect.
func Equals(p Path, v any) Predicate {
	return Predicate{kind: predEquals, path: p.Text(), value: sql.ValueOf(v)}
}
