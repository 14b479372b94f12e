package sql

import (
	"strings"

	"github.com/syssam/prax/dialect"
)

// Statement is an emitted SQL statement with its bound parameters.
type Statement struct {
	SQL    string
	Params []Value
	// ExpectsRows reports whether the statement returns a result set.
	ExpectsRows bool
}

// NewStatement returns a statement binding args to its placeholders.
func NewStatement(query string, args ...any) Statement {
	s := Statement{SQL: query}
	if len(args) > 0 {
		s.Params = make([]Value, len(args))
		for i, a := range args {
			s.Params[i] = ValueOf(a)
		}
	}
	return s
}

// Args returns the parameters as database/sql arguments.
func (s Statement) Args() []any { return Args(s.Params) }

// String returns the SQL text.
func (s Statement) String() string { return s.SQL }

// Expr is a raw SQL expression. Builders write it verbatim instead of
// binding it, so it must never carry user input.
type Expr string

// Raw returns s as an Expr.
func Raw(s string) Expr { return Expr(s) }

// Builder accumulates SQL text and parameters for one dialect, numbering
// placeholders in binding order.
type Builder struct {
	strings.Builder
	d      dialect.DatabaseType
	params []Value
}

// NewBuilder returns an empty Builder for d.
func NewBuilder(d dialect.DatabaseType) *Builder {
	return &Builder{d: d}
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() dialect.DatabaseType { return b.d }

// Ident writes name, quoted when necessary.
func (b *Builder) Ident(name string) *Builder {
	b.WriteString(b.d.QuoteIdent(name))
	return b
}

// Column writes a possibly qualified column reference.
func (b *Builder) Column(ref string) *Builder {
	b.WriteString(b.d.QuoteColumn(ref))
	return b
}

// Idents writes names separated by ", ".
func (b *Builder) Idents(names ...string) *Builder {
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(n)
	}
	return b
}

// Arg binds v and writes its placeholder. An Expr is written verbatim.
func (b *Builder) Arg(v any) *Builder {
	if e, ok := v.(Expr); ok {
		b.WriteString(string(e))
		return b
	}
	b.params = append(b.params, ValueOf(v))
	b.WriteString(b.d.Placeholder(len(b.params)))
	return b
}

// Args binds vs separated by ", ".
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Filter writes f, continuing the placeholder numbering.
func (b *Builder) Filter(f Filter) *Builder {
	s, params := f.Emit(b.d, len(b.params))
	b.WriteString(s)
	b.params = append(b.params, params...)
	return b
}

// Params returns the parameters bound so far.
func (b *Builder) Params() []Value { return b.params }

// Statement returns the accumulated statement.
func (b *Builder) Statement() Statement {
	return Statement{SQL: b.String(), Params: b.params}
}
