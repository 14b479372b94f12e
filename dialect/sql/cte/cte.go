// Package cte builds statements with common table expressions.
package cte

import (
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// Materialization is a PostgreSQL planner hint for a CTE.
type Materialization uint8

// Materialization hints.
const (
	MaterializeDefault Materialization = iota
	Materialized
	NotMaterialized
)

// Search is the SEARCH clause of a recursive CTE, ordering rows depth- or
// breadth-first into the Set column.
type Search struct {
	DepthFirst bool
	By         []string
	Set        string
}

// Cycle is the CYCLE clause of a recursive CTE. Set names the boolean
// cycle mark column and Using the path column.
type Cycle struct {
	Columns []string
	Set     string
	Using   string
}

// CTE is one named sub-query of a WITH clause. Its query is numbered from
// its own first placeholder.
type CTE struct {
	Name         string
	Columns      []string
	Query        sql.Statement
	Recursive    bool
	Materialized Materialization
	Search       *Search
	Cycle        *Cycle
}

// Builder bundles CTEs with a main query.
type Builder struct {
	ctes   []CTE
	main   sql.Statement
	limit  int
	offset int
}

// With starts a WITH clause.
func With(ctes ...CTE) *Builder {
	return &Builder{ctes: ctes, limit: -1}
}

// Add appends a CTE.
func (b *Builder) Add(c CTE) *Builder {
	b.ctes = append(b.ctes, c)
	return b
}

// Select sets the main query.
func (b *Builder) Select(query string, args ...any) *Builder {
	b.main = sql.NewStatement(query, args...)
	return b
}

// Main sets the main query from a built statement.
func (b *Builder) Main(s sql.Statement) *Builder {
	b.main = s
	return b
}

// Limit caps the rows of the main query. A negative n removes the cap.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset skips rows of the main query.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

func (b *Builder) check() error {
	if len(b.ctes) == 0 {
		return prax.NewInvalidInputError("cte", "ctes", "at least one CTE is required")
	}
	if strings.TrimSpace(b.main.SQL) == "" {
		return prax.NewInvalidInputError("cte", "query", "main query is required")
	}
	seen := make(map[string]bool, len(b.ctes))
	for _, c := range b.ctes {
		switch {
		case c.Name == "":
			return prax.NewInvalidInputError("cte", "name", "CTE name is required")
		case seen[c.Name]:
			return prax.NewInvalidInputError("cte", "name", "duplicate CTE "+c.Name)
		case strings.TrimSpace(c.Query.SQL) == "":
			return prax.NewInvalidInputError("cte", "query", "CTE "+c.Name+" has no query")
		case (c.Search != nil || c.Cycle != nil) && !c.Recursive:
			return prax.NewInvalidInputError("cte", "recursive", "SEARCH and CYCLE need a recursive CTE")
		case c.Search != nil && (len(c.Search.By) == 0 || c.Search.Set == ""):
			return prax.NewInvalidInputError("cte", "search", "SEARCH needs BY columns and a SET column")
		case c.Cycle != nil && (len(c.Cycle.Columns) == 0 || c.Cycle.Set == "" || c.Cycle.Using == ""):
			return prax.NewInvalidInputError("cte", "cycle", "CYCLE needs columns, a SET column and a USING column")
		}
		seen[c.Name] = true
	}
	return nil
}

// Build emits the statement for d. Materialization hints and SEARCH and
// CYCLE clauses are written for PostgreSQL only.
func (b *Builder) Build(d dialect.DatabaseType) (sql.Statement, error) {
	if err := b.check(); err != nil {
		return sql.Statement{}, err
	}
	var (
		sb     strings.Builder
		params []sql.Value
	)
	sb.WriteString("WITH ")
	if d != dialect.MSSQL && b.recursive() {
		sb.WriteString("RECURSIVE ")
	}
	for i, c := range b.ctes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.QuoteIdent(c.Name))
		if len(c.Columns) > 0 {
			sb.WriteString(" (")
			sb.WriteString(idents(d, c.Columns))
			sb.WriteByte(')')
		}
		sb.WriteString(" AS ")
		if d == dialect.PostgreSQL {
			switch c.Materialized {
			case Materialized:
				sb.WriteString("MATERIALIZED ")
			case NotMaterialized:
				sb.WriteString("NOT MATERIALIZED ")
			}
		}
		sb.WriteByte('(')
		sb.WriteString(sql.RenumberFor(d, c.Query.SQL, len(params)))
		sb.WriteByte(')')
		params = append(params, c.Query.Params...)
		if d == dialect.PostgreSQL {
			if s := c.Search; s != nil {
				order := "BREADTH"
				if s.DepthFirst {
					order = "DEPTH"
				}
				sb.WriteString(" SEARCH " + order + " FIRST BY " + idents(d, s.By) + " SET " + d.QuoteIdent(s.Set))
			}
			if cy := c.Cycle; cy != nil {
				sb.WriteString(" CYCLE " + idents(d, cy.Columns) + " SET " + d.QuoteIdent(cy.Set) + " USING " + d.QuoteIdent(cy.Using))
			}
		}
	}
	sb.WriteByte(' ')
	main := sql.RenumberFor(d, b.main.SQL, len(params))
	sb.WriteString(d.Paginate(main, b.limit, b.offset))
	params = append(params, b.main.Params...)
	return sql.Statement{SQL: sb.String(), Params: params, ExpectsRows: true}, nil
}

func (b *Builder) recursive() bool {
	for _, c := range b.ctes {
		if c.Recursive {
			return true
		}
	}
	return false
}

func idents(d dialect.DatabaseType, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
