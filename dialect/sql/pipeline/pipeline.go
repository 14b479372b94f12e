// Package pipeline accumulates statements for batched or transactional
// execution and builds multi-row bulk inserts.
package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// Query is one statement of a pipeline.
type Query struct {
	ID          string
	SQL         string
	Params      []sql.Value
	ExpectsRows bool
}

// Pipeline is an ordered list of queries for one dialect. Each query is
// numbered from its own first placeholder; batching renumbers them.
type Pipeline struct {
	dialect dialect.DatabaseType
	queries []Query
}

// New returns an empty pipeline for d.
func New(d dialect.DatabaseType) *Pipeline { return &Pipeline{dialect: d} }

// Dialect returns the pipeline dialect.
func (p *Pipeline) Dialect() dialect.DatabaseType { return p.dialect }

// Exec appends an execute-only statement.
func (p *Pipeline) Exec(query string, args ...any) *Pipeline {
	return p.Statement(sql.NewStatement(query, args...))
}

// Query appends a statement that returns rows.
func (p *Pipeline) Query(query string, args ...any) *Pipeline {
	s := sql.NewStatement(query, args...)
	s.ExpectsRows = true
	return p.Statement(s)
}

// Statement appends a built statement.
func (p *Pipeline) Statement(s sql.Statement) *Pipeline {
	return p.Push(Query{SQL: s.SQL, Params: s.Params, ExpectsRows: s.ExpectsRows})
}

// Push appends q, assigning a random ID when it has none.
func (p *Pipeline) Push(q Query) *Pipeline {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	p.queries = append(p.queries, q)
	return p
}

// Queries returns a copy of the accumulated queries.
func (p *Pipeline) Queries() []Query { return append([]Query(nil), p.queries...) }

// Len returns the number of queries.
func (p *Pipeline) Len() int { return len(p.queries) }

// ToBatchSQL joins the queries into one multi-statement string, shifting
// the placeholders of each query past the parameters of the ones before
// it. The parameter vectors are concatenated in order.
func (p *Pipeline) ToBatchSQL() (string, []sql.Value) {
	var (
		b      strings.Builder
		params []sql.Value
	)
	for i, q := range p.queries {
		if i > 0 {
			b.WriteString(";\n")
		}
		b.WriteString(sql.RenumberFor(p.dialect, q.SQL, len(params)))
		params = append(params, q.Params...)
	}
	return b.String(), params
}

// ToTransactionSQL brackets the queries with the dialect's begin and
// commit statements.
func (p *Pipeline) ToTransactionSQL() []sql.Statement {
	out := make([]sql.Statement, 0, len(p.queries)+2)
	out = append(out, sql.Statement{SQL: p.dialect.Begin()})
	for _, q := range p.queries {
		out = append(out, sql.Statement{SQL: q.SQL, Params: q.Params, ExpectsRows: q.ExpectsRows})
	}
	return append(out, sql.Statement{SQL: p.dialect.Commit()})
}

// IntoBatches splits the pipeline into pipelines of at most size queries.
// A non-positive size yields a single batch.
func (p *Pipeline) IntoBatches(size int) []*Pipeline {
	if size <= 0 || size >= len(p.queries) {
		return []*Pipeline{{dialect: p.dialect, queries: p.Queries()}}
	}
	batches := make([]*Pipeline, 0, (len(p.queries)+size-1)/size)
	for start := 0; start < len(p.queries); start += size {
		end := min(start+size, len(p.queries))
		batches = append(batches, &Pipeline{
			dialect: p.dialect,
			queries: append([]Query(nil), p.queries[start:end]...),
		})
	}
	return batches
}
