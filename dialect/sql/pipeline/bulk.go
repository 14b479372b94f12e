package pipeline

import (
	"fmt"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// DefaultBatchSize is the number of rows per INSERT when none is set.
const DefaultBatchSize = 1000

// maxParams is the bind parameter limit of each dialect.
var maxParams = map[dialect.DatabaseType]int{
	dialect.PostgreSQL: 65535,
	dialect.MySQL:      65535,
	dialect.SQLite:     32766,
	dialect.MSSQL:      2100,
}

// BulkInsert groups rows into multi-row INSERT statements.
type BulkInsert struct {
	dialect   dialect.DatabaseType
	table     string
	columns   []string
	batchSize int
	rows      [][]any
}

// NewBulkInsert returns a bulk insert of columns into table.
func NewBulkInsert(d dialect.DatabaseType, table string, columns ...string) *BulkInsert {
	return &BulkInsert{dialect: d, table: table, columns: columns, batchSize: DefaultBatchSize}
}

// BatchSize sets the maximum rows per statement. The effective size is
// lowered further when a batch would exceed the dialect's parameter limit.
func (b *BulkInsert) BatchSize(n int) *BulkInsert {
	b.batchSize = n
	return b
}

// AddRow appends a row, which must have one value per column.
func (b *BulkInsert) AddRow(vs ...any) error {
	if len(vs) != len(b.columns) {
		return prax.NewInvalidInputError("bulkInsert", "row",
			fmt.Sprintf("row %d has %d values, want %d", len(b.rows), len(vs), len(b.columns)))
	}
	b.rows = append(b.rows, vs)
	return nil
}

// Len returns the number of rows.
func (b *BulkInsert) Len() int { return len(b.rows) }

// EffectiveBatchSize returns the rows per statement after applying the
// parameter limit.
func (b *BulkInsert) EffectiveBatchSize() int {
	size := b.batchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if limit, ok := maxParams[b.dialect]; ok && len(b.columns) > 0 {
		size = min(size, limit/len(b.columns))
	}
	return max(size, 1)
}

// ToInsertStatements returns one INSERT per batch of rows.
func (b *BulkInsert) ToInsertStatements() ([]sql.Statement, error) {
	switch {
	case b.table == "":
		return nil, prax.NewInvalidInputError("bulkInsert", "table", "table is required")
	case len(b.columns) == 0:
		return nil, prax.NewInvalidInputError("bulkInsert", "columns", "at least one column is required")
	}
	size := b.EffectiveBatchSize()
	stmts := make([]sql.Statement, 0, (len(b.rows)+size-1)/size)
	for start := 0; start < len(b.rows); start += size {
		end := min(start+size, len(b.rows))
		sb := sql.NewBuilder(b.dialect)
		sb.WriteString("INSERT INTO ")
		sb.Column(b.table)
		sb.WriteString(" (")
		sb.Idents(b.columns...)
		sb.WriteString(") VALUES ")
		for i, row := range b.rows[start:end] {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('(')
			sb.Args(row...)
			sb.WriteByte(')')
		}
		stmts = append(stmts, sb.Statement())
	}
	return stmts, nil
}

// Pipeline returns the insert statements as a pipeline.
func (b *BulkInsert) Pipeline() (*Pipeline, error) {
	stmts, err := b.ToInsertStatements()
	if err != nil {
		return nil, err
	}
	p := New(b.dialect)
	for _, s := range stmts {
		p.Statement(s)
	}
	return p, nil
}
