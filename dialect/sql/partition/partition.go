// Package partition builds table partitioning DDL.
package partition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// Strategy is the partitioning method.
type Strategy uint8

// Partitioning methods.
const (
	Range Strategy = iota
	List
	Hash
)

var strategyNames = [...]string{Range: "RANGE", List: "LIST", Hash: "HASH"}

func (s Strategy) String() string { return strategyNames[s] }

// Bound sentinels for open range partitions.
const (
	MinValue = sql.Expr("MINVALUE")
	MaxValue = sql.Expr("MAXVALUE")
)

// Partition is one child of a partitioned table. Range partitions use From
// and To, list partitions In, and hash partitions Modulus and Remainder.
// A Default partition catches rows no other partition accepts.
type Partition struct {
	Name      string
	From      []any
	To        []any
	In        []any
	Modulus   int
	Remainder int
	Default   bool
}

// Table describes how a table is partitioned.
type Table struct {
	Name       string
	Strategy   Strategy
	Columns    []string
	Partitions []Partition
	// ColumnType is the SQL Server partition function parameter type.
	// Defaults to datetime2.
	ColumnType string
	// Filegroups map SQL Server partitions to filegroups. Empty places
	// every partition on PRIMARY.
	Filegroups []string
}

// DDL is the partitioning DDL of a table. Before runs ahead of CREATE
// TABLE, Clause is appended to it and After runs once it exists.
type DDL struct {
	Before []string
	Clause string
	After  []string
}

// Statements returns Before, then createTable followed by Clause, then
// After.
func (d *DDL) Statements(createTable string) []string {
	stmts := append([]string(nil), d.Before...)
	if d.Clause != "" {
		createTable += " " + d.Clause
	}
	stmts = append(stmts, createTable)
	return append(stmts, d.After...)
}

func (t *Table) check() error {
	switch {
	case t.Name == "":
		return prax.NewInvalidInputError("partition", "table", "table is required")
	case len(t.Columns) == 0:
		return prax.NewInvalidInputError("partition", "columns", "at least one partition column is required")
	case len(t.Partitions) == 0:
		return prax.NewInvalidInputError("partition", "partitions", "at least one partition is required")
	case t.Strategy > Hash:
		return prax.NewInvalidInputError("partition", "strategy", "unknown strategy")
	}
	seen := make(map[string]bool, len(t.Partitions))
	for _, p := range t.Partitions {
		if p.Name == "" {
			return prax.NewInvalidInputError("partition", "name", "partition name is required")
		}
		if seen[p.Name] {
			return prax.NewInvalidInputError("partition", "name", "duplicate partition "+p.Name)
		}
		seen[p.Name] = true
		if p.Default {
			if t.Strategy == Hash {
				return prax.NewInvalidInputError("partition", "default", "hash partitions cannot be default")
			}
			continue
		}
		switch t.Strategy {
		case Range:
			if len(p.From) != len(t.Columns) || len(p.To) != len(t.Columns) {
				return prax.NewInvalidInputError("partition", "bounds",
					fmt.Sprintf("range partition %s needs %d lower and upper bound values", p.Name, len(t.Columns)))
			}
		case List:
			if len(p.In) == 0 {
				return prax.NewInvalidInputError("partition", "values", "list partition "+p.Name+" has no values")
			}
		case Hash:
			if p.Modulus <= 0 || p.Remainder < 0 || p.Remainder >= p.Modulus {
				return prax.NewInvalidInputError("partition", "modulus",
					fmt.Sprintf("hash partition %s needs 0 <= remainder < modulus", p.Name))
			}
		}
	}
	return nil
}

// Build renders the partitioning DDL for d.
func (t *Table) Build(d dialect.DatabaseType) (*DDL, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	switch d {
	case dialect.PostgreSQL:
		return t.postgres(d), nil
	case dialect.MySQL:
		return t.mysql(d), nil
	case dialect.MSSQL:
		return t.mssql(d)
	}
	return nil, d.Unsupported("table partitioning", "no declarative partitioning")
}

func (t *Table) postgres(d dialect.DatabaseType) *DDL {
	ddl := &DDL{Clause: "PARTITION BY " + t.Strategy.String() + " (" + idents(d, t.Columns) + ")"}
	parent := d.QuoteIdent(t.Name)
	for _, p := range t.Partitions {
		var bound string
		switch {
		case p.Default:
			bound = "DEFAULT"
		case t.Strategy == Range:
			bound = "FOR VALUES FROM (" + literals(d, p.From) + ") TO (" + literals(d, p.To) + ")"
		case t.Strategy == List:
			bound = "FOR VALUES IN (" + literals(d, p.In) + ")"
		default:
			bound = "FOR VALUES WITH (MODULUS " + strconv.Itoa(p.Modulus) + ", REMAINDER " + strconv.Itoa(p.Remainder) + ")"
		}
		ddl.After = append(ddl.After, "CREATE TABLE "+d.QuoteIdent(p.Name)+" PARTITION OF "+parent+" "+bound)
	}
	return ddl
}

func (t *Table) mysql(d dialect.DatabaseType) *DDL {
	if t.Strategy == Hash {
		method := "HASH (" + idents(d, t.Columns) + ")"
		if len(t.Columns) > 1 {
			method = "KEY (" + idents(d, t.Columns) + ")"
		}
		return &DDL{Clause: "PARTITION BY " + method + " PARTITIONS " + strconv.Itoa(len(t.Partitions))}
	}
	parts := make([]string, len(t.Partitions))
	for i, p := range t.Partitions {
		var bound string
		switch {
		case t.Strategy == Range && p.Default:
			bound = "VALUES LESS THAN (" + strings.TrimSuffix(strings.Repeat("MAXVALUE, ", len(t.Columns)), ", ") + ")"
		case t.Strategy == Range:
			bound = "VALUES LESS THAN (" + literals(d, p.To) + ")"
		case p.Default:
			bound = "DEFAULT"
		default:
			bound = "VALUES IN (" + literals(d, p.In) + ")"
		}
		parts[i] = "PARTITION " + d.QuoteIdent(p.Name) + " " + bound
	}
	return &DDL{Clause: "PARTITION BY " + t.Strategy.String() + " COLUMNS(" + idents(d, t.Columns) + ") (" + strings.Join(parts, ", ") + ")"}
}

func (t *Table) mssql(d dialect.DatabaseType) (*DDL, error) {
	if t.Strategy != Range {
		return nil, d.Unsupported(strings.ToLower(t.Strategy.String())+" partitioning", "partition functions are range only")
	}
	if len(t.Columns) != 1 {
		return nil, d.Unsupported("multi-column partitioning", "partition functions take one column")
	}
	var bounds []string
	for _, p := range t.Partitions {
		if !p.Default {
			bounds = append(bounds, literal(d, p.From[0]))
		}
	}
	if len(t.Filegroups) > 0 && len(t.Filegroups) != len(bounds)+1 {
		return nil, prax.NewInvalidInputError("partition", "filegroups",
			fmt.Sprintf("%d boundaries need %d filegroups, got %d", len(bounds), len(bounds)+1, len(t.Filegroups)))
	}
	typ := t.ColumnType
	if typ == "" {
		typ = "datetime2"
	}
	fn, scheme := d.QuoteIdent("pf_"+t.Name), d.QuoteIdent("ps_"+t.Name)
	to := "ALL TO ([PRIMARY])"
	if len(t.Filegroups) > 0 {
		fgs := make([]string, len(t.Filegroups))
		for i, fg := range t.Filegroups {
			fgs[i] = d.Quote(fg)
		}
		to = "TO (" + strings.Join(fgs, ", ") + ")"
	}
	return &DDL{
		Before: []string{
			"CREATE PARTITION FUNCTION " + fn + "(" + typ + ") AS RANGE RIGHT FOR VALUES (" + strings.Join(bounds, ", ") + ")",
			"CREATE PARTITION SCHEME " + scheme + " AS PARTITION " + fn + " " + to,
		},
		Clause: "ON " + scheme + "(" + d.QuoteIdent(t.Columns[0]) + ")",
	}, nil
}

func idents(d dialect.DatabaseType, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func literals(d dialect.DatabaseType, vs []any) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = literal(d, v)
	}
	return strings.Join(out, ", ")
}

// literal renders a bound value inline; DDL cannot take parameters.
func literal(d dialect.DatabaseType, v any) string {
	switch v := v.(type) {
	case sql.Expr:
		return string(v)
	case time.Time:
		return d.Literal(v.Format(time.DateOnly))
	}
	switch v := sql.ValueOf(v).(type) {
	case sql.NullValue:
		return "NULL"
	case sql.StringValue:
		return d.Literal(string(v))
	case sql.JSONValue:
		return d.Literal(string(v))
	case sql.BoolValue:
		if d == dialect.MSSQL {
			if v {
				return "1"
			}
			return "0"
		}
		return strings.ToUpper(v.String())
	default:
		return v.String()
	}
}

// Monthly returns count monthly range partitions of table over column,
// starting at year and month. Partitions are named <table>_YYYY_MM and
// cover [first day, first day of next month).
func Monthly(table, column string, year, month, count int) *Table {
	return periods(table, column, year, month, count, 1, func(t time.Time) string {
		return fmt.Sprintf("%s_%04d_%02d", table, t.Year(), int(t.Month()))
	})
}

// Quarterly returns count three-month range partitions named
// <table>_YYYY_qN, where N is the quarter holding the first month.
func Quarterly(table, column string, year, month, count int) *Table {
	return periods(table, column, year, month, count, 3, func(t time.Time) string {
		return fmt.Sprintf("%s_%04d_q%d", table, t.Year(), (int(t.Month())-1)/3+1)
	})
}

// Yearly returns count twelve-month range partitions named <table>_YYYY.
func Yearly(table, column string, year, month, count int) *Table {
	return periods(table, column, year, month, count, 12, func(t time.Time) string {
		return fmt.Sprintf("%s_%04d", table, t.Year())
	})
}

func periods(table, column string, year, month, count, step int, name func(time.Time) string) *Table {
	t := &Table{Name: table, Strategy: Range, Columns: []string{column}}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		end := start.AddDate(0, step, 0)
		t.Partitions = append(t.Partitions, Partition{
			Name: name(start),
			From: []any{start.Format(time.DateOnly)},
			To:   []any{end.Format(time.DateOnly)},
		})
		start = end
	}
	return t
}
