package dialect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/syssam/prax"
)

// DatabaseType identifies a SQL dialect.
type DatabaseType uint8

// Supported SQL dialects.
const (
	PostgreSQL DatabaseType = iota + 1
	MySQL
	SQLite
	MSSQL
)

// Driver names as registered with database/sql by the standard drivers.
const (
	Postgres  = "postgres"
	MySQLName = "mysql"
	SQLite3   = "sqlite"
	SQLServer = "sqlserver"
)

// All lists every SQL dialect in a stable order.
var All = []DatabaseType{PostgreSQL, MySQL, SQLite, MSSQL}

var names = [...]string{
	PostgreSQL: "PostgreSQL",
	MySQL:      "MySQL",
	SQLite:     "SQLite",
	MSSQL:      "MSSQL",
}

var driverNames = [...]string{
	PostgreSQL: Postgres,
	MySQL:      MySQLName,
	SQLite:     SQLite3,
	MSSQL:      SQLServer,
}

// String returns the display name of the dialect.
func (d DatabaseType) String() string {
	if d.Valid() {
		return names[d]
	}
	return "DatabaseType(" + strconv.Itoa(int(d)) + ")"
}

// Valid reports whether d is a known dialect.
func (d DatabaseType) Valid() bool { return d >= PostgreSQL && d <= MSSQL }

// DriverName returns the database/sql driver name for the dialect.
func (d DatabaseType) DriverName() string {
	if d.Valid() {
		return driverNames[d]
	}
	return ""
}

// Parse maps a provider or driver name to its dialect.
func Parse(name string) (DatabaseType, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgresql", "postgres", "pg", "pgx":
		return PostgreSQL, true
	case "mysql", "mariadb":
		return MySQL, true
	case "sqlite", "sqlite3":
		return SQLite, true
	case "sqlserver", "mssql":
		return MSSQL, true
	}
	return 0, false
}

// Placeholder returns the bind marker for the n-th (1-based) parameter.
func (d DatabaseType) Placeholder(n int) string {
	switch d {
	case PostgreSQL:
		return "$" + strconv.Itoa(n)
	case MSSQL:
		return "@P" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// Placeholders returns count bind markers starting after offset, joined
// with ", ".
func (d DatabaseType) Placeholders(offset, count int) string {
	var b strings.Builder
	for i := 1; i <= count; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(offset + i))
	}
	return b.String()
}

// Numbered reports whether placeholders carry a position number.
func (d DatabaseType) Numbered() bool { return d == PostgreSQL || d == MSSQL }

// Quote quotes name unconditionally.
func (d DatabaseType) Quote(name string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case MSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return pq.QuoteIdentifier(name)
	}
}

// QuoteIdent quotes name only when it is a reserved word or is not a
// plain identifier.
func (d DatabaseType) QuoteIdent(name string) string {
	if !d.NeedsQuote(name) {
		return name
	}
	return d.Quote(name)
}

// QuoteQualified quotes each part of a dotted name like "schema.table".
// Empty parts are skipped.
func (d DatabaseType) QuoteQualified(parts ...string) string {
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			quoted = append(quoted, d.QuoteIdent(p))
		}
	}
	return strings.Join(quoted, ".")
}

// QuoteColumn quotes a possibly table-qualified column reference. A
// trailing "*" is kept as is.
func (d DatabaseType) QuoteColumn(ref string) string {
	parts := strings.Split(ref, ".")
	for i, p := range parts {
		if p != "*" {
			parts[i] = d.QuoteIdent(p)
		}
	}
	return strings.Join(parts, ".")
}

// NeedsQuote reports whether name must be quoted.
func (d DatabaseType) NeedsQuote(name string) bool {
	if !IsIdentifier(name) {
		return true
	}
	return d.IsReserved(name)
}

// IsIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Literal renders s as a single-quoted string literal. MSSQL literals
// use the N prefix so they are Unicode.
func (d DatabaseType) Literal(s string) string {
	switch d {
	case PostgreSQL:
		return pq.QuoteLiteral(s)
	case MSSQL:
		return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
	case MySQL:
		s = strings.ReplaceAll(s, `\`, `\\`)
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
}

// True returns the always-true predicate. T-SQL has no boolean literals.
func (d DatabaseType) True() string {
	if d == MSSQL {
		return "1 = 1"
	}
	return "TRUE"
}

// False returns the always-false predicate.
func (d DatabaseType) False() string {
	if d == MSSQL {
		return "1 = 0"
	}
	return "FALSE"
}

// Begin returns the statement that opens a transaction.
func (d DatabaseType) Begin() string {
	switch d {
	case MySQL:
		return "START TRANSACTION"
	case MSSQL:
		return "BEGIN TRANSACTION"
	default:
		return "BEGIN"
	}
}

// Commit returns the statement that commits a transaction.
func (d DatabaseType) Commit() string {
	if d == MSSQL {
		return "COMMIT TRANSACTION"
	}
	return "COMMIT"
}

// Rollback returns the statement that rolls back a transaction.
func (d DatabaseType) Rollback() string {
	if d == MSSQL {
		return "ROLLBACK TRANSACTION"
	}
	return "ROLLBACK"
}

// SupportsReturning reports whether INSERT/UPDATE accept RETURNING.
func (d DatabaseType) SupportsReturning() bool { return d == PostgreSQL || d == SQLite }

// SupportsSequences reports whether CREATE SEQUENCE is native.
func (d DatabaseType) SupportsSequences() bool { return d == PostgreSQL || d == MSSQL }

// Unsupported returns a *prax.UnsupportedError for the dialect.
func (d DatabaseType) Unsupported(feature, format string, args ...any) error {
	return prax.NewUnsupportedError(d.String(), feature, fmt.Sprintf(format, args...))
}

// Paginate applies limit and offset to a SELECT statement. A negative
// limit means no limit. MSSQL uses TOP when there is no ORDER BY and no
// offset, and OFFSET/FETCH otherwise (adding a neutral ORDER BY when the
// query has none, as OFFSET requires one).
func (d DatabaseType) Paginate(query string, limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return query
	}
	if d != MSSQL {
		var b strings.Builder
		b.WriteString(query)
		switch {
		case limit >= 0:
			b.WriteString(" LIMIT ")
			b.WriteString(strconv.Itoa(limit))
		case d == MySQL:
			// MySQL has no OFFSET without LIMIT.
			b.WriteString(" LIMIT 18446744073709551615")
		case d == SQLite:
			b.WriteString(" LIMIT -1")
		}
		if offset > 0 {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.Itoa(offset))
		}
		return b.String()
	}
	ordered := HasOrderBy(query)
	if !ordered && offset <= 0 {
		return InjectTop(query, limit)
	}
	if !ordered {
		query += " ORDER BY (SELECT NULL)"
	}
	if offset < 0 {
		offset = 0
	}
	query += " OFFSET " + strconv.Itoa(offset) + " ROWS"
	if limit >= 0 {
		query += " FETCH NEXT " + strconv.Itoa(limit) + " ROWS ONLY"
	}
	return query
}

// HasOrderBy reports whether the outermost level of query has an ORDER BY.
// Parenthesised sub-queries and quoted text are ignored.
func HasOrderBy(query string) bool {
	depth := 0
	upper := strings.ToUpper(query)
	for i := 0; i < len(upper); i++ {
		switch c := upper[i]; c {
		case '(':
			depth++
		case ')':
			depth--
		case '\'':
			if j := strings.IndexByte(upper[i+1:], '\''); j >= 0 {
				i += j + 1
			}
		case 'O':
			if depth == 0 && strings.HasPrefix(upper[i:], "ORDER BY") && (i == 0 || !isWordByte(upper[i-1])) {
				return true
			}
		}
	}
	return false
}

// InjectTop inserts TOP n after the leading SELECT (and DISTINCT).
func InjectTop(query string, n int) string {
	trimmed := strings.TrimLeft(query, " \t\n")
	lead := query[:len(query)-len(trimmed)]
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") {
		return query
	}
	at := len("SELECT")
	if rest := strings.TrimLeft(upper[at:], " "); strings.HasPrefix(rest, "DISTINCT ") {
		at = len(upper) - len(rest) + len("DISTINCT")
	}
	return lead + trimmed[:at] + " TOP " + strconv.Itoa(n) + trimmed[at:]
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// ExecQuerier wraps the two database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for executing
// emitted statements.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect of the driver.
	Dialect() DatabaseType
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
