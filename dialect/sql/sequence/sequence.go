// Package sequence builds sequence DDL and value functions, auto-increment
// column definitions and the MongoDB counter pattern.
package sequence

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// Sequence is a named number generator. Zero Start and Increment mean 1.
type Sequence struct {
	Name   string
	Schema string
	// Type defaults to bigint.
	Type      string
	Start     int64
	Increment int64
	Min       *int64
	Max       *int64
	Cache     int64
	Cycle     bool
}

func (s *Sequence) check(d dialect.DatabaseType) error {
	if s.Name == "" {
		return prax.NewInvalidInputError("sequence", "name", "sequence name is required")
	}
	if !d.SupportsSequences() {
		return d.Unsupported("sequence", "no CREATE SEQUENCE; use an auto-increment column")
	}
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return prax.NewInvalidInputError("sequence", "min", "minimum exceeds maximum")
	}
	start := s.start()
	if (s.Min != nil && start < *s.Min) || (s.Max != nil && start > *s.Max) {
		return prax.NewInvalidInputError("sequence", "start", "start is outside the sequence range")
	}
	if s.Cache < 0 {
		return prax.NewInvalidInputError("sequence", "cache", "cache must not be negative")
	}
	return nil
}

func (s *Sequence) start() int64 {
	if s.Start == 0 {
		return 1
	}
	return s.Start
}

func (s *Sequence) increment() int64 {
	if s.Increment == 0 {
		return 1
	}
	return s.Increment
}

func (s *Sequence) name(d dialect.DatabaseType) string {
	return d.QuoteQualified(s.Schema, s.Name)
}

// CreateSQL returns CREATE SEQUENCE for d. MySQL and SQLite have no
// sequences and return an Unsupported error.
func (s *Sequence) CreateSQL(d dialect.DatabaseType) (string, error) {
	if err := s.check(d); err != nil {
		return "", err
	}
	typ := s.Type
	if typ == "" {
		typ = "bigint"
	}
	i64 := func(n int64) string { return strconv.FormatInt(n, 10) }
	var b strings.Builder
	b.WriteString("CREATE SEQUENCE ")
	if d == dialect.PostgreSQL {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(s.name(d) + " AS " + typ)
	switch d {
	case dialect.PostgreSQL:
		b.WriteString(" INCREMENT BY " + i64(s.increment()))
		if s.Min != nil {
			b.WriteString(" MINVALUE " + i64(*s.Min))
		}
		if s.Max != nil {
			b.WriteString(" MAXVALUE " + i64(*s.Max))
		}
		b.WriteString(" START WITH " + i64(s.start()))
		if s.Cache > 0 {
			b.WriteString(" CACHE " + i64(s.Cache))
		}
		if s.Cycle {
			b.WriteString(" CYCLE")
		}
	case dialect.MSSQL:
		b.WriteString(" START WITH " + i64(s.start()) + " INCREMENT BY " + i64(s.increment()))
		if s.Min != nil {
			b.WriteString(" MINVALUE " + i64(*s.Min))
		}
		if s.Max != nil {
			b.WriteString(" MAXVALUE " + i64(*s.Max))
		}
		if s.Cycle {
			b.WriteString(" CYCLE")
		} else {
			b.WriteString(" NO CYCLE")
		}
		if s.Cache > 0 {
			b.WriteString(" CACHE " + i64(s.Cache))
		}
	}
	return b.String(), nil
}

// DropSQL returns DROP SEQUENCE for d.
func (s *Sequence) DropSQL(d dialect.DatabaseType) (string, error) {
	if err := s.check(d); err != nil {
		return "", err
	}
	return "DROP SEQUENCE IF EXISTS " + s.name(d), nil
}

// NextVal returns the query reading the next value of the sequence.
func (s *Sequence) NextVal(d dialect.DatabaseType) (sql.Statement, error) {
	if err := s.check(d); err != nil {
		return sql.Statement{}, err
	}
	if d == dialect.MSSQL {
		return query("SELECT NEXT VALUE FOR " + s.name(d)), nil
	}
	return query("SELECT nextval(" + d.Literal(s.name(d)) + ")"), nil
}

// CurrVal returns the query reading the current value of the sequence.
// On PostgreSQL it fails unless nextval ran earlier in the session.
func (s *Sequence) CurrVal(d dialect.DatabaseType) (sql.Statement, error) {
	if err := s.check(d); err != nil {
		return sql.Statement{}, err
	}
	if d == dialect.MSSQL {
		stmt := sql.NewStatement("SELECT current_value FROM sys.sequences WHERE name = @P1", s.Name)
		stmt.ExpectsRows = true
		return stmt, nil
	}
	return query("SELECT currval(" + d.Literal(s.name(d)) + ")"), nil
}

// SetVal returns the statement moving the sequence to v. The next value
// read is v + increment on PostgreSQL and v on SQL Server, which restarts
// the sequence.
func (s *Sequence) SetVal(d dialect.DatabaseType, v int64) (sql.Statement, error) {
	if err := s.check(d); err != nil {
		return sql.Statement{}, err
	}
	if d == dialect.MSSQL {
		return sql.NewStatement("ALTER SEQUENCE " + s.name(d) + " RESTART WITH " + strconv.FormatInt(v, 10)), nil
	}
	stmt := sql.NewStatement("SELECT setval("+d.Literal(s.name(d))+", $1)", v)
	stmt.ExpectsRows = true
	return stmt, nil
}

// DefaultExpr returns the column default drawing from the sequence.
func (s *Sequence) DefaultExpr(d dialect.DatabaseType) (string, error) {
	if err := s.check(d); err != nil {
		return "", err
	}
	if d == dialect.MSSQL {
		return "NEXT VALUE FOR " + s.name(d), nil
	}
	return "nextval(" + d.Literal(s.name(d)) + ")", nil
}

func query(q string) sql.Statement {
	return sql.Statement{SQL: q, ExpectsRows: true}
}

// AutoIncrement is an integer primary key column filled by the database.
// Zero Start and Increment mean 1.
type AutoIncrement struct {
	Column    string
	Start     int64
	Increment int64
}

// ColumnSQL returns the column definition for d: BIGSERIAL or an identity
// column on PostgreSQL, AUTO_INCREMENT on MySQL, INTEGER PRIMARY KEY
// AUTOINCREMENT on SQLite and IDENTITY on SQL Server.
func (a AutoIncrement) ColumnSQL(d dialect.DatabaseType) (string, error) {
	if a.Column == "" {
		return "", prax.NewInvalidInputError("sequence", "column", "column is required")
	}
	start, inc := a.Start, a.Increment
	if start == 0 {
		start = 1
	}
	if inc == 0 {
		inc = 1
	}
	col := d.QuoteIdent(a.Column)
	i64 := func(n int64) string { return strconv.FormatInt(n, 10) }
	switch d {
	case dialect.PostgreSQL:
		if start == 1 && inc == 1 {
			return col + " BIGSERIAL PRIMARY KEY", nil
		}
		return col + " BIGINT GENERATED BY DEFAULT AS IDENTITY (START WITH " + i64(start) + " INCREMENT BY " + i64(inc) + ") PRIMARY KEY", nil
	case dialect.MySQL:
		if inc != 1 {
			return "", d.Unsupported("auto-increment step", "the step is the server-wide auto_increment_increment")
		}
		return col + " BIGINT AUTO_INCREMENT PRIMARY KEY", nil
	case dialect.SQLite:
		if start != 1 || inc != 1 {
			return "", d.Unsupported("auto-increment start", "AUTOINCREMENT always starts at 1 and steps by 1")
		}
		return col + " INTEGER PRIMARY KEY AUTOINCREMENT", nil
	case dialect.MSSQL:
		return col + " BIGINT IDENTITY(" + i64(start) + ", " + i64(inc) + ") PRIMARY KEY", nil
	}
	return "", d.Unsupported("auto-increment", "unknown dialect")
}

// TableOption returns the table option carrying the start value on MySQL,
// or "" when none is needed.
func (a AutoIncrement) TableOption(d dialect.DatabaseType) string {
	if d == dialect.MySQL && a.Start > 1 {
		return "AUTO_INCREMENT = " + strconv.FormatInt(a.Start, 10)
	}
	return ""
}

// DefaultCounters is the collection holding MongoDB counters.
const DefaultCounters = "counters"

// Counter is the MongoDB counter pattern: one document per sequence in a
// counters collection, incremented atomically.
type Counter struct {
	Name string
	// Collection defaults to "counters".
	Collection string
	// Increment defaults to 1.
	Increment int64
}

func (c Counter) collection() string {
	if c.Collection == "" {
		return DefaultCounters
	}
	return c.Collection
}

// Next returns the findAndModify command returning the incremented
// counter, creating it on first use.
func (c Counter) Next() (bson.D, error) {
	if c.Name == "" {
		return nil, prax.NewInvalidInputError("sequence", "name", "counter name is required")
	}
	inc := c.Increment
	if inc == 0 {
		inc = 1
	}
	return bson.D{
		{Key: "findAndModify", Value: c.collection()},
		{Key: "query", Value: bson.D{{Key: "_id", Value: c.Name}}},
		{Key: "update", Value: bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: inc}}}}},
		{Key: "new", Value: true},
		{Key: "upsert", Value: true},
	}, nil
}

// Reset returns the update command setting the counter to v.
func (c Counter) Reset(v int64) (bson.D, error) {
	if c.Name == "" {
		return nil, prax.NewInvalidInputError("sequence", "name", "counter name is required")
	}
	return bson.D{
		{Key: "update", Value: c.collection()},
		{Key: "updates", Value: bson.A{bson.D{
			{Key: "q", Value: bson.D{{Key: "_id", Value: c.Name}}},
			{Key: "u", Value: bson.D{{Key: "$set", Value: bson.D{{Key: "seq", Value: v}}}}},
			{Key: "upsert", Value: true},
		}}},
	}, nil
}
