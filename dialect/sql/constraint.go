package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/prax/dialect"
)

// ConstraintKind classifies a constraint violation reported by a database.
type ConstraintKind uint8

// Constraint kinds.
const (
	UniqueConstraint ConstraintKind = iota + 1
	ForeignKeyConstraint
	CheckConstraint
	NotNullConstraint
)

func (k ConstraintKind) String() string {
	switch k {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	case NotNullConstraint:
		return "not null"
	default:
		return "unknown"
	}
}

// ConstraintError wraps a driver error caused by a constraint violation.
type ConstraintError struct {
	Kind    ConstraintKind
	Dialect dialect.DatabaseType
	// Constraint is the violated constraint or column, when the driver reports it.
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("prax: %s constraint %q violated: %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("prax: %s constraint violated: %v", e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraintError reports whether err resulted from a constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e)
}

// IsUniqueConstraintError reports whether err resulted from a uniqueness violation.
func IsUniqueConstraintError(err error) bool { return isKind(err, UniqueConstraint) }

// IsForeignKeyConstraintError reports whether err resulted from a foreign-key violation.
func IsForeignKeyConstraintError(err error) bool { return isKind(err, ForeignKeyConstraint) }

// IsCheckConstraintError reports whether err resulted from a check constraint violation.
func IsCheckConstraintError(err error) bool { return isKind(err, CheckConstraint) }

// IsNotNullConstraintError reports whether err resulted from a NOT NULL violation.
func IsNotNullConstraintError(err error) bool { return isKind(err, NotNullConstraint) }

func isKind(err error, k ConstraintKind) bool {
	var e *ConstraintError
	return errors.As(err, &e) && e.Kind == k
}

// PostgreSQL SQLSTATE class 23.
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers.
const (
	mysqlBadNull         = 1048
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
	mysqlCheckViolated   = 3819
)

// SQL Server error numbers.
const (
	mssqlNullInsert      = 515
	mssqlConstraint      = 547
	mssqlDuplicateIndex  = 2601
	mssqlDuplicateUnique = 2627
)

// mssqlError is implemented by go-mssqldb errors.
type mssqlError interface {
	SQLErrorNumber() int32
}

// wrapConstraint returns err wrapped in a *ConstraintError when it reports a
// constraint violation, and err unchanged otherwise.
func wrapConstraint(d dialect.DatabaseType, err error) error {
	if err == nil || IsConstraintError(err) {
		return err
	}
	kind, name := classify(err)
	if kind == 0 {
		return err
	}
	return &ConstraintError{Kind: kind, Dialect: d, Constraint: name, Err: err}
}

func classify(err error) (ConstraintKind, string) {
	var pe *pq.Error
	if errors.As(err, &pe) {
		name := pe.Constraint
		switch string(pe.Code) {
		case pgUniqueViolation:
			return UniqueConstraint, name
		case pgForeignKeyViolation:
			return ForeignKeyConstraint, name
		case pgCheckViolation:
			return CheckConstraint, name
		case pgNotNullViolation:
			return NotNullConstraint, pe.Column
		}
		return 0, ""
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return UniqueConstraint, ""
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return ForeignKeyConstraint, ""
		case mysqlCheckViolated:
			return CheckConstraint, ""
		case mysqlBadNull:
			return NotNullConstraint, ""
		}
		return 0, ""
	}
	var se mssqlError
	if errors.As(err, &se) {
		switch se.SQLErrorNumber() {
		case mssqlDuplicateIndex, mssqlDuplicateUnique:
			return UniqueConstraint, ""
		case mssqlNullInsert:
			return NotNullConstraint, ""
		case mssqlConstraint:
			if strings.Contains(err.Error(), "CHECK constraint") {
				return CheckConstraint, ""
			}
			return ForeignKeyConstraint, ""
		}
		return 0, ""
	}
	// SQLite drivers report constraint failures in the message only.
	msg := err.Error()
	for _, m := range []struct {
		prefix string
		kind   ConstraintKind
	}{
		{"UNIQUE constraint failed", UniqueConstraint},
		{"FOREIGN KEY constraint failed", ForeignKeyConstraint},
		{"CHECK constraint failed", CheckConstraint},
		{"NOT NULL constraint failed", NotNullConstraint},
	} {
		if i := strings.Index(msg, m.prefix); i >= 0 {
			return m.kind, sqliteTarget(msg[i+len(m.prefix):])
		}
	}
	return 0, ""
}

// sqliteTarget extracts the name following "constraint failed: ".
func sqliteTarget(s string) string {
	s, ok := strings.CutPrefix(s, ": ")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(s, " ("); i >= 0 {
		s = s[:i]
	}
	return s
}
