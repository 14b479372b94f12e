// Package sql provides the filter algebra and the database/sql execution
// boundary shared by the statement builders.
//
// # Filters
//
// A Filter is a predicate tree that renders to a WHERE-clause fragment and
// a parameter vector. Values are always bound, never interpolated:
//
//	f := sql.And(sql.Equals("active", true), sql.Gt("score", 100))
//	query, params := f.ToSQL(0)
//	// (active = $1 AND score > $2) [true 100]
//
// The zero Filter (None) is the identity of And and Or. Equality with a
// NULL value renders IS NULL, an empty IN renders FALSE and an empty
// NOT IN renders TRUE. Emit renders for a specific dialect; the offset
// argument continues the numbering of an enclosing statement.
//
// Typed column references give compile-time checked predicates:
//
//	var Email = sql.StringOf("email")
//	Email.HasSuffix("@example.com") // email LIKE $1 with "%@example.com"
//
// # Placeholders
//
// RenumberParams shifts $n placeholders so independently built statements
// can be joined into one batch.
//
// # Execution
//
// Driver adapts a *database/sql.DB to dialect.Driver. Session variables
// attached with WithVar are set before every statement, which is how the
// row-level security predicates emitted by dialect/sql/policy learn the
// current user. StatsDriver counts queries, execs and transaction batches
// of any dialect.Driver and reports slow statements; DebugDriver logs every
// statement through slog.
//
// Constraint violations reported by the pq, mysql, go-mssqldb and SQLite
// drivers are returned as *ConstraintError:
//
//	if sql.IsUniqueConstraintError(err) {
//		// email already taken
//	}
package sql
