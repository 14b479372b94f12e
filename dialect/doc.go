// Package dialect describes the SQL dialects prax emits for.
//
// A DatabaseType selects the surface syntax that differs between servers:
//
//   - Placeholder style: $1 (PostgreSQL), ? (MySQL, SQLite), @P1 (MSSQL)
//   - Identifier quoting: "x" (PostgreSQL, SQLite), `x` (MySQL), [x] (MSSQL)
//   - Pagination: LIMIT/OFFSET, or TOP and OFFSET ... FETCH NEXT on MSSQL
//   - Transaction keywords: BEGIN, START TRANSACTION, BEGIN TRANSACTION
//
// Identifiers are quoted only when necessary, that is when they are
// reserved words or contain characters outside [A-Za-z0-9_]:
//
//	dialect.PostgreSQL.QuoteIdent("users") // users
//	dialect.PostgreSQL.QuoteIdent("user")  // "user"
//	dialect.MSSQL.QuoteIdent("order")      // [order]
//
// The package also defines the Driver, Tx and ExecQuerier interfaces
// implemented by dialect/sql and consumed by the pipeline executor.
//
// MongoDB is not a DatabaseType. Its documents are produced by
// dialect/mongo.
package dialect
