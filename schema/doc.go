// Package schema provides the in-memory model of a parsed .prax source file.
//
// A [Schema] owns every declared entity: models, enums, composite types,
// views, row-level policies, server groups, datasources, generators and raw
// SQL blocks. Cross-entity references are names resolved through the
// schema's lookup methods, never pointers, so the tree has no cycles.
//
// # Quick Start
//
// Schemas are usually produced by the parser:
//
//	s, err := parser.Parse(src)
//	if err != nil {
//	    return err
//	}
//	if err := validate.Schema(s); err != nil {
//	    return err
//	}
//	user := s.Model("User")
//	fmt.Println(user.TableName(), user.PrimaryKey())
//
// # Field Types
//
// A field type is one of:
//
//   - Scalar: Int, BigInt, Float, Decimal, Boolean, String, DateTime, Date,
//     Time, Json, Bytes, Uuid, Cuid, Cuid2, NanoId, Ulid
//   - Enum, Model or Composite: a reference by name, resolved by the validator
//   - Unsupported: a raw database type carried verbatim
//
// The [TypeModifier] records whether the field is required, optional
// (`T?`), a list (`T[]`) or an optional list (`T[]?`).
//
// # Attributes
//
// Field attributes start with `@` and model attributes with `@@`. Their
// arguments form a small literal algebra, see [Value].
//
// Entities keep insertion order so that code and DDL generated from a schema
// are stable across runs.
package schema
