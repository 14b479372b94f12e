// Package gen is the bundled Go code generator. It turns a validated
// schema into Go source: one struct per model and view, a named string
// type with constants per enum, structs for composite types, and the
// table name constants.
//
// # Usage
//
// The generator plugs into the compiler:
//
//	g, err := gen.New(gen.WithPackage("models"))
//	if err != nil {
//	    return err
//	}
//	out, err := compiler.Compile(ctx, src, compiler.WithGenerators(g))
//	if err != nil {
//	    return err
//	}
//	err = gen.NewWriter("./models").Write(ctx, out.Files)
//
// # Generated Output
//
//	{output}/
//	├── schema.go   // table name constants
//	├── enum.go     // enum types, constants and validators
//	├── types.go    // composite types
//	└── {model}.go  // one file per model and view
//
// # Naming
//
// Go identifiers are derived from schema names with common initialisms
// kept upper case, so a field authorId becomes AuthorID. Enum constants
// are prefixed with the enum name: RoleAdmin. Upper case enum values are
// title cased, so PENDING_REVIEW becomes PendingReview.
package gen
