package schema

import (
	"strconv"
	"strings"

	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	ast "github.com/syssam/prax/schema"
)

// scalarTypes holds the column type of every scalar per dialect.
var scalarTypes = map[ast.ScalarType][4]schema.Type{
	//                PostgreSQL, MySQL, SQLite, MSSQL
	ast.Int:      {&schema.IntegerType{T: "integer"}, &schema.IntegerType{T: "int"}, &schema.IntegerType{T: "integer"}, &schema.IntegerType{T: "int"}},
	ast.BigInt:   {&schema.IntegerType{T: "bigint"}, &schema.IntegerType{T: "bigint"}, &schema.IntegerType{T: "integer"}, &schema.IntegerType{T: "bigint"}},
	ast.Float:    {&schema.FloatType{T: "double precision"}, &schema.FloatType{T: "double"}, &schema.FloatType{T: "real"}, &schema.FloatType{T: "float"}},
	ast.Decimal:  {&schema.DecimalType{T: "numeric", Precision: 65, Scale: 30}, &schema.DecimalType{T: "decimal", Precision: 65, Scale: 30}, &schema.DecimalType{T: "decimal"}, &schema.DecimalType{T: "decimal", Precision: 32, Scale: 16}},
	ast.Boolean:  {&schema.BoolType{T: "boolean"}, &schema.BoolType{T: "bool"}, &schema.BoolType{T: "bool"}, &schema.BoolType{T: "bit"}},
	ast.String:   {&schema.StringType{T: "text"}, &schema.StringType{T: "varchar", Size: 191}, &schema.StringType{T: "text"}, &schema.StringType{T: "nvarchar", Size: 1000}},
	ast.DateTime: {&schema.TimeType{T: "timestamptz"}, &schema.TimeType{T: "datetime"}, &schema.TimeType{T: "datetime"}, &schema.TimeType{T: "datetime2"}},
	ast.Date:     {&schema.TimeType{T: "date"}, &schema.TimeType{T: "date"}, &schema.TimeType{T: "date"}, &schema.TimeType{T: "date"}},
	ast.Time:     {&schema.TimeType{T: "time"}, &schema.TimeType{T: "time"}, &schema.TimeType{T: "time"}, &schema.TimeType{T: "time"}},
	ast.Json:     {&schema.JSONType{T: "jsonb"}, &schema.JSONType{T: "json"}, &schema.JSONType{T: "json"}, &schema.StringType{T: "nvarchar", Size: -1}},
	ast.Bytes:    {&schema.BinaryType{T: "bytea"}, &schema.BinaryType{T: "longblob"}, &schema.BinaryType{T: "blob"}, &schema.BinaryType{T: "varbinary"}},
	ast.Uuid:     {&schema.UUIDType{T: "uuid"}, &schema.StringType{T: "char", Size: 36}, &schema.StringType{T: "text"}, &schema.UUIDType{T: "uniqueidentifier"}},
}

// idTypes covers the generated string identifiers (cuid, nanoid, ...).
var idTypes = [4]schema.Type{
	&schema.StringType{T: "text"},
	&schema.StringType{T: "varchar", Size: 191},
	&schema.StringType{T: "text"},
	&schema.StringType{T: "nvarchar", Size: 1000},
}

func slot(d dialect.DatabaseType) int { return int(d) - int(dialect.PostgreSQL) }

// columnType returns the column type of f. Lists of scalars become PostgreSQL
// arrays and JSON elsewhere; composite types are stored as JSON.
func columnType(d dialect.DatabaseType, s *ast.Schema, f *ast.Field) (schema.Type, error) {
	if a := f.NativeType(); a != nil {
		return nativeType(d, a)
	}
	var t schema.Type
	switch f.Type.Kind {
	case ast.KindScalar:
		switch {
		case f.Type.Scalar.IsIdentifier() && f.Type.Scalar != ast.Uuid:
			t = idTypes[slot(d)]
		default:
			types, ok := scalarTypes[f.Type.Scalar]
			if !ok {
				return nil, prax.NewInvalidInputError("schema", f.Name, "unknown scalar "+f.Type.Scalar.String())
			}
			t = types[slot(d)]
		}
	case ast.KindEnum:
		e := s.Enum(f.Type.Name)
		if e == nil {
			return nil, prax.NewInvalidInputError("schema", f.Name, "unknown enum "+f.Type.Name)
		}
		t = enumType(d, e)
	case ast.KindComposite:
		t = scalarTypes[ast.Json][slot(d)]
	default:
		return nil, d.Unsupported("column type "+f.Type.String(), "raw database types are not planned")
	}
	if f.IsList() && f.Type.Kind != ast.KindComposite {
		if d == dialect.PostgreSQL {
			return &postgres.ArrayType{Type: t, T: typeString(t) + "[]"}, nil
		}
		return scalarTypes[ast.Json][slot(d)], nil
	}
	return t, nil
}

// enumType returns the column type of an enum: a named type on PostgreSQL,
// an inline ENUM on MySQL and a string column elsewhere.
func enumType(d dialect.DatabaseType, e *ast.Enum) schema.Type {
	switch d {
	case dialect.PostgreSQL:
		return &schema.EnumType{T: e.DBName(), Values: e.DBValues()}
	case dialect.MySQL:
		return &schema.EnumType{T: "enum", Values: e.DBValues()}
	}
	return idTypes[slot(d)]
}

// nativeType maps an @db.<Type>(args) attribute.
func nativeType(d dialect.DatabaseType, a *ast.Attribute) (schema.Type, error) {
	name := strings.TrimPrefix(a.Name, "db.")
	arg := func(i int) int {
		if v, ok := a.Positional(i); ok && v.Kind == ast.ValueInt {
			return int(v.Int)
		}
		return 0
	}
	lower := strings.ToLower(name)
	switch lower {
	case "varchar", "nvarchar", "char", "nchar":
		return &schema.StringType{T: lower, Size: arg(0)}, nil
	case "text", "ntext", "citext", "mediumtext", "longtext":
		return &schema.StringType{T: lower}, nil
	case "smallint", "integer", "int", "bigint", "tinyint", "mediumint":
		return &schema.IntegerType{T: lower}, nil
	case "real", "doubleprecision", "double":
		return &schema.FloatType{T: strings.Replace(lower, "doubleprecision", "double precision", 1)}, nil
	case "decimal", "numeric", "money":
		return &schema.DecimalType{T: lower, Precision: arg(0), Scale: arg(1)}, nil
	case "timestamp", "timestamptz", "datetime", "datetime2", "date", "time", "timetz":
		p := arg(0)
		if p == 0 {
			return &schema.TimeType{T: lower}, nil
		}
		return &schema.TimeType{T: lower, Precision: &p}, nil
	case "uuid", "uniqueidentifier":
		return &schema.UUIDType{T: lower}, nil
	case "json", "jsonb":
		return &schema.JSONType{T: lower}, nil
	case "bytea", "blob", "longblob", "varbinary", "binary":
		return &schema.BinaryType{T: lower}, nil
	case "boolean", "bool", "bit":
		return &schema.BoolType{T: lower}, nil
	}
	return nil, d.Unsupported("native type @"+a.Name, "no mapping for %s", name)
}

// typeString renders t the way it is written in DDL, with size, precision
// and scale. A negative size is written as MAX.
func typeString(t schema.Type) string {
	switch t := t.(type) {
	case *schema.IntegerType:
		return t.T
	case *schema.StringType:
		switch {
		case t.Size < 0:
			return t.T + "(MAX)"
		case t.Size > 0:
			return t.T + "(" + strconv.Itoa(t.Size) + ")"
		}
		return t.T
	case *schema.DecimalType:
		if t.Precision > 0 {
			return t.T + "(" + strconv.Itoa(t.Precision) + "," + strconv.Itoa(t.Scale) + ")"
		}
		return t.T
	case *schema.FloatType:
		return t.T
	case *schema.BoolType:
		return t.T
	case *schema.TimeType:
		if t.Precision != nil {
			return t.T + "(" + strconv.Itoa(*t.Precision) + ")"
		}
		return t.T
	case *schema.JSONType:
		return t.T
	case *schema.BinaryType:
		if t.T == "varbinary" {
			return "varbinary(MAX)"
		}
		return t.T
	case *schema.UUIDType:
		return t.T
	case *schema.EnumType:
		return t.T
	case *postgres.ArrayType:
		return t.T
	case *postgres.SerialType:
		return t.T
	}
	return "unknown"
}
