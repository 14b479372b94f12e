package schema

import (
	"fmt"
	"strings"
)

// ScalarType is a built-in field type.
type ScalarType uint8

// Scalar types.
const (
	Int ScalarType = iota + 1
	BigInt
	Float
	Decimal
	Boolean
	String
	DateTime
	Date
	Time
	Json
	Bytes
	Uuid
	Cuid
	Cuid2
	NanoId
	Ulid
)

var scalarNames = [...]string{
	Int:      "Int",
	BigInt:   "BigInt",
	Float:    "Float",
	Decimal:  "Decimal",
	Boolean:  "Boolean",
	String:   "String",
	DateTime: "DateTime",
	Date:     "Date",
	Time:     "Time",
	Json:     "Json",
	Bytes:    "Bytes",
	Uuid:     "Uuid",
	Cuid:     "Cuid",
	Cuid2:    "Cuid2",
	NanoId:   "NanoId",
	Ulid:     "Ulid",
}

// String returns the source spelling of the scalar.
func (s ScalarType) String() string {
	if int(s) < len(scalarNames) && scalarNames[s] != "" {
		return scalarNames[s]
	}
	return "invalid"
}

// IsIdentifier reports whether values of the scalar are generated string
// identifiers (cuid, nanoid, ...).
func (s ScalarType) IsIdentifier() bool {
	switch s {
	case Uuid, Cuid, Cuid2, NanoId, Ulid:
		return true
	}
	return false
}

// ParseScalar returns the scalar type with the given source name.
func ParseScalar(name string) (ScalarType, bool) {
	for i, n := range scalarNames {
		if n != "" && n == name {
			return ScalarType(i), true
		}
	}
	return 0, false
}

// TypeKind identifies the variant held by a FieldType.
type TypeKind uint8

// Field type kinds. KindNamed is an unresolved reference produced by the
// parser; the validator rewrites it to KindEnum, KindModel or KindComposite.
const (
	KindScalar TypeKind = iota + 1
	KindEnum
	KindModel
	KindComposite
	KindUnsupported
	KindNamed
)

// FieldType is the declared type of a field.
type FieldType struct {
	Kind   TypeKind
	Scalar ScalarType
	// Name is the referenced entity for enum, model, composite and named
	// kinds, and the raw database type for unsupported ones.
	Name string
}

// ScalarOf returns a scalar field type.
func ScalarOf(s ScalarType) FieldType { return FieldType{Kind: KindScalar, Scalar: s} }

// EnumOf returns an enum field type.
func EnumOf(name string) FieldType { return FieldType{Kind: KindEnum, Name: name} }

// ModelOf returns a relation field type.
func ModelOf(name string) FieldType { return FieldType{Kind: KindModel, Name: name} }

// CompositeOf returns a composite field type.
func CompositeOf(name string) FieldType { return FieldType{Kind: KindComposite, Name: name} }

// UnsupportedOf returns a raw, database-specific field type.
func UnsupportedOf(raw string) FieldType { return FieldType{Kind: KindUnsupported, Name: raw} }

// NamedOf returns an unresolved reference to a user-declared type.
func NamedOf(name string) FieldType { return FieldType{Kind: KindNamed, Name: name} }

// IsScalar reports whether the type is the given scalar.
func (t FieldType) IsScalar(s ScalarType) bool { return t.Kind == KindScalar && t.Scalar == s }

// String returns the source spelling of the type.
func (t FieldType) String() string {
	switch t.Kind {
	case KindScalar:
		return t.Scalar.String()
	case KindUnsupported:
		return fmt.Sprintf("Unsupported(%q)", t.Name)
	}
	return t.Name
}

// TypeModifier records optionality and cardinality of a field.
type TypeModifier uint8

// Type modifiers.
const (
	Required TypeModifier = iota
	Optional
	List
	OptionalList
)

// Suffix returns the source suffix of the modifier.
func (m TypeModifier) Suffix() string {
	switch m {
	case Optional:
		return "?"
	case List:
		return "[]"
	case OptionalList:
		return "[]?"
	}
	return ""
}

// String returns the modifier name.
func (m TypeModifier) String() string {
	switch m {
	case Optional:
		return "Optional"
	case List:
		return "List"
	case OptionalList:
		return "OptionalList"
	}
	return "Required"
}

// Field is a model, view or composite-type field.
type Field struct {
	Name       string
	Type       FieldType
	Modifier   TypeModifier
	Attributes []*Attribute
	Doc        string
	Span       Span
}

// Attribute returns the field attribute with the given name.
func (f *Field) Attribute(name string) *Attribute {
	return attributes(f.Attributes).find(name)
}

// HasAttribute reports whether the field carries the attribute.
func (f *Field) HasAttribute(name string) bool { return f.Attribute(name) != nil }

// IsID reports whether the field is marked with @id.
func (f *Field) IsID() bool { return f.HasAttribute("id") }

// IsUnique reports whether the field is marked with @unique or @id.
func (f *Field) IsUnique() bool { return f.HasAttribute("unique") || f.IsID() }

// IsAuto reports whether the field is auto-incremented, either by @auto
// or by @default(autoincrement()).
func (f *Field) IsAuto() bool {
	if f.HasAttribute("auto") {
		return true
	}
	if d, ok := f.Default(); ok {
		return d.IsFunc("autoincrement")
	}
	return false
}

// IsIndexed reports whether the field is marked with @index.
func (f *Field) IsIndexed() bool { return f.HasAttribute("index") }

// IsUpdatedAt reports whether the field is maintained on update.
func (f *Field) IsUpdatedAt() bool {
	return f.HasAttribute("updated_at") || f.HasAttribute("updatedAt")
}

// IsOptional reports whether the column accepts NULL.
func (f *Field) IsOptional() bool {
	return f.Modifier == Optional || f.Modifier == OptionalList
}

// IsList reports whether the field holds many values.
func (f *Field) IsList() bool {
	return f.Modifier == List || f.Modifier == OptionalList
}

// IsRelation reports whether the field references another model.
func (f *Field) IsRelation() bool { return f.Type.Kind == KindModel }

// IsColumn reports whether the field is stored as a table column.
// Relation fields are virtual; the foreign key columns they name are
// declared separately.
func (f *Field) IsColumn() bool {
	return f.Type.Kind != KindModel && !f.HasAttribute("ignore")
}

// ColumnName returns the @map name or the field name.
func (f *Field) ColumnName() string {
	if name, ok := attributes(f.Attributes).stringArg("map"); ok {
		return name
	}
	return f.Name
}

// Default returns the @default argument.
func (f *Field) Default() (Value, bool) {
	a := f.Attribute("default")
	if a == nil {
		return Value{}, false
	}
	return a.Positional(0)
}

// NativeType returns the @db.<Type>(args) attribute, if any.
func (f *Field) NativeType() *Attribute {
	for _, a := range f.Attributes {
		if strings.HasPrefix(a.Name, "db.") {
			return a
		}
	}
	return nil
}

// Relation returns the @relation description of the field.
func (f *Field) Relation() (*Relation, bool) {
	a := f.Attribute("relation")
	if a == nil {
		return nil, false
	}
	r := &Relation{}
	if v, ok := a.Positional(0); ok && v.Kind == ValueString {
		r.Name = v.Str
	}
	if v, ok := a.Named("name"); ok && v.Kind == ValueString {
		r.Name = v.Str
	}
	if v, ok := a.Named("fields"); ok {
		r.Fields = v.FieldRefs()
	}
	if v, ok := a.Named("references"); ok {
		r.References = v.FieldRefs()
	}
	if v, ok := a.Named("onDelete"); ok {
		if act, ok := ParseReferentialAction(v.Str); ok {
			r.OnDelete = &act
		}
	}
	if v, ok := a.Named("onUpdate"); ok {
		if act, ok := ParseReferentialAction(v.Str); ok {
			r.OnUpdate = &act
		}
	}
	return r, true
}

// ReferentialAction is a foreign key ON DELETE/ON UPDATE behavior.
type ReferentialAction uint8

// Referential actions.
const (
	Cascade ReferentialAction = iota + 1
	Restrict
	SetNull
	SetDefault
	NoAction
)

// String returns the source spelling of the action.
func (a ReferentialAction) String() string {
	switch a {
	case Cascade:
		return "Cascade"
	case Restrict:
		return "Restrict"
	case SetNull:
		return "SetNull"
	case SetDefault:
		return "SetDefault"
	case NoAction:
		return "NoAction"
	}
	return "invalid"
}

// SQL returns the SQL spelling of the action.
func (a ReferentialAction) SQL() string {
	switch a {
	case Cascade:
		return "CASCADE"
	case Restrict:
		return "RESTRICT"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	}
	return "NO ACTION"
}

// ParseReferentialAction parses a referential action name.
func ParseReferentialAction(s string) (ReferentialAction, bool) {
	switch s {
	case "Cascade":
		return Cascade, true
	case "Restrict":
		return Restrict, true
	case "SetNull":
		return SetNull, true
	case "SetDefault":
		return SetDefault, true
	case "NoAction":
		return NoAction, true
	}
	return 0, false
}

// Relation describes a foreign key declared with @relation.
type Relation struct {
	Name       string
	Fields     []string
	References []string
	OnDelete   *ReferentialAction
	OnUpdate   *ReferentialAction
}

// IsOwner reports whether the relation side holds the foreign key.
func (r *Relation) IsOwner() bool { return len(r.Fields) > 0 }
