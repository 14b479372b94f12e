package gen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/prax/schema"
)

// The following types describe the Go declarations derived from a schema.
type (
	// Graph holds every declaration generated for one schema.
	Graph struct {
		*Config
		// Types holds the models and views, in declaration order.
		Types []*Type
		// Composites holds the composite types.
		Composites []*Type
		// Enums holds the enums.
		Enums []*Enum
		// declared maps a top-level Go identifier to its owner.
		declared map[string]string
	}

	// Type is a Go struct generated for a model, view or composite type.
	Type struct {
		// Name is the Go name of the struct.
		Name string
		// Schema is the declared name.
		Schema string
		// Table is the table or view name. Empty for composite types.
		Table string
		// View reports whether the type was declared as a view.
		View bool
		Doc  string
		// Fields holds the stored fields.
		Fields []*Field
		// Edges holds the relation fields.
		Edges []*Edge
	}

	// Field is a stored field of a type.
	Field struct {
		// Name is the declared name.
		Name string
		// StructField is the Go name of the field.
		StructField string
		// Column is the column name.
		Column   string
		Type     GoType
		Optional bool
		ID       bool
		Unique   bool
		Doc      string
	}

	// Edge is a relation field holding the loaded related rows.
	Edge struct {
		// Name is the declared name.
		Name string
		// StructField is the Go name of the field.
		StructField string
		// Type is the Go name of the related type.
		Type string
		// Unique reports whether the edge holds at most one row.
		Unique bool
		// Fields holds the foreign key fields of the owning side.
		Fields []string
		Doc    string
	}

	// Enum is a named string type with one constant per value.
	Enum struct {
		// Name is the Go name of the type.
		Name string
		// Schema is the declared name.
		Schema string
		Doc    string
		Values []*EnumValue
	}

	// EnumValue is one constant of an enum.
	EnumValue struct {
		// Const is the Go name of the constant.
		Const string
		// Name is the declared name.
		Name string
		// Value is the stored value.
		Value string
		Doc   string
	}
)

// GoType is a Go type reference.
type GoType struct {
	// PkgPath is the import path of a qualified type.
	PkgPath string
	// Ident is the type name.
	Ident   string
	Slice   bool
	Pointer bool
}

// Code returns the jennifer code of t.
func (t GoType) Code() jen.Code {
	s := &jen.Statement{}
	if t.Pointer {
		s = s.Op("*")
	}
	if t.Slice {
		s = s.Index()
	}
	if t.PkgPath != "" {
		return s.Qual(t.PkgPath, t.Ident)
	}
	return s.Id(t.Ident)
}

// String returns the Go spelling of t with the package name of qualified
// types.
func (t GoType) String() string {
	var b strings.Builder
	if t.Pointer {
		b.WriteString("*")
	}
	if t.Slice {
		b.WriteString("[]")
	}
	if t.PkgPath != "" {
		b.WriteString(t.PkgPath[strings.LastIndex(t.PkgPath, "/")+1:] + ".")
	}
	b.WriteString(t.Ident)
	return b.String()
}

// nillable reports whether the zero value of t already stands for NULL.
func (t GoType) nillable() bool {
	return t.Slice || t.Ident == "RawMessage" || t.Ident == "any"
}

var scalarTypes = map[schema.ScalarType]GoType{
	schema.Int:      {Ident: "int"},
	schema.BigInt:   {Ident: "int64"},
	schema.Float:    {Ident: "float64"},
	schema.Decimal:  {Ident: "string"},
	schema.Boolean:  {Ident: "bool"},
	schema.String:   {Ident: "string"},
	schema.DateTime: {PkgPath: "time", Ident: "Time"},
	schema.Date:     {PkgPath: "time", Ident: "Time"},
	schema.Time:     {PkgPath: "time", Ident: "Time"},
	schema.Json:     {PkgPath: "encoding/json", Ident: "RawMessage"},
	schema.Bytes:    {Ident: "byte", Slice: true},
	schema.Uuid:     {PkgPath: "github.com/google/uuid", Ident: "UUID"},
	schema.Cuid:     {Ident: "string"},
	schema.Cuid2:    {Ident: "string"},
	schema.NanoId:   {Ident: "string"},
	schema.Ulid:     {Ident: "string"},
}

// NewGraph builds the declarations of s. Ignored models are skipped.
func NewGraph(c *Config, s *schema.Schema) (*Graph, error) {
	if c == nil {
		return nil, NewConfigError("Config", nil, "config cannot be nil")
	}
	g := &Graph{Config: c, declared: make(map[string]string)}
	for _, e := range s.Enums {
		enum, err := g.newEnum(e)
		if err != nil {
			return nil, err
		}
		g.Enums = append(g.Enums, enum)
	}
	for _, ct := range s.Types {
		t, err := g.newType(s, ct.Name, ct.Fields, ct.Doc)
		if err != nil {
			return nil, err
		}
		g.Composites = append(g.Composites, t)
	}
	for _, m := range s.Models {
		if m.IsIgnored() {
			continue
		}
		t, err := g.newType(s, m.Name, m.Fields, m.Doc)
		if err != nil {
			return nil, err
		}
		t.Table = m.TableName()
		pk := m.PrimaryKey()
		for _, f := range t.Fields {
			f.ID = slices.Contains(pk, f.Name)
		}
		g.Types = append(g.Types, t)
	}
	for _, v := range s.Views {
		t, err := g.newType(s, v.Name, v.Fields, v.Doc)
		if err != nil {
			return nil, err
		}
		t.Table, t.View = v.ViewName(), true
		g.Types = append(g.Types, t)
	}
	for _, t := range g.Types {
		for _, name := range []string{plural(t.Name), "Table" + t.Name} {
			if err := g.declare(name, t.Schema); err != nil {
				return nil, err
			}
		}
		for _, f := range t.Fields {
			if err := g.declare(t.Name+"Column"+f.StructField, t.Schema); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// declare reserves a top-level identifier.
func (g *Graph) declare(name, owner string) error {
	if prev, ok := g.declared[name]; ok {
		return NewGenerationError(owner, "", fmt.Sprintf("Go identifier %s is also declared by %s", name, prev), nil)
	}
	g.declared[name] = owner
	return nil
}

func (g *Graph) newEnum(e *schema.Enum) (*Enum, error) {
	enum := &Enum{Name: goName(e.Name), Schema: e.Name, Doc: e.Doc}
	if err := g.declare(enum.Name, e.Name); err != nil {
		return nil, err
	}
	for _, v := range e.Values {
		ev := &EnumValue{
			Const: enumConstant(e.Name, v.Name),
			Name:  v.Name,
			Value: v.DBName(),
			Doc:   v.Doc,
		}
		if err := g.declare(ev.Const, e.Name); err != nil {
			return nil, err
		}
		enum.Values = append(enum.Values, ev)
	}
	return enum, nil
}

func (g *Graph) newType(s *schema.Schema, name string, fields []*schema.Field, doc string) (*Type, error) {
	t := &Type{Name: goName(name), Schema: name, Doc: doc}
	if err := g.declare(t.Name, name); err != nil {
		return nil, err
	}
	seen := make(map[string]string)
	for _, f := range fields {
		if f.HasAttribute("ignore") {
			continue
		}
		sf := goName(f.Name)
		if prev, ok := seen[sf]; ok {
			return nil, NewGenerationError(name, "", fmt.Sprintf("fields %s and %s are both named %s in Go", prev, f.Name, sf), nil)
		}
		seen[sf] = f.Name
		if target, ok := relationTarget(s, f); ok {
			e := &Edge{Name: f.Name, StructField: sf, Type: goName(target), Unique: !f.IsList(), Doc: f.Doc}
			if rel, ok := f.Relation(); ok {
				e.Fields = rel.Fields
			}
			t.Edges = append(t.Edges, e)
			continue
		}
		typ, err := goType(s, f)
		if err != nil {
			return nil, NewGenerationError(name, "", "field "+f.Name, err)
		}
		t.Fields = append(t.Fields, &Field{
			Name:        f.Name,
			StructField: sf,
			Column:      f.ColumnName(),
			Type:        typ,
			Optional:    f.IsOptional(),
			Unique:      f.IsUnique(),
			Doc:         f.Doc,
		})
	}
	return t, nil
}

func relationTarget(s *schema.Schema, f *schema.Field) (string, bool) {
	switch f.Type.Kind {
	case schema.KindModel:
		return f.Type.Name, true
	case schema.KindNamed:
		if s.Model(f.Type.Name) != nil {
			return f.Type.Name, true
		}
	}
	return "", false
}

// goType returns the Go type of a stored field. Lists become slices and
// optional fields pointers, unless the zero value already stands for NULL.
func goType(s *schema.Schema, f *schema.Field) (GoType, error) {
	var t GoType
	switch kind := f.Type.Kind; {
	case kind == schema.KindScalar:
		st, ok := scalarTypes[f.Type.Scalar]
		if !ok {
			return GoType{}, fmt.Errorf("unknown scalar %s", f.Type.Scalar)
		}
		t = st
	case kind == schema.KindEnum, kind == schema.KindNamed && s.Enum(f.Type.Name) != nil:
		t = GoType{Ident: goName(f.Type.Name)}
	case kind == schema.KindComposite, kind == schema.KindNamed && s.Type(f.Type.Name) != nil:
		t = GoType{Ident: goName(f.Type.Name)}
	case kind == schema.KindUnsupported:
		t = GoType{Ident: "any"}
	default:
		return GoType{}, fmt.Errorf("unknown type %s", f.Type)
	}
	switch {
	case f.IsList() && t.Slice:
		// A list of byte slices.
		t = GoType{Ident: "[]byte", Slice: true}
	case f.IsList():
		t.Slice = true
	case f.IsOptional() && !t.nillable():
		t.Pointer = true
	}
	return t, nil
}
