package load

import (
	"encoding/json"

	"github.com/syssam/prax/schema"
)

// Document is the JSON form of a loaded schema, as printed by the
// format-ast command.
type Document struct {
	Files    []string  `json:"files,omitempty"`
	Models   []*Schema `json:"models,omitempty"`
	Views    []*Schema `json:"views,omitempty"`
	Types    []*Schema `json:"types,omitempty"`
	Enums    []*Enum   `json:"enums,omitempty"`
	Policies []*Policy `json:"policies,omitempty"`
}

// Schema describes a model, view or composite type.
type Schema struct {
	Name       string               `json:"name"`
	Table      string               `json:"table,omitempty"`
	Namespace  string               `json:"namespace,omitempty"`
	Ignored    bool                 `json:"ignored,omitempty"`
	PrimaryKey []string             `json:"primary_key,omitempty"`
	Fields     []*Field             `json:"fields,omitempty"`
	Indexes    []*Index             `json:"indexes,omitempty"`
	Sequence   *schema.SequenceDecl `json:"sequence,omitempty"`
	Comment    string               `json:"comment,omitempty"`
}

// Field describes a field.
type Field struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Column     string    `json:"column,omitempty"`
	Optional   bool      `json:"optional,omitempty"`
	List       bool      `json:"list,omitempty"`
	Unique     bool      `json:"unique,omitempty"`
	Auto       bool      `json:"auto,omitempty"`
	Default    string    `json:"default,omitempty"`
	Relation   *Relation `json:"relation,omitempty"`
	Attributes []string  `json:"attributes,omitempty"`
	Comment    string    `json:"comment,omitempty"`
}

// Relation describes the @relation of a field.
type Relation struct {
	Name       string   `json:"name,omitempty"`
	Fields     []string `json:"fields,omitempty"`
	References []string `json:"references,omitempty"`
	OnDelete   string   `json:"on_delete,omitempty"`
	OnUpdate   string   `json:"on_update,omitempty"`
}

// Index describes an index or unique constraint.
type Index struct {
	Name   string   `json:"name,omitempty"`
	Unique bool     `json:"unique,omitempty"`
	Fields []string `json:"fields"`
	Type   string   `json:"type,omitempty"`
}

// Enum describes an enum and its database values.
type Enum struct {
	Name   string            `json:"name"`
	DBName string            `json:"db_name,omitempty"`
	Values map[string]string `json:"values"`
	Order  []string          `json:"order"`
}

// Policy describes a row-level security policy.
type Policy struct {
	Name     string   `json:"name"`
	Table    string   `json:"table"`
	Type     string   `json:"type"`
	Commands []string `json:"commands,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Using    string   `json:"using,omitempty"`
	Check    string   `json:"check,omitempty"`
}

// Describe converts spec into its JSON form.
func Describe(spec *SchemaSpec) *Document {
	s := spec.Schema
	doc := &Document{Files: spec.Files}
	for _, m := range s.Models {
		d := &Schema{
			Name:       m.Name,
			Table:      m.TableName(),
			Namespace:  m.SchemaName(),
			Ignored:    m.IsIgnored(),
			PrimaryKey: m.PrimaryKey(),
			Fields:     fields(m.Fields),
			Comment:    m.Doc,
		}
		for _, ix := range m.Indexes() {
			d.Indexes = append(d.Indexes, &Index{Name: ix.Name, Unique: ix.Unique, Fields: ix.Fields, Type: ix.Type})
		}
		d.Sequence, _ = m.Sequence()
		doc.Models = append(doc.Models, d)
	}
	for _, v := range s.Views {
		doc.Views = append(doc.Views, &Schema{Name: v.Name, Table: v.ViewName(), Fields: fields(v.Fields), Comment: v.Doc})
	}
	for _, t := range s.Types {
		doc.Types = append(doc.Types, &Schema{Name: t.Name, Fields: fields(t.Fields), Comment: t.Doc})
	}
	for _, e := range s.Enums {
		ne := &Enum{Name: e.Name, Values: make(map[string]string, len(e.Values))}
		if db := e.DBName(); db != e.Name {
			ne.DBName = db
		}
		for _, v := range e.Values {
			ne.Values[v.Name] = v.DBName()
			ne.Order = append(ne.Order, v.Name)
		}
		doc.Enums = append(doc.Enums, ne)
	}
	for _, p := range s.Policies {
		np := &Policy{Name: p.Name, Table: p.Table, Type: p.Type.String(), Roles: p.Roles, Using: p.Using, Check: p.Check}
		for _, c := range p.Commands {
			np.Commands = append(np.Commands, c.String())
		}
		doc.Policies = append(doc.Policies, np)
	}
	return doc
}

func fields(fs []*schema.Field) []*Field {
	out := make([]*Field, 0, len(fs))
	for _, f := range fs {
		nf := &Field{
			Name:     f.Name,
			Type:     f.Type.String() + f.Modifier.Suffix(),
			Optional: f.IsOptional(),
			List:     f.IsList(),
			Unique:   f.IsUnique(),
			Auto:     f.IsAuto(),
			Comment:  f.Doc,
		}
		if col := f.ColumnName(); col != f.Name {
			nf.Column = col
		}
		if v, ok := f.Default(); ok {
			nf.Default = v.String()
		}
		if r, ok := f.Relation(); ok {
			nr := &Relation{Name: r.Name, Fields: r.Fields, References: r.References}
			if r.OnDelete != nil {
				nr.OnDelete = r.OnDelete.String()
			}
			if r.OnUpdate != nil {
				nr.OnUpdate = r.OnUpdate.String()
			}
			nf.Relation = nr
		}
		for _, a := range f.Attributes {
			nf.Attributes = append(nf.Attributes, a.String())
		}
		out = append(out, nf)
	}
	return out
}

// MarshalSchema encodes spec as indented JSON.
func MarshalSchema(spec *SchemaSpec) ([]byte, error) {
	return json.MarshalIndent(Describe(spec), "", "  ")
}
