package schema

// Model is a declared entity stored as a table.
type Model struct {
	Name       string
	Fields     []*Field
	Attributes []*Attribute
	Doc        string
	Span       Span
}

// Field returns the field with the given name.
func (m *Model) Field(name string) *Field {
	return findField(m.Fields, name)
}

// Attribute returns the model attribute (`@@name`) with the given name.
func (m *Model) Attribute(name string) *Attribute {
	return attributes(m.Attributes).find(name)
}

// TableName returns the @@map name or the model name.
func (m *Model) TableName() string {
	if name, ok := attributes(m.Attributes).stringArg("map"); ok {
		return name
	}
	return m.Name
}

// SchemaName returns the @@schema name, if any.
func (m *Model) SchemaName() string {
	name, _ := attributes(m.Attributes).stringArg("schema")
	return name
}

// IsIgnored reports whether the model is excluded from DDL.
func (m *Model) IsIgnored() bool { return m.Attribute("ignore") != nil }

// PrimaryKey returns the names of the primary key fields: fields marked
// with @id in declaration order, or the fields listed in @@id.
func (m *Model) PrimaryKey() []string {
	var pk []string
	for _, f := range m.Fields {
		if f.IsID() {
			pk = append(pk, f.Name)
		}
	}
	if len(pk) > 0 {
		return pk
	}
	if a := m.Attribute("id"); a != nil {
		if v, ok := a.Positional(0); ok {
			return v.FieldRefs()
		}
		if v, ok := a.Named("fields"); ok {
			return v.FieldRefs()
		}
	}
	return nil
}

// SequenceDecl is a named sequence declared with @@sequence. Zero values
// are left to the database defaults.
type SequenceDecl struct {
	Name      string
	Start     int64
	Increment int64
	Cache     int64
}

// Sequence returns the @@sequence declaration of the model, if any.
func (m *Model) Sequence() (*SequenceDecl, bool) {
	a := m.Attribute("sequence")
	if a == nil {
		return nil, false
	}
	seq := &SequenceDecl{}
	if v, ok := a.Positional(0); ok {
		seq.Name = v.Str
	}
	for name, dst := range map[string]*int64{"start": &seq.Start, "increment": &seq.Increment, "cache": &seq.Cache} {
		if v, ok := a.Named(name); ok && v.Kind == ValueInt {
			*dst = v.Int
		}
	}
	return seq, true
}

// Columns returns the fields stored as table columns.
func (m *Model) Columns() []*Field {
	cols := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.IsColumn() {
			cols = append(cols, f)
		}
	}
	return cols
}

// Index is a model-level index or unique constraint.
type Index struct {
	Name   string
	Fields []string
	Unique bool
	// Type is the optional index method (e.g. "Hash", "Gin").
	Type string
}

// Indexes returns the indexes declared with @unique, @index, @@unique and
// @@index, in declaration order.
func (m *Model) Indexes() []*Index {
	var idx []*Index
	for _, f := range m.Fields {
		switch {
		case f.IsID():
		case f.HasAttribute("unique"):
			idx = append(idx, &Index{Name: attrName(f.Attribute("unique")), Fields: []string{f.Name}, Unique: true})
		case f.HasAttribute("index"):
			idx = append(idx, &Index{Name: attrName(f.Attribute("index")), Fields: []string{f.Name}})
		}
	}
	for _, a := range m.Attributes {
		if a.Name != "unique" && a.Name != "index" {
			continue
		}
		ix := &Index{Name: attrName(a), Unique: a.Name == "unique"}
		if v, ok := a.Positional(0); ok {
			ix.Fields = v.FieldRefs()
		} else if v, ok := a.Named("fields"); ok {
			ix.Fields = v.FieldRefs()
		}
		if v, ok := a.Named("type"); ok {
			ix.Type = v.Str
		}
		idx = append(idx, ix)
	}
	return idx
}

func attrName(a *Attribute) string {
	if a == nil {
		return ""
	}
	for _, key := range []string{"name", "map"} {
		if v, ok := a.Named(key); ok && v.Kind == ValueString {
			return v.Str
		}
	}
	return ""
}

// Enum is a declared enumeration.
type Enum struct {
	Name       string
	Values     []*EnumValue
	Attributes []*Attribute
	Doc        string
	Span       Span
}

// DBName returns the @@map name or the enum name.
func (e *Enum) DBName() string {
	if name, ok := attributes(e.Attributes).stringArg("map"); ok {
		return name
	}
	return e.Name
}

// Value returns the variant with the given name.
func (e *Enum) Value(name string) *EnumValue {
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// DBValues returns the database spelling of every variant.
func (e *Enum) DBValues() []string {
	vs := make([]string, len(e.Values))
	for i, v := range e.Values {
		vs[i] = v.DBName()
	}
	return vs
}

// EnumValue is a single enum variant.
type EnumValue struct {
	Name       string
	Attributes []*Attribute
	Doc        string
	Span       Span
}

// DBName returns the @map name or the variant name.
func (v *EnumValue) DBName() string {
	if name, ok := attributes(v.Attributes).stringArg("map"); ok {
		return name
	}
	return v.Name
}

// CompositeType is an embedded structured type declared with `type`.
type CompositeType struct {
	Name   string
	Fields []*Field
	Doc    string
	Span   Span
}

// Field returns the field with the given name.
func (c *CompositeType) Field(name string) *Field {
	return findField(c.Fields, name)
}

// View is a read-only relation backed by a database view.
type View struct {
	Name       string
	Fields     []*Field
	Attributes []*Attribute
	Doc        string
	Span       Span
}

// Field returns the field with the given name.
func (v *View) Field(name string) *Field {
	return findField(v.Fields, name)
}

// ViewName returns the @@map name or the view name.
func (v *View) ViewName() string {
	if name, ok := attributes(v.Attributes).stringArg("map"); ok {
		return name
	}
	return v.Name
}

// Definition returns the SQL given with @@sql, if any.
func (v *View) Definition() string {
	s, _ := attributes(v.Attributes).stringArg("sql")
	return s
}

func findField(fields []*Field, name string) *Field {
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
