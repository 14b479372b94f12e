package schema

// Schema is the root of a parsed source file. It owns every declared
// entity; entity slices keep declaration order.
type Schema struct {
	Models       []*Model
	Enums        []*Enum
	Types        []*CompositeType
	Views        []*View
	Policies     []*Policy
	ServerGroups []*ServerGroup
	// Datasources holds every datasource block; a valid schema has at
	// most one.
	Datasources []*Datasource
	Generators  []*Generator
	RawSQL      []*RawSQL

	index map[string]map[string]int
}

// Namespaces of the schema. Names must be unique within each.
const (
	NamespaceModel       = "model"
	NamespaceEnum        = "enum"
	NamespaceType        = "type"
	NamespaceView        = "view"
	NamespacePolicy      = "policy"
	NamespaceServerGroup = "serverGroup"
	NamespaceGenerator   = "generator"
	NamespaceRawSQL      = "raw_sql"
)

// New returns an empty schema.
func New() *Schema {
	return &Schema{index: make(map[string]map[string]int)}
}

// register records the first position of name in a namespace.
func (s *Schema) register(ns, name string, pos int) {
	if s.index == nil {
		s.index = make(map[string]map[string]int)
	}
	m := s.index[ns]
	if m == nil {
		m = make(map[string]int)
		s.index[ns] = m
	}
	if _, ok := m[name]; !ok {
		m[name] = pos
	}
}

func (s *Schema) lookup(ns, name string) (int, bool) {
	if s.index == nil {
		return 0, false
	}
	i, ok := s.index[ns][name]
	return i, ok
}

// AddModel appends a model.
func (s *Schema) AddModel(m *Model) {
	s.register(NamespaceModel, m.Name, len(s.Models))
	s.Models = append(s.Models, m)
}

// AddEnum appends an enum.
func (s *Schema) AddEnum(e *Enum) {
	s.register(NamespaceEnum, e.Name, len(s.Enums))
	s.Enums = append(s.Enums, e)
}

// AddType appends a composite type.
func (s *Schema) AddType(t *CompositeType) {
	s.register(NamespaceType, t.Name, len(s.Types))
	s.Types = append(s.Types, t)
}

// AddView appends a view.
func (s *Schema) AddView(v *View) {
	s.register(NamespaceView, v.Name, len(s.Views))
	s.Views = append(s.Views, v)
}

// AddPolicy appends a policy.
func (s *Schema) AddPolicy(p *Policy) {
	s.register(NamespacePolicy, p.Name, len(s.Policies))
	s.Policies = append(s.Policies, p)
}

// AddServerGroup appends a server group.
func (s *Schema) AddServerGroup(g *ServerGroup) {
	s.register(NamespaceServerGroup, g.Name, len(s.ServerGroups))
	s.ServerGroups = append(s.ServerGroups, g)
}

// AddDatasource appends a datasource.
func (s *Schema) AddDatasource(d *Datasource) {
	s.Datasources = append(s.Datasources, d)
}

// AddGenerator appends a generator.
func (s *Schema) AddGenerator(g *Generator) {
	s.register(NamespaceGenerator, g.Name, len(s.Generators))
	s.Generators = append(s.Generators, g)
}

// AddRawSQL appends a raw SQL block.
func (s *Schema) AddRawSQL(r *RawSQL) {
	s.register(NamespaceRawSQL, r.Name, len(s.RawSQL))
	s.RawSQL = append(s.RawSQL, r)
}

// Model returns the model with the given name, or nil.
func (s *Schema) Model(name string) *Model {
	if i, ok := s.lookup(NamespaceModel, name); ok {
		return s.Models[i]
	}
	return nil
}

// ModelByTable returns the model whose table name is name, or nil.
func (s *Schema) ModelByTable(name string) *Model {
	for _, m := range s.Models {
		if m.TableName() == name {
			return m
		}
	}
	return nil
}

// Enum returns the enum with the given name, or nil.
func (s *Schema) Enum(name string) *Enum {
	if i, ok := s.lookup(NamespaceEnum, name); ok {
		return s.Enums[i]
	}
	return nil
}

// Type returns the composite type with the given name, or nil.
func (s *Schema) Type(name string) *CompositeType {
	if i, ok := s.lookup(NamespaceType, name); ok {
		return s.Types[i]
	}
	return nil
}

// View returns the view with the given name, or nil.
func (s *Schema) View(name string) *View {
	if i, ok := s.lookup(NamespaceView, name); ok {
		return s.Views[i]
	}
	return nil
}

// Policy returns the policy with the given name, or nil.
func (s *Schema) Policy(name string) *Policy {
	if i, ok := s.lookup(NamespacePolicy, name); ok {
		return s.Policies[i]
	}
	return nil
}

// ServerGroup returns the server group with the given name, or nil.
func (s *Schema) ServerGroup(name string) *ServerGroup {
	if i, ok := s.lookup(NamespaceServerGroup, name); ok {
		return s.ServerGroups[i]
	}
	return nil
}

// RawSQLBlock returns the raw SQL block with the given name, or nil.
func (s *Schema) RawSQLBlock(name string) *RawSQL {
	if i, ok := s.lookup(NamespaceRawSQL, name); ok {
		return s.RawSQL[i]
	}
	return nil
}

// Datasource returns the first datasource, or nil.
func (s *Schema) Datasource() *Datasource {
	if len(s.Datasources) == 0 {
		return nil
	}
	return s.Datasources[0]
}

// PoliciesFor returns the policies protecting the named model, in
// declaration order.
func (s *Schema) PoliciesFor(model string) []*Policy {
	var ps []*Policy
	for _, p := range s.Policies {
		if p.Table == model {
			ps = append(ps, p)
		}
	}
	return ps
}
