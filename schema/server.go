package schema

// ServerGroup describes a primary/replica topology.
type ServerGroup struct {
	Name       string
	Servers    []*Server
	Attributes []*Attribute
	Doc        string
	Span       Span
}

// Strategy returns the @@strategy identifier, if any.
func (g *ServerGroup) Strategy() string {
	a := attributes(g.Attributes).find("strategy")
	if a == nil {
		return ""
	}
	v, ok := a.Positional(0)
	if !ok {
		return ""
	}
	return v.Str
}

// Server returns the server with the given name.
func (g *ServerGroup) Server(name string) *Server {
	for _, s := range g.Servers {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Server is one member of a server group.
type Server struct {
	Name       string
	Properties []*Property
	Span       Span
}

// Property returns the value of a server property.
func (s *Server) Property(name string) (Value, bool) {
	return properties(s.Properties).find(name)
}

// URL returns the url property: a string literal or an env("X") call.
func (s *Server) URL() Value {
	v, _ := s.Property("url")
	return v
}

// Role returns the server role ("primary", "replica", ...).
func (s *Server) Role() string { return properties(s.Properties).str("role") }

// Region returns the server region.
func (s *Server) Region() string { return properties(s.Properties).str("region") }

// HealthCheck returns the health-check URL.
func (s *Server) HealthCheck() string { return properties(s.Properties).str("healthCheck") }

// Weight returns the load-balancing weight, 1 when unset.
func (s *Server) Weight() int64 { return s.intProperty("weight", 1) }

// Priority returns the fail-over priority, 0 when unset.
func (s *Server) Priority() int64 { return s.intProperty("priority", 0) }

// MaxConnections returns the connection cap, 0 when unset.
func (s *Server) MaxConnections() int64 { return s.intProperty("maxConnections", 0) }

// ReadOnly reports whether the server only accepts reads. Replicas are
// read-only unless stated otherwise.
func (s *Server) ReadOnly() bool {
	if v, ok := s.Property("readOnly"); ok && v.Kind == ValueBool {
		return v.Bool
	}
	return s.Role() == "replica"
}

func (s *Server) intProperty(name string, def int64) int64 {
	if v, ok := s.Property(name); ok && v.Kind == ValueInt {
		return v.Int
	}
	return def
}

// Datasource is the database connection declaration.
type Datasource struct {
	Name       string
	Properties []*Property
	Doc        string
	Span       Span
}

// Property returns the value of a datasource property.
func (d *Datasource) Property(name string) (Value, bool) {
	return properties(d.Properties).find(name)
}

// Provider returns the provider name ("postgresql", "mysql", ...).
func (d *Datasource) Provider() string { return properties(d.Properties).str("provider") }

// URL returns the url property: a string literal or an env("X") call.
func (d *Datasource) URL() Value {
	v, _ := d.Property("url")
	return v
}

// Generator is a code-generator plugin declaration.
type Generator struct {
	Name       string
	Properties []*Property
	Doc        string
	Span       Span
}

// Property returns the value of a generator property.
func (g *Generator) Property(name string) (Value, bool) {
	return properties(g.Properties).find(name)
}

// Provider returns the plugin name.
func (g *Generator) Provider() string { return properties(g.Properties).str("provider") }

// Output returns the output directory.
func (g *Generator) Output() string { return properties(g.Properties).str("output") }

// RawSQL is a named SQL escape hatch emitted verbatim.
type RawSQL struct {
	Name string
	SQL  string
	Doc  string
	Span Span
}
