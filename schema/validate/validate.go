// Package validate enforces the invariants of a parsed schema.
//
// Validation collects every violation before returning, so the user sees
// all problems at once. The only mutation it performs is resolving field
// types the parser left as named references into enum, model or composite
// references.
package validate

import (
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema"
)

// Option configures validation.
type Option func(*config)

type config struct {
	requireDatasource bool
	providers         map[string]bool
}

// RequireDatasource reports an error when the schema declares no
// datasource block.
func RequireDatasource() Option {
	return func(c *config) {
		c.requireDatasource = true
	}
}

// WithProviders restricts the accepted datasource providers.
func WithProviders(providers ...string) Option {
	return func(c *config) {
		c.providers = make(map[string]bool, len(providers))
		for _, p := range providers {
			c.providers[p] = true
		}
	}
}

// DefaultProviders are the datasource providers accepted by default.
var DefaultProviders = []string{"postgresql", "postgres", "mysql", "sqlite", "sqlserver", "mssql", "mongodb"}

// Schema validates s and returns prax.ValidationErrors listing every
// violation, or nil.
func Schema(s *schema.Schema, opts ...Option) error {
	cfg := &config{}
	WithProviders(DefaultProviders...)(cfg)
	for _, opt := range opts {
		opt(cfg)
	}
	v := &validator{s: s, cfg: cfg}
	v.namespaces()
	for _, m := range s.Models {
		v.model(m)
	}
	for _, e := range s.Enums {
		v.enum(e)
	}
	for _, t := range s.Types {
		v.composite(t)
	}
	for _, vw := range s.Views {
		v.view(vw)
	}
	for _, p := range s.Policies {
		v.policy(p)
	}
	for _, g := range s.ServerGroups {
		v.serverGroup(g)
	}
	v.datasources()
	for _, g := range s.Generators {
		if g.Provider() == "" {
			v.errorf(g.Name, "", "generator requires a provider")
		}
	}
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}

type validator struct {
	s    *schema.Schema
	cfg  *config
	errs prax.ValidationErrors
}

func (v *validator) errorf(entity, field, format string, args ...any) {
	v.errs = append(v.errs, prax.NewValidationError(entity, field, format, args...))
}

// namespaces checks name uniqueness within each namespace, and across the
// namespaces a field type can refer to.
func (v *validator) namespaces() {
	type named struct{ ns, name string }
	var items []named
	for _, m := range v.s.Models {
		items = append(items, named{schema.NamespaceModel, m.Name})
	}
	for _, e := range v.s.Enums {
		items = append(items, named{schema.NamespaceEnum, e.Name})
	}
	for _, t := range v.s.Types {
		items = append(items, named{schema.NamespaceType, t.Name})
	}
	for _, vw := range v.s.Views {
		items = append(items, named{schema.NamespaceView, vw.Name})
	}
	for _, p := range v.s.Policies {
		items = append(items, named{schema.NamespacePolicy, p.Name})
	}
	for _, g := range v.s.ServerGroups {
		items = append(items, named{schema.NamespaceServerGroup, g.Name})
	}
	for _, g := range v.s.Generators {
		items = append(items, named{schema.NamespaceGenerator, g.Name})
	}
	for _, r := range v.s.RawSQL {
		items = append(items, named{schema.NamespaceRawSQL, r.Name})
	}
	seen := make(map[named]bool)
	types := make(map[string]string)
	for _, it := range items {
		if seen[it] {
			v.errorf(it.name, "", "duplicate %s name %q", it.ns, it.name)
			continue
		}
		seen[it] = true
		switch it.ns {
		case schema.NamespaceModel, schema.NamespaceEnum, schema.NamespaceType, schema.NamespaceView:
			if prev, ok := types[it.name]; ok {
				v.errorf(it.name, "", "%s %q conflicts with %s of the same name", it.ns, it.name, prev)
				continue
			}
			types[it.name] = it.ns
		}
	}
}

// resolve rewrites a named field type to the kind of entity it names.
func (v *validator) resolve(owner string, f *schema.Field) {
	if f.Type.Kind != schema.KindNamed {
		return
	}
	name := f.Type.Name
	switch {
	case v.s.Model(name) != nil:
		f.Type = schema.ModelOf(name)
	case v.s.Enum(name) != nil:
		f.Type = schema.EnumOf(name)
	case v.s.Type(name) != nil:
		f.Type = schema.CompositeOf(name)
	default:
		v.errorf(owner, f.Name, "unknown type %q", name)
	}
}

func (v *validator) fields(owner string, fields []*schema.Field) {
	seen := make(map[string]bool)
	columns := make(map[string]string)
	for _, f := range fields {
		if seen[f.Name] {
			v.errorf(owner, f.Name, "duplicate field %q", f.Name)
			continue
		}
		seen[f.Name] = true
		v.resolve(owner, f)
		if f.IsColumn() {
			col := f.ColumnName()
			if prev, ok := columns[col]; ok {
				v.errorf(owner, f.Name, "column %q is already used by field %q", col, prev)
			} else {
				columns[col] = f.Name
			}
		}
		for _, a := range f.Attributes {
			if a.Model {
				v.errorf(owner, f.Name, "block attribute %s used on a field", attrLabel(a))
				continue
			}
			if err := checkAttribute(a, fieldAttrs); err != nil {
				v.errorf(owner, f.Name, "%v", err)
			}
		}
		v.fieldAttributes(owner, f)
	}
}

// fieldAttributes checks attribute legality against the field type.
func (v *validator) fieldAttributes(owner string, f *schema.Field) {
	if f.HasAttribute("auto") && !f.Type.IsScalar(schema.Int) && !f.Type.IsScalar(schema.BigInt) {
		v.errorf(owner, f.Name, "@auto requires an Int or BigInt field, got %s", f.Type)
	}
	if f.IsUpdatedAt() && !f.Type.IsScalar(schema.DateTime) {
		v.errorf(owner, f.Name, "@updated_at requires a DateTime field, got %s", f.Type)
	}
	if f.IsRelation() && (f.IsID() || f.HasAttribute("default") || f.HasAttribute("unique")) {
		v.errorf(owner, f.Name, "relation fields cannot carry @id, @unique or @default")
	}
	if f.HasAttribute("relation") && !f.IsRelation() {
		v.errorf(owner, f.Name, "@relation requires a model-typed field, got %s", f.Type)
	}
	def, ok := f.Default()
	if !ok {
		return
	}
	switch {
	case f.Type.IsScalar(schema.Uuid) && def.Kind == schema.ValueString:
		if _, err := uuid.Parse(def.Str); err != nil {
			v.errorf(owner, f.Name, "@default(%q) is not a valid UUID", def.Str)
		}
	case f.Type.Kind == schema.KindEnum:
		e := v.s.Enum(f.Type.Name)
		if def.Kind != schema.ValueIdent || (e != nil && e.Value(def.Str) == nil) {
			v.errorf(owner, f.Name, "@default(%s) is not a variant of enum %s", def, f.Type.Name)
		}
	case f.Type.IsScalar(schema.Boolean) && def.Kind != schema.ValueBool:
		v.errorf(owner, f.Name, "@default(%s) must be a boolean", def)
	case (f.Type.IsScalar(schema.Int) || f.Type.IsScalar(schema.BigInt)) &&
		def.Kind != schema.ValueInt && def.Kind != schema.ValueFunc:
		v.errorf(owner, f.Name, "@default(%s) must be an integer or a function", def)
	}
}

func (v *validator) model(m *schema.Model) {
	v.fields(m.Name, m.Fields)
	for _, a := range m.Attributes {
		if err := checkAttribute(a, modelAttrs); err != nil {
			v.errorf(m.Name, "", "%v", err)
		}
	}
	v.primaryKey(m)
	for _, ix := range m.Indexes() {
		for _, name := range ix.Fields {
			if f := m.Field(name); f == nil {
				v.errorf(m.Name, "", "index references unknown field %q", name)
			} else if !f.IsColumn() {
				v.errorf(m.Name, "", "index references relation field %q", name)
			}
		}
	}
	for _, f := range m.Fields {
		if f.IsRelation() {
			v.relation(m, f)
		}
	}
}

func (v *validator) primaryKey(m *schema.Model) {
	var ids []string
	for _, f := range m.Fields {
		if f.IsID() {
			ids = append(ids, f.Name)
		}
	}
	compound := m.Attribute("id")
	switch {
	case len(ids) > 1:
		v.errorf(m.Name, "", "multiple @id fields (%s); use @@id for a compound key", strings.Join(ids, ", "))
	case len(ids) == 1 && compound != nil:
		v.errorf(m.Name, "", "model declares both @id and @@id")
	case len(ids) == 0 && compound == nil && !m.IsIgnored():
		v.errorf(m.Name, "", "model has no primary key; mark a field with @id or add @@id")
	}
	for _, name := range m.PrimaryKey() {
		f := m.Field(name)
		switch {
		case f == nil:
			v.errorf(m.Name, "", "primary key references unknown field %q", name)
		case !f.IsColumn():
			v.errorf(m.Name, name, "relation field cannot be part of the primary key")
		case f.IsOptional() || f.IsList():
			v.errorf(m.Name, name, "primary key field must be required and singular")
		}
	}
}

// relation checks an @relation: the local fields exist on the model, the
// references exist on the target, and both lists have the same length.
func (v *validator) relation(m *schema.Model, f *schema.Field) {
	target := v.s.Model(f.Type.Name)
	rel, ok := f.Relation()
	if !ok || target == nil {
		return
	}
	if a := f.Attribute("relation"); a != nil {
		for _, key := range []string{"onDelete", "onUpdate"} {
			if val, ok := a.Named(key); ok {
				if _, ok := schema.ParseReferentialAction(val.Str); !ok {
					v.errorf(m.Name, f.Name, "unknown referential action %q for %s", val.Str, key)
				}
			}
		}
	}
	if len(rel.Fields) != len(rel.References) {
		v.errorf(m.Name, f.Name, "@relation fields (%d) and references (%d) must have the same length", len(rel.Fields), len(rel.References))
	}
	optional := false
	for _, name := range rel.Fields {
		local := m.Field(name)
		switch {
		case local == nil:
			v.errorf(m.Name, f.Name, "@relation field %q is not declared on %s", name, m.Name)
		case !local.IsColumn():
			v.errorf(m.Name, f.Name, "@relation field %q must be a scalar column", name)
		default:
			optional = optional || local.IsOptional()
		}
	}
	for _, name := range rel.References {
		ref := target.Field(name)
		if ref == nil || !ref.IsColumn() {
			v.errorf(m.Name, f.Name, "@relation reference %q is not a column of %s", name, target.Name)
		}
	}
	if rel.OnDelete != nil && *rel.OnDelete == schema.SetNull && len(rel.Fields) > 0 && !optional {
		v.errorf(m.Name, f.Name, "onDelete: SetNull requires optional relation fields")
	}
}

func (v *validator) enum(e *schema.Enum) {
	if len(e.Values) == 0 {
		v.errorf(e.Name, "", "enum must declare at least one value")
	}
	for _, a := range e.Attributes {
		if err := checkAttribute(a, enumAttrs); err != nil {
			v.errorf(e.Name, "", "%v", err)
		}
	}
	seen := make(map[string]bool)
	dbSeen := make(map[string]bool)
	for _, val := range e.Values {
		if seen[val.Name] {
			v.errorf(e.Name, val.Name, "duplicate enum value %q", val.Name)
			continue
		}
		seen[val.Name] = true
		if db := val.DBName(); dbSeen[db] {
			v.errorf(e.Name, val.Name, "duplicate database value %q", db)
		} else {
			dbSeen[db] = true
		}
		for _, a := range val.Attributes {
			if err := checkAttribute(a, enumValueAttrs); err != nil {
				v.errorf(e.Name, val.Name, "%v", err)
			}
		}
	}
}

func (v *validator) composite(t *schema.CompositeType) {
	v.fields(t.Name, t.Fields)
	for _, f := range t.Fields {
		if f.Type.Kind == schema.KindModel {
			v.errorf(t.Name, f.Name, "composite types cannot reference model %q", f.Type.Name)
		}
	}
}

func (v *validator) view(vw *schema.View) {
	v.fields(vw.Name, vw.Fields)
	for _, a := range vw.Attributes {
		if err := checkAttribute(a, viewAttrs); err != nil {
			v.errorf(vw.Name, "", "%v", err)
		}
	}
}

// policy checks the target and the command/expression compatibility:
// SELECT and DELETE filter existing rows (USING only), INSERT checks new
// rows (WITH CHECK only), UPDATE and ALL accept both.
func (v *validator) policy(p *schema.Policy) {
	if v.s.Model(p.Table) == nil && v.s.ModelByTable(p.Table) == nil {
		v.errorf(p.Name, "", "policy targets unknown model %q", p.Table)
	}
	if len(p.Commands) == 0 {
		v.errorf(p.Name, "", "policy must list at least one command")
	}
	seen := make(map[schema.PolicyCommand]bool)
	for _, c := range p.Commands {
		if seen[c] {
			v.errorf(p.Name, "", "command %s is listed twice", c)
			continue
		}
		seen[c] = true
		switch c {
		case schema.CommandSelect, schema.CommandDelete:
			if p.Using == "" {
				v.errorf(p.Name, "", "%s policies require a using expression", c)
			}
			if p.Check != "" {
				v.errorf(p.Name, "", "%s policies cannot have a check expression", c)
			}
		case schema.CommandInsert:
			if p.Check == "" {
				v.errorf(p.Name, "", "INSERT policies require a check expression")
			}
			if p.Using != "" {
				v.errorf(p.Name, "", "INSERT policies cannot have a using expression")
			}
		case schema.CommandUpdate, schema.CommandAll:
			if p.Using == "" && p.Check == "" {
				v.errorf(p.Name, "", "%s policies require a using or check expression", c)
			}
		}
	}
	if seen[schema.CommandAll] && len(p.Commands) > 1 {
		v.errorf(p.Name, "", "ALL cannot be combined with other commands")
	}
	roles := make(map[string]bool)
	for _, r := range p.Roles {
		if roles[r] {
			v.errorf(p.Name, "", "role %q is listed twice", r)
		}
		roles[r] = true
	}
	ops := make(map[schema.BlockOperation]bool)
	for _, op := range p.MSSQLBlockOps {
		if ops[op] {
			v.errorf(p.Name, "", "block operation %s is listed twice", op)
		}
		ops[op] = true
	}
}

var knownRoles = map[string]bool{"primary": true, "replica": true, "analytics": true, "archive": true}

func (v *validator) serverGroup(g *schema.ServerGroup) {
	for _, a := range g.Attributes {
		if err := checkAttribute(a, groupAttrs); err != nil {
			v.errorf(g.Name, "", "%v", err)
		}
	}
	if len(g.Servers) == 0 {
		v.errorf(g.Name, "", "server group must declare at least one server")
	}
	seen := make(map[string]bool)
	primaries := 0
	for _, srv := range g.Servers {
		if seen[srv.Name] {
			v.errorf(g.Name, srv.Name, "duplicate server %q", srv.Name)
			continue
		}
		seen[srv.Name] = true
		if u := srv.URL(); u.Kind != schema.ValueString {
			if _, ok := u.EnvVar(); !ok {
				v.errorf(g.Name, srv.Name, "server url must be a string or env(\"NAME\")")
			}
		}
		role := srv.Role()
		if role != "" && !knownRoles[role] {
			v.errorf(g.Name, srv.Name, "unknown server role %q", role)
		}
		if role == "primary" {
			primaries++
		}
		if srv.Weight() <= 0 {
			v.errorf(g.Name, srv.Name, "server weight must be positive")
		}
	}
	if primaries > 1 {
		v.errorf(g.Name, "", "server group declares %d primaries", primaries)
	}
}

func (v *validator) datasources() {
	ds := v.s.Datasources
	if len(ds) == 0 && v.cfg.requireDatasource {
		v.errorf("datasource", "", "schema declares no datasource")
	}
	if len(ds) > 1 {
		names := make([]string, len(ds))
		for i, d := range ds {
			names[i] = d.Name
		}
		v.errorf("datasource", "", "at most one datasource is allowed, found %d (%s)", len(ds), strings.Join(names, ", "))
	}
	for _, d := range ds {
		provider := d.Provider()
		switch {
		case provider == "":
			v.errorf(d.Name, "provider", "datasource requires a provider")
		case !v.cfg.providers[provider]:
			v.errorf(d.Name, "provider", "unknown provider %q", provider)
		}
		u := d.URL()
		if _, ok := u.EnvVar(); !ok && u.Kind != schema.ValueString {
			v.errorf(d.Name, "url", "datasource url must be a string or env(\"NAME\"), got %s", u.Kind)
		}
	}
}
