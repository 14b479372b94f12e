package validate

import (
	"fmt"
	"strings"

	"github.com/syssam/prax/schema"
)

// kinds is a bit set of accepted value kinds.
type kinds uint16

func kindsOf(ks ...schema.ValueKind) kinds {
	var m kinds
	for _, k := range ks {
		m |= 1 << k
	}
	return m
}

func (m kinds) has(k schema.ValueKind) bool { return m&(1<<k) != 0 }

func (m kinds) String() string {
	var names []string
	for k := schema.ValueString; k <= schema.ValueArray; k++ {
		if m.has(k) {
			names = append(names, k.String())
		}
	}
	return strings.Join(names, " or ")
}

var (
	kString  = kindsOf(schema.ValueString)
	kIdent   = kindsOf(schema.ValueIdent)
	kInt     = kindsOf(schema.ValueInt)
	kRefs    = kindsOf(schema.ValueIdent, schema.ValueFieldRefs)
	kLiteral = kindsOf(schema.ValueString, schema.ValueInt, schema.ValueFloat, schema.ValueBool,
		schema.ValueIdent, schema.ValueFunc, schema.ValueArray)
)

// attrSpec is the arity and kind schedule of one attribute.
type attrSpec struct {
	// positional lists the accepted kinds of each positional argument.
	positional []kinds
	// required is the number of positional arguments that must be given.
	required int
	named    map[string]kinds
}

var fieldAttrs = map[string]attrSpec{
	"id":         {},
	"auto":       {},
	"ignore":     {},
	"updated_at": {},
	"updatedAt":  {},
	"unique":     {named: map[string]kinds{"name": kString, "map": kString}},
	"index":      {named: map[string]kinds{"name": kString, "map": kString, "type": kIdent}},
	"map":        {positional: []kinds{kString}, required: 1},
	"default":    {positional: []kinds{kLiteral}, required: 1},
	"relation": {
		positional: []kinds{kString},
		named: map[string]kinds{
			"name":       kString,
			"fields":     kRefs,
			"references": kRefs,
			"onDelete":   kIdent,
			"onUpdate":   kIdent,
		},
	},
}

var modelAttrs = map[string]attrSpec{
	"map":    {positional: []kinds{kString}, required: 1},
	"schema": {positional: []kinds{kString}, required: 1},
	"ignore": {},
	"id":     {positional: []kinds{kRefs}, required: 1, named: map[string]kinds{"fields": kRefs, "name": kString, "map": kString}},
	"unique": {positional: []kinds{kRefs}, required: 1, named: map[string]kinds{"fields": kRefs, "name": kString, "map": kString}},
	"index":  {positional: []kinds{kRefs}, required: 1, named: map[string]kinds{"fields": kRefs, "name": kString, "map": kString, "type": kIdent}},
	"sequence": {
		positional: []kinds{kString},
		required:   1,
		named:      map[string]kinds{"start": kInt, "increment": kInt, "cache": kInt},
	},
}

var viewAttrs = map[string]attrSpec{
	"map":    {positional: []kinds{kString}, required: 1},
	"schema": {positional: []kinds{kString}, required: 1},
	"sql":    {positional: []kinds{kString}, required: 1},
	"ignore": {},
}

var enumAttrs = map[string]attrSpec{
	"map":    {positional: []kinds{kString}, required: 1},
	"schema": {positional: []kinds{kString}, required: 1},
}

var enumValueAttrs = map[string]attrSpec{
	"map": {positional: []kinds{kString}, required: 1},
}

var groupAttrs = map[string]attrSpec{
	"strategy": {positional: []kinds{kIdent}, required: 1},
}

// checkAttribute validates a against the schedule table. Native type
// attributes (@db.*) take arbitrary arguments.
func checkAttribute(a *schema.Attribute, table map[string]attrSpec) error {
	if strings.HasPrefix(a.Name, "db.") && !a.Model {
		return nil
	}
	spec, ok := table[a.Name]
	if !ok {
		return fmt.Errorf("unknown attribute %s", attrLabel(a))
	}
	seen := make(map[string]bool)
	n := 0
	for _, arg := range a.Args {
		if arg.Name == "" {
			if n >= len(spec.positional) {
				return fmt.Errorf("%s takes at most %d positional argument(s)", attrLabel(a), len(spec.positional))
			}
			if !spec.positional[n].has(arg.Value.Kind) {
				return fmt.Errorf("%s argument %d must be a %s, got %s", attrLabel(a), n+1, spec.positional[n], arg.Value.Kind)
			}
			n++
			continue
		}
		want, ok := spec.named[arg.Name]
		if !ok {
			return fmt.Errorf("%s has no argument named %q", attrLabel(a), arg.Name)
		}
		if seen[arg.Name] {
			return fmt.Errorf("%s argument %q is given twice", attrLabel(a), arg.Name)
		}
		seen[arg.Name] = true
		if !want.has(arg.Value.Kind) {
			return fmt.Errorf("%s argument %q must be a %s, got %s", attrLabel(a), arg.Name, want, arg.Value.Kind)
		}
	}
	if n < spec.required {
		// @@id and friends accept the field list as a named argument too.
		if _, ok := a.Named("fields"); !ok || spec.named["fields"] == 0 {
			return fmt.Errorf("%s requires %d argument(s)", attrLabel(a), spec.required)
		}
	}
	return nil
}

func attrLabel(a *schema.Attribute) string {
	if a.Model {
		return "@@" + a.Name
	}
	return "@" + a.Name
}
