package schema

import (
	"strconv"
	"strings"
)

// Span is a byte range [Start, End) in the source text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// ValueKind identifies the variant held by a Value.
type ValueKind uint8

// Value kinds.
const (
	ValueString ValueKind = iota + 1
	ValueInt
	ValueFloat
	ValueBool
	ValueIdent
	ValueFunc
	ValueFieldRefs
	ValueArray
)

var valueKindNames = [...]string{
	ValueString:    "string",
	ValueInt:       "integer",
	ValueFloat:     "float",
	ValueBool:      "boolean",
	ValueIdent:     "identifier",
	ValueFunc:      "function",
	ValueFieldRefs: "field list",
	ValueArray:     "array",
}

// String returns the kind name.
func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) && valueKindNames[k] != "" {
		return valueKindNames[k]
	}
	return "invalid"
}

// Value is an attribute or property argument.
//
// Str holds the payload of string, identifier and function values (the
// function name). Items holds function arguments, field references and
// array elements.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Items []Value
	Span  Span
}

// StringValue returns a string literal value.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// IntValue returns an integer literal value.
func IntValue(i int64) Value { return Value{Kind: ValueInt, Int: i} }

// FloatValue returns a float literal value.
func FloatValue(f float64) Value { return Value{Kind: ValueFloat, Float: f} }

// BoolValue returns a boolean literal value.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// IdentValue returns an identifier value.
func IdentValue(name string) Value { return Value{Kind: ValueIdent, Str: name} }

// FuncValue returns a function-call value such as now() or env("X").
func FuncValue(name string, args ...Value) Value {
	return Value{Kind: ValueFunc, Str: name, Items: args}
}

// FieldRefsValue returns a field-reference list such as [id, email].
func FieldRefsValue(names ...string) Value {
	items := make([]Value, len(names))
	for i, n := range names {
		items[i] = IdentValue(n)
	}
	return Value{Kind: ValueFieldRefs, Items: items}
}

// ArrayValue returns an array of values.
func ArrayValue(items ...Value) Value { return Value{Kind: ValueArray, Items: items} }

// FieldRefs returns the names of a field-reference list. A single
// identifier is treated as a list of one.
func (v Value) FieldRefs() []string {
	switch v.Kind {
	case ValueIdent:
		return []string{v.Str}
	case ValueFieldRefs:
		names := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			names = append(names, it.Str)
		}
		return names
	}
	return nil
}

// EnvVar reports the variable name if v is an env("NAME") call.
func (v Value) EnvVar() (string, bool) {
	if v.Kind != ValueFunc || v.Str != "env" || len(v.Items) != 1 || v.Items[0].Kind != ValueString {
		return "", false
	}
	return v.Items[0].Str, true
}

// IsFunc reports whether v is a call of the named function.
func (v Value) IsFunc(name string) bool {
	return v.Kind == ValueFunc && v.Str == name
}

// String renders the value in source syntax.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueIdent:
		return v.Str
	case ValueFunc:
		return v.Str + "(" + joinValues(v.Items) + ")"
	case ValueFieldRefs, ValueArray:
		return "[" + joinValues(v.Items) + "]"
	}
	return ""
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Arg is a positional (empty Name) or named attribute argument.
type Arg struct {
	Name  string
	Value Value
	Span  Span
}

// Attribute is a field (`@name`) or model (`@@name`) attribute.
type Attribute struct {
	Name  string
	Model bool
	Args  []Arg
	Span  Span
}

// Positional returns the i-th positional argument.
func (a *Attribute) Positional(i int) (Value, bool) {
	n := 0
	for _, arg := range a.Args {
		if arg.Name != "" {
			continue
		}
		if n == i {
			return arg.Value, true
		}
		n++
	}
	return Value{}, false
}

// Named returns the argument with the given name.
func (a *Attribute) Named(name string) (Value, bool) {
	for _, arg := range a.Args {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return Value{}, false
}

// PositionalCount returns the number of positional arguments.
func (a *Attribute) PositionalCount() int {
	n := 0
	for _, arg := range a.Args {
		if arg.Name == "" {
			n++
		}
	}
	return n
}

// String renders the attribute in source syntax.
func (a *Attribute) String() string {
	var b strings.Builder
	b.WriteString("@")
	if a.Model {
		b.WriteString("@")
	}
	b.WriteString(a.Name)
	if len(a.Args) > 0 {
		b.WriteString("(")
		for i, arg := range a.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			if arg.Name != "" {
				b.WriteString(arg.Name)
				b.WriteString(": ")
			}
			b.WriteString(arg.Value.String())
		}
		b.WriteString(")")
	}
	return b.String()
}

// attributes is the shared lookup helper embedded by attributed entities.
type attributes []*Attribute

func (as attributes) find(name string) *Attribute {
	for _, a := range as {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// stringArg returns the first positional string argument of the named
// attribute.
func (as attributes) stringArg(name string) (string, bool) {
	a := as.find(name)
	if a == nil {
		return "", false
	}
	v, ok := a.Positional(0)
	if !ok || v.Kind != ValueString {
		return "", false
	}
	return v.Str, true
}

// Property is a `key = value` entry of datasource, generator and server
// blocks.
type Property struct {
	Name  string
	Value Value
	Span  Span
}

type properties []*Property

func (ps properties) find(name string) (Value, bool) {
	for _, p := range ps {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

func (ps properties) str(name string) string {
	v, ok := ps.find(name)
	if !ok || v.Kind != ValueString {
		return ""
	}
	return v.Str
}
