package sql

import (
	"strings"

	"github.com/syssam/prax/dialect"
)

// Op is the variant tag of a Filter.
type Op uint8

// Filter variants.
const (
	OpNone Op = iota
	OpEquals
	OpNotEquals
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpIsNull
	OpIsNotNull
	OpAnd
	OpOr
	OpNot
)

var opNames = [...]string{
	OpNone:       "None",
	OpEquals:     "Equals",
	OpNotEquals:  "NotEquals",
	OpLt:         "Lt",
	OpLte:        "Lte",
	OpGt:         "Gt",
	OpGte:        "Gte",
	OpIn:         "In",
	OpNotIn:      "NotIn",
	OpContains:   "Contains",
	OpStartsWith: "StartsWith",
	OpEndsWith:   "EndsWith",
	OpIsNull:     "IsNull",
	OpIsNotNull:  "IsNotNull",
	OpAnd:        "And",
	OpOr:         "Or",
	OpNot:        "Not",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "Op(?)"
}

// Filter is a WHERE-clause predicate tree. The zero Filter is None, the
// identity of And and Or. Filters are immutable: every combinator returns
// a new value and never modifies its operands.
type Filter struct {
	op       Op
	field    string
	value    Value
	children []Filter
}

// None returns the empty filter.
func None() Filter { return Filter{} }

func cmp(op Op, field string, v any) Filter {
	return Filter{op: op, field: field, value: ValueOf(v)}
}

// Equals matches field = v. A nil or Null value matches IS NULL.
func Equals(field string, v any) Filter { return cmp(OpEquals, field, v) }

// NotEquals matches field <> v. A nil or Null value matches IS NOT NULL.
func NotEquals(field string, v any) Filter { return cmp(OpNotEquals, field, v) }

// Lt matches field < v.
func Lt(field string, v any) Filter { return cmp(OpLt, field, v) }

// Lte matches field <= v.
func Lte(field string, v any) Filter { return cmp(OpLte, field, v) }

// Gt matches field > v.
func Gt(field string, v any) Filter { return cmp(OpGt, field, v) }

// Gte matches field >= v.
func Gte(field string, v any) Filter { return cmp(OpGte, field, v) }

// In matches field IN (vs...). A single list argument is expanded.
func In(field string, vs ...any) Filter { return Filter{op: OpIn, field: field, value: list(vs)} }

// NotIn matches field NOT IN (vs...). A single list argument is expanded.
func NotIn(field string, vs ...any) Filter {
	return Filter{op: OpNotIn, field: field, value: list(vs)}
}

func list(vs []any) ListValue {
	if len(vs) == 1 {
		if l, ok := ValueOf(vs[0]).(ListValue); ok {
			return append(ListValue(nil), l...)
		}
	}
	return listOf(vs)
}

// Contains matches field LIKE '%s%'.
func Contains(field, s string) Filter { return cmp(OpContains, field, s) }

// StartsWith matches field LIKE 's%'.
func StartsWith(field, s string) Filter { return cmp(OpStartsWith, field, s) }

// EndsWith matches field LIKE '%s'.
func EndsWith(field, s string) Filter { return cmp(OpEndsWith, field, s) }

// IsNull matches field IS NULL.
func IsNull(field string) Filter { return Filter{op: OpIsNull, field: field} }

// IsNotNull matches field IS NOT NULL.
func IsNotNull(field string) Filter { return Filter{op: OpIsNotNull, field: field} }

// And returns the conjunction of fs. None operands are dropped; a single
// remaining operand is returned as is. And() with no operands is TRUE.
func And(fs ...Filter) Filter { return group(OpAnd, fs) }

// Or returns the disjunction of fs. None operands are dropped; a single
// remaining operand is returned as is. Or() with no operands is FALSE.
func Or(fs ...Filter) Filter { return group(OpOr, fs) }

func group(op Op, fs []Filter) Filter {
	if len(fs) == 0 {
		return Filter{op: op}
	}
	children := make([]Filter, 0, len(fs))
	for _, f := range fs {
		if !f.IsNone() {
			children = append(children, f)
		}
	}
	switch len(children) {
	case 0:
		return None()
	case 1:
		return children[0]
	}
	return Filter{op: op, children: children}
}

// Not negates f. Not(None) is None.
func Not(f Filter) Filter {
	if f.IsNone() {
		return f
	}
	return Filter{op: OpNot, children: []Filter{f}}
}

// AndThen returns f AND other. When f is already a conjunction the
// operand list is extended instead of nested.
func (f Filter) AndThen(other Filter) Filter { return f.extend(OpAnd, other) }

// OrElse returns f OR other, extending f when it is already a
// disjunction.
func (f Filter) OrElse(other Filter) Filter { return f.extend(OpOr, other) }

func (f Filter) extend(op Op, other Filter) Filter {
	switch {
	case other.IsNone():
		return f
	case f.IsNone():
		return other
	case f.op == op && len(f.children) > 0:
		children := make([]Filter, 0, len(f.children)+len(other.children)+1)
		children = append(children, f.children...)
		if other.op == op && len(other.children) > 0 {
			children = append(children, other.children...)
		} else {
			children = append(children, other)
		}
		return Filter{op: op, children: children}
	}
	return group(op, []Filter{f, other})
}

// IsNone reports whether f is the empty filter.
func (f Filter) IsNone() bool { return f.op == OpNone }

// Op returns the variant tag.
func (f Filter) Op() Op { return f.op }

// Field returns the column a leaf filter applies to.
func (f Filter) Field() string { return f.field }

// Value returns the operand of a comparison, or the list of an IN filter.
func (f Filter) Value() Value { return f.value }

// Children returns the operands of And, Or and Not.
func (f Filter) Children() []Filter { return append([]Filter(nil), f.children...) }

// ToSQL emits f in PostgreSQL syntax. Placeholders are numbered from
// offset+1 in left-to-right order.
func (f Filter) ToSQL(offset int) (string, []Value) {
	return f.Emit(dialect.PostgreSQL, offset)
}

// Emit renders f for the dialect. Values are never interpolated: each one
// is bound to a placeholder numbered from offset+1.
func (f Filter) Emit(d dialect.DatabaseType, offset int) (string, []Value) {
	e := &emitter{d: d, n: offset}
	e.filter(f)
	return e.b.String(), e.params
}

type emitter struct {
	d      dialect.DatabaseType
	b      strings.Builder
	n      int
	params []Value
}

func (e *emitter) bind(v Value) {
	e.n++
	e.params = append(e.params, v)
	e.b.WriteString(e.d.Placeholder(e.n))
}

var cmpOps = map[Op]string{
	OpEquals:    " = ",
	OpNotEquals: " <> ",
	OpLt:        " < ",
	OpLte:       " <= ",
	OpGt:        " > ",
	OpGte:       " >= ",
}

func (e *emitter) filter(f Filter) {
	switch f.op {
	case OpNone:
		e.b.WriteString(e.d.True())
	case OpEquals, OpNotEquals, OpLt, OpLte, OpGt, OpGte:
		e.b.WriteString(e.d.QuoteColumn(f.field))
		if _, null := f.value.(NullValue); null && (f.op == OpEquals || f.op == OpNotEquals) {
			if f.op == OpEquals {
				e.b.WriteString(" IS NULL")
			} else {
				e.b.WriteString(" IS NOT NULL")
			}
			return
		}
		e.b.WriteString(cmpOps[f.op])
		e.bind(f.value)
	case OpIn, OpNotIn:
		items, _ := f.value.(ListValue)
		if len(items) == 0 {
			if f.op == OpIn {
				e.b.WriteString(e.d.False())
			} else {
				e.b.WriteString(e.d.True())
			}
			return
		}
		e.b.WriteString(e.d.QuoteColumn(f.field))
		if f.op == OpIn {
			e.b.WriteString(" IN (")
		} else {
			e.b.WriteString(" NOT IN (")
		}
		for i, v := range items {
			if i > 0 {
				e.b.WriteString(", ")
			}
			e.bind(v)
		}
		e.b.WriteByte(')')
	case OpContains, OpStartsWith, OpEndsWith:
		e.b.WriteString(e.d.QuoteColumn(f.field))
		e.b.WriteString(" LIKE ")
		e.bind(StringValue(likePattern(f.op, f.value)))
	case OpIsNull:
		e.b.WriteString(e.d.QuoteColumn(f.field))
		e.b.WriteString(" IS NULL")
	case OpIsNotNull:
		e.b.WriteString(e.d.QuoteColumn(f.field))
		e.b.WriteString(" IS NOT NULL")
	case OpAnd, OpOr:
		if len(f.children) == 0 {
			if f.op == OpAnd {
				e.b.WriteString(e.d.True())
			} else {
				e.b.WriteString(e.d.False())
			}
			return
		}
		sep := " AND "
		if f.op == OpOr {
			sep = " OR "
		}
		e.b.WriteByte('(')
		for i, c := range f.children {
			if i > 0 {
				e.b.WriteString(sep)
			}
			e.filter(c)
		}
		e.b.WriteByte(')')
	case OpNot:
		e.b.WriteString("NOT (")
		e.filter(f.children[0])
		e.b.WriteByte(')')
	}
}

func likePattern(op Op, v Value) string {
	s, ok := v.(StringValue)
	text := string(s)
	if !ok {
		text = v.String()
	}
	switch op {
	case OpStartsWith:
		return text + "%"
	case OpEndsWith:
		return "%" + text
	default:
		return "%" + text + "%"
	}
}
