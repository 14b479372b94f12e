package sql

import "time"

// Ordered is the set of Go types that compare with <, <=, > and >=.
type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string
}

// Column is a typed column reference that builds filters. Generated code
// declares one per model field, so predicates are checked at compile time:
//
//	var Email = sql.Column[string]("email")
//	f := sql.And(Email.EQ("a@b.c"), Age.GT(18))
type Column[T any] string

// Name returns the column name.
func (c Column[T]) Name() string { return string(c) }

// EQ returns a filter that checks if the column equals v.
func (c Column[T]) EQ(v T) Filter { return Equals(string(c), v) }

// NEQ returns a filter that checks if the column does not equal v.
func (c Column[T]) NEQ(v T) Filter { return NotEquals(string(c), v) }

// In returns a filter that checks if the column value is in vs.
func (c Column[T]) In(vs ...T) Filter { return In(string(c), listOf(vs)) }

// NotIn returns a filter that checks if the column value is not in vs.
func (c Column[T]) NotIn(vs ...T) Filter { return NotIn(string(c), listOf(vs)) }

// IsNull returns a filter that checks if the column is NULL.
func (c Column[T]) IsNull() Filter { return IsNull(string(c)) }

// NotNull returns a filter that checks if the column is not NULL.
func (c Column[T]) NotNull() Filter { return IsNotNull(string(c)) }

// OrderedColumn is a Column whose values are ordered.
type OrderedColumn[T Ordered] struct{ Column[T] }

// OrderedOf returns an OrderedColumn for name.
func OrderedOf[T Ordered](name string) OrderedColumn[T] {
	return OrderedColumn[T]{Column[T](name)}
}

// GT returns a filter that checks if the column is greater than v.
func (c OrderedColumn[T]) GT(v T) Filter { return Gt(c.Name(), v) }

// GTE returns a filter that checks if the column is greater than or equal to v.
func (c OrderedColumn[T]) GTE(v T) Filter { return Gte(c.Name(), v) }

// LT returns a filter that checks if the column is less than v.
func (c OrderedColumn[T]) LT(v T) Filter { return Lt(c.Name(), v) }

// LTE returns a filter that checks if the column is less than or equal to v.
func (c OrderedColumn[T]) LTE(v T) Filter { return Lte(c.Name(), v) }

// StringColumn is a text column with pattern predicates.
type StringColumn struct{ OrderedColumn[string] }

// StringOf returns a StringColumn for name.
func StringOf(name string) StringColumn { return StringColumn{OrderedOf[string](name)} }

// Contains returns a filter that checks if the column contains s.
func (c StringColumn) Contains(s string) Filter { return Contains(c.Name(), s) }

// HasPrefix returns a filter that checks if the column starts with s.
func (c StringColumn) HasPrefix(s string) Filter { return StartsWith(c.Name(), s) }

// HasSuffix returns a filter that checks if the column ends with s.
func (c StringColumn) HasSuffix(s string) Filter { return EndsWith(c.Name(), s) }

// TimeColumn is a timestamp column. Times are bound as RFC 3339 strings.
type TimeColumn struct{ Column[time.Time] }

// TimeOf returns a TimeColumn for name.
func TimeOf(name string) TimeColumn { return TimeColumn{Column[time.Time](name)} }

// Before returns a filter that checks if the column is earlier than t.
func (c TimeColumn) Before(t time.Time) Filter { return Lt(c.Name(), t) }

// After returns a filter that checks if the column is later than t.
func (c TimeColumn) After(t time.Time) Filter { return Gt(c.Name(), t) }
