package sql

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// Value is a bound filter value. It is one of NullValue, BoolValue,
// IntValue, FloatValue, StringValue, JSONValue or ListValue.
type Value interface {
	// Arg returns the value in the form expected by database/sql.
	Arg() any
	fmt.Stringer
	value()
}

type (
	// NullValue is SQL NULL.
	NullValue struct{}
	// BoolValue is a boolean.
	BoolValue bool
	// IntValue is a 64-bit integer.
	IntValue int64
	// FloatValue is a 64-bit float.
	FloatValue float64
	// StringValue is a text value.
	StringValue string
	// JSONValue is an encoded JSON document.
	JSONValue json.RawMessage
	// ListValue is a list of values, used by IN and NOT IN.
	ListValue []Value
)

// Null is the NULL value.
var Null Value = NullValue{}

func (NullValue) value()   {}
func (BoolValue) value()   {}
func (IntValue) value()    {}
func (FloatValue) value()  {}
func (StringValue) value() {}
func (JSONValue) value()   {}
func (ListValue) value()   {}

func (NullValue) Arg() any     { return nil }
func (v BoolValue) Arg() any   { return bool(v) }
func (v IntValue) Arg() any    { return int64(v) }
func (v FloatValue) Arg() any  { return float64(v) }
func (v StringValue) Arg() any { return string(v) }
func (v JSONValue) Arg() any   { return string(v) }

func (v ListValue) Arg() any {
	args := make([]any, len(v))
	for i, e := range v {
		args[i] = e.Arg()
	}
	return args
}

func (NullValue) String() string     { return "NULL" }
func (v BoolValue) String() string   { return strconv.FormatBool(bool(v)) }
func (v IntValue) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v FloatValue) String() string  { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v StringValue) String() string { return strconv.Quote(string(v)) }
func (v JSONValue) String() string   { return string(v) }

func (v ListValue) String() string {
	b := []byte{'['}
	for i, e := range v {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, e.String()...)
	}
	return string(append(b, ']'))
}

// ValueOf converts a Go value to a Value. Values pass through; slices
// become lists; time values are bound as RFC 3339 strings; unsigned values
// beyond int64 are bound as decimal text; any other type
// is converted by its underlying kind, falling back to its fmt
// representation.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return Null
	case Value:
		return v
	case bool:
		return BoolValue(v)
	case int:
		return IntValue(v)
	case int8:
		return IntValue(v)
	case int16:
		return IntValue(v)
	case int32:
		return IntValue(v)
	case int64:
		return IntValue(v)
	case uint:
		return uintValue(uint64(v))
	case uint8:
		return IntValue(v)
	case uint16:
		return IntValue(v)
	case uint32:
		return IntValue(v)
	case uint64:
		return uintValue(v)
	case float32:
		return FloatValue(v)
	case float64:
		return FloatValue(v)
	case string:
		return StringValue(v)
	case json.RawMessage:
		return JSONValue(v)
	case time.Time:
		return StringValue(v.Format(time.RFC3339Nano))
	case []any:
		return listOf(v)
	case []string:
		return listOf(v)
	case []int:
		return listOf(v)
	case []int64:
		return listOf(v)
	case []float64:
		return listOf(v)
	case []bool:
		return listOf(v)
	case fmt.Stringer:
		return StringValue(v.String())
	}
	return reflectValue(reflect.ValueOf(v))
}

// reflectValue converts named types by their underlying kind.
func reflectValue(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Bool:
		return BoolValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintValue(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float())
	case reflect.String:
		return StringValue(rv.String())
	case reflect.Slice, reflect.Array:
		l := make(ListValue, rv.Len())
		for i := range l {
			l[i] = ValueOf(rv.Index(i).Interface())
		}
		return l
	case reflect.Pointer:
		if rv.IsNil() {
			return Null
		}
		return ValueOf(rv.Elem().Interface())
	}
	return StringValue(fmt.Sprint(rv.Interface()))
}

// uintValue binds u as an integer, or as its decimal text when it exceeds
// the int64 range so it is never wrapped to a negative number.
func uintValue(u uint64) Value {
	if u > math.MaxInt64 {
		return StringValue(strconv.FormatUint(u, 10))
	}
	return IntValue(u)
}

func listOf[T any](vs []T) ListValue {
	l := make(ListValue, len(vs))
	for i, v := range vs {
		l[i] = ValueOf(v)
	}
	return l
}

// Args converts bound values to database/sql arguments.
func Args(params []Value) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Arg()
	}
	return args
}
