package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax/dialect/sql"
)

// matchNothing is a query no document satisfies, used for an empty Or.
var matchNothing = bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}

var comparisons = map[sql.Op]string{
	sql.OpEquals:    "$eq",
	sql.OpNotEquals: "$ne",
	sql.OpLt:        "$lt",
	sql.OpLte:       "$lte",
	sql.OpGt:        "$gt",
	sql.OpGte:       "$gte",
	sql.OpIn:        "$in",
	sql.OpNotIn:     "$nin",
}

// Filter converts f to a MongoDB query document. None matches every
// document.
func Filter(f sql.Filter) bson.D {
	switch op := f.Op(); op {
	case sql.OpNone:
		return bson.D{}
	case sql.OpEquals:
		return bson.D{{Key: f.Field(), Value: Value(f.Value())}}
	case sql.OpIsNull:
		return bson.D{{Key: f.Field(), Value: nil}}
	case sql.OpIsNotNull:
		return bson.D{{Key: f.Field(), Value: bson.D{{Key: "$ne", Value: nil}}}}
	case sql.OpAnd, sql.OpOr:
		children := f.Children()
		if len(children) == 0 {
			if op == sql.OpAnd {
				return bson.D{}
			}
			return matchNothing
		}
		key := "$and"
		if op == sql.OpOr {
			key = "$or"
		}
		items := make(bson.A, len(children))
		for i, c := range children {
			items[i] = Filter(c)
		}
		return bson.D{{Key: key, Value: items}}
	case sql.OpNot:
		child := f.Children()[0]
		if expr, ok := fieldExpr(child); ok {
			return bson.D{{Key: child.Field(), Value: bson.D{{Key: "$not", Value: expr}}}}
		}
		return bson.D{{Key: "$nor", Value: bson.A{Filter(child)}}}
	default:
		expr, _ := fieldExpr(f)
		return bson.D{{Key: f.Field(), Value: expr}}
	}
}

// fieldExpr returns the operator document of a single-field predicate.
// Groups report false.
func fieldExpr(f sql.Filter) (bson.D, bool) {
	if name, ok := comparisons[f.Op()]; ok {
		return bson.D{{Key: name, Value: Value(f.Value())}}, true
	}
	switch f.Op() {
	case sql.OpContains:
		return bson.D{{Key: "$regex", Value: regexp.QuoteMeta(pattern(f))}}, true
	case sql.OpStartsWith:
		return bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(pattern(f))}}, true
	case sql.OpEndsWith:
		return bson.D{{Key: "$regex", Value: regexp.QuoteMeta(pattern(f)) + "$"}}, true
	case sql.OpIsNull:
		return bson.D{{Key: "$eq", Value: nil}}, true
	case sql.OpIsNotNull:
		return bson.D{{Key: "$ne", Value: nil}}, true
	}
	return nil, false
}

// pattern returns the unwrapped string operand of a LIKE predicate.
func pattern(f sql.Filter) string {
	if f.Value() == nil {
		return ""
	}
	s, _ := f.Value().Arg().(string)
	return s
}

// Value converts a bound SQL value to its BSON representation. JSON values
// are decoded as extended JSON and fall back to their text when invalid.
func Value(v sql.Value) any {
	switch v := v.(type) {
	case nil, sql.NullValue:
		return nil
	case sql.BoolValue:
		return bool(v)
	case sql.IntValue:
		return int64(v)
	case sql.FloatValue:
		return float64(v)
	case sql.StringValue:
		return string(v)
	case sql.JSONValue:
		var out any
		if err := bson.UnmarshalExtJSON(v, false, &out); err != nil {
			return string(v)
		}
		return out
	case sql.ListValue:
		items := make(bson.A, len(v))
		for i, item := range v {
			items[i] = Value(item)
		}
		return items
	default:
		return v.Arg()
	}
}
