// Package mongo emits MongoDB query documents, aggregation stages and
// admin commands as BSON.
//
// Filters built with the dialect/sql algebra convert directly:
//
//	q := mongo.Filter(sql.And(sql.Equals("active", true), sql.Gt("score", 100)))
//	// {"$and": [{"active": true}, {"score": {"$gt": 100}}]}
//
// Stage builders ($lookup, $graphLookup, $unionWith, $search) validate their
// required fields and return prax invalid-input errors instead of producing
// documents the server would reject. Documents keep insertion order so the
// rendered JSON is stable.
package mongo
