package upsert

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect/mongo"
	"github.com/syssam/prax/dialect/sql"
)

// ToMongo returns a findAndModify command with upsert enabled. The
// conflict columns form the query, assignments map to $set, $inc and $push,
// and the remaining inserted columns go to $setOnInsert.
func (b *Builder) ToMongo() (bson.D, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if len(b.rows) != 1 {
		return nil, prax.NewInvalidInputError("upsert", "values", "findAndModify upserts exactly one document")
	}
	keys := b.target.Columns
	switch b.target.Kind {
	case TargetColumns:
	case TargetImplicit:
		if !b.hasColumn("_id") {
			return nil, prax.NewInvalidInputError("upsert", "target", "an implicit target needs an _id column")
		}
		keys = []string{"_id"}
	default:
		return nil, prax.NewUnsupportedError("MongoDB", "upsert", "conflict targets must be field lists")
	}
	row := make(map[string]any, len(b.columns))
	for i, c := range b.columns {
		if _, ok := b.rows[0][i].(sql.Expr); ok {
			return nil, prax.NewUnsupportedError("MongoDB", "upsert", "SQL expressions cannot be inserted")
		}
		row[c] = b.rows[0][i]
	}

	query := bson.D{}
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			return nil, prax.NewInvalidInputError("upsert", "target", "conflict column "+k+" is not inserted")
		}
		isKey[k] = true
		query = append(query, bson.E{Key: k, Value: value(v)})
	}
	if !b.where.IsNone() {
		query = bson.D{{Key: "$and", Value: bson.A{query, mongo.Filter(b.where)}}}
	}

	var set, inc, push bson.D
	assigned := make(map[string]bool, len(b.update))
	for _, a := range b.update {
		assigned[a.Column] = true
		switch a.Kind {
		case AssignExcluded:
			set = append(set, bson.E{Key: a.Column, Value: value(row[a.Column])})
		case AssignValue:
			set = append(set, bson.E{Key: a.Column, Value: value(a.Value)})
		case AssignIncrement:
			inc = append(inc, bson.E{Key: a.Column, Value: value(a.Value)})
		case AssignPush:
			push = append(push, bson.E{Key: a.Column, Value: value(a.Value)})
		case AssignExpr:
			return nil, prax.NewUnsupportedError("MongoDB", "upsert", "SQL expressions cannot be assigned")
		}
	}
	var onInsert bson.D
	for _, c := range b.columns {
		if !isKey[c] && !assigned[c] {
			onInsert = append(onInsert, bson.E{Key: c, Value: value(row[c])})
		}
	}
	update := bson.D{}
	for _, op := range []struct {
		name string
		doc  bson.D
	}{{"$set", set}, {"$setOnInsert", onInsert}, {"$inc", inc}, {"$push", push}} {
		if len(op.doc) > 0 {
			update = append(update, bson.E{Key: op.name, Value: op.doc})
		}
	}
	if len(update) == 0 {
		// Only key columns: the upsert inserts the query fields.
		update = bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: keys[0], Value: value(row[keys[0]])}}}}
	}

	cmd := bson.D{
		{Key: "findAndModify", Value: b.table},
		{Key: "query", Value: query},
		{Key: "update", Value: update},
		{Key: "new", Value: true},
		{Key: "upsert", Value: true},
	}
	if len(b.returning) > 0 {
		fields := make(bson.D, len(b.returning))
		for i, c := range b.returning {
			fields[i] = bson.E{Key: c, Value: 1}
		}
		cmd = append(cmd, bson.E{Key: "fields", Value: fields})
	}
	return cmd, nil
}

func value(v any) any { return mongo.Value(sql.ValueOf(v)) }
