package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect/sql"
)

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter sql.Filter
		want   bson.D
	}{
		{
			name:   "None",
			filter: sql.None(),
			want:   bson.D{},
		},
		{
			name:   "And",
			filter: sql.And(sql.Equals("active", true), sql.Gt("score", 100)),
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "active", Value: true}},
				bson.D{{Key: "score", Value: bson.D{{Key: "$gt", Value: int64(100)}}}},
			}}},
		},
		{
			name:   "EqualsNull",
			filter: sql.Equals("deleted_at", nil),
			want:   bson.D{{Key: "deleted_at", Value: nil}},
		},
		{
			name:   "IsNotNull",
			filter: sql.IsNotNull("email"),
			want:   bson.D{{Key: "email", Value: bson.D{{Key: "$ne", Value: nil}}}},
		},
		{
			name:   "In",
			filter: sql.In("role", "admin", "editor"),
			want:   bson.D{{Key: "role", Value: bson.D{{Key: "$in", Value: bson.A{"admin", "editor"}}}}},
		},
		{
			name:   "EmptyIn",
			filter: sql.In("role"),
			want:   bson.D{{Key: "role", Value: bson.D{{Key: "$in", Value: bson.A{}}}}},
		},
		{
			name:   "StartsWith",
			filter: sql.StartsWith("name", "a.b"),
			want:   bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: `^a\.b`}}}},
		},
		{
			name:   "EndsWith",
			filter: sql.EndsWith("email", "@x.io"),
			want:   bson.D{{Key: "email", Value: bson.D{{Key: "$regex", Value: `@x\.io$`}}}},
		},
		{
			name:   "NotField",
			filter: sql.Not(sql.Lt("age", 18)),
			want:   bson.D{{Key: "age", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$lt", Value: int64(18)}}}}}},
		},
		{
			name:   "NotGroup",
			filter: sql.Not(sql.Or(sql.Equals("a", 1), sql.Equals("b", 2))),
			want: bson.D{{Key: "$nor", Value: bson.A{
				bson.D{{Key: "$or", Value: bson.A{
					bson.D{{Key: "a", Value: int64(1)}},
					bson.D{{Key: "b", Value: int64(2)}},
				}}},
			}}},
		},
		{
			name:   "NotAnd",
			filter: sql.Not(sql.And(sql.Equals("a", 1), sql.Equals("b", 2))),
			want: bson.D{{Key: "$nor", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "a", Value: int64(1)}},
					bson.D{{Key: "b", Value: int64(2)}},
				}}},
			}}},
		},
		{
			name:   "NotNot",
			filter: sql.Not(sql.Not(sql.Equals("a", 1))),
			want: bson.D{{Key: "$nor", Value: bson.A{
				bson.D{{Key: "a", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$eq", Value: int64(1)}}}}}},
			}}},
		},
		{
			name:   "NotIsNull",
			filter: sql.Not(sql.IsNull("email")),
			want:   bson.D{{Key: "email", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$eq", Value: nil}}}}}},
		},
		{
			name:   "EmptyOr",
			filter: sql.Or(),
			want:   matchNothing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(tt.filter))
		})
	}
}

func TestValue(t *testing.T) {
	assert.Nil(t, Value(sql.Null))
	assert.Equal(t, 1.5, Value(sql.FloatValue(1.5)))
	assert.Equal(t, bson.A{int64(1), "a"}, Value(sql.ListValue{sql.IntValue(1), sql.StringValue("a")}))
	assert.Equal(t, bson.D{{Key: "a", Value: "b"}}, Value(sql.JSONValue(`{"a":"b"}`)))
	assert.Equal(t, "not json", Value(sql.JSONValue(`not json`)))
}

func TestLookup(t *testing.T) {
	stage, err := Lookup{From: "posts", LocalField: "_id", ForeignField: "authorId", As: "posts"}.Stage()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "posts"},
		{Key: "localField", Value: "_id"},
		{Key: "foreignField", Value: "authorId"},
		{Key: "as", Value: "posts"},
	}}}, stage)

	stage, err = Lookup{
		From:     "posts",
		Let:      bson.D{{Key: "uid", Value: "$_id"}},
		Pipeline: Pipeline{Match(sql.Equals("published", true)), Limit(5)},
		As:       "recent",
	}.Stage()
	require.NoError(t, err)
	spec := stage[0].Value.(bson.D)
	assert.Equal(t, "let", spec[1].Key)
	assert.Equal(t, bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "published", Value: true}}}},
		bson.D{{Key: "$limit", Value: int64(5)}},
	}, spec[2].Value)

	_, err = Lookup{From: "posts", As: "x"}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = Lookup{From: "posts", LocalField: "a", Pipeline: Pipeline{}, As: "x"}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
}

func TestGraphLookup(t *testing.T) {
	depth := int64(3)
	stage, err := GraphLookup{
		From:             "employees",
		StartWith:        "reportsTo",
		ConnectFromField: "reportsTo",
		ConnectToField:   "name",
		As:               "chain",
		MaxDepth:         &depth,
		DepthField:       "level",
		RestrictSearch:   sql.Equals("active", true),
	}.Stage()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$graphLookup", Value: bson.D{
		{Key: "from", Value: "employees"},
		{Key: "startWith", Value: "$reportsTo"},
		{Key: "connectFromField", Value: "reportsTo"},
		{Key: "connectToField", Value: "name"},
		{Key: "as", Value: "chain"},
		{Key: "maxDepth", Value: int64(3)},
		{Key: "depthField", Value: "level"},
		{Key: "restrictSearchWithMatch", Value: bson.D{{Key: "active", Value: true}}},
	}}}, stage)

	neg := int64(-1)
	_, err = GraphLookup{From: "e", StartWith: "$a", ConnectFromField: "a", ConnectToField: "b", As: "c", MaxDepth: &neg}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = GraphLookup{From: "e", ConnectFromField: "a", ConnectToField: "b", As: "c"}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
}

func TestUnionWith(t *testing.T) {
	stage, err := UnionWith{Coll: "archive"}.Stage()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$unionWith", Value: "archive"}}, stage)

	p, err := NewPipeline(UnionWith{Coll: "archive", Pipeline: Pipeline{Limit(1)}})
	require.NoError(t, err)
	require.Len(t, p, 1)
	assert.Equal(t, "coll", p[0][0].Value.(bson.D)[0].Key)

	_, err = NewPipeline(UnionWith{})
	assert.True(t, prax.IsInvalidInput(err))
}

func TestFunctionAndAccumulator(t *testing.T) {
	fn, err := Function{Body: "function(a) { return a * 2 }", Args: bson.A{"$n"}}.Expr()
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "$function", Value: bson.D{
		{Key: "body", Value: "function(a) { return a * 2 }"},
		{Key: "args", Value: bson.A{"$n"}},
		{Key: "lang", Value: "js"},
	}}}, fn)
	_, err = Function{}.Expr()
	assert.True(t, prax.IsInvalidInput(err))

	acc, err := Accumulator{
		Init:           "function() { return 0 }",
		Accumulate:     "function(s, v) { return s + v }",
		AccumulateArgs: bson.A{"$v"},
		Merge:          "function(a, b) { return a + b }",
		Finalize:       "function(s) { return s }",
	}.Expr()
	require.NoError(t, err)
	spec := acc[0].Value.(bson.D)
	keys := make([]string, len(spec))
	for i, e := range spec {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"init", "accumulate", "accumulateArgs", "merge", "finalize", "lang"}, keys)
	_, err = Accumulator{Init: "x", Accumulate: "y"}.Expr()
	assert.True(t, prax.IsInvalidInput(err))
}

func TestSearch(t *testing.T) {
	p, err := Search{
		Query:     "postgres",
		Path:      []string{"title", "body"},
		Fuzzy:     &Fuzzy{MaxEdits: 1},
		Highlight: true,
	}.Pipeline()
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, bson.D{{Key: "$search", Value: bson.D{
		{Key: "index", Value: "default"},
		{Key: "text", Value: bson.D{
			{Key: "query", Value: "postgres"},
			{Key: "path", Value: bson.A{"title", "body"}},
			{Key: "fuzzy", Value: bson.D{{Key: "maxEdits", Value: 1}, {Key: "prefixLength", Value: 0}}},
		}},
		{Key: "highlight", Value: bson.D{{Key: "path", Value: bson.A{"title", "body"}}}},
	}}}, p[0])
	assert.Len(t, p[1][0].Value.(bson.D), 2)

	stage, err := Search{Index: "posts", Query: "a b", Path: []string{"title"}, Phrase: true}.Stage()
	require.NoError(t, err)
	assert.Equal(t, "phrase", stage[0].Value.(bson.D)[1].Key)

	_, err = Search{Query: "x", Path: []string{"t"}, Phrase: true, Fuzzy: &Fuzzy{MaxEdits: 1}}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = Search{Query: "x", Path: []string{"t"}, Fuzzy: &Fuzzy{MaxEdits: 3}}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = Search{Query: "x"}.Stage()
	assert.True(t, prax.IsInvalidInput(err))
}

func TestShardCollection(t *testing.T) {
	cmd, err := ShardCollection("app.events", []ShardKey{{Field: "tenant"}, {Field: "_id", Hashed: true}}, false)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "shardCollection", Value: "app.events"},
		{Key: "key", Value: bson.D{{Key: "tenant", Value: 1}, {Key: "_id", Value: "hashed"}}},
	}, cmd)

	cmd, err = ShardCollection("app.users", []ShardKey{{Field: "email"}}, true)
	require.NoError(t, err)
	assert.Equal(t, bson.E{Key: "unique", Value: true}, cmd[2])

	for _, tt := range []struct {
		ns     string
		keys   []ShardKey
		unique bool
	}{
		{"events", []ShardKey{{Field: "a"}}, false},
		{"app.events", nil, false},
		{"app.events", []ShardKey{{Field: "a", Hashed: true}, {Field: "b", Hashed: true}}, false},
		{"app.events", []ShardKey{{Field: "a", Hashed: true}}, true},
	} {
		_, err := ShardCollection(tt.ns, tt.keys, tt.unique)
		assert.True(t, prax.IsInvalidInput(err), tt.ns)
	}
}

func TestZoneCommands(t *testing.T) {
	cmds, err := ZoneCommands("app.users", []Zone{
		{Name: "EU", Shards: []string{"shard-eu-1", "shard-eu-2"}, Min: bson.D{{Key: "region", Value: "eu"}}, Max: bson.D{{Key: "region", Value: "eu~"}}},
		{Name: "US", Shards: []string{"shard-us"}, Min: bson.D{{Key: "region", Value: "us"}}, Max: bson.D{{Key: "region", Value: "us~"}}},
	})
	require.NoError(t, err)
	require.Len(t, cmds, 5)
	assert.Equal(t, "addShardToZone", cmds[0][0].Key)
	assert.Equal(t, "shard-us", cmds[2][0].Value)
	assert.Equal(t, bson.D{
		{Key: "updateZoneKeyRange", Value: "app.users"},
		{Key: "min", Value: bson.D{{Key: "region", Value: "eu"}}},
		{Key: "max", Value: bson.D{{Key: "region", Value: "eu~"}}},
		{Key: "zone", Value: "EU"},
	}, cmds[3])

	_, err = ZoneCommands("app.users", []Zone{{Name: "EU"}})
	assert.True(t, prax.IsInvalidInput(err))
}

func TestChangeStream(t *testing.T) {
	token, err := bson.Marshal(bson.D{{Key: "_data", Value: "8263"}})
	require.NoError(t, err)
	p, err := ChangeStream{
		Operations:   []string{"insert", "update"},
		Filter:       sql.Or(sql.Equals("status", "paid"), sql.Gt("total", 10)),
		FullDocument: FullDocumentUpdateLookup,
		ResumeAfter:  bson.Raw(token),
	}.Pipeline()
	require.NoError(t, err)
	require.Len(t, p, 2)
	assert.Equal(t, bson.D{{Key: "$changeStream", Value: bson.D{
		{Key: "fullDocument", Value: "updateLookup"},
		{Key: "resumeAfter", Value: bson.Raw(token)},
	}}}, p[0])
	assert.Equal(t, bson.D{{Key: "$match", Value: bson.D{
		{Key: "operationType", Value: bson.D{{Key: "$in", Value: bson.A{"insert", "update"}}}},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "fullDocument.status", Value: "paid"}},
			bson.D{{Key: "fullDocument.total", Value: bson.D{{Key: "$gt", Value: int64(10)}}}},
		}},
	}}}, p[1])

	p, err = ChangeStream{}.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, Pipeline{{{Key: "$changeStream", Value: bson.D{}}}}, p)

	_, err = ChangeStream{ResumeAfter: bson.Raw(token), StartAfter: bson.Raw(token)}.Pipeline()
	assert.True(t, prax.IsInvalidInput(err))
	_, err = ChangeStream{FullDocumentBeforeChange: FullDocumentUpdateLookup}.Pipeline()
	assert.True(t, prax.IsInvalidInput(err))
}

func TestExtJSON(t *testing.T) {
	s, err := ExtJSON(Filter(sql.And(sql.Equals("active", true), sql.Equals("name", "ann"))))
	require.NoError(t, err)
	assert.Equal(t, `{"$and":[{"active":true},{"name":"ann"}]}`, s)

	out, err := Pipeline{Match(sql.Equals("a", "b")), {{Key: "$count", Value: "n"}}}.JSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"$match":{"a":"b"}},{"$count":"n"}]`, out)
}
