package mongo

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
)

// ShardKey is one field of a shard key.
type ShardKey struct {
	Field  string
	Hashed bool
}

// ShardCollection returns the shardCollection admin command for the
// "db.collection" namespace ns.
func ShardCollection(ns string, keys []ShardKey, unique bool) (bson.D, error) {
	if err := checkNamespace("shardCollection", ns); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, prax.NewInvalidInputError("shardCollection", "key", "at least one key field is required")
	}
	key := make(bson.D, 0, len(keys))
	hashed := 0
	for _, k := range keys {
		if k.Field == "" {
			return nil, prax.NewInvalidInputError("shardCollection", "key", "field name is empty")
		}
		if k.Hashed {
			hashed++
			key = append(key, bson.E{Key: k.Field, Value: "hashed"})
			continue
		}
		key = append(key, bson.E{Key: k.Field, Value: 1})
	}
	if hashed > 1 {
		return nil, prax.NewInvalidInputError("shardCollection", "key", "at most one field may be hashed")
	}
	if hashed > 0 && unique {
		return nil, prax.NewInvalidInputError("shardCollection", "unique", "hashed shard keys cannot be unique")
	}
	cmd := bson.D{
		{Key: "shardCollection", Value: ns},
		{Key: "key", Value: key},
	}
	if unique {
		cmd = append(cmd, bson.E{Key: "unique", Value: true})
	}
	return cmd, nil
}

// Zone assigns the shard key range [Min, Max) to a named zone served by
// the listed shards.
type Zone struct {
	Name   string
	Shards []string
	Min    bson.D
	Max    bson.D
}

// ZoneCommands returns the addShardToZone commands followed by the
// updateZoneKeyRange commands that configure zone sharding for ns.
func ZoneCommands(ns string, zones []Zone) ([]bson.D, error) {
	if err := checkNamespace("zone", ns); err != nil {
		return nil, err
	}
	var shards, ranges []bson.D
	for _, z := range zones {
		switch {
		case z.Name == "":
			return nil, prax.NewInvalidInputError("zone", "name", "is required")
		case len(z.Shards) == 0:
			return nil, prax.NewInvalidInputError("zone", "shards", "zone "+z.Name+" has no shards")
		case len(z.Min) == 0 || len(z.Max) == 0:
			return nil, prax.NewInvalidInputError("zone", "range", "zone "+z.Name+" needs min and max bounds")
		}
		for _, s := range z.Shards {
			shards = append(shards, bson.D{
				{Key: "addShardToZone", Value: s},
				{Key: "zone", Value: z.Name},
			})
		}
		ranges = append(ranges, bson.D{
			{Key: "updateZoneKeyRange", Value: ns},
			{Key: "min", Value: z.Min},
			{Key: "max", Value: z.Max},
			{Key: "zone", Value: z.Name},
		})
	}
	return append(shards, ranges...), nil
}

func checkNamespace(builder, ns string) error {
	db, coll, ok := strings.Cut(ns, ".")
	if !ok || db == "" || coll == "" {
		return prax.NewInvalidInputError(builder, "namespace", "namespace must be <database>.<collection>")
	}
	return nil
}
