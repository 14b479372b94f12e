package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
)

// Fuzzy configures typo tolerance of a text search.
type Fuzzy struct {
	MaxEdits     int
	PrefixLength int
}

// Search is an Atlas Search $search stage over a text or phrase operator.
type Search struct {
	// Index defaults to "default".
	Index     string
	Query     string
	Path      []string
	Phrase    bool
	Fuzzy     *Fuzzy
	Highlight bool
}

// Stage implements Stage.
func (s Search) Stage() (bson.D, error) {
	if s.Query == "" {
		return nil, prax.NewInvalidInputError("search", "query", "is required")
	}
	if len(s.Path) == 0 {
		return nil, prax.NewInvalidInputError("search", "path", "at least one path is required")
	}
	if s.Fuzzy != nil {
		if s.Phrase {
			return nil, prax.NewInvalidInputError("search", "fuzzy", "phrase queries do not support fuzzy matching")
		}
		if s.Fuzzy.MaxEdits < 1 || s.Fuzzy.MaxEdits > 2 {
			return nil, prax.NewInvalidInputError("search", "fuzzy", "maxEdits must be 1 or 2")
		}
	}
	index := s.Index
	if index == "" {
		index = "default"
	}
	operator := bson.D{
		{Key: "query", Value: s.Query},
		{Key: "path", Value: s.path()},
	}
	if s.Fuzzy != nil {
		operator = append(operator, bson.E{Key: "fuzzy", Value: bson.D{
			{Key: "maxEdits", Value: s.Fuzzy.MaxEdits},
			{Key: "prefixLength", Value: s.Fuzzy.PrefixLength},
		}})
	}
	name := "text"
	if s.Phrase {
		name = "phrase"
	}
	spec := bson.D{
		{Key: "index", Value: index},
		{Key: name, Value: operator},
	}
	if s.Highlight {
		spec = append(spec, bson.E{Key: "highlight", Value: bson.D{{Key: "path", Value: s.path()}}})
	}
	return bson.D{{Key: "$search", Value: spec}}, nil
}

func (s Search) path() any {
	if len(s.Path) == 1 {
		return s.Path[0]
	}
	a := make(bson.A, len(s.Path))
	for i, p := range s.Path {
		a[i] = p
	}
	return a
}

// Pipeline returns the $search stage followed by a score projection, and
// a highlight projection when highlighting is requested.
func (s Search) Pipeline() (Pipeline, error) {
	stage, err := s.Stage()
	if err != nil {
		return nil, err
	}
	project := bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "searchScore"}}}}
	if s.Highlight {
		project = append(project, bson.E{Key: "highlights", Value: bson.D{{Key: "$meta", Value: "searchHighlights"}}})
	}
	return Pipeline{stage, {{Key: "$addFields", Value: project}}}, nil
}
