package mongo

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect/sql"
)

// FullDocument selects how update events carry the changed document.
type FullDocument string

// Full document policies.
const (
	FullDocumentDefault       FullDocument = ""
	FullDocumentUpdateLookup  FullDocument = "updateLookup"
	FullDocumentWhenAvailable FullDocument = "whenAvailable"
	FullDocumentRequired      FullDocument = "required"
)

// ChangeStream describes a change stream aggregation pipeline.
type ChangeStream struct {
	// Operations restricts events by operationType, e.g. "insert".
	Operations []string
	// Filter applies to the fields of the changed document.
	Filter                   sql.Filter
	FullDocument             FullDocument
	FullDocumentBeforeChange FullDocument
	// At most one of ResumeAfter, StartAfter and StartAtOperationTime.
	ResumeAfter          bson.Raw
	StartAfter           bson.Raw
	StartAtOperationTime *bson.Timestamp
	ShowExpandedEvents   bool
}

// Pipeline returns the $changeStream stage followed by an optional $match.
func (c ChangeStream) Pipeline() (Pipeline, error) {
	positions := 0
	for _, set := range []bool{c.ResumeAfter != nil, c.StartAfter != nil, c.StartAtOperationTime != nil} {
		if set {
			positions++
		}
	}
	if positions > 1 {
		return nil, prax.NewInvalidInputError("changeStream", "resumeAfter", "resumeAfter, startAfter and startAtOperationTime are mutually exclusive")
	}
	spec := bson.D{}
	if c.FullDocument != FullDocumentDefault {
		spec = append(spec, bson.E{Key: "fullDocument", Value: string(c.FullDocument)})
	}
	if c.FullDocumentBeforeChange != FullDocumentDefault {
		if c.FullDocumentBeforeChange == FullDocumentUpdateLookup {
			return nil, prax.NewInvalidInputError("changeStream", "fullDocumentBeforeChange", "updateLookup is not a pre-image policy")
		}
		spec = append(spec, bson.E{Key: "fullDocumentBeforeChange", Value: string(c.FullDocumentBeforeChange)})
	}
	switch {
	case c.ResumeAfter != nil:
		spec = append(spec, bson.E{Key: "resumeAfter", Value: c.ResumeAfter})
	case c.StartAfter != nil:
		spec = append(spec, bson.E{Key: "startAfter", Value: c.StartAfter})
	case c.StartAtOperationTime != nil:
		spec = append(spec, bson.E{Key: "startAtOperationTime", Value: *c.StartAtOperationTime})
	}
	if c.ShowExpandedEvents {
		spec = append(spec, bson.E{Key: "showExpandedEvents", Value: true})
	}
	p := Pipeline{{{Key: "$changeStream", Value: spec}}}

	var match bson.D
	if len(c.Operations) > 0 {
		ops := make(bson.A, len(c.Operations))
		for i, op := range c.Operations {
			ops[i] = op
		}
		match = append(match, bson.E{Key: "operationType", Value: bson.D{{Key: "$in", Value: ops}}})
	}
	if !c.Filter.IsNone() {
		match = append(match, prefixFields(Filter(c.Filter), "fullDocument.")...)
	}
	if len(match) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: match}})
	}
	return p, nil
}

// prefixFields returns a copy of the query document with every field name
// prefixed, descending into logical operators.
func prefixFields(doc bson.D, prefix string) bson.D {
	out := make(bson.D, len(doc))
	for i, e := range doc {
		if !strings.HasPrefix(e.Key, "$") {
			out[i] = bson.E{Key: prefix + e.Key, Value: e.Value}
			continue
		}
		items, ok := e.Value.(bson.A)
		if !ok {
			out[i] = e
			continue
		}
		nested := make(bson.A, len(items))
		for j, item := range items {
			if d, ok := item.(bson.D); ok {
				nested[j] = prefixFields(d, prefix)
			} else {
				nested[j] = item
			}
		}
		out[i] = bson.E{Key: e.Key, Value: nested}
	}
	return out
}
