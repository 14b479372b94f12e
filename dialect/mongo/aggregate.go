package mongo

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect/sql"
)

// Pipeline is an aggregation pipeline.
type Pipeline []bson.D

// Stage is implemented by the stage builders of this package.
type Stage interface {
	Stage() (bson.D, error)
}

// NewPipeline builds a pipeline from stage builders, failing on the first
// invalid stage.
func NewPipeline(stages ...Stage) (Pipeline, error) {
	p := make(Pipeline, 0, len(stages))
	for _, s := range stages {
		d, err := s.Stage()
		if err != nil {
			return nil, err
		}
		p = append(p, d)
	}
	return p, nil
}

// Array returns the pipeline as a BSON array.
func (p Pipeline) Array() bson.A {
	a := make(bson.A, len(p))
	for i, s := range p {
		a[i] = s
	}
	return a
}

// Match returns a $match stage for f.
func Match(f sql.Filter) bson.D {
	return bson.D{{Key: "$match", Value: Filter(f)}}
}

// Limit returns a $limit stage.
func Limit(n int64) bson.D {
	return bson.D{{Key: "$limit", Value: n}}
}

// Skip returns a $skip stage.
func Skip(n int64) bson.D {
	return bson.D{{Key: "$skip", Value: n}}
}

// Lookup is a $lookup stage. With a nil Pipeline it is the equality form
// and needs LocalField and ForeignField; with a Pipeline the join fields
// are optional and Let binds variables for the sub-pipeline.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	Let          bson.D
	Pipeline     Pipeline
	As           string
}

// Stage implements Stage.
func (l Lookup) Stage() (bson.D, error) {
	switch {
	case l.From == "":
		return nil, prax.NewInvalidInputError("lookup", "from", "collection is required")
	case l.As == "":
		return nil, prax.NewInvalidInputError("lookup", "as", "output field is required")
	case l.Pipeline == nil && (l.LocalField == "" || l.ForeignField == ""):
		return nil, prax.NewInvalidInputError("lookup", "localField", "localField and foreignField are required without a pipeline")
	case (l.LocalField == "") != (l.ForeignField == ""):
		return nil, prax.NewInvalidInputError("lookup", "foreignField", "localField and foreignField must be set together")
	}
	spec := bson.D{{Key: "from", Value: l.From}}
	if l.LocalField != "" {
		spec = append(spec,
			bson.E{Key: "localField", Value: l.LocalField},
			bson.E{Key: "foreignField", Value: l.ForeignField},
		)
	}
	if len(l.Let) > 0 {
		spec = append(spec, bson.E{Key: "let", Value: l.Let})
	}
	if l.Pipeline != nil {
		spec = append(spec, bson.E{Key: "pipeline", Value: l.Pipeline.Array()})
	}
	spec = append(spec, bson.E{Key: "as", Value: l.As})
	return bson.D{{Key: "$lookup", Value: spec}}, nil
}

// GraphLookup is a recursive $graphLookup stage.
type GraphLookup struct {
	From             string
	StartWith        any
	ConnectFromField string
	ConnectToField   string
	As               string
	// MaxDepth limits recursion when non-negative; nil means unbounded.
	MaxDepth       *int64
	DepthField     string
	RestrictSearch sql.Filter
}

// Stage implements Stage.
func (g GraphLookup) Stage() (bson.D, error) {
	for _, req := range []struct{ name, value string }{
		{"from", g.From},
		{"connectFromField", g.ConnectFromField},
		{"connectToField", g.ConnectToField},
		{"as", g.As},
	} {
		if req.value == "" {
			return nil, prax.NewInvalidInputError("graphLookup", req.name, "is required")
		}
	}
	if g.StartWith == nil {
		return nil, prax.NewInvalidInputError("graphLookup", "startWith", "is required")
	}
	if g.MaxDepth != nil && *g.MaxDepth < 0 {
		return nil, prax.NewInvalidInputError("graphLookup", "maxDepth", "must be non-negative")
	}
	spec := bson.D{
		{Key: "from", Value: g.From},
		{Key: "startWith", Value: fieldPath(g.StartWith)},
		{Key: "connectFromField", Value: g.ConnectFromField},
		{Key: "connectToField", Value: g.ConnectToField},
		{Key: "as", Value: g.As},
	}
	if g.MaxDepth != nil {
		spec = append(spec, bson.E{Key: "maxDepth", Value: *g.MaxDepth})
	}
	if g.DepthField != "" {
		spec = append(spec, bson.E{Key: "depthField", Value: g.DepthField})
	}
	if !g.RestrictSearch.IsNone() {
		spec = append(spec, bson.E{Key: "restrictSearchWithMatch", Value: Filter(g.RestrictSearch)})
	}
	return bson.D{{Key: "$graphLookup", Value: spec}}, nil
}

// fieldPath prefixes a bare field name with "$". Expressions and values
// that are not strings pass through.
func fieldPath(v any) any {
	if s, ok := v.(string); ok && !strings.HasPrefix(s, "$") {
		return "$" + s
	}
	return v
}

// UnionWith is a $unionWith stage.
type UnionWith struct {
	Coll     string
	Pipeline Pipeline
}

// Stage implements Stage. Without a pipeline the short form is emitted.
func (u UnionWith) Stage() (bson.D, error) {
	if u.Coll == "" {
		return nil, prax.NewInvalidInputError("unionWith", "coll", "collection is required")
	}
	if u.Pipeline == nil {
		return bson.D{{Key: "$unionWith", Value: u.Coll}}, nil
	}
	return bson.D{{Key: "$unionWith", Value: bson.D{
		{Key: "coll", Value: u.Coll},
		{Key: "pipeline", Value: u.Pipeline.Array()},
	}}}, nil
}

// Function is a $function expression running JavaScript on the server.
type Function struct {
	Body string
	Args bson.A
	// Lang defaults to "js".
	Lang string
}

// Expr returns the $function expression.
func (f Function) Expr() (bson.D, error) {
	if strings.TrimSpace(f.Body) == "" {
		return nil, prax.NewInvalidInputError("function", "body", "is required")
	}
	args := f.Args
	if args == nil {
		args = bson.A{}
	}
	return bson.D{{Key: "$function", Value: bson.D{
		{Key: "body", Value: f.Body},
		{Key: "args", Value: args},
		{Key: "lang", Value: lang(f.Lang)},
	}}}, nil
}

// Accumulator is a custom $accumulator group operator.
type Accumulator struct {
	Init           string
	InitArgs       bson.A
	Accumulate     string
	AccumulateArgs bson.A
	Merge          string
	Finalize       string
	Lang           string
}

// Expr returns the $accumulator expression.
func (a Accumulator) Expr() (bson.D, error) {
	for _, req := range []struct{ name, value string }{
		{"init", a.Init},
		{"accumulate", a.Accumulate},
		{"merge", a.Merge},
	} {
		if strings.TrimSpace(req.value) == "" {
			return nil, prax.NewInvalidInputError("accumulator", req.name, "is required")
		}
	}
	spec := bson.D{{Key: "init", Value: a.Init}}
	if len(a.InitArgs) > 0 {
		spec = append(spec, bson.E{Key: "initArgs", Value: a.InitArgs})
	}
	accArgs := a.AccumulateArgs
	if accArgs == nil {
		accArgs = bson.A{}
	}
	spec = append(spec,
		bson.E{Key: "accumulate", Value: a.Accumulate},
		bson.E{Key: "accumulateArgs", Value: accArgs},
		bson.E{Key: "merge", Value: a.Merge},
	)
	if a.Finalize != "" {
		spec = append(spec, bson.E{Key: "finalize", Value: a.Finalize})
	}
	spec = append(spec, bson.E{Key: "lang", Value: lang(a.Lang)})
	return bson.D{{Key: "$accumulator", Value: spec}}, nil
}

func lang(l string) string {
	if l == "" {
		return "js"
	}
	return l
}
