package gen

import (
	"bytes"
	"context"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/prax/compiler"
	"github.com/syssam/prax/schema"
)

// Generator renders Go source for a schema. It implements
// compiler.Generator; the files it returns are written with a Writer.
type Generator struct {
	cfg *Config
}

var _ compiler.Generator = (*Generator)(nil)

// New returns a Generator configured with opts.
func New(opts ...Option) (*Generator, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() *Config { return g.cfg }

// Name implements compiler.Generator.
func (g *Generator) Name() string { return "go:" + g.cfg.Package }

// fileTask renders one output file.
type fileTask struct {
	name   string
	owner  string
	render func(*jen.File)
}

// Generate implements compiler.Generator. Files are returned in a stable
// order: schema.go, enum.go, types.go, then one file per model and view.
func (g *Generator) Generate(ctx context.Context, s *schema.Schema) ([]compiler.File, error) {
	graph, err := NewGraph(g.cfg, s)
	if err != nil {
		return nil, err
	}
	tasks := []fileTask{{name: "schema.go", render: graph.genSchema}}
	if len(graph.Enums) > 0 {
		tasks = append(tasks, fileTask{name: "enum.go", render: graph.genEnums})
	}
	if len(graph.Composites) > 0 {
		tasks = append(tasks, fileTask{name: "types.go", render: graph.genComposites})
	}
	used := map[string]bool{"schema.go": true, "enum.go": true, "types.go": true}
	for _, t := range graph.Types {
		name := fileName(t.Name, used)
		tasks = append(tasks, fileTask{name: name, owner: t.Schema, render: func(f *jen.File) { graph.genType(f, t) }})
	}

	files := make([]compiler.File, len(tasks))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i, task := range tasks {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := g.render(task)
			if err != nil {
				return NewGenerationError(task.owner, task.name, "render", err)
			}
			files[i] = compiler.File{Path: task.name, Content: content}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (g *Generator) render(task fileTask) ([]byte, error) {
	f := jen.NewFile(g.cfg.Package)
	if g.cfg.Header != "" {
		f.HeaderComment(g.cfg.Header)
	}
	task.render(f)
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildSuffixes are file name suffixes the go tool treats as build
// constraints.
var buildSuffixes = map[string]bool{
	"test": true, "aix": true, "android": true, "darwin": true, "dragonfly": true,
	"freebsd": true, "hurd": true, "illumos": true, "ios": true, "js": true,
	"linux": true, "netbsd": true, "openbsd": true, "plan9": true, "solaris": true,
	"wasip1": true, "windows": true, "zos": true, "386": true, "amd64": true,
	"arm": true, "arm64": true, "loong64": true, "mips": true, "mipsle": true,
	"mips64": true, "mips64le": true, "ppc64": true, "ppc64le": true,
	"riscv64": true, "s390x": true, "wasm": true,
}

// fileName returns the file of a type, avoiding the shared files, names
// the go tool would read as build constraints, and earlier files.
func fileName(typeName string, used map[string]bool) string {
	base := snake(typeName)
	if i := strings.LastIndex(base, "_"); i >= 0 && buildSuffixes[base[i+1:]] {
		base += "_model"
	}
	name := base + ".go"
	for used[name] {
		base += "_model"
		name = base + ".go"
	}
	used[name] = true
	return name
}

func (g *Graph) genSchema(f *jen.File) {
	if len(g.Types) == 0 {
		return
	}
	f.Comment("Table and view names.")
	f.Const().DefsFunc(func(group *jen.Group) {
		for _, t := range g.Types {
			group.Id("Table" + t.Name).Op("=").Lit(t.Table)
		}
	})
	f.Comment("Tables lists the tables and views in declaration order.")
	f.Var().Id("Tables").Op("=").Index().String().ValuesFunc(func(group *jen.Group) {
		for _, t := range g.Types {
			group.Id("Table" + t.Name)
		}
	})
}

func (g *Graph) genEnums(f *jen.File) {
	for _, e := range g.Enums {
		r := receiver(e.Name)
		if e.Doc != "" {
			f.Comment(e.Doc)
		} else {
			f.Commentf("%s is the %s enum.", e.Name, e.Schema)
		}
		f.Type().Id(e.Name).String()
		f.Commentf("Values of %s.", e.Name)
		f.Const().DefsFunc(func(group *jen.Group) {
			for _, v := range e.Values {
				if v.Doc != "" {
					group.Comment(v.Doc)
				}
				group.Id(v.Const).Id(e.Name).Op("=").Lit(v.Value)
			}
		})
		f.Commentf("%sValues returns the values of %s in declaration order.", e.Name, e.Name)
		f.Func().Id(e.Name+"Values").Params().Index().Id(e.Name).Block(
			jen.Return(jen.Index().Id(e.Name).ValuesFunc(func(group *jen.Group) {
				for _, v := range e.Values {
					group.Id(v.Const)
				}
			})),
		)
		f.Func().Params(jen.Id(r).Id(e.Name)).Id("String").Params().String().Block(
			jen.Return(jen.String().Call(jen.Id(r))),
		)
		f.Commentf("IsValid reports whether %s is a declared %s value.", r, e.Name)
		f.Func().Params(jen.Id(r).Id(e.Name)).Id("IsValid").Params().Bool().Block(
			jen.Switch(jen.Id(r)).Block(
				jen.CaseFunc(func(group *jen.Group) {
					for _, v := range e.Values {
						group.Id(v.Const)
					}
				}).Block(jen.Return(jen.True())),
			),
			jen.Return(jen.False()),
		)
		f.Comment("Value implements driver.Valuer.")
		f.Func().Params(jen.Id(r).Id(e.Name)).Id("Value").Params().Params(jen.Qual("database/sql/driver", "Value"), jen.Error()).Block(
			jen.Return(jen.String().Call(jen.Id(r)), jen.Nil()),
		)
		f.Comment("Scan implements sql.Scanner.")
		f.Func().Params(jen.Id(r).Op("*").Id(e.Name)).Id("Scan").Params(jen.Id("v").Any()).Error().Block(
			jen.Switch(jen.Id("v").Op(":=").Id("v").Assert(jen.Type())).Block(
				jen.Case(jen.String()).Block(jen.Op("*").Id(r).Op("=").Id(e.Name).Call(jen.Id("v"))),
				jen.Case(jen.Index().Byte()).Block(jen.Op("*").Id(r).Op("=").Id(e.Name).Call(jen.Id("v"))),
				jen.Default().Block(jen.Return(jen.Qual("fmt", "Errorf").Call(jen.Lit("unexpected type %T for "+e.Name), jen.Id("v")))),
			),
			jen.If(jen.Op("!").Id(r).Dot("IsValid").Call()).Block(
				jen.Return(jen.Qual("fmt", "Errorf").Call(jen.Lit("invalid "+e.Name+" value %q"), jen.Op("*").Id(r))),
			),
			jen.Return(jen.Nil()),
		)
	}
}

// genComposites writes the composite types. They are stored as JSON.
func (g *Graph) genComposites(f *jen.File) {
	for _, t := range g.Composites {
		g.genStruct(f, t)
		r := receiver(t.Name)
		f.Comment("Value implements driver.Valuer.")
		f.Func().Params(jen.Id(r).Id(t.Name)).Id("Value").Params().Params(jen.Qual("database/sql/driver", "Value"), jen.Error()).Block(
			jen.Return(jen.Qual("encoding/json", "Marshal").Call(jen.Id(r))),
		)
		f.Comment("Scan implements sql.Scanner.")
		f.Func().Params(jen.Id(r).Op("*").Id(t.Name)).Id("Scan").Params(jen.Id("v").Any()).Error().Block(
			jen.Switch(jen.Id("v").Op(":=").Id("v").Assert(jen.Type())).Block(
				jen.Case(jen.Nil()).Block(jen.Return(jen.Nil())),
				jen.Case(jen.String()).Block(jen.Return(jen.Qual("encoding/json", "Unmarshal").Call(jen.Index().Byte().Call(jen.Id("v")), jen.Id(r)))),
				jen.Case(jen.Index().Byte()).Block(jen.Return(jen.Qual("encoding/json", "Unmarshal").Call(jen.Id("v"), jen.Id(r)))),
			),
			jen.Return(jen.Qual("fmt", "Errorf").Call(jen.Lit("unexpected type %T for "+t.Name), jen.Id("v"))),
		)
	}
}

func (g *Graph) genType(f *jen.File, t *Type) {
	g.genStruct(f, t)

	f.Commentf("TableName returns the name of the %s %s.", t.Schema, kind(t))
	f.Func().Params(jen.Id(t.Name)).Id("TableName").Params().String().Block(
		jen.Return(jen.Id("Table" + t.Name)),
	)

	if len(t.Fields) > 0 {
		f.Commentf("Columns of %s.", t.Schema)
		f.Const().DefsFunc(func(group *jen.Group) {
			for _, fd := range t.Fields {
				group.Id(t.Name + "Column" + fd.StructField).Op("=").Lit(fd.Column)
			}
		})
	}

	p := plural(t.Name)
	f.Commentf("%s is a parsable slice of %s.", p, t.Name)
	f.Type().Id(p).Index().Op("*").Id(t.Name)
}

func (g *Graph) genStruct(f *jen.File, t *Type) {
	if t.Doc != "" {
		f.Comment(t.Doc)
	} else {
		f.Commentf("%s is the %s %s.", t.Name, t.Schema, kind(t))
	}
	f.Type().Id(t.Name).StructFunc(func(group *jen.Group) {
		for _, fd := range t.Fields {
			if fd.Doc != "" {
				group.Comment(fd.Doc)
			}
			group.Id(fd.StructField).Add(fd.Type.Code()).Tag(g.tags(fd.Name, fd.Column, fd.Optional))
		}
		for _, e := range t.Edges {
			if e.Doc != "" {
				group.Comment(e.Doc)
			}
			typ := jen.Index().Op("*").Id(e.Type)
			if e.Unique {
				typ = jen.Op("*").Id(e.Type)
			}
			group.Id(e.StructField).Add(typ).Tag(g.tags(e.Name, "-", true))
		}
	})
}

// tags returns the struct tags of a field. A column of "-" marks a field
// without a column.
func (g *Graph) tags(name, column string, optional bool) map[string]string {
	tags := make(map[string]string, len(g.Tags))
	for _, key := range g.Tags {
		switch key {
		case "json":
			if optional {
				tags[key] = name + ",omitempty"
			} else {
				tags[key] = name
			}
		default:
			tags[key] = column
		}
	}
	return tags
}

func kind(t *Type) string {
	switch {
	case t.View:
		return "view"
	case t.Table == "":
		return "composite type"
	}
	return "model"
}
