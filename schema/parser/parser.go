// Package parser turns .prax source text into a schema.Schema.
//
// The grammar is an ordered choice of top-level items:
//
//	model | enum | type | view | policy | serverGroup | datasource | generator | raw_sql
//
// Doc comments (`///`) immediately preceding an item, a field or an enum
// value attach to it; other doc comments are discarded. The parser checks
// syntax only. Name resolution and attribute legality are left to the
// validate package.
package parser

import (
	"os"
	"strconv"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema"
)

// Parse parses src into a schema. It returns a *prax.SyntaxError when the
// source does not match the grammar.
func Parse(src string) (*schema.Schema, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, s: schema.New()}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.s, nil
}

// ParseFile reads and parses the file at path.
func ParseFile(path string) (*schema.Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(b))
}

type parser struct {
	toks []token
	pos  int
	s    *schema.Schema
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) at(kind tokenKind) bool { return p.peek().kind == kind }

func (p *parser) atKeyword(kw string) bool {
	tok := p.peek()
	return tok.kind == tokIdent && tok.text == kw
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, describe(tok))
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	tok := p.peek()
	if tok.kind != tokIdent || tok.text != kw {
		return p.errorf(tok, "expected %q, found %s", kw, describe(tok))
	}
	p.advance()
	return nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	length := tok.span.Len()
	if length == 0 {
		length = 1
	}
	return prax.NewSyntaxError(tok.span.Start, length, format, args...)
}

func describe(tok token) string {
	switch tok.kind {
	case tokIdent, tokInt, tokFloat:
		return strconv.Quote(tok.text)
	case tokString:
		return "string " + strconv.Quote(tok.text)
	}
	return tok.kind.String()
}

func (p *parser) parse() error {
	for !p.at(tokEOF) {
		tok := p.peek()
		if tok.kind != tokIdent {
			return p.errorf(tok, "expected a top-level declaration, found %s", describe(tok))
		}
		var err error
		switch tok.text {
		case "model":
			err = p.parseModel()
		case "enum":
			err = p.parseEnum()
		case "type":
			err = p.parseType()
		case "view":
			err = p.parseView()
		case "policy":
			err = p.parsePolicy()
		case "serverGroup":
			err = p.parseServerGroup()
		case "datasource":
			err = p.parseDatasource()
		case "generator":
			err = p.parseGenerator()
		case "raw_sql":
			err = p.parseRawSQL()
		default:
			return p.errorf(tok, "expected a top-level declaration, found %s", describe(tok))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// header parses `<keyword> <Name>` and returns the keyword doc and the
// name token.
func (p *parser) header() (string, token, error) {
	kw := p.advance()
	name, err := p.expect(tokIdent)
	if err != nil {
		return "", name, err
	}
	return kw.doc, name, nil
}

func (p *parser) parseModel() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	fields, attrs, end, err := p.fieldBlock(true)
	if err != nil {
		return err
	}
	p.s.AddModel(&schema.Model{
		Name:       name.text,
		Fields:     fields,
		Attributes: attrs,
		Doc:        doc,
		Span:       schema.Span{Start: name.span.Start, End: end},
	})
	return nil
}

func (p *parser) parseView() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	fields, attrs, end, err := p.fieldBlock(true)
	if err != nil {
		return err
	}
	p.s.AddView(&schema.View{
		Name:       name.text,
		Fields:     fields,
		Attributes: attrs,
		Doc:        doc,
		Span:       schema.Span{Start: name.span.Start, End: end},
	})
	return nil
}

func (p *parser) parseType() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	fields, _, end, err := p.fieldBlock(false)
	if err != nil {
		return err
	}
	p.s.AddType(&schema.CompositeType{
		Name:   name.text,
		Fields: fields,
		Doc:    doc,
		Span:   schema.Span{Start: name.span.Start, End: end},
	})
	return nil
}

// fieldBlock parses `{ field* @@attr* }` and returns the end offset of the
// closing brace.
func (p *parser) fieldBlock(modelAttrs bool) ([]*schema.Field, []*schema.Attribute, int, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, nil, 0, err
	}
	var (
		fields []*schema.Field
		attrs  []*schema.Attribute
	)
	for {
		tok := p.peek()
		switch tok.kind {
		case tokRBrace:
			p.advance()
			return fields, attrs, tok.span.End, nil
		case tokAtAt:
			if !modelAttrs {
				return nil, nil, 0, p.errorf(tok, "block attributes are not allowed here")
			}
			a, err := p.attribute()
			if err != nil {
				return nil, nil, 0, err
			}
			attrs = append(attrs, a)
		case tokIdent:
			f, err := p.field()
			if err != nil {
				return nil, nil, 0, err
			}
			fields = append(fields, f)
		default:
			return nil, nil, 0, p.errorf(tok, "expected a field or '}', found %s", describe(tok))
		}
	}
}

func (p *parser) field() (*schema.Field, error) {
	name := p.advance()
	f := &schema.Field{Name: name.text, Doc: name.doc}
	ft, end, err := p.fieldType()
	if err != nil {
		return nil, err
	}
	f.Type = ft
	switch {
	case p.at(tokLBracket):
		p.advance()
		rb, err := p.expect(tokRBracket)
		if err != nil {
			return nil, err
		}
		end = rb.span.End
		f.Modifier = schema.List
		if p.at(tokQuestion) {
			end = p.advance().span.End
			f.Modifier = schema.OptionalList
		}
	case p.at(tokQuestion):
		end = p.advance().span.End
		f.Modifier = schema.Optional
	}
	for p.at(tokAt) {
		a, err := p.attribute()
		if err != nil {
			return nil, err
		}
		end = a.Span.End
		f.Attributes = append(f.Attributes, a)
	}
	f.Span = schema.Span{Start: name.span.Start, End: end}
	return f, nil
}

func (p *parser) fieldType() (schema.FieldType, int, error) {
	tok, err := p.expect(tokIdent)
	if err != nil {
		return schema.FieldType{}, 0, err
	}
	if tok.text == "Unsupported" && p.at(tokLParen) {
		p.advance()
		raw, err := p.expect(tokString)
		if err != nil {
			return schema.FieldType{}, 0, err
		}
		rp, err := p.expect(tokRParen)
		if err != nil {
			return schema.FieldType{}, 0, err
		}
		return schema.UnsupportedOf(raw.text), rp.span.End, nil
	}
	if s, ok := schema.ParseScalar(tok.text); ok {
		return schema.ScalarOf(s), tok.span.End, nil
	}
	return schema.NamedOf(tok.text), tok.span.End, nil
}

// attribute parses `@name(args)` or `@@name(args)`.
func (p *parser) attribute() (*schema.Attribute, error) {
	at := p.advance()
	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	a := &schema.Attribute{
		Name:  name.text,
		Model: at.kind == tokAtAt,
		Span:  schema.Span{Start: at.span.Start, End: name.span.End},
	}
	if !p.at(tokLParen) {
		return a, nil
	}
	p.advance()
	for !p.at(tokRParen) {
		arg, err := p.arg()
		if err != nil {
			return nil, err
		}
		a.Args = append(a.Args, arg)
		if !p.at(tokComma) {
			break
		}
		p.advance()
	}
	rp, err := p.expect(tokRParen)
	if err != nil {
		return nil, err
	}
	a.Span.End = rp.span.End
	return a, nil
}

func (p *parser) arg() (schema.Arg, error) {
	start := p.peek().span.Start
	var name string
	if p.at(tokIdent) && p.peekAt(1).kind == tokColon {
		name = p.advance().text
		p.advance()
	}
	v, err := p.value()
	if err != nil {
		return schema.Arg{}, err
	}
	return schema.Arg{Name: name, Value: v, Span: schema.Span{Start: start, End: v.Span.End}}, nil
}

// value parses a literal: string, number, boolean, identifier,
// function call or bracketed list.
func (p *parser) value() (schema.Value, error) {
	tok := p.peek()
	switch tok.kind {
	case tokString:
		p.advance()
		v := schema.StringValue(tok.text)
		v.Span = tok.span
		return v, nil
	case tokInt:
		p.advance()
		i, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return schema.Value{}, p.errorf(tok, "invalid integer %q", tok.text)
		}
		v := schema.IntValue(i)
		v.Span = tok.span
		return v, nil
	case tokFloat:
		p.advance()
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return schema.Value{}, p.errorf(tok, "invalid float %q", tok.text)
		}
		v := schema.FloatValue(f)
		v.Span = tok.span
		return v, nil
	case tokIdent:
		p.advance()
		if tok.text == "true" || tok.text == "false" {
			v := schema.BoolValue(tok.text == "true")
			v.Span = tok.span
			return v, nil
		}
		if !p.at(tokLParen) {
			v := schema.IdentValue(tok.text)
			v.Span = tok.span
			return v, nil
		}
		p.advance()
		var args []schema.Value
		for !p.at(tokRParen) {
			arg, err := p.value()
			if err != nil {
				return schema.Value{}, err
			}
			args = append(args, arg)
			if !p.at(tokComma) {
				break
			}
			p.advance()
		}
		rp, err := p.expect(tokRParen)
		if err != nil {
			return schema.Value{}, err
		}
		v := schema.FuncValue(tok.text, args...)
		v.Span = schema.Span{Start: tok.span.Start, End: rp.span.End}
		return v, nil
	case tokLBracket:
		return p.list()
	}
	return schema.Value{}, p.errorf(tok, "expected a value, found %s", describe(tok))
}

// list parses `[v, ...]`. A non-empty list of bare identifiers is a field
// reference list; anything else is an array.
func (p *parser) list() (schema.Value, error) {
	lb := p.advance()
	var items []schema.Value
	refs := true
	for !p.at(tokRBracket) {
		v, err := p.value()
		if err != nil {
			return schema.Value{}, err
		}
		refs = refs && v.Kind == schema.ValueIdent
		items = append(items, v)
		if !p.at(tokComma) {
			break
		}
		p.advance()
	}
	rb, err := p.expect(tokRBracket)
	if err != nil {
		return schema.Value{}, err
	}
	v := schema.Value{Kind: schema.ValueArray, Items: items}
	if refs && len(items) > 0 {
		v.Kind = schema.ValueFieldRefs
	}
	v.Span = schema.Span{Start: lb.span.Start, End: rb.span.End}
	return v, nil
}

func (p *parser) parseEnum() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return err
	}
	e := &schema.Enum{Name: name.text, Doc: doc}
	for {
		tok := p.peek()
		switch tok.kind {
		case tokRBrace:
			p.advance()
			e.Span = schema.Span{Start: name.span.Start, End: tok.span.End}
			p.s.AddEnum(e)
			return nil
		case tokAtAt:
			a, err := p.attribute()
			if err != nil {
				return err
			}
			e.Attributes = append(e.Attributes, a)
		case tokIdent:
			p.advance()
			v := &schema.EnumValue{Name: tok.text, Doc: tok.doc, Span: tok.span}
			for p.at(tokAt) {
				a, err := p.attribute()
				if err != nil {
					return err
				}
				v.Attributes = append(v.Attributes, a)
				v.Span.End = a.Span.End
			}
			e.Values = append(e.Values, v)
		default:
			return p.errorf(tok, "expected an enum value or '}', found %s", describe(tok))
		}
	}
}

// parsePolicy parses:
//
//	policy Name on Model {
//	  for SELECT, UPDATE
//	  to authenticated
//	  as restrictive
//	  using "…"
//	  check """…"""
//	}
func (p *parser) parsePolicy() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	if err := p.expectKeyword("on"); err != nil {
		return err
	}
	table, err := p.expect(tokIdent)
	if err != nil {
		return err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return err
	}
	pol := &schema.Policy{Name: name.text, Table: table.text, Doc: doc}
	for {
		tok := p.peek()
		if tok.kind == tokRBrace {
			p.advance()
			pol.Span = schema.Span{Start: name.span.Start, End: tok.span.End}
			p.s.AddPolicy(pol)
			return nil
		}
		if tok.kind != tokIdent {
			return p.errorf(tok, "expected a policy clause or '}', found %s", describe(tok))
		}
		p.advance()
		switch tok.text {
		case "for":
			words, err := p.wordList()
			if err != nil {
				return err
			}
			for _, w := range words {
				c, ok := schema.ParsePolicyCommand(w.text)
				if !ok {
					return p.errorf(w, "unknown policy command %q", w.text)
				}
				pol.Commands = append(pol.Commands, c)
			}
		case "to":
			words, err := p.wordList()
			if err != nil {
				return err
			}
			for _, w := range words {
				pol.Roles = append(pol.Roles, w.text)
			}
		case "as", "type":
			kind, err := p.expect(tokIdent)
			if err != nil {
				return err
			}
			switch kind.text {
			case "permissive", "PERMISSIVE", "Permissive":
				pol.Type = schema.Permissive
			case "restrictive", "RESTRICTIVE", "Restrictive":
				pol.Type = schema.Restrictive
			default:
				return p.errorf(kind, "unknown policy type %q", kind.text)
			}
		case "using":
			if pol.Using, err = p.stringClause(); err != nil {
				return err
			}
		case "check", "withCheck":
			if pol.Check, err = p.stringClause(); err != nil {
				return err
			}
		case "mssqlSchema":
			if pol.MSSQLSchema, err = p.stringClause(); err != nil {
				return err
			}
		case "mssqlUsing":
			if pol.MSSQLUsing, err = p.stringClause(); err != nil {
				return err
			}
		case "mssqlBlock":
			words, err := p.wordList()
			if err != nil {
				return err
			}
			for _, w := range words {
				op, ok := schema.ParseBlockOperation(w.text)
				if !ok {
					return p.errorf(w, "unknown block operation %q", w.text)
				}
				pol.MSSQLBlockOps = append(pol.MSSQLBlockOps, op)
			}
		default:
			return p.errorf(tok, "unknown policy clause %q", tok.text)
		}
	}
}

func (p *parser) stringClause() (string, error) {
	tok, err := p.expect(tokString)
	if err != nil {
		return "", err
	}
	return tok.text, nil
}

// wordList parses `w`, `w, w` or `[w, w]` where each w is an identifier
// or a string.
func (p *parser) wordList() ([]token, error) {
	bracketed := p.at(tokLBracket)
	if bracketed {
		p.advance()
	}
	var words []token
	for {
		tok := p.peek()
		if tok.kind != tokIdent && tok.kind != tokString {
			return nil, p.errorf(tok, "expected a name, found %s", describe(tok))
		}
		words = append(words, p.advance())
		if !p.at(tokComma) {
			break
		}
		p.advance()
	}
	if bracketed {
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
	}
	return words, nil
}

func (p *parser) parseServerGroup() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return err
	}
	g := &schema.ServerGroup{Name: name.text, Doc: doc}
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokRBrace:
			p.advance()
			g.Span = schema.Span{Start: name.span.Start, End: tok.span.End}
			p.s.AddServerGroup(g)
			return nil
		case tok.kind == tokAtAt:
			a, err := p.attribute()
			if err != nil {
				return err
			}
			g.Attributes = append(g.Attributes, a)
		case tok.kind == tokIdent && tok.text == "server":
			p.advance()
			srvName, err := p.expect(tokIdent)
			if err != nil {
				return err
			}
			props, end, err := p.propertyBlock()
			if err != nil {
				return err
			}
			g.Servers = append(g.Servers, &schema.Server{
				Name:       srvName.text,
				Properties: props,
				Span:       schema.Span{Start: tok.span.Start, End: end},
			})
		default:
			return p.errorf(tok, "expected a server or '}', found %s", describe(tok))
		}
	}
}

func (p *parser) parseDatasource() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	props, end, err := p.propertyBlock()
	if err != nil {
		return err
	}
	p.s.AddDatasource(&schema.Datasource{
		Name:       name.text,
		Properties: props,
		Doc:        doc,
		Span:       schema.Span{Start: name.span.Start, End: end},
	})
	return nil
}

func (p *parser) parseGenerator() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	props, end, err := p.propertyBlock()
	if err != nil {
		return err
	}
	p.s.AddGenerator(&schema.Generator{
		Name:       name.text,
		Properties: props,
		Doc:        doc,
		Span:       schema.Span{Start: name.span.Start, End: end},
	})
	return nil
}

// propertyBlock parses `{ key = value ... }`.
func (p *parser) propertyBlock() ([]*schema.Property, int, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, 0, err
	}
	var props []*schema.Property
	for {
		tok := p.peek()
		if tok.kind == tokRBrace {
			p.advance()
			return props, tok.span.End, nil
		}
		key, err := p.expect(tokIdent)
		if err != nil {
			return nil, 0, err
		}
		if _, err := p.expect(tokEquals); err != nil {
			return nil, 0, err
		}
		v, err := p.value()
		if err != nil {
			return nil, 0, err
		}
		props = append(props, &schema.Property{
			Name:  key.text,
			Value: v,
			Span:  schema.Span{Start: key.span.Start, End: v.Span.End},
		})
	}
}

// parseRawSQL parses `raw_sql Name "…"` or `raw_sql Name """…"""`.
func (p *parser) parseRawSQL() error {
	doc, name, err := p.header()
	if err != nil {
		return err
	}
	body, err := p.expect(tokString)
	if err != nil {
		return err
	}
	p.s.AddRawSQL(&schema.RawSQL{
		Name: name.text,
		SQL:  body.text,
		Doc:  doc,
		Span: schema.Span{Start: name.span.Start, End: body.span.End},
	})
	return nil
}
