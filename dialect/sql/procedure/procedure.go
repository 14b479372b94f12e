// Package procedure renders stored procedure and function invocations,
// including output parameter plumbing per dialect.
package procedure

import (
	"strconv"
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/sql"
)

// Mode is the direction of a parameter.
type Mode uint8

// Parameter modes.
const (
	ModeIn Mode = iota
	ModeOut
	ModeInOut
)

func (m Mode) String() string {
	switch m {
	case ModeIn:
		return "IN"
	case ModeOut:
		return "OUT"
	case ModeInOut:
		return "INOUT"
	}
	return "invalid"
}

// Param is one argument of a call. TypeHint is the SQL type used to declare
// output variables and to cast PostgreSQL output placeholders.
type Param struct {
	Name     string
	Mode     Mode
	Value    any
	TypeHint string
}

// In returns an input parameter.
func In(name string, v any) Param { return Param{Name: name, Value: v} }

// Out returns an output parameter of type typ.
func Out(name, typ string) Param { return Param{Name: name, Mode: ModeOut, TypeHint: typ} }

// InOut returns a parameter passing v in and reading it back.
func InOut(name string, v any, typ string) Param {
	return Param{Name: name, Mode: ModeInOut, Value: v, TypeHint: typ}
}

func (p Param) output() bool { return p.Mode == ModeOut || p.Mode == ModeInOut }

// Call is a procedure or function invocation.
type Call struct {
	Name       string
	Schema     string
	Params     []Param
	IsFunction bool
}

// Procedure returns a call of the named stored procedure.
func Procedure(name string, params ...Param) *Call { return &Call{Name: name, Params: params} }

// Function returns a call of the named function.
func Function(name string, params ...Param) *Call {
	return &Call{Name: name, Params: params, IsFunction: true}
}

func (c *Call) check(d dialect.DatabaseType) error {
	if c.Name == "" {
		return prax.NewInvalidInputError("procedure", "name", "procedure name is required")
	}
	if !d.Valid() {
		return d.Unsupported("procedure call", "unknown dialect")
	}
	named := false
	for _, p := range c.Params {
		if p.Name == "" && named && d == dialect.MSSQL && !c.IsFunction {
			return prax.NewInvalidInputError("procedure", "params", "positional parameter follows a named one")
		}
		named = named || p.Name != ""
		if p.Mode > ModeInOut {
			return prax.NewInvalidInputError("procedure", "mode", "unknown parameter mode")
		}
		if p.Name != "" && !dialect.IsIdentifier(p.Name) {
			return prax.NewInvalidInputError("procedure", "params", "invalid parameter name "+p.Name)
		}
		if d == dialect.MSSQL && placeholder(p.Name) {
			return prax.NewInvalidInputError("procedure", "params", "parameter name "+p.Name+" clashes with driver placeholders")
		}
		if !p.output() {
			continue
		}
		if c.IsFunction && d != dialect.PostgreSQL {
			return d.Unsupported("function output parameter", "functions return values instead of output parameters")
		}
		if p.Name == "" && d != dialect.PostgreSQL {
			return prax.NewInvalidInputError("procedure", "params", p.Mode.String()+" parameter needs a name")
		}
		if p.TypeHint == "" && d == dialect.MSSQL {
			return prax.NewInvalidInputError("procedure", "params", "output parameter "+p.Name+" needs a type")
		}
	}
	if !c.IsFunction && d == dialect.SQLite {
		return d.Unsupported("stored procedure", "only functions can be called")
	}
	return nil
}

// Build renders the invocation. The statements must run in order on the
// same connection: MySQL seeds and reads session variables around CALL,
// every other dialect needs a single statement. When the call has output
// parameters the last statement returns them as one row, one column per
// parameter name.
func (c *Call) Build(d dialect.DatabaseType) ([]sql.Statement, error) {
	if err := c.check(d); err != nil {
		return nil, err
	}
	name := d.QuoteQualified(c.Schema, c.Name)
	switch {
	case d == dialect.MSSQL && !c.IsFunction:
		return []sql.Statement{c.mssql(d, name)}, nil
	case d == dialect.MySQL && !c.IsFunction:
		return c.mysql(d, name), nil
	}
	if d == dialect.MSSQL && c.Schema == "" {
		// Scalar functions must be schema-qualified.
		name = d.QuoteQualified("dbo", c.Name)
	}
	b := sql.NewBuilder(d)
	switch {
	case c.IsFunction && d == dialect.PostgreSQL && c.hasOutput():
		b.WriteString("SELECT * FROM " + name + "(")
	case c.IsFunction:
		b.WriteString("SELECT " + name + "(")
	default:
		b.WriteString("CALL " + name + "(")
	}
	first := true
	for _, p := range c.Params {
		// PostgreSQL function OUT parameters are result columns, not arguments.
		if c.IsFunction && p.Mode == ModeOut {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		switch {
		case p.Mode == ModeOut:
			b.WriteString(cast(d, "NULL", p.TypeHint))
		case p.TypeHint != "" && p.Mode == ModeInOut:
			b.Arg(p.Value)
			b.WriteString("::" + p.TypeHint)
		default:
			b.Arg(p.Value)
		}
	}
	b.WriteString(")")
	stmt := b.Statement()
	stmt.ExpectsRows = c.IsFunction || c.hasOutput()
	return []sql.Statement{stmt}, nil
}

func (c *Call) hasOutput() bool {
	for _, p := range c.Params {
		if p.output() {
			return true
		}
	}
	return false
}

func cast(d dialect.DatabaseType, v, typ string) string {
	if typ == "" || d != dialect.PostgreSQL {
		return v
	}
	return v + "::" + typ
}

// placeholder reports whether name reads as a go-mssqldb bind marker (P1,
// P2, ...) once prefixed with @.
func placeholder(name string) bool {
	digits, ok := strings.CutPrefix(name, "P")
	if !ok {
		digits, ok = strings.CutPrefix(name, "p")
	}
	if !ok || digits == "" {
		return false
	}
	return strings.Trim(digits, "0123456789") == ""
}

// outVar names the local variable holding the i-th output parameter.
func outVar(i int) string { return "@out" + strconv.Itoa(i) }

// mssql renders EXEC with DECLARE for every output variable ahead of it and
// a SELECT reading them back after it. Output variables are numbered so
// they never shadow a procedure parameter or a bind marker.
func (c *Call) mssql(d dialect.DatabaseType, name string) sql.Statement {
	b := sql.NewBuilder(d)
	var (
		outs []string
		vars = make(map[int]string)
	)
	for i, p := range c.Params {
		if !p.output() {
			continue
		}
		v := outVar(len(outs) + 1)
		vars[i] = v
		b.WriteString("DECLARE " + v + " " + p.TypeHint)
		if p.Mode == ModeInOut {
			b.WriteString(" = ")
			b.Arg(p.Value)
		}
		b.WriteString(";\n")
		outs = append(outs, v+" AS "+d.QuoteIdent(p.Name))
	}
	b.WriteString("EXEC " + name)
	for i, p := range c.Params {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(" ")
		if p.Name != "" {
			b.WriteString("@" + p.Name + " = ")
		}
		if p.output() {
			b.WriteString(vars[i] + " OUTPUT")
		} else {
			b.Arg(p.Value)
		}
	}
	if len(outs) > 0 {
		b.WriteString(";\nSELECT " + strings.Join(outs, ", "))
	}
	stmt := b.Statement()
	stmt.ExpectsRows = len(outs) > 0
	return stmt
}

// mysql passes output parameters through session variables named after
// them.
func (c *Call) mysql(d dialect.DatabaseType, name string) []sql.Statement {
	var (
		stmts []sql.Statement
		outs  []string
	)
	b := sql.NewBuilder(d)
	b.WriteString("CALL " + name + "(")
	for i, p := range c.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if !p.output() {
			b.Arg(p.Value)
			continue
		}
		v := "@" + p.Name
		if p.Mode == ModeInOut {
			stmts = append(stmts, sql.NewStatement("SET "+v+" = ?", p.Value))
		}
		b.WriteString(v)
		outs = append(outs, v+" AS "+d.QuoteIdent(p.Name))
	}
	b.WriteString(")")
	stmts = append(stmts, b.Statement())
	if len(outs) > 0 {
		stmts = append(stmts, sql.Statement{SQL: "SELECT " + strings.Join(outs, ", "), ExpectsRows: true})
	}
	return stmts
}
