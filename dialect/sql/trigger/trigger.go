// Package trigger builds CREATE TRIGGER statements and enforces what each
// dialect can express.
package trigger

import (
	"strings"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
)

// Timing is when the trigger fires relative to the statement.
type Timing uint8

// Trigger timings.
const (
	Before Timing = iota
	After
	InsteadOf
)

func (t Timing) String() string {
	switch t {
	case Before:
		return "BEFORE"
	case After:
		return "AFTER"
	case InsteadOf:
		return "INSTEAD OF"
	}
	return "invalid"
}

// Event is a data modification that fires a trigger.
type Event uint8

// Trigger events.
const (
	Insert Event = iota + 1
	Update
	Delete
	Truncate
)

func (e Event) String() string {
	switch e {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case Truncate:
		return "TRUNCATE"
	}
	return "invalid"
}

// Level selects whether the trigger fires per row or per statement. SQL
// Server triggers always fire once per statement and ignore it.
type Level uint8

// Trigger levels.
const (
	Row Level = iota
	Statement
)

// Action is what a trigger runs: a function call or inline SQL.
type Action struct {
	Function string
	Args     []string
	SQL      string
}

// Call returns an action executing the named function.
func Call(fn string, args ...string) Action { return Action{Function: fn, Args: args} }

// Inline returns an action running body.
func Inline(body string) Action { return Action{SQL: body} }

// Trigger is a trigger definition.
type Trigger struct {
	Name   string
	Schema string
	Table  string
	Timing Timing
	Events []Event
	// UpdateOf restricts UPDATE triggers to the listed columns.
	UpdateOf []string
	Level    Level
	// When is a condition evaluated before the action runs.
	When   string
	Action Action
}

func (t *Trigger) check() error {
	switch {
	case t.Name == "":
		return prax.NewInvalidInputError("trigger", "name", "trigger name is required")
	case t.Table == "":
		return prax.NewInvalidInputError("trigger", "table", "table is required")
	case len(t.Events) == 0:
		return prax.NewInvalidInputError("trigger", "events", "at least one event is required")
	case t.Action.Function == "" && strings.TrimSpace(t.Action.SQL) == "":
		return prax.NewInvalidInputError("trigger", "action", "a function or inline SQL action is required")
	case t.Action.Function != "" && t.Action.SQL != "":
		return prax.NewInvalidInputError("trigger", "action", "action is either a function or inline SQL")
	}
	seen := make(map[Event]bool, len(t.Events))
	for _, e := range t.Events {
		if e < Insert || e > Truncate {
			return prax.NewInvalidInputError("trigger", "events", "unknown event")
		}
		if seen[e] {
			return prax.NewInvalidInputError("trigger", "events", "duplicate event "+e.String())
		}
		seen[e] = true
	}
	if len(t.UpdateOf) > 0 && !seen[Update] {
		return prax.NewInvalidInputError("trigger", "updateOf", "column list needs an UPDATE event")
	}
	return nil
}

func (t *Trigger) validate(d dialect.DatabaseType) error {
	if err := t.check(); err != nil {
		return err
	}
	hasTruncate := false
	for _, e := range t.Events {
		hasTruncate = hasTruncate || e == Truncate
	}
	switch d {
	case dialect.PostgreSQL:
		if t.Action.Function == "" {
			return d.Unsupported("inline trigger body", "triggers must execute a function")
		}
		if t.Timing == InsteadOf && t.Level == Statement {
			return d.Unsupported("statement-level INSTEAD OF trigger", "INSTEAD OF triggers are row-level")
		}
		if hasTruncate && t.Level == Row {
			return d.Unsupported("row-level TRUNCATE trigger", "TRUNCATE triggers are statement-level")
		}
	case dialect.MySQL:
		switch {
		case t.Level == Statement:
			return d.Unsupported("statement-level trigger", "triggers are FOR EACH ROW")
		case t.Timing == InsteadOf:
			return d.Unsupported("INSTEAD OF trigger", "only BEFORE and AFTER are available")
		case len(t.Events) != 1:
			return d.Unsupported("multi-event trigger", "a trigger has exactly one event")
		case hasTruncate:
			return d.Unsupported("TRUNCATE trigger", "TRUNCATE does not fire triggers")
		case len(t.UpdateOf) > 0:
			return d.Unsupported("UPDATE OF trigger", "column lists are not supported")
		}
	case dialect.SQLite:
		switch {
		case t.Level == Statement:
			return d.Unsupported("statement-level trigger", "triggers are FOR EACH ROW")
		case t.Schema != "":
			return d.Unsupported("schema-qualified trigger", "trigger names cannot be qualified")
		case len(t.Events) != 1:
			return d.Unsupported("multi-event trigger", "a trigger has exactly one event")
		case t.Action.Function != "":
			return d.Unsupported("function trigger action", "the action must be inline SQL")
		case hasTruncate:
			return d.Unsupported("TRUNCATE trigger", "there is no TRUNCATE")
		}
	case dialect.MSSQL:
		switch {
		case t.Timing == Before:
			return d.Unsupported("BEFORE trigger", "only AFTER and INSTEAD OF are available")
		case t.When != "":
			return d.Unsupported("WHEN condition", "test the condition inside the trigger body")
		case hasTruncate:
			return d.Unsupported("TRUNCATE trigger", "TRUNCATE does not fire triggers")
		case len(t.UpdateOf) > 0:
			return d.Unsupported("UPDATE OF trigger", "use UPDATE() inside the trigger body")
		}
	default:
		return d.Unsupported("trigger", "unknown dialect")
	}
	return nil
}

// CreateSQL returns the CREATE TRIGGER statement for d.
func (t *Trigger) CreateSQL(d dialect.DatabaseType) (string, error) {
	if err := t.validate(d); err != nil {
		return "", err
	}
	name := t.qualifiedName(d)
	table := d.QuoteQualified(t.Schema, t.Table)
	var b strings.Builder
	b.WriteString("CREATE TRIGGER " + name)
	if d == dialect.MSSQL {
		b.WriteString(" ON " + table + " " + t.Timing.String() + " " + t.events(d, ", "))
		b.WriteString(" AS\nBEGIN\n    SET NOCOUNT ON;\n")
		for _, line := range strings.Split(strings.TrimSpace(t.Action.body(d)), "\n") {
			b.WriteString("    " + line + "\n")
		}
		b.WriteString("END")
		return b.String(), nil
	}
	b.WriteString(" " + t.Timing.String() + " " + t.events(d, " OR ") + " ON " + table)
	if d == dialect.PostgreSQL && t.Level == Statement {
		b.WriteString(" FOR EACH STATEMENT")
	} else {
		b.WriteString(" FOR EACH ROW")
	}
	if t.When != "" {
		if d == dialect.MySQL {
			b.WriteString(" BEGIN IF " + t.When + " THEN " + semicolon(t.Action.body(d)) + " END IF; END")
			return b.String(), nil
		}
		b.WriteString(" WHEN (" + t.When + ")")
	}
	switch d {
	case dialect.PostgreSQL:
		b.WriteString(" EXECUTE FUNCTION " + t.Action.body(d))
	case dialect.MySQL:
		b.WriteString(" " + strings.TrimSuffix(t.Action.body(d), ";"))
	case dialect.SQLite:
		b.WriteString(" BEGIN " + semicolon(t.Action.SQL) + " END")
	}
	return b.String(), nil
}

func (t *Trigger) events(d dialect.DatabaseType, sep string) string {
	names := make([]string, len(t.Events))
	for i, e := range t.Events {
		names[i] = e.String()
		if e == Update && len(t.UpdateOf) > 0 {
			cols := make([]string, len(t.UpdateOf))
			for j, c := range t.UpdateOf {
				cols[j] = d.QuoteIdent(c)
			}
			names[i] += " OF " + strings.Join(cols, ", ")
		}
	}
	return strings.Join(names, sep)
}

// body renders the action: a function call for PostgreSQL, CALL on MySQL
// and EXEC on SQL Server, or the inline SQL.
func (a Action) body(d dialect.DatabaseType) string {
	if a.Function == "" {
		return semicolon(a.SQL)
	}
	args := strings.Join(a.Args, ", ")
	switch d {
	case dialect.MySQL:
		return "CALL " + a.Function + "(" + args + ")"
	case dialect.MSSQL:
		if args != "" {
			return "EXEC " + a.Function + " " + args + ";"
		}
		return "EXEC " + a.Function + ";"
	}
	return a.Function + "(" + args + ")"
}

func semicolon(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s
}

// qualifiedName returns the trigger name. PostgreSQL triggers live in the
// schema of their table, so only the table is qualified there.
func (t *Trigger) qualifiedName(d dialect.DatabaseType) string {
	if d == dialect.PostgreSQL {
		return d.QuoteQualified(t.Name)
	}
	return d.QuoteQualified(t.Schema, t.Name)
}

// DropSQL returns the statement removing the trigger.
func (t *Trigger) DropSQL(d dialect.DatabaseType) (string, error) {
	if t.Name == "" {
		return "", prax.NewInvalidInputError("trigger", "name", "trigger name is required")
	}
	stmt := "DROP TRIGGER IF EXISTS " + t.qualifiedName(d)
	if d == dialect.PostgreSQL {
		if t.Table == "" {
			return "", prax.NewInvalidInputError("trigger", "table", "table is required")
		}
		stmt += " ON " + d.QuoteQualified(t.Schema, t.Table)
	}
	return stmt, nil
}
