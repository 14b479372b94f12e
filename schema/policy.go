package schema

import "strings"

// PolicyType selects how a policy combines with others on the same table.
type PolicyType uint8

// Policy types.
const (
	Permissive PolicyType = iota
	Restrictive
)

// String returns the SQL spelling of the policy type.
func (t PolicyType) String() string {
	if t == Restrictive {
		return "RESTRICTIVE"
	}
	return "PERMISSIVE"
}

// PolicyCommand is a statement kind a policy applies to.
type PolicyCommand uint8

// Policy commands.
const (
	CommandAll PolicyCommand = iota + 1
	CommandSelect
	CommandInsert
	CommandUpdate
	CommandDelete
)

// String returns the SQL spelling of the command.
func (c PolicyCommand) String() string {
	switch c {
	case CommandAll:
		return "ALL"
	case CommandSelect:
		return "SELECT"
	case CommandInsert:
		return "INSERT"
	case CommandUpdate:
		return "UPDATE"
	case CommandDelete:
		return "DELETE"
	}
	return "invalid"
}

// ParsePolicyCommand parses a command name case-insensitively.
func ParsePolicyCommand(s string) (PolicyCommand, bool) {
	switch strings.ToUpper(s) {
	case "ALL":
		return CommandAll, true
	case "SELECT":
		return CommandSelect, true
	case "INSERT":
		return CommandInsert, true
	case "UPDATE":
		return CommandUpdate, true
	case "DELETE":
		return CommandDelete, true
	}
	return 0, false
}

// BlockOperation is a SQL Server block predicate operation.
type BlockOperation uint8

// Block operations.
const (
	AfterInsert BlockOperation = iota + 1
	AfterUpdate
	BeforeUpdate
	BeforeDelete
)

// String returns the T-SQL spelling of the operation.
func (o BlockOperation) String() string {
	switch o {
	case AfterInsert:
		return "AFTER INSERT"
	case AfterUpdate:
		return "AFTER UPDATE"
	case BeforeUpdate:
		return "BEFORE UPDATE"
	case BeforeDelete:
		return "BEFORE DELETE"
	}
	return "invalid"
}

// ParseBlockOperation parses names such as AFTER_INSERT, AfterInsert or
// "AFTER INSERT".
func ParseBlockOperation(s string) (BlockOperation, bool) {
	norm := strings.NewReplacer("_", "", " ", "").Replace(strings.ToUpper(s))
	switch norm {
	case "AFTERINSERT":
		return AfterInsert, true
	case "AFTERUPDATE":
		return AfterUpdate, true
	case "BEFOREUPDATE":
		return BeforeUpdate, true
	case "BEFOREDELETE":
		return BeforeDelete, true
	}
	return 0, false
}

// Policy is an abstract row-level security policy.
type Policy struct {
	Name string
	// Table is the name of the protected model.
	Table    string
	Type     PolicyType
	Commands []PolicyCommand
	// Roles are the grantees; empty means PUBLIC.
	Roles []string
	Using string
	Check string
	// MSSQLSchema is the schema holding the predicate function and the
	// security policy; defaults to "Security".
	MSSQLSchema string
	// MSSQLBlockOps overrides the block predicates derived from Commands.
	MSSQLBlockOps []BlockOperation
	// MSSQLUsing replaces the translated USING expression on SQL Server.
	MSSQLUsing string
	Doc        string
	Span       Span
}

// HasCommand reports whether the policy applies to the command, either
// directly or through ALL.
func (p *Policy) HasCommand(c PolicyCommand) bool {
	for _, pc := range p.Commands {
		if pc == c || pc == CommandAll {
			return true
		}
	}
	return false
}

// AppliesToAll reports whether the command set contains ALL.
func (p *Policy) AppliesToAll() bool {
	for _, pc := range p.Commands {
		if pc == CommandAll {
			return true
		}
	}
	return false
}
