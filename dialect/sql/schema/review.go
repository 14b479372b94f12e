package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
)

// Finding is one issue found in a planned migration.
type Finding struct {
	Table   string
	Column  string
	Message string
	// Breaking marks changes that lose data or fail on existing rows.
	Breaking bool
}

func (f *Finding) Error() string {
	if f.Column != "" {
		return fmt.Sprintf("%s.%s: %s", f.Table, f.Column, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Table, f.Message)
}

// ReviewResult holds the findings of a migration review.
type ReviewResult struct {
	Errors   []*Finding
	Warnings []*Finding
}

// HasErrors returns true if there are any errors.
func (r *ReviewResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings.
func (r *ReviewResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if any finding is breaking.
func (r *ReviewResult) HasBreakingChanges() bool {
	for _, fs := range [][]*Finding{r.Errors, r.Warnings} {
		for _, f := range fs {
			if f.Breaking {
				return true
			}
		}
	}
	return false
}

// String returns a human-readable summary of the review.
func (r *ReviewResult) String() string {
	var sb strings.Builder
	write := func(title string, fs []*Finding) {
		if len(fs) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, f := range fs {
			sb.WriteString("  - " + f.Error())
			if f.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	write("Errors", r.Errors)
	write("Warnings", r.Warnings)
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ReviewOption configures a migration review.
type ReviewOption func(*reviewConfig)

type reviewConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn reports dropped columns as warnings.
func AllowDropColumn() ReviewOption {
	return func(c *reviewConfig) { c.allowDropColumn = true }
}

// AllowDropTable reports dropped tables as warnings.
func AllowDropTable() ReviewOption {
	return func(c *reviewConfig) { c.allowDropTable = true }
}

// AllowDropIndex reports dropped indexes as warnings.
func AllowDropIndex() ReviewOption {
	return func(c *reviewConfig) { c.allowDropIndex = true }
}

// AllowNullToNotNull reports nullable columns becoming NOT NULL as warnings.
func AllowNullToNotNull() ReviewOption {
	return func(c *reviewConfig) { c.allowNullToNotNull = true }
}

// Review inspects planned changes. Drops and NULL to NOT NULL changes are
// errors unless allowed; type changes, new NOT NULL columns without a
// default and new unique indexes are warnings.
func Review(changes []schema.Change, opts ...ReviewOption) *ReviewResult {
	cfg := &reviewConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	r := &ReviewResult{}
	add := func(allowed bool, f *Finding) {
		if allowed {
			r.Warnings = append(r.Warnings, f)
		} else {
			r.Errors = append(r.Errors, f)
		}
	}
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropTable:
			add(cfg.allowDropTable, &Finding{Table: c.T.Name, Message: "table will be dropped", Breaking: true})
		case *schema.ModifyTable:
			reviewTable(c.T.Name, c.Changes, cfg, r, add)
		}
	}
	return r
}

func reviewTable(table string, changes []schema.Change, cfg *reviewConfig, r *ReviewResult, add func(bool, *Finding)) {
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.DropColumn:
			add(cfg.allowDropColumn, &Finding{Table: table, Column: c.C.Name, Message: "column will be dropped", Breaking: true})
		case *schema.AddColumn:
			if !c.C.Type.Null && c.C.Default == nil && !generated(c.C) {
				r.Warnings = append(r.Warnings, &Finding{
					Table:   table,
					Column:  c.C.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
		case *schema.ModifyColumn:
			if c.Change.Is(schema.ChangeType) {
				r.Warnings = append(r.Warnings, &Finding{
					Table:   table,
					Column:  c.To.Name,
					Message: fmt.Sprintf("column type changing from %s to %s", typeString(c.From.Type.Type), typeString(c.To.Type.Type)),
				})
			}
			if c.Change.Is(schema.ChangeNull) && c.From.Type.Null && !c.To.Type.Null {
				add(cfg.allowNullToNotNull, &Finding{
					Table:    table,
					Column:   c.To.Name,
					Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
					Breaking: true,
				})
			}
		case *schema.DropIndex:
			add(cfg.allowDropIndex, &Finding{Table: table, Message: fmt.Sprintf("index %q will be dropped", c.I.Name)})
		case *schema.AddIndex:
			if c.I.Unique {
				r.Warnings = append(r.Warnings, &Finding{
					Table:   table,
					Message: fmt.Sprintf("adding unique index %q may fail if duplicate values exist", c.I.Name),
				})
			}
		}
	}
}

// generated reports whether the database fills the column itself.
func generated(c *schema.Column) bool {
	if _, ok := c.Type.Type.(*postgres.SerialType); ok {
		return true
	}
	for _, a := range c.Attrs {
		switch a.(type) {
		case *identity, *mysql.AutoIncrement, *sqlite.AutoIncrement:
			return true
		}
	}
	return false
}
