// Package search builds full-text search queries: PostgreSQL tsquery,
// MySQL MATCH ... AGAINST, SQLite FTS5 and SQL Server CONTAINS, plus the
// Atlas Search pipeline for MongoDB.
package search

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/syssam/prax"
	"github.com/syssam/prax/dialect"
	"github.com/syssam/prax/dialect/mongo"
	"github.com/syssam/prax/dialect/sql"
)

// Mode selects how the words of a query combine.
type Mode uint8

// Search modes.
const (
	// Any matches documents containing at least one word.
	Any Mode = iota
	// All matches documents containing every word.
	All
	// Phrase matches the words adjacent and in order.
	Phrase
	// Boolean passes the text to the engine's own operator syntax.
	Boolean
	// Natural uses the engine's natural-language parser.
	Natural
)

var modeNames = [...]string{
	Any:     "any",
	All:     "all",
	Phrase:  "phrase",
	Boolean: "boolean",
	Natural: "natural",
}

func (m Mode) String() string { return modeNames[m] }

// DefaultLanguage is the PostgreSQL text search configuration used when a
// query names none.
const DefaultLanguage = "english"

// Ranking requests a relevance expression selected as "rank" and used for
// ordering.
type Ranking struct {
	// Normalization is the ts_rank normalization bitmask (PostgreSQL).
	Normalization int
	// Weights are the per-column bm25 weights (SQLite).
	Weights []float64
}

// Highlight requests a marked-up fragment selected as "highlight".
type Highlight struct {
	// Column defaults to the first searched column.
	Column   string
	Start    string
	Stop     string
	MaxWords int
	MinWords int
}

// Fuzzy turns words into prefix matches. MaxEdits and PrefixLength only
// apply to MongoDB, which supports edit-distance matching.
type Fuzzy struct {
	MaxEdits     int
	PrefixLength int
}

// Query is a full-text search over the columns of a table. On SQLite the
// table is the FTS5 virtual table and columns restrict the match.
type Query struct {
	Table     string
	Text      string
	Columns   []string
	Mode      Mode
	Language  string
	Rank      *Ranking
	Highlight *Highlight
	Fuzzy     *Fuzzy
	// Key joins CONTAINSTABLE results back to Table on SQL Server.
	// Defaults to "id".
	Key string
	// Fields are the selected columns; empty selects every column.
	Fields []string
	// Where is ANDed with the match condition.
	Where sql.Filter
	// Limit caps the rows when positive.
	Limit  int
	Offset int
}

// terms splits text into words, dropping every operator character.
func terms(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func (q *Query) check(d dialect.DatabaseType) error {
	switch {
	case q.Mode > Natural:
		return prax.NewInvalidInputError("search", "mode", "unknown search mode")
	case strings.TrimSpace(q.Text) == "":
		return prax.NewInvalidInputError("search", "text", "search text is required")
	case q.Table == "":
		return prax.NewInvalidInputError("search", "table", "table is required")
	case len(q.Columns) == 0 && d != dialect.SQLite:
		return prax.NewInvalidInputError("search", "columns", "at least one column is required")
	case q.Mode != Boolean && q.Mode != Natural && len(terms(q.Text)) == 0:
		return prax.NewInvalidInputError("search", "text", "search text has no words")
	}
	if q.Highlight != nil && (d == dialect.MySQL || d == dialect.MSSQL) {
		return d.Unsupported("search highlight", "no built-in highlight function")
	}
	if q.Highlight != nil && q.Highlight.Column != "" && d == dialect.SQLite && q.columnIndex(q.Highlight.Column) < 0 {
		return prax.NewInvalidInputError("search", "highlight", "highlight column "+q.Highlight.Column+" is not searched")
	}
	return nil
}

// QueryText returns the query string bound as the search parameter for d.
func (q *Query) QueryText(d dialect.DatabaseType) string {
	words := terms(q.Text)
	prefix := q.Fuzzy != nil
	switch d {
	case dialect.PostgreSQL:
		if q.Mode == Boolean || q.Mode == Natural {
			return q.Text
		}
		for i, w := range words {
			if prefix {
				words[i] = w + ":*"
			}
		}
		return strings.Join(words, map[Mode]string{Any: " | ", All: " & ", Phrase: " <-> "}[q.Mode])
	case dialect.MySQL:
		switch q.Mode {
		case Boolean, Natural:
			return q.Text
		case Phrase:
			return `"` + strings.Join(words, " ") + `"`
		}
		for i, w := range words {
			if q.Mode == All {
				w = "+" + w
			}
			if prefix {
				w += "*"
			}
			words[i] = w
		}
		return strings.Join(words, " ")
	case dialect.SQLite:
		var match string
		switch q.Mode {
		case Boolean:
			match = q.Text
		case Phrase:
			match = fts5String(strings.Join(words, " "))
		default:
			for i, w := range words {
				words[i] = fts5String(w)
				if prefix {
					words[i] += "*"
				}
			}
			sep := " OR "
			if q.Mode != Any {
				sep = " AND "
			}
			match = strings.Join(words, sep)
		}
		if len(q.Columns) > 0 {
			match = "{" + strings.Join(q.Columns, " ") + "} : (" + match + ")"
		}
		return match
	case dialect.MSSQL:
		switch q.Mode {
		case Boolean, Natural:
			return q.Text
		case Phrase:
			return tsqlString(strings.Join(words, " "))
		}
		for i, w := range words {
			if prefix {
				w += "*"
			}
			words[i] = tsqlString(w)
		}
		sep := " OR "
		if q.Mode == All {
			sep = " AND "
		}
		return strings.Join(words, sep)
	}
	return q.Text
}

func fts5String(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func tsqlString(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func (q *Query) columnIndex(col string) int {
	for i, c := range q.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func (q *Query) language() string {
	if q.Language == "" {
		return DefaultLanguage
	}
	return q.Language
}

// emitter writes the search parameter, binding it once on dialects with
// numbered placeholders and at every use otherwise.
type emitter struct {
	*sql.Builder
	text  string
	bound string
}

func (e *emitter) param() {
	if e.bound != "" {
		e.WriteString(e.bound)
		return
	}
	n := len(e.Params())
	e.Arg(e.text)
	if e.Dialect().Numbered() {
		e.bound = e.Dialect().Placeholder(n + 1)
	}
}

func (q *Query) document(d dialect.DatabaseType) string {
	cfg := d.Literal(q.language())
	if len(q.Columns) == 1 {
		return "to_tsvector(" + cfg + ", " + d.QuoteColumn(q.Columns[0]) + ")"
	}
	parts := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		parts[i] = "coalesce(" + d.QuoteColumn(c) + ", '')"
	}
	return "to_tsvector(" + cfg + ", " + strings.Join(parts, " || ' ' || ") + ")"
}

func (q *Query) tsquery(e *emitter) {
	fn := "to_tsquery"
	switch q.Mode {
	case Boolean:
		fn = "websearch_to_tsquery"
	case Natural:
		fn = "plainto_tsquery"
	}
	e.WriteString(fn + "(" + e.Dialect().Literal(q.language()) + ", ")
	e.param()
	e.WriteByte(')')
}

func (q *Query) match(e *emitter) {
	d := e.Dialect()
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = d.QuoteColumn(c)
	}
	switch d {
	case dialect.PostgreSQL:
		e.WriteString(q.document(d) + " @@ ")
		q.tsquery(e)
	case dialect.MySQL:
		e.WriteString("MATCH (" + strings.Join(cols, ", ") + ") AGAINST (")
		e.param()
		if q.Mode == Natural {
			e.WriteString(" IN NATURAL LANGUAGE MODE)")
		} else {
			e.WriteString(" IN BOOLEAN MODE)")
		}
	case dialect.SQLite:
		e.WriteString(d.QuoteIdent(q.Table) + " MATCH ")
		e.param()
	case dialect.MSSQL:
		fn := "CONTAINS"
		if q.Mode == Natural {
			fn = "FREETEXT"
		}
		e.WriteString(fn + "((" + strings.Join(cols, ", ") + "), ")
		e.param()
		q.mssqlLanguage(e)
		e.WriteByte(')')
	}
}

func (q *Query) mssqlLanguage(e *emitter) {
	if q.Language != "" {
		e.WriteString(", LANGUAGE " + e.Dialect().Literal(q.Language))
	}
}

// Condition renders the match predicate alone, numbering placeholders
// from offset+1. Ranking and highlighting are ignored.
func (q *Query) Condition(d dialect.DatabaseType, offset int) (string, []sql.Value, error) {
	if err := q.check(d); err != nil {
		return "", nil, err
	}
	e := &emitter{Builder: sql.NewBuilder(d), text: q.QueryText(d)}
	q.match(e)
	stmt := e.Statement()
	return sql.RenumberFor(d, stmt.SQL, offset), stmt.Params, nil
}

// Build renders the SELECT statement. A ranked query orders by relevance,
// best match first.
func (q *Query) Build(d dialect.DatabaseType) (sql.Statement, error) {
	if err := q.check(d); err != nil {
		return sql.Statement{}, err
	}
	e := &emitter{Builder: sql.NewBuilder(d), text: q.QueryText(d)}
	table := d.QuoteIdent(q.Table)
	ranked := d == dialect.MSSQL && q.Rank != nil

	e.WriteString("SELECT ")
	switch {
	case len(q.Fields) > 0:
		fields := make([]string, len(q.Fields))
		for i, f := range q.Fields {
			fields[i] = d.QuoteColumn(f)
		}
		e.WriteString(strings.Join(fields, ", "))
	case ranked:
		e.WriteString(table + ".*")
	default:
		e.WriteString("*")
	}
	rank := d.QuoteIdent("rank")
	if q.Rank != nil {
		e.WriteString(", ")
		q.rank(e)
		e.WriteString(" AS " + rank)
	}
	if q.Highlight != nil {
		e.WriteString(", ")
		q.highlight(e)
		e.WriteString(" AS " + d.QuoteIdent("highlight"))
	}
	e.WriteString(" FROM " + table)
	if ranked {
		fn := "CONTAINSTABLE"
		if q.Mode == Natural {
			fn = "FREETEXTTABLE"
		}
		cols := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			cols[i] = d.QuoteColumn(c)
		}
		e.WriteString(" INNER JOIN " + fn + "(" + table + ", (" + strings.Join(cols, ", ") + "), ")
		e.param()
		q.mssqlLanguage(e)
		key := q.Key
		if key == "" {
			key = "id"
		}
		e.WriteString(") AS ft ON " + table + "." + d.QuoteIdent(key) + " = ft.[KEY]")
		if !q.Where.IsNone() {
			e.WriteString(" WHERE ")
			e.Filter(q.Where)
		}
	} else {
		e.WriteString(" WHERE ")
		q.match(e)
		if !q.Where.IsNone() {
			e.WriteString(" AND ")
			e.Filter(q.Where)
		}
	}
	if q.Rank != nil {
		e.WriteString(" ORDER BY " + rank)
		if d != dialect.SQLite {
			e.WriteString(" DESC")
		}
	}
	stmt := e.Statement()
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	stmt.SQL = d.Paginate(stmt.SQL, limit, q.Offset)
	stmt.ExpectsRows = true
	return stmt, nil
}

func (q *Query) rank(e *emitter) {
	d := e.Dialect()
	switch d {
	case dialect.PostgreSQL:
		e.WriteString("ts_rank(" + q.document(d) + ", ")
		q.tsquery(e)
		if q.Rank.Normalization > 0 {
			e.WriteString(", " + strconv.Itoa(q.Rank.Normalization))
		}
		e.WriteByte(')')
	case dialect.MySQL:
		q.match(e)
	case dialect.SQLite:
		e.WriteString("bm25(" + d.QuoteIdent(q.Table))
		for _, w := range q.Rank.Weights {
			e.WriteString(", " + strconv.FormatFloat(w, 'f', -1, 64))
		}
		e.WriteByte(')')
	case dialect.MSSQL:
		e.WriteString("ft.RANK")
	}
}

func (q *Query) highlight(e *emitter) {
	d := e.Dialect()
	h := q.Highlight
	start, stop := h.Start, h.Stop
	if start == "" {
		start = "<b>"
	}
	if stop == "" {
		stop = "</b>"
	}
	switch d {
	case dialect.PostgreSQL:
		col := h.Column
		if col == "" {
			col = q.Columns[0]
		}
		opts := "StartSel=" + start + ", StopSel=" + stop
		if h.MaxWords > 0 {
			opts += ", MaxWords=" + strconv.Itoa(h.MaxWords)
		}
		if h.MinWords > 0 {
			opts += ", MinWords=" + strconv.Itoa(h.MinWords)
		}
		e.WriteString("ts_headline(" + d.Literal(q.language()) + ", " + d.QuoteColumn(col) + ", ")
		q.tsquery(e)
		e.WriteString(", " + d.Literal(opts) + ")")
	case dialect.SQLite:
		idx := 0
		if h.Column != "" {
			idx = q.columnIndex(h.Column)
		}
		e.WriteString("highlight(" + d.QuoteIdent(q.Table) + ", " + strconv.Itoa(idx) + ", " + d.Literal(start) + ", " + d.Literal(stop) + ")")
	}
}

// Mongo returns the Atlas Search pipeline for the query. Boolean and
// natural modes search the text as given.
func (q *Query) Mongo() (mongo.Pipeline, error) {
	s := mongo.Search{
		Query:     q.Text,
		Path:      q.Columns,
		Phrase:    q.Mode == Phrase,
		Highlight: q.Highlight != nil,
	}
	if q.Fuzzy != nil {
		s.Fuzzy = &mongo.Fuzzy{MaxEdits: q.Fuzzy.MaxEdits, PrefixLength: q.Fuzzy.PrefixLength}
		if s.Fuzzy.MaxEdits == 0 {
			s.Fuzzy.MaxEdits = 1
		}
	}
	p, err := s.Pipeline()
	if err != nil {
		return nil, err
	}
	if !q.Where.IsNone() {
		p = append(p, mongo.Match(q.Where))
	}
	if q.Offset > 0 {
		p = append(p, mongo.Skip(int64(q.Offset)))
	}
	if q.Limit > 0 {
		p = append(p, mongo.Limit(int64(q.Limit)))
	}
	return p, nil
}
