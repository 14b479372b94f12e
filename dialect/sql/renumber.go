package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/prax/dialect"
)

// RenumberParams shifts every $n placeholder in query by offset in a
// single pass. Only digits directly after '$' are rewritten; any other
// '$' (dollar-quoted bodies, $$ delimiters, jsonpath) is preserved.
// RenumberParams(s, 0) returns s unchanged.
func RenumberParams(query string, offset int) string {
	return renumber(query, "$", offset)
}

// RenumberFor shifts the numbered placeholders of the dialect by offset.
// Positional '?' placeholders need no renumbering and are left as is.
func RenumberFor(d dialect.DatabaseType, query string, offset int) string {
	switch d {
	case dialect.PostgreSQL:
		return renumber(query, "$", offset)
	case dialect.MSSQL:
		return renumber(query, "@P", offset)
	default:
		return query
	}
}

func renumber(query, marker string, offset int) string {
	if offset == 0 || !strings.Contains(query, marker) {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); {
		if !strings.HasPrefix(query[i:], marker) {
			b.WriteByte(query[i])
			i++
			continue
		}
		j := i + len(marker)
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+len(marker) {
			b.WriteString(marker)
			i = j
			continue
		}
		n, err := strconv.Atoi(query[i+len(marker) : j])
		if err != nil {
			b.WriteString(query[i:j])
		} else {
			b.WriteString(marker)
			b.WriteString(strconv.Itoa(n + offset))
		}
		i = j
	}
	return b.String()
}

// CountParams returns the highest $n placeholder number in query, which
// is the parameter count of a well-formed PostgreSQL statement.
func CountParams(query string) int {
	return countParams(query, "$")
}

// CountParamsFor returns the number of placeholders the dialect's
// statement binds: the highest number for numbered styles, the number of
// '?' markers otherwise.
func CountParamsFor(d dialect.DatabaseType, query string) int {
	switch d {
	case dialect.PostgreSQL:
		return countParams(query, "$")
	case dialect.MSSQL:
		return countParams(query, "@P")
	default:
		return strings.Count(query, "?")
	}
}

func countParams(query, marker string) int {
	highest := 0
	for i := strings.Index(query, marker); i >= 0; {
		j := i + len(marker)
		k := j
		for k < len(query) && query[k] >= '0' && query[k] <= '9' {
			k++
		}
		if n, err := strconv.Atoi(query[j:k]); err == nil && n > highest {
			highest = n
		}
		next := strings.Index(query[k:], marker)
		if next < 0 {
			break
		}
		i = k + next
	}
	return highest
}
