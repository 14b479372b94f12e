package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/prax/dialect"
)

func TestRenumberParams(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		offset int
		want   string
	}{
		{"Simple", "SELECT $1, $2", 3, "SELECT $4, $5"},
		{"MultiDigit", "a = $10 AND b = $9", 1, "a = $11 AND b = $10"},
		{"DollarQuote", "DO $$ BEGIN RAISE NOTICE '$'; END $$; SELECT $1", 2, "DO $$ BEGIN RAISE NOTICE '$'; END $$; SELECT $3"},
		{"TrailingDollar", "SELECT 'a$'", 5, "SELECT 'a$'"},
		{"JSONPath", "data @? '$.a' AND id = $1", 1, "data @? '$.a' AND id = $2"},
		{"NoPlaceholders", "SELECT 1", 4, "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenumberParams(tt.in, tt.offset))
		})
	}
}

func TestRenumberParams_Idempotent(t *testing.T) {
	for _, s := range []string{"", "$", "$$", "$1", "x$1y$22", "$a$1", "SELECT $1; SELECT $2"} {
		assert.Equal(t, s, RenumberParams(s, 0))
	}
}

func TestRenumberFor(t *testing.T) {
	assert.Equal(t, "SELECT $3", RenumberFor(dialect.PostgreSQL, "SELECT $1", 2))
	assert.Equal(t, "SELECT @P3, @P4", RenumberFor(dialect.MSSQL, "SELECT @P1, @P2", 2))
	assert.Equal(t, "SELECT ?", RenumberFor(dialect.MySQL, "SELECT ?", 2))
	assert.Equal(t, "SELECT ?", RenumberFor(dialect.SQLite, "SELECT ?", 2))
}

func TestCountParams(t *testing.T) {
	assert.Equal(t, 0, CountParams("SELECT 1"))
	assert.Equal(t, 3, CountParams("SELECT $1, $3, $2"))
	assert.Equal(t, 12, CountParams("$$ $12 $"))
	assert.Equal(t, 2, CountParamsFor(dialect.MySQL, "a = ? AND b = ?"))
	assert.Equal(t, 2, CountParamsFor(dialect.MSSQL, "a = @P1 AND b = @P2"))
}
