package load

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax"
	"github.com/syssam/prax/schema/validate"
)

func TestLoad(t *testing.T) {
	cfg := &Config{Paths: []string{"./testdata/valid"}}
	spec, err := cfg.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("testdata", "valid", "schema.prax")}, spec.Files)
	require.Len(t, spec.Schema.Models, 2)
	assert.Equal(t, "users", spec.Schema.Model("User").TableName())
	assert.Len(t, spec.Schema.Policies, 1)
	assert.Len(t, spec.Digest, 64)

	again, err := (&Config{Paths: []string{"testdata/valid/schema.prax"}}).Load()
	require.NoError(t, err)
	assert.Equal(t, spec.Digest, again.Digest)
}

func TestLoad_MultipleFiles(t *testing.T) {
	spec, err := (&Config{Paths: []string{"testdata/multi"}}).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "multi", "a_models.prax"),
		filepath.Join("testdata", "multi", "b_enums.prax"),
	}, spec.Files)
	require.NotNil(t, spec.Schema.Model("Tag"))
	require.NotNil(t, spec.Schema.Enum("Kind"), "enums resolve across files")
}

func TestLoad_DuplicatePaths(t *testing.T) {
	spec, err := (&Config{Paths: []string{"testdata/multi", "testdata/multi/b_enums.prax"}}).Load()
	require.NoError(t, err)
	assert.Len(t, spec.Files, 2)
}

func TestLoad_SyntaxError(t *testing.T) {
	_, err := (&Config{Paths: []string{"testdata/failure"}}).Load()
	require.Error(t, err)
	assert.True(t, prax.IsSyntaxError(err))
	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, filepath.Join("testdata", "failure", "schema.prax"), fe.Path)
	assert.GreaterOrEqual(t, fe.Line, 3)
	assert.Contains(t, err.Error(), "schema.prax:")
}

func TestLoad_ValidationError(t *testing.T) {
	_, err := (&Config{Paths: []string{"testdata/invalid"}}).Load()
	require.Error(t, err)
	assert.True(t, prax.IsValidationError(err))

	spec, err := (&Config{Paths: []string{"testdata/invalid"}, SkipValidation: true}).Load()
	require.NoError(t, err)
	assert.NotNil(t, spec.Schema.Model("User"))
}

func TestLoad_Options(t *testing.T) {
	_, err := (&Config{
		Paths:    []string{"testdata/multi"},
		Validate: []validate.Option{validate.RequireDatasource()},
	}).Load()
	assert.True(t, prax.IsValidationError(err))
}

func TestLoad_Errors(t *testing.T) {
	_, err := (&Config{Paths: []string{"testdata/missing"}}).Load()
	assert.True(t, errors.Is(err, os.ErrNotExist))

	dir := t.TempDir()
	_, err = (&Config{Paths: []string{dir}}).Load()
	assert.ErrorContains(t, err, "no .prax files")
}

func TestSource(t *testing.T) {
	s, err := Source("model A {\n  id Int @id\n}\n")
	require.NoError(t, err)
	assert.NotNil(t, s.Model("A"))

	_, err = Source("model A {\n  id Int @id\n  @@bogus(\n}")
	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "<source>", fe.Path)
}

func TestPosition(t *testing.T) {
	src := "ab\ncd\nef"
	tests := []struct{ offset, line, col int }{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{7, 3, 2},
		{100, 3, 3},
		{-1, 1, 1},
	}
	for _, tt := range tests {
		line, col := Position(src, tt.offset)
		assert.Equal(t, tt.line, line, "offset %d", tt.offset)
		assert.Equal(t, tt.col, col, "offset %d", tt.offset)
	}
}

func TestMarshalSchema(t *testing.T) {
	spec, err := (&Config{Paths: []string{"testdata/valid"}}).Load()
	require.NoError(t, err)
	b, err := MarshalSchema(spec)
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Len(t, doc.Models, 2)
	user := doc.Models[0]
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, "A registered account.", user.Comment)
	assert.Equal(t, []string{"id"}, user.PrimaryKey)
	require.Len(t, user.Indexes, 1)
	assert.True(t, user.Indexes[0].Unique)

	post := doc.Models[1]
	author := post.Fields[3]
	assert.Equal(t, "author", author.Name)
	require.NotNil(t, author.Relation)
	assert.Equal(t, []string{"authorId"}, author.Relation.Fields)
	assert.Equal(t, "Cascade", author.Relation.OnDelete)

	require.Len(t, doc.Enums, 1)
	assert.Equal(t, "ADMINISTRATOR", doc.Enums[0].Values["Admin"])
	assert.Equal(t, []string{"User", "Admin"}, doc.Enums[0].Order)
	require.Len(t, doc.Policies, 1)
	assert.Equal(t, []string{"SELECT"}, doc.Policies[0].Commands)
}
