package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/prax/compiler"
)

func TestWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	w := NewWriter(dir).WithWorkers(2)
	files := []compiler.File{
		// goimports adds the missing import and fixes the layout.
		{Path: "a.go", Content: []byte("package models\nfunc Now() time.Time { return time.Now() }\n")},
		{Path: "nested/README.md", Content: []byte("not Go")},
	}
	require.NoError(t, w.Write(context.Background(), files))

	b, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `import "time"`)
	b, err = os.ReadFile(filepath.Join(dir, "nested", "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "not Go", string(b))

	m := w.Metrics()
	assert.Equal(t, 2, m.FilesWritten)
	assert.Positive(t, m.TotalBytes)
}

func TestWriter_FormatError(t *testing.T) {
	dir := t.TempDir()
	err := NewWriter(dir).Write(context.Background(), []compiler.File{
		{Path: "broken.go", Content: []byte("package models\nfunc {")},
	})
	require.Error(t, err)
	assert.True(t, IsGenerationError(err))
	_, err = os.Stat(filepath.Join(dir, "broken.go.error"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "broken.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_Errors(t *testing.T) {
	err := NewWriter("").Write(context.Background(), nil)
	assert.True(t, IsConfigError(err))

	dir := t.TempDir()
	for _, p := range []string{"../escape.go", "/abs.go"} {
		err = NewWriter(dir).Write(context.Background(), []compiler.File{{Path: p}})
		assert.True(t, IsGenerationError(err), p)
	}
}

func TestWriter_Generated(t *testing.T) {
	g, err := New(WithPackage("blog"))
	require.NoError(t, err)
	files, err := g.Generate(context.Background(), parse(t, blog))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, NewWriter(dir).Write(context.Background(), files))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(files))
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(dir, f.Path))
		require.NoError(t, err)
		assert.Contains(t, string(b), "package blog")
	}
}
