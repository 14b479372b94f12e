package prax

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	v, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "forever", []byte("a"), 0))
	require.NoError(t, c.Set(ctx, "short", []byte("b"), time.Minute))
	assert.Equal(t, 2, c.Len())

	v, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), v)
	v[0] = 'x'
	v, _ = c.Get(ctx, "short")
	assert.Equal(t, []byte("b"), v, "stored values are copied")

	now = now.Add(time.Minute)
	v, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 1, c.Len())

	v, _ = c.Get(ctx, "forever")
	assert.Equal(t, []byte("a"), v)

	require.NoError(t, c.Delete(ctx, "forever"))
	v, _ = c.Get(ctx, "forever")
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestCacheKey(t *testing.T) {
	k := CacheKey{Digest: "abc", Dialects: []string{"PostgreSQL", "MSSQL"}, Options: "fk"}
	assert.Equal(t, "prax:abc:PostgreSQL,MSSQL:fk", k.String())
}
