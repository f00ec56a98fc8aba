package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryKv_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryKv()

	_, ok, err := b.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, []byte("a"), []byte("1")))
	v, ok, err := b.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	require.NoError(t, b.Set(ctx, []byte("a"), []byte("2")))
	v, _, _ = b.Get(ctx, []byte("a"))
	assert.Equal(t, "2", string(v))

	require.NoError(t, b.Delete(ctx, []byte("a")))
	_, ok, _ = b.Get(ctx, []byte("a"))
	assert.False(t, ok)
}

func TestInMemoryKv_ScanOrdersLexicographically(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryKv()

	for _, k := range []string{"D|3", "D|1", "D|2", "X|1"} {
		require.NoError(t, b.Set(ctx, []byte(k), []byte(k)))
	}

	entries, err := b.Scan(ctx, []byte("D|"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "D|1", string(entries[0].Key))
	assert.Equal(t, "D|2", string(entries[1].Key))
	assert.Equal(t, "D|3", string(entries[2].Key))
}

func TestInMemoryKv_ScanEmptyPrefixNoMatch(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryKv()
	require.NoError(t, b.Set(ctx, []byte("a"), []byte("1")))

	entries, err := b.Scan(ctx, []byte("z"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
