package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerKv_GetSetDeletePersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBadgerKv(dir)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, []byte("a"), []byte("1")))
	require.NoError(t, b.Close())

	b2, err := OpenBadgerKv(dir)
	require.NoError(t, err)
	defer b2.Close()

	v, ok, err := b2.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	require.NoError(t, b2.Delete(ctx, []byte("a")))
	_, ok, _ = b2.Get(ctx, []byte("a"))
	assert.False(t, ok)
}

func TestBadgerKv_ScanRespectsPrefix(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadgerKv(t.TempDir())
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Set(ctx, []byte("D|1"), []byte("1")))
	require.NoError(t, b.Set(ctx, []byte("D|2"), []byte("2")))
	require.NoError(t, b.Set(ctx, []byte("X|1"), []byte("x")))

	entries, err := b.Scan(ctx, []byte("D|"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "D|1", string(entries[0].Key))
	assert.Equal(t, "D|2", string(entries[1].Key))
}
