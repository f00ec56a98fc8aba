package pagefs

import (
	"bytes"
	"context"
	"testing"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPageFs(t *testing.T) (*PageFs, context.Context) {
	t.Helper()
	ctx := context.Background()
	p, err := New(ctx, kv.NewInMemoryKv(), nil, nil)
	require.NoError(t, err)
	return p, ctx
}

func TestPageFs_PageBoundaryRoundTrip(t *testing.T) {
	p, ctx := newTestPageFs(t)
	data := make([]byte, PageSize+1000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	h, err := p.Open(ctx, "/cross.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	n, err := p.Write(ctx, h, 0, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	require.NoError(t, p.Close(ctx, h, false))

	info, err := p.Stat(ctx, "/cross.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, pageCountFor(info.Size))

	h2, err := p.Open(ctx, "/cross.txt", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := p.Read(ctx, h2, 0, len(data))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, out))
}

func TestPageFs_SparseWriteZeroFills(t *testing.T) {
	p, ctx := newTestPageFs(t)
	h, err := p.Open(ctx, "/sparse.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	payload := []byte("sparse data")
	_, err = p.Write(ctx, h, PageSize, payload)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, h, false))

	info, err := p.Stat(ctx, "/sparse.txt")
	require.NoError(t, err)
	assert.EqualValues(t, PageSize+len(payload), info.Size)

	hr, err := p.Open(ctx, "/sparse.txt", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	head, err := p.Read(ctx, hr, 0, PageSize)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(head, make([]byte, PageSize)))

	tail, err := p.Read(ctx, hr, PageSize, len(payload))
	require.NoError(t, err)
	assert.Equal(t, "sparse data", string(tail))
}

func TestPageFs_TruncateShrinkAndGrow(t *testing.T) {
	p, ctx := newTestPageFs(t)
	h, err := p.Open(ctx, "/f", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	_, err = p.Write(ctx, h, 0, bytes.Repeat([]byte{1}, PageSize+100))
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, h, false))

	size := uint64(10)
	require.NoError(t, p.Wstat(ctx, "/f", fs9.StatChanges{Size: &size}))
	info, err := p.Stat(ctx, "/f")
	require.NoError(t, err)
	assert.EqualValues(t, 10, info.Size)
	assert.EqualValues(t, 1, pageCountFor(info.Size))

	grown := uint64(PageSize + 50)
	require.NoError(t, p.Wstat(ctx, "/f", fs9.StatChanges{Size: &grown}))
	hr, err := p.Open(ctx, "/f", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := p.Read(ctx, hr, 10, int(grown-10))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(out, make([]byte, grown-10)))
}

func TestPageFs_RenameAcrossDirectoriesPreservesInode(t *testing.T) {
	p, ctx := newTestPageFs(t)
	_, err := p.Open(ctx, "/a", fs9.OpenFlags{Create: true, Directory: true})
	require.NoError(t, err)
	_, err = p.Open(ctx, "/b", fs9.OpenFlags{Create: true, Directory: true})
	require.NoError(t, err)
	h, err := p.Open(ctx, "/a/f.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	_, err = p.Write(ctx, h, 0, []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, h, false))

	dst := "/b/f.txt"
	require.NoError(t, p.Wstat(ctx, "/a/f.txt", fs9.StatChanges{Name: &dst}))

	_, err = p.Stat(ctx, "/a/f.txt")
	assert.Equal(t, fs9.KindNotFound, fs9.KindOf(err))

	info, err := p.Stat(ctx, "/b/f.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Size)
}

func TestPageFs_ReaddirAndRemove(t *testing.T) {
	p, ctx := newTestPageFs(t)
	_, err := p.Open(ctx, "/d", fs9.OpenFlags{Create: true, Directory: true})
	require.NoError(t, err)
	for _, name := range []string{"/d/a", "/d/b"} {
		h, err := p.Open(ctx, name, fs9.OpenFlags{Create: true, Write: true})
		require.NoError(t, err)
		require.NoError(t, p.Close(ctx, h, false))
	}
	entries, err := p.Readdir(ctx, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/d/a", entries[0].Path)
	assert.Equal(t, "/d/b", entries[1].Path)

	err = p.Remove(ctx, "/d")
	assert.Equal(t, fs9.KindDirectoryNotEmpty, fs9.KindOf(err))
	require.NoError(t, p.Remove(ctx, "/d/a"))
	require.NoError(t, p.Remove(ctx, "/d/b"))
	require.NoError(t, p.Remove(ctx, "/d"))
}

func TestPageFs_ZeroLengthReadReturnsEmpty(t *testing.T) {
	p, ctx := newTestPageFs(t)
	h, err := p.Open(ctx, "/f", fs9.OpenFlags{Create: true, Write: true, Read: true})
	require.NoError(t, err)
	out, err := p.Read(ctx, h, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}
