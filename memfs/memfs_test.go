package memfs

import (
	"context"
	"testing"

	"github.com/fs9/fs9fs/fs9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFs_WriteThenReadRoundTrips(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)

	h, err := m.Open(ctx, "/t.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	n, err := m.Write(ctx, h, 0, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	require.NoError(t, m.Close(ctx, h, false))

	info, err := m.Stat(ctx, "/t.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 11, info.Size)

	h2, err := m.Open(ctx, "/t.txt", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	data, err := m.Read(ctx, h2, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	require.NoError(t, m.Close(ctx, h2, false))
}

func TestMemoryFs_ReaddirListsChildren(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)

	_, err := m.Open(ctx, "/d", fs9.OpenFlags{Create: true, Directory: true})
	require.NoError(t, err)
	for _, name := range []string{"/d/a.txt", "/d/b.txt"} {
		h, err := m.Open(ctx, name, fs9.OpenFlags{Create: true, Write: true})
		require.NoError(t, err)
		require.NoError(t, m.Close(ctx, h, false))
	}

	entries, err := m.Readdir(ctx, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/d/a.txt", entries[0].Path)
	assert.Equal(t, "/d/b.txt", entries[1].Path)
}

func TestMemoryFs_HandleInvalidAfterClose(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)
	h, err := m.Open(ctx, "/t.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, h, false))

	_, err = m.Read(ctx, h, 0, 10)
	assert.Equal(t, fs9.KindInvalidHandle, fs9.KindOf(err))

	err = m.Close(ctx, h, false)
	assert.Equal(t, fs9.KindInvalidHandle, fs9.KindOf(err))
}

func TestMemoryFs_RemoveNonEmptyDirFails(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)
	_, err := m.Open(ctx, "/d", fs9.OpenFlags{Create: true, Directory: true})
	require.NoError(t, err)
	h, err := m.Open(ctx, "/d/a.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, h, false))

	err = m.Remove(ctx, "/d")
	assert.Equal(t, fs9.KindDirectoryNotEmpty, fs9.KindOf(err))

	require.NoError(t, m.Remove(ctx, "/d/a.txt"))
	require.NoError(t, m.Remove(ctx, "/d"))
}

func TestMemoryFs_AppendIgnoresOffset(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)
	h, err := m.Open(ctx, "/log", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	_, err = m.Write(ctx, h, 0, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, h, false))

	h2, err := m.Open(ctx, "/log", fs9.OpenFlags{Write: true, Append: true})
	require.NoError(t, err)
	_, err = m.Write(ctx, h2, 0, []byte("def"))
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, h2, false))

	info, err := m.Stat(ctx, "/log")
	require.NoError(t, err)
	assert.EqualValues(t, 6, info.Size)
}

func TestMemoryFs_RenameDirectoryPreservesChildIdentity(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)
	_, err := m.Open(ctx, "/d", fs9.OpenFlags{Create: true, Directory: true})
	require.NoError(t, err)
	h, err := m.Open(ctx, "/d/a.txt", fs9.OpenFlags{Create: true, Write: true})
	require.NoError(t, err)
	_, err = m.Write(ctx, h, 0, []byte("x"))
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, h, false))

	newName := "/d2"
	require.NoError(t, m.Wstat(ctx, "/d", fs9.StatChanges{Name: &newName}))

	_, err = m.Stat(ctx, "/d/a.txt")
	assert.Equal(t, fs9.KindNotFound, fs9.KindOf(err))

	info, err := m.Stat(ctx, "/d2/a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.Size)
}

func TestMemoryFs_SymlinkCreation(t *testing.T) {
	ctx := context.Background()
	m := New(nil, nil)
	target := "/t.txt"
	require.NoError(t, m.Wstat(ctx, "/link", fs9.StatChanges{SymlinkTarget: &target}))

	info, err := m.Stat(ctx, "/link")
	require.NoError(t, err)
	assert.Equal(t, fs9.Symlink, info.Type)
	assert.Equal(t, target, info.SymlinkTarget)
	assert.EqualValues(t, 0o777, info.Mode)
}
