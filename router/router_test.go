package router

import (
	"context"
	"testing"

	"github.com/fs9/fs9fs/fs9"
	"github.com/fs9/fs9fs/internal/clock"
	"github.com/fs9/fs9fs/internal/logger"
	"github.com/fs9/fs9fs/memfs"
	"github.com/fs9/fs9fs/namespace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemfs(t *testing.T) *memfs.MemoryFs {
	t.Helper()
	return memfs.New(clock.New(), logger.New("test"))
}

func mkdirAll(t *testing.T, ctx context.Context, p fs9.Provider, dirs ...fs9.Path) {
	t.Helper()
	for _, d := range dirs {
		h, err := p.Open(ctx, d, fs9.OpenFlags{Create: true, Directory: true})
		require.NoError(t, err)
		require.NoError(t, p.Close(ctx, h, false))
	}
}

func writeFile(t *testing.T, ctx context.Context, p fs9.Provider, path fs9.Path, data []byte) {
	t.Helper()
	h, err := p.Open(ctx, path, fs9.OpenFlags{Write: true, Create: true})
	require.NoError(t, err)
	_, err = p.Write(ctx, h, 0, data)
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, h, true))
}

// TestRouter_UnionReaddirMergesByNameFirstSeenWins covers spec §8:
// layer A has {a, shared}, layer B stacked above with MBEFORE has
// {b, shared}; readdir(target) must return [a, b, shared] where
// shared is B's entry (first-seen wins, B is walked first).
func TestRouter_UnionReaddirMergesByNameFirstSeenWins(t *testing.T) {
	ctx := context.Background()
	a := newMemfs(t)
	b := newMemfs(t)

	mkdirAll(t, ctx, a, "/local-a")
	writeFile(t, ctx, a, "/local-a/a.txt", []byte("from-a"))
	writeFile(t, ctx, a, "/local-a/shared.txt", []byte("from-a-shared"))

	mkdirAll(t, ctx, b, "/local-b")
	writeFile(t, ctx, b, "/local-b/b.txt", []byte("from-b"))
	writeFile(t, ctx, b, "/local-b/shared.txt", []byte("from-b-shared"))

	ns := namespace.New()
	ns.Bind(a, "/local-a", "/mnt", 0)
	ns.Bind(b, "/local-b", "/mnt", namespace.MBefore)

	r := New(ns, nil)
	entries, err := r.Readdir(ctx, "/mnt")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[fs9.BaseName(e.Path)] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["b.txt"])
	assert.True(t, names["shared.txt"])

	// shared.txt must resolve to B's content since B is walked first.
	provider, local, err := r.ResolveForWrite(ctx, "/mnt/shared.txt")
	require.NoError(t, err)
	h, err := provider.Open(ctx, local, fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	data, err := provider.Read(ctx, h, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "from-b-shared", string(data))
}

func TestRouter_IsLocalTrueOnlyUnderAMount(t *testing.T) {
	ns := namespace.New()
	ns.Bind(newMemfs(t), "/local", "/mnt", 0)
	r := New(ns, nil)

	assert.True(t, r.IsLocal("/mnt"))
	assert.True(t, r.IsLocal("/mnt/sub/file"))
	assert.False(t, r.IsLocal("/elsewhere"))
}

func TestRouter_CrossMountRenameFails(t *testing.T) {
	ctx := context.Background()
	a := newMemfs(t)
	b := newMemfs(t)
	mkdirAll(t, ctx, a, "/local-a")
	mkdirAll(t, ctx, b, "/local-b")
	writeFile(t, ctx, a, "/local-a/f.txt", []byte("hi"))

	ns := namespace.New()
	ns.Bind(a, "/local-a", "/mnt-a", 0)
	ns.Bind(b, "/local-b", "/mnt-b", 0)
	r := New(ns, nil)

	target := fs9.Path("/mnt-b/f.txt")
	err := r.Wstat(ctx, "/mnt-a/f.txt", fs9.StatChanges{Name: &target})
	require.Error(t, err)
	assert.Equal(t, fs9.KindInvalidArgument, fs9.KindOf(err))
}

func TestRouter_SameMountRenameSucceeds(t *testing.T) {
	ctx := context.Background()
	a := newMemfs(t)
	mkdirAll(t, ctx, a, "/local")
	writeFile(t, ctx, a, "/local/f.txt", []byte("hi"))

	ns := namespace.New()
	ns.Bind(a, "/local", "/mnt", 0)
	r := New(ns, nil)

	target := fs9.Path("/mnt/g.txt")
	err := r.Wstat(ctx, "/mnt/f.txt", fs9.StatChanges{Name: &target})
	require.NoError(t, err)

	info, err := r.Stat(ctx, "/mnt/g.txt")
	require.NoError(t, err)
	assert.Equal(t, fs9.Regular, info.Type)
}

// TestRouter_WriteCreationPicksMCreateLayer covers spec §8 scenario 6:
// bind /local/a at /mnt (MREPL), bind /local/b at /mnt (MBEFORE,
// MCREATE); write /mnt/new.txt; the file appears in /local/b/new.txt
// only.
func TestRouter_WriteCreationPicksMCreateLayer(t *testing.T) {
	ctx := context.Background()
	a := newMemfs(t)
	b := newMemfs(t)
	mkdirAll(t, ctx, a, "/local-a")
	mkdirAll(t, ctx, b, "/local-b")

	ns := namespace.New()
	ns.Bind(a, "/local-a", "/mnt", namespace.MRepl)
	ns.Bind(b, "/local-b", "/mnt", namespace.MBefore|namespace.MCreate)

	r := New(ns, nil)
	h, err := r.Open(ctx, "/mnt/new.txt", fs9.OpenFlags{Write: true, Create: true})
	require.NoError(t, err)

	provider, local, err := r.ResolveForWrite(ctx, "/mnt/new.txt")
	require.NoError(t, err)
	_, err = provider.Write(ctx, h, 0, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, provider.Close(ctx, h, true))

	_, err = b.Stat(ctx, local)
	assert.NoError(t, err)
	_, err = a.Stat(ctx, "/local-a/new.txt")
	assert.Error(t, err)
}

func TestRouter_UnboundPathForwardsToRemote(t *testing.T) {
	ctx := context.Background()
	remote := newMemfs(t)
	writeFile(t, ctx, remote, "/remote.txt", []byte("remote data"))

	ns := namespace.New()
	r := New(ns, remote)

	info, err := r.Stat(ctx, "/remote.txt")
	require.NoError(t, err)
	assert.EqualValues(t, len("remote data"), info.Size)
}

func TestRouter_SafeResolveRejectsEscapeAttempt(t *testing.T) {
	_, err := safeResolve("/mnt/source", "../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, fs9.KindPermissionDenied, fs9.KindOf(err))
}

func TestRouter_RemoveRecursiveDeletesDirectoryAndChildren(t *testing.T) {
	ctx := context.Background()
	a := newMemfs(t)
	mkdirAll(t, ctx, a, "/local", "/local/d")
	writeFile(t, ctx, a, "/local/d/f.txt", []byte("x"))

	ns := namespace.New()
	ns.Bind(a, "/local", "/mnt", 0)
	r := New(ns, nil)

	require.NoError(t, r.RemoveRecursive(ctx, "/mnt/d"))
	_, err := r.Stat(ctx, "/mnt/d")
	assert.Error(t, err)
}
