package streamfs

import (
	"context"
	"testing"

	"github.com/fs9/fs9fs/fs9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFs_ReadmeIsReadOnly(t *testing.T) {
	s := New(0, 0, nil, nil)
	ctx := context.Background()
	_, err := s.Open(ctx, "/README", fs9.OpenFlags{Write: true})
	assert.Equal(t, fs9.KindPermissionDenied, fs9.KindOf(err))

	h, err := s.Open(ctx, "/README", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := s.Read(ctx, h, 0, 1024)
	require.NoError(t, err)
	assert.Contains(t, string(out), "StreamFS")
}

func TestStreamFs_LateJoinerReceivesHistoricalReplay(t *testing.T) {
	s := New(10, 10, nil, nil)
	ctx := context.Background()

	w, err := s.Open(ctx, "/events", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	_, err = s.Write(ctx, w, 0, []byte("chunk-1"))
	require.NoError(t, err)
	_, err = s.Write(ctx, w, 0, []byte("chunk-2"))
	require.NoError(t, err)

	r, err := s.Open(ctx, "/events", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := s.Read(ctx, r, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "chunk-1chunk-2", string(out))
}

func TestStreamFs_BroadcastsLiveChunksToAllSubscribers(t *testing.T) {
	s := New(10, 10, nil, nil)
	ctx := context.Background()

	w, err := s.Open(ctx, "/events", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	r1, err := s.Open(ctx, "/events", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	r2, err := s.Open(ctx, "/events", fs9.OpenFlags{Read: true})
	require.NoError(t, err)

	_, err = s.Write(ctx, w, 0, []byte("live"))
	require.NoError(t, err)

	out1, err := s.Read(ctx, r1, 0, 1024)
	require.NoError(t, err)
	out2, err := s.Read(ctx, r2, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "live", string(out1))
	assert.Equal(t, "live", string(out2))
}

func TestStreamFs_ReaddirListsReadmeAndStreams(t *testing.T) {
	s := New(10, 10, nil, nil)
	ctx := context.Background()
	h, err := s.Open(ctx, "/a", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx, h, false))

	entries, err := s.Readdir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/README", entries[0].Path)
	assert.Equal(t, "/a", entries[1].Path)
}

func TestStreamFs_OpenReadWriteSimultaneouslyRejected(t *testing.T) {
	s := New(10, 10, nil, nil)
	ctx := context.Background()
	_, err := s.Open(ctx, "/x", fs9.OpenFlags{Read: true, Write: true})
	assert.Equal(t, fs9.KindInvalidArgument, fs9.KindOf(err))
}

func TestStreamFs_LagCountIncrementsWhenSubscriberFallsBehind(t *testing.T) {
	s := New(2, 1, nil, nil)
	ctx := context.Background()
	w, err := s.Open(ctx, "/x", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	r, err := s.Open(ctx, "/x", fs9.OpenFlags{Read: true})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = s.Write(ctx, w, 0, []byte("c"))
		require.NoError(t, err)
	}

	lag, err := s.LagCount(r)
	require.NoError(t, err)
	assert.Greater(t, lag, uint64(0))
}

func TestStreamFs_RemoveUnknownStreamNotFound(t *testing.T) {
	s := New(10, 10, nil, nil)
	ctx := context.Background()
	err := s.Remove(ctx, "/missing")
	assert.Equal(t, fs9.KindNotFound, fs9.KindOf(err))
}
