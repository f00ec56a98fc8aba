package pubsubfs

import (
	"context"
	"strings"
	"testing"

	"github.com/fs9/fs9fs/fs9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSubFs_PublishThenSubscribeReplaysHistory(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()

	w, err := p.Open(ctx, "/news", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	_, err = p.Write(ctx, w, 0, []byte("hello\n"))
	require.NoError(t, err)

	r, err := p.Open(ctx, "/news", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := p.Read(ctx, r, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestPubSubFs_TrailingNewlineNormalizedToExactlyOne(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()

	w, err := p.Open(ctx, "/t", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	_, err = p.Write(ctx, w, 0, []byte("no newline here"))
	require.NoError(t, err)

	r, err := p.Open(ctx, "/t", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := p.Read(ctx, r, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "\n"))
	assert.Equal(t, "no newline here\n", string(out))
}

func TestPubSubFs_InfoFileReportsCountsAndSubscribers(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()
	w, err := p.Open(ctx, "/topic", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	_, err = p.Write(ctx, w, 0, []byte("m1"))
	require.NoError(t, err)

	r, err := p.Open(ctx, "/topic", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	defer p.Close(ctx, r, false)

	info, err := p.Open(ctx, "/topic.info", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	out, err := p.Read(ctx, info, 0, 4096)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "name: topic")
	assert.Contains(t, text, "subscribers: 1")
	assert.Contains(t, text, "messages: 1")
}

func TestPubSubFs_InfoFileIsReadOnly(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()
	_, err := p.Open(ctx, "/topic.info", fs9.OpenFlags{Write: true})
	assert.Equal(t, fs9.KindPermissionDenied, fs9.KindOf(err))
}

func TestPubSubFs_RemoveInfoOrReadmeRejected(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()
	assert.Equal(t, fs9.KindPermissionDenied, fs9.KindOf(p.Remove(ctx, "/README")))
	assert.Equal(t, fs9.KindPermissionDenied, fs9.KindOf(p.Remove(ctx, "/x.info")))
}

func TestPubSubFs_ReaddirListsTopicAndInfoPair(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()
	h, err := p.Open(ctx, "/a", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	require.NoError(t, p.Close(ctx, h, false))

	entries, err := p.Readdir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/README", entries[0].Path)
	assert.Equal(t, "/a", entries[1].Path)
	assert.Equal(t, "/a.info", entries[2].Path)
}

func TestPubSubFs_BroadcastReachesIndependentSubscribers(t *testing.T) {
	p := New(10, 10, nil, nil)
	ctx := context.Background()
	w, err := p.Open(ctx, "/fanout", fs9.OpenFlags{Write: true})
	require.NoError(t, err)
	r1, err := p.Open(ctx, "/fanout", fs9.OpenFlags{Read: true})
	require.NoError(t, err)
	r2, err := p.Open(ctx, "/fanout", fs9.OpenFlags{Read: true})
	require.NoError(t, err)

	_, err = p.Write(ctx, w, 0, []byte("broadcast"))
	require.NoError(t, err)

	out1, err := p.Read(ctx, r1, 0, 1024)
	require.NoError(t, err)
	out2, err := p.Read(ctx, r2, 0, 1024)
	require.NoError(t, err)
	assert.Equal(t, "broadcast\n", string(out1))
	assert.Equal(t, "broadcast\n", string(out2))
}
