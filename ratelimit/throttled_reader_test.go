package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcThrottle struct {
	capacity uint64
	f        func(ctx context.Context, tokens uint64) bool
}

func (ft *funcThrottle) Capacity() uint64 { return ft.capacity }
func (ft *funcThrottle) Wait(ctx context.Context, tokens uint64) bool {
	return ft.f(ctx, tokens)
}

func TestThrottledReader_CallsThrottleWithRequestedSize(t *testing.T) {
	ctx := context.Background()
	var gotTokens uint64
	throttle := &funcThrottle{capacity: 1024, f: func(_ context.Context, tokens uint64) bool {
		gotTokens = tokens
		return true
	}}
	r := ThrottledReader(ctx, bytes.NewReader([]byte("hello world")), throttle)

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.EqualValues(t, 5, gotTokens)
}

func TestThrottledReader_ThrottleRefusalReturnsError(t *testing.T) {
	ctx := context.Background()
	throttle := &funcThrottle{capacity: 1024, f: func(context.Context, uint64) bool { return false }}
	r := ThrottledReader(ctx, bytes.NewReader([]byte("x")), throttle)

	n, err := r.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttle")
}

func TestThrottledReader_ClampsToThrottleCapacity(t *testing.T) {
	ctx := context.Background()
	var gotTokens uint64
	throttle := &funcThrottle{capacity: 4, f: func(_ context.Context, tokens uint64) bool {
		gotTokens = tokens
		return true
	}}
	r := ThrottledReader(ctx, bytes.NewReader(bytes.Repeat([]byte("a"), 100)), throttle)

	n, err := r.Read(make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.EqualValues(t, 4, gotTokens)
}

func TestThrottledReader_PropagatesWrappedError(t *testing.T) {
	ctx := context.Background()
	throttle := &funcThrottle{capacity: 1024, f: func(context.Context, uint64) bool { return true }}
	wrapped := &erroringReader{err: errors.New("boom")}
	r := ThrottledReader(ctx, wrapped, throttle)

	_, err := r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, wrapped.err)
}

type erroringReader struct{ err error }

func (er *erroringReader) Read([]byte) (int, error) { return 0, er.err }

var _ io.Reader = (*erroringReader)(nil)
