package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_CarefulAccounting(t *testing.T) {
	tb := NewTokenBucket(1e9, 4)

	assert.Equal(t, 2*time.Nanosecond, tb.Remove(0, 2))
	assert.Equal(t, 3*time.Nanosecond, tb.Remove(2, 1))

	assert.Equal(t, 4*time.Nanosecond, tb.Remove(4, 1))
	assert.Equal(t, 8*time.Nanosecond, tb.Remove(8, 4))

	assert.Equal(t, 100*time.Nanosecond, tb.Remove(100, 4))
	assert.Equal(t, 101*time.Nanosecond, tb.Remove(100, 1))
	assert.Equal(t, 103*time.Nanosecond, tb.Remove(102, 2))

	assert.Equal(t, 200*time.Nanosecond, tb.Remove(200, 1))
	assert.Equal(t, 200*time.Nanosecond, tb.Remove(200, 3))
	assert.Equal(t, 201*time.Nanosecond, tb.Remove(200, 1))

	assert.Equal(t, 300*time.Nanosecond, tb.Remove(300, 1))
	assert.Equal(t, 300*time.Nanosecond, tb.Remove(0, 3))
	assert.Equal(t, 302*time.Nanosecond, tb.Remove(301, 2))
}

func TestTokenBucket_CapacityChoice(t *testing.T) {
	cap, err := ChooseTokenBucketCapacity(100, time.Second)
	assert.NoError(t, err)
	assert.EqualValues(t, 100, cap)

	_, err = ChooseTokenBucketCapacity(0, time.Second)
	assert.Error(t, err)
}
