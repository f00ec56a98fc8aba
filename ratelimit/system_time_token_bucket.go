// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"time"
)

// Throttle caps how fast tokens (typically bytes) may be consumed.
type Throttle interface {
	// Capacity returns the maximum number of tokens the throttle will
	// ever grant in a single Wait call.
	Capacity() uint64

	// Wait blocks until n tokens are available or ctx is done, in which
	// case it returns false.
	Wait(ctx context.Context, n uint64) (ok bool)
}

// SystemTimeTokenBucket adapts a virtual-time TokenBucket to the real
// clock, implementing Throttle.
type SystemTimeTokenBucket struct {
	Bucket    *TokenBucket
	StartTime time.Time
}

var _ Throttle = (*SystemTimeTokenBucket)(nil)

func (s *SystemTimeTokenBucket) Capacity() uint64 {
	return s.Bucket.capacity
}

func (s *SystemTimeTokenBucket) Wait(ctx context.Context, n uint64) bool {
	now := time.Since(s.StartTime)
	completion := s.Bucket.Remove(now, n)
	delay := completion - now
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
