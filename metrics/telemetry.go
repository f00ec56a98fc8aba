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

package metrics

import (
	"context"
	"time"

	"github.com/fs9/fs9fs/fs9"
)

// CaptureOp records the count, error count (if any) and latency of one
// Provider operation in a single call, the pattern the fuseadapter's
// op methods use: `defer metrics.CaptureOp(ctx, mh, "read",
// time.Now())(&err)`.
func CaptureOp(ctx context.Context, mh MetricHandle, op string, start time.Time) func(errp *error) {
	return func(errp *error) {
		mh.OpCount(ctx, 1, op)
		mh.OpLatency(ctx, time.Since(start), op)
		if errp != nil && *errp != nil {
			mh.OpErrorCount(ctx, 1, op, fs9.KindOf(*errp).String())
		}
	}
}

// CaptureRead records bytes read for a provider alongside the
// enclosing op's count/latency/error via CaptureOp.
func CaptureRead(ctx context.Context, mh MetricHandle, provider string, n int) {
	mh.ReadBytesCount(ctx, int64(n), provider)
}

// CaptureWrite records bytes written for a provider.
func CaptureWrite(ctx context.Context, mh MetricHandle, provider string, n int) {
	mh.WriteBytesCount(ctx, int64(n), provider)
}

// CapturePluginCall records one cross-ABI call to a named plugin.
func CapturePluginCall(ctx context.Context, mh MetricHandle, plugin string, op string) {
	mh.PluginCallCount(ctx, 1, plugin, op)
}

// CaptureThrottleWait records one call that was delayed by a
// ratelimit.Throttle.
func CaptureThrottleWait(ctx context.Context, mh MetricHandle) {
	mh.ThrottleWaitCount(ctx, 1)
}
