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

// Package metrics records per-operation counts, error counts, byte
// counts and latencies for the Provider contract and its surrounding
// infrastructure (plugin calls, throttle waits).
package metrics

import (
	"context"
	"time"
)

// MetricHandle is the full set of measurements this module knows how
// to record. Embedding noopMetrics lets a caller implement only the
// methods it cares about (used by tests and by any future
// measurement backend that only wants a subset).
type MetricHandle interface {
	OpCount(ctx context.Context, inc int64, op string)
	OpErrorCount(ctx context.Context, inc int64, op string, kind string)
	OpLatency(ctx context.Context, d time.Duration, op string)
	ReadBytesCount(ctx context.Context, inc int64, provider string)
	WriteBytesCount(ctx context.Context, inc int64, provider string)
	PluginCallCount(ctx context.Context, inc int64, plugin string, op string)
	ThrottleWaitCount(ctx context.Context, inc int64)
}

type noopMetrics struct{}

func (noopMetrics) OpCount(context.Context, int64, string)             {}
func (noopMetrics) OpErrorCount(context.Context, int64, string, string) {}
func (noopMetrics) OpLatency(context.Context, time.Duration, string)   {}
func (noopMetrics) ReadBytesCount(context.Context, int64, string)      {}
func (noopMetrics) WriteBytesCount(context.Context, int64, string)     {}
func (noopMetrics) PluginCallCount(context.Context, int64, string, string) {}
func (noopMetrics) ThrottleWaitCount(context.Context, int64)           {}

// NewNoopMetrics returns a MetricHandle that discards every
// measurement, for callers that don't want the otel dependency wired
// up (tests, or a minimal embedded build).
func NewNoopMetrics() MetricHandle { return noopMetrics{} }
