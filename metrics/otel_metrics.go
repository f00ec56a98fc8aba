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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fs9fs"

// recording is one queued measurement; workers drain these off a
// channel so the caller's hot path never blocks on an otel exporter.
type recording func()

// otelMetrics is the MetricHandle implementation backed by
// go.opentelemetry.io/otel instruments. Every public method only
// builds a closure and enqueues it; a small worker pool applies the
// actual instrument.Add/Record call, so a slow or backpressured
// exporter cannot stall a Provider operation.
type otelMetrics struct {
	noopMetrics

	queue chan recording

	opCount        metric.Int64Counter
	opErrorCount   metric.Int64Counter
	opLatency      metric.Float64Histogram
	readBytes      metric.Int64Counter
	writeBytes     metric.Int64Counter
	pluginCalls    metric.Int64Counter
	throttleWaits  metric.Int64Counter
}

var _ MetricHandle = (*otelMetrics)(nil)

// NewOTelMetrics creates counters/histograms against the globally
// configured otel MeterProvider and starts workers goroutines
// draining a channel of capacity bufferSize. Call Close to drain and
// stop the workers.
func NewOTelMetrics(ctx context.Context, workers int, bufferSize int) (*otelMetrics, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	opCount, err := meter.Int64Counter("fs9/op_count")
	if err != nil {
		return nil, err
	}
	opErrorCount, err := meter.Int64Counter("fs9/op_error_count")
	if err != nil {
		return nil, err
	}
	opLatency, err := meter.Float64Histogram("fs9/op_latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	readBytes, err := meter.Int64Counter("fs9/read_bytes_count")
	if err != nil {
		return nil, err
	}
	writeBytes, err := meter.Int64Counter("fs9/write_bytes_count")
	if err != nil {
		return nil, err
	}
	pluginCalls, err := meter.Int64Counter("fs9/plugin_call_count")
	if err != nil {
		return nil, err
	}
	throttleWaits, err := meter.Int64Counter("fs9/throttle_wait_count")
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}

	m := &otelMetrics{
		queue:         make(chan recording, bufferSize),
		opCount:       opCount,
		opErrorCount:  opErrorCount,
		opLatency:     opLatency,
		readBytes:     readBytes,
		writeBytes:    writeBytes,
		pluginCalls:   pluginCalls,
		throttleWaits: throttleWaits,
	}
	for i := 0; i < workers; i++ {
		go m.runWorker(ctx)
	}
	return m, nil
}

func (m *otelMetrics) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-m.queue:
			if !ok {
				return
			}
			r()
		}
	}
}

func (m *otelMetrics) enqueue(r recording) {
	select {
	case m.queue <- r:
	default:
		// Buffer full: run inline rather than drop, so counts stay
		// exact under burst load at the cost of briefly blocking the
		// caller.
		r()
	}
}

func (m *otelMetrics) OpCount(ctx context.Context, inc int64, op string) {
	m.enqueue(func() {
		m.opCount.Add(ctx, inc, metric.WithAttributes(attribute.String("op", op)))
	})
}

func (m *otelMetrics) OpErrorCount(ctx context.Context, inc int64, op string, kind string) {
	m.enqueue(func() {
		m.opErrorCount.Add(ctx, inc, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("kind", kind),
		))
	})
}

func (m *otelMetrics) OpLatency(ctx context.Context, d time.Duration, op string) {
	ms := float64(d) / float64(time.Millisecond)
	m.enqueue(func() {
		m.opLatency.Record(ctx, ms, metric.WithAttributes(attribute.String("op", op)))
	})
}

func (m *otelMetrics) ReadBytesCount(ctx context.Context, inc int64, provider string) {
	m.enqueue(func() {
		m.readBytes.Add(ctx, inc, metric.WithAttributes(attribute.String("provider", provider)))
	})
}

func (m *otelMetrics) WriteBytesCount(ctx context.Context, inc int64, provider string) {
	m.enqueue(func() {
		m.writeBytes.Add(ctx, inc, metric.WithAttributes(attribute.String("provider", provider)))
	})
}

func (m *otelMetrics) PluginCallCount(ctx context.Context, inc int64, plugin string, op string) {
	m.enqueue(func() {
		m.pluginCalls.Add(ctx, inc, metric.WithAttributes(
			attribute.String("plugin", plugin),
			attribute.String("op", op),
		))
	})
}

func (m *otelMetrics) ThrottleWaitCount(ctx context.Context, inc int64) {
	m.enqueue(func() {
		m.throttleWaits.Add(ctx, inc)
	})
}

// Close stops accepting new measurements and lets queued ones drain.
func (m *otelMetrics) Close() {
	close(m.queue)
}
