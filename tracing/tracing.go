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

// Package tracing wires up distributed tracing for Router/Provider
// operations: a per-process tracer exporting to stdout (for local
// debugging) or discarding entirely, plus a propagator so a span
// started by a remote caller continues across this process's
// Provider calls.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "fs9fs"

// Mode selects where spans are exported.
type Mode string

const (
	ModeDisabled Mode = ""
	ModeStdout   Mode = "stdout"
)

// Shutdown flushes and tears down the tracer provider installed by
// Setup. Setup returns a nil Shutdown when mode is not ModeStdout;
// calling a nil Shutdown panics.
type Shutdown func(ctx context.Context) error

// Setup installs a TracerProvider for mode and a W3C trace-context
// propagator, returning a Shutdown to call on process exit. nodeID
// (e.g. a server instance name) is accepted but not attached to the
// emitted spans.
func Setup(ctx context.Context, mode Mode, nodeID string) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if mode != ModeStdout {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: create stdout exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	_ = nodeID // reserved for a resource attribute once a Resource is wired in
	return provider.Shutdown, nil
}

// StartOp starts a span named "fs9.<op>" for one Provider operation
// and returns the derived context plus a function to end the span,
// recording err (if any) as the span's status.
func StartOp(ctx context.Context, op string, path string) (context.Context, func(*error)) {
	tracer := otel.Tracer(tracerName)
	spanCtx, span := tracer.Start(ctx, "fs9."+op, trace.WithAttributes(
		attribute.String("path", path),
	))
	return spanCtx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
		}
		span.End()
	}
}
