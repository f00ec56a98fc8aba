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

package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledModeInstallsPropagatorOnly(t *testing.T) {
	shutdown, err := Setup(context.Background(), ModeDisabled, "node-1")
	require.NoError(t, err)
	assert.Nil(t, shutdown)

	propagator := otel.GetTextMapPropagator()
	fields := propagator.Fields()
	assert.Contains(t, fields, "traceparent")
	assert.IsType(t, propagation.TraceContext{}, propagator)
}

func TestSetup_StdoutModeReturnsShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background(), ModeStdout, "node-1")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	defer shutdown(context.Background())
}

func TestStartOp_EndsSpanAndRecordsErrorWithoutPanicking(t *testing.T) {
	_, end := StartOp(context.Background(), "stat", "/a.txt")
	err := errors.New("boom")
	assert.NotPanics(t, func() { end(&err) })
}

func TestStartOp_EndsSpanCleanlyOnSuccess(t *testing.T) {
	_, end := StartOp(context.Background(), "read", "/a.txt")
	assert.NotPanics(t, func() { end(nil) })
}
