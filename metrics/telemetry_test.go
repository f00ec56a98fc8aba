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
	"errors"
	"testing"
	"time"

	"github.com/fs9/fs9fs/fs9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetricHandle struct {
	noopMetrics
	ops    map[string]int64
	errs   map[string]int64
	reads  map[string]int64
	writes map[string]int64
}

func newFakeMetricHandle() *fakeMetricHandle {
	return &fakeMetricHandle{
		ops:    make(map[string]int64),
		errs:   make(map[string]int64),
		reads:  make(map[string]int64),
		writes: make(map[string]int64),
	}
}

func (f *fakeMetricHandle) OpCount(_ context.Context, inc int64, op string) { f.ops[op] += inc }
func (f *fakeMetricHandle) OpErrorCount(_ context.Context, inc int64, op string, kind string) {
	f.errs[op+":"+kind] += inc
}
func (f *fakeMetricHandle) ReadBytesCount(_ context.Context, inc int64, provider string) {
	f.reads[provider] += inc
}
func (f *fakeMetricHandle) WriteBytesCount(_ context.Context, inc int64, provider string) {
	f.writes[provider] += inc
}

func TestCaptureOp_RecordsCountAndLatencyOnSuccess(t *testing.T) {
	mh := newFakeMetricHandle()
	var err error
	func() {
		defer CaptureOp(context.Background(), mh, "stat", time.Now())(&err)
	}()

	assert.Equal(t, int64(1), mh.ops["stat"])
	assert.Empty(t, mh.errs)
}

func TestCaptureOp_RecordsErrorKindOnFailure(t *testing.T) {
	mh := newFakeMetricHandle()
	err := fs9.NotFound("stat", "/missing")
	func() {
		defer CaptureOp(context.Background(), mh, "stat", time.Now())(&err)
	}()

	assert.Equal(t, int64(1), mh.ops["stat"])
	assert.Equal(t, int64(1), mh.errs["stat:NotFound"])
}

func TestCaptureOp_NonFs9ErrorCollapsesToInternal(t *testing.T) {
	mh := newFakeMetricHandle()
	err := errors.New("boom")
	func() {
		defer CaptureOp(context.Background(), mh, "write", time.Now())(&err)
	}()

	assert.Equal(t, int64(1), mh.errs["write:Internal"])
}

func TestCaptureReadAndWrite_RecordByteCounts(t *testing.T) {
	mh := newFakeMetricHandle()
	CaptureRead(context.Background(), mh, "memfs", 128)
	CaptureWrite(context.Background(), mh, "pagefs", 256)

	assert.Equal(t, int64(128), mh.reads["memfs"])
	assert.Equal(t, int64(256), mh.writes["pagefs"])
}

func TestNewOTelMetrics_RecordsAgainstGlobalProvider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, err := NewOTelMetrics(ctx, 2, 8)
	require.NoError(t, err)

	m.OpCount(ctx, 1, "open")
	m.ReadBytesCount(ctx, 64, "memfs")
	// No assertion on exported data here: no ManualReader is wired
	// against the process-global MeterProvider, here or in the cmd
	// package. This test only guards against NewOTelMetrics failing to
	// construct its instruments.
}
