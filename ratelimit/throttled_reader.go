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
	"errors"
	"io"
)

type throttledReader struct {
	ctx      context.Context
	wrapped  io.Reader
	throttle Throttle
}

// ThrottledReader wraps r so that every Read first waits on throttle
// for permission to move len(p) bytes (clamped to throttle's
// capacity), returning an error without touching r if the wait is
// cancelled via ctx.
func ThrottledReader(ctx context.Context, r io.Reader, throttle Throttle) io.Reader {
	return &throttledReader{ctx: ctx, wrapped: r, throttle: throttle}
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if capacity := tr.throttle.Capacity(); uint64(len(p)) > capacity {
		p = p[:capacity]
	}

	if ok := tr.throttle.Wait(tr.ctx, uint64(len(p))); !ok {
		return 0, errors.New("throttle: context cancelled while waiting")
	}

	return tr.wrapped.Read(p)
}
