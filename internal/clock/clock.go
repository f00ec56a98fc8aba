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

// Package clock provides the injectable time source used by memfs,
// pagefs and streamfs for atime/mtime/ctime bookkeeping, plus a
// SimulatedClock for deterministic tests.
package clock

import (
	"time"

	"github.com/jacobsa/timeutil"
)

// Clock is the timeutil.Clock interface, re-exported so callers in
// this module depend on one local name.
type Clock = timeutil.Clock

// New returns the process real-time clock.
func New() Clock {
	return timeutil.RealClock()
}

// SimulatedClock is a clock that only advances when told to, for
// deterministic provider tests (rename timestamps, atime policy, etc).
type SimulatedClock struct {
	mu      chan struct{} // binary semaphore, avoids importing sync for one field
	t       time.Time
	pending []*afterRequest
}

type afterRequest struct {
	targetTime time.Time
	ch         chan time.Time
}

// NewSimulatedClock returns a clock fixed at startTime until advanced
// with SetTime or AdvanceTime.
func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	sc := &SimulatedClock{mu: make(chan struct{}, 1), t: startTime}
	sc.mu <- struct{}{}
	return sc
}

func (sc *SimulatedClock) lock()   { <-sc.mu }
func (sc *SimulatedClock) unlock() { sc.mu <- struct{}{} }

func (sc *SimulatedClock) Now() time.Time {
	sc.lock()
	defer sc.unlock()
	return sc.t
}

// SetTime sets the clock's current time and fires any pending timers
// that have since elapsed.
func (sc *SimulatedClock) SetTime(t time.Time) {
	sc.lock()
	defer sc.unlock()
	sc.t = t
	sc.processPendingLocked()
}

// AdvanceTime moves the clock forward by d.
func (sc *SimulatedClock) AdvanceTime(d time.Duration) {
	sc.lock()
	defer sc.unlock()
	sc.t = sc.t.Add(d)
	sc.processPendingLocked()
}

func (sc *SimulatedClock) processPendingLocked() {
	var stillPending []*afterRequest
	for _, ar := range sc.pending {
		if !sc.t.Before(ar.targetTime) {
			ar.ch <- ar.targetTime
		} else {
			stillPending = append(stillPending, ar)
		}
	}
	sc.pending = stillPending
}

// After returns a channel that receives the simulated target time once
// the clock reaches it via SetTime or AdvanceTime. A non-positive d
// fires immediately with the current simulated time, matching
// time.After's behavior for a zero or negative duration.
func (sc *SimulatedClock) After(d time.Duration) <-chan time.Time {
	sc.lock()
	defer sc.unlock()

	ch := make(chan time.Time, 1)
	target := sc.t.Add(d)
	if !target.After(sc.t) {
		ch <- sc.t
		return ch
	}

	sc.pending = append(sc.pending, &afterRequest{targetTime: target, ch: ch})
	return ch
}
