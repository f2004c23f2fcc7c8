// Copyright (c) 2023 The winsync Authors
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

//go:build windows

package winsync

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/windows"

	"github.com/downlevel/winsync/internal/sys/wincall"
	"github.com/downlevel/winsync/pkg/errors"
	"github.com/downlevel/winsync/pkg/logging"
)

// Cond is a condition variable paired with a Mutex at each call site. The
// zero value is ready; the underlying variant is constructed on first use
// under the same tier as the mutexes it will be paired with.
//
// Waiters must recheck their predicate in a loop: spurious wakeups are legal
// on every tier, and under the degraded tiers every notification wakes all
// current waiters.
type Cond struct {
	inner atomic.Pointer[condImpl]
}

// condImpl is the tagged variant record: a native condition variable under
// the modern tier, a manual-reset event everywhere else.
type condImpl struct {
	tier  wincall.Tier
	cv    wincall.ConditionVariable
	event windows.Handle
}

func newCondImpl(tier wincall.Tier) *condImpl {
	ci := &condImpl{tier: tier}
	if tier == wincall.TierModern {
		// zero-value ConditionVariable is ready
		return ci
	}
	event, err := windows.CreateEvent(nil, 1 /* manual reset */, 0 /* initially unset */, nil)
	if err != nil {
		logging.Errorf("winsync: creating notification event: %v", err)
		panic(fmt.Errorf("winsync: create event: %w", err))
	}
	ci.event = event
	return ci
}

func (ci *condImpl) cancel() {
	if ci.tier != wincall.TierModern {
		_ = windows.CloseHandle(ci.event)
	}
}

func (c *Cond) impl() *condImpl {
	if ci := c.inner.Load(); ci != nil {
		return ci
	}
	ci := newCondImpl(wincall.CurrentTier())
	if c.inner.CompareAndSwap(nil, ci) {
		return ci
	}
	ci.cancel()
	return c.inner.Load()
}

// Wait atomically releases m and suspends the calling goroutine until a
// notification arrives, then reacquires m before returning. The caller must
// hold m.
//
// Under the modern tier release and wait-begin are a single OS call with no
// window in between. The degraded tiers unlock, wait and relock manually,
// which opens a window where a notification can arrive before the wait has
// begun; notifiers tolerate this because the event pulse discipline wakes
// everything currently waiting and waiters recheck predicates anyway.
func (c *Cond) Wait(m *Mutex) {
	ci := c.impl()
	if ci.tier == wincall.TierModern {
		mi := m.impl()
		ok, e := wincall.SleepConditionVariableSRW(&ci.cv, &mi.srw, windows.INFINITE, 0)
		if !ok {
			panic(fmt.Errorf("%w: condition wait: %v", errors.ErrWaitFailed, e))
		}
		return
	}

	m.Unlock()
	ev, err := windows.WaitForSingleObject(ci.event, windows.INFINITE)
	if ev != windows.WAIT_OBJECT_0 {
		panic(fmt.Errorf("%w: event wait: event %#x: %v", errors.ErrWaitFailed, ev, err))
	}
	m.Lock()
}

// WaitTimeout is Wait with a bound. It reports true when the wait ended by
// notification or spurious wake and false only when the full duration
// elapsed with no notification delivered. The duration is converted to the
// native millisecond unit, rounding up and saturating at the representable
// maximum. The caller must hold m, and holds it again on return either way.
func (c *Cond) WaitTimeout(m *Mutex, d time.Duration) bool {
	ci := c.impl()
	if ci.tier == wincall.TierModern {
		mi := m.impl()
		ok, e := wincall.SleepConditionVariableSRW(&ci.cv, &mi.srw, durationToTimeout(d), 0)
		if !ok && e != windows.ERROR_TIMEOUT {
			panic(fmt.Errorf("%w: condition wait: %v", errors.ErrWaitFailed, e))
		}
		return ok
	}

	m.Unlock()
	ev, err := windows.WaitForSingleObject(ci.event, durationToTimeout(d))
	var notified bool
	switch ev {
	case windows.WAIT_OBJECT_0:
		notified = true
	case uint32(windows.WAIT_TIMEOUT):
		notified = false
	default:
		panic(fmt.Errorf("%w: event wait: event %#x: %v", errors.ErrWaitFailed, ev, err))
	}
	m.Lock()
	return notified
}

// Signal wakes one goroutine waiting on c, if there is one.
//
// Under the degraded tiers the event pulse wakes every current waiter, not
// just one. Spurious wakeups are legal for condition variable consumers, so
// correctness is unaffected; only efficiency degrades.
func (c *Cond) Signal() {
	ci := c.impl()
	if ci.tier == wincall.TierModern {
		wincall.WakeConditionVariable(&ci.cv)
		return
	}
	if err := windows.PulseEvent(ci.event); err != nil {
		panic(fmt.Errorf("winsync: pulse event: %w", err))
	}
}

// Broadcast wakes all goroutines waiting on c.
func (c *Cond) Broadcast() {
	ci := c.impl()
	if ci.tier == wincall.TierModern {
		wincall.WakeAllConditionVariable(&ci.cv)
		return
	}
	if err := windows.PulseEvent(ci.event); err != nil {
		panic(fmt.Errorf("winsync: pulse event: %w", err))
	}
}

// Destroy releases the notification event under the degraded tiers; the
// modern variant owns nothing. c must not be used afterwards.
func (c *Cond) Destroy() {
	ci := c.inner.Swap(nil)
	if ci == nil {
		return
	}
	ci.cancel()
}

// durationToTimeout converts d to the native millisecond timeout unit,
// rounding up so waits last at least d and saturating to INFINITE on
// overflow (a wait beyond the ~49.7 day boundary becomes unbounded).
func durationToTimeout(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms >= int64(windows.INFINITE) {
		return windows.INFINITE
	}
	return uint32(ms)
}
