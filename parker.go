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
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/downlevel/winsync/internal/sys/wincall"
)

// Parker state values. A pending Unpark leaves a token (parkerNotified) that
// the next Park consumes without blocking.
const (
	parkerParked   int32 = -1
	parkerEmpty    int32 = 0
	parkerNotified int32 = 1
)

// parkSpinCount bounds the pre-block spin. Parking is used for short
// handoffs, so a few yields often catch the token without a kernel wait.
const parkSpinCount = 4

// Parker is a one-goroutine wait/notify slot: Park blocks its owner until
// some other goroutine calls Unpark, and an Unpark that arrives first makes
// the next Park return immediately. Exactly one goroutine may park; any
// number may unpark.
//
// On hosts with address waits Parker blocks directly on its state word.
// Elsewhere it degrades to a Mutex/Cond pair, independent of which lock tier
// backs those.
type Parker struct {
	state atomicInt32
	mu    Mutex
	cond  Cond
}

// Park blocks until a token is available and consumes it.
func (p *Parker) Park() {
	if p.spin() {
		return
	}
	if wincall.AddressWaitAvailable() {
		p.parkFutex()
		return
	}
	p.parkGeneric()
}

// ParkTimeout is Park with a bound; it reports whether a token was consumed
// (false means the timeout elapsed).
func (p *Parker) ParkTimeout(d time.Duration) bool {
	if p.spin() {
		return true
	}
	if wincall.AddressWaitAvailable() {
		return p.parkFutexTimeout(d)
	}
	return p.parkGenericTimeout(d)
}

// Unpark deposits a token, waking the parked goroutine if there is one.
func (p *Parker) Unpark() {
	if wincall.AddressWaitAvailable() {
		if p.state.Swap(parkerNotified) == parkerParked {
			wincall.WakeByAddressSingle(unsafe.Pointer(&p.state.v))
		}
		return
	}
	// The swap happens under the mutex so it cannot land inside the window
	// between a parker's state check and its wait.
	p.mu.Lock()
	prev := p.state.Swap(parkerNotified)
	p.mu.Unlock()
	if prev == parkerParked {
		p.cond.Signal()
	}
}

// spin polls for a token a few times before committing to a kernel wait.
func (p *Parker) spin() bool {
	for i := 0; i < parkSpinCount; i++ {
		if p.state.CompareAndSwap(parkerNotified, parkerEmpty) {
			return true
		}
		wincall.SwitchToThread()
	}
	return false
}

func (p *Parker) parkFutex() {
	// empty -> parked; a concurrent token (notified -> empty) means done.
	if p.state.Add(-1) == parkerEmpty {
		return
	}
	var cmp = parkerParked
	for {
		wincall.WaitOnAddress(unsafe.Pointer(&p.state.v), unsafe.Pointer(&cmp), 4, windows.INFINITE)
		if p.state.CompareAndSwap(parkerNotified, parkerEmpty) {
			return
		}
		// Spurious wake; the state word still reads parked.
	}
}

func (p *Parker) parkFutexTimeout(d time.Duration) bool {
	if p.state.Add(-1) == parkerEmpty {
		return true
	}
	var cmp = parkerParked
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wincall.WaitOnAddress(unsafe.Pointer(&p.state.v), unsafe.Pointer(&cmp), 4, durationToTimeout(remaining))
		if p.state.CompareAndSwap(parkerNotified, parkerEmpty) {
			return true
		}
	}
	// Timed out; fold a token that raced the expiry into a success so a
	// delivered unpark is never reported as a timeout.
	return p.state.Swap(parkerEmpty) == parkerNotified
}

func (p *Parker) parkGeneric() {
	p.mu.Lock()
	for {
		if p.state.CompareAndSwap(parkerNotified, parkerEmpty) {
			p.mu.Unlock()
			return
		}
		p.state.Store(parkerParked)
		// Bounded waits guard against the degraded condvar's lost-wake
		// window; the token recheck above makes extra wakes harmless.
		p.cond.WaitTimeout(&p.mu, 100*time.Millisecond)
	}
}

func (p *Parker) parkGenericTimeout(d time.Duration) bool {
	p.mu.Lock()
	deadline := time.Now().Add(d)
	for {
		if p.state.CompareAndSwap(parkerNotified, parkerEmpty) {
			p.mu.Unlock()
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		p.state.Store(parkerParked)
		if remaining > 100*time.Millisecond {
			remaining = 100 * time.Millisecond
		}
		p.cond.WaitTimeout(&p.mu, remaining)
	}
	notified := p.state.Swap(parkerEmpty) == parkerNotified
	p.mu.Unlock()
	return notified
}

// atomicInt32 is an int32 with atomic accessors that exposes the address of
// its value, which WaitOnAddress needs and sync/atomic's boxed types hide.
type atomicInt32 struct {
	v int32
}

func (a *atomicInt32) Store(v int32) { atomic.StoreInt32(&a.v, v) }

func (a *atomicInt32) Swap(v int32) int32 { return atomic.SwapInt32(&a.v, v) }

func (a *atomicInt32) Add(delta int32) int32 { return atomic.AddInt32(&a.v, delta) }

func (a *atomicInt32) CompareAndSwap(old, new int32) bool {
	return atomic.CompareAndSwapInt32(&a.v, old, new)
}
