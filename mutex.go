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
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/windows"

	"github.com/downlevel/winsync/internal/sys/wincall"
	"github.com/downlevel/winsync/pkg/errors"
	"github.com/downlevel/winsync/pkg/logging"
)

// Mutex is a mutual-exclusion lock backed by the best primitive the host
// offers. The zero value is an unlocked mutex; the underlying variant is
// constructed on first use, so a declared-but-never-used Mutex costs
// nothing beyond its own storage.
//
// Locking a Mutex the calling goroutine already holds is fatal on every
// tier: the modern slim lock deadlocks by its own nature, and the degraded
// tiers turn the silent reentrancy of their primitives into a panic so that
// recursion never goes unnoticed on some hosts only.
//
// A Mutex must not be copied after first use.
type Mutex struct {
	inner atomic.Pointer[mutexImpl]
	// held detects same-thread recursion under the degraded tiers. The OS
	// primitive provides the actual exclusion; held is only ever touched
	// while that exclusion is in effect. Atomic so the race detector, which
	// cannot see OS-level happens-before edges, stays quiet.
	held atomic.Bool
}

// mutexImpl is the tagged variant record. Exactly one member besides tier is
// meaningful, selected at construction from the process tier; the storage is
// immutable for the lifetime of the object.
type mutexImpl struct {
	tier wincall.Tier
	srw  wincall.SRWLock
	cs   *wincall.CriticalSection
	h    windows.Handle
}

func newMutexImpl(tier wincall.Tier) *mutexImpl {
	im := &mutexImpl{tier: tier}
	switch tier {
	case wincall.TierModern:
		// zero-value SRWLock is ready
	case wincall.TierIntermediate:
		im.cs = new(wincall.CriticalSection)
		wincall.InitializeCriticalSection(im.cs)
	case wincall.TierLegacy:
		h, err := windows.CreateMutex(nil, false, nil)
		if err != nil {
			logging.Errorf("winsync: creating kernel mutex: %v", err)
			panic(fmt.Errorf("winsync: create mutex: %w", err))
		}
		im.h = h
	default:
		panic(errors.ErrInvalidTier)
	}
	return im
}

// cancel releases resources of an impl that lost the construction race and
// was never observed by anyone.
func (im *mutexImpl) cancel() {
	switch im.tier {
	case wincall.TierIntermediate:
		wincall.DeleteCriticalSection(im.cs)
	case wincall.TierLegacy:
		_ = windows.CloseHandle(im.h)
	}
}

// impl returns the variant record, constructing it on first touch.
// Concurrent first touches race on the CAS; losers tear their candidate
// down again, so exactly one construction ever becomes visible.
func (m *Mutex) impl() *mutexImpl {
	if im := m.inner.Load(); im != nil {
		return im
	}
	return m.initSlow()
}

func (m *Mutex) initSlow() *mutexImpl {
	im := newMutexImpl(wincall.CurrentTier())
	if m.inner.CompareAndSwap(nil, im) {
		return im
	}
	im.cancel()
	return m.inner.Load()
}

// Lock blocks the calling goroutine until it holds m exclusively.
//
// Under the degraded tiers the OS primitive is owned by an OS thread, so
// Lock pins the goroutine to its thread until Unlock.
func (m *Mutex) Lock() {
	im := m.impl()
	switch im.tier {
	case wincall.TierModern:
		wincall.AcquireSRWLockExclusive(&im.srw)
	case wincall.TierIntermediate:
		runtime.LockOSThread()
		wincall.EnterCriticalSection(im.cs)
		if !m.flagHeld() {
			m.Unlock()
			panic(errors.ErrRecursiveLock)
		}
	case wincall.TierLegacy:
		runtime.LockOSThread()
		waitMutexHandle(im.h, windows.INFINITE)
		if !m.flagHeld() {
			m.Unlock()
			panic(errors.ErrRecursiveLock)
		}
	}
}

// TryLock acquires m without blocking and reports whether it succeeded.
// Recursive acquisition is never reported as success: if the degraded
// primitive silently re-enters, the extra level is released and TryLock
// returns false.
func (m *Mutex) TryLock() bool {
	im := m.impl()
	switch im.tier {
	case wincall.TierModern:
		return wincall.TryAcquireSRWLockExclusive(&im.srw)
	case wincall.TierIntermediate:
		runtime.LockOSThread()
		if !wincall.TryEnterCriticalSection(im.cs) {
			runtime.UnlockOSThread()
			return false
		}
		if m.flagHeld() {
			return true
		}
		m.Unlock()
		return false
	case wincall.TierLegacy:
		runtime.LockOSThread()
		ev, err := windows.WaitForSingleObject(im.h, 0)
		switch ev {
		case windows.WAIT_OBJECT_0:
		case uint32(windows.WAIT_TIMEOUT):
			runtime.UnlockOSThread()
			return false
		default:
			runtime.UnlockOSThread()
			panic(fmt.Errorf("%w: try lock: event %#x: %v", errors.ErrWaitFailed, ev, err))
		}
		if m.flagHeld() {
			return true
		}
		m.Unlock()
		return false
	}
	panic(errors.ErrInvalidTier)
}

// Unlock releases m. The caller must hold the lock; unlocking a mutex held
// by nobody, or by another goroutine, is undefined behavior, matching the
// raw primitives.
func (m *Mutex) Unlock() {
	im := m.impl()
	switch im.tier {
	case wincall.TierModern:
		wincall.ReleaseSRWLockExclusive(&im.srw)
	case wincall.TierIntermediate:
		m.held.Store(false)
		wincall.LeaveCriticalSection(im.cs)
		runtime.UnlockOSThread()
	case wincall.TierLegacy:
		m.held.Store(false)
		if err := windows.ReleaseMutex(im.h); err != nil {
			panic(fmt.Errorf("winsync: release mutex: %w", err))
		}
		runtime.UnlockOSThread()
	}
}

// flagHeld marks m held and reports whether it was free before. Called only
// with the OS primitive acquired, so a false return means the calling
// thread re-entered a primitive it already owned.
func (m *Mutex) flagHeld() bool {
	if m.held.Load() {
		return false
	}
	m.held.Store(true)
	return true
}

// Destroy releases OS resources owned by m. Only needed when mutexes are
// created and dropped in volume under the degraded tiers; package-lifetime
// mutexes can skip it. Destroying a locked critical-section mutex leaks the
// primitive on purpose: deleting a locked critical section is undefined
// behavior, a leaked one is merely wasteful. m must not be used afterwards.
func (m *Mutex) Destroy() {
	im := m.inner.Swap(nil)
	if im == nil {
		return
	}
	switch im.tier {
	case wincall.TierIntermediate:
		if wincall.TryEnterCriticalSection(im.cs) {
			wincall.LeaveCriticalSection(im.cs)
			wincall.DeleteCriticalSection(im.cs)
		}
	case wincall.TierLegacy:
		_ = windows.CloseHandle(im.h)
	}
}

// waitMutexHandle blocks on a kernel mutex. Abandoned waits mean another
// thread died while holding the mutex; there is no way to verify the state
// it protected, so that is fatal too.
func waitMutexHandle(h windows.Handle, timeoutMs uint32) {
	ev, err := windows.WaitForSingleObject(h, timeoutMs)
	if ev != windows.WAIT_OBJECT_0 {
		panic(fmt.Errorf("%w: mutex lock: event %#x: %v", errors.ErrWaitFailed, ev, err))
	}
}
