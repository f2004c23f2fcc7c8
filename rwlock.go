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

import "github.com/downlevel/winsync/internal/sys/wincall"

// RWMutex is a reader/writer lock. Under the modern tier readers share the
// slim lock's shared mode and run truly concurrently; under the degraded
// tiers, which have no shared-mode primitive, every acquisition takes the
// exclusive path, so readers exclude each other too. That trade keeps
// correctness on every host generation and gives up only concurrency.
//
// The zero value is an unlocked RWMutex. It must not be copied after first
// use.
type RWMutex struct {
	w Mutex
}

// RLock acquires a read hold.
func (rw *RWMutex) RLock() {
	im := rw.w.impl()
	if im.tier == wincall.TierModern {
		wincall.AcquireSRWLockShared(&im.srw)
		return
	}
	rw.w.Lock()
}

// TryRLock acquires a read hold without blocking and reports whether it
// succeeded.
func (rw *RWMutex) TryRLock() bool {
	im := rw.w.impl()
	if im.tier == wincall.TierModern {
		return wincall.TryAcquireSRWLockShared(&im.srw)
	}
	return rw.w.TryLock()
}

// RUnlock releases a read hold. The caller must hold one.
func (rw *RWMutex) RUnlock() {
	im := rw.w.impl()
	if im.tier == wincall.TierModern {
		wincall.ReleaseSRWLockShared(&im.srw)
		return
	}
	rw.w.Unlock()
}

// Lock acquires the write hold, excluding readers and writers alike.
func (rw *RWMutex) Lock() {
	im := rw.w.impl()
	if im.tier == wincall.TierModern {
		wincall.AcquireSRWLockExclusive(&im.srw)
		return
	}
	rw.w.Lock()
}

// TryLock acquires the write hold without blocking and reports whether it
// succeeded.
func (rw *RWMutex) TryLock() bool {
	im := rw.w.impl()
	if im.tier == wincall.TierModern {
		return wincall.TryAcquireSRWLockExclusive(&im.srw)
	}
	return rw.w.TryLock()
}

// Unlock releases the write hold. The caller must hold it.
func (rw *RWMutex) Unlock() {
	im := rw.w.impl()
	if im.tier == wincall.TierModern {
		wincall.ReleaseSRWLockExclusive(&im.srw)
		return
	}
	rw.w.Unlock()
}

// Destroy releases OS resources. rw must not be used afterwards.
func (rw *RWMutex) Destroy() {
	rw.w.Destroy()
}
