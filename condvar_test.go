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
	"testing"
	"time"

	"golang.org/x/sys/windows"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signalUntil re-notifies until done closes. The degraded tiers have a
// window between a waiter's unlock and its wait-begin where a single pulse
// can be lost, so well-behaved notifiers re-signal; tests do the same.
func signalUntil(t *testing.T, notify func(), done <-chan struct{}) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		notify()
		select {
		case <-done:
			return
		case <-timeout:
			t.Fatal("waiter never woke")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCondSignal(t *testing.T) {
	forEachTier(t, func(t *testing.T) {
		var (
			mu    Mutex
			cond  Cond
			ready bool
		)
		done := make(chan struct{})
		go func() {
			mu.Lock()
			for !ready {
				cond.Wait(&mu)
			}
			mu.Unlock()
			close(done)
		}()

		mu.Lock()
		ready = true
		mu.Unlock()
		signalUntil(t, cond.Signal, done)
	})
}

func TestCondBroadcast(t *testing.T) {
	forEachTier(t, func(t *testing.T) {
		const waiters = 4
		var (
			mu    Mutex
			cond  Cond
			ready bool
			woke  atomic.Int32
		)
		done := make(chan struct{})
		for i := 0; i < waiters; i++ {
			go func() {
				mu.Lock()
				for !ready {
					cond.Wait(&mu)
				}
				mu.Unlock()
				if woke.Add(1) == waiters {
					close(done)
				}
			}()
		}

		mu.Lock()
		ready = true
		mu.Unlock()
		signalUntil(t, cond.Broadcast, done)
		require.Equal(t, int32(waiters), woke.Load())
	})
}

// Wait must return with the mutex held by the waiter, on every tier and on
// every wake path.
func TestCondWaitReturnsHoldingMutex(t *testing.T) {
	forEachTier(t, func(t *testing.T) {
		var (
			mu    Mutex
			cond  Cond
			ready bool
		)
		holding := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			mu.Lock()
			for !ready {
				cond.Wait(&mu)
			}
			close(holding)
			<-release
			mu.Unlock()
			close(done)
		}()

		mu.Lock()
		ready = true
		mu.Unlock()
		signalUntil(t, cond.Signal, holding)

		// The waiter is back from Wait and has not unlocked yet.
		assert.False(t, mu.TryLock(), "mutex not held after Wait returned")
		close(release)
		<-done
		mu.Lock()
		mu.Unlock()
	})
}

func TestCondWaitTimeoutExpires(t *testing.T) {
	forEachTier(t, func(t *testing.T) {
		var (
			mu   Mutex
			cond Cond
		)
		const d = 50 * time.Millisecond
		mu.Lock()
		start := time.Now()
		notified := cond.WaitTimeout(&mu, d)
		elapsed := time.Since(start)
		mu.Unlock()

		require.False(t, notified, "reported a notification nobody sent")
		// Allow one scheduler tick of slack below the requested duration.
		assert.GreaterOrEqual(t, elapsed, d-16*time.Millisecond, "timed out early")
	})
}

func TestCondWaitTimeoutNotified(t *testing.T) {
	forEachTier(t, func(t *testing.T) {
		var (
			mu    Mutex
			cond  Cond
			ready bool
		)
		done := make(chan struct{})
		result := make(chan bool, 1)
		go func() {
			mu.Lock()
			notified := true
			for !ready && notified {
				notified = cond.WaitTimeout(&mu, 10*time.Second)
			}
			mu.Unlock()
			result <- notified
			close(done)
		}()

		mu.Lock()
		ready = true
		mu.Unlock()
		signalUntil(t, cond.Signal, done)
		require.True(t, <-result, "notification reported as a timeout")
	})
}

func TestCondDestroy(t *testing.T) {
	forEachTier(t, func(t *testing.T) {
		var (
			mu   Mutex
			cond Cond
		)
		mu.Lock()
		cond.WaitTimeout(&mu, time.Millisecond)
		mu.Unlock()
		cond.Destroy()
		cond.Destroy() // idempotent
	})
}

func TestDurationToTimeout(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want uint32
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Nanosecond, 1},
		{time.Millisecond, 1},
		{time.Millisecond + time.Nanosecond, 2},
		{time.Second, 1000},
		{100 * 24 * time.Hour, windows.INFINITE},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, durationToTimeout(tt.d), "durationToTimeout(%v)", tt.d)
	}
}
