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

package wincall

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/downlevel/winsync/pkg/errors"
)

func TestProcResolvesPresentSymbol(t *testing.T) {
	p := &Proc{mod: kernel32, name: "GetCurrentProcessId"}
	require.NotZero(t, p.Addr())
	// Memoized: second lookup returns the identical address.
	require.Equal(t, p.Addr(), p.Addr())
}

func TestProcPanicsOnMissingSymbol(t *testing.T) {
	p := &Proc{mod: kernel32, name: "WinsyncNoSuchEntryPoint"}
	defer func() {
		r := recover()
		require.NotNil(t, r, "missing must-exist symbol did not panic")
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, errs.ErrProcNotFound)
	}()
	p.Addr()
}

func TestOptionalProcAvailability(t *testing.T) {
	present := &OptionalProc{mod: kernel32, name: "GetCurrentThreadId"}
	assert.True(t, present.Available())
	assert.NotZero(t, present.Addr())

	missing := &OptionalProc{mod: kernel32, name: "WinsyncNoSuchEntryPoint"}
	assert.False(t, missing.Available())
}

func TestOptionalProcCallWithoutCheckPanics(t *testing.T) {
	missing := &OptionalProc{mod: kernel32, name: "WinsyncNoSuchEntryPoint"}
	defer func() {
		require.NotNil(t, recover(), "address of unavailable entry point did not panic")
	}()
	missing.Addr()
}

func TestFallbackProcUsesFallback(t *testing.T) {
	var calls int
	p := &FallbackProc{
		mod:  kernel32,
		name: "WinsyncNoSuchEntryPoint",
		fallback: func(...uintptr) uintptr {
			calls++
			return 42
		},
	}
	assert.Equal(t, uintptr(42), p.Call())
	assert.Equal(t, uintptr(42), p.Call())
	assert.Equal(t, 2, calls)
	assert.False(t, p.Available())
}

func TestFallbackProcPrefersRealEntryPoint(t *testing.T) {
	p := &FallbackProc{
		mod:  kernel32,
		name: "GetCurrentThreadId",
		fallback: func(...uintptr) uintptr {
			t.Error("fallback invoked although the real entry point exists")
			return 0
		},
	}
	assert.NotZero(t, p.Call())
	assert.True(t, p.Available())
}

// Many goroutines racing to resolve the same symbol for the first time must
// converge on one effective behavior, never a mix within a process run.
func TestBindingResolutionRaceConverges(t *testing.T) {
	for name, want := range map[string]bool{
		"GetCurrentProcessId":     true,
		"WinsyncNoSuchEntryPoint": false,
	} {
		name, want := name, want
		t.Run(name, func(t *testing.T) {
			p := &OptionalProc{mod: kernel32, name: name}
			const goroutines = 32
			results := make([]bool, goroutines)
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < goroutines; i++ {
				i := i
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					results[i] = p.Available()
				}()
			}
			close(start)
			wg.Wait()
			for i, got := range results {
				require.Equal(t, want, got, "goroutine %d diverged", i)
			}
		})
	}
}

func TestPreloadGroupAllOrNothing(t *testing.T) {
	a := &OptionalProc{mod: kernel32, name: "GetCurrentProcessId"}
	b := &OptionalProc{mod: kernel32, name: "WinsyncNoSuchEntryPoint"}
	require.False(t, preloadGroup(kernel32, a, b))
	// One member missing poisons the whole group.
	assert.False(t, a.Available())
	assert.False(t, b.Available())

	c := &OptionalProc{mod: kernel32, name: "GetCurrentProcessId"}
	d := &OptionalProc{mod: kernel32, name: "GetCurrentThreadId"}
	require.True(t, preloadGroup(kernel32, c, d))
	assert.True(t, c.Available())
	assert.True(t, d.Available())
}

func TestCriticalSectionRoundTrip(t *testing.T) {
	if !procTryEnterCriticalSection.Available() {
		t.Skip("TryEnterCriticalSection not present on this image")
	}
	cs := new(CriticalSection)
	InitializeCriticalSection(cs)
	EnterCriticalSection(cs)
	// Critical sections are reentrant for the owning thread.
	require.True(t, TryEnterCriticalSection(cs))
	LeaveCriticalSection(cs)
	LeaveCriticalSection(cs)
	DeleteCriticalSection(cs)
}

func TestSwitchToThread(t *testing.T) {
	// Only verifies the binding is callable on whatever path resolved.
	SwitchToThread()
	SwitchToThread()
}
