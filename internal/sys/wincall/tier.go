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
	"golang.org/x/sys/windows"

	"github.com/downlevel/winsync/pkg/logging"
)

// Tier is the capability level of the host's synchronization primitives.
// It is a pure function of the OS image, probed once per process and never
// downgraded while running.
type Tier uint8

const (
	// TierModern selects slim reader/writer locks and native condition
	// variables. Requires the Try* SRW acquires, so Win7 / Server 2008 R2
	// and later (Vista has SRW locks but not the Try* entry points).
	TierModern Tier = iota
	// TierIntermediate selects critical sections. TryEnterCriticalSection
	// gates it: NT4 and later, never the 9x line.
	TierIntermediate
	// TierLegacy selects kernel mutex objects, available everywhere.
	TierLegacy
)

func (t Tier) String() string {
	switch t {
	case TierModern:
		return "modern"
	case TierIntermediate:
		return "intermediate"
	case TierLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// mutexTier is written exactly once, below, during package initialization.
// Package init runs before main and before any user goroutine can exist, so
// later readers need no synchronization; ForceTier is the test-only
// exception and carries its own caveats.
var mutexTier Tier

var windowsNT = true

func init() {
	windowsNT = initVersionCheck()
	loadTryEnterCriticalSectionFunction()
	loadSRWFunctions()
	initTier()
	loadSynchFunctions()
	logging.Debugf("wincall: %s", CapabilityReport())
}

// initVersionCheck reports whether this is an NT-based system. Per old MSDN,
// the high-order bit of GetVersion is set only on 95/98/ME.
func initVersionCheck() bool {
	v, err := windows.GetVersion()
	if err != nil {
		return true
	}
	return v < 0x8000_0000
}

// IsWindowsNT reports whether the host is NT-based. Only relevant for entry
// points whose behavior differs on the 9x line.
func IsWindowsNT() bool {
	return windowsNT
}

// initTier picks the numerically newest tier whose probe succeeds, never
// falling back further than necessary.
func initTier() {
	switch {
	case procTryAcquireSRWLockExclusive.Available():
		mutexTier = TierModern
	case procTryEnterCriticalSection.Available():
		mutexTier = TierIntermediate
	default:
		mutexTier = TierLegacy
	}
}

// CurrentTier returns the tier selected by the capability probe.
func CurrentTier() Tier {
	return mutexTier
}

// ForceTier overrides the probed tier and returns a function that restores
// it. It exists so tests can exercise the degraded variants on a modern
// host; the Intermediate and Legacy primitives remain fully functional
// there. It must not run concurrently with lock construction, and locks
// constructed before the override keep their original variant.
func ForceTier(t Tier) (restore func()) {
	prev := mutexTier
	mutexTier = t
	logging.Debugf("wincall: tier forced from %s to %s", prev, t)
	return func() {
		mutexTier = prev
	}
}
