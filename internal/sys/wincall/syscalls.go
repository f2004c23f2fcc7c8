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
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	kernel32 = "kernel32"
	// synchModule is the API set kernel32 re-exports the address-wait
	// functions from; it is already mapped whenever they exist at all.
	synchModule = "api-ms-win-core-synch-l1-2-0"
)

// SRWLock has the layout of the native SRWLOCK: a single pointer-sized word.
// The zero value is an unlocked lock; it must not be copied while in use.
type SRWLock struct {
	ptr uintptr
}

// ConditionVariable has the layout of the native CONDITION_VARIABLE. The
// zero value is ready for use.
type ConditionVariable struct {
	ptr uintptr
}

// CriticalSection has the layout of the native CRITICAL_SECTION. It must be
// initialized before use and must not move afterwards, so owners keep it
// behind a stable heap pointer.
type CriticalSection struct {
	debugInfo      uintptr
	lockCount      int32
	recursionCount int32
	owningThread   uintptr
	lockSemaphore  uintptr
	spinCount      uintptr
}

// Slim reader/writer locks and native condition variables, Vista and later.
// The Try* acquires arrived with Win7, which is why they lead the group: the
// probe keys the Modern tier off the newest member.
var (
	procTryAcquireSRWLockExclusive = &OptionalProc{mod: kernel32, name: "TryAcquireSRWLockExclusive"}
	procTryAcquireSRWLockShared    = &OptionalProc{mod: kernel32, name: "TryAcquireSRWLockShared"}
	procAcquireSRWLockExclusive    = &OptionalProc{mod: kernel32, name: "AcquireSRWLockExclusive"}
	procAcquireSRWLockShared       = &OptionalProc{mod: kernel32, name: "AcquireSRWLockShared"}
	procReleaseSRWLockExclusive    = &OptionalProc{mod: kernel32, name: "ReleaseSRWLockExclusive"}
	procReleaseSRWLockShared       = &OptionalProc{mod: kernel32, name: "ReleaseSRWLockShared"}
	procSleepConditionVariableSRW  = &OptionalProc{mod: kernel32, name: "SleepConditionVariableSRW"}
	procWakeConditionVariable      = &OptionalProc{mod: kernel32, name: "WakeConditionVariable"}
	procWakeAllConditionVariable   = &OptionalProc{mod: kernel32, name: "WakeAllConditionVariable"}
)

// Critical sections exist on every supported release, but
// TryEnterCriticalSection only since NT4, so it alone is optional.
var (
	procInitializeCriticalSection = &Proc{mod: kernel32, name: "InitializeCriticalSection"}
	procEnterCriticalSection      = &Proc{mod: kernel32, name: "EnterCriticalSection"}
	procLeaveCriticalSection      = &Proc{mod: kernel32, name: "LeaveCriticalSection"}
	procDeleteCriticalSection     = &Proc{mod: kernel32, name: "DeleteCriticalSection"}
	procTryEnterCriticalSection   = &OptionalProc{mod: kernel32, name: "TryEnterCriticalSection"}
)

// Address waits, Win8 and later.
var (
	procWaitOnAddress       = &OptionalProc{mod: synchModule, name: "WaitOnAddress"}
	procWakeByAddressSingle = &OptionalProc{mod: synchModule, name: "WakeByAddressSingle"}
	procWakeByAddressAll    = &OptionalProc{mod: synchModule, name: "WakeByAddressAll"}
)

// SwitchToThread is NT-only; the 9x line yields by sleeping for zero ticks,
// which is exactly what the fallback does.
var procSwitchToThread = &FallbackProc{
	mod:  kernel32,
	name: "SwitchToThread",
	fallback: func(...uintptr) uintptr {
		windows.SleepEx(0, false)
		return 0
	},
}

func loadSRWFunctions() bool {
	return preloadGroup(kernel32,
		procTryAcquireSRWLockExclusive,
		procTryAcquireSRWLockShared,
		procAcquireSRWLockExclusive,
		procAcquireSRWLockShared,
		procReleaseSRWLockExclusive,
		procReleaseSRWLockShared,
		procSleepConditionVariableSRW,
		procWakeConditionVariable,
		procWakeAllConditionVariable,
	)
}

func loadTryEnterCriticalSectionFunction() bool {
	return preloadGroup(kernel32, procTryEnterCriticalSection)
}

func loadSynchFunctions() bool {
	return preloadGroup(synchModule,
		procWaitOnAddress,
		procWakeByAddressSingle,
		procWakeByAddressAll,
	)
}

// AcquireSRWLockExclusive blocks until l is held in exclusive mode. Acquiring
// a lock the calling thread already holds exclusively deadlocks.
func AcquireSRWLockExclusive(l *SRWLock) {
	syscall.SyscallN(procAcquireSRWLockExclusive.Addr(), uintptr(unsafe.Pointer(l)))
}

// TryAcquireSRWLockExclusive acquires l in exclusive mode without blocking.
func TryAcquireSRWLockExclusive(l *SRWLock) bool {
	r1, _, _ := syscall.SyscallN(procTryAcquireSRWLockExclusive.Addr(), uintptr(unsafe.Pointer(l)))
	return r1 != 0
}

// ReleaseSRWLockExclusive releases an exclusive hold on l.
func ReleaseSRWLockExclusive(l *SRWLock) {
	syscall.SyscallN(procReleaseSRWLockExclusive.Addr(), uintptr(unsafe.Pointer(l)))
}

// AcquireSRWLockShared blocks until l is held in shared mode.
func AcquireSRWLockShared(l *SRWLock) {
	syscall.SyscallN(procAcquireSRWLockShared.Addr(), uintptr(unsafe.Pointer(l)))
}

// TryAcquireSRWLockShared acquires l in shared mode without blocking.
func TryAcquireSRWLockShared(l *SRWLock) bool {
	r1, _, _ := syscall.SyscallN(procTryAcquireSRWLockShared.Addr(), uintptr(unsafe.Pointer(l)))
	return r1 != 0
}

// ReleaseSRWLockShared releases a shared hold on l.
func ReleaseSRWLockShared(l *SRWLock) {
	syscall.SyscallN(procReleaseSRWLockShared.Addr(), uintptr(unsafe.Pointer(l)))
}

// SleepConditionVariableSRW atomically releases l, sleeps on cv for at most
// timeoutMs milliseconds, and reacquires l before returning. The combined
// call leaves no window between the release and the start of the wait, which
// is the whole reason the native condition variable is preferred when
// available. It reports false on failure, with the errno describing why
// (ERROR_TIMEOUT for an expired timeout).
func SleepConditionVariableSRW(cv *ConditionVariable, l *SRWLock, timeoutMs uint32, flags uint32) (bool, syscall.Errno) {
	r1, _, e := syscall.SyscallN(procSleepConditionVariableSRW.Addr(),
		uintptr(unsafe.Pointer(cv)), uintptr(unsafe.Pointer(l)), uintptr(timeoutMs), uintptr(flags))
	return r1 != 0, e
}

// WakeConditionVariable wakes one thread sleeping on cv.
func WakeConditionVariable(cv *ConditionVariable) {
	syscall.SyscallN(procWakeConditionVariable.Addr(), uintptr(unsafe.Pointer(cv)))
}

// WakeAllConditionVariable wakes every thread sleeping on cv.
func WakeAllConditionVariable(cv *ConditionVariable) {
	syscall.SyscallN(procWakeAllConditionVariable.Addr(), uintptr(unsafe.Pointer(cv)))
}

// InitializeCriticalSection prepares cs for use.
func InitializeCriticalSection(cs *CriticalSection) {
	syscall.SyscallN(procInitializeCriticalSection.Addr(), uintptr(unsafe.Pointer(cs)))
}

// EnterCriticalSection blocks until cs is held. Re-entering from the holding
// thread succeeds silently; callers that need uniform semantics must detect
// that themselves.
func EnterCriticalSection(cs *CriticalSection) {
	syscall.SyscallN(procEnterCriticalSection.Addr(), uintptr(unsafe.Pointer(cs)))
}

// TryEnterCriticalSection acquires cs without blocking. Callers must have
// confirmed availability; the capability probe does so before selecting the
// Intermediate tier.
func TryEnterCriticalSection(cs *CriticalSection) bool {
	r1, _, _ := syscall.SyscallN(procTryEnterCriticalSection.Addr(), uintptr(unsafe.Pointer(cs)))
	return r1 != 0
}

// LeaveCriticalSection releases one level of ownership of cs.
func LeaveCriticalSection(cs *CriticalSection) {
	syscall.SyscallN(procLeaveCriticalSection.Addr(), uintptr(unsafe.Pointer(cs)))
}

// DeleteCriticalSection releases the resources of an unowned cs. Deleting an
// owned critical section is undefined behavior; owners leak instead.
func DeleteCriticalSection(cs *CriticalSection) {
	syscall.SyscallN(procDeleteCriticalSection.Addr(), uintptr(unsafe.Pointer(cs)))
}

// AddressWaitAvailable reports whether the WaitOnAddress family resolved.
func AddressWaitAvailable() bool {
	return procWaitOnAddress.Available()
}

// WaitOnAddress sleeps until the 4 bytes at addr no longer equal the 4 bytes
// at compare, a wake is posted to addr, or the timeout expires. Spurious
// returns are possible; callers recheck their predicate.
func WaitOnAddress(addr, compare unsafe.Pointer, size uintptr, timeoutMs uint32) (bool, syscall.Errno) {
	r1, _, e := syscall.SyscallN(procWaitOnAddress.Addr(),
		uintptr(addr), uintptr(compare), size, uintptr(timeoutMs))
	return r1 != 0, e
}

// WakeByAddressSingle wakes one waiter sleeping on addr.
func WakeByAddressSingle(addr unsafe.Pointer) {
	syscall.SyscallN(procWakeByAddressSingle.Addr(), uintptr(addr))
}

// WakeByAddressAll wakes every waiter sleeping on addr.
func WakeByAddressAll(addr unsafe.Pointer) {
	syscall.SyscallN(procWakeByAddressAll.Addr(), uintptr(addr))
}

// SwitchToThread yields the remainder of the time slice to any ready thread.
func SwitchToThread() {
	procSwitchToThread.Call()
}
