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

// Package errors provides all the error values used by winsync.
package errors

import "errors"

var (
	// ErrRecursiveLock occurs when a goroutine attempts to lock a Mutex it
	// already holds. The modern slim lock would deadlock on recursion, so the
	// degraded tiers turn the silent reentrancy of their primitives into this
	// fatal error to keep behavior uniform.
	ErrRecursiveLock = errors.New("winsync: recursive lock of mutex")
	// ErrProcNotFound occurs when an entry point assumed to exist in a loaded
	// system module cannot be resolved.
	ErrProcNotFound = errors.New("winsync: system entry point not found")
	// ErrWaitFailed occurs when a kernel-object wait returns something other
	// than success, timeout, or abandonment.
	ErrWaitFailed = errors.New("winsync: wait on kernel object failed")
	// ErrInvalidTier occurs when a tier value outside the known set reaches a
	// variant switch.
	ErrInvalidTier = errors.New("winsync: invalid capability tier")
)
