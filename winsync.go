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

// Package winsync provides mutual-exclusion locks, condition variables and
// read/write locks built directly on the richest native synchronization
// primitives the running Windows image offers.
//
// The native API surface varies by OS generation: slim reader/writer locks
// and native condition variables (the fastest primitives) only exist on
// newer releases, older ones expose recursive critical sections, and the
// oldest only handle-based kernel mutexes. A capability probe runs once,
// before main, and selects the best usable tier; every operation afterwards
// behaves identically regardless of the selected tier. Semantic gaps are
// normalized: the slim lock deadlocks on same-thread recursion while the
// degraded primitives would silently succeed, so the degraded tiers detect
// recursion and abort deterministically instead.
//
// Fairness between waiters is unspecified on every tier, and spurious
// wakeups are always possible for condition variable waiters.
//
// All types are safe for use by multiple goroutines. Under the degraded
// tiers the underlying primitives track their owning OS thread, so Lock pins
// the calling goroutine to its thread until the matching Unlock.
package winsync
