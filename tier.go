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

// Tier identifies which generation of native primitives backs the locks in
// this process. It is determined once, before main, and never changes.
type Tier = wincall.Tier

const (
	// TierModern: slim reader/writer locks and native condition variables.
	TierModern = wincall.TierModern
	// TierIntermediate: critical sections plus manual-reset events.
	TierIntermediate = wincall.TierIntermediate
	// TierLegacy: kernel mutex objects plus manual-reset events.
	TierLegacy = wincall.TierLegacy
)

// CurrentTier returns the tier the capability probe selected for this
// process. Diagnostic only; behavior is uniform across tiers apart from the
// documented concurrency-of-readers and wake-granularity differences.
func CurrentTier() Tier {
	return wincall.CurrentTier()
}
