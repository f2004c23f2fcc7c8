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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierMatchesProbedCapabilities(t *testing.T) {
	switch CurrentTier() {
	case TierModern:
		assert.True(t, procTryAcquireSRWLockExclusive.Available())
	case TierIntermediate:
		assert.False(t, procTryAcquireSRWLockExclusive.Available())
		assert.True(t, procTryEnterCriticalSection.Available())
	case TierLegacy:
		assert.False(t, procTryAcquireSRWLockExclusive.Available())
		assert.False(t, procTryEnterCriticalSection.Available())
	default:
		t.Fatalf("probe produced an unknown tier: %v", CurrentTier())
	}
}

func TestForceTierRestores(t *testing.T) {
	orig := CurrentTier()
	restore := ForceTier(TierLegacy)
	require.Equal(t, TierLegacy, CurrentTier())
	restore()
	require.Equal(t, orig, CurrentTier())
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "modern", TierModern.String())
	assert.Equal(t, "intermediate", TierIntermediate.String())
	assert.Equal(t, "legacy", TierLegacy.String())
	assert.Equal(t, "unknown", Tier(250).String())
}

func TestCapabilityReport(t *testing.T) {
	r := CapabilityReport()
	assert.Contains(t, r, "tier="+CurrentTier().String())
	assert.Contains(t, r, " nt=")
	assert.Contains(t, r, " srwlock=")
	assert.Contains(t, r, " wait_on_address=")
	// The pooled buffer must not be reused while its contents are live.
	assert.Equal(t, r, CapabilityReport())
}

func TestIsWindowsNT(t *testing.T) {
	// Anything this test binary runs on is NT-based.
	assert.True(t, IsWindowsNT())
}
