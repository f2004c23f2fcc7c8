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
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// CapabilityReport renders a one-line summary of what the probe found, for
// the startup debug log and for bug reports against exotic OS images.
func CapabilityReport() string {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.WriteString("tier=")
	b.WriteString(mutexTier.String())
	b.WriteString(" nt=")
	b.WriteString(strconv.FormatBool(windowsNT))
	b.WriteString(" srwlock=")
	b.WriteString(strconv.FormatBool(procTryAcquireSRWLockExclusive.Available()))
	b.WriteString(" try_enter_critical_section=")
	b.WriteString(strconv.FormatBool(procTryEnterCriticalSection.Available()))
	b.WriteString(" wait_on_address=")
	b.WriteString(strconv.FormatBool(procWaitOnAddress.Available()))
	b.WriteString(" switch_to_thread=")
	b.WriteString(strconv.FormatBool(procSwitchToThread.Available()))
	return b.String()
}
