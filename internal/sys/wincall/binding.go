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
	"fmt"
	"sync/atomic"
	"syscall"

	"github.com/downlevel/winsync/pkg/errors"
	"github.com/downlevel/winsync/pkg/logging"
)

// procMissing marks a memo cell whose symbol could not be resolved. Zero
// means unresolved; any other value is the entry point's address.
const procMissing = ^uintptr(0)

// Proc is a lazily bound entry point that must exist once its module is
// loaded. A missing symbol is an inconsistent programming environment, not a
// runtime condition, so Addr panics instead of reporting it.
type Proc struct {
	mod  string
	name string
	load bool
	addr atomic.Uintptr
}

// Addr returns the entry point's address, resolving it on first use.
func (p *Proc) Addr() uintptr {
	if a := p.addr.Load(); a != 0 {
		return a
	}
	return p.resolve()
}

func (p *Proc) resolve() uintptr {
	if m, ok := lookup(p.mod, p.load); ok {
		if a, ok := m.proc(p.name); ok {
			p.addr.Store(a)
			return a
		}
	}
	panic(fmt.Errorf("%w: %s!%s", errors.ErrProcNotFound, p.mod, p.name))
}

// OptionalProc is a lazily bound entry point that is allowed to be missing.
// Callers must check Available before invoking it; the capability probe uses
// exactly that query to pick the lock tier.
type OptionalProc struct {
	mod  string
	name string
	load bool
	addr atomic.Uintptr
}

// Available reports whether the entry point exists in the running OS image,
// resolving it if no preload has run yet.
func (p *OptionalProc) Available() bool {
	a := p.addr.Load()
	if a == 0 {
		a = p.resolve()
	}
	return a != procMissing
}

// Addr returns the resolved address. Invoking an unavailable entry point is
// a contract violation; it fails deterministically rather than jumping to a
// garbage address.
func (p *OptionalProc) Addr() uintptr {
	a := p.addr.Load()
	if a == 0 {
		a = p.resolve()
	}
	if a == procMissing {
		panic(fmt.Errorf("%w: %s!%s (availability not checked)", errors.ErrProcNotFound, p.mod, p.name))
	}
	return a
}

func (p *OptionalProc) resolve() uintptr {
	if m, ok := lookup(p.mod, p.load); ok {
		if a, ok := m.proc(p.name); ok {
			p.addr.Store(a)
			return a
		}
	}
	p.addr.Store(procMissing)
	return procMissing
}

// preloadGroup resolves a set of optional entry points from one module,
// all-or-nothing: either every symbol is installed or every cell is marked
// missing. Tiers are probed against whole groups, so a partially present
// group (which does not occur on real images) must not look usable.
func preloadGroup(modName string, procs ...*OptionalProc) bool {
	if m, ok := moduleHandle(modName); ok {
		addrs := make([]uintptr, len(procs))
		complete := true
		for i, p := range procs {
			a, ok := m.proc(p.name)
			if !ok {
				complete = false
				break
			}
			addrs[i] = a
		}
		if complete {
			for i, p := range procs {
				p.addr.Store(addrs[i])
			}
			return true
		}
	}
	for _, p := range procs {
		p.addr.Store(procMissing)
	}
	return false
}

// FallbackProc is a lazily bound entry point with a permanent, signature
// compatible Go substitute. When the symbol is missing the fallback is
// installed once and every call, including the resolving one, behaves as if
// the real entry point had returned the fallback's result.
//
// FallbackProc must only describe entry points whose arguments carry no
// pointers; pointer arguments need a fixed-signature wrapper that converts
// inside the syscall expression.
type FallbackProc struct {
	mod      string
	name     string
	load     bool
	fallback func(args ...uintptr) uintptr
	addr     atomic.Uintptr
}

// Call invokes the entry point or its fallback.
func (p *FallbackProc) Call(args ...uintptr) uintptr {
	a := p.addr.Load()
	if a == 0 {
		a = p.resolve()
	}
	if a == procMissing {
		return p.fallback(args...)
	}
	r1, _, _ := syscall.SyscallN(a, args...)
	return r1
}

// Available reports whether the real entry point resolved; the fallback is
// used either way, so this only informs diagnostics.
func (p *FallbackProc) Available() bool {
	a := p.addr.Load()
	if a == 0 {
		a = p.resolve()
	}
	return a != procMissing
}

func (p *FallbackProc) resolve() uintptr {
	if m, ok := lookup(p.mod, p.load); ok {
		if a, ok := m.proc(p.name); ok {
			p.addr.Store(a)
			return a
		}
	}
	logging.Debugf("wincall: %s!%s not present, fallback installed", p.mod, p.name)
	p.addr.Store(procMissing)
	return procMissing
}
