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

// Package wincall resolves and invokes Windows synchronization entry points
// that may or may not exist in the running OS image.
//
// Several of the entry points this module depends on are absent from older
// Windows releases, so none of them may be imported ahead of time: a hard
// link-time dependency on, say, AcquireSRWLockExclusive would keep the whole
// process from loading on anything older than Vista. Instead every symbol is
// bound on first use through GetModuleHandle/GetProcAddress and memoized in
// an atomic cell. Races between threads that resolve the same symbol for the
// first time are benign: resolution is idempotent and deterministic, so the
// cell converges no matter which store lands last.
package wincall

import (
	"golang.org/x/sys/windows"
)

// module is a handle to a mapped system module. Modules this package binds
// against are never unloaded, so a handle stays valid for the process's
// lifetime.
type module struct {
	h windows.Handle
}

// moduleHandle returns a handle to an already-mapped module without loading
// anything.
func moduleHandle(name string) (module, bool) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return module{}, false
	}
	var h windows.Handle
	err = windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, p, &h)
	if err != nil || h == 0 {
		return module{}, false
	}
	return module{h}, true
}

// loadModule maps the named module into the process if it is not already
// mapped. Loading an already-mapped module is a no-op at the OS level, which
// keeps first-use races harmless.
func loadModule(name string) (module, bool) {
	h, err := windows.LoadLibrary(name)
	if err != nil || h == 0 {
		return module{}, false
	}
	return module{h}, true
}

// lookup resolves a module by name, loading it only when load is set.
func lookup(name string, load bool) (module, bool) {
	if load {
		return loadModule(name)
	}
	return moduleHandle(name)
}

// proc returns the address of the named symbol, or false if the module does
// not export it.
func (m module) proc(name string) (uintptr, bool) {
	a, err := windows.GetProcAddress(m.h, name)
	if err != nil || a == 0 {
		return 0, false
	}
	return a, true
}
