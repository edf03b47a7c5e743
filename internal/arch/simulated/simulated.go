// Copyright 2026 The Microkernel Authors.
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

// Package simulated implements internal/arch.Intrinsics entirely in Go
// memory, with no real VMX/SVM hardware behind it. It is used by every
// package's unit tests and by the "simulated" vmmctl platform, letting
// the microkernel core run without a KVM-capable host.
package simulated

import (
	"sync"

	"github.com/lusceu/microkernel/internal/arch"
)

type vps struct {
	fields map[arch.Field]uint64
	loaded bool
}

// Backend is an in-memory stand-in for real hypervisor hardware.
type Backend struct {
	mu          sync.Mutex
	nextHandle  uintptr
	vpss        map[uintptr]*vps
	rootTable   uintptr
	loadedOnPP  uintptr // handle currently loaded, 0 if none

	// ExitScript, if non-empty, is popped from (in order) by Launch and
	// Resume instead of synthesizing a HLT exit; it lets tests drive a
	// specific sequence of VM exits.
	ExitScript []arch.ExitInfo
}

// New returns a ready Backend.
func New() *Backend {
	return &Backend{vpss: make(map[uintptr]*vps)}
}

// ActivateRootTable implements arch.Intrinsics.
func (b *Backend) ActivateRootTable(phys uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rootTable = phys
	return nil
}

// CurrentRootTable implements arch.Intrinsics.
func (b *Backend) CurrentRootTable() (uintptr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rootTable, nil
}

// InvalidateTLB implements arch.Intrinsics.
func (b *Backend) InvalidateTLB() error { return nil }

// CreateVPS implements arch.Intrinsics.
func (b *Backend) CreateVPS() (uintptr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextHandle++
	h := b.nextHandle
	b.vpss[h] = &vps{fields: make(map[arch.Field]uint64)}
	return h, nil
}

// DestroyVPS implements arch.Intrinsics.
func (b *Backend) DestroyVPS(handle uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadedOnPP == handle {
		b.loadedOnPP = 0
	}
	delete(b.vpss, handle)
	return nil
}

// LoadVPS implements arch.Intrinsics.
func (b *Backend) LoadVPS(handle uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.vpss[handle]
	if !ok {
		return arch.ErrUnsupportedField
	}
	b.loadedOnPP = handle
	v.loaded = true
	return nil
}

// ClearVPS implements arch.Intrinsics.
func (b *Backend) ClearVPS(handle uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.vpss[handle]; ok {
		v.loaded = false
	}
	if b.loadedOnPP == handle {
		b.loadedOnPP = 0
	}
	return nil
}

func (b *Backend) nextExit() arch.ExitInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ExitScript) > 0 {
		e := b.ExitScript[0]
		b.ExitScript = b.ExitScript[1:]
		return e
	}
	return arch.ExitInfo{Reason: arch.ExitReasonHLT}
}

// Launch implements arch.Intrinsics.
func (b *Backend) Launch(handle uintptr) (arch.ExitInfo, error) {
	return b.nextExit(), nil
}

// Resume implements arch.Intrinsics.
func (b *Backend) Resume(handle uintptr) (arch.ExitInfo, error) {
	return b.nextExit(), nil
}

// ReadField implements arch.Intrinsics.
func (b *Backend) ReadField(handle uintptr, field arch.Field) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.vpss[handle]
	if !ok {
		return 0, arch.ErrUnsupportedField
	}
	return v.fields[field], nil
}

// WriteField implements arch.Intrinsics.
func (b *Backend) WriteField(handle uintptr, field arch.Field, value uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.vpss[handle]
	if !ok {
		return arch.ErrUnsupportedField
	}
	v.fields[field] = value
	return nil
}

var _ arch.Intrinsics = (*Backend)(nil)
