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

// Package vps implements the virtual processor state (VPS) pool (spec.md
// §4.6): a fixed-size table of hardware control structures (VMCS/VMCB
// equivalents), each identified by an ID16, with the loaded/launched
// flags and the per-PP single-loaded invariant spec.md §8 requires.
//
// Tracks which VPS is loaded on which PP with a single coarse pool lock
// (mu sync.Mutex) plus a slot table instead of per-slot atomics, since
// MAX_VPSS is small and contention here is not worth optimizing for.
package vps

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

type slot struct {
	st         state.State
	handle     uintptr
	loaded     bool
	launched   bool
	loadedOnPP id.ID16
	assignedVM id.ID16
	assignedVP id.ID16
}

// Pool is the fixed-size VPS table.
type Pool struct {
	mu sync.Mutex
	hw arch.Intrinsics

	slots []slot
	// loadedPerPP enforces "at most one VPS loaded per PP" (spec.md §8
	// invariant 3): it maps a physical processor's ID16 to the VPS
	// currently loaded there.
	loadedPerPP map[id.ID16]id.ID16
}

// New returns a Pool with room for capacity VPS slots, all initially
// Deallocated.
func New(capacity int, hw arch.Intrinsics) *Pool {
	return &Pool{
		hw:          hw,
		slots:       make([]slot, capacity),
		loadedPerPP: make(map[id.ID16]id.ID16),
	}
}

func (p *Pool) find() (id.ID16, bool) {
	for i := range p.slots {
		if p.slots[i].st.CanAllocate() {
			return id.ID16(i), true
		}
	}
	return id.InvalidID16, false
}

func (p *Pool) slot(vps id.ID16) (*slot, error) {
	if !vps.Valid() || int(vps) >= len(p.slots) {
		return nil, fmt.Errorf("vps: invalid handle %d", vps)
	}
	return &p.slots[vps], nil
}

// Create allocates a VPS slot and its backing hardware control
// structure, assigned to run the given VM/VP.
func (p *Pool) Create(vm, vp id.ID16) (id.ID16, mkstatus.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.find()
	if !ok {
		return id.InvalidID16, mkstatus.ResourceExhausted
	}
	handle, err := p.hw.CreateVPS()
	if err != nil {
		return id.InvalidID16, mkstatus.Failure
	}
	p.slots[idx] = slot{st: state.Allocated, handle: handle, assignedVM: vm, assignedVP: vp}
	return idx, mkstatus.Success
}

// Destroy releases a VPS slot's hardware control structure and returns
// the slot to Deallocated. The slot must not currently be loaded.
func (p *Pool) Destroy(vps id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vps)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanDeallocate() {
		if s.st == state.Zombie {
			return mkstatus.Zombie
		}
		return mkstatus.InvalidParams
	}
	if s.loaded {
		return mkstatus.InvalidParams
	}
	if err := p.hw.DestroyVPS(s.handle); err != nil {
		return mkstatus.Failure
	}
	*s = slot{}
	return mkstatus.Success
}

// Zombify transitions a VPS slot to the terminal Zombie state, per
// spec.md §4.7's zombification contract (shared across VM/VP/VPS).
func (p *Pool) Zombify(vps id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vps)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanZombify() {
		return mkstatus.InvalidParams
	}
	s.st = state.Zombie
	return mkstatus.Success
}

// Load makes vps the hardware-current control structure on physical
// processor pp. It fails if any other VPS is already loaded there,
// enforcing spec.md §8 invariant 3. A zombie cannot be re-loaded, per
// the zombification contract.
func (p *Pool) Load(vps, pp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vps)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanSetActive() {
		if s.st == state.Zombie {
			return mkstatus.Zombie
		}
		return mkstatus.InvalidParams
	}
	if existing, ok := p.loadedPerPP[pp]; ok && existing != vps {
		return mkstatus.PermissionDenied
	}
	if err := p.hw.LoadVPS(s.handle); err != nil {
		return mkstatus.Failure
	}
	s.loaded = true
	s.loadedOnPP = pp
	p.loadedPerPP[pp] = vps
	return mkstatus.Success
}

// Clear flushes vps's cached state so it may be loaded on a different
// physical processor (spec.md §4.6: "clear ... required before
// cross-PP reuse").
func (p *Pool) Clear(vps id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vps)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.loaded {
		return mkstatus.Success
	}
	if err := p.hw.ClearVPS(s.handle); err != nil {
		return mkstatus.Failure
	}
	delete(p.loadedPerPP, s.loadedOnPP)
	s.loaded = false
	s.loadedOnPP = id.InvalidID16
	return mkstatus.Success
}

// Run enters the guest described by vps, launching it on the first call
// and resuming it on every subsequent call, per spec.md §4.6.
func (p *Pool) Run(vps id.ID16) (arch.ExitInfo, mkstatus.Status) {
	p.mu.Lock()
	s, err := p.slot(vps)
	if err != nil {
		p.mu.Unlock()
		return arch.ExitInfo{}, mkstatus.InvalidParams
	}
	if !s.loaded {
		p.mu.Unlock()
		return arch.ExitInfo{}, mkstatus.InvalidParams
	}
	handle := s.handle
	launched := s.launched
	s.launched = true
	p.mu.Unlock()

	if !launched {
		exit, err := p.hw.Launch(handle)
		if err != nil {
			return arch.ExitInfo{}, mkstatus.Failure
		}
		return exit, mkstatus.Success
	}
	exit, err := p.hw.Resume(handle)
	if err != nil {
		return arch.ExitInfo{}, mkstatus.Failure
	}
	return exit, mkstatus.Success
}

// AdvanceIP advances vps's guest instruction pointer past the
// just-handled instruction, by delta bytes.
func (p *Pool) AdvanceIP(vps id.ID16, delta uint64) mkstatus.Status {
	p.mu.Lock()
	s, err := p.slot(vps)
	if err != nil {
		p.mu.Unlock()
		return mkstatus.InvalidParams
	}
	handle := s.handle
	p.mu.Unlock()

	rip, err := p.hw.ReadField(handle, arch.FieldGuestRIP)
	if err != nil {
		return mkstatus.Failure
	}
	if err := p.hw.WriteField(handle, arch.FieldGuestRIP, rip+delta); err != nil {
		return mkstatus.Failure
	}
	return mkstatus.Success
}

// ReadField reads one architectural field of vps.
func (p *Pool) ReadField(vps id.ID16, field arch.Field) (uint64, mkstatus.Status) {
	p.mu.Lock()
	s, err := p.slot(vps)
	if err != nil {
		p.mu.Unlock()
		return 0, mkstatus.InvalidParams
	}
	handle := s.handle
	p.mu.Unlock()

	v, err := p.hw.ReadField(handle, field)
	if err != nil {
		return 0, mkstatus.Unsupported
	}
	return v, mkstatus.Success
}

// WriteField writes one architectural field of vps.
func (p *Pool) WriteField(vps id.ID16, field arch.Field, value uint64) mkstatus.Status {
	p.mu.Lock()
	s, err := p.slot(vps)
	if err != nil {
		p.mu.Unlock()
		return mkstatus.InvalidParams
	}
	handle := s.handle
	p.mu.Unlock()

	if err := p.hw.WriteField(handle, field, value); err != nil {
		return mkstatus.Unsupported
	}
	return mkstatus.Success
}

// State returns the lifecycle state of vps.
func (p *Pool) State(vps id.ID16) (state.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vps)
	if err != nil {
		return state.Deallocated, err
	}
	return s.st, nil
}

// IsLoaded reports whether vps is currently loaded on any PP.
func (p *Pool) IsLoaded(vps id.ID16) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vps)
	if err != nil {
		return false, err
	}
	return s.loaded, nil
}

// ReleaseAll force-clears and destroys every allocated VPS's hardware
// control structure, for Kernel.Release's full teardown. Unlike
// Destroy, this proceeds even while a slot is loaded: at teardown there
// is no physical processor left to hand it back to.
func (p *Pool) ReleaseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		s := &p.slots[i]
		if s.st == state.Deallocated {
			continue
		}
		if s.loaded {
			if err := p.hw.ClearVPS(s.handle); err != nil {
				return err
			}
		}
		if err := p.hw.DestroyVPS(s.handle); err != nil {
			return err
		}
		*s = slot{}
	}
	p.loadedPerPP = make(map[id.ID16]id.ID16)
	return nil
}
