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

// Package vm implements the VM pool (spec.md §4.7): a fixed-size table
// of virtual machines, each independently allocatable, zombifiable, and
// markable active/inactive on a given physical processor.
//
// A single coarse lock (mu sync.Mutex) guards a small table; each
// slot's per-PP active set is a map read and written under that lock.
package vm

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

type slot struct {
	st     state.State
	active map[id.ID16]bool // set of PPs this VM is currently active on
}

// Pool is the fixed-size VM table.
type Pool struct {
	mu    sync.Mutex
	slots []slot
}

// RootVM is the handle bootstrap always allocates first and never
// frees. Deallocate and Zombify refuse it explicitly: the root VM must
// outlive the physical processor it demoted, so no caller may tear it
// down or terminally zombify it.
const RootVM = id.ID16(0)

// New returns a Pool with room for capacity VMs, all initially
// Deallocated.
func New(capacity int) *Pool {
	return &Pool{slots: make([]slot, capacity)}
}

func (p *Pool) find() (id.ID16, bool) {
	for i := range p.slots {
		if p.slots[i].st.CanAllocate() {
			return id.ID16(i), true
		}
	}
	return id.InvalidID16, false
}

func (p *Pool) slot(vm id.ID16) (*slot, error) {
	if !vm.Valid() || int(vm) >= len(p.slots) {
		return nil, fmt.Errorf("vm: invalid handle %d", vm)
	}
	return &p.slots[vm], nil
}

// Allocate reserves a VM slot.
func (p *Pool) Allocate() (id.ID16, mkstatus.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.find()
	if !ok {
		return id.InvalidID16, mkstatus.ResourceExhausted
	}
	p.slots[idx] = slot{st: state.Allocated, active: make(map[id.ID16]bool)}
	return idx, mkstatus.Success
}

// Deallocate returns vm to Deallocated. It must not be active on any PP.
// The root VM can never be deallocated.
func (p *Pool) Deallocate(vm id.ID16) mkstatus.Status {
	if vm == RootVM {
		return mkstatus.InvalidParams
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vm)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanDeallocate() {
		if s.st == state.Zombie {
			return mkstatus.Zombie
		}
		return mkstatus.InvalidParams
	}
	if len(s.active) != 0 {
		return mkstatus.InvalidParams
	}
	*s = slot{}
	return mkstatus.Success
}

// Zombify transitions vm to the terminal Zombie state. The root VM can
// never be zombified.
func (p *Pool) Zombify(vm id.ID16) mkstatus.Status {
	if vm == RootVM {
		return mkstatus.InvalidParams
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vm)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanZombify() {
		return mkstatus.InvalidParams
	}
	s.st = state.Zombie
	return mkstatus.Success
}

// SetActive marks vm active on physical processor pp. A zombie cannot
// be re-activated, per the zombification contract.
func (p *Pool) SetActive(vm, pp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vm)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanSetActive() {
		if s.st == state.Zombie {
			return mkstatus.Zombie
		}
		return mkstatus.InvalidParams
	}
	s.active[pp] = true
	return mkstatus.Success
}

// SetInactive marks vm inactive on physical processor pp. This is the
// one operation the zombification contract still permits on a zombie
// VM, so every other caller can unwind cleanly once a VM has zombified.
func (p *Pool) SetInactive(vm, pp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vm)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanSetInactive() {
		return mkstatus.InvalidParams
	}
	delete(s.active, pp)
	return mkstatus.Success
}

// IsActive reports whether vm is active on any physical processor.
func (p *Pool) IsActive(vm id.ID16) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vm)
	if err != nil {
		return false, err
	}
	return len(s.active) != 0, nil
}

// IsActiveOnPP reports whether vm is active on the specific physical
// processor pp.
func (p *Pool) IsActiveOnPP(vm, pp id.ID16) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vm)
	if err != nil {
		return false, err
	}
	return s.active[pp], nil
}

// State returns the lifecycle state of vm.
func (p *Pool) State(vm id.ID16) (state.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vm)
	if err != nil {
		return state.Deallocated, err
	}
	return s.st, nil
}

// ReleaseAll resets every slot to Deallocated, including the root VM,
// for Kernel.Release's full teardown. A VM slot holds no resource
// beyond pool bookkeeping, so this never fails.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		p.slots[i] = slot{}
	}
}
