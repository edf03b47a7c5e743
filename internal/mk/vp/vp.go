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

// Package vp implements the VP (virtual processor) pool (spec.md §4.7):
// like the VM pool, but each slot additionally tracks which VM it is
// assigned to and supports Migrate, since a VP (unlike a VM) can move
// between physical processors during its lifetime.
//
// Grounded on the same machine-pool idiom as internal/mk/vm; the
// additional assignment bookkeeping is grounded directly on spec.md §4.7
// ("assigned_vm / assigned_pp / is_assigned_to_vm / migrate").
package vp

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

type slot struct {
	st         state.State
	active     map[id.ID16]bool
	assignedVM id.ID16
	assignedPP id.ID16
}

// Pool is the fixed-size VP table.
type Pool struct {
	mu    sync.Mutex
	slots []slot
}

// New returns a Pool with room for capacity VPs, all initially
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

func (p *Pool) slot(vp id.ID16) (*slot, error) {
	if !vp.Valid() || int(vp) >= len(p.slots) {
		return nil, fmt.Errorf("vp: invalid handle %d", vp)
	}
	return &p.slots[vp], nil
}

// Allocate reserves a VP slot, assigned to run on behalf of vm, and
// initially resident on physical processor pp.
func (p *Pool) Allocate(vm, pp id.ID16) (id.ID16, mkstatus.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.find()
	if !ok {
		return id.InvalidID16, mkstatus.ResourceExhausted
	}
	p.slots[idx] = slot{
		st:         state.Allocated,
		active:     make(map[id.ID16]bool),
		assignedVM: vm,
		assignedPP: pp,
	}
	return idx, mkstatus.Success
}

// Deallocate returns vp to Deallocated. It must not be active on any PP.
func (p *Pool) Deallocate(vp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vp)
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

// Zombify transitions vp to the terminal Zombie state.
func (p *Pool) Zombify(vp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vp)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanZombify() {
		return mkstatus.InvalidParams
	}
	s.st = state.Zombie
	return mkstatus.Success
}

// SetActive marks vp active on physical processor pp. A zombie cannot
// be re-activated, per the zombification contract.
func (p *Pool) SetActive(vp, pp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vp)
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

// SetInactive marks vp inactive on physical processor pp; permitted even
// once zombified.
func (p *Pool) SetInactive(vp, pp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vp)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if !s.st.CanSetInactive() {
		return mkstatus.InvalidParams
	}
	delete(s.active, pp)
	return mkstatus.Success
}

// IsActive reports whether vp is active on any physical processor.
func (p *Pool) IsActive(vp id.ID16) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vp)
	if err != nil {
		return false, err
	}
	return len(s.active) != 0, nil
}

// IsActiveOnPP reports whether vp is active on the specific physical
// processor pp.
func (p *Pool) IsActiveOnPP(vp, pp id.ID16) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vp)
	if err != nil {
		return false, err
	}
	return s.active[pp], nil
}

// IsAssignedToVM reports whether vp is currently assigned to vm.
func (p *Pool) IsAssignedToVM(vp, vm id.ID16) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vp)
	if err != nil {
		return false, err
	}
	return s.assignedVM == vm, nil
}

// AssignedVM returns the VM vp currently runs on behalf of.
func (p *Pool) AssignedVM(vp id.ID16) (id.ID16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vp)
	if err != nil {
		return id.InvalidID16, err
	}
	return s.assignedVM, nil
}

// AssignedPP returns the physical processor vp currently resides on.
func (p *Pool) AssignedPP(vp id.ID16) (id.ID16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vp)
	if err != nil {
		return id.InvalidID16, err
	}
	return s.assignedPP, nil
}

// FirstAssignedToVM scans the pool for the first allocated VP bound to
// vm, per spec.md §4.7's pool-level is_assigned_to_vm(vmid) query.
func (p *Pool) FirstAssignedToVM(vm id.ID16) (id.ID16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].st != state.Deallocated && p.slots[i].assignedVM == vm {
			return id.ID16(i), true
		}
	}
	return id.InvalidID16, false
}

// Migrate moves vp's assignment to a new physical processor. vp must not
// be active anywhere when migrated; the caller is responsible for
// calling SetInactive/Clear first.
func (p *Pool) Migrate(vp, newPP id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(vp)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	if len(s.active) != 0 {
		return mkstatus.InvalidParams
	}
	s.assignedPP = newPP
	return mkstatus.Success
}

// State returns the lifecycle state of vp.
func (p *Pool) State(vp id.ID16) (state.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(vp)
	if err != nil {
		return state.Deallocated, err
	}
	return s.st, nil
}

// ReleaseAll resets every slot to Deallocated, for Kernel.Release's full
// teardown. A VP slot holds no resource beyond pool bookkeeping.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		p.slots[i] = slot{}
	}
}
