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

package vm

import (
	"testing"

	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

func TestAllocateDeallocateRoundTrip(t *testing.T) {
	p := New(3)
	p.Allocate() // slot 0 is RootVM, which Deallocate refuses
	v, status := p.Allocate()
	if status != mkstatus.Success {
		t.Fatalf("Allocate status = %v", status)
	}
	if st, _ := p.State(v); st != state.Allocated {
		t.Fatalf("State = %v, want Allocated", st)
	}
	if status := p.Deallocate(v); status != mkstatus.Success {
		t.Fatalf("Deallocate status = %v", status)
	}
	if st, _ := p.State(v); st != state.Deallocated {
		t.Fatalf("State after Deallocate = %v, want Deallocated", st)
	}
}

// TestResourceExhaustion exercises MAX_VMS=3 the way spec.md §8
// prescribes for its end-to-end scenarios.
func TestResourceExhaustion(t *testing.T) {
	const maxVMs = 3
	p := New(maxVMs)
	for i := 0; i < maxVMs; i++ {
		if _, status := p.Allocate(); status != mkstatus.Success {
			t.Fatalf("Allocate #%d status = %v", i, status)
		}
	}
	if _, status := p.Allocate(); status != mkstatus.ResourceExhausted {
		t.Fatalf("Allocate beyond capacity status = %v, want ResourceExhausted", status)
	}
}

func TestActiveOnMultiplePPs(t *testing.T) {
	p := New(1)
	v, _ := p.Allocate()

	if status := p.SetActive(v, 0); status != mkstatus.Success {
		t.Fatalf("SetActive(pp0) status = %v", status)
	}
	if status := p.SetActive(v, 1); status != mkstatus.Success {
		t.Fatalf("SetActive(pp1) status = %v", status)
	}
	if active, _ := p.IsActiveOnPP(v, 0); !active {
		t.Fatal("IsActiveOnPP(pp0) = false")
	}
	if status := p.SetInactive(v, 0); status != mkstatus.Success {
		t.Fatalf("SetInactive(pp0) status = %v", status)
	}
	if active, _ := p.IsActiveOnPP(v, 0); active {
		t.Fatal("IsActiveOnPP(pp0) = true after SetInactive")
	}
	if active, _ := p.IsActive(v); !active {
		t.Fatal("IsActive() = false, want true (still active on pp1)")
	}
}

func TestDeallocateWhileActiveRejected(t *testing.T) {
	p := New(2)
	p.Allocate() // slot 0 is RootVM, which Deallocate refuses
	v, _ := p.Allocate()
	p.SetActive(v, 0)
	if status := p.Deallocate(v); status != mkstatus.InvalidParams {
		t.Fatalf("Deallocate while active status = %v, want InvalidParams", status)
	}
}

func TestZombieSetInactiveStillPermitted(t *testing.T) {
	p := New(2)
	p.Allocate() // slot 0 is RootVM, which Zombify refuses
	v, _ := p.Allocate()
	p.SetActive(v, 0)
	if status := p.Zombify(v); status != mkstatus.Success {
		t.Fatalf("Zombify status = %v", status)
	}
	if status := p.SetInactive(v, 0); status != mkstatus.Success {
		t.Fatalf("SetInactive on zombie status = %v, want Success", status)
	}
	if status := p.Deallocate(v); status != mkstatus.Zombie {
		t.Fatalf("Deallocate zombie status = %v, want Zombie", status)
	}
}

func TestSetActiveOnZombieRejected(t *testing.T) {
	p := New(2)
	p.Allocate() // slot 0 is RootVM, which Zombify refuses
	v, _ := p.Allocate()
	if status := p.Zombify(v); status != mkstatus.Success {
		t.Fatalf("Zombify status = %v", status)
	}
	if status := p.SetActive(v, 0); status != mkstatus.Zombie {
		t.Fatalf("SetActive on zombie status = %v, want Zombie", status)
	}
}

// TestDestroyRootRejected is spec.md §8 scenario S2: the root VM can
// never be deallocated or zombified.
func TestDestroyRootRejected(t *testing.T) {
	p := New(3)
	if _, status := p.Allocate(); status != mkstatus.Success {
		t.Fatalf("Allocate root status = %v", status)
	}
	if status := p.Deallocate(RootVM); status != mkstatus.InvalidParams {
		t.Fatalf("Deallocate(RootVM) status = %v, want InvalidParams", status)
	}
	if status := p.Zombify(RootVM); status != mkstatus.InvalidParams {
		t.Fatalf("Zombify(RootVM) status = %v, want InvalidParams", status)
	}
	if st, _ := p.State(RootVM); st != state.Allocated {
		t.Fatalf("State(RootVM) = %v, want Allocated", st)
	}
}

func TestInvalidHandle(t *testing.T) {
	p := New(1)
	if status := p.SetActive(id.ID16(99), 0); status != mkstatus.InvalidParams {
		t.Fatalf("SetActive(invalid) status = %v, want InvalidParams", status)
	}
}
