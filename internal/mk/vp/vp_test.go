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

package vp

import (
	"testing"

	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

func TestAllocateTracksAssignment(t *testing.T) {
	p := New(2)
	vp, status := p.Allocate(id.ID16(1), id.ID16(0))
	if status != mkstatus.Success {
		t.Fatalf("Allocate status = %v", status)
	}
	if assigned, _ := p.IsAssignedToVM(vp, id.ID16(1)); !assigned {
		t.Fatal("IsAssignedToVM = false")
	}
	if pp, _ := p.AssignedPP(vp); pp != id.ID16(0) {
		t.Fatalf("AssignedPP = %v, want 0", pp)
	}
	if vm, _ := p.AssignedVM(vp); vm != id.ID16(1) {
		t.Fatalf("AssignedVM = %v, want 1", vm)
	}
	if got, ok := p.FirstAssignedToVM(id.ID16(1)); !ok || got != vp {
		t.Fatalf("FirstAssignedToVM(1) = (%v, %v), want (%v, true)", got, ok, vp)
	}
	if _, ok := p.FirstAssignedToVM(id.ID16(0)); ok {
		t.Fatal("FirstAssignedToVM(0) found a match, want none")
	}
}

func TestMigrateChangesAssignedPP(t *testing.T) {
	p := New(1)
	vp, _ := p.Allocate(id.ID16(0), id.ID16(0))
	if status := p.Migrate(vp, id.ID16(2)); status != mkstatus.Success {
		t.Fatalf("Migrate status = %v", status)
	}
	if pp, _ := p.AssignedPP(vp); pp != id.ID16(2) {
		t.Fatalf("AssignedPP after Migrate = %v, want 2", pp)
	}
}

func TestMigrateWhileActiveRejected(t *testing.T) {
	p := New(1)
	vp, _ := p.Allocate(id.ID16(0), id.ID16(0))
	p.SetActive(vp, id.ID16(0))
	if status := p.Migrate(vp, id.ID16(1)); status != mkstatus.InvalidParams {
		t.Fatalf("Migrate while active status = %v, want InvalidParams", status)
	}
}

func TestZombieSetInactiveStillPermitted(t *testing.T) {
	p := New(1)
	vp, _ := p.Allocate(id.ID16(0), id.ID16(0))
	p.SetActive(vp, id.ID16(0))
	if status := p.Zombify(vp); status != mkstatus.Success {
		t.Fatalf("Zombify status = %v", status)
	}
	if status := p.SetInactive(vp, id.ID16(0)); status != mkstatus.Success {
		t.Fatalf("SetInactive on zombie status = %v, want Success", status)
	}
}

func TestSetActiveOnZombieRejected(t *testing.T) {
	p := New(1)
	vp, _ := p.Allocate(id.ID16(0), id.ID16(0))
	if status := p.Zombify(vp); status != mkstatus.Success {
		t.Fatalf("Zombify status = %v", status)
	}
	if status := p.SetActive(vp, id.ID16(0)); status != mkstatus.Zombie {
		t.Fatalf("SetActive on zombie status = %v, want Zombie", status)
	}
}
