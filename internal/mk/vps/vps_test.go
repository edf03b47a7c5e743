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

package vps

import (
	"testing"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/arch/simulated"
	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

func TestCreateDestroyRoundTrip(t *testing.T) {
	p := New(2, simulated.New())

	v, status := p.Create(0, 0)
	if status != mkstatus.Success {
		t.Fatalf("Create status = %v", status)
	}
	if st, err := p.State(v); err != nil || st != state.Allocated {
		t.Fatalf("State = %v, %v, want Allocated, nil", st, err)
	}
	if status := p.Destroy(v); status != mkstatus.Success {
		t.Fatalf("Destroy status = %v", status)
	}
	if st, err := p.State(v); err != nil || st != state.Deallocated {
		t.Fatalf("State after Destroy = %v, %v, want Deallocated, nil", st, err)
	}
}

func TestResourceExhaustion(t *testing.T) {
	p := New(1, simulated.New())
	if _, status := p.Create(0, 0); status != mkstatus.Success {
		t.Fatalf("first Create status = %v", status)
	}
	if _, status := p.Create(0, 0); status != mkstatus.ResourceExhausted {
		t.Fatalf("second Create status = %v, want ResourceExhausted", status)
	}
}

func TestOnePPOneLoadedVPS(t *testing.T) {
	p := New(2, simulated.New())
	v1, _ := p.Create(0, 0)
	v2, _ := p.Create(0, 1)

	pp := id.ID16(0)
	if status := p.Load(v1, pp); status != mkstatus.Success {
		t.Fatalf("Load v1 status = %v", status)
	}
	if status := p.Load(v2, pp); status != mkstatus.PermissionDenied {
		t.Fatalf("Load v2 onto occupied PP status = %v, want PermissionDenied", status)
	}
	if status := p.Clear(v1); status != mkstatus.Success {
		t.Fatalf("Clear v1 status = %v", status)
	}
	if status := p.Load(v2, pp); status != mkstatus.Success {
		t.Fatalf("Load v2 after Clear status = %v, want Success", status)
	}
}

func TestDestroyWhileLoadedRejected(t *testing.T) {
	p := New(1, simulated.New())
	v, _ := p.Create(0, 0)
	if status := p.Load(v, 0); status != mkstatus.Success {
		t.Fatalf("Load status = %v", status)
	}
	if status := p.Destroy(v); status != mkstatus.InvalidParams {
		t.Fatalf("Destroy while loaded status = %v, want InvalidParams", status)
	}
}

func TestRunLaunchesThenResumes(t *testing.T) {
	backend := simulated.New()
	backend.ExitScript = []arch.ExitInfo{
		{Reason: arch.ExitReasonCPUID},
		{Reason: arch.ExitReasonHLT},
	}
	p := New(1, backend)
	v, _ := p.Create(0, 0)
	p.Load(v, 0)

	exit, status := p.Run(v)
	if status != mkstatus.Success || exit.Reason != arch.ExitReasonCPUID {
		t.Fatalf("first Run = %+v, %v, want CPUID, Success", exit, status)
	}
	exit, status = p.Run(v)
	if status != mkstatus.Success || exit.Reason != arch.ExitReasonHLT {
		t.Fatalf("second Run = %+v, %v, want HLT, Success", exit, status)
	}
}

func TestZombieCannotBeDestroyed(t *testing.T) {
	p := New(1, simulated.New())
	v, _ := p.Create(0, 0)
	if status := p.Zombify(v); status != mkstatus.Success {
		t.Fatalf("Zombify status = %v", status)
	}
	if status := p.Destroy(v); status != mkstatus.Zombie {
		t.Fatalf("Destroy zombie status = %v, want Zombie", status)
	}
}

func TestLoadOnZombieRejected(t *testing.T) {
	p := New(1, simulated.New())
	v, _ := p.Create(0, 0)
	if status := p.Zombify(v); status != mkstatus.Success {
		t.Fatalf("Zombify status = %v", status)
	}
	if status := p.Load(v, 0); status != mkstatus.Zombie {
		t.Fatalf("Load on zombie status = %v, want Zombie", status)
	}
}

func TestAdvanceIPAddsDelta(t *testing.T) {
	p := New(1, simulated.New())
	v, _ := p.Create(0, 0)
	if status := p.WriteField(v, arch.FieldGuestRIP, 0x1000); status != mkstatus.Success {
		t.Fatalf("WriteField status = %v", status)
	}
	if status := p.AdvanceIP(v, 3); status != mkstatus.Success {
		t.Fatalf("AdvanceIP status = %v", status)
	}
	rip, status := p.ReadField(v, arch.FieldGuestRIP)
	if status != mkstatus.Success || rip != 0x1003 {
		t.Fatalf("ReadField = %x, %v, want 1003, Success", rip, status)
	}
}
