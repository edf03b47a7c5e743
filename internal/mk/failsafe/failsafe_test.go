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

package failsafe

import (
	"testing"

	"github.com/lusceu/microkernel/internal/mk/tls"
	"github.com/lusceu/microkernel/pkg/id"
)

func TestTriggerRecordsUnsafeRIP(t *testing.T) {
	b := tls.New(id.ID16(0))
	b.RIP = 0xdeadbeef

	f := Trigger(b, tls.FailSiteCallExt, "divide by zero")
	if b.UnsafeRIP != 0xdeadbeef {
		t.Fatalf("UnsafeRIP = %#x, want deadbeef", b.UnsafeRIP)
	}
	if f.Site != tls.FailSiteCallExt || f.Reason != "divide by zero" {
		t.Fatalf("Fault = %+v, unexpected", f)
	}
}

func TestResumeReturnsRegisteredTrampoline(t *testing.T) {
	b := tls.New(id.ID16(0))
	b.SetFailTrampoline(tls.FailSiteVMExitLoop, 0x1000, 0x2000)

	f := Trigger(b, tls.FailSiteVMExitLoop, "unhandled vm exit")
	ip, sp, ok := Resume(b, f)
	if !ok || ip != 0x1000 || sp != 0x2000 {
		t.Fatalf("Resume = %x, %x, %v, want 1000, 2000, true", ip, sp, ok)
	}
}

func TestResumeWithoutTrampolineNotOK(t *testing.T) {
	b := tls.New(id.ID16(0))
	f := Trigger(b, tls.FailSiteMkMain, "no trampoline registered")
	if _, _, ok := Resume(b, f); ok {
		t.Fatal("Resume reported ok without a registered trampoline")
	}
}
