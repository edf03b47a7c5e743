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

package tls

import (
	"testing"

	"github.com/lusceu/microkernel/pkg/id"
)

func TestNewHasInvalidActiveIDs(t *testing.T) {
	b := New(id.ID16(0))
	if b.ActiveVMID.Valid() || b.ActiveVPID.Valid() || b.ActiveVPSID.Valid() {
		t.Fatal("New() left an active object ID valid")
	}
}

func TestFailTrampolineRoundTrip(t *testing.T) {
	b := New(id.ID16(0))
	if _, _, ok := b.FailTrampoline(FailSiteCallExt); ok {
		t.Fatal("FailTrampoline reported set before SetFailTrampoline")
	}
	b.SetFailTrampoline(FailSiteCallExt, 0xdead, 0xbeef)
	ip, sp, ok := b.FailTrampoline(FailSiteCallExt)
	if !ok || ip != 0xdead || sp != 0xbeef {
		t.Fatalf("FailTrampoline = (%x, %x, %v), want (dead, beef, true)", ip, sp, ok)
	}
}

func TestCurrentFailSite(t *testing.T) {
	b := New(id.ID16(0))
	if b.CurrentFailSite() != FailSiteNone {
		t.Fatalf("CurrentFailSite() = %v, want FailSiteNone", b.CurrentFailSite())
	}
	b.EnterFailSite(FailSiteVMExitLoop)
	if b.CurrentFailSite() != FailSiteVMExitLoop {
		t.Fatalf("CurrentFailSite() = %v, want FailSiteVMExitLoop", b.CurrentFailSite())
	}
}

func TestNMILockDefersPendingNMI(t *testing.T) {
	b := New(id.ID16(0))
	if !b.LockNMI() {
		t.Fatal("LockNMI failed on an unlocked block")
	}
	if b.LockNMI() {
		t.Fatal("LockNMI succeeded while already locked")
	}
	b.MarkNMIPending()
	if pending := b.UnlockNMI(); !pending {
		t.Fatal("UnlockNMI did not report the pending NMI")
	}
	if pending := b.UnlockNMI(); pending {
		t.Fatal("UnlockNMI reported pending after it was already consumed")
	}
}
