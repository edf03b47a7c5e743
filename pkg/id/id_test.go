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

package id

import "testing"

func TestTID64RoundTrip(t *testing.T) {
	base := NewTID64(0x1111, 0x2222, 0x3333, 0x4444)

	for _, x := range []uint16{0x0000, 0x0001, 0xFFFF, 0x1234, 0xBEEF} {
		if got := base.SetExt(x).Ext(); got != x {
			t.Errorf("SetExt(%x).Ext() = %x, want %x", x, got, x)
		}
		if got := base.SetVM(x).VM(); got != x {
			t.Errorf("SetVM(%x).VM() = %x, want %x", x, got, x)
		}
		if got := base.SetVP(x).VP(); got != x {
			t.Errorf("SetVP(%x).VP() = %x, want %x", x, got, x)
		}
		if got := base.SetPP(x).PP(); got != x {
			t.Errorf("SetPP(%x).PP() = %x, want %x", x, got, x)
		}
	}
}

func TestTID64FieldsIndependent(t *testing.T) {
	t0 := NewTID64(0, 0, 0, 0)
	t1 := t0.SetExt(0xAAAA)
	if t1.VM() != 0 || t1.VP() != 0 || t1.PP() != 0 {
		t.Fatalf("SetExt perturbed other fields: %+v", t1)
	}
	t2 := t1.SetVM(0xBBBB)
	if t2.Ext() != 0xAAAA || t2.VP() != 0 || t2.PP() != 0 {
		t.Fatalf("SetVM perturbed other fields: %+v", t2)
	}
}

func TestID16Valid(t *testing.T) {
	if InvalidID16.Valid() {
		t.Error("InvalidID16 reported valid")
	}
	if !ID16(0).Valid() {
		t.Error("ID16(0) reported invalid")
	}
}
