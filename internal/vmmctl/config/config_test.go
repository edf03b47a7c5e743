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

package config

import (
	"flag"
	"testing"
)

func TestRegisterFlagsDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c := RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Platform != PlatformSimulated {
		t.Fatalf("Platform = %q, want %q", c.Platform, PlatformSimulated)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsUnknownPlatform(t *testing.T) {
	c := &Config{Platform: "bogus", MaxVMs: 1, MaxVPs: 1, MaxVPSs: 1, MaxExtensions: 1}
	if err := c.Validate(); err == nil {
		t.Fatal("Validate accepted an unknown platform")
	}
}

func TestValidateRejectsNonPositiveCapacity(t *testing.T) {
	c := &Config{Platform: PlatformSimulated, MaxVMs: 0, MaxVPs: 1, MaxVPSs: 1, MaxExtensions: 1}
	if err := c.Validate(); err == nil {
		t.Fatal("Validate accepted a zero pool capacity")
	}
}

func TestKernelConfigProjection(t *testing.T) {
	c := &Config{MaxVMs: 2, MaxVPs: 3, MaxVPSs: 4, MaxExtensions: 5, PagePoolFrames: 6, HugePoolChunks: 7, DebugRingSize: 8, VMExitLogSize: 9}
	kc := c.KernelConfig()
	if kc.MaxVMs != 2 || kc.MaxVPs != 3 || kc.MaxVPSs != 4 || kc.MaxExtensions != 5 ||
		kc.PagePoolFrames != 6 || kc.HugePoolChunks != 7 || kc.DebugRingSize != 8 || kc.VMExitLogSize != 9 {
		t.Fatalf("KernelConfig() = %+v, unexpected", kc)
	}
}
