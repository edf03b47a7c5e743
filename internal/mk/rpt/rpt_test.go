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

package rpt

import (
	"testing"

	"github.com/lusceu/microkernel/internal/arch/simulated"
	"github.com/lusceu/microkernel/internal/mk/pagepool"
)

func newTestRPT(t *testing.T) (*RPT, *pagepool.Pool, *simulated.Backend) {
	t.Helper()
	pool := pagepool.New(0x1000_0000_0000, 0x2000_0000_0000, 256)
	hw := simulated.New()
	r, err := New(pool, hw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, pool, hw
}

func TestActivateIsActive(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if active, _ := r.IsActive(); active {
		t.Fatal("new RPT reports active before Activate")
	}
	if err := r.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	active, err := r.IsActive()
	if err != nil {
		t.Fatalf("IsActive: %v", err)
	}
	if !active {
		t.Fatal("IsActive() = false after Activate")
	}
}

func TestMapPageWritableAndExecutableRejected(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if err := r.MapPage(0x1000, 0x2000, true, true, ReleaseAllocPage); err == nil {
		t.Fatal("MapPage accepted writable+executable")
	}
}

func TestMapPageRejectsZeroVirt(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if err := r.MapPage(0, 0x2000, true, false, ReleaseAllocPage); err == nil {
		t.Fatal("MapPage accepted virt == 0")
	}
}

func TestWalkRejectsUserBitMismatch(t *testing.T) {
	r, _, _ := newTestRPT(t)
	i4, _, _, _ := indices(0x40_0000_0000) // a canonical-low (extension) address
	r.root.entries[i4].present = true
	r.root.entries[i4].user = false // force the entry to look kernel-owned
	if _, err := r.walk(0x40_0000_0000, true); err == nil {
		t.Fatal("walk accepted growth into a pml4 entry whose us bit disagrees with the caller")
	}
}

func TestMapPageRejectsUnaligned(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if err := r.MapPage(0x1001, 0x2000, true, false, ReleaseAllocPage); err == nil {
		t.Fatal("MapPage accepted unaligned virtual address")
	}
}

func TestMapPageRejectsDoubleMap(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if err := r.MapPage(0x40_0000_0000, 0x2000, true, false, ReleaseAllocPage); err != nil {
		t.Fatalf("first MapPage: %v", err)
	}
	if err := r.MapPage(0x40_0000_0000, 0x3000, false, true, ReleaseAllocPage); err == nil {
		t.Fatal("MapPage accepted mapping an already-mapped address")
	}
}

func TestAllocatePageRWThenRelease(t *testing.T) {
	pool := pagepool.New(0x1000_0000_0000, 0x2000_0000_0000, 256)
	allFree := pool.NumFree()

	r, err := New(pool, simulated.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if pool.NumFree() >= allFree {
		t.Fatalf("NumFree() did not decrease after New: before=%d after=%d", allFree, pool.NumFree())
	}

	if _, err := r.AllocatePageRW(0x40_0000_0000); err != nil {
		t.Fatalf("AllocatePageRW: %v", err)
	}
	if err := r.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if pool.NumFree() != allFree {
		t.Fatalf("NumFree() after Release = %d, want %d (all frames reclaimed)", pool.NumFree(), allFree)
	}
}

func TestAliasTopLevelSurvivesRelease(t *testing.T) {
	shared, pool, _ := newTestRPT(t)
	if _, err := shared.AllocatePageRW(0x40_0000_0000); err != nil {
		t.Fatalf("AllocatePageRW on shared: %v", err)
	}

	importer, err := New(pool, simulated.New())
	if err != nil {
		t.Fatalf("New importer: %v", err)
	}
	i4, _, _, _ := indices(0x40_0000_0000)
	if err := importer.AliasTopLevel(i4, shared); err != nil {
		t.Fatalf("AliasTopLevel: %v", err)
	}

	before := pool.NumFree()
	if err := importer.Release(); err != nil {
		t.Fatalf("importer.Release: %v", err)
	}
	// The importer's own root table is freed, but the aliased subtree
	// (owned by shared) must not be.
	if pool.NumFree() != before+1 {
		t.Fatalf("NumFree() after importer.Release = %d, want %d", pool.NumFree(), before+1)
	}
	if err := shared.Release(); err != nil {
		t.Fatalf("shared.Release: %v", err)
	}
}

func TestAddTablesThenMapSucceeds(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if err := r.AddTables(0x50_0000_0000); err != nil {
		t.Fatalf("AddTables: %v", err)
	}
	if err := r.MapPage(0x50_0000_0000, 0x9000, false, true, ReleaseELF); err != nil {
		t.Fatalf("MapPage after AddTables: %v", err)
	}
}

func TestRejectsNonCanonicalAddress(t *testing.T) {
	r, _, _ := newTestRPT(t)
	if err := r.AddTables(lowerTop + 1); err == nil {
		t.Fatal("AddTables accepted a non-canonical address")
	}
}
