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

// Package rpt implements the microkernel's root page table manager
// (spec.md §4.3): a four-level (PML4/PDPT/PD/PT) address space with
// auto-release leaf tagging and alias top-level imports, so an
// extension's dedicated address space can share the microkernel's own
// mappings without duplicating or ever auto-freeing them.
//
// Walks the four levels (pml4/pdpt/pd/pt) with pool-mediated node
// allocation at each level. This manager maps 4 KiB leaves only — no
// 1 GiB/2 MiB super-page splitting — since the RPT itself names no huge
// leaf support.
package rpt

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/mk/pagepool"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

const (
	entriesPerTable = 512
	pageSize        = 4096

	pml4Shift = 39
	pdptShift = 30
	pdShift   = 21
	ptShift   = 12

	indexMask = 0x1ff

	// lowerTop/upperBottom bound the canonical (non-hole) x86-64 address
	// ranges for four-level paging.
	lowerTop    = 0x00007fffffffffff
	upperBottom = 0xffff800000000000
)

// ReleaseTag records why a leaf mapping exists, so Release's auto-release
// walk knows how to return it: to the page pool, the huge pool, or not at
// all (ReleaseNone, used for alias imports and structural entries that
// belong to another RPT).
type ReleaseTag int

const (
	ReleaseNone ReleaseTag = iota
	ReleaseAllocPage
	ReleaseAllocHuge
	ReleaseAllocHeap
	ReleaseStack
	ReleaseTLS
	ReleaseELF
)

// FramePool is the subset of internal/mk/pagepool.Pool the RPT needs to
// allocate and free both page-table nodes and leaf data pages.
type FramePool interface {
	Alloc(tag pagepool.Tag) (virt, phys uintptr, status mkstatus.Status)
	Free(phys uintptr, tag pagepool.Tag) error
}

type entry struct {
	present        bool
	writable       bool
	executeDisable bool
	user           bool // pml4 entries only: true for canonical-low (extension), false for canonical-high (kernel)
	alias          bool // installed via AliasTopLevel; never auto-released
	isLeaf         bool
	childPhys      uintptr
	leafPhys       uintptr
	tag            ReleaseTag
}

func (e *entry) valid() bool { return e.present }

// table is one 512-entry level of the walk. Tables are never backed by
// real host memory in this package — internal/arch.Intrinsics is the
// only component that must see a hardware-shaped page table, and it
// receives only the top-level physical address on Activate.
type table struct {
	entries [entriesPerTable]entry
}

// RPT is a single four-level address space.
type RPT struct {
	mu       sync.Mutex
	pages    FramePool // backs ReleaseAllocPage / ReleaseStack / ReleaseTLS / ReleaseELF leaves and structural nodes
	hw       arch.Intrinsics
	rootPhys uintptr
	root     *table
	// tables indexes every allocated structural node by the synthetic
	// physical address handed back by pages.Alloc, mirroring the
	// teacher's Allocator.LookupPTEs(phys uintptr).
	tables map[uintptr]*table
}

const (
	tagPageTable = pagepool.TagPageTable
	tagAllocPage = pagepool.TagAllocPage
)

// New allocates a root table and returns a ready RPT.
func New(pages FramePool, hw arch.Intrinsics) (*RPT, error) {
	r := &RPT{pages: pages, hw: hw, tables: make(map[uintptr]*table)}
	phys, err := r.newTable()
	if err != nil {
		return nil, err
	}
	r.rootPhys = phys
	r.root = r.tables[phys]
	return r, nil
}

func (r *RPT) newTable() (uintptr, error) {
	_, phys, status := r.pages.Alloc(tagPageTable)
	if !status.OK() {
		return 0, fmt.Errorf("rpt: allocate table node: %s", status)
	}
	r.tables[phys] = &table{}
	return phys, nil
}

// Activate installs this RPT as the current hardware page-table root on
// the calling physical processor.
func (r *RPT) Activate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hw.ActivateRootTable(r.rootPhys)
}

// IsActive reports whether this RPT is the currently active hardware
// root on the calling physical processor.
func (r *RPT) IsActive() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, err := r.hw.CurrentRootTable()
	if err != nil {
		return false, err
	}
	return cur == r.rootPhys, nil
}

// RootPhys returns the physical address of the top-level table, for use
// by a loader args block (internal/mk/args) or by AliasTopLevel on
// another RPT.
func (r *RPT) RootPhys() uintptr { return r.rootPhys }

func canonical(addr uintptr) bool {
	a := uint64(addr)
	return a <= lowerTop || a >= upperBottom
}

func aligned(addr uintptr, size uintptr) bool { return uint64(addr)%uint64(size) == 0 }

// isUser reports whether virt falls in the canonical-low half, by
// contract reserved for extension mappings; canonical-high is reserved
// for kernel mappings. A pml4 entry's user/supervisor bit is fixed by
// whichever side first grows into it.
func isUser(virt uintptr) bool { return uint64(virt) <= lowerTop }

func indices(virt uintptr) (pml4, pdpt, pd, pt int) {
	v := uint64(virt)
	return int((v >> pml4Shift) & indexMask),
		int((v >> pdptShift) & indexMask),
		int((v >> pdShift) & indexMask),
		int((v >> ptShift) & indexMask)
}

// walk locates (allocating intermediate levels if alloc is set) the leaf
// entry for virt, returning it by reference.
func (r *RPT) walk(virt uintptr, alloc bool) (*entry, error) {
	if virt == 0 {
		return nil, fmt.Errorf("rpt: virt must not be 0")
	}
	if !canonical(virt) {
		return nil, fmt.Errorf("rpt: address 0x%x is not canonical", virt)
	}
	if !aligned(virt, pageSize) {
		return nil, fmt.Errorf("rpt: address 0x%x is not page-aligned", virt)
	}

	i4, i3, i2, i1 := indices(virt)
	cur := r.root
	user := isUser(virt)

	for n, idx := range []int{i4, i3, i2} {
		e := &cur.entries[idx]
		if !e.valid() {
			if !alloc {
				return nil, fmt.Errorf("rpt: 0x%x: no mapping", virt)
			}
			childPhys, err := r.newTable()
			if err != nil {
				return nil, err
			}
			e.present = true
			e.childPhys = childPhys
			if n == 0 {
				e.user = user
			}
		} else if n == 0 && e.user != user {
			return nil, fmt.Errorf("rpt: 0x%x: pml4 entry %d us bit disagrees with caller", virt, idx)
		}
		if e.isLeaf {
			return nil, fmt.Errorf("rpt: 0x%x: walk hit a leaf above the PT level", virt)
		}
		cur = r.tables[e.childPhys]
	}
	return &cur.entries[i1], nil
}

// AddTables pre-populates every intermediate (PML4/PDPT/PD) level for
// virt without installing a leaf mapping, so a later MapPage/AllocatePage
// call at the same address cannot fail with ResourceExhausted partway
// through the walk.
func (r *RPT) AddTables(virt uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.walk(virt, true)
	return err
}

// MapPage installs a leaf mapping from virt to phys. writable and
// executable are mutually exclusive: spec.md's writable-implies-not-
// executable invariant is enforced here, never left to the caller.
func (r *RPT) MapPage(virt, phys uintptr, writable, executable bool, tag ReleaseTag) error {
	if writable && executable {
		return fmt.Errorf("rpt: 0x%x: writable and executable both requested", virt)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.walk(virt, true)
	if err != nil {
		return err
	}
	if e.valid() {
		return fmt.Errorf("rpt: 0x%x: already mapped", virt)
	}
	e.present = true
	e.isLeaf = true
	e.leafPhys = phys
	e.writable = writable
	e.executeDisable = !executable
	e.tag = tag
	return nil
}

// AllocatePageRW allocates a fresh data page from the backing pool and
// maps it read-write, not-executable.
func (r *RPT) AllocatePageRW(virt uintptr) (phys uintptr, err error) {
	return r.allocatePage(virt, true, false)
}

// AllocatePageRX allocates a fresh data page from the backing pool and
// maps it read-execute, not-writable.
func (r *RPT) AllocatePageRX(virt uintptr) (phys uintptr, err error) {
	return r.allocatePage(virt, false, true)
}

func (r *RPT) allocatePage(virt uintptr, writable, executable bool) (uintptr, error) {
	_, phys, status := r.pages.Alloc(tagAllocPage)
	if !status.OK() {
		return 0, fmt.Errorf("rpt: 0x%x: allocate leaf page: %s", virt, status)
	}
	if err := r.MapPage(virt, phys, writable, executable, ReleaseAllocPage); err != nil {
		_ = r.pages.Free(phys, tagAllocPage)
		return 0, err
	}
	return phys, nil
}

// AliasTopLevel installs other's PML4 entry at index into this RPT,
// marked as an alias: Release will never free it, since it is owned by
// other. This is how an extension's dedicated RPT shares the
// microkernel's own mappings (spec.md §4.3/§4.8).
func (r *RPT) AliasTopLevel(index int, other *RPT) error {
	if index < 0 || index >= entriesPerTable {
		return fmt.Errorf("rpt: alias index %d out of range", index)
	}
	other.mu.Lock()
	src := other.root.entries[index]
	other.mu.Unlock()
	if !src.valid() {
		return fmt.Errorf("rpt: alias source index %d is unmapped", index)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	dst := &r.root.entries[index]
	*dst = src
	dst.alias = true
	return nil
}

// Release walks the entire tree, freeing every non-alias leaf back to
// the pool per its ReleaseTag and every structural node it allocated
// itself. Called once, when the RPT's owner (microkernel RPT singleton
// or an extension's dedicated RPT) is torn down.
func (r *RPT) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.releaseTable(r.root); err != nil {
		return err
	}
	return r.pages.Free(r.rootPhys, tagPageTable)
}

func (r *RPT) releaseTable(t *table) error {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.valid() || e.alias {
			continue
		}
		if e.isLeaf {
			if e.tag == ReleaseNone {
				continue
			}
			if err := r.pages.Free(e.leafPhys, tagAllocPage); err != nil {
				return err
			}
			continue
		}
		child := r.tables[e.childPhys]
		if child == nil {
			continue
		}
		if err := r.releaseTable(child); err != nil {
			return err
		}
		delete(r.tables, e.childPhys)
		if err := r.pages.Free(e.childPhys, tagPageTable); err != nil {
			return err
		}
	}
	return nil
}

