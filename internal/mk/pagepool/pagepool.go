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

// Package pagepool implements the microkernel's page-granularity
// physical-frame allocator (spec.md §4.1): a fixed-size span of host
// memory handed out one 4 KiB frame at a time, tagged with the reason it
// was allocated so a later free can be checked against a mismatched tag,
// and a direct virt<->phys mapping since the pool backs a single
// contiguous span.
//
// Uses the same virt<->phys convention as the page-table allocator this
// pool backs, and an intrusive list (pkg/ilist) for an O(1) free list.
package pagepool

import (
	"fmt"

	"github.com/lusceu/microkernel/pkg/ilist"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

// FrameSize is the page pool's allocation granularity.
const FrameSize = 4096

// Tag identifies why a frame was allocated. It is a closed enum: every
// new allocation reason gets a new constant here, matching spec.md §3's
// closed allocation-tag design.
type Tag int

const (
	// TagNone marks a free frame.
	TagNone Tag = iota
	TagPageTable
	TagExtStack
	TagExtTLS
	TagExtHeap
	TagExtELF
	TagAllocPage
)

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagPageTable:
		return "page_table"
	case TagExtStack:
		return "ext_stack"
	case TagExtTLS:
		return "ext_tls"
	case TagExtHeap:
		return "ext_heap"
	case TagExtELF:
		return "ext_elf"
	case TagAllocPage:
		return "alloc_page"
	default:
		return fmt.Sprintf("tag(%d)", int(t))
	}
}

type frame struct {
	next *frame
	phys uintptr
	tag  Tag
}

// SetNext implements ilist.Linker.
func (f *frame) SetNext(n *frame) { f.next = n }

// GetNext implements ilist.Linker.
func (f *frame) GetNext() *frame { return f.next }

// Pool is a fixed-size, tag-tracked physical-frame allocator over a
// single contiguous span [base, base+size).
type Pool struct {
	mu   sync.Mutex
	base uintptr // virtual base
	phys uintptr // physical base
	free ilist.List[*frame]
	all  []frame // backing storage, indexed by frame number
}

// New carves a Pool out of the virtual span starting at virtBase (backed
// by the physical span starting at physBase), divided into nFrames
// frames of FrameSize bytes each. All frames begin free.
func New(virtBase, physBase uintptr, nFrames int) *Pool {
	p := &Pool{
		base: virtBase,
		phys: physBase,
		all:  make([]frame, nFrames),
	}
	for i := nFrames - 1; i >= 0; i-- {
		f := &p.all[i]
		f.phys = physBase + uintptr(i)*FrameSize
		f.tag = TagNone
		p.free.Push(f)
	}
	log.Debugf("pagepool: initialized %d frames at phys 0x%x", nFrames, physBase)
	return p
}

// Alloc removes one free frame from the pool, tags it, and returns its
// virtual and physical addresses. ResourceExhausted is returned once no
// free frame remains; spec.md §7 classifies pool exhaustion as
// recoverable, not fatal.
func (p *Pool) Alloc(tag Tag) (virt, phys uintptr, status mkstatus.Status) {
	if tag == TagNone {
		return 0, 0, mkstatus.InvalidParams
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.free.Pop()
	if !ok {
		return 0, 0, mkstatus.ResourceExhausted
	}
	f.tag = tag
	return p.virtOf(f.phys), f.phys, mkstatus.Success
}

// Free returns a previously allocated frame to the pool. Freeing with
// the wrong tag, or freeing a frame that is not currently allocated, is
// a bookkeeping bug in the microkernel itself (not a caller-facing
// condition a guest can trigger) and is therefore a FatalError per
// spec.md §7, routed to the caller's fast-fail trampoline rather than
// returned as a Status.
func (p *Pool) Free(phys uintptr, tag Tag) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.frameAt(phys)
	if !ok {
		return mkstatus.NewFatal("pagepool.Free", "address not in pool span")
	}
	if f.tag == TagNone {
		return mkstatus.NewFatal("pagepool.Free", "double free")
	}
	if f.tag != tag {
		return mkstatus.NewFatal("pagepool.Free", fmt.Sprintf("tag mismatch: have %s, want %s", f.tag, tag))
	}
	f.tag = TagNone
	p.free.Push(f)
	return nil
}

// VirtToPhys converts a virtual address within this pool's span to its
// physical address.
func (p *Pool) VirtToPhys(virt uintptr) (uintptr, bool) {
	if virt < p.base || virt >= p.base+uintptr(len(p.all))*FrameSize {
		return 0, false
	}
	return virt - p.base + p.phys, true
}

// PhysToVirt converts a physical address within this pool's span to its
// virtual address.
func (p *Pool) PhysToVirt(phys uintptr) (uintptr, bool) {
	if phys < p.phys || phys >= p.phys+uintptr(len(p.all))*FrameSize {
		return 0, false
	}
	return p.virtOf(phys), true
}

func (p *Pool) virtOf(phys uintptr) uintptr { return phys - p.phys + p.base }

func (p *Pool) frameAt(phys uintptr) (*frame, bool) {
	if phys < p.phys || (phys-p.phys)%FrameSize != 0 {
		return nil, false
	}
	idx := (phys - p.phys) / FrameSize
	if int(idx) >= len(p.all) {
		return nil, false
	}
	return &p.all[idx], true
}

// NumFree returns the number of unallocated frames, for diagnostics.
func (p *Pool) NumFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.Len()
}
