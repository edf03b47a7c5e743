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

// Package ext implements the extension pool (spec.md §4.8): each loaded
// extension gets an ELF image reference, a dedicated RPT built by
// aliasing the microkernel's own top-level mappings, a stack/TLS/ELF
// segment set, and three callback slots (Bootstrap, VMExit, FastFail).
// A callback is called directly, with no register save/restore and no
// switch to the extension's RPT; if it panics, the panic is recovered,
// the extension's FastFail callback (if any) is called with the site and
// panic value, and the call returns Failure.
//
// The three-callback-slot shape generalizes from "two hooks, one
// kernel" to "three hooks, one extension": each slot is set once, at
// Load, and a slot left nil makes its Signal call return Unsupported.
package ext

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/mk/hugepool"
	"github.com/lusceu/microkernel/internal/mk/pagepool"
	"github.com/lusceu/microkernel/internal/mk/rpt"
	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

// BootstrapFunc runs once per PP when an extension first starts there.
type BootstrapFunc func(pp id.ID16) mkstatus.Status

// VMExitFunc is invoked for every VM exit the extension has registered
// to handle.
type VMExitFunc func(vps id.ID16, exit arch.ExitInfo) mkstatus.Status

// FailFunc is invoked when the fast-fail trampoline fires inside this
// extension's context.
type FailFunc func(site string, reason string)

// Segment describes one ELF-derived mapped region within an extension's
// dedicated address space.
type Segment struct {
	Virt       uintptr
	Size       uintptr
	Writable   bool
	Executable bool
	Tag        rpt.ReleaseTag
}

type slot struct {
	st        state.State
	rpt       *rpt.RPT
	elfImage  []byte
	segments  []Segment
	bootstrap BootstrapFunc
	vmexit    VMExitFunc
	fail      FailFunc

	// vms/vps/vpss record which VM/VP/VPS handles this extension created,
	// per spec.md §4.8's signal_vm_created/vp_created/vps_created and
	// their _destroyed counterparts.
	vms  map[id.ID16]bool
	vps  map[id.ID16]bool
	vpss map[id.ID16]bool
}

// Pool is the fixed-size extension table.
type Pool struct {
	mu     sync.Mutex
	slots  []slot
	kernel *rpt.RPT // the microkernel's own RPT, aliased into every extension
	frames rpt.FramePool
	hw     arch.Intrinsics
}

// New returns a Pool with room for capacity extensions, sharing the
// given kernel RPT for alias imports.
func New(capacity int, kernel *rpt.RPT, frames rpt.FramePool, hw arch.Intrinsics) *Pool {
	return &Pool{
		slots:  make([]slot, capacity),
		kernel: kernel,
		frames: frames,
		hw:     hw,
	}
}

func (p *Pool) find() (id.ID16, bool) {
	for i := range p.slots {
		if p.slots[i].st.CanAllocate() {
			return id.ID16(i), true
		}
	}
	return id.InvalidID16, false
}

func (p *Pool) slot(ext id.ID16) (*slot, error) {
	if !ext.Valid() || int(ext) >= len(p.slots) {
		return nil, fmt.Errorf("ext: invalid handle %d", ext)
	}
	return &p.slots[ext], nil
}

// Load allocates an extension slot, builds its dedicated RPT (aliasing
// every top-level entry already present in the microkernel's own RPT),
// maps elfImage's segments into it, and records the three callback
// slots.
func (p *Pool) Load(elfImage []byte, segments []Segment, bootstrap BootstrapFunc, vmexit VMExitFunc, fail FailFunc) (id.ID16, mkstatus.Status) {
	p.mu.Lock()
	idx, ok := p.find()
	if !ok {
		p.mu.Unlock()
		return id.InvalidID16, mkstatus.ResourceExhausted
	}
	p.mu.Unlock()

	dedicated, err := rpt.New(p.frames, p.hw)
	if err != nil {
		return id.InvalidID16, mkstatus.Failure
	}
	if p.kernel != nil {
		for i := 0; i < 512; i++ {
			if err := dedicated.AliasTopLevel(i, p.kernel); err != nil {
				continue // most top-level indices in the kernel RPT are unmapped; that is expected
			}
		}
	}
	for _, seg := range segments {
		if err := dedicated.MapPage(seg.Virt, 0, seg.Writable, seg.Executable, seg.Tag); err != nil {
			log.Warningf("ext: mapping segment at 0x%x failed: %v", seg.Virt, err)
			return id.InvalidID16, mkstatus.InvalidParams
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s, _ := p.slot(idx)
	*s = slot{
		st:        state.Allocated,
		rpt:       dedicated,
		elfImage:  elfImage,
		segments:  segments,
		bootstrap: bootstrap,
		vmexit:    vmexit,
		fail:      fail,
		vms:       make(map[id.ID16]bool),
		vps:       make(map[id.ID16]bool),
		vpss:      make(map[id.ID16]bool),
	}
	return idx, mkstatus.Success
}

// Unload releases an extension's dedicated RPT, forgets every VM/VP/VPS
// it created, and returns its slot to Deallocated.
func (p *Pool) Unload(ext id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, err := p.slot(ext)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	if err := s.rpt.Release(); err != nil {
		return mkstatus.Failure
	}
	for vm := range s.vms {
		log.Debugf("ext: unload %d: forgetting vm %d", ext, vm)
	}
	for vp := range s.vps {
		log.Debugf("ext: unload %d: forgetting vp %d", ext, vp)
	}
	for vps := range s.vpss {
		log.Debugf("ext: unload %d: forgetting vps %d", ext, vps)
	}
	*s = slot{}
	return mkstatus.Success
}

// ReleaseAll releases every allocated extension's dedicated RPT, for
// Kernel.Release's full teardown.
func (p *Pool) ReleaseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		s := &p.slots[i]
		if s.st != state.Allocated {
			continue
		}
		if err := s.rpt.Release(); err != nil {
			return err
		}
		*s = slot{}
	}
	return nil
}

// dispatch runs fn, recovering a panic into a call to the extension's
// FastFail callback, and finally the fast-fail site name, rather than
// letting the panic escape to the caller — an extension's misbehavior
// must never crash the microkernel core itself (spec.md §7).
func (p *Pool) dispatch(s *slot, site string, fn func() mkstatus.Status) (status mkstatus.Status) {
	defer func() {
		if r := recover(); r != nil {
			if s.fail != nil {
				s.fail(site, fmt.Sprint(r))
			}
			status = mkstatus.Failure
		}
	}()
	return fn()
}

// SignalBootstrap invokes ext's Bootstrap callback for physical
// processor pp.
func (p *Pool) SignalBootstrap(ext, pp id.ID16) mkstatus.Status {
	p.mu.Lock()
	s, err := p.slot(ext)
	p.mu.Unlock()
	if err != nil {
		return mkstatus.InvalidParams
	}
	if s.bootstrap == nil {
		return mkstatus.Unsupported
	}
	return p.dispatch(s, "call_ext", func() mkstatus.Status { return s.bootstrap(pp) })
}

// SignalVMExit invokes ext's VMExit callback for the given VPS and exit.
func (p *Pool) SignalVMExit(ext, vps id.ID16, exit arch.ExitInfo) mkstatus.Status {
	p.mu.Lock()
	s, err := p.slot(ext)
	p.mu.Unlock()
	if err != nil {
		return mkstatus.InvalidParams
	}
	if s.vmexit == nil {
		return mkstatus.Unsupported
	}
	return p.dispatch(s, "call_ext", func() mkstatus.Status { return s.vmexit(vps, exit) })
}

// SignalVMCreated records that ext created vm, per spec.md §4.8's
// signal_vm_created.
func (p *Pool) SignalVMCreated(ext, vm id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil || s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	s.vms[vm] = true
	return mkstatus.Success
}

// SignalVMDestroyed forgets that ext created vm, per spec.md §4.8's
// signal_vm_destroyed.
func (p *Pool) SignalVMDestroyed(ext, vm id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil || s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	delete(s.vms, vm)
	return mkstatus.Success
}

// SignalVPCreated records that ext created vp, per spec.md §4.8's
// signal_vp_created.
func (p *Pool) SignalVPCreated(ext, vp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil || s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	s.vps[vp] = true
	return mkstatus.Success
}

// SignalVPDestroyed forgets that ext created vp, per spec.md §4.8's
// signal_vp_destroyed.
func (p *Pool) SignalVPDestroyed(ext, vp id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil || s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	delete(s.vps, vp)
	return mkstatus.Success
}

// SignalVPSCreated records that ext created vps, per spec.md §4.8's
// signal_vps_created.
func (p *Pool) SignalVPSCreated(ext, vps id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil || s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	s.vpss[vps] = true
	return mkstatus.Success
}

// SignalVPSDestroyed forgets that ext created vps, per spec.md §4.8's
// signal_vps_destroyed.
func (p *Pool) SignalVPSDestroyed(ext, vps id.ID16) mkstatus.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil || s.st != state.Allocated {
		return mkstatus.InvalidParams
	}
	delete(s.vpss, vps)
	return mkstatus.Success
}

// Fail invokes ext's FastFail callback directly for site/reason: the
// public entry point spec.md §4.8 names fail(reason), used by a caller
// (e.g. a syscall handler) that detects a fault in an extension's
// context without going through the panic-recovery path dispatch wraps.
func (p *Pool) Fail(ext id.ID16, site, reason string) mkstatus.Status {
	p.mu.Lock()
	s, err := p.slot(ext)
	p.mu.Unlock()
	if err != nil {
		return mkstatus.InvalidParams
	}
	if s.fail == nil {
		return mkstatus.Unsupported
	}
	s.fail(site, reason)
	return mkstatus.Success
}

// AllocPage allocates one page-pool frame and maps it read-write into
// ext's dedicated RPT at virt, tagged alloc_page for auto-release, per
// spec.md §4.9's OpMemAllocPage.
func (p *Pool) AllocPage(ext id.ID16, virt uintptr) (phys uintptr, status mkstatus.Status) {
	p.mu.Lock()
	s, err := p.slot(ext)
	p.mu.Unlock()
	if err != nil || s.st != state.Allocated {
		return 0, mkstatus.InvalidParams
	}
	phys, perr := s.rpt.AllocatePageRW(virt)
	if perr != nil {
		return 0, mkstatus.ResourceExhausted
	}
	return phys, mkstatus.Success
}

// AllocHuge allocates nChunks contiguous chunks from huge and maps them
// read-write into ext's dedicated RPT starting at virt, one page-table
// leaf per 4 KiB page within the run since the RPT supports no huge
// leaf (internal/mk/rpt's package doc), tagged alloc_huge for
// auto-release, per spec.md §4.9's OpMemAllocHuge.
func (p *Pool) AllocHuge(ext id.ID16, virt uintptr, huge *hugepool.Pool, nChunks uint32) (phys uintptr, status mkstatus.Status) {
	p.mu.Lock()
	s, err := p.slot(ext)
	p.mu.Unlock()
	if err != nil || s.st != state.Allocated {
		return 0, mkstatus.InvalidParams
	}
	run, st := huge.Alloc(nChunks)
	if !st.OK() {
		return 0, st
	}
	for off := uintptr(0); off < run.Size; off += pagepool.FrameSize {
		if err := s.rpt.MapPage(virt+off, run.BasePhys+off, true, false, rpt.ReleaseAllocHuge); err != nil {
			log.Warningf("ext: mapping huge run at 0x%x failed: %v", virt+off, err)
			return 0, mkstatus.Failure
		}
	}
	return run.BasePhys, mkstatus.Success
}

// State returns the lifecycle state of ext.
func (p *Pool) State(ext id.ID16) (state.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.slot(ext)
	if err != nil {
		return state.Deallocated, err
	}
	return s.st, nil
}
