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

// Package kernel wires the pool singletons into one Kernel struct
// (spec.md §9's resolution of the "global state" open question: each
// pool is its own named package, never a package-level mutable global,
// and cmd/vmmctl's start, stop and dump subcommands each construct their
// own Kernel).
package kernel

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/mk/debugring"
	"github.com/lusceu/microkernel/internal/mk/ext"
	"github.com/lusceu/microkernel/internal/mk/hugepool"
	"github.com/lusceu/microkernel/internal/mk/mailbox"
	"github.com/lusceu/microkernel/internal/mk/pagepool"
	"github.com/lusceu/microkernel/internal/mk/rpt"
	"github.com/lusceu/microkernel/internal/mk/state"
	"github.com/lusceu/microkernel/internal/mk/syscall"
	"github.com/lusceu/microkernel/internal/mk/vm"
	"github.com/lusceu/microkernel/internal/mk/vmexitlog"
	"github.com/lusceu/microkernel/internal/mk/vp"
	"github.com/lusceu/microkernel/internal/mk/vps"
	"github.com/lusceu/microkernel/pkg/atomicbitops"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

// Config bounds every pool's capacity and backing-store size, built by
// internal/vmmctl/config from flags or defaults.
type Config struct {
	MaxVMs         int
	MaxVPs         int
	MaxVPSs        int
	MaxExtensions  int
	PagePoolFrames int
	HugePoolChunks int
	DebugRingSize  int
	VMExitLogSize  int
}

// Kernel is the top-level struct holding every pool singleton, the
// microkernel's own RPT, and the control-plane mailbox. cmd/vmmctl's
// start, stop and dump subcommands construct one each.
type Kernel struct {
	cfg Config
	hw  arch.Intrinsics

	Pages     *pagepool.Pool
	Huge      *hugepool.Pool
	RPT       *rpt.RPT
	VM        *vm.Pool
	VP        *vp.Pool
	VPS       *vps.Pool
	Ext       *ext.Pool
	Syscalls  *syscall.Dispatcher
	Mailbox   *mailbox.Mailbox
	VMExits   *vmexitlog.Log
	DebugRing *debugring.Ring

	// ready tracks whether the loader's VMM_INIT/VMM_FINI mailbox
	// handshake (spec.md §6) has completed.
	ready atomicbitops.Bool

	// memLeafs/memNodes/memDescriptors record the loader's SET_MEM_LEAFS/
	// SET_MEM_NODES/ADD_MD reports, for introspection by a later GET_DRR
	// request.
	memLeafs       uint64
	memNodes       uint64
	memDescriptors []uint64
}

// New constructs a Kernel against the given hardware collaborator (a
// real internal/arch/kvmhost.Host or internal/arch/simulated.Backend),
// allocating every pool but performing no bootstrap work yet.
func New(cfg Config, hw arch.Intrinsics, virtBase, physBase uintptr) (*Kernel, error) {
	pages := pagepool.New(virtBase, physBase, cfg.PagePoolFrames)
	huge := hugepool.New(physBase+uintptr(cfg.PagePoolFrames)*pagepool.FrameSize, uint32(cfg.HugePoolChunks))

	root, err := rpt.New(pages, hw)
	if err != nil {
		return nil, fmt.Errorf("kernel: root rpt: %w", err)
	}

	k := &Kernel{
		cfg:       cfg,
		hw:        hw,
		Pages:     pages,
		Huge:      huge,
		RPT:       root,
		VM:        vm.New(cfg.MaxVMs),
		VP:        vp.New(cfg.MaxVPs),
		VPS:       vps.New(cfg.MaxVPSs, hw),
		Ext:       ext.New(cfg.MaxExtensions, root, pages, hw),
		Mailbox:   mailbox.New(),
		VMExits:   vmexitlog.New(cfg.VMExitLogSize),
		DebugRing: debugring.New(cfg.DebugRingSize),
	}
	k.Syscalls = syscall.New(k.validateSyscall)
	k.registerSyscalls()
	k.registerMailbox()
	log.Infof("kernel: initialized (max_vms=%d max_vps=%d max_vpss=%d max_ext=%d)",
		cfg.MaxVMs, cfg.MaxVPs, cfg.MaxVPSs, cfg.MaxExtensions)
	return k, nil
}

// validateSyscall is the Dispatcher's Validator: spec.md §4.9's "each
// syscall begins with handle validation against the calling extension's
// granted handle" — the caller's packed TID must name a currently
// Allocated extension, or dispatch never reaches a category handler.
func (k *Kernel) validateSyscall(cat syscall.Category, a syscall.Args) mkstatus.Status {
	extID := id.ID16(a.TID.Ext())
	st, err := k.Ext.State(extID)
	if err != nil {
		return mkstatus.InvalidParams
	}
	if st != state.Allocated {
		return mkstatus.PermissionDenied
	}
	return mkstatus.Success
}

// registerSyscalls installs the memory-category handlers spec.md §4.9
// names explicitly: OpMemAllocPage/OpMemAllocHuge, each backed by the
// calling extension's dedicated RPT. Arg0 is the extension-chosen
// virtual address to map at; OpMemAllocHuge's Arg1 is the chunk count.
func (k *Kernel) registerSyscalls() {
	k.Syscalls.Register(syscall.OpMemAllocPage, func(a syscall.Args) (uint64, mkstatus.Status) {
		phys, status := k.Ext.AllocPage(id.ID16(a.TID.Ext()), uintptr(a.Arg0))
		return uint64(phys), status
	})
	k.Syscalls.Register(syscall.OpMemAllocHuge, func(a syscall.Args) (uint64, mkstatus.Status) {
		phys, status := k.Ext.AllocHuge(id.ID16(a.TID.Ext()), uintptr(a.Arg0), k.Huge, uint32(a.Arg1))
		return uint64(phys), status
	})
}

// registerMailbox installs the bfmain request handlers that simply
// delegate into the wired pools.
func (k *Kernel) registerMailbox() {
	k.Mailbox.Register(mailbox.GlobalInit, func(uint64) mkstatus.Status {
		log.Debugf("kernel: GLOBAL_INIT")
		return mkstatus.Success
	})
	k.Mailbox.Register(mailbox.SetMemLeafs, func(arg uint64) mkstatus.Status {
		k.memLeafs = arg
		log.Debugf("kernel: SET_MEM_LEAFS leafs=%d", arg)
		return mkstatus.Success
	})
	k.Mailbox.Register(mailbox.SetMemNodes, func(arg uint64) mkstatus.Status {
		k.memNodes = arg
		log.Debugf("kernel: SET_MEM_NODES nodes=%d", arg)
		return mkstatus.Success
	})
	k.Mailbox.Register(mailbox.AddMD, func(arg uint64) mkstatus.Status {
		k.memDescriptors = append(k.memDescriptors, arg)
		log.Debugf("kernel: ADD_MD descriptor=0x%x (total %d)", arg, len(k.memDescriptors))
		return mkstatus.Success
	})
	k.Mailbox.Register(mailbox.VMMInit, func(uint64) mkstatus.Status {
		k.ready.Store(true)
		log.Infof("kernel: VMM_INIT: microkernel ready")
		return mkstatus.Success
	})
	k.Mailbox.Register(mailbox.VMMFini, func(uint64) mkstatus.Status {
		k.ready.Store(false)
		log.Infof("kernel: VMM_FINI: microkernel shutting down")
		return mkstatus.Success
	})
	k.Mailbox.Register(mailbox.GetDRR, func(uint64) mkstatus.Status {
		log.Debugf("kernel: GET_DRR: debug_ring=%d bytes vmexits=%d records", len(k.DebugRing.Dump()), k.VMExits.Len())
		return mkstatus.Success
	})
}

// Ready reports whether the loader's VMM_INIT mailbox request has
// completed without a matching VMM_FINI.
func (k *Kernel) Ready() bool { return k.ready.Load() }

// Release tears down every pool, in the reverse of the lock-discipline
// order documented in SPEC_FULL.md §5: the RPT first (so no outstanding
// mapping can outlive the object it was mapped for), then every VPS
// (forcing each loaded one off its physical processor and freeing its
// hardware control structure), then VP and VM (pure bookkeeping, no
// external resource held), and finally every extension (each one's own
// dedicated RPT). Pages and huge pool hold no resource beyond process
// memory the Go runtime reclaims on its own.
func (k *Kernel) Release() error {
	if err := k.RPT.Release(); err != nil {
		return fmt.Errorf("kernel: release rpt: %w", err)
	}
	if err := k.VPS.ReleaseAll(); err != nil {
		return fmt.Errorf("kernel: release vps pool: %w", err)
	}
	k.VP.ReleaseAll()
	k.VM.ReleaseAll()
	if err := k.Ext.ReleaseAll(); err != nil {
		return fmt.Errorf("kernel: release extension pool: %w", err)
	}
	return nil
}
