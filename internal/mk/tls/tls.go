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

// Package tls implements the microkernel's per-physical-processor TLS
// block (spec.md §4.4): register snapshots, fault state, the fast-fail
// trampoline sites, and the currently-active object IDs, addressed
// without a pointer so it never outlives a single PP.
//
// Block embeds Registers first: low-level trampoline code needs to
// reach the architecture registers without indirection, which requires
// them to be the struct's first field.
package tls

import (
	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/pkg/atomicbitops"
	"github.com/lusceu/microkernel/pkg/id"
)

// Registers is the general-purpose register snapshot taken on VM exit,
// kept separate from arch.ExitInfo.GPRegs so the TLS block owns its own
// copy rather than aliasing the arch package's transient exit value.
type Registers struct {
	GP  [16]uint64
	RIP uint64
}

// FailSite names one of the microkernel's fast-fail trampoline
// locations (spec.md §7): mk_main, call_ext, dispatch_syscall,
// vmexit_loop.
type FailSite int

const (
	FailSiteNone FailSite = iota
	FailSiteMkMain
	FailSiteCallExt
	FailSiteDispatchSyscall
	FailSiteVMExitLoop

	numFailSites
)

// fastFail is one (IP, SP) trampoline target, analogous to a saved
// setjmp buffer: there is no real longjmp in Go, so failsafe.Resume
// consults this pair to decide where control logically resumes instead
// of actually unwinding the stack via a hardware jump.
type fastFail struct {
	ip  uintptr
	sp  uintptr
	set bool
}

// Block is the per-PP TLS region. It is never passed by value once
// constructed: New hands out *Block, and every cross-reference to an
// active VM/VP/VPS is stored as an id.ID16, never a pointer, so the
// block and the pools it references can be torn down independently.
type Block struct {
	Registers // must be first; trampoline assembly (simulated here by arch) reaches it as an offset of zero.

	PPID id.ID16

	// ESR is the exception/fault syndrome captured on the last trap,
	// architecture-normalized the same way arch.ExitInfo is.
	ESR uint64

	fails   [numFailSites]fastFail
	current FailSite

	// ActiveVMID/ActiveVPID/ActiveVPSID identify (by pool index, never by
	// pointer) the object currently running on this PP, resolved through
	// the owning pool on every access.
	ActiveVMID  id.ID16
	ActiveVPID  id.ID16
	ActiveVPSID id.ID16

	// ActiveTID is the packed identity of the extension/VM/VP/PP
	// quadruple currently executing, per spec.md §3.
	ActiveTID id.TID64

	// nmiLock/nmiPending model the NMI-deferral discipline: an NMI
	// arriving while nmiLock is held is recorded in nmiPending and
	// replayed once the lock is released, rather than handled
	// re-entrantly.
	nmiLock    atomicbitops.Bool
	nmiPending atomicbitops.Bool

	// UnsafeRIP records the instruction pointer captured at the moment a
	// FatalError was raised, for the debug ring / crash dump to report.
	UnsafeRIP uint64

	// LastExit is the most recent exit decoded by the hardware
	// collaborator, kept here so the VMExit loop does not need to thread
	// it through every delegate call by hand.
	LastExit arch.ExitInfo
}

// New returns a zeroed Block for physical processor ppid.
func New(ppid id.ID16) *Block {
	b := &Block{PPID: ppid}
	b.ActiveVMID = id.InvalidID16
	b.ActiveVPID = id.InvalidID16
	b.ActiveVPSID = id.InvalidID16
	return b
}

// SetFailTrampoline records the (ip, sp) pair failsafe.Trigger(site, ...)
// should resume at, for the given site.
func (b *Block) SetFailTrampoline(site FailSite, ip, sp uintptr) {
	b.fails[site] = fastFail{ip: ip, sp: sp, set: true}
}

// FailTrampoline returns the recorded (ip, sp) for site, if one was set.
func (b *Block) FailTrampoline(site FailSite) (ip, sp uintptr, ok bool) {
	f := b.fails[site]
	return f.ip, f.sp, f.set
}

// EnterFailSite records which fast-fail site is currently active, for
// CurrentFailSite to report if a fault occurs beneath it.
func (b *Block) EnterFailSite(site FailSite) { b.current = site }

// CurrentFailSite returns the innermost fast-fail site currently active.
func (b *Block) CurrentFailSite() FailSite { return b.current }

// LockNMI reports whether the NMI lock was free and, if so, acquires it.
// A caller that gets false must record the NMI as pending via
// MarkNMIPending rather than handling it immediately.
func (b *Block) LockNMI() bool { return b.nmiLock.CompareAndSwap(false, true) }

// UnlockNMI releases the NMI lock and reports whether an NMI was left
// pending while it was held.
func (b *Block) UnlockNMI() (pendingWasSet bool) {
	pendingWasSet = b.nmiPending.CompareAndSwap(true, false)
	b.nmiLock.Store(false)
	return pendingWasSet
}

// MarkNMIPending records that an NMI arrived while the lock was held.
func (b *Block) MarkNMIPending() { b.nmiPending.Store(true) }
