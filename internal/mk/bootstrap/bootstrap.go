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

// Package bootstrap implements the per-PP demote sequence and VMExit
// loop (spec.md §4.10): clone the captured OS state into a root VM/VP/
// VPS, invoke the extension's bootstrap callback, run the VPS, and loop
// on VMExit — invoke the extension's VMExit callback and on success
// resume the guest; an unhandled exit fast-fails. The loop has no
// pre-exit delegate stage and no per-reason delegate list: the
// extension's single VMExit callback sees every exit.
//
// "This physical thread owns exactly one active context at a time": a
// PP owns exactly one loaded VPS, entering and leaving it only through
// internal/mk/vps.Pool.Load/Run/Clear.
package bootstrap

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/mk/args"
	"github.com/lusceu/microkernel/internal/mk/failsafe"
	"github.com/lusceu/microkernel/internal/mk/kernel"
	"github.com/lusceu/microkernel/internal/mk/tls"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

// CapturedState is the OS context the loader captured on this PP before
// demoting it into a guest (spec.md §4.10 step 4, "clone captured OS
// state into mk_state and root_vp_state").
type CapturedState struct {
	Registers tls.Registers
}

// Result carries the handles the demote sequence produced, for the
// caller (internal/vmmctl/cmd's start path, or a test) to inspect.
type Result struct {
	VM  id.ID16
	VP  id.ID16
	VPS id.ID16
}

// Demote runs the per-PP bootstrap sequence against an already-loaded
// extension extID: allocate the root VM/VP/VPS, seed the VPS with the
// captured OS registers, invoke the extension's bootstrap callback, and
// perform the first VPS.Run. block is this PP's TLS block, into which
// Demote records the active VM/VP/VPS handles and pp.
func Demote(k *kernel.Kernel, block *tls.Block, pp, extID id.ID16, captured CapturedState) (Result, arch.ExitInfo, mkstatus.Status) {
	vm, status := k.VM.Allocate()
	if !status.OK() {
		return Result{}, arch.ExitInfo{}, status
	}
	if status := k.VM.SetActive(vm, pp); !status.OK() {
		return Result{}, arch.ExitInfo{}, status
	}
	if status := k.Ext.SignalVMCreated(extID, vm); !status.OK() {
		return Result{VM: vm}, arch.ExitInfo{}, status
	}

	vp, status := k.VP.Allocate(vm, pp)
	if !status.OK() {
		return Result{VM: vm}, arch.ExitInfo{}, status
	}
	if status := k.VP.SetActive(vp, pp); !status.OK() {
		return Result{VM: vm, VP: vp}, arch.ExitInfo{}, status
	}
	if status := k.Ext.SignalVPCreated(extID, vp); !status.OK() {
		return Result{VM: vm, VP: vp}, arch.ExitInfo{}, status
	}

	vps, status := k.VPS.Create(vm, vp)
	if !status.OK() {
		return Result{VM: vm, VP: vp}, arch.ExitInfo{}, status
	}
	if status := k.Ext.SignalVPSCreated(extID, vps); !status.OK() {
		return Result{VM: vm, VP: vp, VPS: vps}, arch.ExitInfo{}, status
	}
	if status := k.VPS.Load(vps, pp); !status.OK() {
		return Result{VM: vm, VP: vp, VPS: vps}, arch.ExitInfo{}, status
	}
	if status := initAsRoot(k, vps, captured); !status.OK() {
		return Result{VM: vm, VP: vp, VPS: vps}, arch.ExitInfo{}, status
	}

	block.ActiveVMID, block.ActiveVPID, block.ActiveVPSID = vm, vp, vps
	block.PPID = pp

	if status := k.Ext.SignalBootstrap(extID, pp); !status.OK() {
		return Result{VM: vm, VP: vp, VPS: vps}, arch.ExitInfo{}, status
	}

	exit, status := k.VPS.Run(vps)
	if status.OK() {
		k.VMExits.Append(vm, vp, vps, exit)
	}
	return Result{VM: vm, VP: vp, VPS: vps}, exit, status
}

// DemoteFromArgs runs Demote using the PP the loader's args block names
// (spec.md §4.10 steps 3-5: the args block is what ties the captured
// state to a specific PP), and writes the handle of the one VPS Demote
// creates into both a.MKState and a.RootVPState for the caller to pass
// on (e.g. to a later GET_DRR mailbox request).
func DemoteFromArgs(k *kernel.Kernel, block *tls.Block, a *args.Block, extID id.ID16, captured CapturedState) (Result, arch.ExitInfo, mkstatus.Status) {
	result, exit, status := Demote(k, block, a.PPID, extID, captured)
	if status.OK() {
		a.MKState = result.VPS
		a.RootVPState = result.VPS
	}
	return result, exit, status
}

// initAsRoot mirrors the captured OS registers into the VPS's
// architectural fields, per spec.md §4.10 step 6 ("init_as_root mirrors
// the captured state").
func initAsRoot(k *kernel.Kernel, vps id.ID16, captured CapturedState) mkstatus.Status {
	if status := k.VPS.WriteField(vps, arch.FieldGuestRIP, captured.Registers.RIP); !status.OK() {
		return status
	}
	for i, gp := range captured.Registers.GP {
		if status := k.VPS.WriteField(vps, arch.Generic(i), gp); !status.OK() {
			return status
		}
	}
	return mkstatus.Success
}

// Loop runs the steady-state VMExit loop (spec.md §4.10 step 7, §9's
// exit_handler::handle ordering): log the exit, invoke the extension's
// VMExit callback, and on success resume the guest; an unhandled exit
// triggers the FailSiteVMExitLoop fast-fail trampoline and returns.
// maxIterations bounds the loop for callers (tests, a watchdog-backed
// caller) that need it to terminate; the real per-PP thread calls this
// with an unbounded count and never expects it to return in steady
// state.
func Loop(k *kernel.Kernel, block *tls.Block, extID, vpsID id.ID16, exit arch.ExitInfo, maxIterations int) failsafe.Fault {
	for i := 0; i < maxIterations; i++ {
		status := k.Ext.SignalVMExit(extID, vpsID, exit)
		if !status.OK() {
			return failsafe.Trigger(block, tls.FailSiteVMExitLoop, "unhandled vm exit")
		}

		next, status := k.VPS.Run(vpsID)
		if !status.OK() {
			return failsafe.Trigger(block, tls.FailSiteVMExitLoop, fmt.Sprintf("resume failed: %v", status))
		}
		k.VMExits.Append(block.ActiveVMID, block.ActiveVPID, vpsID, next)
		exit = next
	}
	log.Debugf("bootstrap: loop exhausted iteration budget for vps %d", vpsID)
	return failsafe.Fault{}
}
