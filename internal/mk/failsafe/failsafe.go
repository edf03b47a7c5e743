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

// Package failsafe implements the fast-fail trampoline sites (spec.md
// §7): mk_main, call_ext, dispatch_syscall, vmexit_loop. Go has no
// setjmp/longjmp, so Trigger does not perform a hardware jump; instead
// it records the fault into the TLS block's unsafe_rip slot and returns
// a sentinel the caller's control loop checks for, modeling "force a
// return to a known state" as a state-machine transition the way the
// teacher's machine.Get/Put/bounce control flow does, rather than as an
// actual hardware longjmp.
package failsafe

import (
	"fmt"

	"github.com/lusceu/microkernel/internal/mk/tls"
	"github.com/lusceu/microkernel/pkg/log"
)

// Fault describes one fast-fail event.
type Fault struct {
	Site   tls.FailSite
	Reason string
	RIP    uintptr
}

func (f Fault) Error() string {
	return fmt.Sprintf("failsafe: %v: %s", f.Site, f.Reason)
}

// Trigger copies block's current instruction pointer into
// block.UnsafeRIP, for the crash dump, and returns a Fault carrying site
// and reason that the caller's control loop should treat as "unwind to
// the trampoline registered for site," per spec.md §7.
func Trigger(block *tls.Block, site tls.FailSite, reason string) Fault {
	block.UnsafeRIP = block.RIP
	f := Fault{Site: site, Reason: reason, RIP: uintptr(block.RIP)}
	log.Warningf("failsafe: triggered at site=%v reason=%s rip=%#x", site, reason, f.RIP)
	return f
}

// Resume returns the (ip, sp) trampoline target registered for f.Site in
// block, for the control loop to resume at. ok is false if no trampoline
// was ever registered for that site, which is itself unrecoverable: the
// microkernel halts in that case rather than resuming at garbage.
func Resume(block *tls.Block, f Fault) (ip, sp uintptr, ok bool) {
	return block.FailTrampoline(f.Site)
}
