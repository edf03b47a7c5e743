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

// Package cmd implements vmmctl's subcommands.Command types: start,
// stop, and dump, registered against a flag.FlagSet exactly as
// runsc/cmd's commands are, each threading the shared *config.Config
// through subcommands.Execute's args parameter.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/internal/arch/kvmhost"
	"github.com/lusceu/microkernel/internal/arch/simulated"
	mkargs "github.com/lusceu/microkernel/internal/mk/args"
	"github.com/lusceu/microkernel/internal/mk/bootstrap"
	"github.com/lusceu/microkernel/internal/mk/kernel"
	"github.com/lusceu/microkernel/internal/mk/mailbox"
	"github.com/lusceu/microkernel/internal/mk/tls"
	"github.com/lusceu/microkernel/internal/vmmctl/config"
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

// Start implements subcommands.Command for "start": build the kernel,
// load an extension whose callbacks are built into vmmctl, and demote
// PP 0, per spec.md §4.10. The ELF image named by cfg.ExtensionELFPath
// is logged but not read.
type Start struct {
	iterations int
}

// Name implements subcommands.Command.Name.
func (*Start) Name() string { return "start" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Start) Synopsis() string { return "bootstrap the microkernel on the configured platform" }

// Usage implements subcommands.Command.Usage.
func (*Start) Usage() string { return "start [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (s *Start) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.iterations, "iterations", 0, "bound the VMExit loop to this many iterations after the initial demote")
}

// Execute implements subcommands.Command.Execute.
func (s *Start) Execute(_ context.Context, _ *flag.FlagSet, rest ...interface{}) subcommands.ExitStatus {
	cfg := rest[0].(*config.Config)
	if err := cfg.Validate(); err != nil {
		Fatalf("%v", err)
	}
	cfg.LogStartup()

	hw, err := openPlatform(cfg.Platform)
	if err != nil {
		Fatalf("%v", err)
	}

	k, err := kernel.New(cfg.KernelConfig(), hw, 0x4000_0000, 0)
	if err != nil {
		Fatalf("kernel.New: %v", err)
	}
	if status := k.Mailbox.Dispatch(mailbox.GlobalInit, 0); !status.OK() {
		Fatalf("mailbox GLOBAL_INIT: %v", status)
	}

	extID, status := k.Ext.Load(nil, nil,
		func(pp id.ID16) mkstatus.Status {
			log.Infof("vmmctl: extension bootstrap callback fired on pp %d", pp)
			return mkstatus.Success
		},
		func(vps id.ID16, exit arch.ExitInfo) mkstatus.Status {
			log.Debugf("vmmctl: vmexit vps=%d reason=%v", vps, exit.Reason)
			return mkstatus.Success
		},
		func(site, reason string) {
			Fatalf("extension fault at %s: %s", site, reason)
		},
	)
	if !status.OK() {
		Fatalf("ext.Load: %v", status)
	}

	if status := k.Mailbox.Dispatch(mailbox.VMMInit, 0); !status.OK() {
		Fatalf("mailbox VMM_INIT: %v", status)
	}

	pp := id.ID16(0)
	block := tls.New(pp)
	argsBlock := &mkargs.Block{
		PPID:        pp,
		OnlinePPs:   1,
		MKState:     id.InvalidID16,
		RootVPState: id.InvalidID16,
	}
	result, exit, status := bootstrap.DemoteFromArgs(k, block, argsBlock, extID, bootstrap.CapturedState{})
	if !status.OK() {
		Fatalf("bootstrap.Demote: %v", status)
	}
	log.Infof("vmmctl: demoted pp=%d vm=%d vp=%d vps=%d initial_exit=%v mk_state=%d",
		pp, result.VM, result.VP, result.VPS, exit.Reason, argsBlock.MKState)

	if s.iterations > 0 {
		if fault := bootstrap.Loop(k, block, extID, result.VPS, exit, s.iterations); fault.Site != tls.FailSiteNone {
			Fatalf("%v", fault)
		}
	}

	if status := k.Mailbox.Dispatch(mailbox.VMMFini, 0); !status.OK() {
		Fatalf("mailbox VMM_FINI: %v", status)
	}

	log.Infof("vmmctl: start complete")
	return subcommands.ExitSuccess
}

// openPlatform constructs the arch.Intrinsics collaborator cfg.Platform
// names.
func openPlatform(p config.Platform) (arch.Intrinsics, error) {
	switch p {
	case config.PlatformSimulated:
		return simulated.New(), nil
	case config.PlatformKVM:
		fd, err := os.OpenFile("/dev/kvm", os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open /dev/kvm: %w", err)
		}
		return kvmhost.Open(int(fd.Fd()))
	default:
		return nil, fmt.Errorf("cmd: unknown platform %q", p)
	}
}

// Fatalf prints an error to stderr and exits non-zero, mirroring
// runsc/cmd's own Fatalf helper.
func Fatalf(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, "vmmctl: "+format+"\n", v...)
	os.Exit(1)
}
