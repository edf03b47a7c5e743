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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/lusceu/microkernel/internal/arch/simulated"
	"github.com/lusceu/microkernel/internal/mk/kernel"
	"github.com/lusceu/microkernel/internal/mk/mailbox"
	"github.com/lusceu/microkernel/internal/vmmctl/config"
)

// Dump implements subcommands.Command for "dump": render the debug ring
// and the VMExit log, spec.md §6's "vmmctl dump" interface.
type Dump struct {
	raw bool
}

// Name implements subcommands.Command.Name.
func (*Dump) Name() string { return "dump" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Dump) Synopsis() string { return "render the debug ring and VMExit log" }

// Usage implements subcommands.Command.Usage.
func (*Dump) Usage() string { return "dump [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (d *Dump) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.raw, "raw", false, "print the debug ring's raw bytes instead of interpreting them as text")
}

// Execute implements subcommands.Command.Execute.
func (d *Dump) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	if err := cfg.Validate(); err != nil {
		Fatalf("%v", err)
	}

	k, err := kernel.New(cfg.KernelConfig(), simulated.New(), 0x4000_0000, 0)
	if err != nil {
		Fatalf("kernel.New: %v", err)
	}

	if status := k.Mailbox.Dispatch(mailbox.GetDRR, 0); !status.OK() {
		Fatalf("mailbox GET_DRR: %v", status)
	}

	ring := k.DebugRing.Dump()
	fmt.Fprintf(os.Stdout, "debug ring: %d bytes written, %d bytes lost to wraparound\n",
		k.DebugRing.BytesWritten.Load(), k.DebugRing.BytesLost.Load())
	if d.raw {
		os.Stdout.Write(ring)
	} else {
		fmt.Fprintf(os.Stdout, "%s\n", ring)
	}

	fmt.Fprintf(os.Stdout, "vmexit log: %d records\n", k.VMExits.Len())
	for _, rec := range k.VMExits.Dump() {
		fmt.Fprintf(os.Stdout, "  seq=%d reason=%v rip=%#x\n", rec.Seq, rec.Exit.Reason, rec.Exit.RIP)
	}
	return subcommands.ExitSuccess
}
