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

	"github.com/google/subcommands"

	"github.com/lusceu/microkernel/internal/arch/simulated"
	"github.com/lusceu/microkernel/internal/mk/kernel"
	"github.com/lusceu/microkernel/internal/vmmctl/config"
	"github.com/lusceu/microkernel/pkg/log"
)

// Stop implements subcommands.Command for "stop": build a kernel and
// immediately release it, exercising the reverse-teardown path spec.md
// §4.10's "lifecycle summary" describes for steady-state shutdown.
type Stop struct{}

// Name implements subcommands.Command.Name.
func (*Stop) Name() string { return "stop" }

// Synopsis implements subcommands.Command.Synopsis.
func (*Stop) Synopsis() string { return "tear down pools in reverse allocation order" }

// Usage implements subcommands.Command.Usage.
func (*Stop) Usage() string { return "stop [flags]\n" }

// SetFlags implements subcommands.Command.SetFlags.
func (*Stop) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Stop) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg := args[0].(*config.Config)
	if err := cfg.Validate(); err != nil {
		Fatalf("%v", err)
	}

	hw, err := openPlatform(cfg.Platform)
	if err != nil {
		// stop never drives real hardware; simulated is an acceptable
		// teardown-only fallback so the subcommand stays usable without
		// a live KVM host.
		hw = simulated.New()
	}

	k, err := kernel.New(cfg.KernelConfig(), hw, 0x4000_0000, 0)
	if err != nil {
		Fatalf("kernel.New: %v", err)
	}
	if err := k.Release(); err != nil {
		Fatalf("kernel.Release: %v", err)
	}
	log.Infof("vmmctl: stop complete")
	return subcommands.ExitSuccess
}
