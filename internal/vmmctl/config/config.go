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

// Package config defines vmmctl's flag-registered configuration, the way
// runsc/config.Config is registered against a flag.FlagSet and logged
// once at startup before any subcommand runs.
package config

import (
	"flag"
	"fmt"

	"github.com/lusceu/microkernel/internal/mk/kernel"
	"github.com/lusceu/microkernel/pkg/log"
)

// Platform selects the arch.Intrinsics collaborator a run uses.
type Platform string

const (
	// PlatformKVM drives real hardware through internal/arch/kvmhost.
	PlatformKVM Platform = "kvm"
	// PlatformSimulated drives internal/arch/simulated, for
	// development and the "dump" subcommand's offline rendering.
	PlatformSimulated Platform = "simulated"
)

// Config is vmmctl's process-wide configuration, built once from flags
// in main and threaded into every subcommand's Execute via the
// subcommands.Command args mechanism, the way runsc/cli.Main threads its
// *boot.Config.
type Config struct {
	Platform Platform

	MaxVMs        int
	MaxVPs        int
	MaxVPSs       int
	MaxExtensions int

	PagePoolFrames int
	HugePoolChunks int
	DebugRingSize  int
	VMExitLogSize  int

	ExtensionELFPath string
}

// RegisterFlags registers every Config field against fs, the way
// runsc/config.RegisterFlags registers against flag.CommandLine.
func RegisterFlags(fs *flag.FlagSet) *Config {
	c := &Config{}
	fs.StringVar((*string)(&c.Platform), "platform", string(PlatformSimulated), "hardware collaborator to drive: kvm or simulated")
	fs.IntVar(&c.MaxVMs, "max-vms", 3, "maximum number of VM pool slots")
	fs.IntVar(&c.MaxVPs, "max-vps", 3, "maximum number of VP pool slots")
	fs.IntVar(&c.MaxVPSs, "max-vpss", 3, "maximum number of VPS pool slots")
	fs.IntVar(&c.MaxExtensions, "max-extensions", 1, "maximum number of loaded extensions")
	fs.IntVar(&c.PagePoolFrames, "page-pool-frames", 4096, "number of 4KiB frames in the page pool")
	fs.IntVar(&c.HugePoolChunks, "huge-pool-chunks", 64, "number of 2MiB chunks in the huge pool")
	fs.IntVar(&c.DebugRingSize, "debug-ring-size", 1<<16, "debug ring capacity in bytes")
	fs.IntVar(&c.VMExitLogSize, "vmexit-log-size", 4096, "VMExit log capacity in records")
	fs.StringVar(&c.ExtensionELFPath, "extension", "", "path to the extension ELF image to load")
	return c
}

// Validate rejects configurations no pool could be constructed from.
func (c *Config) Validate() error {
	switch c.Platform {
	case PlatformKVM, PlatformSimulated:
	default:
		return fmt.Errorf("config: unknown platform %q", c.Platform)
	}
	if c.MaxVMs <= 0 || c.MaxVPs <= 0 || c.MaxVPSs <= 0 || c.MaxExtensions <= 0 {
		return fmt.Errorf("config: pool capacities must be positive")
	}
	return nil
}

// KernelConfig projects Config down to the subset kernel.New consumes.
func (c *Config) KernelConfig() kernel.Config {
	return kernel.Config{
		MaxVMs:         c.MaxVMs,
		MaxVPs:         c.MaxVPs,
		MaxVPSs:        c.MaxVPSs,
		MaxExtensions:  c.MaxExtensions,
		PagePoolFrames: c.PagePoolFrames,
		HugePoolChunks: c.HugePoolChunks,
		DebugRingSize:  c.DebugRingSize,
		VMExitLogSize:  c.VMExitLogSize,
	}
}

// LogStartup emits the effective configuration once at startup, the way
// runsc/cli.Main logs conf before running any subcommand.
func (c *Config) LogStartup() {
	log.Infof("vmmctl: platform=%s max_vms=%d max_vps=%d max_vpss=%d max_ext=%d extension=%q",
		c.Platform, c.MaxVMs, c.MaxVPs, c.MaxVPSs, c.MaxExtensions, c.ExtensionELFPath)
}
