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

// Command vmmctl is the user-space control CLI (spec.md §1, §6): an
// external collaborator to the microkernel core that drives it through
// start/stop/dump subcommands, registered with github.com/google/
// subcommands exactly as runsc/cli.Main registers runsc's subcommands.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	vmmcmd "github.com/lusceu/microkernel/internal/vmmctl/cmd"
	"github.com/lusceu/microkernel/internal/vmmctl/config"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&vmmcmd.Start{}, "")
	subcommands.Register(&vmmcmd.Stop{}, "")
	subcommands.Register(&vmmcmd.Dump{}, "")

	cfg := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	os.Exit(int(subcommands.Execute(context.Background(), cfg)))
}
