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

// Package args defines the handoff block the loader driver builds and
// passes into the microkernel at bootstrap (spec.md §6): the physical
// processor this instance is bootstrapping on, the set of online PPs,
// the microkernel and root VPS handle, the debug ring, the microkernel
// and extension ELF images, and the RPT/page-pool/huge-pool spans the
// loader carved out of physical memory before entry.
//
// A plain data struct handed across a process boundary: no behavior
// lives here, only the values internal/mk/bootstrap reads once at
// Init.
package args

import "github.com/lusceu/microkernel/pkg/id"

// MaxExt bounds the number of extension ELF images a single Block can
// carry, mirroring spec.md §2's MAX_EXTENSIONS constant.
const MaxExt = 4

// Span describes a contiguous physical memory region handed to the
// microkernel by the loader: a page-pool, huge-pool, or ELF image
// backing store.
type Span struct {
	Phys uintptr
	Size uintptr
}

// Block is the loader → microkernel args block.
type Block struct {
	// PPID is the physical processor this microkernel instance is
	// bootstrapping on.
	PPID id.ID16
	// OnlinePPs is the number of physical processors participating in
	// this boot, used to size per-PP tables (TLS blocks, VMExit logs).
	OnlinePPs int

	// MKState and RootVPState hold VPS handles recorded at bootstrap;
	// id.InvalidID16 until bootstrap assigns them. Bootstrap creates a
	// single root VPS and writes its handle into both fields: there is no
	// separate VPS for the microkernel's own state.
	MKState     id.ID16
	RootVPState id.ID16

	// DebugRing is the physical span backing internal/mk/debugring.
	DebugRing Span

	// MKElfFile is the microkernel's own ELF image span, retained for
	// introspection (vmmctl dump); the loader has already relocated and
	// entered it by the time Block reaches bootstrap.
	MKElfFile Span
	// ExtElfFiles holds one Span per extension ELF image the loader
	// staged; unused entries are the zero Span.
	ExtElfFiles [MaxExt]Span

	// RPTPhys is the physical address of the microkernel's own root
	// page table, and RPT is the virtual alias the microkernel uses to
	// walk it before internal/mk/rpt.RPT.Activate has run.
	RPTPhys uintptr
	RPT     uintptr

	// PagePool and HugePool are the physical spans backing
	// internal/mk/pagepool and internal/mk/hugepool.
	PagePool Span
	HugePool Span
}

// NumExt reports how many entries of ExtElfFiles are populated (a
// non-zero Size).
func (b *Block) NumExt() int {
	n := 0
	for _, s := range b.ExtElfFiles {
		if s.Size != 0 {
			n++
		}
	}
	return n
}
