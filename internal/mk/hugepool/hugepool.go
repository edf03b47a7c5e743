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

// Package hugepool implements the microkernel's contiguous-run physical
// allocator (spec.md §4.2): large fixed-size chunks, handed out as
// (base_phys, size) runs, tracked with a free bitmap rather than a free
// list since chunks are uniform and dense enough that bit scanning beats
// list traversal.
package hugepool

import (
	"github.com/lusceu/microkernel/pkg/bitmap"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
	"github.com/lusceu/microkernel/pkg/sync"
)

// ChunkSize is the huge pool's allocation granularity: 2 MiB, matching
// the x86 large-page size. The RPT maps 4 KiB leaves only, so a run is
// mapped one page at a time.
const ChunkSize = 2 * 1024 * 1024

// Run describes one allocated (or to-be-freed) contiguous span.
type Run struct {
	BasePhys uintptr
	Size     uintptr // bytes, always a multiple of ChunkSize
}

// Pool is a fixed-size, chunk-granular contiguous-run allocator.
type Pool struct {
	mu       sync.Mutex
	physBase uintptr
	nChunks  uint32
	free     bitmap.Bitmap // bit set => chunk is free
}

// New carves a Pool out of the physical span [physBase, physBase+nChunks*ChunkSize).
func New(physBase uintptr, nChunks uint32) *Pool {
	p := &Pool{
		physBase: physBase,
		nChunks:  nChunks,
		free:     bitmap.New(nChunks),
	}
	for i := uint32(0); i < nChunks; i++ {
		p.free.Add(i)
	}
	log.Debugf("hugepool: initialized %d chunks at phys 0x%x", nChunks, physBase)
	return p
}

// Alloc finds nChunks contiguous free chunks and returns the run
// describing them. ResourceExhausted is returned if no sufficiently
// large contiguous free region exists (fragmentation is possible; the
// huge pool does not compact).
func (p *Pool) Alloc(nChunks uint32) (Run, mkstatus.Status) {
	if nChunks == 0 {
		return Run{}, mkstatus.InvalidParams
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	start, ok := p.findRun(nChunks)
	if !ok {
		return Run{}, mkstatus.ResourceExhausted
	}
	for i := start; i < start+nChunks; i++ {
		p.free.Remove(i)
	}
	return Run{
		BasePhys: p.physBase + uintptr(start)*ChunkSize,
		Size:     uintptr(nChunks) * ChunkSize,
	}, mkstatus.Success
}

// findRun scans for the first window of nChunks consecutive free
// (bitmap-set) chunks.
func (p *Pool) findRun(nChunks uint32) (uint32, bool) {
	var runStart, runLen uint32
	for i := uint32(0); i < p.nChunks; i++ {
		if !p.free.IsSet(i) {
			runLen = 0
			continue
		}
		if runLen == 0 {
			runStart = i
		}
		runLen++
		if runLen == nChunks {
			return runStart, true
		}
	}
	return 0, false
}

// Free returns a previously allocated run to the pool. A run not aligned
// to ChunkSize, or outside the pool's span, is a microkernel bookkeeping
// bug and is fatal per spec.md §7.
func (p *Pool) Free(r Run) error {
	if r.Size == 0 || r.Size%ChunkSize != 0 {
		return mkstatus.NewFatal("hugepool.Free", "run size not a multiple of ChunkSize")
	}
	if r.BasePhys < p.physBase || (r.BasePhys-p.physBase)%ChunkSize != 0 {
		return mkstatus.NewFatal("hugepool.Free", "run base misaligned or out of span")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	start := uint32((r.BasePhys - p.physBase) / ChunkSize)
	n := uint32(r.Size / ChunkSize)
	if start+n > p.nChunks {
		return mkstatus.NewFatal("hugepool.Free", "run extends beyond pool span")
	}
	for i := start; i < start+n; i++ {
		if p.free.IsSet(i) {
			return mkstatus.NewFatal("hugepool.Free", "double free of chunk in run")
		}
		p.free.Add(i)
	}
	return nil
}

// NumFreeChunks returns the number of unallocated chunks, for diagnostics.
func (p *Pool) NumFreeChunks() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.free.GetNumOnes()
}
