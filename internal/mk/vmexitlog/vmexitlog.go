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

// Package vmexitlog implements the per-PP VM exit ring log (spec.md
// §4.5): a fixed-size, single-producer ring of exit records that wraps
// silently and can be dumped in chronological order.
//
// Because exactly one physical processor ever appends to its own log,
// no lock is needed on the write path.
package vmexitlog

import (
	"github.com/lusceu/microkernel/internal/arch"
	"github.com/lusceu/microkernel/pkg/id"
)

// Record is one logged VM exit, identified by the VM/VP/VPS triple that
// produced it (spec.md §4.5).
type Record struct {
	Seq  uint64
	VM   id.ID16
	VP   id.ID16
	VPS  id.ID16
	Exit arch.ExitInfo
}

// Log is a fixed-capacity ring buffer of Records, written only by the
// physical processor that owns it.
type Log struct {
	buf  []Record
	next uint64 // total records ever written
}

// New returns a Log with room for capacity records.
func New(capacity int) *Log {
	return &Log{buf: make([]Record, capacity)}
}

// Append records exit, produced by vps (running on behalf of vp on vm),
// as the next entry, overwriting the oldest entry once the log is full.
func (l *Log) Append(vm, vp, vps id.ID16, exit arch.ExitInfo) {
	r := Record{Seq: l.next, VM: vm, VP: vp, VPS: vps, Exit: exit}
	l.buf[l.next%uint64(len(l.buf))] = r
	l.next++
}

// Len returns the number of live entries (capped at capacity).
func (l *Log) Len() int {
	if l.next >= uint64(len(l.buf)) {
		return len(l.buf)
	}
	return int(l.next)
}

// Dump returns every live entry in chronological (oldest-first) order.
func (l *Log) Dump() []Record {
	n := l.Len()
	out := make([]Record, n)
	cap64 := uint64(len(l.buf))
	start := uint64(0)
	if l.next > cap64 {
		start = l.next - cap64
	}
	for i := 0; i < n; i++ {
		out[i] = l.buf[(start+uint64(i))%cap64]
	}
	return out
}
