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

// Package debugring implements the debug ring (spec.md §6): a
// fixed-size byte ring with independent 64-bit read and write cursors
// that wraps silently, plus exported byte counters for introspection.
//
// The exported counters (bytes written, bytes lost to wraparound) use
// pkg/atomicbitops so they can be read concurrently with vmmctl dump
// without a lock.
package debugring

import "github.com/lusceu/microkernel/pkg/atomicbitops"

// Ring is a fixed-capacity byte ring buffer.
type Ring struct {
	buf  []byte
	w    uint64 // next write offset, monotonically increasing
	read uint64 // next read offset, monotonically increasing

	// BytesWritten and BytesLost are exported counters following the
	// teacher's pkg/metric idiom: total bytes ever written, and how many
	// of those overwrote data the reader had not yet consumed.
	BytesWritten atomicbitops.Uint64
	BytesLost    atomicbitops.Uint64
}

// New returns a Ring with the given byte capacity.
func New(capacity int) *Ring {
	return &Ring{buf: make([]byte, capacity)}
}

// Write appends p to the ring, silently overwriting the oldest
// unconsumed bytes if p does not fit in the remaining capacity.
func (r *Ring) Write(p []byte) {
	n := uint64(len(r.buf))
	for _, b := range p {
		r.buf[r.w%n] = b
		r.w++
		r.BytesWritten.Add(1)
		if r.w-r.read > n {
			r.read = r.w - n
			r.BytesLost.Add(1)
		}
	}
}

// Read drains up to len(p) unconsumed bytes into p, advancing the read
// cursor, and returns the number of bytes copied.
func (r *Ring) Read(p []byte) int {
	n := uint64(len(r.buf))
	avail := r.w - r.read
	count := uint64(len(p))
	if count > avail {
		count = avail
	}
	for i := uint64(0); i < count; i++ {
		p[i] = r.buf[r.read%n]
		r.read++
	}
	return int(count)
}

// Dump returns every unconsumed byte without advancing the read cursor,
// for vmmctl dump.
func (r *Ring) Dump() []byte {
	n := uint64(len(r.buf))
	avail := r.w - r.read
	out := make([]byte, avail)
	for i := uint64(0); i < avail; i++ {
		out[i] = r.buf[(r.read+i)%n]
	}
	return out
}
