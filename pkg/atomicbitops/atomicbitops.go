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

// Package atomicbitops provides small atomic helpers used by the debug
// ring's counters, the TLS block's NMI flags and the kernel's ready flag.
package atomicbitops

import "sync/atomic"

// Uint32 is an atomically accessed uint32.
type Uint32 struct {
	v uint32
}

// Load reads the value.
func (u *Uint32) Load() uint32 { return atomic.LoadUint32(&u.v) }

// Store sets the value.
func (u *Uint32) Store(v uint32) { atomic.StoreUint32(&u.v, v) }

// CompareAndSwap performs a CAS.
func (u *Uint32) CompareAndSwap(old, new uint32) bool {
	return atomic.CompareAndSwapUint32(&u.v, old, new)
}

// Or atomically sets bits.
func (u *Uint32) Or(bits uint32) {
	for {
		old := atomic.LoadUint32(&u.v)
		if atomic.CompareAndSwapUint32(&u.v, old, old|bits) {
			return
		}
	}
}

// And atomically clears bits not in mask.
func (u *Uint32) And(mask uint32) {
	for {
		old := atomic.LoadUint32(&u.v)
		if atomic.CompareAndSwapUint32(&u.v, old, old&mask) {
			return
		}
	}
}

// Uint64 is an atomically accessed uint64, used for the debug ring's
// BytesWritten/BytesLost counters.
type Uint64 struct {
	v uint64
}

// Load reads the value.
func (u *Uint64) Load() uint64 { return atomic.LoadUint64(&u.v) }

// Store sets the value.
func (u *Uint64) Store(v uint64) { atomic.StoreUint64(&u.v, v) }

// Add atomically adds delta and returns the new value.
func (u *Uint64) Add(delta uint64) uint64 { return atomic.AddUint64(&u.v, delta) }

// Bool is an atomically accessed boolean, used for the TLS block's NMI
// lock/pending flags and the kernel's ready flag.
type Bool struct {
	v uint32
}

// Load reads the value.
func (b *Bool) Load() bool { return atomic.LoadUint32(&b.v) != 0 }

// Store sets the value.
func (b *Bool) Store(v bool) {
	if v {
		atomic.StoreUint32(&b.v, 1)
	} else {
		atomic.StoreUint32(&b.v, 0)
	}
}

// CompareAndSwap performs a CAS on the boolean.
func (b *Bool) CompareAndSwap(old, new bool) bool {
	var o, n uint32
	if old {
		o = 1
	}
	if new {
		n = 1
	}
	return atomic.CompareAndSwapUint32(&b.v, o, n)
}
