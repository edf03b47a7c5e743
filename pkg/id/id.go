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

// Package id defines the microkernel's object-identifier types, per
// spec.md §3: a 16-bit dense handle (ID16) and a 64-bit packed thread tag
// (TID64) identifying "which extension on which VM/VP/PP".
package id

// ID16 is a 16-bit dense pool index. InvalidID16 (all-ones) marks
// absence.
type ID16 uint16

// InvalidID16 is the sentinel for "no object".
const InvalidID16 ID16 = 0xFFFF

// Valid reports whether id is not the invalid sentinel.
func (i ID16) Valid() bool { return i != InvalidID16 }

// TID64 packs (ext:16 | vm:16 | vp:16 | pp:16) so that a single 64-bit
// compare suffices to identify "which extension on which VM/VP/PP", per
// spec.md §3.
type TID64 uint64

// NewTID64 packs the four 16-bit fields into a TID64.
func NewTID64(ext, vm, vp, pp uint16) TID64 {
	return TID64(uint64(ext)<<48 | uint64(vm)<<32 | uint64(vp)<<16 | uint64(pp))
}

// Ext returns the packed extension id.
func (t TID64) Ext() uint16 { return uint16(t >> 48) }

// VM returns the packed VM id.
func (t TID64) VM() uint16 { return uint16(t >> 32) }

// VP returns the packed VP id.
func (t TID64) VP() uint16 { return uint16(t >> 16) }

// PP returns the packed PP id.
func (t TID64) PP() uint16 { return uint16(t) }

// SetExt returns a copy of t with the extension field replaced.
func (t TID64) SetExt(ext uint16) TID64 { return NewTID64(ext, t.VM(), t.VP(), t.PP()) }

// SetVM returns a copy of t with the VM field replaced.
func (t TID64) SetVM(vm uint16) TID64 { return NewTID64(t.Ext(), vm, t.VP(), t.PP()) }

// SetVP returns a copy of t with the VP field replaced.
func (t TID64) SetVP(vp uint16) TID64 { return NewTID64(t.Ext(), t.VM(), vp, t.PP()) }

// SetPP returns a copy of t with the PP field replaced.
func (t TID64) SetPP(pp uint16) TID64 { return NewTID64(t.Ext(), t.VM(), t.VP(), pp) }
