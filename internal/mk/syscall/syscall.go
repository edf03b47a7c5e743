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

// Package syscall implements the microkernel's syscall dispatch (spec.md
// §4.9): syscalls are numbered and grouped into categories (debug,
// handle, memory, vm, vp, vps, intrinsic, callback); dispatch categorizes
// the number, validates the caller's handle against the category, and
// branches into a per-category handler table.
//
// Categorizes by number range, validates, then branches into a
// per-category handler — the same shape a seccomp filter table uses.
package syscall

import (
	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/log"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

// Category groups syscall numbers by the subsystem they target.
type Category int

const (
	CategoryDebug Category = iota
	CategoryHandle
	CategoryMemory
	CategoryVM
	CategoryVP
	CategoryVPS
	CategoryIntrinsic
	CategoryCallback

	numCategories
)

// Number is a syscall index. The high byte selects the Category; the low
// byte selects the operation within it, matching spec.md §4.9's
// numbered/categorized scheme.
type Number uint16

// Category extracts the category encoded in the high byte of n.
func (n Number) Category() Category { return Category(n >> 8) }

// Representative memory-category operations named in spec.md §4.9.
const (
	OpMemAllocPage Number = (Number(CategoryMemory) << 8) | 0
	OpMemAllocHuge Number = (Number(CategoryMemory) << 8) | 1
)

// Args is the generic argument bag passed to a Handler; a real ABI would
// read these from guest general-purpose registers, which is exactly the
// kind of architecture-specific detail internal/arch hides behind
// Intrinsics.ReadField.
type Args struct {
	TID  id.TID64
	Arg0 uint64
	Arg1 uint64
	Arg2 uint64
}

// Handler services one syscall number.
type Handler func(Args) (uint64, mkstatus.Status)

// Validator checks that a caller (identified by the packed TID) is
// permitted to invoke a Category at all — e.g. spec.md §4.9 requires
// that VP-category operations come only from a caller already
// registered for VM exits.
type Validator func(Category, Args) mkstatus.Status

// Dispatcher routes syscall numbers to registered Handlers, grouped by
// Category.
type Dispatcher struct {
	handlers  map[Number]Handler
	validator Validator
}

// New returns a Dispatcher with no handlers registered. validator may be
// nil, in which case every category is permitted unconditionally.
func New(validator Validator) *Dispatcher {
	return &Dispatcher{handlers: make(map[Number]Handler), validator: validator}
}

// Register installs fn as the handler for syscall number n.
func (d *Dispatcher) Register(n Number, fn Handler) {
	d.handlers[n] = fn
}

// Dispatch categorizes n, validates the caller against its category, and
// invokes the registered Handler. An unregistered number or a category
// the build does not implement returns Unsupported, never a panic — a
// guest controls n directly, so it must never be able to crash the
// microkernel core by naming an unknown syscall.
func (d *Dispatcher) Dispatch(n Number, args Args) (uint64, mkstatus.Status) {
	cat := n.Category()
	if cat >= numCategories {
		return 0, mkstatus.Unsupported
	}
	if d.validator != nil {
		if status := d.validator(cat, args); status != mkstatus.Success {
			return 0, status
		}
	}
	h, ok := d.handlers[n]
	if !ok {
		log.Debugf("syscall: unregistered number %#x (category %d)", uint16(n), cat)
		return 0, mkstatus.Unsupported
	}
	return h(args)
}
