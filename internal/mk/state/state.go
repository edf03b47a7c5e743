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

// Package state defines the three-state machine shared by the VM, VP,
// and VPS pools (spec.md §3): an object starts Deallocated, becomes
// Allocated on a successful allocate, and can be zombified from
// Allocated — Zombie is terminal, and the only operation still permitted
// on a zombie is set_inactive, per spec.md §4.7's zombification
// contract.
package state

import "fmt"

// State is the lifecycle state of a VM, VP, or VPS pool slot.
type State int

const (
	Deallocated State = iota
	Allocated
	Zombie
)

func (s State) String() string {
	switch s {
	case Deallocated:
		return "deallocated"
	case Allocated:
		return "allocated"
	case Zombie:
		return "zombie"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CanAllocate reports whether a slot in state s may be allocated.
func (s State) CanAllocate() bool { return s == Deallocated }

// CanDeallocate reports whether a slot in state s may be deallocated
// back to Deallocated. Zombie is terminal: it cannot be deallocated,
// only set inactive, per spec.md §4.7.
func (s State) CanDeallocate() bool { return s == Allocated }

// CanZombify reports whether a slot in state s may transition to Zombie.
func (s State) CanZombify() bool { return s == Allocated }

// CanSetInactive reports whether set_inactive is permitted in state s.
// Unlike most operations, this remains true even once zombified.
func (s State) CanSetInactive() bool { return s == Allocated || s == Zombie }

// CanSetActive reports whether set_active (or, for a VPS, Load) is
// permitted in state s. A zombie cannot be re-activated, per spec.md
// §4.7's zombification contract.
func (s State) CanSetActive() bool { return s == Allocated }
