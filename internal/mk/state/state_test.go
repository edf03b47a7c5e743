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

package state

import "testing"

func TestZombieIsTerminal(t *testing.T) {
	if Zombie.CanAllocate() {
		t.Error("Zombie.CanAllocate() = true")
	}
	if Zombie.CanDeallocate() {
		t.Error("Zombie.CanDeallocate() = true")
	}
	if Zombie.CanZombify() {
		t.Error("Zombie.CanZombify() = true")
	}
	if !Zombie.CanSetInactive() {
		t.Error("Zombie.CanSetInactive() = false, want true")
	}
	if Zombie.CanSetActive() {
		t.Error("Zombie.CanSetActive() = true")
	}
}

func TestDeallocatedOnlyAllocates(t *testing.T) {
	if !Deallocated.CanAllocate() {
		t.Error("Deallocated.CanAllocate() = false")
	}
	if Deallocated.CanDeallocate() || Deallocated.CanZombify() || Deallocated.CanSetInactive() || Deallocated.CanSetActive() {
		t.Error("Deallocated permits an operation it should not")
	}
}

func TestAllocatedPermitsEveryTransition(t *testing.T) {
	if Allocated.CanAllocate() {
		t.Error("Allocated.CanAllocate() = true")
	}
	if !Allocated.CanDeallocate() || !Allocated.CanZombify() || !Allocated.CanSetInactive() || !Allocated.CanSetActive() {
		t.Error("Allocated does not permit an operation it should")
	}
}
