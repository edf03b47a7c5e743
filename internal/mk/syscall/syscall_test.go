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

package syscall

import (
	"testing"

	"github.com/lusceu/microkernel/pkg/id"
	"github.com/lusceu/microkernel/pkg/mkstatus"
)

func TestDispatchRoutesToHandler(t *testing.T) {
	d := New(nil)
	d.Register(OpMemAllocPage, func(a Args) (uint64, mkstatus.Status) {
		return 0x1234, mkstatus.Success
	})

	got, status := d.Dispatch(OpMemAllocPage, Args{TID: id.NewTID64(0, 0, 0, 0)})
	if status != mkstatus.Success || got != 0x1234 {
		t.Fatalf("Dispatch = %x, %v, want 1234, Success", got, status)
	}
}

func TestDispatchUnregisteredIsUnsupported(t *testing.T) {
	d := New(nil)
	if _, status := d.Dispatch(OpMemAllocHuge, Args{}); status != mkstatus.Unsupported {
		t.Fatalf("Dispatch unregistered status = %v, want Unsupported", status)
	}
}

func TestDispatchValidatorCanReject(t *testing.T) {
	d := New(func(cat Category, a Args) mkstatus.Status {
		if cat == CategoryVP {
			return mkstatus.PermissionDenied
		}
		return mkstatus.Success
	})
	vpOp := Number(CategoryVP) << 8
	d.Register(vpOp, func(a Args) (uint64, mkstatus.Status) { return 0, mkstatus.Success })

	if _, status := d.Dispatch(vpOp, Args{}); status != mkstatus.PermissionDenied {
		t.Fatalf("Dispatch status = %v, want PermissionDenied", status)
	}
}

func TestCategoryExtraction(t *testing.T) {
	if OpMemAllocPage.Category() != CategoryMemory {
		t.Fatalf("OpMemAllocPage.Category() = %v, want CategoryMemory", OpMemAllocPage.Category())
	}
}
