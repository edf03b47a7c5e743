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

package kvmhost

import (
	"encoding/binary"

	"github.com/lusceu/microkernel/internal/arch"
)

// Offsets into the mmap'd struct kvm_run page. Bounds-checked
// binary.LittleEndian reads decode the fields we need without an
// unsafe.Pointer cast onto the mapped bytes.
const (
	runFieldExitReason = 0x0c
	runFieldRIP        = 0x10
)

func readRunField(runData []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(runData[off : off+8])
}

func writeRunField(runData []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(runData[off:off+8], v)
}

// decodeExit translates the raw struct kvm_run exit_reason into the
// collaborator-normalized arch.ExitInfo, the same translation the
// teacher's vCPU.die/getUserRegisters path performs after KVM_RUN returns.
func decodeExit(runData []byte) arch.ExitInfo {
	reason := binary.LittleEndian.Uint32(runData[runFieldExitReason:])

	var r arch.ExitReason
	switch reason {
	case 0: // KVM_EXIT_UNKNOWN
		r = arch.ExitReasonUnknown
	case 2: // KVM_EXIT_IO
		r = arch.ExitReasonIO
	case 5: // KVM_EXIT_HLT
		r = arch.ExitReasonHLT
	case 9: // KVM_EXIT_MMIO, treated as an EPT violation for our purposes
		r = arch.ExitReasonEPTViolation
	default:
		r = arch.ExitReasonUnknown
	}

	return arch.ExitInfo{
		Reason: r,
		RIP:    readRunField(runData, runFieldRIP),
	}
}
