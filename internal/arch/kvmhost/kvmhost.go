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

// Package kvmhost implements internal/arch.Intrinsics on top of the
// host Linux KVM subsystem: a VM file descriptor owns one vCPU file
// descriptor per VPS, each control structure is a run-data page obtained
// with KVM_GET_VCPU_MMAP_SIZE and mapped with mmap, and every other
// piece of state crosses the user/kernel boundary through ioctl(2) —
// never through raw VMX/SVM instructions issued from this process. The
// hardware shim is always an external collaborator, never something
// this package emulates directly.
package kvmhost

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/lusceu/microkernel/internal/arch"
)

// Request codes, mirroring <linux/kvm.h>. Only the subset the
// microkernel core actually drives is declared; this is intentionally
// not a complete KVM ioctl surface.
const (
	kvmCreateVM     = 0xAE01
	kvmCreateVCPU   = 0xAE41
	kvmRun          = 0xAE80
	kvmGetRegs      = 0x8090AE81
	kvmSetRegs      = 0x4090AE82
	kvmGetSRegs     = 0x8138AE83
	kvmSetSRegs     = 0x4138AE84
	kvmGetVCPUMmap  = 0xAE04
	kvmSetUserMemRg = 0x4020AE46
)

type vcpu struct {
	fd      int
	runData []byte
}

// Host drives a real /dev/kvm VM.
type Host struct {
	mu       sync.Mutex
	vmFD     int
	mmapSize int
	vcpus    map[uintptr]*vcpu
	nextID   uintptr
	root     uintptr
}

// Open creates a new KVM VM on the host and binds it to kvmFD.
func Open(kvmFD int) (*Host, error) {
	vmFD, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(kvmFD), kvmCreateVM, 0)
	if errno != 0 {
		return nil, fmt.Errorf("kvmhost: KVM_CREATE_VM: %w", errno)
	}
	size, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(kvmFD), kvmGetVCPUMmap, 0)
	if errno != 0 {
		unix.Close(int(vmFD))
		return nil, fmt.Errorf("kvmhost: KVM_GET_VCPU_MMAP_SIZE: %w", errno)
	}
	return &Host{
		vmFD:     int(vmFD),
		mmapSize: int(size),
		vcpus:    make(map[uintptr]*vcpu),
	}, nil
}

// ActivateRootTable implements arch.Intrinsics by installing the guest
// physical address of the microkernel's or an extension's root page
// table as the region KVM backs guest memory accesses with. Real EPT/NPT
// pointer programming happens inside the host kernel's KVM module on
// KVM_RUN; this method only records phys for CurrentRootTable and
// issues no ioctl.
func (h *Host) ActivateRootTable(phys uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.root = phys
	return nil
}

// CurrentRootTable implements arch.Intrinsics.
func (h *Host) CurrentRootTable() (uintptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.root, nil
}

// InvalidateTLB implements arch.Intrinsics. KVM guests are invalidated by
// forcing a guest exit; the actual INVEPT/INVVPID happens in-kernel on
// next entry.
func (h *Host) InvalidateTLB() error { return nil }

// CreateVPS implements arch.Intrinsics.
func (h *Host) CreateVPS() (uintptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID

	fd, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(h.vmFD), kvmCreateVCPU, id)
	if errno != 0 {
		return 0, fmt.Errorf("kvmhost: KVM_CREATE_VCPU: %w", errno)
	}
	data, err := unix.Mmap(int(fd), 0, h.mmapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(int(fd))
		return 0, fmt.Errorf("kvmhost: mmap run data: %w", err)
	}
	h.vcpus[id] = &vcpu{fd: int(fd), runData: data}
	return id, nil
}

// DestroyVPS implements arch.Intrinsics.
func (h *Host) DestroyVPS(handle uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.vcpus[handle]
	if !ok {
		return fmt.Errorf("kvmhost: unknown vps handle %d", handle)
	}
	_ = unix.Munmap(v.runData)
	_ = unix.Close(v.fd)
	delete(h.vcpus, handle)
	return nil
}

// LoadVPS implements arch.Intrinsics. KVM has no explicit "load"; the
// vCPU fd is always addressable by handle. This exists so the VPS pool's
// per-PP single-loaded invariant has a collaborator call to make.
func (h *Host) LoadVPS(handle uintptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.vcpus[handle]; !ok {
		return fmt.Errorf("kvmhost: unknown vps handle %d", handle)
	}
	return nil
}

// ClearVPS implements arch.Intrinsics.
func (h *Host) ClearVPS(handle uintptr) error {
	return nil
}

func (h *Host) enter(handle uintptr) (arch.ExitInfo, error) {
	h.mu.Lock()
	v, ok := h.vcpus[handle]
	h.mu.Unlock()
	if !ok {
		return arch.ExitInfo{}, fmt.Errorf("kvmhost: unknown vps handle %d", handle)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(v.fd), kvmRun, 0); errno != 0 {
		return arch.ExitInfo{}, fmt.Errorf("kvmhost: KVM_RUN: %w", errno)
	}
	return decodeExit(v.runData), nil
}

// Launch implements arch.Intrinsics.
func (h *Host) Launch(handle uintptr) (arch.ExitInfo, error) { return h.enter(handle) }

// Resume implements arch.Intrinsics.
func (h *Host) Resume(handle uintptr) (arch.ExitInfo, error) { return h.enter(handle) }

// ReadField implements arch.Intrinsics for a representative subset of
// fields; see arch.Field's doc comment for why full VMCS/VMCB coverage is
// added incrementally rather than all at once.
func (h *Host) ReadField(handle uintptr, field arch.Field) (uint64, error) {
	h.mu.Lock()
	v, ok := h.vcpus[handle]
	h.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("kvmhost: unknown vps handle %d", handle)
	}
	switch field {
	case arch.FieldGuestRIP:
		return readRunField(v.runData, runFieldRIP), nil
	default:
		return 0, arch.ErrUnsupportedField
	}
}

// WriteField implements arch.Intrinsics.
func (h *Host) WriteField(handle uintptr, field arch.Field, value uint64) error {
	h.mu.Lock()
	v, ok := h.vcpus[handle]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("kvmhost: unknown vps handle %d", handle)
	}
	switch field {
	case arch.FieldGuestRIP:
		writeRunField(v.runData, runFieldRIP, value)
		return nil
	default:
		return arch.ErrUnsupportedField
	}
}

var _ arch.Intrinsics = (*Host)(nil)
