// Package vmm implements a minimal virtual memory mapper that manages only
// the top three page-table levels plus 2-MiB leaves. There is no support for
// 4-KiB leaves or page unmapping: every caller in this kernel maps huge
// pages once at bring-up.
package vmm

import (
	"unsafe"

	"github.com/nimbuscore/nimbuskernel/kernel/cpu"
	"github.com/nimbuscore/nimbuskernel/kernel/mem"
	"github.com/nimbuscore/nimbuskernel/kernel/mem/pmm"
)

// Flag bits accepted by Map2M.
type Flag uint64

const (
	// FlagWritable marks the mapping writable.
	FlagWritable Flag = 1 << 1
	// FlagUser marks the mapping accessible from user mode (unused by this
	// kernel today but kept for parity with the page-table bit layout).
	FlagUser Flag = 1 << 2
	// FlagNX marks the mapping non-executable.
	FlagNX Flag = 1 << 63
)

const (
	entryPresent = 1 << 0
	entryHuge    = 1 << 7

	addrMask = 0x000FFFFFFFFFF000
	hugeMask = 0x000FFFFFFFE00000

	identityWindowLimit = 1 * mem.Gb
)

func tableAt(phys uint64) *[512]uint64 {
	return (*[512]uint64)(unsafe.Pointer(uintptr(phys)))
}

func ensureTable(parent *[512]uint64, index uint16) *[512]uint64 {
	if parent[index]&entryPresent == 0 {
		frame := pmm.AllocFrameLow(uintptr(identityWindowLimit))
		if frame == 0 {
			return nil
		}

		child := tableAt(uint64(frame))
		for i := range child {
			child[i] = 0
		}
		parent[index] = uint64(frame) | entryPresent | uint64(FlagWritable)
	}

	return tableAt(parent[index] & addrMask)
}

// Map2M maps a 2-MiB aligned virtual address to a 2-MiB aligned physical
// address with the given flags. It returns false if either address is
// misaligned or an intermediate table frame could not be allocated.
func Map2M(virtAddr, physAddr uint64, flags Flag) bool {
	if virtAddr&mem.LargePageMask != 0 || physAddr&mem.LargePageMask != 0 {
		return false
	}

	pml4Index := uint16((virtAddr >> 39) & 0x1FF)
	pdptIndex := uint16((virtAddr >> 30) & 0x1FF)
	pdIndex := uint16((virtAddr >> 21) & 0x1FF)

	pml4 := tableAt(uint64(cpu.ActivePDT()))
	pdpt := ensureTable(pml4, pml4Index)
	if pdpt == nil {
		return false
	}
	pd := ensureTable(pdpt, pdptIndex)
	if pd == nil {
		return false
	}

	entryFlags := uint64(entryPresent | entryHuge)
	if flags&FlagWritable != 0 {
		entryFlags |= uint64(FlagWritable)
	}
	if flags&FlagUser != 0 {
		entryFlags |= uint64(FlagUser)
	}
	if flags&FlagNX != 0 {
		entryFlags |= uint64(FlagNX)
	}

	pd[pdIndex] = (physAddr & hugeMask) | entryFlags
	cpu.FlushTLBEntry(uintptr(virtAddr))
	return true
}

// Init extends the bootstrap identity map with one extra 2-MiB chunk at
// 0x4000_0000 to stress-test the mapping path, mirroring the probe the
// boot-time bring-up performs before anything else depends on the mapper.
func Init() {
	Map2M(0x40000000, 0x40000000, FlagWritable)
}
