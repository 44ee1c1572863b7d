// Package pmm implements the physical frame allocator. All state is a
// statically reserved bitmap; no dynamic heap allocation is involved.
package pmm

import (
	"github.com/nimbuscore/nimbuskernel/kernel/hal/multiboot"
	"github.com/nimbuscore/nimbuskernel/kernel/kfmt/early"
	"github.com/nimbuscore/nimbuskernel/kernel/mem"
)

// Frame identifies a physical 4-KiB frame by its physical address.
type Frame uintptr

// Address returns the physical address of the start of the frame.
func (f Frame) Address() uintptr {
	return uintptr(f)
}

const (
	frameSize  = mem.PageSize
	maxMemory  = 1 * mem.Gb
	maxFrames  = uint64(maxMemory) / frameSize
	lowMemEnd  = 1 * mem.Mb
	minCeiling = 16 * mem.Mb
)

var (
	bitmap      [maxFrames / 8]uint8
	totalFrames uint64 = maxFrames
	usedFrames  uint64 = maxFrames

	// kernelStart and kernelEnd bound the reserved kernel image range and
	// are supplied by Init from the bounds Kmain receives from the boot shim.
	kernelStart, kernelEnd uintptr
)

func bitmapSet(frame uint64) {
	if frame >= totalFrames {
		return
	}
	mask := uint8(1 << (frame % 8))
	cell := &bitmap[frame/8]
	if *cell&mask == 0 {
		*cell |= mask
		usedFrames++
	}
}

func bitmapClear(frame uint64) {
	if frame >= totalFrames {
		return
	}
	mask := uint8(1 << (frame % 8))
	cell := &bitmap[frame/8]
	if *cell&mask != 0 {
		*cell &^= mask
		if usedFrames > 0 {
			usedFrames--
		}
	}
}

func bitmapTest(frame uint64) bool {
	if frame >= totalFrames {
		return true
	}
	return bitmap[frame/8]&(1<<(frame%8)) != 0
}

func markRegion(addr, length uint64, available bool) {
	if length == 0 || addr >= uint64(maxMemory) {
		return
	}

	end := addr + length
	if end > uint64(maxMemory) {
		end = uint64(maxMemory)
	}

	first := addr / frameSize
	last := (end + frameSize - 1) / frameSize

	for f := first; f < last; f++ {
		if available {
			bitmapClear(f)
		} else {
			bitmapSet(f)
		}
	}
}

// Init walks the Multiboot2 memory map to size and populate the frame
// bitmap, then reserves the low megabyte and the kernel image range.
func Init(bootKernelStart, bootKernelEnd uintptr) {
	kernelStart, kernelEnd = bootKernelStart, bootKernelEnd

	highestAvailableEnd := uint64(minCeiling)
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}
		candidateEnd := region.PhysAddress + region.Length
		if candidateEnd > highestAvailableEnd {
			highestAvailableEnd = candidateEnd
		}
		return true
	})

	if highestAvailableEnd > uint64(maxMemory) {
		highestAvailableEnd = uint64(maxMemory)
	}

	totalFrames = highestAvailableEnd / frameSize
	if totalFrames == 0 {
		totalFrames = 1
	}

	for i := range bitmap {
		bitmap[i] = 0xFF
	}
	usedFrames = totalFrames

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type == multiboot.MemAvailable {
			markRegion(region.PhysAddress, region.Length, true)
		}
		return true
	})

	markRegion(0, uint64(lowMemEnd), false)
	markRegion(uint64(kernelStart), uint64(kernelEnd-kernelStart), false)

	early.Printf("[pmm] total=%dK used=%dK free=%dK\n", TotalKiB(), UsedKiB(), FreeKiB())
}

// AllocFrame returns the physical address of a free frame, or 0 if none
// remain.
func AllocFrame() Frame {
	for frame := uint64(0); frame < totalFrames; frame++ {
		if !bitmapTest(frame) {
			bitmapSet(frame)
			return Frame(frame * frameSize)
		}
	}
	return 0
}

// AllocFrameLow behaves like AllocFrame but only considers frames whose
// physical address is below maxAddr. It is used by the virtual mapper to
// keep page-table pages inside the identity-mapped window.
func AllocFrameLow(maxAddr uintptr) Frame {
	maxFrame := uint64(maxAddr) / frameSize
	if maxFrame > totalFrames {
		maxFrame = totalFrames
	}

	for frame := uint64(0); frame < maxFrame; frame++ {
		if !bitmapTest(frame) {
			bitmapSet(frame)
			return Frame(frame * frameSize)
		}
	}
	return 0
}

// FreeFrame releases a previously allocated frame back to the pool.
func FreeFrame(phys Frame) {
	bitmapClear(uint64(phys) / frameSize)
}

// TotalKiB returns the total amount of tracked memory, in KiB.
func TotalKiB() uint64 {
	return (totalFrames * frameSize) / 1024
}

// UsedKiB returns the amount of reserved/allocated memory, in KiB.
func UsedKiB() uint64 {
	return (usedFrames * frameSize) / 1024
}

// FreeKiB returns the amount of unreserved memory, in KiB.
func FreeKiB() uint64 {
	if usedFrames > totalFrames {
		return 0
	}
	return ((totalFrames - usedFrames) * frameSize) / 1024
}
