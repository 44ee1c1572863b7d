package pmm

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/nimbuscore/nimbuskernel/kernel/hal/multiboot"
)

// buildMemoryMap encodes a minimal Multiboot2 info block containing a single
// memory-map tag with the given entries, mirroring the wire format
// kernel/hal/multiboot parses: an 8-byte info header, an 8-byte tag header,
// an 8-byte mmap header, then 24-byte entries, closed by an 8-byte end tag.
func buildMemoryMap(entries [][3]uint64) []byte {
	const entrySize = 24
	tagContentLen := 8 + len(entries)*entrySize
	tagTotalLen := 8 + tagContentLen

	buf := make([]byte, 8+tagTotalLen+8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))

	off := 8
	binary.LittleEndian.PutUint32(buf[off:off+4], 6) // tagMemoryMap
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(tagTotalLen))
	off += 8

	binary.LittleEndian.PutUint32(buf[off:off+4], entrySize)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], 0)
	off += 8

	for _, e := range entries {
		binary.LittleEndian.PutUint64(buf[off:off+8], e[0])
		binary.LittleEndian.PutUint64(buf[off+8:off+16], e[1])
		binary.LittleEndian.PutUint32(buf[off+16:off+20], uint32(e[2]))
		off += entrySize
	}

	binary.LittleEndian.PutUint32(buf[off:off+4], 0) // tagMbSectionEnd
	binary.LittleEndian.PutUint32(buf[off+4:off+8], 8)

	return buf
}

func TestInitSizesFromAvailableRegions(t *testing.T) {
	const available = 1

	buf := buildMemoryMap([][3]uint64{
		{0x0, 0x9fc00, available},
		{0x100000, 0x3F00000, available}, // up to 0x4000000 == 64 MiB
	})
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))

	Init(0x200000, 0x300000)

	if got, want := TotalKiB(), uint64(64*1024); got != want {
		t.Fatalf("TotalKiB() = %d; want %d", got, want)
	}

	if UsedKiB() > TotalKiB() {
		t.Fatalf("UsedKiB() = %d exceeds TotalKiB() = %d", UsedKiB(), TotalKiB())
	}
	if UsedKiB()+FreeKiB() != TotalKiB() {
		t.Fatalf("UsedKiB()+FreeKiB() = %d, want %d", UsedKiB()+FreeKiB(), TotalKiB())
	}
}

func TestInitReservesLowMegabyteAndKernelImage(t *testing.T) {
	const available = 1

	buf := buildMemoryMap([][3]uint64{
		{0x0, 0x4000000, available}, // whole 64 MiB marked available
	})
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))

	kernelStart, kernelEnd := uintptr(0x200000), uintptr(0x210000)
	Init(kernelStart, kernelEnd)

	seen := map[Frame]bool{}
	for {
		f := AllocFrame()
		if f == 0 {
			break
		}
		if seen[f] {
			t.Fatalf("frame %#x allocated twice", f.Address())
		}
		seen[f] = true

		if f.Address() < uintptr(lowMemEnd) {
			t.Fatalf("allocator handed out a frame inside the reserved low megabyte: %#x", f.Address())
		}
		if f.Address() >= kernelStart && f.Address() < kernelEnd {
			t.Fatalf("allocator handed out a frame inside the reserved kernel image: %#x", f.Address())
		}
	}

	if UsedKiB() != TotalKiB() {
		t.Fatalf("expected every frame to be used after draining the allocator, used=%d total=%d", UsedKiB(), TotalKiB())
	}
}

func TestAllocFreeRoundTrip(t *testing.T) {
	buf := buildMemoryMap([][3]uint64{{0x0, 0x4000000, 1}})
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))
	Init(0x200000, 0x201000)

	before := UsedKiB()

	f := AllocFrame()
	if f == 0 {
		t.Fatal("AllocFrame() returned 0 (out of memory) unexpectedly")
	}
	if UsedKiB() != before+4 {
		t.Fatalf("UsedKiB() after alloc = %d, want %d", UsedKiB(), before+4)
	}

	FreeFrame(f)
	if UsedKiB() != before {
		t.Fatalf("UsedKiB() after free = %d, want %d", UsedKiB(), before)
	}
}

func TestAllocFrameLowRespectsCeiling(t *testing.T) {
	buf := buildMemoryMap([][3]uint64{{0x0, 0x4000000, 1}})
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))
	Init(0x200000, 0x201000)

	const ceiling = 0x300000 // 3 MiB

	for i := 0; i < 100; i++ {
		f := AllocFrameLow(ceiling)
		if f == 0 {
			break
		}
		if f.Address() >= ceiling {
			t.Fatalf("AllocFrameLow(%#x) returned a frame at or above the ceiling: %#x", ceiling, f.Address())
		}
	}
}

func TestAllocFrameExhaustion(t *testing.T) {
	// Two MiB of available memory, less the reserved low megabyte and the
	// one-frame kernel range at 1 MiB, leaves 255 allocatable frames.
	buf := buildMemoryMap([][3]uint64{{0x0, 0x200000, 1}}) // 2 MiB available
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&buf[0])))
	Init(0x100000, 0x101000)

	got := 0
	for AllocFrame() != 0 {
		got++
		if got > 1000 {
			t.Fatal("allocator never reported out-of-memory")
		}
	}
	if AllocFrame() != 0 {
		t.Fatal("AllocFrame() after exhaustion should keep returning 0")
	}
}
