package console

import (
	"reflect"
	"unsafe"

	"github.com/nimbuscore/nimbuskernel/kernel/driver/video/font"
	"github.com/nimbuscore/nimbuskernel/kernel/errors"
	"github.com/nimbuscore/nimbuskernel/kernel/mem"
	"github.com/nimbuscore/nimbuskernel/kernel/mem/vmm"
)

// errFramebufferGeometry is returned when the reported mode does not meet
// the 32-bpp, word-aligned-pitch, minimum-size requirement this backend
// needs to render glyphs.
var errFramebufferGeometry = errors.KernelError("framebuffer: unsupported geometry")

// errFramebufferMap is returned when the linear framebuffer's physical range
// cannot be identity-mapped, e.g. the VMM ran out of frames for page tables.
var errFramebufferMap = errors.KernelError("framebuffer: could not map physical range")

const (
	glyphWidth  = 8
	glyphHeight = 16

	fbMaxCols = 160
	fbMaxRows = 100
)

// vgaPaletteRGB maps the 16-color VGA palette to packed 0xRRGGBB values,
// used to render glyphs onto an RGB32 linear framebuffer.
var vgaPaletteRGB = [16]uint32{
	0x000000, 0x0000AA, 0x00AA00, 0x00AAAA,
	0xAA0000, 0xAA00AA, 0xAA5500, 0xAAAAAA,
	0x555555, 0x5555FF, 0x55FF55, 0x55FFFF,
	0xFF5555, 0xFF55FF, 0xFFFF55, 0xFFFFFF,
}

// Framebuffer drives a 32-bpp RGB linear framebuffer, rendering each cell as
// an 8x16 glyph (the built-in 8x8 font doubled vertically). A shadow cell
// grid backs the glyph output so ScrollUp can shift the stored cells and
// redraw them without reading pixels back from the framebuffer.
type Framebuffer struct {
	mem    []uint32
	width  uint32
	height uint32
	pitch  uint32 // pixels per row

	cols, rows int
	cellChar   [fbMaxRows][fbMaxCols]byte
	cellColor  [fbMaxRows][fbMaxCols]uint8
}

// mapFramebufferRange identity-maps every 2-MiB huge page covering
// [physAddr, physAddr+sizeBytes) as writable, non-executable, the way
// vesa_fb.go's DriverInit maps its LFB region before touching it. The
// caller must not dereference the framebuffer until this succeeds.
func mapFramebufferRange(physAddr uintptr, sizeBytes uint64) bool {
	start := uint64(physAddr) &^ uint64(mem.LargePageMask)
	end := uint64(physAddr) + sizeBytes
	end = (end + mem.LargePageSize - 1) &^ uint64(mem.LargePageMask)

	for addr := start; addr < end; addr += mem.LargePageSize {
		if !vmm.Map2M(addr, addr, vmm.FlagWritable|vmm.FlagNX) {
			return false
		}
	}
	return true
}

// NewFramebuffer maps and constructs a Framebuffer backend for a physical
// RGB32 surface. It returns an error if the geometry does not satisfy the
// 32-bpp, word-aligned-pitch requirement, is too small for even a single
// glyph, or the physical range could not be mapped into the page tables.
func NewFramebuffer(physAddr uintptr, width, height, pitchBytes, bpp uint32) (*Framebuffer, error) {
	if bpp != 32 || pitchBytes < 4 || pitchBytes%4 != 0 {
		return nil, errFramebufferGeometry
	}
	if width < glyphWidth || height < glyphHeight {
		return nil, errFramebufferGeometry
	}

	fb := &Framebuffer{
		width:  width,
		height: height,
		pitch:  pitchBytes / 4,
	}

	fb.cols = int(width / glyphWidth)
	fb.rows = int(height / glyphHeight)
	if fb.cols > fbMaxCols {
		fb.cols = fbMaxCols
	}
	if fb.rows > fbMaxRows {
		fb.rows = fbMaxRows
	}
	if fb.cols == 0 || fb.rows == 0 {
		return nil, errFramebufferGeometry
	}

	pixelCount := int(pitchBytes/4) * int(height)
	if !mapFramebufferRange(physAddr, uint64(pixelCount)*4) {
		return nil, errFramebufferMap
	}

	fb.mem = *(*[]uint32)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  pixelCount,
		Cap:  pixelCount,
		Data: physAddr,
	}))

	for y := 0; y < fb.rows; y++ {
		for x := 0; x < fb.cols; x++ {
			fb.cellChar[y][x] = ' '
		}
	}

	return fb, nil
}

func (fb *Framebuffer) plot(x, y uint32, rgb uint32) {
	if x >= fb.width || y >= fb.height {
		return
	}
	fb.mem[y*fb.pitch+x] = rgb
}

func (fb *Framebuffer) drawCell(row, col int, ch byte, color uint8) {
	if row < 0 || row >= fb.rows || col < 0 || col >= fb.cols {
		return
	}

	x0 := uint32(col * glyphWidth)
	y0 := uint32(row * glyphHeight)
	if x0+glyphWidth > fb.width || y0+glyphHeight > fb.height {
		return
	}

	fg := vgaPaletteRGB[color&0x0F]
	bg := vgaPaletteRGB[(color>>4)&0x0F]

	glyph := font.Glyph(ch)
	for gy := uint32(0); gy < glyphHeight; gy++ {
		rowBits := glyph[gy>>1]
		for gx := uint32(0); gx < glyphWidth; gx++ {
			on := rowBits&(0x80>>gx) != 0
			if on {
				fb.plot(x0+gx, y0+gy, fg)
			} else {
				fb.plot(x0+gx, y0+gy, bg)
			}
		}
	}
}

// Dimensions implements Backend.
func (fb *Framebuffer) Dimensions() (cols, rows int) { return fb.cols, fb.rows }

// PutCell implements Backend.
func (fb *Framebuffer) PutCell(row, col int, ch byte, color uint8) {
	if row < 0 || row >= fb.rows || col < 0 || col >= fb.cols {
		return
	}
	fb.cellChar[row][col] = ch
	fb.cellColor[row][col] = color
	fb.drawCell(row, col, ch, color)
}

// ScrollUp implements Backend.
func (fb *Framebuffer) ScrollUp(color uint8) {
	for y := 1; y < fb.rows; y++ {
		fb.cellChar[y-1] = fb.cellChar[y]
		fb.cellColor[y-1] = fb.cellColor[y]
	}
	for x := 0; x < fb.cols; x++ {
		fb.cellChar[fb.rows-1][x] = ' '
		fb.cellColor[fb.rows-1][x] = color
	}

	for y := 0; y < fb.rows; y++ {
		for x := 0; x < fb.cols; x++ {
			fb.drawCell(y, x, fb.cellChar[y][x], fb.cellColor[y][x])
		}
	}
}
