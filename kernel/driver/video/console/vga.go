package console

import (
	"reflect"
	"unsafe"
)

const (
	vgaPhysAddr = 0xB8000
	vgaCols     = 80
	vgaRows     = 25
)

// Vga drives the legacy VGA text-mode framebuffer at physical 0xB8000,
// 80x25, 16-bit entries (char | attr<<8).
type Vga struct {
	fb []uint16
}

// NewVga constructs and maps a Vga backend.
func NewVga() *Vga {
	v := &Vga{}
	v.fb = *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  vgaCols * vgaRows,
		Cap:  vgaCols * vgaRows,
		Data: uintptr(vgaPhysAddr),
	}))
	return v
}

// Dimensions implements Backend.
func (v *Vga) Dimensions() (cols, rows int) { return vgaCols, vgaRows }

// PutCell implements Backend.
func (v *Vga) PutCell(row, col int, ch byte, color uint8) {
	if row < 0 || row >= vgaRows || col < 0 || col >= vgaCols {
		return
	}
	v.fb[row*vgaCols+col] = uint16(ch) | uint16(color)<<8
}

// ScrollUp implements Backend.
func (v *Vga) ScrollUp(color uint8) {
	for y := 1; y < vgaRows; y++ {
		copy(v.fb[(y-1)*vgaCols:y*vgaCols], v.fb[y*vgaCols:(y+1)*vgaCols])
	}
	blank := uint16(' ') | uint16(color)<<8
	for x := 0; x < vgaCols; x++ {
		v.fb[(vgaRows-1)*vgaCols+x] = blank
	}
}
