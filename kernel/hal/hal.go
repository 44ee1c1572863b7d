// Package hal wires up the hardware abstraction the rest of the kernel
// writes through before higher-level subsystems exist: a single active
// terminal, starting in legacy VGA text mode and upgrading to the boot
// framebuffer once Multiboot2 info and the page tables are available.
package hal

import (
	"github.com/nimbuscore/nimbuskernel/kernel/driver/video/console"
	"github.com/nimbuscore/nimbuskernel/kernel/hal/multiboot"
)

// ActiveTerminal is the console every early-boot writer (kfmt/early, panic
// output) targets. It is always non-nil after InitTerminal.
var ActiveTerminal = console.Active()

// InitTerminal attaches the legacy VGA text backend and programs the serial
// port, giving bring-up diagnostics a target before the Multiboot2 info
// block has been validated or the page tables exist. It must run first,
// ahead of multiboot.SetInfoPtr and vmm.Init.
func InitTerminal() {
	ActiveTerminal.Attach(console.NewVga())
	ActiveTerminal.InitSerial()
}

// UpgradeFramebuffer re-attaches the active terminal to the Multiboot2
// linear framebuffer, if one was reported and the VMM can map it. It must
// run after multiboot.SetInfoPtr (the framebuffer tag lookup needs the info
// block) and after vmm.Init (mapping the LFB needs the page tables). A
// missing tag, an unusable mode, or a mapping failure leaves the VGA
// backend from InitTerminal in place.
func UpgradeFramebuffer() {
	if fb := tryFramebuffer(); fb != nil {
		ActiveTerminal.Attach(fb)
	}
}

func tryFramebuffer() *console.Framebuffer {
	info := multiboot.GetFramebufferInfo()
	if info == nil || info.Type != multiboot.FramebufferTypeRGB {
		return nil
	}
	if info.PhysAddr == 0 || info.Width == 0 || info.Height == 0 {
		return nil
	}
	fb, err := console.NewFramebuffer(uintptr(info.PhysAddr), info.Width, info.Height, info.Pitch, uint32(info.Bpp))
	if err != nil {
		return nil
	}
	return fb
}
