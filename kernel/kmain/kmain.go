// Package kmain implements the ordered bring-up sequence invoked by the
// boot shim once it has entered long mode: console, memory, interrupts,
// input, and the single default session, followed by the cooperative main
// loop.
package kmain

import (
	"github.com/nimbuscore/nimbuskernel/kernel"
	"github.com/nimbuscore/nimbuskernel/kernel/cpu"
	"github.com/nimbuscore/nimbuskernel/kernel/driver/keyboard"
	"github.com/nimbuscore/nimbuskernel/kernel/driver/pty"
	"github.com/nimbuscore/nimbuskernel/kernel/driver/session"
	"github.com/nimbuscore/nimbuskernel/kernel/driver/tty"
	"github.com/nimbuscore/nimbuskernel/kernel/fs"
	"github.com/nimbuscore/nimbuskernel/kernel/hal"
	"github.com/nimbuscore/nimbuskernel/kernel/hal/multiboot"
	"github.com/nimbuscore/nimbuskernel/kernel/kfmt/early"
	"github.com/nimbuscore/nimbuskernel/kernel/mem/pmm"
	"github.com/nimbuscore/nimbuskernel/kernel/mem/vmm"
	"github.com/nimbuscore/nimbuskernel/kernel/storage"
)

const (
	vectorTimer    = 0x20
	vectorKeyboard = 0x21
	irqTimer       = 0
	irqKeyboard    = 1
	irqCascade     = 2
	pitFrequencyHz = 100
)

var errBadMultibootMagic = &kernel.Error{Module: "kmain", Message: "invalid multiboot2 magic"}

func timerHandler(_ uint8, _ uint64) {
	cpu.OnTick()
	cpu.SendEOI(irqTimer)
}

func keyboardHandler(_ uint8, _ uint64) {
	keyboard.Active().OnIRQ()
	cpu.SendEOI(irqKeyboard)
}

// Kmain is the only Go symbol visible to the rt0 assembly trampoline. It is
// invoked after the GDT and a minimal long-mode stack have been set up, and
// is not expected to return; if it does, rt0 halts the CPU.
//
// The boot shim passes the Multiboot2 magic and info-block address straight
// through from the loader handoff, plus the linker-provided kernel image
// bounds the frame allocator must reserve.
//
//go:noinline
func Kmain(multibootMagic uint32, multibootInfoAddr, kernelStart, kernelEnd uintptr) {
	hal.InitTerminal()
	hal.ActiveTerminal.Clear()

	if !multiboot.VerifyMagic(multibootMagic) {
		kernel.Panic(errBadMultibootMagic)
	}
	multiboot.SetInfoPtr(multibootInfoAddr)

	pmm.Init(kernelStart, kernelEnd)
	vmm.Init()
	hal.UpgradeFramebuffer()

	cpu.InitIDT()
	cpu.InstallDefaults()
	cpu.SetHandler(vectorTimer, timerHandler)
	cpu.SetHandler(vectorKeyboard, keyboardHandler)

	cpu.RemapPIC(0x20, 0x28)
	cpu.MaskAllIRQs()
	cpu.UnmaskIRQ(irqTimer)
	cpu.UnmaskIRQ(irqKeyboard)
	cpu.UnmaskIRQ(irqCascade)
	cpu.InitPIT(pitFrequencyHz)

	keyboard.Active().Init()
	tty.Active().Init()
	pty.Init()
	session.Init()
	fs.Init()
	storage.Init()

	bootstrapSession()

	cpu.EnableInterrupts()

	early.Printf("[kmain] ready\n")

	for {
		tty.Active().PollInput()
		cpu.Halt()
	}
}

// bootstrapSession creates the first session, gives it a fresh PTY, elects
// it as active, and binds the TTY's line discipline to route flushed input
// there. A failure at any step is a degradation, not a fatal error: the TTY
// keeps flushed lines in its own read ring and the (out of scope) shell
// layer simply has nothing to read from yet.
func bootstrapSession() {
	sid := session.Create(1)
	if sid < 0 {
		early.Printf("[kmain] session table exhausted, continuing without a controlling terminal\n")
		return
	}

	ptyID := pty.Alloc()
	if ptyID < 0 {
		early.Printf("[kmain] pty table exhausted, continuing without a controlling terminal\n")
		return
	}

	if !session.SetControllingPTY(sid, ptyID) || !session.SetActive(sid) {
		early.Printf("[kmain] session binding failed, continuing without a controlling terminal\n")
		return
	}

	tty.Active().AttachSession(sid, ptyID)
}
