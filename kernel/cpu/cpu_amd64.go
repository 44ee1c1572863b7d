// Package cpu declares the architecture primitives that must be implemented
// in assembly: port I/O, control-register access and the handful of
// instructions Go cannot express directly (lidt, hlt, invlpg, ...).
package cpu

// EnableInterrupts enables interrupt handling (sti).
func EnableInterrupts()

// DisableInterrupts disables interrupt handling (cli).
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt (hlt).
func Halt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address
// (invlpg).
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table
// (contents of cr3).
func ActivePDT() uintptr

// ReadCR2 returns the contents of cr2, the faulting address of the most
// recent page fault.
func ReadCR2() uintptr

// Inb reads a single byte from the given I/O port.
func Inb(port uint16) uint8

// Outb writes a single byte to the given I/O port.
func Outb(port uint16, value uint8)

// Outw writes a 16-bit word to the given I/O port.
func Outw(port uint16, value uint16)

// LIDT loads the interrupt descriptor table register from the 10-byte
// pseudo-descriptor at the given address (limit:base).
func LIDT(idtrAddr uintptr)
