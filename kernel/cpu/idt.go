package cpu

import (
	"github.com/nimbuscore/nimbuskernel/kernel/kfmt/early"
)

// IdtEntries is the fixed size of the interrupt descriptor table.
const IdtEntries = 256

// vectors that push a CPU error code onto the stack before invoking the
// handler. All others receive errorCode == 0 in their Handler callback.
var vectorsWithErrorCode = [...]uint8{8, 10, 11, 12, 13, 14, 17, 21, 29, 30}

func vectorHasErrorCode(vector uint8) bool {
	for _, v := range vectorsWithErrorCode {
		if v == vector {
			return true
		}
	}
	return false
}

// Handler is invoked by the low-level interrupt trampoline for a given
// vector. errorCode is 0 for vectors that do not push one.
type Handler func(vector uint8, errorCode uint64)

var handlers [IdtEntries]Handler

// InitIDT populates the 256 raw IDT gate descriptors (pointing at the
// shared low-level trampoline for each vector) and loads the table with
// LIDT. A vector with no registered handler falls back to the benign
// handler; InstallDefaults registers the exception handler for vectors 0-31.
func InitIDT()

// SetHandler registers the Go-level callback invoked for a vector. It does
// not touch the raw gate descriptor, which already points at the shared
// trampoline.
func SetHandler(vector uint8, h Handler) {
	handlers[vector] = h
}

// dispatch is called by the assembly trampoline for every vector. It is
// exported (via go:linkname equivalent wiring in the trampoline) rather
// than called directly from Go code.
func dispatch(vector uint8, errorCode uint64) {
	if h := handlers[vector]; h != nil {
		h(vector, errorCode)
		return
	}
	benignHandler(vector, errorCode)
}

func benignHandler(vector uint8, _ uint64) {
	if vector >= 32 {
		SendEOI(vector - 32)
	}
}

func exceptionHandler(vector uint8, errorCode uint64) {
	DisableInterrupts()
	early.Printf("\n*** unhandled CPU exception ***\n")
	early.Printf("vector: %d\n", vector)
	if vectorHasErrorCode(vector) {
		early.Printf("error code: %x\n", errorCode)
	}
	if vector == 14 {
		early.Printf("cr2: %x\n", uint64(ReadCR2()))
	}
	early.Printf("system halted\n")
	for {
		Halt()
	}
}

// InstallDefaults wires the 0-31 exception range to exceptionHandler and
// leaves every other vector on the benign default (EOI only, no-op for
// vectors below 32).
func InstallDefaults() {
	for v := uint8(0); v < 32; v++ {
		SetHandler(v, exceptionHandler)
	}
}
