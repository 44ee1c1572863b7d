package kernel

import (
	"github.com/nimbuscore/nimbuskernel/kernel/cpu"
	"github.com/nimbuscore/nimbuskernel/kernel/kfmt/early"
)

var (
	// haltFn is the routine Panic calls to stop the CPU.
	haltFn = haltForever

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// haltForever disables interrupts and spins on hlt. It never returns.
func haltForever() {
	cpu.DisableInterrupts()
	for {
		cpu.Halt()
	}
}

// Panic prints the supplied error (if any) to the active console and halts
// the CPU forever. Panic never returns.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	haltFn()
}
