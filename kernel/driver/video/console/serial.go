package console

import "github.com/nimbuscore/nimbuskernel/kernel/cpu"

// COM1 UART registers, offsets from the base I/O port.
const (
	com1Base = 0x3F8

	regData        = 0
	regIntEnable   = 1
	regLineCtrl    = 3
	regModemCtrl   = 4
	regLineStatus  = 5
	regDivisorLo   = 0
	regDivisorHi   = 1

	lineCtrlDLAB    = 0x80
	lineCtrl8N1     = 0x03
	fifoCtrlEnable  = 0xC7
	modemCtrlReady  = 0x0B
	lineStatusTHRE  = 0x20
)

// serialPort is a minimal polling COM1 driver used to mirror console output
// to a host terminal under emulation.
type serialPort struct {
	ready bool
}

// init programs the UART for 115200 baud, 8 data bits, no parity, one stop
// bit, with FIFOs enabled.
func (s *serialPort) init() {
	cpu.Outb(com1Base+regIntEnable, 0x00)
	cpu.Outb(com1Base+regLineCtrl, lineCtrlDLAB)
	cpu.Outb(com1Base+regDivisorLo, 0x01) // 115200 baud (divisor 1) >> lo
	cpu.Outb(com1Base+regDivisorHi, 0x00)
	cpu.Outb(com1Base+regLineCtrl, lineCtrl8N1)
	cpu.Outb(com1Base+2, fifoCtrlEnable)
	cpu.Outb(com1Base+regModemCtrl, modemCtrlReady)
	s.ready = true
}

func (s *serialPort) transmitEmpty() bool {
	return cpu.Inb(com1Base+regLineStatus)&lineStatusTHRE != 0
}

// writeByte busy-waits for the transmit holding register to empty, then
// writes b. It is a no-op until init has run.
func (s *serialPort) writeByte(b byte) {
	if !s.ready {
		return
	}
	for !s.transmitEmpty() {
	}
	cpu.Outb(com1Base+regData, b)
}
