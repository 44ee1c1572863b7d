package cpu

const (
	pic1Command = 0x20
	pic1Data    = 0x21
	pic2Command = 0xA0
	pic2Data    = 0xA1

	picEOI = 0x20

	icw1Init = 0x10
	icw1ICW4 = 0x01
	icw4Mode = 0x01
)

// RemapPIC reprograms the legacy 8259A PIC pair so that IRQ lines 0-7 and
// 8-15 are delivered on vectors offset1 and offset2 respectively, restoring
// the previously configured IRQ masks afterwards.
func RemapPIC(offset1, offset2 uint8) {
	mask1 := Inb(pic1Data)
	mask2 := Inb(pic2Data)

	Outb(pic1Command, icw1Init|icw1ICW4)
	Outb(pic2Command, icw1Init|icw1ICW4)

	Outb(pic1Data, offset1)
	Outb(pic2Data, offset2)

	Outb(pic1Data, 4)
	Outb(pic2Data, 2)

	Outb(pic1Data, icw4Mode)
	Outb(pic2Data, icw4Mode)

	Outb(pic1Data, mask1)
	Outb(pic2Data, mask2)
}

func picPortAndBit(irqLine uint8) (uint16, uint8) {
	if irqLine < 8 {
		return pic1Data, irqLine
	}
	return pic2Data, irqLine - 8
}

// MaskIRQ disables (masks) the given IRQ line.
func MaskIRQ(irqLine uint8) {
	port, bit := picPortAndBit(irqLine)
	Outb(port, Inb(port)|(1<<bit))
}

// UnmaskIRQ enables (clears the mask on) the given IRQ line.
func UnmaskIRQ(irqLine uint8) {
	port, bit := picPortAndBit(irqLine)
	Outb(port, Inb(port)&^(1<<bit))
}

// SendEOI acknowledges an IRQ line, cascading to PIC2 first when needed.
func SendEOI(irqLine uint8) {
	if irqLine >= 8 {
		Outb(pic2Command, picEOI)
	}
	Outb(pic1Command, picEOI)
}

// MaskAllIRQs masks every IRQ line on both PICs.
func MaskAllIRQs() {
	Outb(pic1Data, 0xFF)
	Outb(pic2Data, 0xFF)
}
