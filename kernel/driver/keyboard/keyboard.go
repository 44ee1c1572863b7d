// Package keyboard decodes PS/2 scancodes into key events and UTF-8 input
// bytes. All state lives in static arrays and ring buffers so OnIRQ can run
// directly from the IRQ1 handler with no allocation.
package keyboard

import "github.com/nimbuscore/nimbuskernel/kernel/cpu"

const dataPort = 0x60

// KeyCode enumerates every key this driver recognizes.
type KeyCode uint16

const (
	KeyNone KeyCode = iota
	KeyEsc
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEqual
	KeyBackspace
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyLeftBrace
	KeyRightBrace
	KeyEnter
	KeyLeftCtrl
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyApostrophe
	KeyGrave
	KeyLeftShift
	KeyBackslash
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyDot
	KeySlash
	KeyRightShift
	KeyKPAsterisk
	KeyLeftAlt
	KeySpace
	KeyCapsLock
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyNumLock
	KeyScrollLock
	KeyKP7
	KeyKP8
	KeyKP9
	KeyKPMinus
	KeyKP4
	KeyKP5
	KeyKP6
	KeyKPPlus
	KeyKP1
	KeyKP2
	KeyKP3
	KeyKP0
	KeyKPDot
	KeyF11
	KeyF12
	KeyRightCtrl
	KeyRightAlt
	KeyHome
	KeyUp
	KeyPageUp
	KeyLeft
	KeyRight
	KeyEnd
	KeyDown
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyLeftMeta
	KeyRightMeta
	KeyKPEnter
	KeyKPSlash
	keyMax
)

// Modifier bits, combined in Event.Modifiers.
const (
	ModShift uint8 = 1 << 0
	ModCtrl  uint8 = 1 << 1
	ModAlt   uint8 = 1 << 2
	ModAltGr uint8 = 1 << 3
	ModMeta  uint8 = 1 << 4
)

// Lock bits, combined in Event.Locks.
const (
	LockCaps   uint8 = 1 << 0
	LockNum    uint8 = 1 << 1
	LockScroll uint8 = 1 << 2
)

// Event describes one key transition.
type Event struct {
	KeyCode   KeyCode
	Unicode   rune
	Modifiers uint8
	Locks     uint8
	Pressed   bool
	Repeat    bool
}

var scancodeToKey = [128]KeyCode{
	0x01: KeyEsc, 0x02: Key1, 0x03: Key2, 0x04: Key3, 0x05: Key4,
	0x06: Key5, 0x07: Key6, 0x08: Key7, 0x09: Key8, 0x0A: Key9,
	0x0B: Key0, 0x0C: KeyMinus, 0x0D: KeyEqual, 0x0E: KeyBackspace, 0x0F: KeyTab,
	0x10: KeyQ, 0x11: KeyW, 0x12: KeyE, 0x13: KeyR, 0x14: KeyT,
	0x15: KeyY, 0x16: KeyU, 0x17: KeyI, 0x18: KeyO, 0x19: KeyP,
	0x1A: KeyLeftBrace, 0x1B: KeyRightBrace, 0x1C: KeyEnter, 0x1D: KeyLeftCtrl,
	0x1E: KeyA, 0x1F: KeyS, 0x20: KeyD, 0x21: KeyF, 0x22: KeyG,
	0x23: KeyH, 0x24: KeyJ, 0x25: KeyK, 0x26: KeyL, 0x27: KeySemicolon,
	0x28: KeyApostrophe, 0x29: KeyGrave, 0x2A: KeyLeftShift, 0x2B: KeyBackslash,
	0x2C: KeyZ, 0x2D: KeyX, 0x2E: KeyC, 0x2F: KeyV, 0x30: KeyB,
	0x31: KeyN, 0x32: KeyM, 0x33: KeyComma, 0x34: KeyDot, 0x35: KeySlash,
	0x36: KeyRightShift, 0x37: KeyKPAsterisk, 0x38: KeyLeftAlt, 0x39: KeySpace,
	0x3A: KeyCapsLock, 0x3B: KeyF1, 0x3C: KeyF2, 0x3D: KeyF3, 0x3E: KeyF4,
	0x3F: KeyF5, 0x40: KeyF6, 0x41: KeyF7, 0x42: KeyF8, 0x43: KeyF9, 0x44: KeyF10,
	0x45: KeyNumLock, 0x46: KeyScrollLock, 0x47: KeyKP7, 0x48: KeyKP8, 0x49: KeyKP9,
	0x4A: KeyKPMinus, 0x4B: KeyKP4, 0x4C: KeyKP5, 0x4D: KeyKP6, 0x4E: KeyKPPlus,
	0x4F: KeyKP1, 0x50: KeyKP2, 0x51: KeyKP3, 0x52: KeyKP0, 0x53: KeyKPDot,
	0x57: KeyF11, 0x58: KeyF12,
}

var scancodeToKeyE0 = [128]KeyCode{
	0x1C: KeyKPEnter, 0x1D: KeyRightCtrl, 0x35: KeyKPSlash, 0x38: KeyRightAlt,
	0x47: KeyHome, 0x48: KeyUp, 0x49: KeyPageUp, 0x4B: KeyLeft, 0x4D: KeyRight,
	0x4F: KeyEnd, 0x50: KeyDown, 0x51: KeyPageDown, 0x52: KeyInsert, 0x53: KeyDelete,
	0x5B: KeyLeftMeta, 0x5C: KeyRightMeta,
}

const (
	byteQueueSize  = 1024
	eventQueueSize = 256
)

// Keyboard holds the full PS/2 decoding state. The zero value is ready to
// use once Init has run.
type Keyboard struct {
	byteQueue [byteQueueSize]byte
	byteHead, byteTail uint32

	eventQueue [eventQueueSize]Event
	eventHead, eventTail uint32

	extended bool
	e1Skip   uint32

	modifiers uint8
	locks     uint8
	keyDown   [keyMax]bool

	rxScancodes  uint64
	dropBytes    uint64
	dropEvents   uint64
}

var active Keyboard

// Active returns the process-wide keyboard singleton.
func Active() *Keyboard { return &active }

// Init clears all decoding state.
func (k *Keyboard) Init() {
	*k = Keyboard{}
}

func (k *Keyboard) pushByte(b byte) {
	next := (k.byteHead + 1) % byteQueueSize
	if next == k.byteTail {
		k.dropBytes++
		return
	}
	k.byteQueue[k.byteHead] = b
	k.byteHead = next
}

func (k *Keyboard) pushEvent(e Event) {
	next := (k.eventHead + 1) % eventQueueSize
	if next == k.eventTail {
		k.dropEvents++
		return
	}
	k.eventQueue[k.eventHead] = e
	k.eventHead = next
}

func (k *Keyboard) emitUTF8(cp rune) {
	switch {
	case cp <= 0x7F:
		k.pushByte(byte(cp))
	case cp <= 0x7FF:
		k.pushByte(byte(0xC0 | (cp >> 6)))
		k.pushByte(byte(0x80 | (cp & 0x3F)))
	case cp <= 0xFFFF:
		if cp >= 0xD800 && cp <= 0xDFFF {
			return
		}
		k.pushByte(byte(0xE0 | (cp >> 12)))
		k.pushByte(byte(0x80 | ((cp >> 6) & 0x3F)))
		k.pushByte(byte(0x80 | (cp & 0x3F)))
	case cp <= 0x10FFFF:
		k.pushByte(byte(0xF0 | (cp >> 18)))
		k.pushByte(byte(0x80 | ((cp >> 12) & 0x3F)))
		k.pushByte(byte(0x80 | ((cp >> 6) & 0x3F)))
		k.pushByte(byte(0x80 | (cp & 0x3F)))
	}
}

func (k *Keyboard) emitSequence(seq string) {
	for i := 0; i < len(seq); i++ {
		k.pushByte(seq[i])
	}
}

func setModifierBit(mods *uint8, bit uint8, pressed bool) {
	if pressed {
		*mods |= bit
	} else {
		*mods &^= bit
	}
}

func (k *Keyboard) updateState(key KeyCode, pressed bool) {
	switch key {
	case KeyLeftShift, KeyRightShift:
		setModifierBit(&k.modifiers, ModShift, pressed)
	case KeyLeftCtrl, KeyRightCtrl:
		setModifierBit(&k.modifiers, ModCtrl, pressed)
	case KeyLeftAlt:
		setModifierBit(&k.modifiers, ModAlt, pressed)
	case KeyRightAlt:
		setModifierBit(&k.modifiers, ModAltGr, pressed)
	case KeyLeftMeta, KeyRightMeta:
		setModifierBit(&k.modifiers, ModMeta, pressed)
	case KeyCapsLock:
		if pressed {
			k.locks ^= LockCaps
		}
	case KeyNumLock:
		if pressed {
			k.locks ^= LockNum
		}
	case KeyScrollLock:
		if pressed {
			k.locks ^= LockScroll
		}
	}
}

func applyAlpha(lower rune, modifiers, locks uint8) rune {
	ch := lower
	shift := modifiers&ModShift != 0
	caps := locks&LockCaps != 0

	if shift != caps {
		ch = lower - ('a' - 'A')
	}
	if modifiers&ModCtrl != 0 {
		ch &= 0x1F
	}
	return ch
}

func keycodeToUnicode(key KeyCode, modifiers, locks uint8) rune {
	shift := modifiers&ModShift != 0
	ctrl := modifiers&ModCtrl != 0
	numlock := locks&LockNum != 0

	switch key {
	case KeyA:
		return applyAlpha('a', modifiers, locks)
	case KeyB:
		return applyAlpha('b', modifiers, locks)
	case KeyC:
		return applyAlpha('c', modifiers, locks)
	case KeyD:
		return applyAlpha('d', modifiers, locks)
	case KeyE:
		return applyAlpha('e', modifiers, locks)
	case KeyF:
		return applyAlpha('f', modifiers, locks)
	case KeyG:
		return applyAlpha('g', modifiers, locks)
	case KeyH:
		return applyAlpha('h', modifiers, locks)
	case KeyI:
		return applyAlpha('i', modifiers, locks)
	case KeyJ:
		return applyAlpha('j', modifiers, locks)
	case KeyK:
		return applyAlpha('k', modifiers, locks)
	case KeyL:
		return applyAlpha('l', modifiers, locks)
	case KeyM:
		return applyAlpha('m', modifiers, locks)
	case KeyN:
		return applyAlpha('n', modifiers, locks)
	case KeyO:
		return applyAlpha('o', modifiers, locks)
	case KeyP:
		return applyAlpha('p', modifiers, locks)
	case KeyQ:
		return applyAlpha('q', modifiers, locks)
	case KeyR:
		return applyAlpha('r', modifiers, locks)
	case KeyS:
		return applyAlpha('s', modifiers, locks)
	case KeyT:
		return applyAlpha('t', modifiers, locks)
	case KeyU:
		return applyAlpha('u', modifiers, locks)
	case KeyV:
		return applyAlpha('v', modifiers, locks)
	case KeyW:
		return applyAlpha('w', modifiers, locks)
	case KeyX:
		return applyAlpha('x', modifiers, locks)
	case KeyY:
		return applyAlpha('y', modifiers, locks)
	case KeyZ:
		return applyAlpha('z', modifiers, locks)
	case Key1:
		if shift {
			return '!'
		}
		return '1'
	case Key2:
		if ctrl {
			return 0
		}
		if shift {
			return '@'
		}
		return '2'
	case Key3:
		if shift {
			return '#'
		}
		return '3'
	case Key4:
		if shift {
			return '$'
		}
		return '4'
	case Key5:
		if shift {
			return '%'
		}
		return '5'
	case Key6:
		if ctrl {
			return 0x1E
		}
		if shift {
			return '^'
		}
		return '6'
	case Key7:
		if shift {
			return '&'
		}
		return '7'
	case Key8:
		if shift {
			return '*'
		}
		return '8'
	case Key9:
		if shift {
			return '('
		}
		return '9'
	case Key0:
		if shift {
			return ')'
		}
		return '0'
	case KeyMinus:
		if ctrl {
			return 0x1F
		}
		if shift {
			return '_'
		}
		return '-'
	case KeyEqual:
		if shift {
			return '+'
		}
		return '='
	case KeyLeftBrace:
		if ctrl {
			return 0x1B
		}
		if shift {
			return '{'
		}
		return '['
	case KeyRightBrace:
		if ctrl {
			return 0x1D
		}
		if shift {
			return '}'
		}
		return ']'
	case KeyBackslash:
		if ctrl {
			return 0x1C
		}
		if shift {
			return '|'
		}
		return '\\'
	case KeySemicolon:
		if shift {
			return ':'
		}
		return ';'
	case KeyApostrophe:
		if shift {
			return '"'
		}
		return '\''
	case KeyGrave:
		if shift {
			return '~'
		}
		return '`'
	case KeyComma:
		if shift {
			return '<'
		}
		return ','
	case KeyDot:
		if shift {
			return '>'
		}
		return '.'
	case KeySlash:
		if shift {
			return '?'
		}
		return '/'
	case KeySpace:
		return ' '
	case KeyTab:
		return '\t'
	case KeyEnter, KeyKPEnter:
		return '\n'
	case KeyBackspace:
		return '\b'
	case KeyEsc:
		return 0x1B
	case KeyKP0:
		if numlock {
			return '0'
		}
	case KeyKP1:
		if numlock {
			return '1'
		}
	case KeyKP2:
		if numlock {
			return '2'
		}
	case KeyKP3:
		if numlock {
			return '3'
		}
	case KeyKP4:
		if numlock {
			return '4'
		}
	case KeyKP5:
		if numlock {
			return '5'
		}
	case KeyKP6:
		if numlock {
			return '6'
		}
	case KeyKP7:
		if numlock {
			return '7'
		}
	case KeyKP8:
		if numlock {
			return '8'
		}
	case KeyKP9:
		if numlock {
			return '9'
		}
	case KeyKPDot:
		if numlock {
			return '.'
		}
	case KeyKPMinus:
		return '-'
	case KeyKPPlus:
		return '+'
	case KeyKPAsterisk:
		return '*'
	case KeyKPSlash:
		return '/'
	}
	return 0
}

func (k *Keyboard) emitSpecialSequence(key KeyCode) {
	switch key {
	case KeyUp:
		k.emitSequence("\x1B[A")
	case KeyDown:
		k.emitSequence("\x1B[B")
	case KeyRight:
		k.emitSequence("\x1B[C")
	case KeyLeft:
		k.emitSequence("\x1B[D")
	case KeyHome:
		k.emitSequence("\x1B[H")
	case KeyEnd:
		k.emitSequence("\x1B[F")
	case KeyInsert:
		k.emitSequence("\x1B[2~")
	case KeyDelete:
		k.emitSequence("\x1B[3~")
	case KeyPageUp:
		k.emitSequence("\x1B[5~")
	case KeyPageDown:
		k.emitSequence("\x1B[6~")
	case KeyF1:
		k.emitSequence("\x1BOP")
	case KeyF2:
		k.emitSequence("\x1BOQ")
	case KeyF3:
		k.emitSequence("\x1BOR")
	case KeyF4:
		k.emitSequence("\x1BOS")
	case KeyF5:
		k.emitSequence("\x1B[15~")
	case KeyF6:
		k.emitSequence("\x1B[17~")
	case KeyF7:
		k.emitSequence("\x1B[18~")
	case KeyF8:
		k.emitSequence("\x1B[19~")
	case KeyF9:
		k.emitSequence("\x1B[20~")
	case KeyF10:
		k.emitSequence("\x1B[21~")
	case KeyF11:
		k.emitSequence("\x1B[23~")
	case KeyF12:
		k.emitSequence("\x1B[24~")
	}
}

func (k *Keyboard) emitInputBytes(e *Event) {
	if !e.Pressed {
		return
	}
	if e.Unicode != 0 {
		if e.Modifiers&(ModAlt|ModAltGr) != 0 {
			k.pushByte(0x1B)
		}
		k.emitUTF8(e.Unicode)
		return
	}
	k.emitSpecialSequence(e.KeyCode)
}

// OnIRQ reads one scancode byte from the PS/2 controller and advances the
// decoder. It is meant to be called directly from the IRQ1 handler.
func (k *Keyboard) OnIRQ() {
	scancode := cpu.Inb(dataPort)
	k.rxScancodes++

	if scancode == 0xE0 {
		k.extended = true
		return
	}
	if scancode == 0xE1 {
		// Pause/Break emits a 6-byte sequence; the remaining 5 bytes
		// carry no state we track, so they are dropped wholesale.
		k.e1Skip = 5
		return
	}
	if k.e1Skip > 0 {
		k.e1Skip--
		return
	}

	released := scancode&0x80 != 0
	code := scancode & 0x7F

	var key KeyCode
	if k.extended {
		key = scancodeToKeyE0[code]
		k.extended = false
	} else {
		key = scancodeToKey[code]
	}

	if key == KeyNone || key >= keyMax {
		return
	}

	var e Event
	if !released {
		e.Repeat = k.keyDown[key]
		k.keyDown[key] = true
	} else {
		k.keyDown[key] = false
	}

	k.updateState(key, !released)

	e.KeyCode = key
	e.Modifiers = k.modifiers
	e.Locks = k.locks
	e.Pressed = !released
	if e.Pressed {
		e.Unicode = keycodeToUnicode(key, k.modifiers, k.locks)
	}

	k.pushEvent(e)
	k.emitInputBytes(&e)
}

// PopChar dequeues one decoded input byte.
func (k *Keyboard) PopChar() (byte, bool) {
	if k.byteTail == k.byteHead {
		return 0, false
	}
	b := k.byteQueue[k.byteTail]
	k.byteTail = (k.byteTail + 1) % byteQueueSize
	return b, true
}

// PopEvent dequeues one raw key event.
func (k *Keyboard) PopEvent() (Event, bool) {
	if k.eventTail == k.eventHead {
		return Event{}, false
	}
	e := k.eventQueue[k.eventTail]
	k.eventTail = (k.eventTail + 1) % eventQueueSize
	return e, true
}

func (k *Keyboard) Modifiers() uint8      { return k.modifiers }
func (k *Keyboard) Locks() uint8          { return k.locks }
func (k *Keyboard) RxScancodes() uint64   { return k.rxScancodes }
func (k *Keyboard) DroppedBytes() uint64  { return k.dropBytes }
func (k *Keyboard) DroppedEvents() uint64 { return k.dropEvents }
