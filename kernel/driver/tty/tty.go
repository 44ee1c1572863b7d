// Package tty implements the line discipline sitting between the keyboard
// and whatever is currently reading input: canonical (cooked) line editing
// with echo, or raw pass-through, each byte routed either into the TTY's own
// read ring or into a bound PTY's master-to-slave ring.
package tty

import (
	"github.com/nimbuscore/nimbuskernel/kernel/driver/keyboard"
	"github.com/nimbuscore/nimbuskernel/kernel/driver/pty"
	"github.com/nimbuscore/nimbuskernel/kernel/driver/video/console"
)

const (
	readQueueSize = 2048
	lineBufSize   = 512
)

type escapeState int

const (
	escapeNone escapeState = iota
	escapeGotESC
	escapeGotBracket
)

// TTY holds one line discipline instance. The zero value is not ready; call
// Init first.
type TTY struct {
	readQueue  [readQueueSize]byte
	readHead   uint32
	readTail   uint32

	lineBuf [lineBufSize]byte
	lineLen int

	canonical bool
	echo      bool
	escape    escapeState

	rxCount       uint64
	dropCount     uint64
	lineOverflows uint64
	escapeDiscards uint64
	lineTruncated bool

	sessionID int
	sessionPTY int
}

var active TTY

// Active returns the process-wide TTY singleton.
func Active() *TTY { return &active }

// Init resets the discipline to canonical+echo with no session bound.
func (t *TTY) Init() {
	*t = TTY{canonical: true, echo: true, sessionID: -1, sessionPTY: -1}
}

func (t *TTY) enqueueRead(b byte) bool {
	if t.sessionPTY >= 0 && pty.IsValid(t.sessionPTY) {
		if pty.MasterWrite(t.sessionPTY, []byte{b}) == 1 {
			return true
		}
		t.dropCount++
		return false
	}

	next := (t.readHead + 1) % readQueueSize
	if next == t.readTail {
		t.dropCount++
		return false
	}
	t.readQueue[t.readHead] = b
	t.readHead = next
	return true
}

func (t *TTY) flushLineBuffer() {
	for i := 0; i < t.lineLen; i++ {
		t.enqueueRead(t.lineBuf[i])
	}
	t.lineLen = 0
}

func isPrintable(b byte) bool {
	return b >= 0x20 || b == '\t'
}

// handleEscapeFilter drops a CSI/SS3 escape sequence out of canonical input
// so raw VT100 navigation bytes emitted by the keyboard driver never land in
// a shell's line buffer. It returns true if b was consumed by the filter.
func (t *TTY) handleEscapeFilter(b byte) bool {
	if t.escape == escapeNone {
		if b == 0x1B {
			t.escape = escapeGotESC
			t.escapeDiscards++
			return true
		}
		return false
	}

	t.escapeDiscards++

	if t.escape == escapeGotESC {
		if b == '[' || b == 'O' {
			t.escape = escapeGotBracket
		} else {
			t.escape = escapeNone
		}
		return true
	}

	if t.escape == escapeGotBracket && b >= '@' && b <= '~' {
		t.escape = escapeNone
	}
	return true
}

func (t *TTY) handleCanonical(b byte) {
	if t.handleEscapeFilter(b) {
		return
	}

	switch {
	case b == 0x03: // Ctrl-C
		t.lineLen = 0
		t.enqueueRead(b)
		if t.echo {
			console.Active().Write([]byte("^C\n"))
		}
		return
	case b == 0x0C: // Ctrl-L
		t.enqueueRead(b)
		return
	case b == '\b' || b == 0x7F:
		if t.lineLen > 0 {
			t.lineLen--
			if t.echo {
				console.Active().WriteByte('\b')
			}
		}
		return
	case b == '\n':
		if t.lineLen+1 < lineBufSize {
			t.lineBuf[t.lineLen] = '\n'
			t.lineLen++
		} else {
			t.dropCount++
			t.lineOverflows++
			t.lineTruncated = true
		}
		if t.echo {
			console.Active().WriteByte('\n')
		}
		t.flushLineBuffer()
		t.lineTruncated = false
		return
	case b == 0x04: // Ctrl-D
		if t.lineLen == 0 {
			t.enqueueRead(b)
		} else {
			t.flushLineBuffer()
		}
		return
	}

	if !isPrintable(b) {
		return
	}

	if t.lineLen+1 >= lineBufSize {
		t.dropCount++
		t.lineOverflows++
		if !t.lineTruncated && t.echo {
			console.Active().WriteByte('\a')
		}
		t.lineTruncated = true
		return
	}

	t.lineBuf[t.lineLen] = b
	t.lineLen++
	if t.echo {
		console.Active().WriteByte(b)
	}
}

func (t *TTY) handleNoncanonical(b byte) {
	t.enqueueRead(b)
	if t.echo {
		console.Active().WriteByte(b)
	}
}

// PollInput drains every byte the keyboard driver has decoded so far through
// the line discipline.
func (t *TTY) PollInput() {
	for {
		b, ok := keyboard.Active().PopChar()
		if !ok {
			return
		}
		t.rxCount++
		if t.canonical {
			t.handleCanonical(b)
		} else {
			t.handleNoncanonical(b)
		}
	}
}

// PopChar dequeues one byte from the TTY's own read ring (used only while no
// session/PTY is bound).
func (t *TTY) PopChar() (byte, bool) {
	if t.readTail == t.readHead {
		return 0, false
	}
	b := t.readQueue[t.readTail]
	t.readTail = (t.readTail + 1) % readQueueSize
	return b, true
}

func (t *TTY) SetCanonical(enabled bool) { t.canonical = enabled }
func (t *TTY) SetEcho(enabled bool)      { t.echo = enabled }

func (t *TTY) RxBytes() uint64        { return t.rxCount }
func (t *TTY) DroppedBytes() uint64   { return t.dropCount }
func (t *TTY) LineOverflows() uint64  { return t.lineOverflows }
func (t *TTY) EscapeDiscards() uint64 { return t.escapeDiscards }

// AttachSession binds the TTY to a session and its controlling PTY. Passing
// a negative ptyID detaches the PTY and returns the TTY to its own read ring.
func (t *TTY) AttachSession(sessionID, ptyID int) {
	t.sessionID = sessionID
	t.sessionPTY = ptyID
}

func (t *TTY) AttachedSession() int { return t.sessionID }
func (t *TTY) AttachedPTY() int     { return t.sessionPTY }

// InjectBytes feeds buf through the line discipline as if it had arrived
// from the keyboard. Exposed for tests driving canonical-mode scenarios
// without a real PS/2 controller.
func (t *TTY) InjectBytes(buf []byte) {
	for _, b := range buf {
		t.rxCount++
		if t.canonical {
			t.handleCanonical(b)
		} else {
			t.handleNoncanonical(b)
		}
	}
}
