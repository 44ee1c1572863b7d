package tty

import "testing"

func freshTTY() *TTY {
	tt := Active()
	tt.Init()
	return tt
}

func TestCanonicalFlushesOnNewline(t *testing.T) {
	tt := freshTTY()

	tt.InjectBytes([]byte("hello\n"))

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "hello\n" {
		t.Fatalf("PopChar() drained %q, want %q", got, "hello\n")
	}
}

func TestCanonicalBackspaceEditsLine(t *testing.T) {
	tt := freshTTY()

	tt.InjectBytes([]byte("helxx"))
	tt.InjectBytes([]byte{'\b', '\b'})
	tt.InjectBytes([]byte("lo\n"))

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "hello\n" {
		t.Fatalf("PopChar() drained %q, want %q", got, "hello\n")
	}
}

func TestCtrlCClearsLineAndEmitsByte(t *testing.T) {
	tt := freshTTY()

	tt.InjectBytes([]byte("partial"))
	tt.InjectBytes([]byte{0x03})
	tt.InjectBytes([]byte("next\n"))

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := append([]byte{0x03}, []byte("next\n")...)
	if string(got) != string(want) {
		t.Fatalf("PopChar() drained %q, want %q", got, want)
	}
}

func TestCtrlDFlushesPartialLine(t *testing.T) {
	tt := freshTTY()

	tt.InjectBytes([]byte("abc"))
	tt.InjectBytes([]byte{0x04})

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "abc" {
		t.Fatalf("PopChar() drained %q, want %q", got, "abc")
	}
}

func TestCtrlDOnEmptyLineIsEnqueuedAlone(t *testing.T) {
	tt := freshTTY()

	tt.InjectBytes([]byte{0x04})

	b, ok := tt.PopChar()
	if !ok || b != 0x04 {
		t.Fatalf("PopChar() = (%v, %v), want (0x04, true)", b, ok)
	}
	if _, ok := tt.PopChar(); ok {
		t.Fatal("expected read ring to be empty after draining Ctrl-D")
	}
}

func TestEscapeSequenceIsFilteredFromLine(t *testing.T) {
	tt := freshTTY()

	tt.InjectBytes([]byte("ab"))
	tt.InjectBytes([]byte{0x1B, '[', 'A'}) // cursor-up CSI
	tt.InjectBytes([]byte("cd\n"))

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "abcd\n" {
		t.Fatalf("PopChar() drained %q, want %q", got, "abcd\n")
	}
	if tt.EscapeDiscards() == 0 {
		t.Fatal("expected EscapeDiscards() to be nonzero after a CSI sequence")
	}
}

func TestLineOverflowCountsEachDroppedByteAndFlushesWithoutNewline(t *testing.T) {
	tt := freshTTY()

	overflow := make([]byte, lineBufSize+16)
	for i := range overflow {
		overflow[i] = 'a'
	}
	tt.InjectBytes(overflow)

	// The line buffer accepts lineBufSize-1 bytes before every further byte
	// is rejected, so every byte past that boundary increments LineOverflows.
	wantOverflows := uint64(len(overflow) - (lineBufSize - 1))
	if got := tt.LineOverflows(); got != wantOverflows {
		t.Fatalf("LineOverflows() = %d, want %d", got, wantOverflows)
	}

	tt.InjectBytes([]byte{'\n'})

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if len(got) == 0 {
		t.Fatal("expected the truncated line to flush once terminated")
	}
	if got[len(got)-1] == '\n' {
		t.Fatal("flushed overflowed line must not retain the dropped trailing newline")
	}
}

func TestNonCanonicalPassesBytesThroughVerbatim(t *testing.T) {
	tt := freshTTY()
	tt.SetCanonical(false)

	tt.InjectBytes([]byte{'a', 0x03, '\n', 'b'})

	var got []byte
	for {
		b, ok := tt.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "a\x03\nb" {
		t.Fatalf("PopChar() drained %q, want %q", got, "a\x03\nb")
	}
}

func TestAttachSessionWithoutPTYKeepsOwnRing(t *testing.T) {
	tt := freshTTY()
	tt.AttachSession(0, -1)

	if got := tt.AttachedSession(); got != 0 {
		t.Fatalf("AttachedSession() = %d, want 0", got)
	}
	if got := tt.AttachedPTY(); got != -1 {
		t.Fatalf("AttachedPTY() = %d, want -1", got)
	}

	tt.InjectBytes([]byte("x\n"))
	if _, ok := tt.PopChar(); !ok {
		t.Fatal("expected bytes in own ring when no valid PTY is bound")
	}
}
