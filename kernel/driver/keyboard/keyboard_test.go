package keyboard

import "testing"

// These tests drive the decoder's pure logic directly rather than through
// OnIRQ, which reads the PS/2 data port and has no meaning off real hardware.

func TestKeycodeToUnicodeShiftAndCaps(t *testing.T) {
	if got := keycodeToUnicode(KeyA, 0, 0); got != 'a' {
		t.Fatalf("KeyA unshifted = %q, want %q", got, 'a')
	}
	if got := keycodeToUnicode(KeyA, ModShift, 0); got != 'A' {
		t.Fatalf("KeyA shifted = %q, want %q", got, 'A')
	}
	if got := keycodeToUnicode(KeyA, 0, LockCaps); got != 'A' {
		t.Fatalf("KeyA with caps lock = %q, want %q", got, 'A')
	}
	if got := keycodeToUnicode(KeyA, ModShift, LockCaps); got != 'a' {
		t.Fatalf("KeyA shifted with caps lock = %q, want %q", got, 'a')
	}
}

func TestKeycodeToUnicodeCtrlMapsToControlCode(t *testing.T) {
	if got := keycodeToUnicode(KeyC, ModCtrl, 0); got != 0x03 {
		t.Fatalf("Ctrl-C = %#x, want 0x03", got)
	}
	if got := keycodeToUnicode(KeyD, ModCtrl, 0); got != 0x04 {
		t.Fatalf("Ctrl-D = %#x, want 0x04", got)
	}
}

func TestKeycodeToUnicodeDigitShiftSymbols(t *testing.T) {
	cases := map[KeyCode]rune{Key1: '1', Key2: '2'}
	for key, want := range cases {
		if got := keycodeToUnicode(key, 0, 0); got != want {
			t.Fatalf("%v unshifted = %q, want %q", key, got, want)
		}
	}
	if got := keycodeToUnicode(Key1, ModShift, 0); got != '!' {
		t.Fatalf("Key1 shifted = %q, want %q", got, '!')
	}
}

func TestKeycodeToUnicodeNonPrintableReturnsZero(t *testing.T) {
	if got := keycodeToUnicode(KeyF1, 0, 0); got != 0 {
		t.Fatalf("KeyF1 = %#x, want 0", got)
	}
	if got := keycodeToUnicode(KeyKP5, 0, 0); got != 0 {
		t.Fatalf("KeyKP5 without numlock = %#x, want 0", got)
	}
	if got := keycodeToUnicode(KeyKP5, 0, LockNum); got != '5' {
		t.Fatalf("KeyKP5 with numlock = %q, want %q", got, '5')
	}
}

func TestEmitUTF8EncodesMultibyteScalars(t *testing.T) {
	var k Keyboard
	k.Init()

	k.emitUTF8(0x00E9) // é, 2-byte UTF-8
	var got []byte
	for {
		b, ok := k.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := []byte{0xC3, 0xA9}
	if string(got) != string(want) {
		t.Fatalf("emitUTF8(0xE9) = %v, want %v", got, want)
	}
}

func TestEmitUTF8RejectsSurrogates(t *testing.T) {
	var k Keyboard
	k.Init()

	k.emitUTF8(0xD800)
	if _, ok := k.PopChar(); ok {
		t.Fatal("expected no bytes emitted for a surrogate codepoint")
	}
}

func TestEmitSpecialSequenceArrowKeys(t *testing.T) {
	var k Keyboard
	k.Init()

	k.emitSpecialSequence(KeyUp)
	var got []byte
	for {
		b, ok := k.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "\x1B[A" {
		t.Fatalf("emitSpecialSequence(KeyUp) = %q, want %q", got, "\x1B[A")
	}
}

func TestEmitInputBytesAltPrefixesEscape(t *testing.T) {
	var k Keyboard
	k.Init()

	e := Event{KeyCode: KeyA, Unicode: 'a', Modifiers: ModAlt, Pressed: true}
	k.emitInputBytes(&e)

	var got []byte
	for {
		b, ok := k.PopChar()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "\x1Ba" {
		t.Fatalf("emitInputBytes(alt+a) = %q, want %q", got, "\x1Ba")
	}
}

func TestUpdateStateTracksModifiersAndTogglesLocks(t *testing.T) {
	var k Keyboard
	k.Init()

	k.updateState(KeyLeftShift, true)
	if k.modifiers&ModShift == 0 {
		t.Fatal("expected ModShift set after left-shift press")
	}
	k.updateState(KeyLeftShift, false)
	if k.modifiers&ModShift != 0 {
		t.Fatal("expected ModShift cleared after left-shift release")
	}

	k.updateState(KeyCapsLock, true)
	if k.locks&LockCaps == 0 {
		t.Fatal("expected LockCaps set after first caps-lock press")
	}
	k.updateState(KeyCapsLock, true)
	if k.locks&LockCaps != 0 {
		t.Fatal("expected LockCaps cleared after second caps-lock press")
	}
}

func TestEventQueueRoundTrip(t *testing.T) {
	var k Keyboard
	k.Init()

	k.pushEvent(Event{KeyCode: KeyA, Pressed: true})
	e, ok := k.PopEvent()
	if !ok || e.KeyCode != KeyA || !e.Pressed {
		t.Fatalf("PopEvent() = (%+v, %v), want KeyA pressed", e, ok)
	}
	if _, ok := k.PopEvent(); ok {
		t.Fatal("expected event queue to be empty after draining one event")
	}
}

func TestByteQueueDropsOnOverflow(t *testing.T) {
	var k Keyboard
	k.Init()

	for i := 0; i < byteQueueSize+10; i++ {
		k.pushByte('x')
	}
	if k.DroppedBytes() == 0 {
		t.Fatal("expected DroppedBytes() to be nonzero after overflowing the byte queue")
	}
}
