package console

import "testing"

// fakeBackend is a cell-grid double that records writes without touching any
// hardware, letting the VT100 parser be exercised in a hosted test binary.
type fakeBackend struct {
	cols, rows int
	cells      [][]byte
	colors     [][]uint8
	scrolls    int
}

func newFakeBackend(cols, rows int) *fakeBackend {
	b := &fakeBackend{cols: cols, rows: rows}
	b.cells = make([][]byte, rows)
	b.colors = make([][]uint8, rows)
	for y := range b.cells {
		b.cells[y] = make([]byte, cols)
		b.colors[y] = make([]uint8, cols)
	}
	return b
}

func (b *fakeBackend) Dimensions() (int, int) { return b.cols, b.rows }

func (b *fakeBackend) PutCell(row, col int, ch byte, color uint8) {
	b.cells[row][col] = ch
	b.colors[row][col] = color
}

func (b *fakeBackend) ScrollUp(color uint8) {
	b.scrolls++
	for y := 0; y < b.rows-1; y++ {
		copy(b.cells[y], b.cells[y+1])
		copy(b.colors[y], b.colors[y+1])
	}
	last := b.rows - 1
	for x := range b.cells[last] {
		b.cells[last][x] = ' '
		b.colors[last][x] = color
	}
}

func freshConsole(cols, rows int) (*Console, *fakeBackend) {
	c := Active()
	*c = Console{}
	backend := newFakeBackend(cols, rows)
	c.Attach(backend)
	return c, backend
}

func TestWritePlacesCharactersAndAdvancesCursor(t *testing.T) {
	c, backend := freshConsole(10, 5)

	c.Write([]byte("hi"))

	if backend.cells[0][0] != 'h' || backend.cells[0][1] != 'i' {
		t.Fatalf("backend cells = %q, want h,i", backend.cells[0][:2])
	}
	row, col := c.CursorPosition()
	if row != 0 || col != 2 {
		t.Fatalf("CursorPosition() = (%d,%d), want (0,2)", row, col)
	}
}

func TestNewlineMovesToNextRowColumnZero(t *testing.T) {
	c, _ := freshConsole(10, 5)

	c.Write([]byte("ab\ncd"))

	row, col := c.CursorPosition()
	if row != 1 || col != 2 {
		t.Fatalf("CursorPosition() = (%d,%d), want (1,2)", row, col)
	}
}

func TestLineWrapAtColumnBoundary(t *testing.T) {
	c, _ := freshConsole(4, 5)

	c.Write([]byte("abcd"))

	row, col := c.CursorPosition()
	if row != 1 || col != 0 {
		t.Fatalf("CursorPosition() after filling a row = (%d,%d), want (1,0)", row, col)
	}
}

func TestScrollsWhenPastLastRow(t *testing.T) {
	c, backend := freshConsole(4, 2)

	c.Write([]byte("aaaa"))
	c.Write([]byte("bbbb"))
	c.Write([]byte("cccc"))

	if backend.scrolls == 0 {
		t.Fatal("expected at least one scroll once output exceeds the visible rows")
	}
	row, _ := c.CursorPosition()
	if row != 1 {
		t.Fatalf("CursorPosition() row after scrolling = %d, want 1 (clamped to last row)", row)
	}
}

func TestCsiCursorMotionClampsToBounds(t *testing.T) {
	c, _ := freshConsole(10, 10)

	c.Write([]byte("\x1B[5;5H")) // absolute position row5 col5 (1-based)
	if row, col := c.CursorPosition(); row != 4 || col != 4 {
		t.Fatalf("CursorPosition() after CUP = (%d,%d), want (4,4)", row, col)
	}

	c.Write([]byte("\x1B[100A")) // cursor up past top clamps to 0
	if row, _ := c.CursorPosition(); row != 0 {
		t.Fatalf("CursorPosition() row after clamped CUU = %d, want 0", row)
	}

	c.Write([]byte("\x1B[100D")) // cursor left past start clamps to 0
	if _, col := c.CursorPosition(); col != 0 {
		t.Fatalf("CursorPosition() col after clamped CUB = %d, want 0", col)
	}
}

func TestCsiSaveRestoreCursor(t *testing.T) {
	c, _ := freshConsole(10, 10)

	c.Write([]byte("\x1B[3;3H\x1B[s"))
	c.Write([]byte("\x1B[8;8H"))
	c.Write([]byte("\x1B[u"))

	if row, col := c.CursorPosition(); row != 2 || col != 2 {
		t.Fatalf("CursorPosition() after restore = (%d,%d), want (2,2)", row, col)
	}
}

func TestCsiEraseLineClearsFromCursor(t *testing.T) {
	c, backend := freshConsole(5, 3)

	c.Write([]byte("abcde"))
	c.Write([]byte("\x1B[1;3H")) // row1 col3 (1-based) -> row0 col2
	c.Write([]byte("\x1B[K"))    // erase from cursor to end of line

	if backend.cells[0][0] != 'a' || backend.cells[0][1] != 'b' {
		t.Fatalf("cells before the cursor should survive an erase-to-end: got %q %q", backend.cells[0][0], backend.cells[0][1])
	}
	if backend.cells[0][2] != ' ' || backend.cells[0][4] != ' ' {
		t.Fatalf("cells from the cursor onward should be blanked: %q", backend.cells[0][2:5])
	}
}

func TestSGRResetRestoresDefaultColors(t *testing.T) {
	c, backend := freshConsole(10, 5)

	c.Write([]byte("\x1B[31m")) // red foreground
	c.Write([]byte("x"))
	redColor := backend.colors[0][0]

	c.Write([]byte("\x1B[0m")) // reset
	c.Write([]byte("y"))
	resetColor := backend.colors[0][1]

	if redColor == resetColor {
		t.Fatal("expected SGR 31 to change the rendered color relative to the post-reset color")
	}
}

func TestValidMultibyteUTF8RendersQuestionMark(t *testing.T) {
	c, backend := freshConsole(10, 5)

	c.Write([]byte{0xC3, 0xA9}) // é, valid 2-byte UTF-8, outside the 7-bit font

	if backend.cells[0][0] != '?' {
		t.Fatalf("cell after valid non-ASCII UTF-8 = %q, want '?'", backend.cells[0][0])
	}
}

func TestInvalidUTF8RendersQuestionMark(t *testing.T) {
	c, backend := freshConsole(10, 5)

	c.Write([]byte{0xC0, 0x20}) // invalid continuation byte
	if backend.cells[0][0] != '?' {
		t.Fatalf("cell after invalid UTF-8 = %q, want '?'", backend.cells[0][0])
	}
}

func TestClearBlanksEveryCell(t *testing.T) {
	c, backend := freshConsole(4, 4)

	c.Write([]byte("abcd"))
	c.Clear()

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if backend.cells[y][x] != ' ' {
				t.Fatalf("cell (%d,%d) after Clear() = %q, want blank", y, x, backend.cells[y][x])
			}
		}
	}
	row, col := c.CursorPosition()
	if row != 0 || col != 0 {
		t.Fatalf("CursorPosition() after Clear() = (%d,%d), want (0,0)", row, col)
	}
}
