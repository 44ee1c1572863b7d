// Package console implements the embedded VT100/CSI subset parser together
// with its two cell-grid backends (VGA text mode and a 32-bpp linear
// framebuffer). Every byte written to the active Console passes through the
// parser, which also mirrors it to the serial port.
package console

// Backend is the tagged-variant interface implemented by Vga and
// Framebuffer. The parser drives either one identically.
type Backend interface {
	Dimensions() (cols, rows int)
	PutCell(row, col int, ch byte, color uint8)
	ScrollUp(color uint8)
}

type parserState uint8

const (
	stateGround parserState = iota
	stateEsc
	stateCsi
)

const maxParams = 8

const (
	defaultFg = 15 // bright white
	defaultBg = 0  // black
)

// ansiBaseToVGA maps the 8 ANSI base colors (0-7) onto VGA palette indices.
var ansiBaseToVGA = [8]uint8{0, 4, 2, 6, 1, 5, 3, 7}

// Console is the singleton VT100 parser bound to one Backend.
type Console struct {
	backend Backend
	cols    int
	rows    int

	row, col           int
	savedRow, savedCol int

	fg, bg uint8

	state        parserState
	params       [maxParams]int
	paramCount   int
	paramCur     int
	paramActive  bool

	utf8Codepoint uint32
	utf8Needed    uint8
	utf8Total     uint8

	serial serialPort
}

var active Console

// Active returns the process-wide console singleton.
func Active() *Console { return &active }

// Attach binds backend as the active rendering surface and clears it.
func (c *Console) Attach(backend Backend) {
	c.backend = backend
	c.cols, c.rows = backend.Dimensions()
	c.Clear()
}

// Backend returns the currently attached backend, or nil if none.
func (c *Console) Backend() Backend { return c.backend }

func (c *Console) color() uint8 {
	return (c.bg << 4) | (c.fg & 0x0F)
}

// Clear resets parser and cursor state and blanks every cell.
func (c *Console) Clear() {
	c.fg, c.bg = defaultFg, defaultBg
	c.state = stateGround
	c.resetParams()
	c.utf8Codepoint, c.utf8Needed, c.utf8Total = 0, 0, 0

	if c.backend != nil {
		color := c.color()
		for y := 0; y < c.rows; y++ {
			for x := 0; x < c.cols; x++ {
				c.backend.PutCell(y, x, ' ', color)
			}
		}
	}

	c.row, c.col = 0, 0
	c.savedRow, c.savedCol = 0, 0
}

// InitSerial programs COM1 for 115200-8N1.
func (c *Console) InitSerial() {
	c.serial.init()
}

// WriteByte feeds one byte through the VT parser, mirroring it (with a CR
// inserted before any LF) to the serial port first.
func (c *Console) WriteByte(b byte) {
	if b == '\n' {
		c.serial.writeByte('\r')
	}
	c.serial.writeByte(b)

	switch c.state {
	case stateGround:
		c.handleGround(b)
	case stateEsc:
		if b == '[' {
			c.state = stateCsi
			c.resetParams()
			return
		}
		c.state = stateGround
		c.handleGround(b)
	case stateCsi:
		c.handleCsi(b)
	}
}

// Write writes every byte of p through WriteByte.
func (c *Console) Write(p []byte) (int, error) {
	for _, b := range p {
		c.WriteByte(b)
	}
	return len(p), nil
}

func (c *Console) handleGround(b byte) {
	if c.utf8Needed != 0 && b < 0x80 {
		c.utf8Needed, c.utf8Total, c.utf8Codepoint = 0, 0, 0
		c.emitCodepoint('?')
	}
	switch {
	case b == 0x1B:
		c.state = stateEsc
	case b == '\n':
		c.newline()
	case b == '\r':
		c.col = 0
	case b == '\b':
		c.backspace()
	case b == '\t':
		spaces := 4 - (c.col % 4)
		for i := 0; i < spaces; i++ {
			c.putVisible(' ')
		}
	case b < 0x20:
		// drop other control characters
	case b < 0x80:
		c.putVisible(b)
	default:
		c.consumeUTF8(b)
	}
}

func (c *Console) putVisible(ch byte) {
	if c.backend == nil {
		return
	}
	c.backend.PutCell(c.row, c.col, ch, c.color())
	c.col++
	if c.col >= c.cols {
		c.col = 0
		c.row++
	}
	c.scrollIfNeeded()
}

func (c *Console) newline() {
	c.col = 0
	c.row++
	c.scrollIfNeeded()
}

func (c *Console) scrollIfNeeded() {
	if c.row < c.rows {
		return
	}
	if c.backend != nil {
		c.backend.ScrollUp(c.color())
	}
	c.row = c.rows - 1
}

func (c *Console) backspace() {
	if c.col == 0 && c.row == 0 {
		return
	}
	if c.col == 0 {
		c.row--
		c.col = c.cols - 1
	} else {
		c.col--
	}
	if c.backend != nil {
		c.backend.PutCell(c.row, c.col, ' ', c.color())
	}
}

func (c *Console) clearLineRange(row, colStart, colEnd int) {
	if c.backend == nil || row < 0 || row >= c.rows {
		return
	}
	if colStart >= c.cols {
		colStart = c.cols - 1
	}
	if colEnd >= c.cols {
		colEnd = c.cols - 1
	}
	for x := colStart; x <= colEnd; x++ {
		c.backend.PutCell(row, x, ' ', c.color())
	}
}

// emitCodepoint renders a decoded scalar, falling back to '?' for anything
// outside 7-bit ASCII since the built-in font only covers that range.
func (c *Console) emitCodepoint(cp uint32) {
	if cp == 0 {
		return
	}
	if cp <= 0x7F {
		c.putVisible(byte(cp))
		return
	}
	c.putVisible('?')
}

func (c *Console) consumeUTF8(b byte) {
	if c.utf8Needed == 0 {
		switch {
		case b&0xE0 == 0xC0:
			c.utf8Codepoint = uint32(b & 0x1F)
			c.utf8Needed, c.utf8Total = 1, 1
		case b&0xF0 == 0xE0:
			c.utf8Codepoint = uint32(b & 0x0F)
			c.utf8Needed, c.utf8Total = 2, 2
		case b&0xF8 == 0xF0:
			c.utf8Codepoint = uint32(b & 0x07)
			c.utf8Needed, c.utf8Total = 3, 3
		default:
			c.emitCodepoint('?')
		}
		return
	}

	if b&0xC0 != 0x80 {
		c.utf8Needed, c.utf8Total, c.utf8Codepoint = 0, 0, 0
		c.emitCodepoint('?')
		return
	}

	c.utf8Codepoint = (c.utf8Codepoint << 6) | uint32(b&0x3F)
	c.utf8Needed--
	if c.utf8Needed != 0 {
		return
	}

	cp := c.utf8Codepoint
	valid := true
	switch {
	case c.utf8Total == 1 && cp < 0x80:
		valid = false
	case c.utf8Total == 2 && cp < 0x800:
		valid = false
	case c.utf8Total == 3 && cp < 0x10000:
		valid = false
	}
	if cp > 0x10FFFF || (cp >= 0xD800 && cp <= 0xDFFF) {
		valid = false
	}

	c.utf8Total, c.utf8Codepoint = 0, 0
	if valid {
		c.emitCodepoint(cp)
	} else {
		c.emitCodepoint('?')
	}
}

func (c *Console) resetParams() {
	c.paramCount, c.paramCur, c.paramActive = 0, 0, false
}

func (c *Console) pushParam() {
	if !c.paramActive && c.paramCount == 0 {
		return
	}
	if c.paramCount < maxParams {
		v := 0
		if c.paramActive {
			v = c.paramCur
		}
		c.params[c.paramCount] = v
		c.paramCount++
	}
	c.paramCur, c.paramActive = 0, false
}

func (c *Console) paramAt(i, fallback int) int {
	if i >= c.paramCount {
		return fallback
	}
	return c.params[i]
}

func (c *Console) handleCsi(b byte) {
	switch {
	case b >= '0' && b <= '9':
		c.paramCur = c.paramCur*10 + int(b-'0')
		c.paramActive = true
	case b == ';':
		c.pushParam()
	case b >= 0x40 && b <= 0x7E:
		c.pushParam()
		c.executeCSI(b)
		c.state = stateGround
		c.resetParams()
	default:
		c.state = stateGround
	}
}

func ansiColorToVGA(ansiColor uint8, bright bool) uint8 {
	vga := ansiBaseToVGA[ansiColor&0x7]
	if bright && vga < 8 {
		vga += 8
	}
	return vga
}

func (c *Console) applySGR(code int) {
	switch {
	case code == 0:
		c.fg, c.bg = defaultFg, defaultBg
	case code == 1:
		if c.fg < 8 {
			c.fg += 8
		}
	case code == 22:
		if c.fg >= 8 {
			c.fg -= 8
		}
	case code >= 30 && code <= 37:
		c.fg = ansiColorToVGA(uint8(code-30), false)
	case code >= 90 && code <= 97:
		c.fg = ansiColorToVGA(uint8(code-90), true)
	case code == 39:
		c.fg = defaultFg
	case code >= 40 && code <= 47:
		c.bg = ansiColorToVGA(uint8(code-40), false)
	case code >= 100 && code <= 107:
		c.bg = ansiColorToVGA(uint8(code-100), true)
	case code == 49:
		c.bg = defaultBg
	}
}

func (c *Console) executeCSI(final byte) {
	switch final {
	case 'm':
		if c.paramCount == 0 {
			c.applySGR(0)
			return
		}
		for i := 0; i < c.paramCount; i++ {
			c.applySGR(c.params[i])
		}
		return
	case 'H', 'f':
		row := c.paramAt(0, 1) - 1
		col := c.paramAt(1, 1) - 1
		if row < 0 {
			row = 0
		}
		if row >= c.rows {
			row = c.rows - 1
		}
		if col < 0 {
			col = 0
		}
		if col >= c.cols {
			col = c.cols - 1
		}
		c.row, c.col = row, col
		return
	}

	n := c.paramAt(0, 1)
	if n < 1 {
		n = 1
	}

	switch final {
	case 'A':
		c.row -= n
		if c.row < 0 {
			c.row = 0
		}
	case 'B':
		c.row += n
		if c.row >= c.rows {
			c.row = c.rows - 1
		}
	case 'C':
		c.col += n
		if c.col >= c.cols {
			c.col = c.cols - 1
		}
	case 'D':
		c.col -= n
		if c.col < 0 {
			c.col = 0
		}
	case 'J':
		mode := c.paramAt(0, 0)
		switch mode {
		case 2:
			c.Clear()
		case 0:
			c.clearLineRange(c.row, c.col, c.cols-1)
			for y := c.row + 1; y < c.rows; y++ {
				c.clearLineRange(y, 0, c.cols-1)
			}
		case 1:
			for y := 0; y < c.row; y++ {
				c.clearLineRange(y, 0, c.cols-1)
			}
			c.clearLineRange(c.row, 0, c.col)
		}
	case 'K':
		mode := c.paramAt(0, 0)
		switch mode {
		case 0:
			c.clearLineRange(c.row, c.col, c.cols-1)
		case 1:
			c.clearLineRange(c.row, 0, c.col)
		case 2:
			c.clearLineRange(c.row, 0, c.cols-1)
		}
	case 's':
		c.savedRow, c.savedCol = c.row, c.col
	case 'u':
		c.row, c.col = c.savedRow, c.savedCol
		if c.row >= c.rows {
			c.row = c.rows - 1
		}
		if c.col >= c.cols {
			c.col = c.cols - 1
		}
	}
}

// CursorPosition returns the current (row, col), mainly for tests.
func (c *Console) CursorPosition() (row, col int) { return c.row, c.col }
