// Package editor implements a small line-oriented text buffer editor, the
// kind wired behind a single interactive command: open, insert/backspace,
// arrow-key motion that preserves column across lines, and a save/exit
// handshake that guards against silently discarding unsaved work.
package editor

import "github.com/nimbuscore/nimbuskernel/kernel/fs"

const (
	textCap   = 4096
	pathCap   = 128
	statusCap = 96
)

type escapeState int

const (
	escapeNone escapeState = iota
	escapeGotESC
	escapeGotBracket
)

// State holds one editor buffer. The zero value is inactive; use Open to
// begin editing a file. The text buffer is a fixed array with an explicit
// length, not a growable slice: this package never allocates.
type State struct {
	path    string
	status  string
	text    [textCap]byte
	textLen int
	cursor  int

	active        bool
	dirty         bool
	discardArmed  bool
	saveRequested bool
	exitRequested bool
	esc           escapeState
}

func clampString(s string, cap int) string {
	if len(s) > cap-1 {
		return s[:cap-1]
	}
	return s
}

// SetStatus overwrites the status line shown to the user.
func (st *State) SetStatus(msg string) {
	st.status = clampString(msg, statusCap)
}

// Status returns the current status line.
func (st *State) Status() string { return st.status }

// Active reports whether a file is currently open for editing.
func (st *State) Active() bool { return st.active }

// Dirty reports whether the buffer has unsaved changes.
func (st *State) Dirty() bool { return st.dirty }

// Path returns the path of the file currently open, if any.
func (st *State) Path() string { return st.path }

// Text returns a view of the buffer content, aliasing st's internal
// storage. It is valid until the next mutating call on st.
func (st *State) Text() []byte { return st.text[:st.textLen] }

// Cursor returns the current cursor offset into Text().
func (st *State) Cursor() int { return st.cursor }

func lineStart(text []byte, pos int) int {
	for pos > 0 && text[pos-1] != '\n' {
		pos--
	}
	return pos
}

func lineEnd(text []byte, pos int) int {
	for pos < len(text) && text[pos] != '\n' {
		pos++
	}
	return pos
}

func (st *State) insertByte(b byte) {
	if st.textLen+1 >= textCap {
		st.SetStatus("buffer full")
		return
	}
	copy(st.text[st.cursor+1:st.textLen+1], st.text[st.cursor:st.textLen])
	st.text[st.cursor] = b
	st.textLen++
	st.cursor++
	st.dirty = true
	st.discardArmed = false
}

func (st *State) backspace() {
	if st.cursor == 0 {
		return
	}
	copy(st.text[st.cursor-1:st.textLen-1], st.text[st.cursor:st.textLen])
	st.textLen--
	st.cursor--
	st.dirty = true
	st.discardArmed = false
}

func (st *State) moveLeft() {
	if st.cursor > 0 {
		st.cursor--
	}
}

func (st *State) moveRight() {
	if st.cursor < st.textLen {
		st.cursor++
	}
}

func (st *State) moveUp() {
	text := st.text[:st.textLen]
	if st.cursor > st.textLen {
		st.cursor = st.textLen
	}
	curStart := lineStart(text, st.cursor)
	if curStart == 0 {
		return
	}

	col := st.cursor - curStart
	prevEnd := curStart - 1
	prevStart := lineStart(text, prevEnd)
	prevLen := prevEnd - prevStart
	if col > prevLen {
		col = prevLen
	}
	st.cursor = prevStart + col
}

func (st *State) moveDown() {
	text := st.text[:st.textLen]
	if st.cursor > st.textLen {
		st.cursor = st.textLen
	}
	curStart := lineStart(text, st.cursor)
	curEnd := lineEnd(text, curStart)
	if curEnd >= st.textLen {
		return
	}

	col := st.cursor - curStart
	nextStart := curEnd + 1
	nextEnd := lineEnd(text, nextStart)
	nextLen := nextEnd - nextStart
	if col > nextLen {
		col = nextLen
	}
	st.cursor = nextStart + col
}

// Init clears st back to its zero, inactive state.
func (st *State) Init() {
	*st = State{}
}

// Open loads path's content (treating fs.ErrNotFound as an empty new file)
// and activates the buffer. It returns false with the underlying fs.Status
// on any other failure.
func (st *State) Open(path string) (fs.Status, bool) {
	if path == "" {
		return fs.ErrInvalid, false
	}
	if len(path) >= pathCap {
		return fs.ErrNoSpace, false
	}

	st.Init()

	data, status := fs.Read(path)
	if status == fs.ErrNotFound {
		data, status = nil, fs.Ok
	} else if status != fs.Ok {
		return status, false
	}
	if len(data) > textCap {
		return fs.ErrNoSpace, false
	}

	st.path = path
	st.textLen = copy(st.text[:], data)
	st.cursor = st.textLen
	st.active = true
	st.SetStatus("Ctrl+O save  Ctrl+X exit  arrows move")
	return fs.Ok, true
}

// HandleInput feeds one byte of raw terminal input into the editor: VT100
// arrow-key escapes move the cursor, Ctrl+O arms a save request, Ctrl+X
// requests exit (or, with unsaved changes, arms a discard confirmation that
// a second Ctrl+X must confirm), and everything else is inserted.
func (st *State) HandleInput(b byte) {
	if !st.active {
		return
	}

	switch st.esc {
	case escapeGotESC:
		if b == '[' {
			st.esc = escapeGotBracket
			return
		}
		st.esc = escapeNone
	case escapeGotBracket:
		switch b {
		case 'A':
			st.moveUp()
		case 'B':
			st.moveDown()
		case 'C':
			st.moveRight()
		case 'D':
			st.moveLeft()
		}
		st.esc = escapeNone
		return
	}

	switch {
	case b == 0x1B:
		st.esc = escapeGotESC
		return
	case b == 0x0F: // Ctrl-O
		st.saveRequested = true
		st.discardArmed = false
		return
	case b == 0x18: // Ctrl-X
		if st.dirty && !st.discardArmed {
			st.discardArmed = true
			st.SetStatus("unsaved changes: Ctrl+O save, Ctrl+X again to discard")
			return
		}
		st.exitRequested = true
		return
	case b == '\b' || b == 0x7F:
		st.backspace()
		return
	}

	if b == '\r' {
		b = '\n'
	}
	if b == '\n' || b == '\t' || b >= 0x20 {
		st.insertByte(b)
	}
}

// TakeSaveRequest reports and clears whether Ctrl+O was pressed since the
// last call.
func (st *State) TakeSaveRequest() bool {
	r := st.saveRequested
	st.saveRequested = false
	return r
}

// TakeExitRequest reports and clears whether exit was confirmed since the
// last call.
func (st *State) TakeExitRequest() bool {
	r := st.exitRequested
	st.exitRequested = false
	return r
}

// Save writes the buffer back to its open path.
func (st *State) Save() fs.Status {
	if !st.active || st.path == "" {
		return fs.ErrInvalid
	}

	status := fs.Write(st.path, st.text[:st.textLen], false)
	if status == fs.Ok {
		st.dirty = false
		st.discardArmed = false
		st.SetStatus("saved")
	} else {
		st.SetStatus("save failed")
	}
	return status
}
