// Package session tracks POSIX-style session/controlling-terminal
// relationships over a fixed table, with a single globally active session.
package session

import "github.com/nimbuscore/nimbuskernel/kernel/driver/pty"

const maxSessions = 16

type entry struct {
	inUse          bool
	id             int
	leaderPID      uint32
	controllingPTY int
}

var (
	sessions   [maxSessions]entry
	activeID   = -1
	invalidOps uint64
)

// Init clears every session and deactivates the active session.
func Init() {
	sessions = [maxSessions]entry{}
	activeID = -1
	invalidOps = 0
}

func find(id int) *entry {
	for i := range sessions {
		if sessions[i].inUse && sessions[i].id == id {
			return &sessions[i]
		}
	}
	return nil
}

// Create allocates a new session for leaderPID and returns its id (1-based),
// or -1 if the table is full.
func Create(leaderPID uint32) int {
	for i := range sessions {
		if !sessions[i].inUse {
			sessions[i] = entry{
				inUse:          true,
				id:             i + 1,
				leaderPID:      leaderPID,
				controllingPTY: -1,
			}
			return sessions[i].id
		}
	}
	invalidOps++
	return -1
}

// SetControllingPTY binds ptyID as sessionID's controlling terminal.
func SetControllingPTY(sessionID, ptyID int) bool {
	e := find(sessionID)
	if e == nil || !pty.IsValid(ptyID) {
		invalidOps++
		return false
	}
	e.controllingPTY = ptyID
	return true
}

// SetActive elects sessionID as the foreground session.
func SetActive(sessionID int) bool {
	if find(sessionID) == nil {
		invalidOps++
		return false
	}
	activeID = sessionID
	return true
}

// ActiveID returns the currently active session id, or -1 if none.
func ActiveID() int { return activeID }

// ActivePTY returns the active session's controlling PTY, or -1 if there is
// no active session.
func ActivePTY() int {
	e := find(activeID)
	if e == nil {
		return -1
	}
	return e.controllingPTY
}

// InvalidOps returns the cumulative count of rejected operations.
func InvalidOps() uint64 { return invalidOps }
