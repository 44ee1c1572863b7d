package session

import (
	"testing"

	"github.com/nimbuscore/nimbuskernel/kernel/driver/pty"
)

func TestCreateAssignsSequentialIDs(t *testing.T) {
	pty.Init()
	Init()

	a := Create(100)
	b := Create(200)
	if a != 1 || b != 2 {
		t.Fatalf("Create() returned (%d, %d), want (1, 2)", a, b)
	}
}

func TestCreateExhaustion(t *testing.T) {
	pty.Init()
	Init()

	for i := 0; i < maxSessions; i++ {
		if Create(uint32(i)) < 0 {
			t.Fatalf("Create() failed before the table was full (iteration %d)", i)
		}
	}
	if Create(999) != -1 {
		t.Fatal("Create() on a full table should return -1")
	}
}

func TestSetControllingPTYRequiresValidPTY(t *testing.T) {
	pty.Init()
	Init()

	sid := Create(1)
	if SetControllingPTY(sid, 0) {
		t.Fatal("SetControllingPTY() with no allocated pty should fail")
	}

	id := pty.Alloc()
	if !SetControllingPTY(sid, id) {
		t.Fatal("SetControllingPTY() with a valid pty should succeed")
	}
}

func TestSetActiveAndActivePTY(t *testing.T) {
	pty.Init()
	Init()

	sid := Create(1)
	id := pty.Alloc()
	SetControllingPTY(sid, id)

	if ActivePTY() != -1 {
		t.Fatalf("ActivePTY() before SetActive() = %d, want -1", ActivePTY())
	}

	if !SetActive(sid) {
		t.Fatal("SetActive() on a valid session should succeed")
	}
	if ActiveID() != sid {
		t.Fatalf("ActiveID() = %d, want %d", ActiveID(), sid)
	}
	if ActivePTY() != id {
		t.Fatalf("ActivePTY() = %d, want %d", ActivePTY(), id)
	}
}

func TestSetActiveRejectsUnknownSession(t *testing.T) {
	pty.Init()
	Init()

	before := InvalidOps()
	if SetActive(42) {
		t.Fatal("SetActive() on an unknown session should fail")
	}
	if InvalidOps() != before+1 {
		t.Fatalf("InvalidOps() = %d, want %d", InvalidOps(), before+1)
	}
}
