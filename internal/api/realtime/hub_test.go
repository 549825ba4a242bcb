package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/internal/testutil"
)

type fakeMember struct {
	id string

	mtx      sync.Mutex
	received []events.Message[json.RawMessage]
}

func (f *fakeMember) ID() string {
	return f.id
}

func (f *fakeMember) Write(msg events.Message[json.RawMessage]) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.received = append(f.received, msg)

	return nil
}

func (f *fakeMember) count() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	return len(f.received)
}

func TestHubDelivery(t *testing.T) {
	t.Parallel()

	h := NewHub()

	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}
	c := &fakeMember{id: "c"}

	h.Join("student_stu1", a)
	h.Join("students", a)
	h.Join("students", b)
	h.Join("admins", c)

	msg := events.NewMessage(events.EventTypeSystemStatus, events.SystemStatusPayload{AdminsOnline: 1}).ToRaw()

	n := h.SendLocal("students", msg)
	testutil.Assert(t, 2, n, "two members in the group")
	testutil.Assert(t, 1, a.count(), "a got it")
	testutil.Assert(t, 1, b.count(), "b got it")
	testutil.Assert(t, 0, c.count(), "c is in another group")

	n = h.SendLocal("student_stu1", msg)
	testutil.Assert(t, 1, n, "identity group hits one member")
	testutil.Assert(t, 2, a.count(), "a got it twice")
}

func TestHubLeave(t *testing.T) {
	t.Parallel()

	h := NewHub()

	a := &fakeMember{id: "a"}
	b := &fakeMember{id: "b"}

	h.Join("admins", a)
	h.Join("admins", b)
	testutil.Assert(t, 2, h.CountGroup("admins"), "two admins")

	h.Leave("admins", a)
	testutil.Assert(t, 1, h.CountGroup("admins"), "one admin left")

	msg := events.NewMessage(events.EventTypeSystemStatus, events.SystemStatusPayload{}).ToRaw()
	h.SendLocal("admins", msg)
	testutil.Assert(t, 0, a.count(), "departed member gets nothing")
	testutil.Assert(t, 1, b.count(), "remaining member still delivered")

	h.Leave("admins", b)
	testutil.Assert(t, 0, h.CountGroup("admins"), "empty group drops")

	n := h.SendLocal("admins", msg)
	testutil.Assert(t, 0, n, "send to empty group is a no-op")
}

func TestHubSendToUnknownGroup(t *testing.T) {
	t.Parallel()

	h := NewHub()

	msg := events.NewMessage(events.EventTypePong, events.PongPayload{}).ToRaw()
	testutil.Assert(t, 0, h.SendLocal("nobody", msg), "unknown group delivers to no one")
}
