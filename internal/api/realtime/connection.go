package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

// Connection wraps one upgraded socket. All writes go through a mutex since
// the read loop, the hub and timers may emit concurrently, and the underlying
// conn permits one writer at a time.
type Connection struct {
	id       string
	identity model.ConnectionIdentity
	conn     *websocket.Conn

	writeMtx sync.Mutex

	timerMtx sync.Mutex
	timers   map[string]*time.Timer

	closeOnce sync.Once
}

func NewConnection(conn *websocket.Conn, actor model.Party) *Connection {
	id := uuid.NewString()

	return &Connection{
		id: id,
		identity: model.ConnectionIdentity{
			ConnectionID: id,
			Actor:        actor,
		},
		conn:   conn,
		timers: map[string]*time.Timer{},
	}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Actor() model.Party {
	return c.identity.Actor
}

func (c *Connection) Write(msg events.Message[json.RawMessage]) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// SendError reports a rejected action back to this connection only, as a
// chat:error or call:error event depending on the action's domain.
func (c *Connection) SendError(t events.EventType, apiErr errors.APIError, callID string) {
	msg := events.NewMessage(t, events.ErrorPayload{
		Code:   apiErr.Code(),
		Error:  apiErr.Message(),
		CallID: callID,
	})

	_ = c.Write(msg.ToRaw())
}

// RegisterTimer arms a named timer owned by this connection. Re-registering a
// name stops the previous timer first. All registered timers are stopped at
// teardown, so a timer can never outlive its connection.
func (c *Connection) RegisterTimer(name string, d time.Duration, fn func()) {
	c.timerMtx.Lock()
	defer c.timerMtx.Unlock()

	if t, ok := c.timers[name]; ok {
		t.Stop()
	}

	c.timers[name] = time.AfterFunc(d, func() {
		c.timerMtx.Lock()
		delete(c.timers, name)
		c.timerMtx.Unlock()

		fn()
	})
}

func (c *Connection) CancelTimer(name string) {
	c.timerMtx.Lock()
	defer c.timerMtx.Unlock()

	if t, ok := c.timers[name]; ok {
		t.Stop()
		delete(c.timers, name)
	}
}

func (c *Connection) ClearTimers() {
	c.timerMtx.Lock()
	defer c.timerMtx.Unlock()

	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}
}

// Close sends a close frame with the given code and closes the socket. Safe
// to call more than once.
func (c *Connection) Close(code events.CloseCode) {
	c.closeOnce.Do(func() {
		c.writeMtx.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(int(code), code.String()),
			time.Now().Add(time.Second*5),
		)
		c.writeMtx.Unlock()

		_ = c.conn.Close()
	})
}
