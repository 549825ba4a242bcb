package realtime

import (
	"encoding/json"
	"sync"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/internal/global"
	"go.uber.org/zap"
)

// member is a deliverable endpoint of a group. *Connection satisfies it.
type member interface {
	ID() string
	Write(msg events.Message[json.RawMessage]) error
}

// Hub routes fanout dispatches to the members this process holds. Group
// membership is purely local; the cross-process half of delivery is the
// ephemeral store's pub/sub channel that Run consumes.
type Hub struct {
	mtx    sync.RWMutex
	groups map[string]map[string]member
}

func NewHub() *Hub {
	return &Hub{
		groups: map[string]map[string]member{},
	}
}

func (h *Hub) Join(group string, m member) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	g, ok := h.groups[group]
	if !ok {
		g = map[string]member{}
		h.groups[group] = g
	}

	g[m.ID()] = m
}

func (h *Hub) Leave(group string, m member) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if g, ok := h.groups[group]; ok {
		delete(g, m.ID())

		if len(g) == 0 {
			delete(h.groups, group)
		}
	}
}

// SendLocal writes the message to every member of the group on this process.
func (h *Hub) SendLocal(group string, msg events.Message[json.RawMessage]) int {
	h.mtx.RLock()
	members := make([]member, 0, len(h.groups[group]))

	for _, m := range h.groups[group] {
		members = append(members, m)
	}
	h.mtx.RUnlock()

	for _, m := range members {
		if err := m.Write(msg); err != nil {
			zap.S().Debugw("failed to write to member",
				"error", err,
				"group", group,
				"member_id", m.ID(),
			)
		}
	}

	return len(members)
}

func (h *Hub) CountGroup(group string) int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	return len(h.groups[group])
}

// Run consumes the fanout subscription until the context is done. Every
// process runs exactly one of these.
func (h *Hub) Run(gCtx global.Context) {
	ch := make(chan events.Dispatch, 128)
	go gCtx.Inst().Events.Subscribe(gCtx, ch)

	for {
		select {
		case <-gCtx.Done():
			return
		case d := <-ch:
			n := h.SendLocal(d.Group, d.Message)
			if n > 0 {
				gCtx.Inst().Prometheus.EventsDispatched().Add(float64(n))
			}
		}
	}
}
