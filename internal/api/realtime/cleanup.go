package realtime

import (
	"github.com/deskhive/api/internal/global"
	"go.uber.org/zap"
)

// teardown runs once per connection, in a fixed order: stop receiving fanout
// first, then kill timers, then sweep state other users can observe. Each
// step is independent, so a failing one never blocks the rest.
func (s *GatewayServer) teardown(gCtx global.Context, conn *Connection) {
	actor := conn.Actor()

	s.hub.Leave(actor.Group(), conn)
	s.hub.Leave(actor.UserKind.BlanketGroup(), conn)

	conn.ClearTimers()

	// Another device of the same user on this process keeps the shared state
	// alive; only the last connection sweeps it.
	if s.hub.CountGroup(actor.Group()) == 0 {
		gCtx.Inst().Calls.EndForParticipant(gCtx, actor)
		gCtx.Inst().Chat.ClearActiveConversation(gCtx, actor)
		gCtx.Inst().Presence.SetOffline(gCtx, actor)
	}

	gCtx.Inst().Prometheus.ConnectionsOpen().Dec()

	zap.S().Infow("gateway connection closed",
		"session_id", conn.ID(),
		"actor", actor.Tag(),
	)
}
