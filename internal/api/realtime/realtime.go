package realtime

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/internal/constant"
	"github.com/deskhive/api/internal/global"
	"github.com/fasthttp/router"
	"github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type GatewayServer struct {
	listener net.Listener
	router   *router.Router
	hub      *Hub

	startedAt time.Time
}

// New binds the realtime gateway and serves until the global context is
// canceled. Blocking; run it as the process's main server loop.
func New(gCtx global.Context) error {
	var err error

	port := gCtx.Config().Http.Ports.Gateway
	if port == 0 {
		port = 80
	}

	s := GatewayServer{
		hub:       NewHub(),
		startedAt: time.Now(),
	}

	s.listener, err = net.Listen(gCtx.Config().Http.Type, fmt.Sprintf("%s:%d", gCtx.Config().Http.Addr, port))
	if err != nil {
		return err
	}

	s.router = router.New()
	s.router.GET("/v1/gateway", func(ctx *fasthttp.RequestCtx) {
		s.upgrade(gCtx, ctx)
	})

	go s.hub.Run(gCtx)
	go s.systemStatusLoop(gCtx)

	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			defer func() {
				if err := recover(); err != nil {
					zap.S().Errorw("panic in gateway request handler",
						"panic", err,
						"duration", time.Since(start)/time.Millisecond,
						"path", string(ctx.Path()),
					)
				}
			}()

			s.router.Handler(ctx)
		},
		ReadTimeout:     time.Second * 600,
		IdleTimeout:     time.Second * 10,
		LogAllErrors:    true,
		CloseOnShutdown: true,
	}

	go func() {
		<-gCtx.Done()
		_ = srv.Shutdown()
	}()

	return srv.Serve(s.listener)
}

var upgrader = websocket.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true
	},
}

// upgrade is the gatekeeper: the credential is verified before the socket is
// upgraded, so an unauthenticated client never holds a websocket at all.
func (s *GatewayServer) upgrade(gCtx global.Context, ctx *fasthttp.RequestCtx) {
	token := string(ctx.QueryArgs().Peek("token"))
	if token == "" {
		token = strings.TrimPrefix(string(ctx.Request.Header.Peek("Authorization")), "Bearer ")
	}

	actor, apiErr := gCtx.Inst().Auth.Identify(token)
	if apiErr != nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(`{"error":"` + apiErr.Message() + `"}`)

		return
	}

	clientIP := ctx.RemoteIP().String()

	err := upgrader.Upgrade(ctx, func(ws *websocket.Conn) {
		conn := NewConnection(ws, actor)

		cCtx := global.WithValue(gCtx, constant.SessionID, conn.ID())
		cCtx = global.WithValue(cCtx, constant.ClientIP, clientIP)

		s.attach(cCtx, conn)
		defer s.teardown(cCtx, conn)

		conn.readLoop(cCtx)
	})
	if err != nil {
		zap.S().Warnw("failed to upgrade gateway connection",
			"error", err,
			"actor", actor.Tag(),
		)
	}
}

// attach registers the connection with its groups, marks the party online and
// confirms the session to the client.
func (s *GatewayServer) attach(gCtx global.Context, conn *Connection) {
	actor := conn.Actor()

	s.hub.Join(actor.Group(), conn)
	s.hub.Join(actor.UserKind.BlanketGroup(), conn)

	gCtx.Inst().Prometheus.ConnectionsOpen().Inc()
	gCtx.Inst().Presence.SetOnline(gCtx, actor)

	_ = conn.Write(events.NewMessage(events.EventTypeConnected, events.ConnectedPayload{
		SessionID: conn.ID(),
		UserID:    actor.UserID,
		UserKind:  actor.UserKind,
	}).ToRaw())

	zap.S().Infow("gateway connection opened",
		"session_id", conn.ID(),
		"actor", actor.Tag(),
	)
}

// systemStatusLoop periodically reports a small operational snapshot to the
// admins connected to this process.
func (s *GatewayServer) systemStatusLoop(gCtx global.Context) {
	interval := time.Duration(gCtx.Config().Realtime.SystemStatusIntervalSeconds) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-gCtx.Done():
			return
		case <-ticker.C:
			s.hub.SendLocal("admins", events.NewMessage(events.EventTypeSystemStatus, events.SystemStatusPayload{
				AdminsOnline:  s.hub.CountGroup("admins"),
				UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
			}).ToRaw())
		}
	}
}
