package realtime

import (
	"encoding/json"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/global"
	"github.com/fasthttp/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	heartbeatInterval = time.Second * 30
	readTimeout       = heartbeatInterval * 2
)

// readLoop consumes client events until the socket dies or the server shuts
// down. Each event is handled inline behind a recover boundary, so a handler
// panic downs one connection, not the process.
func (c *Connection) readLoop(gCtx global.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	lCtx, cancel := global.WithCancel(gCtx)
	defer cancel()

	go c.heartbeat(lCtx)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		msg := events.Message[json.RawMessage]{}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Close(events.CloseCodeInvalidPayload)

			return
		}

		if !c.handle(gCtx, msg) {
			return
		}
	}
}

func (c *Connection) heartbeat(gCtx global.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gCtx.Done():
			return
		case <-ticker.C:
			c.writeMtx.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second*5))
			c.writeMtx.Unlock()

			if err != nil {
				return
			}
		}
	}
}

// handle routes one client event. Returns false when the connection should
// close.
func (c *Connection) handle(gCtx global.Context, msg events.Message[json.RawMessage]) (ok bool) {
	ok = true

	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("panic in event handler",
				"panic", r,
				"event", msg.Type,
				"session_id", c.ID(),
			)

			c.Close(events.CloseCodeServerError)

			ok = false
		}
	}()

	actor := c.Actor()

	switch msg.Type {
	case events.EventTypePing:
		_ = c.Write(events.NewMessage(events.EventTypePong, events.PongPayload{
			ServerTime: time.Now().UnixMilli(),
		}).ToRaw())

	case events.EventTypeChatSend:
		p, err := events.ConvertMessage[events.ChatSendPayload](msg)
		if err != nil {
			c.SendError(events.EventTypeChatError, errors.ErrInvalidPayload(), "")

			return
		}

		if apiErr := gCtx.Inst().Chat.Send(gCtx, actor, p.Data); apiErr != nil {
			c.SendError(events.EventTypeChatError, apiErr, "")
		}

	case events.EventTypeChatDelivered, events.EventTypeChatRead:
		p, err := events.ConvertMessage[events.ChatStatusRequestPayload](msg)
		if err != nil {
			c.SendError(events.EventTypeChatError, errors.ErrInvalidPayload(), "")

			return
		}

		var apiErr errors.APIError
		if msg.Type == events.EventTypeChatDelivered {
			apiErr = gCtx.Inst().Chat.MarkDelivered(gCtx, actor, p.Data.MessageID)
		} else {
			apiErr = gCtx.Inst().Chat.MarkRead(gCtx, actor, p.Data.MessageID)
		}

		if apiErr != nil {
			c.SendError(events.EventTypeChatError, apiErr, "")
		}

	case events.EventTypeChatTyping, events.EventTypeChatStopTyping:
		p, err := events.ConvertMessage[events.TypingPayload](msg)
		if err != nil {
			return
		}

		gCtx.Inst().Chat.Typing(gCtx, actor, p.Data, msg.Type == events.EventTypeChatTyping)

	case events.EventTypeChatSetActiveConversation:
		p, err := events.ConvertMessage[events.ActiveConversationPayload](msg)
		if err != nil {
			return
		}

		gCtx.Inst().Chat.SetActiveConversation(gCtx, actor, p.Data.ConversationID)

	case events.EventTypeChatClearActiveConversation:
		gCtx.Inst().Chat.ClearActiveConversation(gCtx, actor)

	case events.EventTypeCallOffer:
		p, err := events.ConvertMessage[events.CallOfferPayload](msg)
		if err != nil {
			c.SendError(events.EventTypeCallError, errors.ErrInvalidPayload(), "")

			return
		}

		session, apiErr := gCtx.Inst().Calls.Offer(gCtx, actor, p.Data)
		if apiErr != nil {
			c.SendError(events.EventTypeCallError, apiErr, "")

			return
		}

		gCtx.Inst().Prometheus.CallsStarted().Inc()

		// The answer timeout is owned by the offering connection. A late
		// fire is harmless: only a still-RINGING session transitions.
		offerTimeout := time.Duration(gCtx.Config().Realtime.OfferTimeoutSeconds) * time.Second

		c.RegisterTimer("call:"+session.ID.Hex(), offerTimeout, func() {
			gCtx.Inst().Calls.Timeout(gCtx, actor, session.ID)
		})

	case events.EventTypeCallAnswer:
		p, err := events.ConvertMessage[events.CallAnswerPayload](msg)
		if err != nil {
			c.SendError(events.EventTypeCallError, errors.ErrInvalidPayload(), "")

			return
		}

		if apiErr := gCtx.Inst().Calls.Answer(gCtx, actor, p.Data); apiErr != nil {
			c.SendError(events.EventTypeCallError, apiErr, p.Data.CallID)
		}

	case events.EventTypeCallIce:
		p, err := events.ConvertMessage[events.CallIcePayload](msg)
		if err != nil {
			return
		}

		gCtx.Inst().Calls.Ice(gCtx, actor, p.Data)

	case events.EventTypeCallEnd:
		p, err := events.ConvertMessage[events.CallEndPayload](msg)
		if err != nil {
			c.SendError(events.EventTypeCallError, errors.ErrInvalidPayload(), "")

			return
		}

		c.CancelTimer("call:" + p.Data.CallID)

		if apiErr := gCtx.Inst().Calls.End(gCtx, actor, p.Data); apiErr != nil {
			c.SendError(events.EventTypeCallError, apiErr, p.Data.CallID)
		}

	case events.EventTypeCallMuteStatus:
		p, err := events.ConvertMessage[events.CallMutePayload](msg)
		if err != nil {
			return
		}

		gCtx.Inst().Calls.MuteStatus(gCtx, actor, p.Data)

	case events.EventTypeMarkNotificationRead:
		p, err := events.ConvertMessage[events.MarkNotificationReadPayload](msg)
		if err != nil {
			return
		}

		id, err := primitive.ObjectIDFromHex(p.Data.NotificationID)
		if err != nil {
			return
		}

		if err := gCtx.Inst().Mutate.MarkNotificationRead(gCtx, id, actor); err != nil {
			zap.S().Debugw("failed to mark notification read",
				"error", err,
				"notification_id", p.Data.NotificationID,
			)
		}

	case events.EventTypePresenceUpdate:
		p, err := events.ConvertMessage[events.PresenceUpdatePayload](msg)
		if err != nil {
			return
		}

		if p.Data.Online {
			gCtx.Inst().Presence.SetOnline(gCtx, actor)
		} else {
			gCtx.Inst().Presence.SetOffline(gCtx, actor)
		}

	default:
		c.Close(events.CloseCodeUnknownOperation)

		ok = false
	}

	return ok
}
