package events

import (
	"encoding/json"
	"time"
)

// EventType names one message on the bidirectional event surface. Client and
// server types share a single namespace; a few (call:offer, call:answer,
// call:ice, call:end, presence:update) are used in both directions.
type EventType string

const (
	// Client commands
	EventTypeChatSend                    EventType = "chat:send"
	EventTypeChatDelivered               EventType = "chat:delivered"
	EventTypeChatRead                    EventType = "chat:read"
	EventTypeChatTyping                  EventType = "chat:typing"
	EventTypeChatStopTyping              EventType = "chat:stop_typing"
	EventTypeChatSetActiveConversation   EventType = "chat:set-active-conversation"
	EventTypeChatClearActiveConversation EventType = "chat:clear-active-conversation"
	EventTypeCallOffer                   EventType = "call:offer"
	EventTypeCallAnswer                  EventType = "call:answer"
	EventTypeCallIce                     EventType = "call:ice"
	EventTypeCallEnd                     EventType = "call:end"
	EventTypeCallMuteStatus              EventType = "call:mute-status"
	EventTypeMarkNotificationRead        EventType = "mark_notification_read"
	EventTypePresenceUpdate              EventType = "presence:update"
	EventTypePing                        EventType = "ping"

	// Server dispatches
	EventTypeConnected    EventType = "connected"
	EventTypePong         EventType = "pong"
	EventTypeChatMessage  EventType = "chat:message"
	EventTypeChatSent     EventType = "chat:sent"
	EventTypeChatStatus   EventType = "chat:status"
	EventTypeChatError    EventType = "chat:error"
	EventTypeCallOfferAck EventType = "call:offer:ack"
	EventTypeCallTimeout  EventType = "call:timeout"
	EventTypeCallError    EventType = "call:error"
	EventTypeNotification EventType = "notification"
	EventTypeSystemStatus EventType = "system_status"
)

type Message[D AnyPayload] struct {
	Type      EventType `json:"e"`
	Timestamp int64     `json:"t"`
	Data      D         `json:"d"`
}

func NewMessage[D AnyPayload](t EventType, data D) Message[D] {
	return Message[D]{
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

func (m Message[D]) ToRaw() Message[json.RawMessage] {
	switch x := interface{}(m.Data).(type) {
	case json.RawMessage:
		return Message[json.RawMessage]{
			Type:      m.Type,
			Timestamp: m.Timestamp,
			Data:      x,
		}
	}

	raw, _ := jsonCodec.Marshal(m.Data)

	return Message[json.RawMessage]{
		Type:      m.Type,
		Timestamp: m.Timestamp,
		Data:      raw,
	}
}

func ConvertMessage[D AnyPayload](m Message[json.RawMessage]) (Message[D], error) {
	var d D
	err := jsonCodec.Unmarshal(m.Data, &d)

	return Message[D]{
		Type:      m.Type,
		Timestamp: m.Timestamp,
		Data:      d,
	}, err
}

type CloseCode uint16

const (
	CloseCodeServerError      CloseCode = 4000 // an error occurred on the server's end
	CloseCodeUnknownOperation CloseCode = 4001 // the client sent an unexpected event type
	CloseCodeInvalidPayload   CloseCode = 4002 // the client sent a payload that couldn't be decoded
	CloseCodeAuthFailure      CloseCode = 4003 // the client's credential was rejected
	CloseCodeRateLimit        CloseCode = 4005 // the client is being rate-limited
	CloseCodeRestart          CloseCode = 4006 // the server is restarting and the client should reconnect
	CloseCodeTimeout          CloseCode = 4008 // the client was idle for too long
)

func (c CloseCode) String() string {
	switch c {
	case CloseCodeServerError:
		return "Internal Server Error"
	case CloseCodeUnknownOperation:
		return "Unknown Operation"
	case CloseCodeInvalidPayload:
		return "Invalid Payload"
	case CloseCodeAuthFailure:
		return "Authentication Failed"
	case CloseCodeRateLimit:
		return "Rate limit reached"
	case CloseCodeRestart:
		return "Server is restarting"
	case CloseCodeTimeout:
		return "Timeout"
	default:
		return "Undocumented Closure"
	}
}
