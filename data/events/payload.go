package events

import (
	"encoding/json"
	"time"

	"github.com/deskhive/api/data/model"
)

type AnyPayload interface {
	json.RawMessage |
		ConnectedPayload |
		PongPayload |
		ChatSendPayload |
		ChatMessagePayload |
		ChatSentPayload |
		ChatStatusRequestPayload |
		ChatStatusPayload |
		TypingPayload |
		TypingDispatchPayload |
		ActiveConversationPayload |
		CallOfferPayload |
		CallOfferDispatchPayload |
		CallOfferAckPayload |
		CallAnswerPayload |
		CallAnswerDispatchPayload |
		CallIcePayload |
		CallIceDispatchPayload |
		CallEndPayload |
		CallEndDispatchPayload |
		CallTimeoutPayload |
		CallMutePayload |
		CallMuteDispatchPayload |
		ErrorPayload |
		PresenceUpdatePayload |
		PresenceDispatchPayload |
		MarkNotificationReadPayload |
		SystemStatusPayload |
		model.Notification
}

type ConnectedPayload struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	UserKind  model.UserKind `json:"user_kind"`
}

type PongPayload struct {
	ServerTime int64 `json:"server_time"`
}

type ChatSendPayload struct {
	ConversationID         string         `json:"conversation_id"`
	RecipientID            string         `json:"recipient_id"`
	RecipientKind          model.UserKind `json:"recipient_kind"`
	CiphertextForRecipient string         `json:"ciphertext_for_recipient"`
	CiphertextForSender    string         `json:"ciphertext_for_sender"`
}

// ChatMessagePayload is the stored message as delivered to the recipient.
// Only the recipient-side ciphertext travels with it.
type ChatMessagePayload struct {
	MessageID         string      `json:"message_id"`
	ConversationID    string      `json:"conversation_id"`
	Sender            model.Party `json:"sender"`
	SenderDisplayName string      `json:"sender_display_name,omitempty"`
	Ciphertext        string      `json:"ciphertext"`
	CreatedAt         time.Time   `json:"created_at"`
}

// ChatSentPayload acknowledges a send to its author, carrying the sender-side
// ciphertext so other devices of the same user can sync.
type ChatSentPayload struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Ciphertext     string    `json:"ciphertext"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatStatusRequestPayload struct {
	MessageID string `json:"message_id"`
}

type ChatStatusPayload struct {
	MessageID      string              `json:"message_id"`
	ConversationID string              `json:"conversation_id"`
	Status         model.MessageStatus `json:"status"`
}

type TypingPayload struct {
	ConversationID string         `json:"conversation_id"`
	RecipientID    string         `json:"recipient_id"`
	RecipientKind  model.UserKind `json:"recipient_kind"`
}

type TypingDispatchPayload struct {
	ConversationID string      `json:"conversation_id"`
	Sender         model.Party `json:"sender"`
	Typing         bool        `json:"typing"`
}

type ActiveConversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type CallOfferPayload struct {
	ConversationID string         `json:"conversation_id"`
	RecipientID    string         `json:"recipient_id"`
	RecipientKind  model.UserKind `json:"recipient_kind"`
	SDP            string         `json:"sdp"`
}

type CallOfferDispatchPayload struct {
	CallID            string      `json:"call_id"`
	ConversationID    string      `json:"conversation_id"`
	Caller            model.Party `json:"caller"`
	CallerDisplayName string      `json:"caller_display_name,omitempty"`
	SDP               string      `json:"sdp"`
}

type CallOfferAckPayload struct {
	CallID         string `json:"call_id"`
	ConversationID string `json:"conversation_id"`
}

type CallAnswerPayload struct {
	CallID        string         `json:"call_id"`
	RecipientID   string         `json:"recipient_id"`
	RecipientKind model.UserKind `json:"recipient_kind"`
	SDP           string         `json:"sdp"`
}

type CallAnswerDispatchPayload struct {
	CallID   string      `json:"call_id"`
	Answerer model.Party `json:"answerer"`
	SDP      string      `json:"sdp"`
}

// IceCandidate is an opaque connectivity blob. The body is bounded; the two
// optional fields are forwarded as-is when present.
type IceCandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMLineIndex *int    `json:"sdpMLineIndex,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
}

type CallIcePayload struct {
	CallID        string         `json:"call_id"`
	RecipientID   string         `json:"recipient_id"`
	RecipientKind model.UserKind `json:"recipient_kind"`
	Candidate     IceCandidate   `json:"candidate"`
}

type CallIceDispatchPayload struct {
	CallID    string       `json:"call_id"`
	Sender    model.Party  `json:"sender"`
	Candidate IceCandidate `json:"candidate"`
}

type CallEndPayload struct {
	CallID        string         `json:"call_id"`
	RecipientID   string         `json:"recipient_id"`
	RecipientKind model.UserKind `json:"recipient_kind"`
}

type CallEndDispatchPayload struct {
	CallID  string      `json:"call_id"`
	EndedBy model.Party `json:"ended_by"`
}

type CallTimeoutPayload struct {
	CallID string `json:"call_id"`
}

type CallMutePayload struct {
	CallID        string         `json:"call_id,omitempty"`
	RecipientID   string         `json:"recipient_id"`
	RecipientKind model.UserKind `json:"recipient_kind"`
	Muted         bool           `json:"muted"`
}

type CallMuteDispatchPayload struct {
	CallID string      `json:"call_id,omitempty"`
	Sender model.Party `json:"sender"`
	Muted  bool        `json:"muted"`
}

// ErrorPayload backs both chat:error and call:error.
type ErrorPayload struct {
	Code   int    `json:"code"`
	Error  string `json:"error"`
	CallID string `json:"call_id,omitempty"`
}

type PresenceUpdatePayload struct {
	Online bool `json:"online"`
}

type PresenceDispatchPayload struct {
	UserID   string         `json:"user_id"`
	UserKind model.UserKind `json:"user_kind"`
	Online   bool           `json:"online"`
	LastSeen *time.Time     `json:"last_seen,omitempty"`
}

type MarkNotificationReadPayload struct {
	NotificationID string `json:"notification_id"`
}

type SystemStatusPayload struct {
	AdminsOnline  int   `json:"admins_online"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}
