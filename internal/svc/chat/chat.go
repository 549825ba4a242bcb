package chat

import (
	"context"
	"strings"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"github.com/deskhive/api/internal/svc/guard"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Relay moves end-to-end-encrypted messages between two parties. The server
// persists and forwards opaque ciphertext; it can never read a message body.
type Relay interface {
	Send(ctx context.Context, sender model.Party, p events.ChatSendPayload) errors.APIError
	MarkDelivered(ctx context.Context, actor model.Party, messageID string) errors.APIError
	MarkRead(ctx context.Context, actor model.Party, messageID string) errors.APIError
	Typing(ctx context.Context, actor model.Party, p events.TypingPayload, typing bool)
	SetActiveConversation(ctx context.Context, actor model.Party, conversationID string)
	ClearActiveConversation(ctx context.Context, actor model.Party)
}

// messageStore is the slice of the mutation layer the relay needs.
// *mutate.Mutate satisfies it.
type messageStore interface {
	FindOrCreateConversation(ctx context.Context, a, b model.Party) (model.Conversation, error)
	AppendMessage(ctx context.Context, conv model.Conversation, sender model.Party, ctRecipient string, ctSender string) (model.ChatMessage, error)
	SetMessageStatus(ctx context.Context, messageID primitive.ObjectID, recipient model.Party, to model.MessageStatus, allowedFrom []model.MessageStatus) (model.ChatMessage, error)
}

// profileSource resolves display names for event decoration. *query.Query
// satisfies it.
type profileSource interface {
	DisplayName(ctx context.Context, p model.Party) string
}

type Options struct {
	Store    messageStore
	Profiles profileSource
	Redis    instance.Redis
	Events   events.Instance
	Notifier instance.Notifier
	Guard    guard.Guard

	PayloadMaxBytes int
	ActiveConvTTL   time.Duration
}

func New(opt Options) Relay {
	return &relayInst{opt: opt}
}

type relayInst struct {
	opt Options
}

func (r *relayInst) activeKey(p model.Party) instance.RedisKey {
	return r.opt.Redis.ComposeKey("chat", "active", strings.ToLower(string(p.UserKind)), p.UserID)
}

// Send persists the message and relays it to both sides. The recipient gets
// the recipient-side ciphertext as chat:message; the sender's own group gets
// chat:sent so their other devices can sync the sender-side ciphertext.
func (r *relayInst) Send(ctx context.Context, sender model.Party, p events.ChatSendPayload) errors.APIError {
	if err := r.opt.Guard.ValidatePayload(p, r.opt.PayloadMaxBytes); err != nil {
		return err
	}

	recipient := model.Party{UserID: p.RecipientID, UserKind: p.RecipientKind}
	if recipient.Zero() || p.ConversationID == "" || p.CiphertextForRecipient == "" || p.CiphertextForSender == "" {
		return errors.ErrMissingFields().SetDetail("conversation, recipient and both ciphertexts are required")
	}

	if recipient == sender {
		return errors.ErrInvalidPayload().SetDetail("cannot message yourself")
	}

	conv, err := r.opt.Store.FindOrCreateConversation(ctx, sender, recipient)
	if err != nil {
		return errors.From(err)
	}

	// A stale conversation id from the client must not let a message cross
	// into another pair's thread.
	if p.ConversationID != conv.ID.Hex() {
		return errors.ErrUnknownConversation().SetDetail("conversation does not match participants")
	}

	msg, err := r.opt.Store.AppendMessage(ctx, conv, sender, p.CiphertextForRecipient, p.CiphertextForSender)
	if err != nil {
		return errors.From(err)
	}

	senderName := r.opt.Profiles.DisplayName(ctx, sender)

	if derr := r.opt.Events.Dispatch(ctx, recipient.Group(), events.NewMessage(events.EventTypeChatMessage, events.ChatMessagePayload{
		MessageID:         msg.ID.Hex(),
		ConversationID:    conv.ID.Hex(),
		Sender:            sender,
		SenderDisplayName: senderName,
		Ciphertext:        msg.CiphertextForRecipient,
		CreatedAt:         msg.CreatedAt,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch chat message",
			"error", derr,
			"message_id", msg.ID.Hex(),
		)
	}

	if derr := r.opt.Events.Dispatch(ctx, sender.Group(), events.NewMessage(events.EventTypeChatSent, events.ChatSentPayload{
		MessageID:      msg.ID.Hex(),
		ConversationID: conv.ID.Hex(),
		Ciphertext:     msg.CiphertextForSender,
		CreatedAt:      msg.CreatedAt,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch send ack",
			"error", derr,
			"message_id", msg.ID.Hex(),
		)
	}

	r.notify(ctx, msg, conv, senderName)

	return nil
}

// notify enqueues out-of-band notifications unless the recipient is actively
// viewing this conversation. The active marker lives in the ephemeral store,
// so suppression works no matter which process holds the recipient's socket.
func (r *relayInst) notify(ctx context.Context, msg model.ChatMessage, conv model.Conversation, senderName string) {
	active, err := r.opt.Redis.Get(ctx, r.activeKey(msg.Recipient))
	if err != nil && err != instance.RedisNil {
		zap.S().Warnw("failed to read active-conversation marker",
			"error", err,
			"party", msg.Recipient.Tag(),
		)
	}

	if active == conv.ID.Hex() {
		return
	}

	title := "New message"
	if senderName != "" {
		title = "New message from " + senderName
	}

	notif := model.Notification{
		ID:             primitive.NewObjectID(),
		Target:         msg.Recipient,
		Kind:           model.NotificationKindChat,
		Title:          title,
		Body:           "You received an encrypted message.",
		CreatedAt:      msg.CreatedAt,
		ConversationID: &conv.ID,
	}

	r.opt.Notifier.SendChatNotification(ctx, notif)
	r.opt.Notifier.SendInAppNotification(ctx, notif)
}

func (r *relayInst) markStatus(ctx context.Context, actor model.Party, messageID string, to model.MessageStatus, allowedFrom []model.MessageStatus) errors.APIError {
	id, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return errors.ErrInvalidPayload().SetDetail("bad message id")
	}

	msg, serr := r.opt.Store.SetMessageStatus(ctx, id, actor, to, allowedFrom)
	if serr != nil {
		apiErr := errors.From(serr)
		if apiErr.Code() == errors.ErrStateConflict().Code() {
			// A repeated or out-of-order receipt. The status already moved
			// at least as far, so there is nothing to report.
			return nil
		}

		return apiErr
	}

	if derr := r.opt.Events.Dispatch(ctx, msg.Sender.Group(), events.NewMessage(events.EventTypeChatStatus, events.ChatStatusPayload{
		MessageID:      msg.ID.Hex(),
		ConversationID: msg.ConversationID.Hex(),
		Status:         msg.Status,
	}).ToRaw()); derr != nil {
		zap.S().Warnw("failed to dispatch status update",
			"error", derr,
			"message_id", msg.ID.Hex(),
		)
	}

	return nil
}

func (r *relayInst) MarkDelivered(ctx context.Context, actor model.Party, messageID string) errors.APIError {
	return r.markStatus(ctx, actor, messageID, model.MessageStatusDelivered, []model.MessageStatus{model.MessageStatusSent})
}

// MarkRead accepts a jump straight from SENT: a recipient who opens the
// conversation before their client acked delivery still lands on READ.
func (r *relayInst) MarkRead(ctx context.Context, actor model.Party, messageID string) errors.APIError {
	return r.markStatus(ctx, actor, messageID, model.MessageStatusRead, []model.MessageStatus{model.MessageStatusSent, model.MessageStatusDelivered})
}

// Typing relays a throttled typing indicator. Indicators are fire-and-forget;
// anything malformed or over the rate is dropped without a reply.
func (r *relayInst) Typing(ctx context.Context, actor model.Party, p events.TypingPayload, typing bool) {
	recipient := model.Party{UserID: p.RecipientID, UserKind: p.RecipientKind}
	if recipient.Zero() || p.ConversationID == "" {
		return
	}

	if typing && !r.opt.Guard.TestTyping(actor, p.ConversationID) {
		return
	}

	if err := r.opt.Events.Dispatch(ctx, recipient.Group(), events.NewMessage(events.EventTypeChatTyping, events.TypingDispatchPayload{
		ConversationID: p.ConversationID,
		Sender:         actor,
		Typing:         typing,
	}).ToRaw()); err != nil {
		zap.S().Warnw("failed to dispatch typing indicator",
			"error", err,
		)
	}
}

func (r *relayInst) SetActiveConversation(ctx context.Context, actor model.Party, conversationID string) {
	if conversationID == "" {
		return
	}

	if err := r.opt.Redis.SetEX(ctx, r.activeKey(actor), conversationID, r.opt.ActiveConvTTL); err != nil {
		zap.S().Warnw("failed to set active-conversation marker",
			"error", err,
			"party", actor.Tag(),
		)
	}
}

func (r *relayInst) ClearActiveConversation(ctx context.Context, actor model.Party) {
	if err := r.opt.Redis.Del(ctx, r.activeKey(actor)); err != nil {
		zap.S().Warnw("failed to clear active-conversation marker",
			"error", err,
			"party", actor.Tag(),
		)
	}
}
