package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/svc/guard"
	"github.com/deskhive/api/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeMessageStore struct {
	mtx      sync.Mutex
	convs    []model.Conversation
	messages map[primitive.ObjectID]*model.ChatMessage
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: map[primitive.ObjectID]*model.ChatMessage{}}
}

func (f *fakeMessageStore) FindOrCreateConversation(ctx context.Context, a, b model.Party) (model.Conversation, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	for _, c := range f.convs {
		if c.ExactMembers(a, b) {
			return c, nil
		}
	}

	c := model.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []model.Party{a, b},
		CreatedAt:    time.Now(),
	}
	f.convs = append(f.convs, c)

	return c, nil
}

func (f *fakeMessageStore) AppendMessage(ctx context.Context, conv model.Conversation, sender model.Party, ctRecipient string, ctSender string) (model.ChatMessage, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	recipient := conv.Participants[0]
	if recipient == sender {
		recipient = conv.Participants[1]
	}

	msg := model.ChatMessage{
		ID:                     primitive.NewObjectID(),
		ConversationID:         conv.ID,
		Sender:                 sender,
		Recipient:              recipient,
		CiphertextForRecipient: ctRecipient,
		CiphertextForSender:    ctSender,
		Status:                 model.MessageStatusSent,
		CreatedAt:              time.Now(),
	}
	f.messages[msg.ID] = &msg

	return msg, nil
}

func (f *fakeMessageStore) SetMessageStatus(ctx context.Context, messageID primitive.ObjectID, recipient model.Party, to model.MessageStatus, allowedFrom []model.MessageStatus) (model.ChatMessage, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	msg, ok := f.messages[messageID]
	if !ok || msg.Recipient != recipient {
		return model.ChatMessage{}, errors.ErrStateConflict()
	}

	eligible := false

	for _, from := range allowedFrom {
		if msg.Status == from {
			eligible = true
		}
	}

	if !eligible {
		return model.ChatMessage{}, errors.ErrStateConflict()
	}

	msg.Status = to

	return *msg, nil
}

type fakeProfiles struct{}

func (fakeProfiles) DisplayName(ctx context.Context, p model.Party) string {
	return "Name " + p.UserID
}

type fixture struct {
	relay    Relay
	store    *fakeMessageStore
	redis    *testutil.MemoryRedis
	sink     *testutil.EventSink
	notifier *testutil.NotifierRecorder

	sender    model.Party
	recipient model.Party
	conv      model.Conversation
}

func newFixture() *fixture {
	f := &fixture{
		store:     newFakeMessageStore(),
		redis:     testutil.NewMemoryRedis(),
		sink:      testutil.NewEventSink(),
		notifier:  testutil.NewNotifierRecorder(),
		sender:    model.Party{UserID: "stu1", UserKind: model.UserKindStudent},
		recipient: model.Party{UserID: "adm1", UserKind: model.UserKindAdmin},
	}

	f.conv = model.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []model.Party{f.sender, f.recipient},
		CreatedAt:    time.Now(),
	}
	f.store.convs = append(f.store.convs, f.conv)

	f.relay = New(Options{
		Store:    f.store,
		Profiles: fakeProfiles{},
		Redis:    f.redis,
		Events:   f.sink,
		Notifier: f.notifier,
		Guard: guard.New(guard.Options{
			CallRateLimit:     10,
			CallRateWindow:    time.Minute,
			TypingMinInterval: time.Millisecond * 100,
		}),
		PayloadMaxBytes: 20 * 1024,
		ActiveConvTTL:   time.Hour,
	})

	return f
}

func (f *fixture) send(t *testing.T) events.ChatMessagePayload {
	apiErr := f.relay.Send(context.Background(), f.sender, events.ChatSendPayload{
		ConversationID:         f.conv.ID.Hex(),
		RecipientID:            f.recipient.UserID,
		RecipientKind:          f.recipient.UserKind,
		CiphertextForRecipient: "ct-recipient",
		CiphertextForSender:    "ct-sender",
	})
	testutil.IsNil(t, apiErr, "send accepted")

	relayed := f.sink.ByType(events.EventTypeChatMessage)
	testutil.Assert(t, true, len(relayed) > 0, "message relayed")

	p, err := events.ConvertMessage[events.ChatMessagePayload](relayed[len(relayed)-1].Message)
	testutil.IsNil(t, err, "payload decodes")

	return p.Data
}

func TestSend(t *testing.T) {
	t.Parallel()

	f := newFixture()
	delivered := f.send(t)

	testutil.Assert(t, "ct-recipient", delivered.Ciphertext, "recipient sees recipient-side ciphertext")
	testutil.Assert(t, "Name stu1", delivered.SenderDisplayName, "sender name attached")

	relayed := f.sink.ByType(events.EventTypeChatMessage)
	testutil.Assert(t, f.recipient.Group(), relayed[0].Group, "message goes to recipient group")

	acks := f.sink.ByType(events.EventTypeChatSent)
	testutil.Assert(t, 1, len(acks), "sender acked")
	testutil.Assert(t, f.sender.Group(), acks[0].Group, "ack goes to sender group")

	ack, err := events.ConvertMessage[events.ChatSentPayload](acks[0].Message)
	testutil.IsNil(t, err, "ack decodes")
	testutil.Assert(t, "ct-sender", ack.Data.Ciphertext, "ack carries sender-side ciphertext")
}

func TestSendMissingFields(t *testing.T) {
	t.Parallel()

	f := newFixture()

	apiErr := f.relay.Send(context.Background(), f.sender, events.ChatSendPayload{
		ConversationID: f.conv.ID.Hex(),
		RecipientID:    f.recipient.UserID,
		RecipientKind:  f.recipient.UserKind,
	})
	testutil.IsNotNil(t, apiErr, "missing ciphertexts rejected")
	testutil.Assert(t, errors.ErrMissingFields().Code(), apiErr.Code(), "error code")
}

func TestSendMissingConversationID(t *testing.T) {
	t.Parallel()

	f := newFixture()

	apiErr := f.relay.Send(context.Background(), f.sender, events.ChatSendPayload{
		RecipientID:            f.recipient.UserID,
		RecipientKind:          f.recipient.UserKind,
		CiphertextForRecipient: "ct-recipient",
		CiphertextForSender:    "ct-sender",
	})
	testutil.IsNotNil(t, apiErr, "missing conversation rejected")
	testutil.Assert(t, errors.ErrMissingFields().Code(), apiErr.Code(), "error code")
	testutil.Assert(t, 0, len(f.sink.ByType(events.EventTypeChatMessage)), "nothing relayed")
	testutil.Assert(t, 0, len(f.store.messages), "nothing persisted")
}

func TestNotificationSuppression(t *testing.T) {
	t.Parallel()

	f := newFixture()

	// Recipient is not viewing the conversation: both channels fire.
	f.send(t)
	testutil.Assert(t, 1, len(f.notifier.Chat), "chat notification sent")
	testutil.Assert(t, 1, len(f.notifier.InApp), "in-app notification sent")

	// Recipient opens the conversation: the next message is silent.
	msg := f.send(t)
	f.relay.SetActiveConversation(context.Background(), f.recipient, msg.ConversationID)

	f.send(t)
	testutil.Assert(t, 2, len(f.notifier.Chat), "no notification while conversation is open")

	// Recipient navigates away: notifications resume.
	f.relay.ClearActiveConversation(context.Background(), f.recipient)

	f.send(t)
	testutil.Assert(t, 3, len(f.notifier.Chat), "notification resumes after leaving")
}

func TestSuppressionIsPerConversation(t *testing.T) {
	t.Parallel()

	f := newFixture()

	// Viewing a different conversation does not suppress.
	f.relay.SetActiveConversation(context.Background(), f.recipient, primitive.NewObjectID().Hex())

	f.send(t)
	testutil.Assert(t, 1, len(f.notifier.Chat), "other conversation does not suppress")
}

func TestMarkDeliveredAndRead(t *testing.T) {
	t.Parallel()

	f := newFixture()
	msg := f.send(t)

	apiErr := f.relay.MarkDelivered(context.Background(), f.recipient, msg.MessageID)
	testutil.IsNil(t, apiErr, "delivered accepted")

	statuses := f.sink.ByType(events.EventTypeChatStatus)
	testutil.Assert(t, 1, len(statuses), "status relayed")
	testutil.Assert(t, f.sender.Group(), statuses[0].Group, "status goes to sender")

	p, err := events.ConvertMessage[events.ChatStatusPayload](statuses[0].Message)
	testutil.IsNil(t, err, "status decodes")
	testutil.Assert(t, model.MessageStatusDelivered, p.Data.Status, "status is DELIVERED")

	// A repeated delivery receipt is swallowed.
	apiErr = f.relay.MarkDelivered(context.Background(), f.recipient, msg.MessageID)
	testutil.IsNil(t, apiErr, "repeated receipt is a no-op")
	testutil.Assert(t, 1, len(f.sink.ByType(events.EventTypeChatStatus)), "no duplicate status event")

	apiErr = f.relay.MarkRead(context.Background(), f.recipient, msg.MessageID)
	testutil.IsNil(t, apiErr, "read accepted")
	testutil.Assert(t, 2, len(f.sink.ByType(events.EventTypeChatStatus)), "read status relayed")
}

func TestMarkReadFromSent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	msg := f.send(t)

	// Read without a prior delivered receipt still lands.
	apiErr := f.relay.MarkRead(context.Background(), f.recipient, msg.MessageID)
	testutil.IsNil(t, apiErr, "read from SENT accepted")

	id, _ := primitive.ObjectIDFromHex(msg.MessageID)
	testutil.Assert(t, model.MessageStatusRead, f.store.messages[id].Status, "message is READ")
}

func TestTypingThrottle(t *testing.T) {
	t.Parallel()

	f := newFixture()

	p := events.TypingPayload{
		ConversationID: primitive.NewObjectID().Hex(),
		RecipientID:    f.recipient.UserID,
		RecipientKind:  f.recipient.UserKind,
	}

	f.relay.Typing(context.Background(), f.sender, p, true)
	f.relay.Typing(context.Background(), f.sender, p, true)

	testutil.Assert(t, 1, len(f.sink.ByType(events.EventTypeChatTyping)), "second indicator throttled")

	// Stop-typing is never throttled.
	f.relay.Typing(context.Background(), f.sender, p, false)
	testutil.Assert(t, 2, len(f.sink.ByType(events.EventTypeChatTyping)), "stop indicator relayed")
}
