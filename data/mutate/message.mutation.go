package mutate

import (
	"context"
	"time"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// FindOrCreateConversation returns the conversation holding exactly {a, b},
// creating it if it does not exist yet. The upsert filter is the same exact
// membership predicate used by reads, so two racing creators converge on one
// document.
func (m *Mutate) FindOrCreateConversation(ctx context.Context, a, b model.Party) (model.Conversation, error) {
	conv := model.Conversation{}

	if a.Zero() || b.Zero() || a == b {
		return conv, errors.ErrMissingFields().SetDetail("invalid participant pair")
	}

	err := m.mongo.Collection(instance.CollectionNameConversations).FindOneAndUpdate(ctx,
		bson.M{
			"participants": bson.M{
				"$size": 2,
				"$all": bson.A{
					bson.M{"$elemMatch": bson.M{"user_id": a.UserID, "user_kind": a.UserKind}},
					bson.M{"$elemMatch": bson.M{"user_id": b.UserID, "user_kind": b.UserKind}},
				},
			},
		},
		bson.M{
			"$setOnInsert": bson.M{
				"_id":          primitive.NewObjectID(),
				"participants": []model.Party{a, b},
				"created_at":   time.Now(),
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&conv)
	if err != nil {
		zap.S().Errorw("failed to find or create conversation",
			"error", err,
			"party_a", a.Tag(),
			"party_b", b.Tag(),
		)

		return conv, errors.ErrInternalServerError().SetDetail(err.Error())
	}

	return conv, nil
}

// AppendMessage persists a new message in SENT status and bumps the parent
// conversation's last-message pointer.
func (m *Mutate) AppendMessage(ctx context.Context, conv model.Conversation, sender model.Party, ctRecipient string, ctSender string) (model.ChatMessage, error) {
	msg := model.ChatMessage{}

	recipient, ok := counterpartOf(conv, sender)
	if !ok {
		return msg, errors.ErrUnknownConversation().SetDetail("sender is not a participant")
	}

	msg = model.ChatMessage{
		ID:                     primitive.NewObjectID(),
		ConversationID:         conv.ID,
		Sender:                 sender,
		Recipient:              recipient,
		CiphertextForRecipient: ctRecipient,
		CiphertextForSender:    ctSender,
		Status:                 model.MessageStatusSent,
		CreatedAt:              time.Now(),
	}

	if _, err := m.mongo.Collection(instance.CollectionNameMessages).InsertOne(ctx, msg); err != nil {
		zap.S().Errorw("failed to insert chat message",
			"error", err,
			"conversation_id", conv.ID.Hex(),
		)

		return model.ChatMessage{}, errors.ErrInternalServerError().SetDetail(err.Error())
	}

	if _, err := m.mongo.Collection(instance.CollectionNameConversations).UpdateOne(ctx,
		bson.M{"_id": conv.ID},
		bson.M{"$set": bson.M{
			"last_message_id": msg.ID,
			"last_message_at": msg.CreatedAt,
		}},
	); err != nil {
		zap.S().Warnw("failed to bump conversation last-message pointer",
			"error", err,
			"conversation_id", conv.ID.Hex(),
		)
	}

	return msg, nil
}

// SetMessageStatus advances a message's delivery status. The update filter
// pins the current status to the allowed predecessors, so a stale or repeated
// receipt is a no-op rather than a regression.
func (m *Mutate) SetMessageStatus(ctx context.Context, messageID primitive.ObjectID, recipient model.Party, to model.MessageStatus, allowedFrom []model.MessageStatus) (model.ChatMessage, error) {
	msg := model.ChatMessage{}

	err := m.mongo.Collection(instance.CollectionNameMessages).FindOneAndUpdate(ctx,
		bson.M{
			"_id":                 messageID,
			"recipient.user_id":   recipient.UserID,
			"recipient.user_kind": recipient.UserKind,
			"status":              bson.M{"$in": allowedFrom},
		},
		bson.M{"$set": bson.M{"status": to}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return msg, errors.ErrStateConflict().SetDetail("message is not in an eligible status")
		}

		zap.S().Errorw("failed to update message status",
			"error", err,
			"message_id", messageID.Hex(),
		)

		return msg, errors.ErrInternalServerError().SetDetail(err.Error())
	}

	return msg, nil
}

func counterpartOf(conv model.Conversation, p model.Party) (model.Party, bool) {
	if !conv.Includes(p) {
		return model.Party{}, false
	}

	for _, m := range conv.Participants {
		if m != p {
			return m, true
		}
	}

	return model.Party{}, false
}
