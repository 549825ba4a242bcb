package query

import (
	"context"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ConversationBetween is a convenience over ConversationByParticipants for
// callers that only need the document or an error.
func (q *Query) ConversationBetween(ctx context.Context, a, b model.Party) (model.Conversation, error) {
	return q.ConversationByParticipants(ctx, a, b).First()
}

// ConversationByParticipants finds the conversation whose membership is exactly
// {a, b}. Membership is unordered, so both parties are matched independently
// and the size is pinned to two.
func (q *Query) ConversationByParticipants(ctx context.Context, a, b model.Party) *QueryResult[model.Conversation] {
	r := &QueryResult[model.Conversation]{}

	if a.Zero() || b.Zero() || a == b {
		return r.setError(errors.ErrMissingFields().SetDetail("invalid participant pair"))
	}

	conv := model.Conversation{}

	err := q.mongo.Collection(instance.CollectionNameConversations).FindOne(ctx, bson.M{
		"participants": bson.M{
			"$size": 2,
			"$all": bson.A{
				bson.M{"$elemMatch": bson.M{"user_id": a.UserID, "user_kind": a.UserKind}},
				bson.M{"$elemMatch": bson.M{"user_id": b.UserID, "user_kind": b.UserKind}},
			},
		},
	}).Decode(&conv)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return r.setError(errors.ErrUnknownConversation())
		}

		zap.S().Errorw("failed to fetch conversation by participants",
			"error", err,
			"party_a", a.Tag(),
			"party_b", b.Tag(),
		)

		return r.setError(errors.ErrInternalServerError().SetDetail(err.Error()))
	}

	return r.setItems([]model.Conversation{conv})
}
