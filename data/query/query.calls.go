package query

import (
	"context"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// CallSession is a convenience over CallSessionByID for callers that only
// need the document or an error.
func (q *Query) CallSession(ctx context.Context, id primitive.ObjectID) (model.CallSession, error) {
	return q.CallSessionByID(ctx, id).First()
}

func (q *Query) CallSessionByID(ctx context.Context, id primitive.ObjectID) *QueryResult[model.CallSession] {
	r := &QueryResult[model.CallSession]{}

	session := model.CallSession{}

	err := q.mongo.Collection(instance.CollectionNameCallSessions).FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return r.setError(errors.ErrUnknownCallSession())
		}

		zap.S().Errorw("failed to fetch call session",
			"error", err,
			"call_id", id.Hex(),
		)

		return r.setError(errors.ErrInternalServerError().SetDetail(err.Error()))
	}

	return r.setItems([]model.CallSession{session})
}

// OpenCallSessionsByParticipant returns every non-terminal session the party
// is in. Used at disconnect to sweep calls the peer would otherwise hear ring
// forever.
func (q *Query) OpenCallSessionsByParticipant(ctx context.Context, p model.Party) *QueryResult[model.CallSession] {
	r := &QueryResult[model.CallSession]{}

	cur, err := q.mongo.Collection(instance.CollectionNameCallSessions).Find(ctx, bson.M{
		"participants": bson.M{
			"$elemMatch": bson.M{"user_id": p.UserID, "user_kind": p.UserKind},
		},
		"status": bson.M{"$in": bson.A{model.CallStatusRinging, model.CallStatusAccepted}},
	})
	if err != nil {
		zap.S().Errorw("failed to query open call sessions",
			"error", err,
			"party", p.Tag(),
		)

		return r.setError(errors.ErrInternalServerError().SetDetail(err.Error()))
	}

	sessions := []model.CallSession{}
	if err := cur.All(ctx, &sessions); err != nil {
		zap.S().Errorw("failed to decode call sessions",
			"error", err,
			"party", p.Tag(),
		)

		return r.setError(errors.ErrInternalServerError().SetDetail(err.Error()))
	}

	return r.setItems(sessions).setTotal(int64(len(sessions)))
}
