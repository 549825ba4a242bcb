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

// CreateCallSession opens a new signaling record in RINGING status.
func (m *Mutate) CreateCallSession(ctx context.Context, conversationID primitive.ObjectID, caller, callee model.Party) (model.CallSession, error) {
	session := model.CallSession{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		Participants:   []model.Party{caller, callee},
		Status:         model.CallStatusRinging,
		StartedAt:      time.Now(),
	}

	if _, err := m.mongo.Collection(instance.CollectionNameCallSessions).InsertOne(ctx, session); err != nil {
		zap.S().Errorw("failed to insert call session",
			"error", err,
			"conversation_id", conversationID.Hex(),
		)

		return model.CallSession{}, errors.ErrInternalServerError().SetDetail(err.Error())
	}

	return session, nil
}

// TransitionCallSession moves a session from one of the expected statuses to
// the target status in a single conditional update. There is no lock anywhere
// in call signaling: when two transitions race, exactly one matches the filter
// and the other observes ErrStateConflict.
func (m *Mutate) TransitionCallSession(ctx context.Context, callID primitive.ObjectID, actor model.Party, expect []model.CallStatus, to model.CallStatus) (model.CallSession, error) {
	session := model.CallSession{}

	update := bson.M{"status": to}
	if to.Terminal() {
		update["ended_at"] = time.Now()
	}

	err := m.mongo.Collection(instance.CollectionNameCallSessions).FindOneAndUpdate(ctx,
		bson.M{
			"_id":    callID,
			"status": bson.M{"$in": expect},
			"participants": bson.M{
				"$elemMatch": bson.M{"user_id": actor.UserID, "user_kind": actor.UserKind},
			},
		},
		bson.M{"$set": update},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return session, errors.ErrStateConflict().SetDetail("call is not in an eligible status")
		}

		zap.S().Errorw("failed to transition call session",
			"error", err,
			"call_id", callID.Hex(),
			"to", to,
		)

		return session, errors.ErrInternalServerError().SetDetail(err.Error())
	}

	return session, nil
}

// EndOpenCallSessions force-ends every non-terminal session the party is in
// and returns the sessions as they were updated. Used when a connection is
// torn down.
func (m *Mutate) EndOpenCallSessions(ctx context.Context, p model.Party) ([]model.CallSession, error) {
	res := m.query.OpenCallSessionsByParticipant(ctx, p)
	if err := res.Error(); err != nil {
		return nil, err
	}

	if res.Empty() {
		return nil, nil
	}

	zap.S().Debugw("sweeping open call sessions",
		"party", p.Tag(),
		"open", res.Total(),
	)

	open, _ := res.Items()

	ended := make([]model.CallSession, 0, len(open))

	for _, session := range open {
		s, err := m.TransitionCallSession(ctx, session.ID, p,
			[]model.CallStatus{model.CallStatusRinging, model.CallStatusAccepted},
			model.CallStatusEnded,
		)
		if err != nil {
			// Someone else already closed it, which is the outcome we wanted.
			continue
		}

		ended = append(ended, s)
	}

	return ended, nil
}
