package mutate

import (
	"context"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MarkNotificationRead flips a notification's read flag for its target. The
// target is part of the filter so a user can only mark their own.
func (m *Mutate) MarkNotificationRead(ctx context.Context, notificationID primitive.ObjectID, target model.Party) error {
	res, err := m.mongo.Collection(instance.CollectionNameNotifications).UpdateOne(ctx,
		bson.M{
			"_id":              notificationID,
			"target.user_id":   target.UserID,
			"target.user_kind": target.UserKind,
		},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		zap.S().Errorw("failed to mark notification read",
			"error", err,
			"notification_id", notificationID.Hex(),
		)

		return errors.ErrInternalServerError().SetDetail(err.Error())
	}

	if res.MatchedCount == 0 {
		return errors.ErrNoItems()
	}

	return nil
}
