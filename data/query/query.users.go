package query

import (
	"context"
	"fmt"
	"time"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserProfile resolves the display profile behind a party. Student and admin
// records live in separate collections, so the party's kind picks the one to
// read. Results are memoized for a minute since display names change rarely
// but get looked up on every relayed message.
func (q *Query) UserProfile(ctx context.Context, p model.Party) *QueryResult[model.UserProfile] {
	r := &QueryResult[model.UserProfile]{}

	if p.Zero() {
		return r.setError(errors.ErrMissingFields().SetDetail("incomplete party"))
	}

	k := q.key(fmt.Sprintf("profile:%s", p.Tag()))

	// Single-flight per profile: a burst of relayed messages from one sender
	// resolves the name once, not once per message.
	mtx := q.mtx(k.String())
	mtx.Lock()
	defer mtx.Unlock()

	profile := model.UserProfile{}
	if ok := q.getFromMemCache(ctx, k, &profile); ok {
		profile.Kind = p.UserKind

		return r.setItems([]model.UserProfile{profile})
	}

	coll := instance.CollectionNameStudents
	if p.UserKind == model.UserKindAdmin {
		coll = instance.CollectionNameAdmins
	}

	err := q.mongo.Collection(coll).FindOne(ctx, bson.M{"_id": p.UserID}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return r.setError(errors.ErrNoItems())
		}

		zap.S().Errorw("failed to fetch user profile",
			"error", err,
			"party", p.Tag(),
		)

		return r.setError(errors.ErrInternalServerError().SetDetail(err.Error()))
	}

	profile.Kind = p.UserKind

	if err = q.setInMemCache(ctx, k, profile, time.Minute); err != nil {
		zap.S().Warnw("failed to cache user profile",
			"error", err,
			"party", p.Tag(),
		)
	}

	return r.setItems([]model.UserProfile{profile})
}

// DisplayName is a convenience over UserProfile for callers that only decorate
// an outgoing event. It never fails; an unresolved profile yields "".
func (q *Query) DisplayName(ctx context.Context, p model.Party) string {
	profile, err := q.UserProfile(ctx, p).First()
	if err != nil {
		return ""
	}

	return profile.DisplayName
}
