package presence

import (
	"context"
	"strings"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/instance"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Registry tracks who is connected. Records live in the ephemeral store under
// a TTL, so presence self-heals: a process that dies without running teardown
// leaves records that simply expire.
type Registry interface {
	SetOnline(ctx context.Context, p model.Party)
	SetOffline(ctx context.Context, p model.Party)
	Get(ctx context.Context, p model.Party) (model.PresenceRecord, bool)
}

type Options struct {
	OnlineTTL  time.Duration
	OfflineTTL time.Duration
}

func New(redisInst instance.Redis, eventsInst events.Instance, opt Options) Registry {
	return &registryInst{
		redis:  redisInst,
		events: eventsInst,
		opt:    opt,
	}
}

type registryInst struct {
	redis  instance.Redis
	events events.Instance
	opt    Options
}

func (r *registryInst) key(p model.Party) instance.RedisKey {
	return r.redis.ComposeKey("presence", strings.ToLower(string(p.UserKind)), p.UserID)
}

func (r *registryInst) put(ctx context.Context, p model.Party, online bool, ttl time.Duration) {
	now := time.Now()

	rec := model.PresenceRecord{Online: online, LastSeen: &now}

	s, err := json.MarshalToString(rec)
	if err != nil {
		zap.S().Errorw("failed to encode presence record",
			"error", err,
			"party", p.Tag(),
		)

		return
	}

	if err := r.redis.SetEX(ctx, r.key(p), s, ttl); err != nil {
		zap.S().Warnw("failed to write presence record",
			"error", err,
			"party", p.Tag(),
		)
	}

	r.broadcast(ctx, p, rec)
}

// broadcast fans the presence change out to both role groups. Students see
// admin availability for the help desk; admins see everyone.
func (r *registryInst) broadcast(ctx context.Context, p model.Party, rec model.PresenceRecord) {
	msg := events.NewMessage(events.EventTypePresenceUpdate, events.PresenceDispatchPayload{
		UserID:   p.UserID,
		UserKind: p.UserKind,
		Online:   rec.Online,
		LastSeen: rec.LastSeen,
	}).ToRaw()

	for _, group := range []string{"students", "admins"} {
		if err := r.events.Dispatch(ctx, group, msg); err != nil {
			zap.S().Warnw("failed to dispatch presence update",
				"error", err,
				"group", group,
				"party", p.Tag(),
			)
		}
	}
}

func (r *registryInst) SetOnline(ctx context.Context, p model.Party) {
	r.put(ctx, p, true, r.opt.OnlineTTL)
}

// SetOffline overwrites rather than deletes, keeping a short-lived last-seen
// marker around before the record expires on its own.
func (r *registryInst) SetOffline(ctx context.Context, p model.Party) {
	r.put(ctx, p, false, r.opt.OfflineTTL)
}

func (r *registryInst) Get(ctx context.Context, p model.Party) (model.PresenceRecord, bool) {
	s, err := r.redis.Get(ctx, r.key(p))
	if err != nil {
		if err != instance.RedisNil {
			zap.S().Warnw("failed to read presence record",
				"error", err,
				"party", p.Tag(),
			)
		}

		return model.PresenceRecord{}, false
	}

	rec := model.PresenceRecord{}
	if err := json.UnmarshalFromString(s, &rec); err != nil {
		return model.PresenceRecord{}, false
	}

	return rec, true
}
