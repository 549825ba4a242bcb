package presence

import (
	"context"
	"testing"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/testutil"
)

func newFixture() (Registry, *testutil.MemoryRedis, *testutil.EventSink) {
	redis := testutil.NewMemoryRedis()
	sink := testutil.NewEventSink()

	reg := New(redis, sink, Options{
		OnlineTTL:  time.Hour,
		OfflineTTL: time.Minute * 5,
	})

	return reg, redis, sink
}

func TestSetOnline(t *testing.T) {
	t.Parallel()

	reg, redis, sink := newFixture()
	p := model.Party{UserID: "stu1", UserKind: model.UserKindStudent}

	reg.SetOnline(context.Background(), p)

	rec, ok := reg.Get(context.Background(), p)
	testutil.Assert(t, true, ok, "record exists")
	testutil.Assert(t, true, rec.Online, "record is online")
	testutil.IsNotNil(t, rec.LastSeen, "last seen is set")

	ttl, _ := redis.TTLOf(redis.ComposeKey("presence", "student", "stu1"))
	testutil.Assert(t, time.Hour, ttl, "online ttl")

	updates := sink.ByType(events.EventTypePresenceUpdate)
	testutil.Assert(t, 2, len(updates), "both role groups told")

	groups := map[string]bool{}
	for _, u := range updates {
		groups[u.Group] = true
	}

	testutil.Assert(t, true, groups["students"], "students group told")
	testutil.Assert(t, true, groups["admins"], "admins group told")
}

func TestSetOffline(t *testing.T) {
	t.Parallel()

	reg, redis, sink := newFixture()
	p := model.Party{UserID: "adm1", UserKind: model.UserKindAdmin}

	reg.SetOnline(context.Background(), p)
	sink.Reset()

	reg.SetOffline(context.Background(), p)

	rec, ok := reg.Get(context.Background(), p)
	testutil.Assert(t, true, ok, "record still readable")
	testutil.Assert(t, false, rec.Online, "record is offline")

	ttl, _ := redis.TTLOf(redis.ComposeKey("presence", "admin", "adm1"))
	testutil.Assert(t, time.Minute*5, ttl, "offline ttl is shorter")

	updates := sink.ByType(events.EventTypePresenceUpdate)
	testutil.Assert(t, 2, len(updates), "offline broadcast to both groups")

	p0, err := events.ConvertMessage[events.PresenceDispatchPayload](updates[0].Message)
	testutil.IsNil(t, err, "payload decodes")
	testutil.Assert(t, false, p0.Data.Online, "payload says offline")
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	reg, _, _ := newFixture()

	_, ok := reg.Get(context.Background(), model.Party{UserID: "nobody", UserKind: model.UserKindStudent})
	testutil.Assert(t, false, ok, "no record for unknown party")
}
