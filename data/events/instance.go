package events

import (
	"context"
	"encoding/json"

	"github.com/deskhive/api/internal/instance"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Dispatch wraps a message with the group it is addressed to so any process
// subscribed to the fanout channel can deliver it to its local members.
type Dispatch struct {
	Group   string                   `json:"g"`
	Message Message[json.RawMessage] `json:"m"`
}

type Instance interface {
	Dispatch(ctx context.Context, group string, msg Message[json.RawMessage]) error
	Subscribe(ctx context.Context, ch chan<- Dispatch)
}

type eventsInst struct {
	redis instance.Redis
	key   instance.RedisKey
}

func NewPublisher(redis instance.Redis) Instance {
	return &eventsInst{
		redis: redis,
		key:   redis.ComposeKey("events", "fanout"),
	}
}

func (e *eventsInst) Dispatch(ctx context.Context, group string, msg Message[json.RawMessage]) error {
	b, err := jsonCodec.Marshal(Dispatch{Group: group, Message: msg})
	if err != nil {
		return err
	}

	return e.redis.Publish(ctx, e.key, string(b))
}

func (e *eventsInst) Subscribe(ctx context.Context, ch chan<- Dispatch) {
	raw := make(chan string, 64)
	go e.redis.Subscribe(ctx, raw, e.key)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-raw:
			var d Dispatch
			if err := jsonCodec.UnmarshalFromString(payload, &d); err != nil {
				zap.S().Warnw("dropping malformed fanout payload",
					"error", err,
				)

				continue
			}

			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}
