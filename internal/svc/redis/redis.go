package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deskhive/api/internal/instance"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Options struct {
	Username   string
	Password   string
	Database   int
	Sentinel   bool
	Addresses  []string
	MasterName string
}

func New(ctx context.Context, o Options) (instance.Redis, error) {
	if len(o.Addresses) == 0 {
		return nil, fmt.Errorf("no redis addresses provided")
	}

	var cli redis.UniversalClient

	if o.Sentinel {
		cli = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       o.MasterName,
			SentinelAddrs:    o.Addresses,
			SentinelUsername: o.Username,
			SentinelPassword: o.Password,
			Username:         o.Username,
			Password:         o.Password,
			DB:               o.Database,
		})
	} else {
		cli = redis.NewClient(&redis.Options{
			Addr:     o.Addresses[0],
			Username: o.Username,
			Password: o.Password,
			DB:       o.Database,
		})
	}

	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &redisInst{cli: cli}, nil
}

type redisInst struct {
	cli redis.UniversalClient
}

func (r *redisInst) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

func (r *redisInst) RawClient() redis.UniversalClient {
	return r.cli
}

func (r *redisInst) ComposeKey(svc string, args ...string) instance.RedisKey {
	return instance.RedisKey(fmt.Sprintf("deskhive:%s:%s", svc, strings.Join(args, ":")))
}

func (r *redisInst) Get(ctx context.Context, key instance.RedisKey) (string, error) {
	return r.cli.Get(ctx, key.String()).Result()
}

func (r *redisInst) SetEX(ctx context.Context, key instance.RedisKey, value string, ttl time.Duration) error {
	return r.cli.SetEX(ctx, key.String(), value, ttl).Err()
}

func (r *redisInst) Del(ctx context.Context, key instance.RedisKey) error {
	return r.cli.Del(ctx, key.String()).Err()
}

func (r *redisInst) HSetEX(ctx context.Context, key instance.RedisKey, field string, value string, ttl time.Duration) error {
	p := r.cli.Pipeline()
	p.HSet(ctx, key.String(), field, value)
	p.Expire(ctx, key.String(), ttl)

	_, err := p.Exec(ctx)

	return err
}

func (r *redisInst) RPushEX(ctx context.Context, key instance.RedisKey, value string, ttl time.Duration) error {
	p := r.cli.Pipeline()
	p.RPush(ctx, key.String(), value)
	p.Expire(ctx, key.String(), ttl)

	_, err := p.Exec(ctx)

	return err
}

func (r *redisInst) Publish(ctx context.Context, key instance.RedisKey, value string) error {
	return r.cli.Publish(ctx, key.String(), value).Err()
}

// Subscribe forwards every payload published on the given keys into ch until
// the context is done. The channel is not closed on return.
func (r *redisInst) Subscribe(ctx context.Context, ch chan<- string, keys ...instance.RedisKey) {
	channels := make([]string, len(keys))
	for i, k := range keys {
		channels[i] = k.String()
	}

	sub := r.cli.Subscribe(ctx, channels...)
	defer func() {
		if err := sub.Close(); err != nil {
			zap.S().Errorw("failed to close redis subscription",
				"error", err,
			)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}

			select {
			case ch <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}
}
