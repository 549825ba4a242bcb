package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/instance"
	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Query struct {
	mongo instance.Mongo
	redis instance.Redis
	c     *cache.Cache
	mx    sync.Map
}

func New(mongoInst instance.Mongo, redisInst instance.Redis) *Query {
	return &Query{
		mongo: mongoInst,
		redis: redisInst,
		c:     cache.New(time.Minute*1, time.Minute*5),
	}
}

func (q *Query) mtx(tag string) *sync.Mutex {
	val, _ := q.mx.LoadOrStore(tag, &sync.Mutex{})
	return val.(*sync.Mutex)
}

func (q *Query) key(tag string) instance.RedisKey {
	return q.redis.ComposeKey("common", fmt.Sprintf("cache:%s", tag))
}

// getFromMemCache retrieve a cached item
func (q *Query) getFromMemCache(ctx context.Context, key instance.RedisKey, i interface{}) bool {
	var (
		s   string
		err error
	)
	v, ok := q.c.Get(key.String())

	if ok {
		s = v.(string)
	} else {
		s, err = q.redis.Get(ctx, key)
	}
	if len(s) > 0 {
		if err := multierror.Append(err, json.UnmarshalFromString(s, i)).ErrorOrNil(); err != nil {
			if err != instance.RedisNil {
				zap.S().Errorw("redis, failed to retrieve a cache query item",
					"error", err,
					"key", key,
				)
			}
			return false
		} else {
			return true
		}
	}
	return false
}

// setInMemCache sets an item into the cache
func (q *Query) setInMemCache(ctx context.Context, key instance.RedisKey, i interface{}, ex time.Duration) error {
	s, err := json.MarshalToString(i)
	if err == nil {
		if err = q.c.Add(key.String(), s, ex); err != nil {
			return err
		}

		if err = q.redis.SetEX(ctx, key, s, ex); err != nil {
			return err
		}
	}
	return nil
}

type QueryResult[T QueriableType] struct {
	items []T
	total int64
	err   error
}

type QueriableType interface {
	model.UserProfile | model.Conversation | model.ChatMessage | model.CallSession | model.Notification
}

func (qr *QueryResult[T]) setItems(items []T) *QueryResult[T] {
	qr.items = items
	return qr
}

func (qr *QueryResult[T]) setTotal(total int64) *QueryResult[T] {
	qr.total = total
	return qr
}

func (qr *QueryResult[T]) setError(err error) *QueryResult[T] {
	qr.err = err
	return qr
}

func (qr *QueryResult[T]) Error() error {
	return qr.err
}

func (qr *QueryResult[T]) First() (T, error) {
	var dT T

	if qr.err != nil {
		return dT, qr.err
	}
	if len(qr.items) == 0 {
		return dT, errors.ErrNoItems()
	}

	return qr.items[0], nil
}

func (qr *QueryResult[T]) Items() ([]T, error) {
	return qr.items, qr.err
}

func (qr *QueryResult[T]) Total() int64 {
	return qr.total
}

func (qr *QueryResult[T]) Empty() bool {
	return len(qr.items) == 0
}
