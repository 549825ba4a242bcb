package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/instance"
	"github.com/go-redis/redis/v8"
)

// MemoryRedis is an in-process stand-in for the ephemeral store. It honors
// TTLs lazily on read and records them so tests can assert on expiry choices
// without sleeping.
type MemoryRedis struct {
	mtx     sync.Mutex
	values  map[string]memEntry
	hashes  map[string]map[string]string
	lists   map[string][]string
	ttls    map[string]time.Duration
	pubsubs map[string][]chan<- string
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryRedis() *MemoryRedis {
	return &MemoryRedis{
		values:  map[string]memEntry{},
		hashes:  map[string]map[string]string{},
		lists:   map[string][]string{},
		ttls:    map[string]time.Duration{},
		pubsubs: map[string][]chan<- string{},
	}
}

func (m *MemoryRedis) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryRedis) RawClient() redis.UniversalClient {
	return nil
}

func (m *MemoryRedis) ComposeKey(svc string, args ...string) instance.RedisKey {
	return instance.RedisKey(fmt.Sprintf("deskhive:%s:%s", svc, strings.Join(args, ":")))
}

func (m *MemoryRedis) Get(ctx context.Context, key instance.RedisKey) (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	e, ok := m.values[key.String()]
	if !ok || time.Now().After(e.expiresAt) {
		return "", instance.RedisNil
	}

	return e.value, nil
}

func (m *MemoryRedis) SetEX(ctx context.Context, key instance.RedisKey, value string, ttl time.Duration) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.values[key.String()] = memEntry{value: value, expiresAt: time.Now().Add(ttl)}
	m.ttls[key.String()] = ttl

	return nil
}

func (m *MemoryRedis) Del(ctx context.Context, key instance.RedisKey) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.values, key.String())
	delete(m.hashes, key.String())
	delete(m.lists, key.String())
	delete(m.ttls, key.String())

	return nil
}

func (m *MemoryRedis) HSetEX(ctx context.Context, key instance.RedisKey, field string, value string, ttl time.Duration) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	h, ok := m.hashes[key.String()]
	if !ok {
		h = map[string]string{}
		m.hashes[key.String()] = h
	}

	h[field] = value
	m.ttls[key.String()] = ttl

	return nil
}

func (m *MemoryRedis) RPushEX(ctx context.Context, key instance.RedisKey, value string, ttl time.Duration) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.lists[key.String()] = append(m.lists[key.String()], value)
	m.ttls[key.String()] = ttl

	return nil
}

func (m *MemoryRedis) Publish(ctx context.Context, key instance.RedisKey, value string) error {
	m.mtx.Lock()
	subs := append([]chan<- string{}, m.pubsubs[key.String()]...)
	m.mtx.Unlock()

	for _, ch := range subs {
		ch <- value
	}

	return nil
}

func (m *MemoryRedis) Subscribe(ctx context.Context, ch chan<- string, keys ...instance.RedisKey) {
	m.mtx.Lock()
	for _, k := range keys {
		m.pubsubs[k.String()] = append(m.pubsubs[k.String()], ch)
	}
	m.mtx.Unlock()

	<-ctx.Done()
}

// HGet reads a hash field directly, for assertions.
func (m *MemoryRedis) HGet(key instance.RedisKey, field string) (string, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	h, ok := m.hashes[key.String()]
	if !ok {
		return "", false
	}

	v, ok := h[field]

	return v, ok
}

// List returns a list key's contents, for assertions.
func (m *MemoryRedis) List(key instance.RedisKey) []string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return append([]string{}, m.lists[key.String()]...)
}

// TTLOf returns the ttl most recently written for the key.
func (m *MemoryRedis) TTLOf(key instance.RedisKey) (time.Duration, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	d, ok := m.ttls[key.String()]

	return d, ok
}

// Exists reports whether any state remains under the key.
func (m *MemoryRedis) Exists(key instance.RedisKey) bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if _, ok := m.values[key.String()]; ok {
		return true
	}

	if _, ok := m.hashes[key.String()]; ok {
		return true
	}

	_, ok := m.lists[key.String()]

	return ok
}

// EventSink records dispatched events instead of publishing them.
type EventSink struct {
	mtx     sync.Mutex
	records []SunkEvent
}

type SunkEvent struct {
	Group   string
	Message events.Message[json.RawMessage]
}

func NewEventSink() *EventSink {
	return &EventSink{}
}

func (s *EventSink) Dispatch(ctx context.Context, group string, msg events.Message[json.RawMessage]) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.records = append(s.records, SunkEvent{Group: group, Message: msg})

	return nil
}

func (s *EventSink) Subscribe(ctx context.Context, ch chan<- events.Dispatch) {
	<-ctx.Done()
}

func (s *EventSink) Events() []SunkEvent {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return append([]SunkEvent{}, s.records...)
}

// ByType returns the recorded events of one type, in order.
func (s *EventSink) ByType(t events.EventType) []SunkEvent {
	out := []SunkEvent{}

	for _, e := range s.Events() {
		if e.Message.Type == t {
			out = append(out, e)
		}
	}

	return out
}

func (s *EventSink) Reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.records = nil
}

// NotifierRecorder captures notification jobs instead of publishing them.
type NotifierRecorder struct {
	mtx    sync.Mutex
	InApp  []model.Notification
	Chat   []model.Notification
	Web    []model.Notification
	FCM    []model.Notification
	IsDown bool
}

func NewNotifierRecorder() *NotifierRecorder {
	return &NotifierRecorder{}
}

func (n *NotifierRecorder) SendInAppNotification(ctx context.Context, notif model.Notification) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.InApp = append(n.InApp, notif)
}

func (n *NotifierRecorder) SendChatNotification(ctx context.Context, notif model.Notification) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.Chat = append(n.Chat, notif)
}

func (n *NotifierRecorder) SendWebPush(ctx context.Context, notif model.Notification) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.Web = append(n.Web, notif)
}

func (n *NotifierRecorder) SendFCMPush(ctx context.Context, notif model.Notification) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.FCM = append(n.FCM, notif)
}

func (n *NotifierRecorder) Connected() bool {
	return !n.IsDown
}
