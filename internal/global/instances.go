package global

import (
	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/mutate"
	"github.com/deskhive/api/data/query"
	"github.com/deskhive/api/internal/instance"
	"github.com/deskhive/api/internal/svc/auth"
	"github.com/deskhive/api/internal/svc/calls"
	"github.com/deskhive/api/internal/svc/chat"
	"github.com/deskhive/api/internal/svc/guard"
	"github.com/deskhive/api/internal/svc/presence"
)

type Instances struct {
	Mongo      instance.Mongo
	Redis      instance.Redis
	Notifier   instance.Notifier
	Prometheus instance.Prometheus
	Events     events.Instance

	Query  *query.Query
	Mutate *mutate.Mutate

	Auth     auth.Authorizer
	Guard    guard.Guard
	Presence presence.Registry
	Chat     chat.Relay
	Calls    calls.Signaler
}
