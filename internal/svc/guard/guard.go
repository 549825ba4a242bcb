package guard

import (
	"fmt"
	"time"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Guard applies payload size bounds and per-identity rate windows before an
// action reaches its handler. Counters are process-local: a client reconnecting
// to another process gets a fresh window, which is an accepted trade for
// keeping the hot path off the network.
type Guard interface {
	ValidatePayload(data interface{}, maxBytes int) errors.APIError
	TestCallRate(actor model.Party) bool
	TestTyping(actor model.Party, conversationID string) bool
}

type Options struct {
	CallRateLimit     int
	CallRateWindow    time.Duration
	TypingMinInterval time.Duration
}

func New(opt Options) Guard {
	return &guardInst{
		opt:     opt,
		windows: cache.New(opt.CallRateWindow, time.Minute*5),
		typing:  cache.New(opt.TypingMinInterval, time.Minute*5),
	}
}

type guardInst struct {
	opt     Options
	windows *cache.Cache
	typing  *cache.Cache
}

// ValidatePayload re-encodes the decoded payload and bounds its wire size.
// Measuring the re-encoded form keeps the bound stable regardless of how much
// whitespace or key reordering the client sent.
func (g *guardInst) ValidatePayload(data interface{}, maxBytes int) errors.APIError {
	b, err := json.Marshal(data)
	if err != nil {
		return errors.ErrInvalidPayload().SetDetail("%s", err.Error())
	}

	if len(b) > maxBytes {
		return errors.ErrPayloadTooLarge().SetFields(errors.Fields{
			"size":  len(b),
			"limit": maxBytes,
		})
	}

	return nil
}

// TestCallRate counts call initiations in a fixed window keyed by identity.
// Returns false once the window's budget is spent.
func (g *guardInst) TestCallRate(actor model.Party) bool {
	key := fmt.Sprintf("call:%s", actor.Tag())

	if err := g.windows.Add(key, int64(1), g.opt.CallRateWindow); err == nil {
		return g.opt.CallRateLimit >= 1
	}

	n, err := g.windows.IncrementInt64(key, 1)
	if err != nil {
		// The window expired between Add and Increment, start a new one.
		g.windows.Set(key, int64(1), g.opt.CallRateWindow)

		return g.opt.CallRateLimit >= 1
	}

	return n <= int64(g.opt.CallRateLimit)
}

// TestTyping gates typing indicator relays to at most one per interval per
// conversation. Excess indicators are dropped without error.
func (g *guardInst) TestTyping(actor model.Party, conversationID string) bool {
	key := fmt.Sprintf("typing:%s:%s", actor.Tag(), conversationID)

	return g.typing.Add(key, struct{}{}, g.opt.TypingMinInterval) == nil
}
