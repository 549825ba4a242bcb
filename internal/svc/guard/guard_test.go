package guard

import (
	"strings"
	"testing"
	"time"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/errors"
	"github.com/deskhive/api/internal/testutil"
)

func newTestGuard() Guard {
	return New(Options{
		CallRateLimit:     3,
		CallRateWindow:    time.Millisecond * 200,
		TypingMinInterval: time.Millisecond * 100,
	})
}

func TestValidatePayload(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	type body struct {
		Text string `json:"text"`
	}

	small := body{Text: "hello"}
	testutil.IsNil(t, g.ValidatePayload(small, 1024), "small payload accepted")

	big := body{Text: strings.Repeat("x", 2048)}
	err := g.ValidatePayload(big, 1024)
	testutil.IsNotNil(t, err, "oversized payload rejected")
	testutil.Assert(t, errors.ErrPayloadTooLarge().Code(), err.Code(), "error code")
}

func TestValidatePayloadBoundary(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	type body struct {
		Text string `json:"text"`
	}

	// {"text":""} is 11 bytes of overhead; a payload landing exactly on the
	// limit passes, one byte over fails.
	exact := body{Text: strings.Repeat("a", 1024-11)}
	testutil.IsNil(t, g.ValidatePayload(exact, 1024), "payload at the limit accepted")

	over := body{Text: strings.Repeat("a", 1024-10)}
	testutil.IsNotNil(t, g.ValidatePayload(over, 1024), "payload one byte over rejected")
}

func TestCallRateWindow(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	actor := model.Party{UserID: "u1", UserKind: model.UserKindStudent}

	for i := 0; i < 3; i++ {
		testutil.Assert(t, true, g.TestCallRate(actor), "call inside the budget")
	}

	testutil.Assert(t, false, g.TestCallRate(actor), "fourth call rejected")

	// Another identity has its own window.
	other := model.Party{UserID: "u2", UserKind: model.UserKindStudent}
	testutil.Assert(t, true, g.TestCallRate(other), "other identity unaffected")

	// The window expires and the budget resets.
	time.Sleep(time.Millisecond * 250)
	testutil.Assert(t, true, g.TestCallRate(actor), "new window after expiry")
}

func TestTypingGate(t *testing.T) {
	t.Parallel()

	g := newTestGuard()

	actor := model.Party{UserID: "u1", UserKind: model.UserKindStudent}

	testutil.Assert(t, true, g.TestTyping(actor, "conv1"), "first indicator relayed")
	testutil.Assert(t, false, g.TestTyping(actor, "conv1"), "second indicator dropped")
	testutil.Assert(t, true, g.TestTyping(actor, "conv2"), "other conversation unaffected")

	time.Sleep(time.Millisecond * 150)
	testutil.Assert(t, true, g.TestTyping(actor, "conv1"), "relayed again after interval")
}
