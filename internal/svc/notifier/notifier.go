package notifier

import (
	"context"
	"fmt"

	"github.com/deskhive/api/data/model"
	"github.com/deskhive/api/internal/instance"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Options struct {
	URI           string
	SubjectPrefix string
}

// New connects to NATS and returns a notifier publishing delivery jobs for
// the downstream notification workers (in-app feed, chat digests, web push,
// FCM). The realtime core only enqueues; delivery happens elsewhere.
func New(ctx context.Context, o Options) (instance.Notifier, error) {
	nc, err := nats.Connect(o.URI,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		nc.Close()
	}()

	return &notifierInst{
		nc:     nc,
		prefix: o.SubjectPrefix,
	}, nil
}

type notifierInst struct {
	nc     *nats.Conn
	prefix string
}

func (n *notifierInst) publish(subject string, notif model.Notification) {
	b, err := json.Marshal(notif)
	if err != nil {
		zap.S().Errorw("failed to encode notification",
			"error", err,
			"subject", subject,
		)

		return
	}

	if err := n.nc.Publish(fmt.Sprintf("%s.%s", n.prefix, subject), b); err != nil {
		zap.S().Warnw("failed to publish notification",
			"error", err,
			"subject", subject,
			"target", notif.Target.Tag(),
		)
	}
}

func (n *notifierInst) SendInAppNotification(ctx context.Context, notif model.Notification) {
	n.publish("inapp", notif)
}

func (n *notifierInst) SendChatNotification(ctx context.Context, notif model.Notification) {
	n.publish("chat", notif)
}

func (n *notifierInst) SendWebPush(ctx context.Context, notif model.Notification) {
	n.publish("push.web", notif)
}

func (n *notifierInst) SendFCMPush(ctx context.Context, notif model.Notification) {
	n.publish("push.fcm", notif)
}

func (n *notifierInst) Connected() bool {
	return n.nc.IsConnected()
}
