package instance

import (
	"context"

	"github.com/deskhive/api/data/model"
)

// Notifier hands delivery jobs to the notification pipeline. Every method is
// best-effort: failures are logged and swallowed, never surfaced to the
// action that triggered the notification.
type Notifier interface {
	SendInAppNotification(ctx context.Context, n model.Notification)
	SendChatNotification(ctx context.Context, n model.Notification)
	SendWebPush(ctx context.Context, n model.Notification)
	SendFCMPush(ctx context.Context, n model.Notification)

	Connected() bool
}
