package notify

import "context"

// AdminAlert is one operational notification about a generation run.
type AdminAlert struct {
	Subject string
	Body    string
	StoryID string
	UserID  string
}

// Notifier delivers operational alerts to the admin. Implementations are
// best effort: a failed delivery is logged and swallowed, never surfaced to
// the pipeline.
type Notifier interface {
	SendAdminAlert(ctx context.Context, alert AdminAlert)
	SendSuccessNotification(ctx context.Context, storyID string, durationMS int64)
}

// Noop is the notifier used when alerting is not configured.
type Noop struct{}

func (Noop) SendAdminAlert(context.Context, AdminAlert)             {}
func (Noop) SendSuccessNotification(context.Context, string, int64) {}

var _ Notifier = Noop{}
