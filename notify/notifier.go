package notify

import "context"

// Notification kinds, used for logging and metrics labels.
const (
	KindWelcome       = "welcome"
	KindPasswordReset = "password_reset"
)

// Notifier delivers account emails. Callers decide whether a failure matters.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}
