package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

var _ Notifier = LogNotifier{}

// LogNotifier writes notifications to the log instead of sending them.
// It is used when SMTP is not configured. Reset links are only logged when IncludeLinks is set.
type LogNotifier struct {
	IncludeLinks bool
}

func (l LogNotifier) SendWelcome(_ context.Context, email, name string) error {
	log.Info().Str("kind", KindWelcome).Str("to", email).Str("name", name).Msg("email not sent: SMTP not configured")
	return nil
}

func (l LogNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	ev := log.Info().Str("kind", KindPasswordReset).Str("to", email)
	if l.IncludeLinks {
		ev = ev.Str("link", link)
	}
	ev.Msg("email not sent: SMTP not configured")
	return nil
}
