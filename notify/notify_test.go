package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/jrsteele09/go-pm-server/notify"
)

func TestRenderWelcome_EscapesName(t *testing.T) {
	c, err := notify.RenderWelcome("Project Hub", "<b>Eve</b>")
	require.NoError(t, err)
	require.Equal(t, "Welcome to Project Hub", c.Subject)
	require.Contains(t, c.HTML, "Hello &lt;b&gt;Eve&lt;/b&gt;,")
	require.Contains(t, c.HTML, "Project Hub Team")
}

func TestRenderPasswordReset(t *testing.T) {
	link := "http://localhost:5173/reset-password?token=abc.def.ghi"
	c, err := notify.RenderPasswordReset("Project Hub", link, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "Password Reset Request", c.Subject)
	require.Contains(t, c.HTML, `href="`+link+`"`)
	require.Contains(t, c.HTML, "This link will expire in 1 hour.")

	c, err = notify.RenderPasswordReset("Project Hub", link, 30*time.Minute)
	require.NoError(t, err)
	require.Contains(t, c.HTML, "expire in 30 minutes.")
}

func TestNewSMTPNotifier_RequiresHostAndFrom(t *testing.T) {
	_, err := notify.NewSMTPNotifier(notify.SMTPConfig{From: "noreply@example.com"})
	require.Error(t, err)
	_, err = notify.NewSMTPNotifier(notify.SMTPConfig{Host: "smtp.example.com"})
	require.Error(t, err)
}

func TestSMTPNotifier_BuildsMessages(t *testing.T) {
	var sent []*mail.Msg
	n, err := notify.NewSMTPNotifier(
		notify.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"},
		notify.WithAppName("Project Hub"),
		notify.WithSendFunc(func(_ context.Context, msg *mail.Msg) error {
			sent = append(sent, msg)
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, n.SendWelcome(context.Background(), "jane@example.com", "Jane"))
	require.NoError(t, n.SendPasswordReset(context.Background(), "jane@example.com", "http://x/reset-password?token=t"))
	require.Len(t, sent, 2)

	rcpts, err := sent[0].GetRecipients()
	require.NoError(t, err)
	require.Equal(t, []string{"jane@example.com"}, rcpts)
	require.Equal(t, []string{"Welcome to Project Hub"}, sent[0].GetGenHeader(mail.HeaderSubject))
	require.Equal(t, []string{"Password Reset Request"}, sent[1].GetGenHeader(mail.HeaderSubject))
}

func TestSMTPNotifier_PropagatesSendErrors(t *testing.T) {
	n, err := notify.NewSMTPNotifier(
		notify.SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"},
		notify.WithSendFunc(func(context.Context, *mail.Msg) error { return errors.New("connection refused") }),
	)
	require.NoError(t, err)

	err = n.SendWelcome(context.Background(), "jane@example.com", "Jane")
	require.ErrorContains(t, err, "connection refused")

	err = n.SendWelcome(context.Background(), "not-an-address", "Jane")
	require.Error(t, err)
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := notify.LogNotifier{}
	require.NoError(t, n.SendWelcome(context.Background(), "a@example.com", "A"))
	require.NoError(t, n.SendPasswordReset(context.Background(), "a@example.com", "link"))
}
