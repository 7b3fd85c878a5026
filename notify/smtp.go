package notify

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

var _ Notifier = (*SMTPNotifier)(nil)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends HTML email through an authenticated SMTP relay.
type SMTPNotifier struct {
	cfg         SMTPConfig
	appName     string
	resetExpiry time.Duration
	timeout     time.Duration
	send        func(ctx context.Context, msg *mail.Msg) error
}

type SMTPOption func(*SMTPNotifier)

func WithAppName(name string) SMTPOption {
	return func(n *SMTPNotifier) {
		n.appName = name
	}
}

// WithResetExpiry sets the lifetime quoted in reset emails.
func WithResetExpiry(d time.Duration) SMTPOption {
	return func(n *SMTPNotifier) {
		n.resetExpiry = d
	}
}

func WithSendTimeout(d time.Duration) SMTPOption {
	return func(n *SMTPNotifier) {
		n.timeout = d
	}
}

// WithSendFunc replaces the SMTP transport.
func WithSendFunc(send func(ctx context.Context, msg *mail.Msg) error) SMTPOption {
	return func(n *SMTPNotifier) {
		n.send = send
	}
}

func NewSMTPNotifier(cfg SMTPConfig, options ...SMTPOption) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("[NewSMTPNotifier] SMTP host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("[NewSMTPNotifier] from address is required")
	}
	n := &SMTPNotifier{
		cfg:         cfg,
		appName:     "Project Hub",
		resetExpiry: time.Hour,
		timeout:     15 * time.Second,
	}
	for _, opt := range options {
		opt(n)
	}
	if n.send == nil {
		n.send = n.dialAndSend
	}
	return n, nil
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, email, name string) error {
	content, err := RenderWelcome(n.appName, name)
	if err != nil {
		return err
	}
	return n.deliver(ctx, email, content)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, email, link string) error {
	content, err := RenderPasswordReset(n.appName, link, n.resetExpiry)
	if err != nil {
		return err
	}
	return n.deliver(ctx, email, content)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to string, content Content) error {
	msg, err := n.buildMessage(to, content)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	if err := n.send(ctx, msg); err != nil {
		return errors.Wrapf(err, "[SMTPNotifier.deliver] %q to %s", content.Subject, to)
	}
	return nil
}

func (n *SMTPNotifier) buildMessage(to string, content Content) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, errors.Wrap(err, "[SMTPNotifier.buildMessage] from")
	}
	if err := msg.To(to); err != nil {
		return nil, errors.Wrap(err, "[SMTPNotifier.buildMessage] to")
	}
	msg.Subject(content.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, content.HTML)
	return msg, nil
}

func (n *SMTPNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(n.timeout),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return errors.Wrap(err, "[SMTPNotifier.dialAndSend] client")
	}
	return client.DialAndSendWithContext(ctx, msg)
}
