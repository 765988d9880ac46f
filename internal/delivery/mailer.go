package delivery

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Message is one outbound email.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Transport sends rendered messages. Implementations must be safe for
// concurrent use.
type Transport interface {
	// Send delivers the message, blocking until the transport accepts it
	// or the context is done.
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the SMTP transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport sends mail over SMTP with mandatory STARTTLS.
type SMTPTransport struct {
	client *mail.Client
}

var _ Transport = (*SMTPTransport)(nil)

// NewSMTPTransport creates an SMTP transport. Authentication is enabled
// only when a username is configured.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create SMTP client: %w", err)
	}

	return &SMTPTransport{client: client}, nil
}

// Send delivers the message over SMTP.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("set sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
