package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"leadmatch_backend/internal/alerts/repository"

	gomail "github.com/wneessen/go-mail"
)

// Channel delivers an alert to one transport. The dashboard channel has no
// implementation here: persisting the alert row is the delivery.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, alert repository.Alert, recipients []string) error
}

// SMTPChannel delivers alerts as plain-text email over a direct SMTP
// connection via go-mail.
type SMTPChannel struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

func NewSMTPChannel(host string, port int, username, password, fromEmail string) *SMTPChannel {
	return &SMTPChannel{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
	}
}

func (c *SMTPChannel) Name() string { return "email" }

func (c *SMTPChannel) Deliver(ctx context.Context, alert repository.Alert, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(c.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(fmt.Sprintf("[%s] %s", alert.Priority, alert.Title))
	msg.SetBodyString(gomail.TypeTextPlain, alert.Message)

	client, err := gomail.NewClient(c.host,
		gomail.WithPort(c.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(c.username),
		gomail.WithPassword(c.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// NoopChannel stands in for any channel that is not configured. Delivery
// succeeds silently.
type NoopChannel struct {
	name string
}

func NewNoopChannel(name string) *NoopChannel { return &NoopChannel{name: name} }

func (c *NoopChannel) Name() string { return c.name }

func (c *NoopChannel) Deliver(context.Context, repository.Alert, []string) error { return nil }
