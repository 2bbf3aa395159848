package publisher

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridPublisher sends the digest as a plain-text email through the
// SendGrid v3 API.
type SendGridPublisher struct {
	client sendClient
	from   *mail.Email
	to     []string
	logger *zap.Logger
}

func NewSendGridPublisher(apiKey, fromEmail, fromName string, to []string, logger *zap.Logger) *SendGridPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGridPublisher{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
		to:     to,
		logger: logger,
	}
}

func (p *SendGridPublisher) Publish(ctx context.Context, msg Message) error {
	m := mail.NewV3Mail()
	m.SetFrom(p.from)
	m.Subject = msg.Subject

	personalization := mail.NewPersonalization()
	for _, addr := range p.to {
		personalization.AddTos(mail.NewEmail("", addr))
	}
	m.AddPersonalizations(personalization)
	m.AddContent(mail.NewContent("text/plain", msg.Body))

	resp, err := p.client.SendWithContext(ctx, m)
	if err != nil {
		return &MailError{Provider: "sendgrid", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &MailError{Provider: "sendgrid", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, resp.Body)}
	}

	p.logger.Info("Mail sent", zap.Int("status", resp.StatusCode), zap.Strings("to", p.to))
	return nil
}
