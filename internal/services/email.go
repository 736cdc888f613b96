// SendGrid email delivery for alert notifications
package services

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/omrelabs/omre/internal/shared"
)

// Mailer delivers transactional email. The zero-config deployment runs
// without one; alert emails are simply skipped.
type Mailer interface {
	Send(ctx context.Context, toEmail, subject, plainText string) error
}

// SendGridMailer implements [Mailer] over the SendGrid v3 API.
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer creates a mailer with the given API key and sender.
func NewSendGridMailer(apiKey, fromEmail, fromName string) (*SendGridMailer, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, fmt.Errorf("%w: sendgrid key and sender are required", shared.ErrMissingCredentials)
	}

	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}, nil
}

// Send delivers one plain text email.
func (m *SendGridMailer) Send(ctx context.Context, toEmail, subject, plainText string) error {
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(m.from, subject, to, plainText, "")

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	if response.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid returned status %d", shared.ErrAPIRequest, response.StatusCode)
	}

	return nil
}
