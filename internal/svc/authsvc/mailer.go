package authsvc

import (
	"context"

	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// Mailer delivers account emails.
type Mailer interface {
	// SendConfirmation sends the link that confirms ownership of email.
	SendConfirmation(ctx context.Context, email, link string) error
}

// LogMailer is a Mailer that writes the messages to the log instead of
// sending them. Used for local development.
type LogMailer struct {
	Log logging.Logger
}

var _ Mailer = LogMailer{} //nolint:exhaustruct

// SendConfirmation implements Mailer.SendConfirmation.
func (m LogMailer) SendConfirmation(ctx context.Context, email, link string) error {
	m.Log.InfoContext(ctx, "confirmation mail", "to", email, "link", link)

	return nil
}
