package notification

import (
	"context"
	"log/slog"
)

// logMailer writes emails to the log instead of sending them.
type logMailer struct {
	log *slog.Logger
}

// NewLogMailer creates a mailer for development that only logs.
func NewLogMailer(log *slog.Logger) Mailer {
	return &logMailer{log: log}
}

func (m *logMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	m.log.Info("DUMMY SEND: email would be sent", "to", to, "subject", subject, "body", textBody)
	return nil
}
