package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jabakyo/next-class/internal/config"
	mail "github.com/xhit/go-simple-mail/v2"
)

const smtpTimeout = 10 * time.Second

type smtpMailer struct {
	server *mail.SMTPServer
	from   string
	log    *slog.Logger
}

// NewSMTPMailer sends through cfg.Host. Port 465 uses implicit TLS, an
// unauthenticated port 25 relay is plain, and anything else uses STARTTLS.
func NewSMTPMailer(cfg config.SMTPConfig, log *slog.Logger) Mailer {
	server := mail.NewSMTPClient()
	server.Host = cfg.Host
	server.Port = cfg.Port
	server.Username = cfg.Username
	server.Password = cfg.Password
	server.Encryption = encryptionFor(cfg)
	server.KeepAlive = false
	server.ConnectTimeout = smtpTimeout
	server.SendTimeout = smtpTimeout
	if cfg.Username == "" {
		server.Authentication = mail.AuthNone
	}

	return &smtpMailer{server: server, from: cfg.From, log: log}
}

func encryptionFor(cfg config.SMTPConfig) mail.Encryption {
	switch {
	case cfg.Port == 465:
		return mail.EncryptionSSLTLS
	case cfg.Port == 25 && cfg.Username == "":
		return mail.EncryptionNone
	default:
		return mail.EncryptionSTARTTLS
	}
}

// Send opens one connection per message; the queue already serializes
// delivery and retries failures.
func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMSG()
	msg.SetFrom(m.from).AddTo(to).SetSubject(subject)
	switch {
	case htmlBody != "" && textBody != "":
		msg.SetBody(mail.TextPlain, textBody)
		msg.AddAlternative(mail.TextHTML, htmlBody)
	case htmlBody != "":
		msg.SetBody(mail.TextHTML, htmlBody)
	default:
		msg.SetBody(mail.TextPlain, textBody)
	}
	if msg.Error != nil {
		return fmt.Errorf("build message: %w", msg.Error)
	}

	client, err := m.server.Connect()
	if err != nil {
		return fmt.Errorf("smtp connect %s: %w", m.server.Host, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		client.SendTimeout = time.Until(deadline)
	}
	if err := msg.Send(client); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m.log.Debug("email sent", "to", to, "subject", subject)
	return nil
}
