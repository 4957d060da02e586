// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Email is a single outgoing message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email. Callers treat failures as best-effort: they log the
// error and never roll back the write that triggered the message.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// SMTP sends through an SMTP relay (Mailpit locally, SES or similar in prod).
type SMTP struct {
	cfg Config
	log *zap.Logger
}

// NewSMTP returns an SMTP sender.
func NewSMTP(cfg Config, logger *zap.Logger) *SMTP {
	return &SMTP{cfg: cfg, log: logger}
}

var ErrNoRecipient = errors.New("mailer: missing recipient")

// Send builds a multipart message and dials the relay. gomail has no context
// support; ctx is checked before dialing.
func (s *SMTP) Send(ctx context.Context, e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, s.cfg.FromName))
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	if e.TextBody != "" {
		m.SetBody("text/plain", e.TextBody)
		if e.HTMLBody != "" {
			m.AddAlternative("text/html", e.HTMLBody)
		}
	} else {
		m.SetBody("text/html", e.HTMLBody)
	}

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	if err := d.DialAndSend(m); err != nil {
		s.log.Warn("smtp send failed",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
		return err
	}
	s.log.Debug("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}

// LogSender only logs messages. Used in dev when no SMTP host is configured.
type LogSender struct {
	Log *zap.Logger
}

func (l LogSender) Send(_ context.Context, e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	l.Log.Info("email (not sent)",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("text", e.TextBody))
	return nil
}
