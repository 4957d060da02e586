package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/taskhub/internal/app/system/mailer"
)

// ErrMailDown is returned by a MailRecorder with Fail set.
var ErrMailDown = errors.New("mail transport unavailable")

// MailRecorder is a mailer.Sender that keeps sent messages in memory.
type MailRecorder struct {
	mu   sync.Mutex
	Fail bool
	sent []mailer.Email
}

func (m *MailRecorder) Send(_ context.Context, e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrMailDown
	}
	m.sent = append(m.sent, e)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *MailRecorder) Sent() []mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Email(nil), m.sent...)
}
