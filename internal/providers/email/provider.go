package email

import (
	"context"
	"errors"
)

// Provider delivers a rendered HTML message.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

var ErrNoRecipients = errors.New("email_no_recipients")

// NoOpProvider accepts every message and delivers nothing.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	return nil
}
