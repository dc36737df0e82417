// Package mailer sends transactional email through SMTP, the Resend API, or an
// in-memory mock.
package mailer

import (
	"context"
	"fmt"
	"strings"
)

// Message is a rendered HTML email
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a message or returns the provider error. Senders do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Provider names accepted by New
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
	ProviderMock   = "mock"
)

// Options configures whichever provider New builds
type Options struct {
	Provider     string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	ResendAPIKey string
}

// New creates the Sender selected by opts.Provider
func New(opts Options) (Sender, error) {
	switch strings.ToLower(opts.Provider) {
	case ProviderSMTP:
		return NewSMTPSender(opts.SMTPHost, opts.SMTPPort, opts.SMTPUsername, opts.SMTPPassword, opts.From), nil
	case ProviderResend:
		if opts.ResendAPIKey == "" {
			return nil, fmt.Errorf("resend provider requires an API key")
		}
		return NewResendSender(opts.ResendAPIKey, opts.From), nil
	case ProviderMock, "":
		return NewMockSender(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", opts.Provider)
	}
}

func validate(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient address is empty")
	}
	if msg.Subject == "" {
		return fmt.Errorf("subject is empty")
	}
	return nil
}
