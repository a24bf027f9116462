// Package mail sends transactional emails through Resend or SMTP.
package mail

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/internal/pkg/env"
)

const (
	DriverResend = "resend"
	DriverSMTP   = "smtp"
	DriverLog    = "log"
)

var ErrInvalidRecipient = errors.New("invalid recipient")

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" || !strings.Contains(m.To, "@") {
		return ErrInvalidRecipient
	}
	return nil
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewFromEnv picks the driver from MAIL_DRIVER. Without a driver it uses
// Resend when RESEND_API_KEY is set and falls back to SMTP.
func NewFromEnv() Mailer {
	sender := env.GetEnv("MAIL_FROM", "LarinAI <no-reply@larin.ai>")
	driver := strings.ToLower(env.GetEnv("MAIL_DRIVER", ""))
	if driver == "" {
		driver = DriverSMTP
		if env.GetEnv("RESEND_API_KEY", "") != "" {
			driver = DriverResend
		}
	}

	switch driver {
	case DriverResend:
		log.Infof("[Mail] Using Resend driver")
		return NewResendMailer(env.GetEnv("RESEND_API_KEY", ""), sender)
	case DriverLog:
		log.Infof("[Mail] Using log driver, emails are not delivered")
		return LogMailer{}
	default:
		log.Infof("[Mail] Using SMTP driver")
		return NewSMTPMailer(SMTPConfigFromEnv(sender))
	}
}

// LogMailer only logs outgoing messages. Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	log.Infof("[Mail] to=%s subject=%q (%d bytes)", msg.To, msg.Subject, len(msg.HTML))
	return nil
}
