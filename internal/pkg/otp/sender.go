package otp

import (
	"context"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/mail"
)

// MailSender renders the code email and hands it to a mailer.
type MailSender struct {
	mailer mail.Mailer
}

func NewMailSender(m mail.Mailer) *MailSender {
	return &MailSender{mailer: m}
}

func (s *MailSender) SendOTP(ctx context.Context, email, code string) error {
	html, err := mail.Render(ctx, mail.OTPEmail(code, models.OTPValidity))
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, mail.Message{
		To:      email,
		Subject: "Il tuo codice di verifica LarinAI",
		HTML:    html,
	})
}
