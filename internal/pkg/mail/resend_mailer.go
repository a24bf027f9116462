package mail

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"github.com/resend/resend-go/v2"
)

type ResendMailer struct {
	client *resend.Client
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if m.client == nil || m.client.ApiKey == "" {
		return errors.New("resend api key not configured")
	}

	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		log.Errorf("[Mail] Resend send to %s failed: %v", msg.To, err)
		return err
	}
	log.Infof("[Mail] Email %s sent to %s via Resend", sent.Id, msg.To)
	return nil
}
