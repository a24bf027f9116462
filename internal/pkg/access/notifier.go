package access

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/mail"
)

// MailNotifier emails staff about new requests.
type MailNotifier struct {
	mailer mail.Mailer
	to     string
}

// NewMailNotifier returns nil when no recipient is configured.
func NewMailNotifier(m mail.Mailer, to string) *MailNotifier {
	if to == "" {
		return nil
	}
	return &MailNotifier{mailer: m, to: to}
}

func (n *MailNotifier) AccessRequested(ctx context.Context, req *models.AccessRequest, userEmail, functionName string) {
	if n == nil {
		return
	}
	html, err := mail.Render(ctx, mail.AccessRequestEmail(userEmail, functionName))
	if err != nil {
		log.Warnf("[Access] Rendering request email failed: %v", err)
		return
	}
	if err := n.mailer.Send(ctx, mail.Message{To: n.to, Subject: "Nuova richiesta di accesso", HTML: html}); err != nil {
		log.Warnf("[Access] Notification for request %d failed: %v", req.ID, err)
	}
}
