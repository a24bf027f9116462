package artifacts

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/ai"
	"github.com/larinai/larinai/internal/pkg/apperr"
)

const maxEmailLength = 20000

// DraftReply writes a reply to emailText and charges the activation's price.
func (s *Service) DraftReply(ctx context.Context, userID string, activationID uint, emailText, tone string) (string, error) {
	const op = "artifacts.DraftReply"

	emailText = strings.TrimSpace(emailText)
	if emailText == "" || len(emailText) > maxEmailLength {
		return "", apperr.New(apperr.InvalidInput, op, "email text must be 1 to 20000 characters")
	}
	if !ai.ValidTone(tone) {
		return "", apperr.New(apperr.InvalidInput, op, "unsupported tone")
	}
	a, err := s.activation(ctx, op, userID, activationID, models.FunctionKindEmailResponse)
	if err != nil {
		return "", err
	}
	if err := s.requireCredit(ctx, op, userID, a.Function.PriceEUR); err != nil {
		return "", err
	}

	draft, err := s.assistant.DraftEmailReply(ctx, emailText, tone)
	if err != nil {
		log.Errorf("[Artifacts] Draft for activation %d failed: %v", activationID, err)
		return "", apperr.Wrap(apperr.UpstreamFailure, op, "draft service unavailable", err)
	}
	s.charge(ctx, a, "Email draft", a.ID)
	return draft, nil
}
