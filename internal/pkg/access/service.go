// Package access handles function access requests and activations.
package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/publiccode"
)

const maxCodeAttempts = 5

// Notifier is told about new access requests. Delivery is best effort.
type Notifier interface {
	AccessRequested(ctx context.Context, req *models.AccessRequest, userEmail, functionName string)
}

type Service struct {
	functions   repository.FunctionRepository
	activations repository.ActivationRepository
	requests    repository.RequestRepository
	profiles    repository.ProfileRepository
	notifier    Notifier
	now         func() time.Time
	newCode     func() (string, error)
}

func NewService(repos *repository.Repositories, notifier Notifier) *Service {
	return &Service{
		functions:   repos.Function,
		activations: repos.Activation,
		requests:    repos.Request,
		profiles:    repos.Profile,
		notifier:    notifier,
		now:         time.Now,
		newCode:     publiccode.New,
	}
}

// Status is the access state of one user for one function.
type Status struct {
	Requested bool                  `json:"requested"`
	Done      bool                  `json:"done"`
	Activated bool                  `json:"activated"`
	Request   *models.AccessRequest `json:"request,omitempty"`
}

func (s *Service) function(ctx context.Context, op string, functionID uint) (*models.LarinFunction, error) {
	fn, err := s.functions.GetByID(ctx, functionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, op, "function not found")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load function", err)
	}
	return fn, nil
}

// RequestAccess records a request for the pair unless one already exists, in
// which case the existing row is returned with created false.
func (s *Service) RequestAccess(ctx context.Context, userID string, functionID uint) (*models.AccessRequest, bool, error) {
	const op = "access.RequestAccess"

	fn, err := s.function(ctx, op, functionID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.requests.FindByUserAndFunction(ctx, userID, functionID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, apperr.Wrap(apperr.InternalError, op, "failed to check existing requests", err)
	}

	pending := false
	req := &models.AccessRequest{UserID: userID, FunctionID: functionID, Done: &pending}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, false, apperr.Wrap(apperr.InternalError, op, "failed to create request", err)
	}
	log.Infof("[Access] User %s requested function %d", userID, functionID)

	if s.notifier != nil {
		email := ""
		if p, err := s.profiles.GetByID(ctx, userID); err == nil {
			email = p.Email
		}
		s.notifier.AccessRequested(ctx, req, email, fn.Name)
	}
	return req, true, nil
}

// ToggleRequestDone sets done to the target value. Repeating the same target
// is a no-op.
func (s *Service) ToggleRequestDone(ctx context.Context, requestID uint, done bool) (*models.AccessRequest, error) {
	const op = "access.ToggleRequestDone"

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, op, "request not found")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load request", err)
	}
	if err := s.requests.SetDone(ctx, requestID, done); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to update request", err)
	}
	req.Done = &done
	return req, nil
}

// CheckRequests reports the request and activation state for the pair.
func (s *Service) CheckRequests(ctx context.Context, userID string, functionID uint) (*Status, error) {
	const op = "access.CheckRequests"

	status := &Status{}
	req, err := s.requests.FindByUserAndFunction(ctx, userID, functionID)
	switch {
	case err == nil:
		status.Requested = true
		status.Done = req.IsDone()
		status.Request = req
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load request", err)
	}

	activated, err := s.activations.ExistsForUser(ctx, userID, functionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load activations", err)
	}
	status.Activated = activated
	return status, nil
}

// ActivateFunction creates an activation with a fresh public code. Standard
// users need a handled request; staff may activate directly.
func (s *Service) ActivateFunction(ctx context.Context, userID, role string, functionID uint, givenName string) (*models.FunctionActivation, error) {
	const op = "access.ActivateFunction"

	givenName = strings.TrimSpace(givenName)
	if givenName == "" || len(givenName) > 150 {
		return nil, apperr.New(apperr.InvalidInput, op, "given name must be 1 to 150 characters")
	}

	fn, err := s.function(ctx, op, functionID)
	if err != nil {
		return nil, err
	}
	if !fn.IsActive {
		return nil, apperr.New(apperr.InvalidInput, op, "function is not available")
	}

	if role != models.ROLE_ADMIN && role != models.ROLE_SUPERADMIN {
		req, err := s.requests.FindByUserAndFunction(ctx, userID, functionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap(apperr.InternalError, op, "failed to load request", err)
		}
		if req == nil || !req.IsDone() {
			return nil, apperr.New(apperr.InsufficientPermissions, op, "access request not approved")
		}
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to generate public code", err)
	}

	activation := &models.FunctionActivation{
		UserID:           userID,
		FunctionID:       functionID,
		GivenName:        givenName,
		UniquePublicCode: code,
	}
	if err := s.activations.Create(ctx, activation); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to create activation", err)
	}
	activation.Function = fn
	log.Infof("[Access] Activated function %d for user %s as %q", functionID, userID, givenName)
	return activation, nil
}

func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		exists, err := s.activations.PublicCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("public code space exhausted after retries")
}

// RenameActivation updates the display name of an activation the user owns.
func (s *Service) RenameActivation(ctx context.Context, userID string, activationID uint, givenName string) error {
	const op = "access.RenameActivation"

	givenName = strings.TrimSpace(givenName)
	if givenName == "" || len(givenName) > 150 {
		return apperr.New(apperr.InvalidInput, op, "given name must be 1 to 150 characters")
	}
	rows, err := s.activations.Rename(ctx, activationID, userID, givenName, s.now())
	if err != nil {
		return apperr.Wrap(apperr.InternalError, op, "failed to rename activation", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, op, "activation not found")
	}
	return nil
}

// FunctionByPublicCode resolves an activation and its function metadata.
func (s *Service) FunctionByPublicCode(ctx context.Context, code string) (*models.FunctionActivation, error) {
	const op = "access.FunctionByPublicCode"

	if !publiccode.Valid(code) {
		return nil, apperr.New(apperr.NotFound, op, "function not found")
	}
	a, err := s.activations.GetByPublicCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, op, "function not found")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load activation", err)
	}
	return a, nil
}

// Activation loads an activation owned by userID.
func (s *Service) Activation(ctx context.Context, userID string, activationID uint) (*models.FunctionActivation, error) {
	const op = "access.Activation"

	a, err := s.activations.GetByID(ctx, activationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, op, "activation not found")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load activation", err)
	}
	if a.UserID != userID {
		return nil, apperr.New(apperr.NotFound, op, "activation not found")
	}
	return a, nil
}

func (s *Service) ListActivations(ctx context.Context, userID string) ([]models.FunctionActivation, error) {
	list, err := s.activations.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "access.ListActivations", "failed to list activations", err)
	}
	return list, nil
}

func (s *Service) ListFunctions(ctx context.Context, activeOnly bool) ([]models.LarinFunction, error) {
	list, err := s.functions.List(ctx, activeOnly)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "access.ListFunctions", "failed to list functions", err)
	}
	return list, nil
}
