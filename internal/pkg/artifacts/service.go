// Package artifacts runs the paid functions: transcriptions, PDF
// compilations and email reply drafts.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/ai"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/jobqueue"
	"github.com/larinai/larinai/internal/pkg/storage"
	"github.com/larinai/larinai/internal/pkg/transcription"
)

// Object key prefixes per artifact kind.
const (
	KindAudio = "audio"
	KindPDF   = "pdf"
)

const maxNameLength = 200

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// Ledger is the part of billing the functions need.
type Ledger interface {
	CanAfford(ctx context.Context, userID string, amount float64) (bool, error)
	Charge(ctx context.Context, userID string, amount float64, description string) error
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repos       *repository.Repositories
	Store       storage.ObjectStore
	Queue       Enqueuer
	Transcriber transcription.Transcriber
	Assistant   ai.Assistant
	Ledger      Ledger
}

type Service struct {
	transcriptions repository.TranscriptionRepository
	pdfs           repository.PdfCompilationRepository
	activations    repository.ActivationRepository
	store          storage.ObjectStore
	queue          Enqueuer
	transcriber    transcription.Transcriber
	assistant      ai.Assistant
	ledger         Ledger
	now            func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		transcriptions: d.Repos.Transcription,
		pdfs:           d.Repos.PdfCompilation,
		activations:    d.Repos.Activation,
		store:          d.Store,
		queue:          d.Queue,
		transcriber:    d.Transcriber,
		assistant:      d.Assistant,
		ledger:         d.Ledger,
		now:            time.Now,
	}
}

// FileInput is one uploaded file. Head holds the first bytes for type sniffing
// and Body the complete content.
type FileInput struct {
	Name string
	Size int64
	Head []byte
	Body io.Reader
}

// StoredFile describes an object written to storage.
type StoredFile struct {
	URL       string `json:"url"`
	ObjectKey string `json:"objectKey"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
}

// activation loads an activation of the given kind owned by userID.
func (s *Service) activation(ctx context.Context, op, userID string, activationID uint, kind string) (*models.FunctionActivation, error) {
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
	if a.Function == nil || a.Function.Kind != kind {
		return nil, apperr.New(apperr.InvalidInput, op, "activation does not belong to this function")
	}
	return a, nil
}

// requireCredit fails with InsufficientPermissions when the balance cannot pay price.
func (s *Service) requireCredit(ctx context.Context, op, userID string, price float64) error {
	if price <= 0 || s.ledger == nil {
		return nil
	}
	ok, err := s.ledger.CanAfford(ctx, userID, price)
	if err != nil {
		return apperr.Wrap(apperr.InternalError, op, "failed to read balance", err)
	}
	if !ok {
		return apperr.New(apperr.InsufficientPermissions, op, "insufficient credit")
	}
	return nil
}

// charge books the price of a finished run. The work is already delivered, so
// a failure is logged and not returned.
func (s *Service) charge(ctx context.Context, a *models.FunctionActivation, what string, id uint) {
	if s.ledger == nil || a == nil || a.Function == nil || a.Function.PriceEUR <= 0 {
		return
	}
	desc := fmt.Sprintf("%s #%d (%s)", what, id, a.GivenName)
	if err := s.ledger.Charge(ctx, a.UserID, a.Function.PriceEUR, desc); err != nil {
		log.Warnf("[Artifacts] Failed to charge %s #%d to user %s: %v", what, id, a.UserID, err)
	}
}

func (s *Service) upload(ctx context.Context, op, kind, userID string, f FileInput) (*StoredFile, error) {
	if s.store == nil {
		return nil, apperr.New(apperr.InternalError, op, "storage is not configured")
	}
	key := storage.ObjectKey(kind, userID, f.Name, s.now())
	res, err := s.store.Upload(ctx, key, f.Body, f.Size)
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamFailure, op, "failed to store file", err)
	}
	return &StoredFile{URL: res.URL, ObjectKey: res.ObjectKey, Name: f.Name, Size: res.Size}, nil
}

func cleanName(name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

// ownedKey reports whether key was written by userID under kind.
func ownedKey(kind, userID, key string) bool {
	return strings.HasPrefix(key, kind+"/"+userID+"/")
}

// RegisterHandlers binds the processing jobs to q.
func (s *Service) RegisterHandlers(q *jobqueue.Queue) {
	q.Handle(jobqueue.JobTypeTranscriptionProcess, s.HandleTranscriptionJob)
	q.Handle(jobqueue.JobTypePdfProcess, s.HandlePdfJob)
}
