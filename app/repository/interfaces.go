package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
)

// ProfileRepository defines the interface for user profile operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	GetByID(ctx context.Context, id string) (*models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	GetByOTP(ctx context.Context, code string) (*models.UserProfile, error)
	SaveOTP(ctx context.Context, profile *models.UserProfile) error
	ClearOTP(ctx context.Context, id string) error
	MarkEmailConfirmed(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, offset, limit int) ([]models.UserProfile, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, query string, offset, limit int) ([]models.UserProfile, int64, error)
	CountByRole(ctx context.Context) (map[string]int64, error)
}

// FunctionRepository defines the interface for the function catalogue
type FunctionRepository interface {
	GetByID(ctx context.Context, id uint) (*models.LarinFunction, error)
	List(ctx context.Context, activeOnly bool) ([]models.LarinFunction, error)
}

// ActivationRepository defines the interface for function activations
type ActivationRepository interface {
	Create(ctx context.Context, activation *models.FunctionActivation) error
	GetByID(ctx context.Context, id uint) (*models.FunctionActivation, error)
	GetByPublicCode(ctx context.Context, code string) (*models.FunctionActivation, error)
	ListByUser(ctx context.Context, userID string) ([]models.FunctionActivation, error)
	ExistsForUser(ctx context.Context, userID string, functionID uint) (bool, error)
	PublicCodeExists(ctx context.Context, code string) (bool, error)
	Rename(ctx context.Context, id uint, userID, givenName string, at time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// RequestFilter narrows access request listings. A nil Done lists every request.
type RequestFilter struct {
	Done   *bool
	UserID string
}

// RequestRepository defines the interface for access requests
type RequestRepository interface {
	Create(ctx context.Context, req *models.AccessRequest) error
	GetByID(ctx context.Context, id uint) (*models.AccessRequest, error)
	FindByUserAndFunction(ctx context.Context, userID string, functionID uint) (*models.AccessRequest, error)
	SetDone(ctx context.Context, id uint, done bool) error
	List(ctx context.Context, filter RequestFilter, offset, limit int) ([]models.AccessRequest, int64, error)
	CountPending(ctx context.Context) (int64, error)
}

// TranscriptionRepository defines the interface for transcription artifacts
type TranscriptionRepository interface {
	Create(ctx context.Context, t *models.Transcription) error
	GetByID(ctx context.Context, id uint) (*models.Transcription, error)
	GetForUser(ctx context.Context, id uint, userID string) (*models.Transcription, error)
	ListByActivation(ctx context.Context, userID string, activationID uint) ([]models.Transcription, error)
	Rename(ctx context.Context, id uint, userID, name string, at time.Time) (int64, error)
	MarkDone(ctx context.Context, id uint, data *models.AssemblyAIData) error
	MarkError(ctx context.Context, id uint, message string) error
}

// PdfCompilationRepository defines the interface for PDF compilation artifacts
type PdfCompilationRepository interface {
	Create(ctx context.Context, p *models.PdfCompilation) error
	GetByID(ctx context.Context, id uint) (*models.PdfCompilation, error)
	GetForUser(ctx context.Context, id uint, userID string) (*models.PdfCompilation, error)
	ListByActivation(ctx context.Context, userID string, activationID uint) ([]models.PdfCompilation, error)
	Rename(ctx context.Context, id uint, userID, name string, at time.Time) (int64, error)
	AttachTranscription(ctx context.Context, id uint, transcriptionID uint) error
	MarkDone(ctx context.Context, id uint, data *models.FormData) error
	MarkError(ctx context.Context, id uint, message string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Profile        ProfileRepository
	Function       FunctionRepository
	Activation     ActivationRepository
	Request        RequestRepository
	Transcription  TranscriptionRepository
	PdfCompilation PdfCompilationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Profile:        NewProfileRepository(db),
		Function:       NewFunctionRepository(db),
		Activation:     NewActivationRepository(db),
		Request:        NewRequestRepository(db),
		Transcription:  NewTranscriptionRepository(db),
		PdfCompilation: NewPdfCompilationRepository(db),
	}
}
