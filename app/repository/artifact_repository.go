package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
)

type transcriptionRepository struct {
	db *gorm.DB
}

// NewTranscriptionRepository creates a new transcription repository
func NewTranscriptionRepository(db *gorm.DB) TranscriptionRepository {
	return &transcriptionRepository{db: db}
}

func (r *transcriptionRepository) Create(ctx context.Context, t *models.Transcription) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transcriptionRepository) GetByID(ctx context.Context, id uint) (*models.Transcription, error) {
	var t models.Transcription
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transcriptionRepository) GetForUser(ctx context.Context, id uint, userID string) (*models.Transcription, error) {
	var t models.Transcription
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transcriptionRepository) ListByActivation(ctx context.Context, userID string, activationID uint) ([]models.Transcription, error) {
	var list []models.Transcription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND activation_id = ?", userID, activationID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *transcriptionRepository) Rename(ctx context.Context, id uint, userID, name string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Transcription{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"name": name, "edited_at": at})
	return res.RowsAffected, res.Error
}

// MarkDone and MarkError only move rows still in elaborazione.
func (r *transcriptionRepository) MarkDone(ctx context.Context, id uint, data *models.AssemblyAIData) error {
	return r.db.WithContext(ctx).Model(&models.Transcription{}).
		Where("id = ? AND status = ?", id, models.ArtifactStatusProcessing).
		Updates(map[string]interface{}{"status": models.ArtifactStatusDone, "data": data}).Error
}

func (r *transcriptionRepository) MarkError(ctx context.Context, id uint, message string) error {
	return r.db.WithContext(ctx).Model(&models.Transcription{}).
		Where("id = ? AND status = ?", id, models.ArtifactStatusProcessing).
		Updates(map[string]interface{}{"status": models.ArtifactStatusError, "error_message": message}).Error
}

type pdfCompilationRepository struct {
	db *gorm.DB
}

// NewPdfCompilationRepository creates a new PDF compilation repository
func NewPdfCompilationRepository(db *gorm.DB) PdfCompilationRepository {
	return &pdfCompilationRepository{db: db}
}

func (r *pdfCompilationRepository) Create(ctx context.Context, p *models.PdfCompilation) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *pdfCompilationRepository) GetByID(ctx context.Context, id uint) (*models.PdfCompilation, error) {
	var p models.PdfCompilation
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pdfCompilationRepository) GetForUser(ctx context.Context, id uint, userID string) (*models.PdfCompilation, error) {
	var p models.PdfCompilation
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pdfCompilationRepository) ListByActivation(ctx context.Context, userID string, activationID uint) ([]models.PdfCompilation, error) {
	var list []models.PdfCompilation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND activation_id = ?", userID, activationID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *pdfCompilationRepository) Rename(ctx context.Context, id uint, userID, name string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.PdfCompilation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"name": name, "edited_at": at})
	return res.RowsAffected, res.Error
}

func (r *pdfCompilationRepository) AttachTranscription(ctx context.Context, id uint, transcriptionID uint) error {
	return r.db.WithContext(ctx).Model(&models.PdfCompilation{}).
		Where("id = ?", id).
		Update("transcription_id", transcriptionID).Error
}

func (r *pdfCompilationRepository) MarkDone(ctx context.Context, id uint, data *models.FormData) error {
	return r.db.WithContext(ctx).Model(&models.PdfCompilation{}).
		Where("id = ? AND status = ?", id, models.ArtifactStatusProcessing).
		Updates(map[string]interface{}{"status": models.ArtifactStatusDone, "form_data": data}).Error
}

func (r *pdfCompilationRepository) MarkError(ctx context.Context, id uint, message string) error {
	return r.db.WithContext(ctx).Model(&models.PdfCompilation{}).
		Where("id = ? AND status = ?", id, models.ArtifactStatusProcessing).
		Updates(map[string]interface{}{"status": models.ArtifactStatusError, "error_message": message}).Error
}
