package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
)

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new access request repository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *models.AccessRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (*models.AccessRequest, error) {
	var req models.AccessRequest
	err := r.db.WithContext(ctx).First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByUserAndFunction returns the most recent request for the pair
func (r *requestRepository) FindByUserAndFunction(ctx context.Context, userID string, functionID uint) (*models.AccessRequest, error) {
	var req models.AccessRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND function_id = ?", userID, functionID).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) SetDone(ctx context.Context, id uint, done bool) error {
	return r.db.WithContext(ctx).Model(&models.AccessRequest{}).
		Where("id = ?", id).
		Update("done", done).Error
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter, offset, limit int) ([]models.AccessRequest, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AccessRequest{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Done != nil {
		if *filter.Done {
			q = q.Where("done = ?", true)
		} else {
			q = q.Where("done IS NULL OR done = ?", false)
		}
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.AccessRequest
	err := q.Preload("Function").Preload("User").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *requestRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AccessRequest{}).
		Where("done IS NULL OR done = ?", false).
		Count(&count).Error
	return count, err
}
