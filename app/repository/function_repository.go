package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
)

type functionRepository struct {
	db *gorm.DB
}

// NewFunctionRepository creates a new function catalogue repository
func NewFunctionRepository(db *gorm.DB) FunctionRepository {
	return &functionRepository{db: db}
}

func (r *functionRepository) GetByID(ctx context.Context, id uint) (*models.LarinFunction, error) {
	var fn models.LarinFunction
	err := r.db.WithContext(ctx).First(&fn, id).Error
	if err != nil {
		return nil, err
	}
	return &fn, nil
}

func (r *functionRepository) List(ctx context.Context, activeOnly bool) ([]models.LarinFunction, error) {
	var fns []models.LarinFunction
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&fns).Error
	return fns, err
}

type activationRepository struct {
	db *gorm.DB
}

// NewActivationRepository creates a new activation repository
func NewActivationRepository(db *gorm.DB) ActivationRepository {
	return &activationRepository{db: db}
}

func (r *activationRepository) Create(ctx context.Context, activation *models.FunctionActivation) error {
	return r.db.WithContext(ctx).Create(activation).Error
}

func (r *activationRepository) GetByID(ctx context.Context, id uint) (*models.FunctionActivation, error) {
	var a models.FunctionActivation
	err := r.db.WithContext(ctx).Preload("Function").First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activationRepository) GetByPublicCode(ctx context.Context, code string) (*models.FunctionActivation, error) {
	var a models.FunctionActivation
	err := r.db.WithContext(ctx).Preload("Function").Where("unique_public_code = ?", code).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *activationRepository) ListByUser(ctx context.Context, userID string) ([]models.FunctionActivation, error) {
	var list []models.FunctionActivation
	err := r.db.WithContext(ctx).Preload("Function").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *activationRepository) ExistsForUser(ctx context.Context, userID string, functionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FunctionActivation{}).
		Where("user_id = ? AND function_id = ?", userID, functionID).
		Count(&count).Error
	return count > 0, err
}

func (r *activationRepository) PublicCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FunctionActivation{}).
		Where("unique_public_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// Rename only touches rows owned by userID and returns the number of rows matched
func (r *activationRepository) Rename(ctx context.Context, id uint, userID, givenName string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.FunctionActivation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"given_name": givenName, "edited_at": at})
	return res.RowsAffected, res.Error
}

func (r *activationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.FunctionActivation{}).Count(&count).Error
	return count, err
}
