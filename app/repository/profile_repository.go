package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByOTP matches on the code value only.
func (r *profileRepository) GetByOTP(ctx context.Context, code string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.WithContext(ctx).Where("otp = ?", code).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveOTP writes the code columns of profile.
func (r *profileRepository) SaveOTP(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]interface{}{
			"otp":            profile.OTP,
			"otp_created_at": profile.OTPCreatedAt,
			"last_sent_at":   profile.LastSentAt,
		}).Error
}

func (r *profileRepository) ClearOTP(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"otp":            nil,
			"otp_created_at": nil,
		}).Error
}

func (r *profileRepository) MarkEmailConfirmed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"otp":                nil,
			"otp_created_at":     nil,
			"email_confirmed_at": at,
		}).Error
}

// List retrieves a paginated list of profiles, newest first
func (r *profileRepository) List(ctx context.Context, offset, limit int) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&profiles).Error
	return profiles, err
}

func (r *profileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserProfile{}).Count(&count).Error
	return count, err
}

// Search matches name or email and returns one page plus the total match count
func (r *profileRepository) Search(ctx context.Context, query string, offset, limit int) ([]models.UserProfile, int64, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	q := r.db.WithContext(ctx).Model(&models.UserProfile{}).Where("full_name LIKE ? OR email LIKE ?", pattern, pattern).
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var profiles []models.UserProfile
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&profiles).Error
	return profiles, total, err
}

func (r *profileRepository) CountByRole(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Role  string
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&models.UserProfile{}).
		Select("role, COUNT(*) AS total").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Total
	}
	return out, nil
}
