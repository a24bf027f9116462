package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ROLE_STD_USER   = "std_user"
	ROLE_ADMIN      = "admin"
	ROLE_SUPERADMIN = "superadmin"
)

const (
	OTPValidity       = 10 * time.Minute
	OTPResendInterval = 60 * time.Second

	otpMin   = 100000
	otpRange = 900000 // codes are in [100000, 999999]
)

// UserProfile is the application-side row for a Supabase auth user.
// ID equals the auth user id.
type UserProfile struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)" json:"id" validate:"required,uuid"`
	Email            string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	FullName         string     `gorm:"type:varchar(150)" json:"full_name" validate:"max=150"`
	Role             string     `gorm:"type:varchar(20);default:'std_user';index" json:"role" validate:"oneof=std_user admin superadmin"`
	OTP              *string    `gorm:"column:otp;type:varchar(6);index" json:"-"`
	OTPCreatedAt     *time.Time `gorm:"column:otp_created_at" json:"-"`
	LastSentAt       *time.Time `gorm:"column:last_sent_at" json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profile" }

func (u *UserProfile) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUserProfile builds a std_user profile for a freshly signed-up identity.
func NewUserProfile(id, email, fullName string) (*UserProfile, error) {
	u := &UserProfile{
		ID:       id,
		Email:    email,
		FullName: fullName,
		Role:     ROLE_STD_USER,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func IsValidRole(role string) bool {
	switch role {
	case ROLE_STD_USER, ROLE_ADMIN, ROLE_SUPERADMIN:
		return true
	}
	return false
}

func (u *UserProfile) IsSuperadmin() bool { return u.Role == ROLE_SUPERADMIN }

// IsStaff reports admin or superadmin.
func (u *UserProfile) IsStaff() bool {
	return u.Role == ROLE_ADMIN || u.Role == ROLE_SUPERADMIN
}

func (u *UserProfile) IsEmailConfirmed() bool { return u.EmailConfirmedAt != nil }

// GenerateOTP returns a uniformly random 6-digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("failed to read secure random bytes: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// SetOTP stores a new code and stamps both issue and send time.
func (u *UserProfile) SetOTP(code string, now time.Time) {
	u.OTP = &code
	u.OTPCreatedAt = &now
	u.LastSentAt = &now
}

func (u *UserProfile) ClearOTP() {
	u.OTP = nil
	u.OTPCreatedAt = nil
}

// IsOTPExpired reports whether the current code is older than OTPValidity.
// A code without an issue time counts as expired.
func (u *UserProfile) IsOTPExpired(now time.Time) bool {
	if u.OTPCreatedAt == nil {
		return true
	}
	return now.Sub(*u.OTPCreatedAt) > OTPValidity
}

// CanResendOTP enforces the minimum interval between two sends.
func (u *UserProfile) CanResendOTP(now time.Time) bool {
	if u.LastSentAt == nil {
		return true
	}
	return now.Sub(*u.LastSentAt) >= OTPResendInterval
}
