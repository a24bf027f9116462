package models

import "time"

// FunctionActivation links a user to a function under a display name.
// UniquePublicCode is the opaque token used in public routes.
type FunctionActivation struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	FunctionID       uint           `gorm:"not null;index" json:"function_id"`
	Function         *LarinFunction `gorm:"foreignKey:FunctionID" json:"function,omitempty"`
	GivenName        string         `gorm:"type:varchar(150)" json:"given_name" validate:"required,max=150"`
	UniquePublicCode string         `gorm:"uniqueIndex;type:varchar(32);not null" json:"unique_public_code"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	EditedAt         *time.Time     `json:"edited_at"`
}

func (FunctionActivation) TableName() string { return "link_specific_lfunction_user" }
