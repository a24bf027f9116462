package models

import "time"

// AccessRequest is a user's request to use a function. Done is nil or false
// while pending and true once a superadmin handled it.
type AccessRequest struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	FunctionID uint           `gorm:"not null;index" json:"function_id"`
	Function   *LarinFunction `gorm:"foreignKey:FunctionID" json:"function,omitempty"`
	User       *UserProfile   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Done       *bool          `json:"done"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccessRequest) TableName() string { return "lf_access_requests" }

func (r *AccessRequest) IsDone() bool {
	return r.Done != nil && *r.Done
}
