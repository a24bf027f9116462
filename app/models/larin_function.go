package models

import "time"

const (
	FunctionKindTranscription  = "transcription"
	FunctionKindPdfCompilation = "pdf_compilation"
	FunctionKindEmailResponse  = "email_response"
)

// LarinFunction is a catalogue entry users can request and activate.
type LarinFunction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Slug        string    `gorm:"uniqueIndex;type:varchar(100)" json:"slug" validate:"required,max=100"`
	Name        string    `gorm:"type:varchar(150)" json:"name" validate:"required,max=150"`
	Description string    `gorm:"type:text" json:"description"`
	Kind        string    `gorm:"type:varchar(32);index" json:"kind" validate:"oneof=transcription pdf_compilation email_response"`
	PriceEUR    float64   `gorm:"column:price_eur;type:decimal(12,2);default:0" json:"price_eur"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (LarinFunction) TableName() string { return "larin_functions" }
