package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// PdfCompilation is a PDF template whose form fields are filled from a transcription.
type PdfCompilation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ActivationID    uint       `gorm:"not null;index" json:"activation_id"`
	TranscriptionID *uint      `gorm:"index" json:"transcription_id,omitempty"`
	Name            string     `gorm:"type:varchar(200)" json:"name"`
	Status          string     `gorm:"type:varchar(20);not null;default:'elaborazione';index" json:"status"`
	FileURL         string     `gorm:"type:text" json:"file_url"`
	FileName        string     `gorm:"type:varchar(255)" json:"file_name"`
	FileSize        int64      `json:"file_size"`
	FormData        *FormData  `gorm:"type:json" json:"form_data,omitempty"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	EditedAt        *time.Time `json:"edited_at"`
}

func (PdfCompilation) TableName() string { return "_lf_pdf_compilations" }

// FormField is one extracted value.
type FormField struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// FormData holds the extracted fields of a compilation; unknown members go to Extras.
type FormData struct {
	TemplateName string      `json:"template_name,omitempty"`
	Language     string      `json:"language,omitempty"`
	Fields       []FormField `json:"fields,omitempty"`
	Extras       Extras      `json:"-"`
}

var formDataKnownFields = []string{"template_name", "language", "fields"}

func (f *FormData) UnmarshalJSON(b []byte) error {
	type plain FormData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extras, err := collectExtras(b, formDataKnownFields)
	if err != nil {
		return err
	}
	*f = FormData(p)
	f.Extras = extras
	return nil
}

func (f FormData) MarshalJSON() ([]byte, error) {
	type plain FormData
	encoded, err := json.Marshal(plain(f))
	if err != nil {
		return nil, err
	}
	return mergeExtras(encoded, f.Extras)
}

// Field returns the value stored under key.
func (f *FormData) Field(key string) (string, bool) {
	for _, fld := range f.Fields {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return "", false
}

func (f FormData) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *FormData) Scan(src interface{}) error {
	return scanJSON(src, f)
}
