package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

const (
	ArtifactStatusProcessing = "elaborazione"
	ArtifactStatusDone       = "elaborato"
	ArtifactStatusError      = "errore"
)

// Transcription is one processed audio file of a transcription activation.
type Transcription struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ActivationID uint            `gorm:"not null;index" json:"activation_id"`
	Name         string          `gorm:"type:varchar(200)" json:"name"`
	Status       string          `gorm:"type:varchar(20);not null;default:'elaborazione';index" json:"status"`
	FileURL      string          `gorm:"type:text" json:"file_url"`
	FileName     string          `gorm:"type:varchar(255)" json:"file_name"`
	FileSize     int64           `json:"file_size"`
	Data         *AssemblyAIData `gorm:"type:json" json:"data,omitempty"`
	ErrorMessage string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	EditedAt     *time.Time      `json:"edited_at"`
}

func (Transcription) TableName() string { return "_lf_transcriptions" }

// Utterance is one speaker turn.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// AssemblyAIData is the stored transcript. Members the struct does not name
// are kept in Extras.
type AssemblyAIData struct {
	ID            string      `json:"id,omitempty"`
	Status        string      `json:"status,omitempty"`
	Text          string      `json:"text,omitempty"`
	LanguageCode  string      `json:"language_code,omitempty"`
	AudioURL      string      `json:"audio_url,omitempty"`
	AudioDuration *float64    `json:"audio_duration,omitempty"`
	Confidence    *float64    `json:"confidence,omitempty"`
	Utterances    []Utterance `json:"utterances,omitempty"`
	Extras        Extras      `json:"-"`
}

var assemblyAIKnownFields = []string{
	"id", "status", "text", "language_code", "audio_url", "audio_duration", "confidence", "utterances",
}

func (d *AssemblyAIData) UnmarshalJSON(b []byte) error {
	type plain AssemblyAIData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extras, err := collectExtras(b, assemblyAIKnownFields)
	if err != nil {
		return err
	}
	*d = AssemblyAIData(p)
	d.Extras = extras
	return nil
}

func (d AssemblyAIData) MarshalJSON() ([]byte, error) {
	type plain AssemblyAIData
	encoded, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	return mergeExtras(encoded, d.Extras)
}

func (d AssemblyAIData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *AssemblyAIData) Scan(src interface{}) error {
	return scanJSON(src, d)
}
