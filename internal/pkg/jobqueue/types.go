package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeTranscriptionProcess JobType = "transcription_process"
	JobTypePdfProcess           JobType = "pdf_process"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// TranscriptionJobPayload identifies the transcription row to process
type TranscriptionJobPayload struct {
	TranscriptionID uint   `json:"transcription_id"`
	UserID          string `json:"user_id"`
	ObjectKey       string `json:"object_key"`
}

// ToMap converts the payload to a map for storage
func (p TranscriptionJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"transcription_id": p.TranscriptionID,
		"user_id":          p.UserID,
		"object_key":       p.ObjectKey,
	}
}

// TranscriptionJobPayloadFromMap creates a payload from a map
func TranscriptionJobPayloadFromMap(data map[string]interface{}) (*TranscriptionJobPayload, error) {
	var payload TranscriptionJobPayload
	return &payload, decodePayload(data, &payload)
}

// PdfJobPayload identifies the compilation row and its source transcription
type PdfJobPayload struct {
	PdfCompilationID uint   `json:"pdf_compilation_id"`
	TranscriptionID  uint   `json:"transcription_id"`
	UserID           string `json:"user_id"`
}

func (p PdfJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"pdf_compilation_id": p.PdfCompilationID,
		"transcription_id":   p.TranscriptionID,
		"user_id":            p.UserID,
	}
}

func PdfJobPayloadFromMap(data map[string]interface{}) (*PdfJobPayload, error) {
	var payload PdfJobPayload
	return &payload, decodePayload(data, &payload)
}

// decodePayload round-trips through JSON; numbers stored in Redis come back as float64
func decodePayload(data map[string]interface{}, dst interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, dst)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
