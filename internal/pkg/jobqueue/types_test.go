package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptionPayloadRoundTripFromStoredMap(t *testing.T) {
	p := TranscriptionJobPayload{TranscriptionID: 42, UserID: "u-1", ObjectKey: "audio/u-1/a.mp3"}

	// simulates what comes back from Redis JSON
	stored := map[string]interface{}{
		"transcription_id": float64(42),
		"user_id":          "u-1",
		"object_key":       "audio/u-1/a.mp3",
	}
	got, err := TranscriptionJobPayloadFromMap(stored)
	require.NoError(t, err)
	assert.Equal(t, p, *got)
	assert.Equal(t, uint(42), p.ToMap()["transcription_id"])
}

func TestPdfPayloadFromMap(t *testing.T) {
	got, err := PdfJobPayloadFromMap(PdfJobPayload{PdfCompilationID: 7, TranscriptionID: 3, UserID: "u"}.ToMap())
	require.NoError(t, err)
	assert.Equal(t, uint(7), got.PdfCompilationID)
	assert.Equal(t, uint(3), got.TranscriptionID)
	assert.Equal(t, "u", got.UserID)
}

func TestFailedJobIsNotRetryableByDefault(t *testing.T) {
	job := &Job{MaxRetries: DefaultMaxRetries}
	job.MarkAsProcessing()
	assert.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.False(t, job.IsRetryable())
}

func TestCompletedClearsError(t *testing.T) {
	job := &Job{ErrorMsg: "old"}
	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	assert.NotNil(t, job.CompletedAt)
}
