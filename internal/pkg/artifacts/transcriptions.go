package artifacts

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/jobqueue"
	"github.com/larinai/larinai/internal/pkg/upload"
)

// UploadAudio stores an audio file for a later Process call.
func (s *Service) UploadAudio(ctx context.Context, userID string, f FileInput) (*StoredFile, error) {
	const op = "artifacts.UploadAudio"

	if _, err := upload.ValidateAudio(f.Name, f.Size, f.Head); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, op, err.Error(), err)
	}
	stored, err := s.upload(ctx, op, KindAudio, userID, f)
	if err != nil {
		return nil, err
	}
	log.Infof("[Artifacts] Stored audio %s (%d bytes) for user %s", stored.ObjectKey, stored.Size, userID)
	return stored, nil
}

// ProcessTranscriptionInput references a file returned by UploadAudio.
type ProcessTranscriptionInput struct {
	ActivationID uint   `json:"activationId" validate:"required"`
	Name         string `json:"name" validate:"max=200"`
	ObjectKey    string `json:"objectKey" validate:"required"`
	FileName     string `json:"fileName" validate:"required,max=255"`
	FileSize     int64  `json:"fileSize" validate:"gte=0"`
}

// ProcessTranscription creates the row in elaborazione and queues the job.
func (s *Service) ProcessTranscription(ctx context.Context, userID string, in ProcessTranscriptionInput) (*models.Transcription, error) {
	const op = "artifacts.ProcessTranscription"

	a, err := s.activation(ctx, op, userID, in.ActivationID, models.FunctionKindTranscription)
	if err != nil {
		return nil, err
	}
	if !ownedKey(KindAudio, userID, in.ObjectKey) {
		return nil, apperr.New(apperr.InvalidInput, op, "unknown uploaded file")
	}
	name, err := cleanName(in.Name, in.FileName)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, op, err.Error(), err)
	}
	if err := s.requireCredit(ctx, op, userID, a.Function.PriceEUR); err != nil {
		return nil, err
	}

	var fileURL string
	if s.store != nil {
		fileURL = s.store.ObjectURL(in.ObjectKey)
	}

	t := &models.Transcription{
		UserID:       userID,
		ActivationID: a.ID,
		Name:         name,
		Status:       models.ArtifactStatusProcessing,
		FileURL:      fileURL,
		FileName:     in.FileName,
		FileSize:     in.FileSize,
	}
	if err := s.transcriptions.Create(ctx, t); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to create transcription", err)
	}

	payload := jobqueue.TranscriptionJobPayload{TranscriptionID: t.ID, UserID: userID, ObjectKey: in.ObjectKey}
	if _, err := s.queue.Enqueue(ctx, jobqueue.JobTypeTranscriptionProcess, payload.ToMap()); err != nil {
		_ = s.transcriptions.MarkError(ctx, t.ID, "could not be queued")
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to queue transcription", err)
	}
	return t, nil
}

// HandleTranscriptionJob transcribes the audio and stores the outcome on the
// row. Rows already out of elaborazione are left alone.
func (s *Service) HandleTranscriptionJob(ctx context.Context, job *jobqueue.Job) error {
	p, err := jobqueue.TranscriptionJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}
	t, err := s.transcriptions.GetByID(ctx, p.TranscriptionID)
	if err != nil {
		return err
	}
	if t.Status != models.ArtifactStatusProcessing {
		log.Warnf("[Artifacts] Transcription %d is %s, skipping", t.ID, t.Status)
		return nil
	}

	if s.store == nil {
		return s.failTranscription(ctx, t.ID, errors.New("storage is not configured"))
	}
	audioURL, err := s.store.PresignGet(ctx, p.ObjectKey)
	if err != nil {
		return s.failTranscription(ctx, t.ID, err)
	}
	data, err := s.transcriber.Transcribe(ctx, audioURL)
	if err != nil {
		return s.failTranscription(ctx, t.ID, err)
	}
	if err := s.transcriptions.MarkDone(ctx, t.ID, data); err != nil {
		return err
	}
	log.Infof("[Artifacts] Transcription %d done", t.ID)

	if a, err := s.activations.GetByID(ctx, t.ActivationID); err == nil {
		s.charge(ctx, a, "Transcription", t.ID)
	} else {
		log.Warnf("[Artifacts] Activation %d of transcription %d not loaded: %v", t.ActivationID, t.ID, err)
	}
	return nil
}

func (s *Service) failTranscription(ctx context.Context, id uint, cause error) error {
	if err := s.transcriptions.MarkError(ctx, id, cause.Error()); err != nil {
		log.Errorf("[Artifacts] Failed to mark transcription %d as error: %v", id, err)
	}
	return cause
}

func (s *Service) ListTranscriptions(ctx context.Context, userID string, activationID uint) ([]models.Transcription, error) {
	list, err := s.transcriptions.ListByActivation(ctx, userID, activationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "artifacts.ListTranscriptions", "failed to list transcriptions", err)
	}
	return list, nil
}

func (s *Service) GetTranscription(ctx context.Context, userID string, id uint) (*models.Transcription, error) {
	const op = "artifacts.GetTranscription"

	t, err := s.transcriptions.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, op, "transcription not found")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load transcription", err)
	}
	return t, nil
}

func (s *Service) RenameTranscription(ctx context.Context, userID string, id uint, name string) error {
	const op = "artifacts.RenameTranscription"

	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return apperr.New(apperr.InvalidInput, op, "name must be 1 to 200 characters")
	}
	rows, err := s.transcriptions.Rename(ctx, id, userID, name, s.now())
	if err != nil {
		return apperr.Wrap(apperr.InternalError, op, "failed to rename transcription", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, op, "transcription not found")
	}
	return nil
}

// transcriptText returns the plain text of a transcript, joining speaker
// turns when the service did not return a full text.
func transcriptText(d *models.AssemblyAIData) string {
	if d == nil {
		return ""
	}
	if strings.TrimSpace(d.Text) != "" {
		return d.Text
	}
	var b strings.Builder
	for _, u := range d.Utterances {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(u.Speaker)
		b.WriteString(": ")
		b.WriteString(u.Text)
	}
	return b.String()
}
