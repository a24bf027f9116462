package artifacts

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/ai"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/jobqueue"
	"github.com/larinai/larinai/internal/pkg/upload"
)

// CompileInput describes a PDF template upload. Fields lists the form keys to
// fill; when empty the model infers them from the transcript.
type CompileInput struct {
	ActivationID uint
	Name         string
	Fields       []string
	File         FileInput
}

// Compile stores the template and creates the compilation row in elaborazione.
func (s *Service) Compile(ctx context.Context, userID string, in CompileInput) (*models.PdfCompilation, error) {
	const op = "artifacts.Compile"

	a, err := s.activation(ctx, op, userID, in.ActivationID, models.FunctionKindPdfCompilation)
	if err != nil {
		return nil, err
	}
	if err := upload.ValidatePDF(in.File.Name, in.File.Size, in.File.Head); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, op, err.Error(), err)
	}
	name, err := cleanName(in.Name, in.File.Name)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, op, err.Error(), err)
	}

	stored, err := s.upload(ctx, op, KindPDF, userID, in.File)
	if err != nil {
		return nil, err
	}

	p := &models.PdfCompilation{
		UserID:       userID,
		ActivationID: a.ID,
		Name:         name,
		Status:       models.ArtifactStatusProcessing,
		FileURL:      stored.URL,
		FileName:     in.File.Name,
		FileSize:     stored.Size,
	}
	if fields := templateFields(in.Fields); len(fields) > 0 {
		p.FormData = &models.FormData{TemplateName: name, Fields: fields}
	}
	if err := s.pdfs.Create(ctx, p); err != nil {
		if delErr := s.store.Delete(ctx, stored.ObjectKey); delErr != nil {
			log.Warnf("[Artifacts] Failed to remove orphaned template %s: %v", stored.ObjectKey, delErr)
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to create compilation", err)
	}
	log.Infof("[Artifacts] Stored PDF template %s for compilation %d", stored.ObjectKey, p.ID)
	return p, nil
}

func templateFields(keys []string) []models.FormField {
	var out []models.FormField
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, models.FormField{Key: k, Label: k})
	}
	return out
}

// ProcessPdf links the compilation to a finished transcription and queues
// the extraction job.
func (s *Service) ProcessPdf(ctx context.Context, userID string, pdfID, transcriptionID uint) (*models.PdfCompilation, error) {
	const op = "artifacts.ProcessPdf"

	p, err := s.GetPdfCompilation(ctx, userID, pdfID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ArtifactStatusProcessing {
		return nil, apperr.New(apperr.InvalidInput, op, "compilation was already processed")
	}
	t, err := s.GetTranscription(ctx, userID, transcriptionID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.ArtifactStatusDone {
		return nil, apperr.New(apperr.InvalidInput, op, "transcription is not ready")
	}

	a, err := s.activation(ctx, op, userID, p.ActivationID, models.FunctionKindPdfCompilation)
	if err != nil {
		return nil, err
	}
	if err := s.requireCredit(ctx, op, userID, a.Function.PriceEUR); err != nil {
		return nil, err
	}

	if err := s.pdfs.AttachTranscription(ctx, p.ID, t.ID); err != nil {
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to link transcription", err)
	}
	p.TranscriptionID = &t.ID

	payload := jobqueue.PdfJobPayload{PdfCompilationID: p.ID, TranscriptionID: t.ID, UserID: userID}
	if _, err := s.queue.Enqueue(ctx, jobqueue.JobTypePdfProcess, payload.ToMap()); err != nil {
		_ = s.pdfs.MarkError(ctx, p.ID, "could not be queued")
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to queue compilation", err)
	}
	return p, nil
}

// HandlePdfJob fills the form fields from the transcript.
func (s *Service) HandlePdfJob(ctx context.Context, job *jobqueue.Job) error {
	payload, err := jobqueue.PdfJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}
	p, err := s.pdfs.GetByID(ctx, payload.PdfCompilationID)
	if err != nil {
		return err
	}
	if p.Status != models.ArtifactStatusProcessing {
		log.Warnf("[Artifacts] Compilation %d is %s, skipping", p.ID, p.Status)
		return nil
	}
	t, err := s.transcriptions.GetByID(ctx, payload.TranscriptionID)
	if err != nil {
		return s.failPdf(ctx, p.ID, err)
	}

	in := ai.ExtractInput{TemplateName: p.Name, Transcript: transcriptText(t.Data)}
	if t.Data != nil {
		in.Language = t.Data.LanguageCode
	}
	if p.FormData != nil {
		for _, f := range p.FormData.Fields {
			in.FieldNames = append(in.FieldNames, f.Key)
		}
	}

	data, err := s.assistant.ExtractFormData(ctx, in)
	if err != nil {
		return s.failPdf(ctx, p.ID, err)
	}
	if err := s.pdfs.MarkDone(ctx, p.ID, data); err != nil {
		return err
	}
	log.Infof("[Artifacts] Compilation %d done with %d fields", p.ID, len(data.Fields))

	if a, err := s.activations.GetByID(ctx, p.ActivationID); err == nil {
		s.charge(ctx, a, "PDF compilation", p.ID)
	} else {
		log.Warnf("[Artifacts] Activation %d of compilation %d not loaded: %v", p.ActivationID, p.ID, err)
	}
	return nil
}

func (s *Service) failPdf(ctx context.Context, id uint, cause error) error {
	if err := s.pdfs.MarkError(ctx, id, cause.Error()); err != nil {
		log.Errorf("[Artifacts] Failed to mark compilation %d as error: %v", id, err)
	}
	return cause
}

func (s *Service) ListPdfCompilations(ctx context.Context, userID string, activationID uint) ([]models.PdfCompilation, error) {
	list, err := s.pdfs.ListByActivation(ctx, userID, activationID)
	if err != nil {
		return nil, apperr.Wrap(apperr.InternalError, "artifacts.ListPdfCompilations", "failed to list compilations", err)
	}
	return list, nil
}

func (s *Service) GetPdfCompilation(ctx context.Context, userID string, id uint) (*models.PdfCompilation, error) {
	const op = "artifacts.GetPdfCompilation"

	p, err := s.pdfs.GetForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, op, "compilation not found")
		}
		return nil, apperr.Wrap(apperr.InternalError, op, "failed to load compilation", err)
	}
	return p, nil
}

func (s *Service) RenamePdfCompilation(ctx context.Context, userID string, id uint, name string) error {
	const op = "artifacts.RenamePdfCompilation"

	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return apperr.New(apperr.InvalidInput, op, "name must be 1 to 200 characters")
	}
	rows, err := s.pdfs.Rename(ctx, id, userID, name, s.now())
	if err != nil {
		return apperr.Wrap(apperr.InternalError, op, "failed to rename compilation", err)
	}
	if rows == 0 {
		return apperr.New(apperr.NotFound, op, "compilation not found")
	}
	return nil
}
