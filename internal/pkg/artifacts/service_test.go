package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/app/repository"
	"github.com/larinai/larinai/internal/pkg/ai"
	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/jobqueue"
	"github.com/larinai/larinai/internal/pkg/storage"
)

type fakeActivations struct {
	repository.ActivationRepository
	rows map[uint]*models.FunctionActivation
}

func (f *fakeActivations) GetByID(_ context.Context, id uint) (*models.FunctionActivation, error) {
	if a, ok := f.rows[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeTranscriptions struct {
	repository.TranscriptionRepository
	rows map[uint]*models.Transcription
}

func (f *fakeTranscriptions) Create(_ context.Context, t *models.Transcription) error {
	t.ID = uint(len(f.rows) + 1)
	f.rows[t.ID] = t
	return nil
}

func (f *fakeTranscriptions) GetByID(_ context.Context, id uint) (*models.Transcription, error) {
	if t, ok := f.rows[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTranscriptions) GetForUser(ctx context.Context, id uint, userID string) (*models.Transcription, error) {
	t, err := f.GetByID(ctx, id)
	if err != nil || t.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (f *fakeTranscriptions) Rename(_ context.Context, id uint, userID, name string, at time.Time) (int64, error) {
	if t, ok := f.rows[id]; ok && t.UserID == userID {
		t.Name = name
		t.EditedAt = &at
		return 1, nil
	}
	return 0, nil
}

func (f *fakeTranscriptions) MarkDone(_ context.Context, id uint, data *models.AssemblyAIData) error {
	if t := f.rows[id]; t != nil && t.Status == models.ArtifactStatusProcessing {
		t.Status = models.ArtifactStatusDone
		t.Data = data
	}
	return nil
}

func (f *fakeTranscriptions) MarkError(_ context.Context, id uint, msg string) error {
	if t := f.rows[id]; t != nil && t.Status == models.ArtifactStatusProcessing {
		t.Status = models.ArtifactStatusError
		t.ErrorMessage = msg
	}
	return nil
}

type fakePdfs struct {
	repository.PdfCompilationRepository
	rows      map[uint]*models.PdfCompilation
	createErr error
}

func (f *fakePdfs) Create(_ context.Context, p *models.PdfCompilation) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = uint(len(f.rows) + 1)
	f.rows[p.ID] = p
	return nil
}

func (f *fakePdfs) GetByID(_ context.Context, id uint) (*models.PdfCompilation, error) {
	if p, ok := f.rows[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePdfs) GetForUser(ctx context.Context, id uint, userID string) (*models.PdfCompilation, error) {
	p, err := f.GetByID(ctx, id)
	if err != nil || p.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakePdfs) AttachTranscription(_ context.Context, id, tid uint) error {
	f.rows[id].TranscriptionID = &tid
	return nil
}

func (f *fakePdfs) MarkDone(_ context.Context, id uint, data *models.FormData) error {
	f.rows[id].Status = models.ArtifactStatusDone
	f.rows[id].FormData = data
	return nil
}

func (f *fakePdfs) MarkError(_ context.Context, id uint, msg string) error {
	f.rows[id].Status = models.ArtifactStatusError
	f.rows[id].ErrorMessage = msg
	return nil
}

type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader, size int64) (*storage.UploadResult, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = b
	return &storage.UploadResult{ObjectKey: key, URL: "https://files.test/" + key, Size: int64(len(b))}, nil
}

func (f *fakeStore) PresignGet(_ context.Context, key string) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", storage.ErrObjectNotFound
	}
	return "https://files.test/" + key + "?signed", nil
}

func (f *fakeStore) ObjectURL(key string) string                 { return "https://files.test/" + key }
func (f *fakeStore) Delete(_ context.Context, key string) error { delete(f.objects, key); return nil }

type fakeQueue struct {
	jobs []*jobqueue.Job
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	job := &jobqueue.Job{ID: "job", Type: jobType, Payload: payload}
	f.jobs = append(f.jobs, job)
	return job, nil
}

type fakeTranscriber struct {
	data *models.AssemblyAIData
	err  error
	urls []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, url string) (*models.AssemblyAIData, error) {
	f.urls = append(f.urls, url)
	return f.data, f.err
}

type fakeAssistant struct {
	form   *models.FormData
	draft  string
	err    error
	inputs []ai.ExtractInput
}

func (f *fakeAssistant) ExtractFormData(_ context.Context, in ai.ExtractInput) (*models.FormData, error) {
	f.inputs = append(f.inputs, in)
	return f.form, f.err
}

func (f *fakeAssistant) DraftEmailReply(_ context.Context, _, _ string) (string, error) {
	return f.draft, f.err
}

type fakeLedger struct {
	balance float64
	charges []float64
}

func (f *fakeLedger) CanAfford(_ context.Context, _ string, amount float64) (bool, error) {
	return f.balance >= amount, nil
}

func (f *fakeLedger) Charge(_ context.Context, _ string, amount float64, _ string) error {
	if f.balance < amount {
		return apperr.New(apperr.InsufficientPermissions, "charge", "insufficient credit")
	}
	f.balance -= amount
	f.charges = append(f.charges, amount)
	return nil
}

type fixture struct {
	svc         *Service
	trans       *fakeTranscriptions
	pdfs        *fakePdfs
	store       *fakeStore
	queue       *fakeQueue
	transcriber *fakeTranscriber
	assistant   *fakeAssistant
	ledger      *fakeLedger
}

func newFixture() *fixture {
	fns := map[string]*models.LarinFunction{
		models.FunctionKindTranscription:  {ID: 1, Kind: models.FunctionKindTranscription, PriceEUR: 2.5},
		models.FunctionKindPdfCompilation: {ID: 2, Kind: models.FunctionKindPdfCompilation, PriceEUR: 1},
		models.FunctionKindEmailResponse:  {ID: 3, Kind: models.FunctionKindEmailResponse, PriceEUR: 0.5},
	}
	acts := &fakeActivations{rows: map[uint]*models.FunctionActivation{
		10: {ID: 10, UserID: "u1", FunctionID: 1, GivenName: "Riunioni", Function: fns[models.FunctionKindTranscription]},
		20: {ID: 20, UserID: "u1", FunctionID: 2, GivenName: "Moduli", Function: fns[models.FunctionKindPdfCompilation]},
		30: {ID: 30, UserID: "u1", FunctionID: 3, GivenName: "Mail", Function: fns[models.FunctionKindEmailResponse]},
	}}
	f := &fixture{
		trans:       &fakeTranscriptions{rows: map[uint]*models.Transcription{}},
		pdfs:        &fakePdfs{rows: map[uint]*models.PdfCompilation{}},
		store:       &fakeStore{objects: map[string][]byte{}},
		queue:       &fakeQueue{},
		transcriber: &fakeTranscriber{},
		assistant:   &fakeAssistant{},
		ledger:      &fakeLedger{balance: 10},
	}
	f.svc = NewService(Deps{
		Repos:       &repository.Repositories{Activation: acts, Transcription: f.trans, PdfCompilation: f.pdfs},
		Store:       f.store,
		Queue:       f.queue,
		Transcriber: f.transcriber,
		Assistant:   f.assistant,
		Ledger:      f.ledger,
	})
	return f
}

func mp3File() FileInput {
	content := append([]byte("ID3"), make([]byte, 64)...)
	return FileInput{Name: "meeting.mp3", Size: int64(len(content)), Head: content, Body: bytes.NewReader(content)}
}

func TestUploadAudioStoresUnderUserPrefix(t *testing.T) {
	f := newFixture()
	stored, err := f.svc.UploadAudio(context.Background(), "u1", mp3File())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.ObjectKey, "audio/u1/"))
	assert.Equal(t, int64(67), stored.Size)
	assert.Contains(t, f.store.objects, stored.ObjectKey)
}

func TestUploadAudioRejectsText(t *testing.T) {
	f := newFixture()
	body := []byte("just some text pretending to be audio")
	_, err := f.svc.UploadAudio(context.Background(), "u1", FileInput{Name: "a.mp3", Size: int64(len(body)), Head: body, Body: bytes.NewReader(body)})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Empty(t, f.store.objects)
}

func TestTranscriptionLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stored, err := f.svc.UploadAudio(ctx, "u1", mp3File())
	require.NoError(t, err)

	row, err := f.svc.ProcessTranscription(ctx, "u1", ProcessTranscriptionInput{
		ActivationID: 10, ObjectKey: stored.ObjectKey, FileName: "meeting.mp3", FileSize: stored.Size,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactStatusProcessing, row.Status)
	assert.Equal(t, stored.URL, row.FileURL)
	assert.Equal(t, "meeting.mp3", row.Name)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, jobqueue.JobTypeTranscriptionProcess, f.queue.jobs[0].Type)

	f.transcriber.data = &models.AssemblyAIData{Text: "ciao a tutti"}
	require.NoError(t, f.svc.HandleTranscriptionJob(ctx, f.queue.jobs[0]))
	assert.Equal(t, models.ArtifactStatusDone, f.trans.rows[row.ID].Status)
	assert.Equal(t, []float64{2.5}, f.ledger.charges)
	require.Len(t, f.transcriber.urls, 1)
	assert.Contains(t, f.transcriber.urls[0], "?signed")

	// a second delivery of the same job does nothing
	require.NoError(t, f.svc.HandleTranscriptionJob(ctx, f.queue.jobs[0]))
	assert.Len(t, f.ledger.charges, 1)
	assert.Len(t, f.transcriber.urls, 1)
}

func TestTranscriptionJobFailureMarksError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stored, err := f.svc.UploadAudio(ctx, "u1", mp3File())
	require.NoError(t, err)
	row, err := f.svc.ProcessTranscription(ctx, "u1", ProcessTranscriptionInput{ActivationID: 10, ObjectKey: stored.ObjectKey, FileName: "meeting.mp3"})
	require.NoError(t, err)

	f.transcriber.err = errors.New("transcription failed: audio too short")
	err = f.svc.HandleTranscriptionJob(ctx, f.queue.jobs[0])
	require.Error(t, err)
	assert.Equal(t, models.ArtifactStatusError, f.trans.rows[row.ID].Status)
	assert.Contains(t, f.trans.rows[row.ID].ErrorMessage, "audio too short")
	assert.Empty(t, f.ledger.charges)
}

func TestProcessTranscriptionChecks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.ProcessTranscription(ctx, "u2", ProcessTranscriptionInput{ActivationID: 10, ObjectKey: "audio/u2/x.mp3", FileName: "x.mp3"})
	assert.True(t, apperr.Is(err, apperr.NotFound), "other user's activation")

	_, err = f.svc.ProcessTranscription(ctx, "u1", ProcessTranscriptionInput{ActivationID: 20, ObjectKey: "audio/u1/x.mp3", FileName: "x.mp3"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput), "wrong function kind")

	_, err = f.svc.ProcessTranscription(ctx, "u1", ProcessTranscriptionInput{ActivationID: 10, ObjectKey: "audio/u2/x.mp3", FileName: "x.mp3"})
	assert.True(t, apperr.Is(err, apperr.InvalidInput), "foreign object key")

	f.ledger.balance = 1
	_, err = f.svc.ProcessTranscription(ctx, "u1", ProcessTranscriptionInput{ActivationID: 10, ObjectKey: "audio/u1/x.mp3", FileName: "x.mp3"})
	assert.True(t, apperr.Is(err, apperr.InsufficientPermissions))
	assert.Empty(t, f.trans.rows)
}

func TestProcessTranscriptionQueueFailure(t *testing.T) {
	f := newFixture()
	f.queue.err = errors.New("redis down")
	_, err := f.svc.ProcessTranscription(context.Background(), "u1", ProcessTranscriptionInput{ActivationID: 10, ObjectKey: "audio/u1/x.mp3", FileName: "x.mp3"})
	assert.True(t, apperr.Is(err, apperr.InternalError))
	require.Len(t, f.trans.rows, 1)
	assert.Equal(t, models.ArtifactStatusError, f.trans.rows[1].Status)
}

func TestRenameTranscription(t *testing.T) {
	f := newFixture()
	f.trans.rows[1] = &models.Transcription{ID: 1, UserID: "u1", Name: "old"}

	require.NoError(t, f.svc.RenameTranscription(context.Background(), "u1", 1, "  nuovo  "))
	assert.Equal(t, "nuovo", f.trans.rows[1].Name)
	assert.NotNil(t, f.trans.rows[1].EditedAt)

	assert.True(t, apperr.Is(f.svc.RenameTranscription(context.Background(), "u2", 1, "x"), apperr.NotFound))
	assert.True(t, apperr.Is(f.svc.RenameTranscription(context.Background(), "u1", 1, " "), apperr.InvalidInput))

	_, err := f.svc.GetTranscription(context.Background(), "u2", 1)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestPdfLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.trans.rows[1] = &models.Transcription{
		ID: 1, UserID: "u1", Status: models.ArtifactStatusDone,
		Data: &models.AssemblyAIData{LanguageCode: "it", Utterances: []models.Utterance{{Speaker: "A", Text: "Sono Mario Rossi"}}},
	}

	pdf := []byte("%PDF-1.7\n%âãÏÓ\n")
	p, err := f.svc.Compile(ctx, "u1", CompileInput{
		ActivationID: 20, Fields: []string{"nome", "nome", " "},
		File: FileInput{Name: "modulo.pdf", Size: int64(len(pdf)), Head: pdf, Body: bytes.NewReader(pdf)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactStatusProcessing, p.Status)
	require.NotNil(t, p.FormData)
	assert.Len(t, p.FormData.Fields, 1)

	_, err = f.svc.ProcessPdf(ctx, "u1", p.ID, 1)
	require.NoError(t, err)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, uint(1), *f.pdfs.rows[p.ID].TranscriptionID)

	f.assistant.form = &models.FormData{Fields: []models.FormField{{Key: "nome", Value: "Mario Rossi"}}}
	require.NoError(t, f.svc.HandlePdfJob(ctx, f.queue.jobs[0]))

	require.Len(t, f.assistant.inputs, 1)
	assert.Equal(t, []string{"nome"}, f.assistant.inputs[0].FieldNames)
	assert.Equal(t, "A: Sono Mario Rossi", f.assistant.inputs[0].Transcript)
	assert.Equal(t, "it", f.assistant.inputs[0].Language)

	done := f.pdfs.rows[p.ID]
	assert.Equal(t, models.ArtifactStatusDone, done.Status)
	v, ok := done.FormData.Field("nome")
	assert.True(t, ok)
	assert.Equal(t, "Mario Rossi", v)
	assert.Equal(t, []float64{1}, f.ledger.charges)
}

func TestCompileRemovesTemplateWhenRowFails(t *testing.T) {
	f := newFixture()
	f.pdfs.createErr = errors.New("db down")
	pdf := []byte("%PDF-1.7\n%âãÏÓ\n")
	_, err := f.svc.Compile(context.Background(), "u1", CompileInput{
		ActivationID: 20,
		File:         FileInput{Name: "modulo.pdf", Size: int64(len(pdf)), Head: pdf, Body: bytes.NewReader(pdf)},
	})
	assert.True(t, apperr.Is(err, apperr.InternalError))
	assert.Empty(t, f.store.objects)
}

func TestProcessPdfNeedsFinishedTranscription(t *testing.T) {
	f := newFixture()
	f.trans.rows[1] = &models.Transcription{ID: 1, UserID: "u1", Status: models.ArtifactStatusProcessing}
	f.pdfs.rows[1] = &models.PdfCompilation{ID: 1, UserID: "u1", ActivationID: 20, Status: models.ArtifactStatusProcessing}

	_, err := f.svc.ProcessPdf(context.Background(), "u1", 1, 1)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.Empty(t, f.queue.jobs)

	_, err = f.svc.ProcessPdf(context.Background(), "u1", 1, 99)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestPdfJobFailure(t *testing.T) {
	f := newFixture()
	f.trans.rows[1] = &models.Transcription{ID: 1, UserID: "u1", Status: models.ArtifactStatusDone, Data: &models.AssemblyAIData{Text: "x"}}
	f.pdfs.rows[1] = &models.PdfCompilation{ID: 1, UserID: "u1", ActivationID: 20, Status: models.ArtifactStatusProcessing}
	f.assistant.err = errors.New("model overloaded")

	job := &jobqueue.Job{Payload: jobqueue.PdfJobPayload{PdfCompilationID: 1, TranscriptionID: 1}.ToMap()}
	assert.Error(t, f.svc.HandlePdfJob(context.Background(), job))
	assert.Equal(t, models.ArtifactStatusError, f.pdfs.rows[1].Status)
	assert.Equal(t, "model overloaded", f.pdfs.rows[1].ErrorMessage)
}

func TestDraftReply(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.assistant.draft = "Gentile cliente, ..."

	draft, err := f.svc.DraftReply(ctx, "u1", 30, "Buongiorno, vorrei informazioni", "friendly")
	require.NoError(t, err)
	assert.Equal(t, "Gentile cliente, ...", draft)
	assert.Equal(t, []float64{0.5}, f.ledger.charges)

	_, err = f.svc.DraftReply(ctx, "u1", 30, "testo", "sarcastic")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	_, err = f.svc.DraftReply(ctx, "u1", 30, "   ", "")
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	f.ledger.balance = 0
	_, err = f.svc.DraftReply(ctx, "u1", 30, "testo", "")
	assert.True(t, apperr.Is(err, apperr.InsufficientPermissions))

	f.ledger.balance = 5
	f.assistant.err = errors.New("timeout")
	_, err = f.svc.DraftReply(ctx, "u1", 30, "testo", "")
	assert.True(t, apperr.Is(err, apperr.UpstreamFailure))
}
