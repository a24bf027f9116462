package controllers

import (
	"bytes"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/larinai/larinai/internal/pkg/apperr"
	"github.com/larinai/larinai/internal/pkg/artifacts"
	"github.com/larinai/larinai/internal/pkg/usercontext"
)

const sniffBytes = 512

// ArtifactController serves transcriptions, PDF compilations and email drafts.
type ArtifactController struct {
	artifacts *artifacts.Service
}

// formFile opens the multipart "file" field. The caller closes the returned closer.
func formFile(c *fiber.Ctx, op string) (artifacts.FileInput, io.Closer, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return artifacts.FileInput{}, nil, apperr.Wrap(apperr.InvalidInput, op, "file is required", err)
	}
	return openFile(op, fh)
}

func openFile(op string, fh *multipart.FileHeader) (artifacts.FileInput, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return artifacts.FileInput{}, nil, apperr.Wrap(apperr.InternalError, op, "failed to read upload", err)
	}
	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		f.Close()
		return artifacts.FileInput{}, nil, apperr.Wrap(apperr.InternalError, op, "failed to read upload", err)
	}
	head = head[:n]
	return artifacts.FileInput{
		Name: fh.Filename,
		Size: fh.Size,
		Head: head,
		Body: io.MultiReader(bytes.NewReader(head), f),
	}, f, nil
}

func (a *ArtifactController) HandleTranscriptionUpload(c *fiber.Ctx) error {
	const op = "transcription.Upload"

	in, closer, err := formFile(c, op)
	if err != nil {
		return respondError(c, err)
	}
	defer closer.Close()

	stored, err := a.artifacts.UploadAudio(c.UserContext(), usercontext.GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "file": stored})
}

func (a *ArtifactController) HandleTranscriptionProcess(c *fiber.Ctx) error {
	var req artifacts.ProcessTranscriptionInput
	if err := parseBody(c, "transcription.Process", &req); err != nil {
		return respondError(c, err)
	}
	t, err := a.artifacts.ProcessTranscription(c.UserContext(), usercontext.GetUserID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "transcription": t})
}

func (a *ArtifactController) HandleListTranscriptions(c *fiber.Ctx) error {
	activationID, ok := queryUint(c, "activationId")
	if !ok {
		return invalid(c, "transcription.List", "activationId must be a positive number")
	}
	list, err := a.artifacts.ListTranscriptions(c.UserContext(), usercontext.GetUserID(c), activationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "transcriptions": list})
}

func (a *ArtifactController) HandleGetTranscription(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalid(c, "transcription.Get", "id must be a positive number")
	}
	t, err := a.artifacts.GetTranscription(c.UserContext(), usercontext.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "transcription": t})
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (a *ArtifactController) HandleRenameTranscription(c *fiber.Ctx) error {
	const op = "transcription.Rename"

	id, ok := parseID(c, "id")
	if !ok {
		return invalid(c, op, "id must be a positive number")
	}
	var req renameRequest
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	if err := a.artifacts.RenameTranscription(c.UserContext(), usercontext.GetUserID(c), id, req.Name); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "id": id, "name": strings.TrimSpace(req.Name)})
}

// HandlePdfCompile accepts multipart fields file, activationId, name and fields
// (comma separated or repeated).
func (a *ArtifactController) HandlePdfCompile(c *fiber.Ctx) error {
	const op = "pdf.Compile"

	form, err := c.MultipartForm()
	if err != nil {
		return invalid(c, op, "multipart form expected")
	}
	activationID, ok := formUint(form, "activationId")
	if !ok {
		return invalid(c, op, "activationId must be a positive number")
	}
	files := form.File["file"]
	if len(files) == 0 {
		return invalid(c, op, "file is required")
	}
	in, closer, err := openFile(op, files[0])
	if err != nil {
		return respondError(c, err)
	}
	defer closer.Close()

	p, err := a.artifacts.Compile(c.UserContext(), usercontext.GetUserID(c), artifacts.CompileInput{
		ActivationID: activationID,
		Name:         formValue(form, "name"),
		Fields:       formList(form, "fields"),
		File:         in,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "compilation": p})
}

func (a *ArtifactController) HandlePdfProcess(c *fiber.Ctx) error {
	var req struct {
		PdfCompilationID uint `json:"pdfCompilationId" validate:"required"`
		TranscriptionID  uint `json:"transcriptionId" validate:"required"`
	}
	if err := parseBody(c, "pdf.Process", &req); err != nil {
		return respondError(c, err)
	}
	p, err := a.artifacts.ProcessPdf(c.UserContext(), usercontext.GetUserID(c), req.PdfCompilationID, req.TranscriptionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "compilation": p})
}

func (a *ArtifactController) HandleListPdfCompilations(c *fiber.Ctx) error {
	activationID, ok := queryUint(c, "activationId")
	if !ok {
		return invalid(c, "pdf.List", "activationId must be a positive number")
	}
	list, err := a.artifacts.ListPdfCompilations(c.UserContext(), usercontext.GetUserID(c), activationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "compilations": list})
}

func (a *ArtifactController) HandleGetPdfCompilation(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalid(c, "pdf.Get", "id must be a positive number")
	}
	p, err := a.artifacts.GetPdfCompilation(c.UserContext(), usercontext.GetUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "compilation": p})
}

func (a *ArtifactController) HandleRenamePdfCompilation(c *fiber.Ctx) error {
	const op = "pdf.Rename"

	id, ok := parseID(c, "id")
	if !ok {
		return invalid(c, op, "id must be a positive number")
	}
	var req renameRequest
	if err := parseBody(c, op, &req); err != nil {
		return respondError(c, err)
	}
	if err := a.artifacts.RenamePdfCompilation(c.UserContext(), usercontext.GetUserID(c), id, req.Name); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "id": id, "name": strings.TrimSpace(req.Name)})
}

func (a *ArtifactController) HandleEmailDraft(c *fiber.Ctx) error {
	var req struct {
		ActivationID uint   `json:"activationId" validate:"required"`
		EmailText    string `json:"emailText" validate:"required"`
		Tone         string `json:"tone"`
	}
	if err := parseBody(c, "email.Draft", &req); err != nil {
		return respondError(c, err)
	}
	draft, err := a.artifacts.DraftReply(c.UserContext(), usercontext.GetUserID(c), req.ActivationID, req.EmailText, req.Tone)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "draft": draft})
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func formUint(form *multipart.Form, key string) (uint, bool) {
	id, err := strconv.ParseUint(formValue(form, key), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func formList(form *multipart.Form, key string) []string {
	var out []string
	for _, v := range form.Value[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
