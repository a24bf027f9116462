package upload

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MaxAudioBytes = 500 << 20 // 500 MiB
	MaxPDFBytes   = 25 << 20  // 25 MiB
)

var allowedAudioExt = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".webm": true,
	".flac": true,
}

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType = errors.New("file type is not supported")
)

// ValidateAudio checks extension, size and the first bytes of an audio upload.
// Returns the detected mime type.
func ValidateAudio(filename string, size int64, head []byte) (string, error) {
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if size > MaxAudioBytes {
		return "", ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAudioExt[ext] {
		return "", errors.New("supported audio formats: MP3, WAV, M4A, OGG, WEBM, FLAC")
	}

	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return "", ErrUnsupportedType
		}
	}
	mime := detected.String()
	// truncated heads sniff as octet-stream; allow by extension
	if strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/") || mime == "application/ogg" ||
		detected.Is("application/octet-stream") {
		return mime, nil
	}
	return "", ErrUnsupportedType
}

// ValidatePDF checks extension, size and the %PDF- magic of a template upload.
func ValidatePDF(filename string, size int64, head []byte) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxPDFBytes {
		return ErrFileTooLarge
	}
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		return errors.New("only PDF templates are supported")
	}
	if !mimetype.Detect(head).Is("application/pdf") {
		return ErrUnsupportedType
	}
	return nil
}
