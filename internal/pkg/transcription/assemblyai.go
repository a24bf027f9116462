// Package transcription turns stored audio into speaker-labelled transcripts
// through AssemblyAI.
package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/gofiber/fiber/v2/log"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/env"
)

var ErrNotConfigured = errors.New("assemblyai api key not configured")

// Transcriber produces a transcript for an audio URL.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (*models.AssemblyAIData, error)
}

type Config struct {
	APIKey       string
	LanguageCode string
	Speakers     bool
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:       env.GetEnv("ASSEMBLYAI_API_KEY", ""),
		LanguageCode: env.GetEnv("ASSEMBLYAI_LANGUAGE", "it"),
		Speakers:     env.GetEnv("ASSEMBLYAI_SPEAKER_LABELS", "true") == "true",
	}
}

type AssemblyAI struct {
	client *aai.Client
	cfg    Config
}

func NewAssemblyAI(cfg Config, opts ...aai.ClientOption) *AssemblyAI {
	if cfg.APIKey == "" {
		return &AssemblyAI{cfg: cfg}
	}
	opts = append([]aai.ClientOption{aai.WithAPIKey(cfg.APIKey)}, opts...)
	return &AssemblyAI{client: aai.NewClientWithOptions(opts...), cfg: cfg}
}

// Transcribe submits audioURL and waits for the transcript to complete.
func (a *AssemblyAI) Transcribe(ctx context.Context, audioURL string) (*models.AssemblyAIData, error) {
	if a.client == nil {
		return nil, ErrNotConfigured
	}

	params := &aai.TranscriptOptionalParams{
		SpeakerLabels: aai.Bool(a.cfg.Speakers),
	}
	if a.cfg.LanguageCode != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(a.cfg.LanguageCode)
	}

	transcript, err := a.client.Transcripts.TranscribeFromURL(ctx, audioURL, params)
	if err != nil {
		return nil, fmt.Errorf("assemblyai request failed: %w", err)
	}
	if transcript.Status == aai.TranscriptStatusError {
		msg := "transcription failed"
		if transcript.Error != nil {
			msg = *transcript.Error
		}
		return nil, errors.New(msg)
	}

	data, err := toData(transcript)
	if err != nil {
		return nil, err
	}
	log.Infof("[Transcription] Transcript %s completed (%d utterances)", data.ID, len(data.Utterances))
	return data, nil
}

// toData keeps the whole transcript payload; fields not modelled end up in Extras.
func toData(t aai.Transcript) (*models.AssemblyAIData, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	var data models.AssemblyAIData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &data, nil
}
