// Package ai wraps the OpenAI chat API for form extraction and email drafts.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/larinai/larinai/app/models"
	"github.com/larinai/larinai/internal/pkg/env"
)

var (
	ErrNotConfigured = errors.New("openai api key not configured")
	ErrEmptyResponse = errors.New("openai returned no content")
)

// Assistant is the language model surface used by the app.
type Assistant interface {
	ExtractFormData(ctx context.Context, in ExtractInput) (*models.FormData, error)
	DraftEmailReply(ctx context.Context, emailText, tone string) (string, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	RPS     float64
}

func ConfigFromEnv() Config {
	rps := float64(env.GetEnvInt("OPENAI_RPS", 2))
	return Config{
		APIKey:  env.GetEnv("OPENAI_API_KEY", ""),
		Model:   env.GetEnv("OPENAI_MODEL", openai.ChatModelGPT4oMini),
		BaseURL: env.GetEnv("OPENAI_BASE_URL", ""),
		RPS:     rps,
	}
}

type Client struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	c := &Client{
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
	}
	if c.model == "" {
		c.model = openai.ChatModelGPT4oMini
	}
	if cfg.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		c.client = &client
	}
	return c
}

func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// ExtractInput carries the template fields to fill and the source transcript.
type ExtractInput struct {
	TemplateName string
	FieldNames   []string
	Transcript   string
	Language     string
}

const extractPrompt = `You fill in forms from meeting transcripts.
Answer with a JSON object {"fields":[{"key":"...","label":"...","value":"..."}]}.
Use an empty value when the transcript does not contain the information.`

// ExtractFormData asks the model to fill FieldNames from the transcript.
func (c *Client) ExtractFormData(ctx context.Context, in ExtractInput) (*models.FormData, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, errors.New("transcript is empty")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\n", in.TemplateName)
	if len(in.FieldNames) > 0 {
		fmt.Fprintf(&b, "Fields: %s\n", strings.Join(in.FieldNames, ", "))
	} else {
		b.WriteString("Fields: infer the fields a form for this meeting would need\n")
	}
	fmt.Fprintf(&b, "Transcript:\n%s", in.Transcript)

	content, err := c.complete(ctx, extractPrompt, b.String(), true)
	if err != nil {
		return nil, err
	}
	data, err := parseFormData(content)
	if err != nil {
		return nil, err
	}
	data.TemplateName = in.TemplateName
	if data.Language == "" {
		data.Language = in.Language
	}
	log.Debugf("[AI] Extracted %d fields for %s", len(data.Fields), in.TemplateName)
	return data, nil
}

func parseFormData(content string) (*models.FormData, error) {
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var data models.FormData
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &data); err != nil {
		return nil, fmt.Errorf("model answer is not valid form data: %w", err)
	}
	return &data, nil
}

var tones = map[string]string{
	"formal":   "formal and courteous",
	"friendly": "warm and friendly",
	"concise":  "short and to the point",
}

// ValidTone reports whether tone is a supported draft tone. Empty means formal.
func ValidTone(tone string) bool {
	if tone == "" {
		return true
	}
	_, ok := tones[tone]
	return ok
}

// DraftEmailReply writes a reply to emailText in the requested tone.
func (c *Client) DraftEmailReply(ctx context.Context, emailText, tone string) (string, error) {
	style, ok := tones[tone]
	if !ok {
		style = tones["formal"]
	}
	system := fmt.Sprintf("You write replies to business emails. Reply in the language of the email. The tone is %s. Return only the reply body.", style)
	return c.complete(ctx, system, emailText, false)
}
