package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(raw, seen)
		}
		resp := map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractFormData(t *testing.T) {
	var seen map[string]interface{}
	srv := chatServer(t, `{"fields":[{"key":"cliente","value":"Rossi SRL"}],"confidence":"high"}`, &seen)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, RPS: 100})

	data, err := c.ExtractFormData(context.Background(), ExtractInput{
		TemplateName: "verbale.pdf",
		FieldNames:   []string{"cliente"},
		Transcript:   "Il cliente è Rossi SRL.",
		Language:     "it",
	})
	require.NoError(t, err)
	assert.Equal(t, "verbale.pdf", data.TemplateName)
	assert.Equal(t, "it", data.Language)
	value, ok := data.Field("cliente")
	assert.True(t, ok)
	assert.Equal(t, "Rossi SRL", value)
	assert.Contains(t, data.Extras, "confidence")
	assert.Equal(t, "gpt-4o-mini", seen["model"])
}

func TestExtractFormDataRejectsGarbage(t *testing.T) {
	srv := chatServer(t, "not json", nil)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, RPS: 100})
	_, err := c.ExtractFormData(context.Background(), ExtractInput{Transcript: "x"})
	assert.Error(t, err)
}

func TestDraftEmailReply(t *testing.T) {
	srv := chatServer(t, "Gentile Mario, grazie per il messaggio.", nil)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, RPS: 100})
	draft, err := c.DraftEmailReply(context.Background(), "Ciao, a che punto siamo?", "formal")
	require.NoError(t, err)
	assert.Contains(t, draft, "Gentile Mario")
}

func TestNotConfigured(t *testing.T) {
	_, err := NewClient(Config{}).DraftEmailReply(context.Background(), "x", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseFormDataStripsFences(t *testing.T) {
	data, err := parseFormData("```json\n{\"fields\":[{\"key\":\"a\",\"value\":\"b\"}]}\n```")
	require.NoError(t, err)
	value, _ := data.Field("a")
	assert.Equal(t, "b", value)
	assert.True(t, ValidTone("concise"))
	assert.False(t, ValidTone("angry"))
}
