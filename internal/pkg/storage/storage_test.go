package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)
	key := ObjectKey("transcriptions", "u1", "Riunione.MP3", now)
	assert.True(t, strings.HasPrefix(key, "transcriptions/u1/2025/04/"))
	assert.True(t, strings.HasSuffix(key, ".mp3"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentType(".MP3"))
	assert.Equal(t, "application/pdf", ContentType(".pdf"))
	assert.Equal(t, "application/octet-stream", ContentType(".exe"))
}

func TestLoadConfigRequiresCredentials(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY_ID", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestPresignGetWithoutNetwork(t *testing.T) {
	cfg := &Config{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Region:          "eu-central-1",
		BucketName:      "larinai",
		EndpointURL:     "http://127.0.0.1:9000",
		PresignTTL:      time.Hour,
	}
	// NewClient pings the bucket, so build the client directly.
	c, err := newUnchecked(context.Background(), cfg)
	require.NoError(t, err)
	url, err := c.PresignGet(context.Background(), "transcriptions/u1/a.mp3")
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")
	assert.Contains(t, url, "/larinai/transcriptions/u1/a.mp3")
	assert.Contains(t, url, "X-Amz-Expires=3600")
}

func TestObjectURL(t *testing.T) {
	c := &Client{config: &Config{BucketName: "larinai", Region: "eu-central-1"}}
	assert.Equal(t, "https://larinai.s3.eu-central-1.amazonaws.com/audio/u1/a.mp3", c.ObjectURL("audio/u1/a.mp3"))

	c.config.EndpointURL = "http://127.0.0.1:9000"
	assert.Equal(t, "http://127.0.0.1:9000/larinai/audio/u1/a.mp3", c.ObjectURL("audio/u1/a.mp3"))
}
