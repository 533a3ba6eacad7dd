package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/freelance/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testS3Config() *config.StorageConfig {
	return &config.StorageConfig{
		Driver:          DriverS3,
		Bucket:          "invoices-bucket",
		Region:          "eu-west-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		UsePathStyle:    true,
		KeyPrefix:       "/freelance/",
	}
}

func TestNewS3Storage_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewS3Storage(ctx, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket", func(t *testing.T) {
		cfg := testS3Config()
		cfg.Bucket = ""
		_, err := NewS3Storage(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half a credential pair", func(t *testing.T) {
		cfg := testS3Config()
		cfg.SecretAccessKey = ""
		_, err := NewS3Storage(ctx, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("valid config", func(t *testing.T) {
		s, err := NewS3Storage(ctx, testS3Config(), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "invoices-bucket", s.Bucket())
		assert.Equal(t, "freelance", s.keyPrefix)
		assert.Equal(t, defaultPresignExpiration, s.presignExpiration)
	})
}

func TestS3Storage_URL(t *testing.T) {
	ctx := context.Background()
	s, err := NewS3Storage(ctx, testS3Config(), WithPresignExpiration(5*time.Minute))
	require.NoError(t, err)

	raw, err := s.URL(ctx, "invoices/2026/03/INV-20260301-0001.pdf")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/invoices-bucket/freelance/invoices/2026/03/INV-20260301-0001.pdf", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))

	_, err = s.URL(ctx, "../escape.pdf")
	assert.Error(t, err)
}

func TestNew_SelectsDriver(t *testing.T) {
	ctx := context.Background()

	local, err := New(ctx, &config.StorageConfig{Driver: DriverLocal, LocalDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, local)

	remote, err := New(ctx, testS3Config(), nil)
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, remote)

	_, err = New(ctx, &config.StorageConfig{Driver: "ftp"}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}
