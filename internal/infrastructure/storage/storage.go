// Package storage keeps rendered invoice documents on the local filesystem
// or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	infraconfig "github.com/freelance/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Storage drivers
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// ErrObjectNotFound is returned by Get when no document exists under a key
var ErrObjectNotFound = errors.New("storage object not found")

// DocumentStorage stores documents by key. Keys are slash-separated
// relative paths such as "invoices/2026/03/INV-20260301-0001.pdf".
type DocumentStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a location the document can be fetched from
	URL(ctx context.Context, key string) (string, error)
}

// New builds the DocumentStorage selected by cfg.Driver
func New(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (DocumentStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	switch cfg.Driver {
	case DriverLocal, "":
		return NewLocalStorage(cfg.LocalDir, WithLocalLogger(logger))
	case DriverS3:
		return NewS3Storage(ctx, cfg, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// InvoiceKey returns the storage key of an invoice PDF. Invoice numbers
// start with a YYYYMMDD date after the prefix, which is used to shard by month.
func InvoiceKey(number string) string {
	parts := strings.Split(number, "-")
	if len(parts) >= 3 && len(parts[1]) == 8 {
		return path.Join("invoices", parts[1][:4], parts[1][4:6], number+".pdf")
	}
	return path.Join("invoices", number+".pdf")
}

// cleanKey rejects empty, absolute and parent-relative keys
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("storage key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid storage key %q", key)
		}
	}
	return path.Clean(key), nil
}
