package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const defaultLocalDir = "data/documents"

// LocalStorage stores documents below a base directory
type LocalStorage struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
}

// LocalOption configures LocalStorage
type LocalOption func(*LocalStorage)

// WithLocalLogger sets the logger
func WithLocalLogger(logger *zap.Logger) LocalOption {
	return func(s *LocalStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBaseURL makes URL return baseURL + "/" + key instead of a file:// URL
func WithBaseURL(baseURL string) LocalOption {
	return func(s *LocalStorage) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewLocalStorage creates baseDir if needed
func NewLocalStorage(baseDir string, opts ...LocalOption) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = defaultLocalDir
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", abs, err)
	}

	s := &LocalStorage{baseDir: abs, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Put writes data atomically through a temp file and rename
func (s *LocalStorage) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	s.logger.Info("Document stored", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

// Get reads the document stored under key
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// URL returns the configured base URL joined with key, or a file URL
func (s *LocalStorage) URL(_ context.Context, key string) (string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if s.baseURL != "" {
		clean, _ := cleanKey(key)
		return s.baseURL + "/" + clean, nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}

// resolve maps key to a path guaranteed to stay under baseDir
func (s *LocalStorage) resolve(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		s.logger.Warn("Path escape attempt blocked", zap.String("key", key))
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return full, nil
}

var _ DocumentStorage = (*LocalStorage)(nil)
