package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StorageProvider abstracts object storage operations.
type StorageProvider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// AccessPath returns the URL path the object is served under.
	AccessPath(key string) string
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Service stores uploaded chat images and resolves their public URLs.
type Service struct {
	provider      StorageProvider
	publicBaseURL string
	maxBytes      int64
	logger        *slog.Logger
	newName       func() string
}

func NewService(log *slog.Logger, provider StorageProvider, publicBaseURL string, maxBytes int64) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider:      provider,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		maxBytes:      maxBytes,
		logger:        log.With(slog.String("service", "media")),
		newName:       uuid.NewString,
	}
}

// Upload stores an image under a fresh unique name and returns its public URL.
func (s *Service) Upload(ctx context.Context, filename string, reader io.Reader) (string, error) {
	if s.provider == nil {
		return "", ErrProviderUnavailable
	}
	data, err := readWithLimit(reader, s.maxBytes)
	if err != nil {
		return "", err
	}
	mimeType := http.DetectContentType(data)
	ext, ok := imageExtensions[mimeType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	key := s.uniqueKey(filename, ext)
	if err := s.provider.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	s.logger.Info("image uploaded",
		slog.String("key", key),
		slog.String("mime", mimeType),
		slog.Int("size", len(data)),
	)
	return s.URL(key), nil
}

// URL returns the absolute URL of a stored key.
func (s *Service) URL(key string) string {
	return s.publicBaseURL + s.provider.AccessPath(key)
}

// Open returns the stored object and its content type.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if s.provider == nil {
		return nil, "", ErrProviderUnavailable
	}
	rc, err := s.provider.Open(ctx, key)
	if err != nil {
		return nil, "", errors.Join(ErrAssetNotFound, err)
	}
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

// uniqueKey builds "<shard>/<uuid><ext>". The client extension is kept when it
// agrees with the sniffed type.
func (s *Service) uniqueKey(filename, sniffedExt string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext != sniffedExt {
		ext = sniffedExt
	}
	name := s.newName()
	return name[:2] + "/" + name + ext
}
