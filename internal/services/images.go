package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sparkride/apiserver/internal/storage"
)

// ImageService stores and serves uploaded bike photos through the
// configured object storage backend.
type ImageService struct {
	storage *storage.Storage
}

// NewImageService wraps the given storage. storage may be nil when no
// backend is configured; uploads then fail and serving returns not found.
func NewImageService(st *storage.Storage) *ImageService {
	return &ImageService{storage: st}
}

// Enabled reports whether an object storage backend is configured.
func (s *ImageService) Enabled() bool {
	return s.storage != nil
}

// Upload stores image data under a collision-free key derived from the
// original filename and returns the key.
func (s *ImageService) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("image storage is not configured")
	}

	key := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), safeExt(filename))
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes a stored image. Without a configured backend it is a
// no-op.
func (s *ImageService) Remove(ctx context.Context, key string) error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Delete(ctx, key)
}

// Open returns a reader for a stored image and its content type.
func (s *ImageService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if s.storage == nil {
		return nil, "", fmt.Errorf("image storage is not configured")
	}

	reader, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return reader, contentType, nil
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return ext
	default:
		return ".bin"
	}
}
