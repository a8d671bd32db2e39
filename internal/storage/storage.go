// Package storage keeps uploaded originals and compressed outputs until they
// are removed by age-based cleanup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"image-compress-go/internal/config"
)

// Area is a storage namespace.
type Area string

const (
	AreaUploads    Area = "uploads"
	AreaCompressed Area = "compressed"
)

var (
	// ErrNotFound is returned when the named object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidName is returned for names that could escape their area.
	ErrInvalidName = errors.New("invalid object name")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// Storage saves, serves and expires files of both areas.
type Storage interface {
	Save(ctx context.Context, area Area, name string, data []byte) error
	Open(ctx context.Context, area Area, name string) (io.ReadCloser, ObjectInfo, error)
	// Cleanup removes objects older than maxAge and returns how many were removed.
	Cleanup(ctx context.Context, area Area, maxAge time.Duration) (int, error)
}

// New builds the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig, log *logrus.Logger) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.UploadDir, cfg.CompressedDir)
	case "minio":
		return NewMinIOStorage(ctx, cfg.MinIO, log)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// CleanupAll runs Cleanup on both areas and returns the total removed.
func CleanupAll(ctx context.Context, s Storage, maxAge time.Duration) (int, error) {
	total := 0
	for _, area := range []Area{AreaUploads, AreaCompressed} {
		n, err := s.Cleanup(ctx, area, maxAge)
		total += n
		if err != nil {
			return total, fmt.Errorf("cleanup %s: %w", area, err)
		}
	}
	return total, nil
}

// validateName rejects empty names and anything with a path component.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
