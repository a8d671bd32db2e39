package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage keeps each area in its own directory.
type LocalStorage struct {
	dirs map[Area]string
}

// NewLocalStorage creates both directories when missing.
func NewLocalStorage(uploadDir, compressedDir string) (*LocalStorage, error) {
	dirs := map[Area]string{
		AreaUploads:    uploadDir,
		AreaCompressed: compressedDir,
	}
	for area, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", area, err)
		}
	}
	return &LocalStorage{dirs: dirs}, nil
}

// Save writes data through a temporary file and renames it into place.
func (s *LocalStorage) Save(ctx context.Context, area Area, name string, data []byte) error {
	path, err := s.path(area, name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write tmp file error: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename error: %w", err)
	}
	return nil
}

// Open returns the file for reading.
func (s *LocalStorage) Open(ctx context.Context, area Area, name string) (io.ReadCloser, ObjectInfo, error) {
	path, err := s.path(area, name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, ObjectInfo{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if info.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return f, ObjectInfo{
		Name:        name,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
	}, nil
}

// Cleanup removes regular files whose modification time is older than maxAge.
func (s *LocalStorage) Cleanup(ctx context.Context, area Area, maxAge time.Duration) (int, error) {
	dir, ok := s.dirs[area]
	if !ok {
		return 0, fmt.Errorf("unknown area: %s", area)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	count := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return count, fmt.Errorf("remove %s: %w", entry.Name(), err)
			}
			count++
		}
	}
	return count, nil
}

func (s *LocalStorage) path(area Area, name string) (string, error) {
	dir, ok := s.dirs[area]
	if !ok {
		return "", fmt.Errorf("unknown area: %s", area)
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
