package extractor

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var _ CachedInfoExtractor = (*EXIFExtractor)(nil)

// EXIFExtractor reads image dimensions from the file header and camera data from EXIF.
type EXIFExtractor struct {
	logger *logrus.Logger
	cache  *sync.Map
	stats  CacheStats
	mutex  sync.RWMutex
}

// NewEXIFExtractor returns a new EXIFExtractor.
func NewEXIFExtractor(logger *logrus.Logger) *EXIFExtractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &EXIFExtractor{
		logger: logger,
		cache:  &sync.Map{},
	}
}

// Extract returns the metadata of an image file. The header decides the
// format, not the extension. Missing EXIF data is not an error; only files
// that cannot be decoded as images are.
func (e *EXIFExtractor) Extract(filePath string) (*ImageInfo, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if cached := e.getCachedInfo(filePath, fileInfo); cached != nil {
		e.incrementCacheHits()
		return cached, nil
	}
	e.incrementCacheMisses()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}

	info := &ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
	}

	if _, err := file.Seek(0, io.SeekStart); err == nil {
		e.readEXIF(file, info)
	}

	if info.Rotated() {
		info.Width, info.Height = info.Height, info.Width
	}

	e.cacheInfo(filePath, fileInfo, info)
	return info, nil
}

// ClearCache removes all entries from the internal cache and resets statistics.
func (e *EXIFExtractor) ClearCache() {
	e.mutex.Lock()
	e.cache = &sync.Map{}
	e.stats = CacheStats{}
	e.mutex.Unlock()
}

// GetCacheStats returns cache statistics for this extractor.
func (e *EXIFExtractor) GetCacheStats() CacheStats {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	stats := e.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

// readEXIF fills camera, capture time and orientation using rwcarlsen/goexif.
func (e *EXIFExtractor) readEXIF(r io.Reader, info *ImageInfo) {
	x, err := exif.Decode(r)
	if err != nil {
		e.logger.Debugf("No EXIF data: %v", err)
		return
	}

	if tm, err := x.DateTime(); err == nil {
		info.TakenAt = &tm
	} else if field, err := x.Get(exif.DateTimeOriginal); err == nil {
		if dateStr, err := field.StringVal(); err == nil {
			info.TakenAt = parseEXIFDateTime(dateStr)
		}
	}

	var camera []string
	for _, name := range []exif.FieldName{exif.Make, exif.Model} {
		if field, err := x.Get(name); err == nil {
			if val, err := field.StringVal(); err == nil && strings.TrimSpace(val) != "" {
				camera = append(camera, strings.TrimSpace(val))
			}
		}
	}
	info.Camera = strings.Join(camera, " ")

	if field, err := x.Get(exif.Orientation); err == nil {
		if val, err := field.Int(0); err == nil {
			info.Orientation = val
		}
	}
}

// parseEXIFDateTime parses an EXIF date time string. Returns nil if parsing fails.
func parseEXIFDateTime(dateStr string) *time.Time {
	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		time.RFC3339,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return &date
		}
	}
	return nil
}

// getCacheKey returns a cache key for the given file path and file info.
func (e *EXIFExtractor) getCacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

// getCachedInfo returns a copy of the cached info, or nil if not found.
func (e *EXIFExtractor) getCachedInfo(filePath string, fileInfo os.FileInfo) *ImageInfo {
	e.mutex.RLock()
	cache := e.cache
	e.mutex.RUnlock()

	if value, ok := cache.Load(e.getCacheKey(filePath, fileInfo)); ok {
		if info, ok := value.(ImageInfo); ok {
			return &info
		}
	}
	return nil
}

// cacheInfo stores a copy of info in the cache.
func (e *EXIFExtractor) cacheInfo(filePath string, fileInfo os.FileInfo, info *ImageInfo) {
	e.mutex.RLock()
	cache := e.cache
	e.mutex.RUnlock()

	cache.Store(e.getCacheKey(filePath, fileInfo), *info)
}

// incrementCacheHits increments the cache hit counter.
func (e *EXIFExtractor) incrementCacheHits() {
	e.mutex.Lock()
	e.stats.Hits++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}

// incrementCacheMisses increments the cache miss counter.
func (e *EXIFExtractor) incrementCacheMisses() {
	e.mutex.Lock()
	e.stats.Misses++
	e.stats.TotalQueries++
	e.mutex.Unlock()
}
