package extractor

import (
	"fmt"
	"time"
)

// InfoExtractor is the interface for reading image metadata without a full decode.
type InfoExtractor interface {
	Extract(filePath string) (*ImageInfo, error)
}

// CachedInfoExtractor extends InfoExtractor with caching capabilities.
type CachedInfoExtractor interface {
	InfoExtractor
	ClearCache()
	GetCacheStats() CacheStats
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64
	Misses       int64
	HitRate      float64
	TotalQueries int64
}

// ImageInfo describes an image as shown in a preview card.
type ImageInfo struct {
	Width       int
	Height      int
	Format      string
	Camera      string
	TakenAt     *time.Time
	Orientation int
}

// Dimensions returns the size as WIDTHxHEIGHT.
func (i ImageInfo) Dimensions() string {
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}

// Rotated reports whether the EXIF orientation swaps width and height.
func (i ImageInfo) Rotated() bool {
	return i.Orientation >= 5 && i.Orientation <= 8
}
