package compressor

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for output formats no encoder exists for.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrEmptyImage is returned when the decoded image has no pixels.
	ErrEmptyImage = errors.New("image is empty")
)

// Options defines parameters for compressing a single image.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	// Format is the output format; FormatOriginal keeps the input format.
	Format Format
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.MaxWidth <= 0 || o.MaxHeight <= 0 {
		return fmt.Errorf("max dimensions must be positive: %dx%d", o.MaxWidth, o.MaxHeight)
	}
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("quality must be within 0-100: %d", o.Quality)
	}
	return nil
}

// Result describes the result of compressing a single image.
type Result struct {
	OriginalSize     int64
	CompressedSize   int64
	OriginalWidth    int
	OriginalHeight   int
	NewWidth         int
	NewHeight        int
	ReductionPercent float64
	Format           Format
}

// OriginalDimensions returns the input size as WIDTHxHEIGHT.
func (r Result) OriginalDimensions() string {
	return fmt.Sprintf("%dx%d", r.OriginalWidth, r.OriginalHeight)
}

// NewDimensions returns the output size as WIDTHxHEIGHT.
func (r Result) NewDimensions() string {
	return fmt.Sprintf("%dx%d", r.NewWidth, r.NewHeight)
}

// Output is an encoded image together with its statistics.
type Output struct {
	Data   []byte
	Result Result
}

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress decodes data, fits it into the option box and re-encodes it.
	// filename is only used to pick the format when Options.Format is original.
	Compress(ctx context.Context, data []byte, filename string, opts Options) (*Output, error)
}
