package compressor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
)

// Tagger stamps encoded JPEG data with a marker in its EXIF metadata.
type Tagger interface {
	Tag(ctx context.Context, data []byte) ([]byte, error)
}

// ExiftoolTagger writes the EXIF Software tag through a long-running exiftool process.
type ExiftoolTagger struct {
	software string
	mutex    sync.Mutex
	et       *exiftool.Exiftool
}

// NewExiftoolTagger starts exiftool. It fails when the exiftool binary is not installed.
func NewExiftoolTagger(software string) (*ExiftoolTagger, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolTagger{software: software, et: et}, nil
}

// Tag sets Software on a temporary copy of data and returns the rewritten bytes.
func (t *ExiftoolTagger) Tag(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "imgcompress-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create tmp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close tmp file: %w", err)
	}

	md := exiftool.EmptyFileMetadata()
	md.File = tmpPath
	md.SetString("Software", t.software)
	files := []exiftool.FileMetadata{md}

	// the exiftool process reads one command at a time
	t.mutex.Lock()
	t.et.WriteMetadata(files)
	t.mutex.Unlock()

	if files[0].Err != nil {
		return nil, fmt.Errorf("exiftool write: %w", files[0].Err)
	}
	return os.ReadFile(tmpPath)
}

// IsStamped reports whether the file at path carries this tagger's Software marker.
func (t *ExiftoolTagger) IsStamped(path string) (bool, error) {
	t.mutex.Lock()
	files := t.et.ExtractMetadata(path)
	t.mutex.Unlock()

	if len(files) == 0 {
		return false, fmt.Errorf("no metadata returned for %s", path)
	}
	if files[0].Err != nil {
		return false, files[0].Err
	}
	sw, err := files[0].GetString("Software")
	if err != nil {
		return false, nil
	}
	return hasSoftwareMarker(sw, t.software), nil
}

// hasSoftwareMarker reports whether the Software tag value contains marker.
// An empty marker matches nothing.
func hasSoftwareMarker(software, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(software, marker)
}

// Close stops the exiftool process.
func (t *ExiftoolTagger) Close() error {
	return t.et.Close()
}
