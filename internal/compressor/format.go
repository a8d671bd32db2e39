package compressor

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Format is an output image format.
type Format string

const (
	FormatOriginal Format = "original"
	FormatJPEG     Format = "jpeg"
	FormatPNG      Format = "png"
	FormatGIF      Format = "gif"
	FormatBMP      Format = "bmp"
	FormatTIFF     Format = "tiff"
	FormatWebP     Format = "webp"
)

var imagingFormats = map[Format]imaging.Format{
	FormatJPEG: imaging.JPEG,
	FormatPNG:  imaging.PNG,
	FormatGIF:  imaging.GIF,
	FormatBMP:  imaging.BMP,
	FormatTIFF: imaging.TIFF,
}

// ParseFormat parses a format form value. An empty value or "original" keeps
// the input format; "jpg" and "tif" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatOriginal):
		return FormatOriginal, nil
	case "jpg", string(FormatJPEG):
		return FormatJPEG, nil
	case string(FormatPNG):
		return FormatPNG, nil
	case string(FormatGIF):
		return FormatGIF, nil
	case string(FormatBMP):
		return FormatBMP, nil
	case "tif", string(FormatTIFF):
		return FormatTIFF, nil
	case string(FormatWebP):
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// FormatForFilename picks the output format that keeps the input format.
// Unknown extensions fall back to JPEG.
func FormatForFilename(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".gif":
		return FormatGIF
	case ".bmp":
		return FormatBMP
	case ".tif", ".tiff":
		return FormatTIFF
	case ".webp":
		return FormatWebP
	default:
		return FormatJPEG
	}
}

// Extension returns the file extension written for the format.
func (f Format) Extension() string {
	if f == FormatOriginal {
		return ""
	}
	return "." + string(f)
}

// AllowedFile reports whether the lower-cased extension of filename is in allowed.
func AllowedFile(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// SecureFilename reduces a client supplied name to a safe ASCII file name.
// Path components are dropped and characters outside [A-Za-z0-9_.-] removed.
func SecureFilename(filename string) string {
	filename = norm.NFKD.String(filename)
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base("/" + filename)

	var b strings.Builder
	for _, r := range filename {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsSpace(r):
			b.WriteRune('_')
		case r == '_' || r == '.' || r == '-',
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// UniqueFilename appends the first eight characters of a random UUID to the
// base name. When format is set the extension is replaced by the format's.
func UniqueFilename(filename string, format Format) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	if base == "" {
		base = "image"
	}
	if format != "" && format != FormatOriginal {
		ext = format.Extension()
	}
	return fmt.Sprintf("%s_%s%s", base, uuid.New().String()[:8], ext)
}
