package compressor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// DefaultCompressor is the default implementation of the Compressor interface.
type DefaultCompressor struct {
	logger *logrus.Logger
	tagger Tagger
}

// NewDefaultCompressor creates a new DefaultCompressor instance. tagger may be nil.
func NewDefaultCompressor(logger *logrus.Logger, tagger Tagger) *DefaultCompressor {
	if logger == nil {
		logger = logrus.New()
	}
	return &DefaultCompressor{
		logger: logger,
		tagger: tagger,
	}
}

// Compress performs image compression according to the provided options.
func (c *DefaultCompressor) Compress(ctx context.Context, data []byte, filename string, opts Options) (*Output, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, ErrEmptyImage
	}

	res := Result{
		OriginalSize:   int64(len(data)),
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}

	img = fitInto(img, opts.MaxWidth, opts.MaxHeight)
	res.NewWidth = img.Bounds().Dx()
	res.NewHeight = img.Bounds().Dy()

	format := opts.Format
	if format == "" || format == FormatOriginal {
		format = FormatForFilename(filename)
	}
	res.Format = format

	encoded, err := encode(img, format, opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode error: %w", err)
	}

	if c.tagger != nil && format == FormatJPEG {
		tagged, err := c.tagger.Tag(ctx, encoded)
		if err != nil {
			c.logger.WithField("file", filename).Warnf("warning: exif not stamped: %v", err)
		} else {
			encoded = tagged
		}
	}

	res.CompressedSize = int64(len(encoded))
	res.ReductionPercent = ReductionPercent(res.OriginalSize, res.CompressedSize)

	c.logger.WithFields(logrus.Fields{
		"file":      filename,
		"format":    format,
		"reduction": res.ReductionPercent,
	}).Debugf("Compressed %s -> %s", res.OriginalDimensions(), res.NewDimensions())

	return &Output{Data: encoded, Result: res}, nil
}

// fitInto scales img down to fit within maxW x maxH keeping the aspect ratio.
// Images that already fit are returned unchanged.
func fitInto(img image.Image, maxW, maxH int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := max(int(float64(w)*ratio), 1)
	newH := max(int(float64(h)*ratio), 1)

	return imaging.Resize(img, newW, newH, imaging.Lanczos)
}

// encode writes img in the given format to a buffer.
func encode(img image.Image, format Format, quality int) ([]byte, error) {
	if format == FormatWebP {
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality, Method: 4}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	imgFormat, ok := imagingFormats[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var opts []imaging.EncodeOption
	switch format {
	case FormatJPEG:
		// quality 0 is not a valid JPEG setting
		opts = append(opts, imaging.JPEGQuality(max(quality, 1)))
	case FormatPNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imgFormat, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReductionPercent returns (1 - compressed/original) * 100 rounded to two
// decimals, or 0 when original is 0.
func ReductionPercent(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	reduction := (1 - float64(compressed)/float64(original)) * 100
	return math.Round(reduction*100) / 100
}
