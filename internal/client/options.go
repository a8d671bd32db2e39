package client

import (
	"strconv"

	"image-compress-go/internal/config"
	"image-compress-go/internal/model"
)

// Options are the compression fields sent with every submission.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Format    string
}

// DefaultOptions returns the form defaults.
func DefaultOptions() Options {
	return Options{
		MaxWidth:  1280,
		MaxHeight: 1280,
		Quality:   85,
		Format:    model.FormatOriginal,
	}
}

// OptionsFromConfig takes the defaults from the compression config.
func OptionsFromConfig(cfg config.CompressionConfig) Options {
	opts := DefaultOptions()
	if cfg.MaxWidth > 0 {
		opts.MaxWidth = cfg.MaxWidth
	}
	if cfg.MaxHeight > 0 {
		opts.MaxHeight = cfg.MaxHeight
	}
	if cfg.Quality > 0 {
		opts.Quality = cfg.Quality
	}
	return opts
}

// fields returns the form fields in submission order.
func (o Options) fields() [][2]string {
	format := o.Format
	if format == "" {
		format = model.FormatOriginal
	}
	return [][2]string{
		{model.FieldMaxWidth, strconv.Itoa(o.MaxWidth)},
		{model.FieldMaxHeight, strconv.Itoa(o.MaxHeight)},
		{model.FieldQuality, strconv.Itoa(o.Quality)},
		{model.FieldFormat, format},
	}
}
