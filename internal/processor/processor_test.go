package processor_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gen2brain/webp"
	"github.com/m-mizutani/gt"

	"image-compress-go/internal/compressor"
	"image-compress-go/internal/config"
	"image-compress-go/internal/logger"
	"image-compress-go/internal/model"
	"image-compress-go/internal/processor"
	"image-compress-go/internal/statistics"
	"image-compress-go/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	gt.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type fixture struct {
	proc  *processor.FileProcessor
	store *storage.LocalStorage
	stats *statistics.Statistics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	gt.NoError(t, cfg.Validate())

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(dir, "uploads"), filepath.Join(dir, "compressed"))
	gt.NoError(t, err)

	stats := statistics.NewStatistics()
	comp := compressor.NewDefaultCompressor(logger.Discard(), nil)
	return fixture{
		proc:  processor.NewFileProcessor(cfg, logger.Discard(), stats, store, comp),
		store: store,
		stats: stats,
	}
}

func options(format compressor.Format) compressor.Options {
	return compressor.Options{MaxWidth: 100, MaxHeight: 100, Quality: 80, Format: format}
}

func TestProcessFile_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.proc.ProcessFile(ctx, processor.Upload{Name: "My Photo.png", Data: pngBytes(t, 300, 150)}, options(compressor.FormatOriginal))
	gt.NoError(t, err)
	gt.Equal(t, res.OriginalName, "My Photo.png")
	gt.Equal(t, res.OriginalDimensions, "300x150")
	gt.Equal(t, res.NewDimensions, "100x50")
	gt.Equal(t, strings.HasPrefix(res.CompressedName, "My_Photo_"), true)
	gt.Equal(t, strings.HasSuffix(res.CompressedName, ".png"), true)
	gt.Equal(t, res.DownloadURL, "/download/"+res.CompressedName)
	gt.Equal(t, res.Error, "")

	rc, info, err := f.store.Open(ctx, storage.AreaCompressed, res.CompressedName)
	gt.NoError(t, err)
	rc.Close()
	gt.Equal(t, info.Size, res.CompressedSize)

	_, _, err = f.store.Open(ctx, storage.AreaUploads, res.CompressedName)
	gt.NoError(t, err)

	gt.Equal(t, f.stats.Snapshot().FilesCompressed, int64(1))
}

func TestProcessFile_FormatConversionRenames(t *testing.T) {
	f := newFixture(t)

	res, err := f.proc.ProcessFile(context.Background(), processor.Upload{Name: "cat.png", Data: pngBytes(t, 20, 20)}, options(compressor.FormatJPEG))
	gt.NoError(t, err)
	gt.Equal(t, strings.HasSuffix(res.CompressedName, ".jpeg"), true)
}

func TestProcessFile_OriginalKeepsWebP(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	gt.NoError(t, webp.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 30, 15)), webp.Options{Quality: 80}))

	res, err := f.proc.ProcessFile(context.Background(), processor.Upload{Name: "sticker.webp", Data: buf.Bytes()}, options(compressor.FormatOriginal))
	gt.NoError(t, err)
	gt.Equal(t, strings.HasPrefix(res.CompressedName, "sticker_"), true)
	gt.Equal(t, strings.HasSuffix(res.CompressedName, ".webp"), true)
	gt.Equal(t, res.NewDimensions, "30x15")
}

func TestProcessFile_NonASCIIName(t *testing.T) {
	f := newFixture(t)

	res, err := f.proc.ProcessFile(context.Background(), processor.Upload{Name: "照片.png", Data: pngBytes(t, 20, 20)}, options(compressor.FormatOriginal))
	gt.NoError(t, err)
	gt.Equal(t, res.OriginalName, "照片.png")
	gt.Equal(t, strings.HasPrefix(res.CompressedName, "image_"), true)
	gt.Equal(t, strings.HasSuffix(res.CompressedName, ".png"), true)
}

func TestProcessFile_Rejected(t *testing.T) {
	f := newFixture(t)

	res, err := f.proc.ProcessFile(context.Background(), processor.Upload{Name: "notes.txt", Data: []byte("hello")}, options(compressor.FormatOriginal))
	gt.Equal(t, errors.Is(err, processor.ErrUnsupportedFileType), true)
	gt.Equal(t, res.Error, "unsupported file type")
	gt.Equal(t, f.stats.Snapshot().FilesRejected, int64(1))
}

func TestProcessFile_CorruptImage(t *testing.T) {
	f := newFixture(t)

	res, err := f.proc.ProcessFile(context.Background(), processor.Upload{Name: "broken.jpg", Data: []byte("garbage")}, options(compressor.FormatOriginal))
	gt.Error(t, err)
	gt.String(t, res.Error).Contains("compression failed: ")
	gt.Equal(t, res.DownloadURL, "")
	gt.Equal(t, f.stats.Snapshot().FilesFailed, int64(1))
}

func TestProcessBatch_KeepsOrderAndReportsProgress(t *testing.T) {
	f := newFixture(t)

	uploads := []processor.Upload{
		{Name: "a.png", Data: pngBytes(t, 10, 10)},
		{Name: "", Data: []byte("skipped")},
		{Name: "b.txt", Data: []byte("text")},
		{Name: "c.png", Data: pngBytes(t, 200, 100)},
		{Name: "d.gif", Data: []byte("not a gif")},
	}
	for i := 0; i < 6; i++ {
		uploads = append(uploads, processor.Upload{Name: fmt.Sprintf("extra%d.png", i), Data: pngBytes(t, 12, 12)})
	}

	var mutex sync.Mutex
	var seen []int
	maxCompleted := 0
	results := f.proc.ProcessBatch(context.Background(), uploads, options(compressor.FormatOriginal),
		func(index, completed, total int, _ model.CompressionResult) {
			mutex.Lock()
			defer mutex.Unlock()
			seen = append(seen, index)
			maxCompleted = max(maxCompleted, completed)
			gt.Equal(t, total, 10)
		})

	gt.Equal(t, len(results), 10)
	gt.Equal(t, results[0].OriginalName, "a.png")
	gt.Equal(t, results[1].OriginalName, "b.txt")
	gt.Equal(t, results[1].Error, "unsupported file type")
	gt.Equal(t, results[2].OriginalName, "c.png")
	gt.Equal(t, results[2].NewDimensions, "100x50")
	gt.Equal(t, results[3].Failed(), true)
	for i := 0; i < 6; i++ {
		gt.Equal(t, results[4+i].OriginalName, fmt.Sprintf("extra%d.png", i))
		gt.Equal(t, results[4+i].Failed(), false)
	}

	gt.Equal(t, len(seen), 10)
	gt.Equal(t, maxCompleted, 10)
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.proc.ProcessBatch(ctx, []processor.Upload{{Name: "a.png", Data: pngBytes(t, 4, 4)}}, options(compressor.FormatOriginal), nil)
	gt.Equal(t, len(results), 1)
	gt.String(t, results[0].Error).Contains("context canceled")
}

func TestProcessBatch_Empty(t *testing.T) {
	f := newFixture(t)
	results := f.proc.ProcessBatch(context.Background(), []processor.Upload{{Name: ""}}, options(compressor.FormatOriginal), nil)
	gt.Equal(t, len(results), 0)
}
