package processor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"image-compress-go/internal/compressor"
	"image-compress-go/internal/config"
	"image-compress-go/internal/logger"
	"image-compress-go/internal/model"
	"image-compress-go/internal/statistics"
	"image-compress-go/internal/storage"

	"github.com/sirupsen/logrus"
)

// ErrUnsupportedFileType is returned for uploads whose extension is not allowed.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Upload is one file received from a client.
type Upload struct {
	Name string
	Data []byte
}

// ProgressHookFunc receives every finished row of a batch. It is called from
// worker goroutines and must be safe for concurrent use.
type ProgressHookFunc func(index, completed, total int, result model.CompressionResult)

// FileProcessor stores, compresses and publishes uploaded images.
type FileProcessor struct {
	logger     *logrus.Logger
	stats      *statistics.Statistics
	storage    storage.Storage
	compressor compressor.Compressor
	allowed    []string
	workers    int
}

// NewFileProcessor returns a new FileProcessor.
func NewFileProcessor(
	cfg *config.Config,
	logger *logrus.Logger,
	stats *statistics.Statistics,
	store storage.Storage,
	comp compressor.Compressor,
) *FileProcessor {
	workers := cfg.Compression.Workers
	if workers <= 0 {
		workers = 4
	}
	return &FileProcessor{
		logger:     logger,
		stats:      stats,
		storage:    store,
		compressor: comp,
		allowed:    cfg.Compression.AllowedExtensions,
		workers:    workers,
	}
}

// ProcessFile handles one upload. On failure the returned row carries the
// error message and the error is returned as well.
func (fp *FileProcessor) ProcessFile(ctx context.Context, upload Upload, opts compressor.Options) (model.CompressionResult, error) {
	log := logger.WithFile(fp.logger, upload.Name)
	fp.stats.IncrementFilesReceived()

	res := model.CompressionResult{OriginalName: upload.Name}

	if !compressor.AllowedFile(upload.Name, fp.allowed) {
		fp.stats.IncrementFilesRejected()
		log.Warn("Rejected file with unsupported extension")
		res.Error = ErrUnsupportedFileType.Error()
		return res, ErrUnsupportedFileType
	}

	safeName := safeFilename(upload.Name)
	uploadName := compressor.UniqueFilename(safeName, "")

	if err := fp.storage.Save(ctx, storage.AreaUploads, uploadName, upload.Data); err != nil {
		return fp.fail(res, "save_upload", err)
	}

	out, err := fp.compressor.Compress(ctx, upload.Data, safeName, opts)
	if err != nil {
		return fp.fail(res, "compress", err)
	}

	// outputs in the input format reuse the upload name
	outputName := uploadName
	if opts.Format != "" && opts.Format != compressor.FormatOriginal {
		outputName = compressor.UniqueFilename(safeName, out.Result.Format)
	}

	if err := fp.storage.Save(ctx, storage.AreaCompressed, outputName, out.Data); err != nil {
		return fp.fail(res, "save_output", err)
	}

	fp.stats.RecordCompressed(string(out.Result.Format), out.Result.OriginalSize, out.Result.CompressedSize)
	log.WithFields(logrus.Fields{
		"output":    outputName,
		"reduction": out.Result.ReductionPercent,
	}).Infof("Compressed: %s -> %s", uploadName, outputName)

	res.CompressedName = outputName
	res.OriginalSize = out.Result.OriginalSize
	res.CompressedSize = out.Result.CompressedSize
	res.ReductionPercent = out.Result.ReductionPercent
	res.OriginalDimensions = out.Result.OriginalDimensions()
	res.NewDimensions = out.Result.NewDimensions()
	res.DownloadURL = model.PathDownload + url.PathEscape(outputName)
	return res, nil
}

// ProcessBatch processes uploads on a worker pool. Uploads with an empty name
// are skipped; the returned rows keep the order of the remaining uploads.
func (fp *FileProcessor) ProcessBatch(ctx context.Context, uploads []Upload, opts compressor.Options, hook ProgressHookFunc) []model.CompressionResult {
	files := make([]Upload, 0, len(uploads))
	for _, u := range uploads {
		if u.Name == "" {
			continue
		}
		files = append(files, u)
	}
	if len(files) == 0 {
		return []model.CompressionResult{}
	}

	type job struct {
		index  int
		upload Upload
	}

	jobs := make(chan job, len(files))
	results := make([]model.CompressionResult, len(files))
	var completed int64

	numWorkers := min(fp.workers, len(files))
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				var res model.CompressionResult
				if err := ctx.Err(); err != nil {
					res = model.CompressionResult{
						OriginalName: j.upload.Name,
						Error:        fmt.Sprintf("compression failed: %v", err),
					}
				} else {
					res, _ = fp.ProcessFile(ctx, j.upload, opts)
				}
				results[j.index] = res

				done := int(atomic.AddInt64(&completed, 1))
				if hook != nil {
					hook(j.index, done, len(files), res)
				}
			}
		}()
	}

	for i, u := range files {
		jobs <- job{index: i, upload: u}
	}
	close(jobs)

	wg.Wait()
	return results
}

// fail records a processing error and turns it into a result row.
func (fp *FileProcessor) fail(res model.CompressionResult, operation string, err error) (model.CompressionResult, error) {
	logger.WithFileOperation(fp.logger, res.OriginalName, operation).Errorf("Compression error: %v", err)
	fp.stats.AddError(res.OriginalName, operation, err.Error())
	res.Error = fmt.Sprintf("compression failed: %v", err)
	return res, fmt.Errorf("%s: %w", operation, err)
}

// safeFilename sanitises name and keeps its extension intact. Names that
// sanitise to nothing but an extension become "image<ext>".
func safeFilename(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	safe := compressor.SecureFilename(name)
	safeExt := filepath.Ext(safe)
	if !strings.EqualFold(safeExt, ext) || strings.TrimSuffix(safe, safeExt) == "" {
		return "image" + ext
	}
	return safe
}
