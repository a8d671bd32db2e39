package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"image-compress-go/internal/compressor"
	"image-compress-go/internal/config"
	"image-compress-go/internal/model"
	"image-compress-go/internal/processor"
	"image-compress-go/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipartMemory is the part of a form kept in memory before spilling to disk.
const multipartMemory = 8 << 20

var errTooLarge = errors.New("request body too large")

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "image compression server",
		Data: map[string]interface{}{
			"endpoints": []string{
				"POST " + model.PathUpload,
				"POST " + model.PathBatch,
				"GET " + model.PathDownload + "{filename}",
				"POST " + model.PathCleanup,
				"GET " + model.PathStatistics,
				"GET /health",
				"GET " + model.PathWebSocket,
			},
			"formats":            config.GetAvailableFormats(),
			"allowed_extensions": s.cfg.Compression.AllowedExtensions,
			"max_upload_size":    s.cfg.Server.MaxUploadSize,
			"defaults": map[string]int{
				model.FieldMaxWidth:  s.cfg.Compression.MaxWidth,
				model.FieldMaxHeight: s.cfg.Compression.MaxHeight,
				model.FieldQuality:   s.cfg.Compression.Quality,
			},
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(r); err != nil {
		s.writeFormError(w, err)
		return
	}

	headers := r.MultipartForm.File[model.FieldFile]
	if len(headers) == 0 {
		// a file input submitted without a selection arrives as a plain value
		if _, ok := r.MultipartForm.Value[model.FieldFile]; ok {
			s.writeError(w, "no selected file", http.StatusBadRequest)
			return
		}
		s.writeError(w, "no file part", http.StatusBadRequest)
		return
	}
	if headers[0].Filename == "" {
		s.writeError(w, "no selected file", http.StatusBadRequest)
		return
	}

	opts, err := s.parseOptions(r)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	upload, err := readUpload(headers[0])
	if err != nil {
		s.writeError(w, fmt.Sprintf("failed to read upload: %v", err), http.StatusBadRequest)
		return
	}

	s.stats.IncrementSingleUploads()
	res, err := s.processor.ProcessFile(r.Context(), upload, opts)
	if err != nil {
		if errors.Is(err, processor.ErrUnsupportedFileType) {
			s.writeError(w, res.Error, http.StatusBadRequest)
			return
		}
		s.writeError(w, res.Error, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, model.NewUploadResponse(res, "image compressed"))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(r); err != nil {
		s.writeFormError(w, err)
		return
	}

	headers := r.MultipartForm.File[model.FieldFiles]
	if len(headers) == 0 {
		if _, ok := r.MultipartForm.Value[model.FieldFiles]; !ok {
			s.writeError(w, "no file part", http.StatusBadRequest)
			return
		}
	}

	opts, err := s.parseOptions(r)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	uploads := make([]processor.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh)
		if err != nil {
			s.writeError(w, fmt.Sprintf("failed to read upload: %v", err), http.StatusBadRequest)
			return
		}
		uploads = append(uploads, upload)
	}

	s.stats.IncrementBatchesHandled()
	batchID := uuid.NewString()
	s.broadcastWSMessage("batch_started", map[string]interface{}{
		"batch_id": batchID,
		"total":    len(uploads),
	})

	results := s.processor.ProcessBatch(r.Context(), uploads, opts,
		func(index, completed, total int, result model.CompressionResult) {
			s.broadcastWSMessage("file_processed", model.ProgressEvent{
				BatchID:   batchID,
				Index:     index,
				Total:     total,
				Completed: completed,
				Result:    &result,
			})
		})

	resp := model.BatchResponse{
		Success: true,
		Message: fmt.Sprintf("processed %d files", len(results)),
		Results: results,
	}
	s.broadcastWSMessage("batch_completed", map[string]interface{}{
		"batch_id":  batchID,
		"total":     len(results),
		"succeeded": resp.Succeeded(),
	})

	s.writeJSON(w, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]

	rc, info, err := s.storage.Open(r.Context(), storage.AreaCompressed, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			s.writeError(w, "file not found", http.StatusNotFound)
			return
		}
		s.log.Errorf("Failed to open %s: %v", name, err)
		s.writeError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warnf("Download of %s interrupted: %v", name, err)
	}
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := s.runCleanup(r.Context())
	if err != nil {
		s.log.Errorf("Cleanup failed: %v", err)
		s.writeJSONStatus(w, model.CleanupResponse{
			Success: false,
			Removed: removed,
			Error:   fmt.Sprintf("cleanup failed: %v", err),
		}, http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, model.CleanupResponse{
		Success: true,
		Message: fmt.Sprintf("removed %d files", removed),
		Removed: removed,
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    s.stats.Snapshot(),
	})
}

// parseForm reads the multipart body. Bodies that are not multipart yield an
// empty form so the handlers report the missing file part.
func (s *Server) parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(multipartMemory)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		r.MultipartForm = &multipart.Form{
			Value: map[string][]string{},
			File:  map[string][]*multipart.FileHeader{},
		}
		return nil
	case isTooLarge(err):
		return errTooLarge
	default:
		return fmt.Errorf("invalid multipart body: %w", err)
	}
}

func (s *Server) writeFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTooLarge) {
		s.writeError(w, fmt.Sprintf("file too large (max %d bytes)", s.cfg.Server.MaxUploadSize), http.StatusRequestEntityTooLarge)
		return
	}
	s.writeError(w, err.Error(), http.StatusBadRequest)
}

// parseOptions reads the compression fields; missing fields use the configured
// defaults.
func (s *Server) parseOptions(r *http.Request) (compressor.Options, error) {
	defaults := s.cfg.Compression
	opts := compressor.Options{}

	var err error
	if opts.MaxWidth, err = intField(r, model.FieldMaxWidth, defaults.MaxWidth); err != nil {
		return opts, err
	}
	if opts.MaxHeight, err = intField(r, model.FieldMaxHeight, defaults.MaxHeight); err != nil {
		return opts, err
	}
	if opts.Quality, err = intField(r, model.FieldQuality, defaults.Quality); err != nil {
		return opts, err
	}
	if opts.Format, err = compressor.ParseFormat(r.FormValue(model.FieldFormat)); err != nil {
		return opts, err
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func intField(r *http.Request, field string, def int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return v, nil
}

func readUpload(fh *multipart.FileHeader) (processor.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return processor.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return processor.Upload{}, err
	}
	return processor.Upload{Name: fh.Filename, Data: data}, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
