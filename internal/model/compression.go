// Package model holds the JSON shapes exchanged between the compression
// server and the upload controller.
package model

import "encoding/json"

// Multipart field names of the upload endpoints.
const (
	FieldFile      = "file"
	FieldFiles     = "files[]"
	FieldMaxWidth  = "max_width"
	FieldMaxHeight = "max_height"
	FieldQuality   = "quality"
	FieldFormat    = "format"
)

// Endpoint paths served by the compression server.
const (
	PathUpload     = "/upload"
	PathBatch      = "/batch"
	PathDownload   = "/download/"
	PathCleanup    = "/cleanup"
	PathStatistics = "/api/statistics"
	PathWebSocket  = "/ws"
)

// FormatOriginal keeps the input format of each file.
const FormatOriginal = "original"

// CompressionResult describes the outcome for one file. Error is set instead of
// the size and dimension fields when the file could not be compressed.
type CompressionResult struct {
	OriginalName       string  `json:"original_name"`
	CompressedName     string  `json:"compressed_name,omitempty"`
	OriginalSize       int64   `json:"original_size,omitempty"`
	CompressedSize     int64   `json:"compressed_size,omitempty"`
	ReductionPercent   float64 `json:"reduction_percent,omitempty"`
	OriginalDimensions string  `json:"original_dimensions,omitempty"`
	NewDimensions      string  `json:"new_dimensions,omitempty"`
	DownloadURL        string  `json:"download_url,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// Failed reports whether the row carries a per-file error.
func (r CompressionResult) Failed() bool {
	return r.Error != ""
}

type errorRow struct {
	OriginalName string `json:"original_name"`
	Error        string `json:"error"`
}

type successRow struct {
	OriginalName       string  `json:"original_name"`
	CompressedName     string  `json:"compressed_name,omitempty"`
	OriginalSize       int64   `json:"original_size"`
	CompressedSize     int64   `json:"compressed_size"`
	ReductionPercent   float64 `json:"reduction_percent"`
	OriginalDimensions string  `json:"original_dimensions"`
	NewDimensions      string  `json:"new_dimensions"`
	DownloadURL        string  `json:"download_url"`
}

// MarshalJSON writes an error row as {original_name, error} and a successful
// row with every stat key, zero values included.
func (r CompressionResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(errorRow{OriginalName: r.OriginalName, Error: r.Error})
	}
	return json.Marshal(successRow{
		OriginalName:       r.OriginalName,
		CompressedName:     r.CompressedName,
		OriginalSize:       r.OriginalSize,
		CompressedSize:     r.CompressedSize,
		ReductionPercent:   r.ReductionPercent,
		OriginalDimensions: r.OriginalDimensions,
		NewDimensions:      r.NewDimensions,
		DownloadURL:        r.DownloadURL,
	})
}

// UploadResponse is the body of POST /upload.
type UploadResponse struct {
	Success            bool    `json:"success"`
	Message            string  `json:"message,omitempty"`
	Filename           string  `json:"filename,omitempty"`
	OriginalName       string  `json:"original_name,omitempty"`
	OriginalSize       int64   `json:"original_size"`
	CompressedSize     int64   `json:"compressed_size"`
	ReductionPercent   float64 `json:"reduction_percent"`
	OriginalDimensions string  `json:"original_dimensions,omitempty"`
	NewDimensions      string  `json:"new_dimensions,omitempty"`
	DownloadURL        string  `json:"download_url,omitempty"`
	Error              string  `json:"error,omitempty"`
}

// NewUploadResponse builds a successful single-file response from a result row.
func NewUploadResponse(r CompressionResult, message string) UploadResponse {
	return UploadResponse{
		Success:            true,
		Message:            message,
		Filename:           r.CompressedName,
		OriginalName:       r.OriginalName,
		OriginalSize:       r.OriginalSize,
		CompressedSize:     r.CompressedSize,
		ReductionPercent:   r.ReductionPercent,
		OriginalDimensions: r.OriginalDimensions,
		NewDimensions:      r.NewDimensions,
		DownloadURL:        r.DownloadURL,
	}
}

// Result converts a single-file response into a result row.
func (u UploadResponse) Result() CompressionResult {
	return CompressionResult{
		OriginalName:       u.OriginalName,
		CompressedName:     u.Filename,
		OriginalSize:       u.OriginalSize,
		CompressedSize:     u.CompressedSize,
		ReductionPercent:   u.ReductionPercent,
		OriginalDimensions: u.OriginalDimensions,
		NewDimensions:      u.NewDimensions,
		DownloadURL:        u.DownloadURL,
		Error:              u.Error,
	}
}

// BatchResponse is the body of POST /batch.
type BatchResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Results []CompressionResult `json:"results,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Succeeded counts result rows without a per-file error.
func (b BatchResponse) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if !r.Failed() {
			n++
		}
	}
	return n
}

// CleanupResponse is the body of POST /cleanup.
type CleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Removed int    `json:"removed"`
	Error   string `json:"error,omitempty"`
}

// ProgressEvent is pushed to websocket clients while a batch runs.
type ProgressEvent struct {
	BatchID   string             `json:"batch_id"`
	Index     int                `json:"index"`
	Total     int                `json:"total"`
	Completed int                `json:"completed"`
	Result    *CompressionResult `json:"result,omitempty"`
}
