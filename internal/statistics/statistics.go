package statistics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains counters for the work done by the compression server.
type Statistics struct {
	FilesReceived   int64
	FilesCompressed int64
	FilesFailed     int64
	FilesRejected   int64
	SingleUploads   int64
	BatchesHandled  int64

	BytesIn  int64
	BytesOut int64

	CleanupRuns  int64
	FilesCleaned int64

	StartTime time.Time

	Errors []StatError

	mutex sync.RWMutex

	FormatStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FileName  string
	Operation string
	Error     string
	Timestamp time.Time
}

// Snapshot is a point-in-time copy suitable for JSON output.
type Snapshot struct {
	FilesReceived    int64            `json:"files_received"`
	FilesCompressed  int64            `json:"files_compressed"`
	FilesFailed      int64            `json:"files_failed"`
	FilesRejected    int64            `json:"files_rejected"`
	SingleUploads    int64            `json:"single_uploads"`
	BatchesHandled   int64            `json:"batches_handled"`
	BytesIn          int64            `json:"bytes_in"`
	BytesOut         int64            `json:"bytes_out"`
	ReductionPercent float64          `json:"reduction_percent"`
	CleanupRuns      int64            `json:"cleanup_runs"`
	FilesCleaned     int64            `json:"files_cleaned"`
	Formats          map[string]int64 `json:"formats"`
	Uptime           string           `json:"uptime"`
	RecentErrors     int              `json:"recent_errors"`
}

// maxErrors bounds the in-memory error list of a long running server.
const maxErrors = 100

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:   time.Now(),
		FormatStats: make(map[string]int64),
		Errors:      make([]StatError, 0),
	}
}

// IncrementFilesReceived increases the count of received files by 1.
func (s *Statistics) IncrementFilesReceived() {
	atomic.AddInt64(&s.FilesReceived, 1)
}

// IncrementFilesRejected increases the count of files refused before compression by 1.
func (s *Statistics) IncrementFilesRejected() {
	atomic.AddInt64(&s.FilesRejected, 1)
}

// IncrementSingleUploads increases the count of /upload requests by 1.
func (s *Statistics) IncrementSingleUploads() {
	atomic.AddInt64(&s.SingleUploads, 1)
}

// IncrementBatchesHandled increases the count of /batch requests by 1.
func (s *Statistics) IncrementBatchesHandled() {
	atomic.AddInt64(&s.BatchesHandled, 1)
}

// RecordCompressed records a successful compression.
func (s *Statistics) RecordCompressed(format string, bytesIn, bytesOut int64) {
	atomic.AddInt64(&s.FilesCompressed, 1)
	atomic.AddInt64(&s.BytesIn, bytesIn)
	atomic.AddInt64(&s.BytesOut, bytesOut)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FormatStats[format]++
}

// RecordCleanup records one cleanup run that removed n files.
func (s *Statistics) RecordCleanup(n int) {
	atomic.AddInt64(&s.CleanupRuns, 1)
	atomic.AddInt64(&s.FilesCleaned, int64(n))
}

// AddError records a failed file.
func (s *Statistics) AddError(fileName, operation, errorMsg string) {
	atomic.AddInt64(&s.FilesFailed, 1)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FileName:  fileName,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
	if len(s.Errors) > maxErrors {
		s.Errors = s.Errors[len(s.Errors)-maxErrors:]
	}
}

// Snapshot returns a consistent copy of the counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	formats := make(map[string]int64, len(s.FormatStats))
	for k, v := range s.FormatStats {
		formats[k] = v
	}
	errCount := len(s.Errors)
	s.mutex.RUnlock()

	bytesIn := atomic.LoadInt64(&s.BytesIn)
	bytesOut := atomic.LoadInt64(&s.BytesOut)

	var reduction float64
	if bytesIn > 0 {
		reduction = (1 - float64(bytesOut)/float64(bytesIn)) * 100
	}

	return Snapshot{
		FilesReceived:    atomic.LoadInt64(&s.FilesReceived),
		FilesCompressed:  atomic.LoadInt64(&s.FilesCompressed),
		FilesFailed:      atomic.LoadInt64(&s.FilesFailed),
		FilesRejected:    atomic.LoadInt64(&s.FilesRejected),
		SingleUploads:    atomic.LoadInt64(&s.SingleUploads),
		BatchesHandled:   atomic.LoadInt64(&s.BatchesHandled),
		BytesIn:          bytesIn,
		BytesOut:         bytesOut,
		ReductionPercent: reduction,
		CleanupRuns:      atomic.LoadInt64(&s.CleanupRuns),
		FilesCleaned:     atomic.LoadInt64(&s.FilesCleaned),
		Formats:          formats,
		Uptime:           time.Since(s.StartTime).Truncate(time.Second).String(),
		RecentErrors:     errCount,
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	snap := s.Snapshot()
	return fmt.Sprintf(`Image Compression Statistics Summary:

Files:
		Received: %d
		Compressed: %d
		Failed: %d
		Rejected: %d

Requests:
		Single Uploads: %d
		Batches: %d

Bytes:
		In: %s
		Out: %s
		Saved: %.2f%%

Cleanup:
		Runs: %d
		Files Removed: %d

Uptime: %s`,
		snap.FilesReceived,
		snap.FilesCompressed,
		snap.FilesFailed,
		snap.FilesRejected,
		snap.SingleUploads,
		snap.BatchesHandled,
		formatBytes(snap.BytesIn),
		formatBytes(snap.BytesOut),
		snap.ReductionPercent,
		snap.CleanupRuns,
		snap.FilesCleaned,
		snap.Uptime)
}

// GetFormatBreakdown returns a formatted breakdown of output formats.
func (s *Statistics) GetFormatBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FormatStats) == 0 {
		return "No format statistics available"
	}

	formats := make([]string, 0, len(s.FormatStats))
	for f := range s.FormatStats {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	result := "Format Breakdown:\n"
	for _, f := range formats {
		result += fmt.Sprintf("  %s: %d\n", f, s.FormatStats[f])
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FileName,
			err.Error)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
