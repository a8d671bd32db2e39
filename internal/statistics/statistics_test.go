package statistics

import (
	"fmt"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestStatistics_ConcurrentRecording(t *testing.T) {
	s := NewStatistics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.IncrementFilesReceived()
			if i%5 == 0 {
				s.AddError(fmt.Sprintf("f%d.png", i), "compress", "decode error")
				return
			}
			s.RecordCompressed("jpeg", 1000, 500)
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	gt.Equal(t, snap.FilesReceived, int64(50))
	gt.Equal(t, snap.FilesFailed, int64(10))
	gt.Equal(t, snap.FilesCompressed, int64(40))
	gt.Equal(t, snap.BytesIn, int64(40000))
	gt.Equal(t, snap.BytesOut, int64(20000))
	gt.Equal(t, snap.ReductionPercent, 50.0)
	gt.Equal(t, snap.Formats["jpeg"], int64(40))
	gt.Equal(t, snap.RecentErrors, 10)
}

func TestStatistics_ErrorListIsBounded(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < maxErrors+20; i++ {
		s.AddError("a.png", "compress", "boom")
	}
	gt.Equal(t, len(s.Errors), maxErrors)
	gt.Equal(t, s.Snapshot().FilesFailed, int64(maxErrors+20))
	gt.String(t, s.GetErrorSummary()).Contains("more errors")
}

func TestStatistics_Summaries(t *testing.T) {
	s := NewStatistics()
	gt.Equal(t, s.GetFormatBreakdown(), "No format statistics available")
	gt.Equal(t, s.GetErrorSummary(), "No errors occurred during processing")

	s.RecordCompressed("png", 2048, 1024)
	s.RecordCompressed("jpeg", 2048, 1024)
	s.RecordCleanup(3)

	gt.Equal(t, s.GetFormatBreakdown(), "Format Breakdown:\n  jpeg: 1\n  png: 1\n")
	summary := s.GetSummary()
	gt.String(t, summary).Contains("Compressed: 2")
	gt.String(t, summary).Contains("In: 4.0 KB")
	gt.String(t, summary).Contains("Files Removed: 3")
}

func TestFormatBytes(t *testing.T) {
	gt.Equal(t, formatBytes(512), "512 B")
	gt.Equal(t, formatBytes(1536), "1.5 KB")
	gt.Equal(t, formatBytes(5*1024*1024), "5.0 MB")
}
