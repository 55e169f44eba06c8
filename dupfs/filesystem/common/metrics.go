package common

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// FileOperationMetrics tracks deletions and the bytes they reclaim
type FileOperationMetrics struct {
	BaseMetrics
	BytesReclaimed int64
}

// UpdateMetrics records one file operation
func (fom *FileOperationMetrics) UpdateMetrics(success bool, bytes int64) {
	fom.UpdateBaseMetrics(success)
	if success && bytes > 0 {
		atomic.AddInt64(&fom.BytesReclaimed, bytes)
	}
}

// GetMetrics returns file operation metrics as a map
func (fom *FileOperationMetrics) GetMetrics() map[string]interface{} {
	metrics := fom.GetBaseMetrics()
	metrics["bytes_reclaimed"] = atomic.LoadInt64(&fom.BytesReclaimed)
	return metrics
}

// ScanMetrics holds the counters of one scan. All fields are updated
// atomically by the coordinator and the hashing workers.
type ScanMetrics struct {
	DirsVisited     int64
	DirsSkipped     int64
	FilesDiscovered int64
	FilesHashed     int64
	FilesSkipped    int64
	BytesHashed     int64
	StartTime       time.Time
}

// NewScanMetrics creates metrics stamped with the current time
func NewScanMetrics() *ScanMetrics {
	return &ScanMetrics{StartTime: time.Now()}
}

func (sm *ScanMetrics) DirVisited()  { atomic.AddInt64(&sm.DirsVisited, 1) }
func (sm *ScanMetrics) DirSkipped()  { atomic.AddInt64(&sm.DirsSkipped, 1) }
func (sm *ScanMetrics) FileSkipped() { atomic.AddInt64(&sm.FilesSkipped, 1) }

// FileDiscovered counts a dispatched file and returns the running total
func (sm *ScanMetrics) FileDiscovered() int64 {
	return atomic.AddInt64(&sm.FilesDiscovered, 1)
}

// FileHashed counts a fingerprinted file and returns the running total
func (sm *ScanMetrics) FileHashed(bytes int64) int64 {
	atomic.AddInt64(&sm.BytesHashed, bytes)
	return atomic.AddInt64(&sm.FilesHashed, 1)
}

// ScanStats is a point-in-time copy of ScanMetrics
type ScanStats struct {
	DirsVisited     int64         `json:"dirs_visited"`
	DirsSkipped     int64         `json:"dirs_skipped"`
	FilesDiscovered int64         `json:"files_discovered"`
	FilesHashed     int64         `json:"files_hashed"`
	FilesSkipped    int64         `json:"files_skipped"`
	BytesHashed     int64         `json:"bytes_hashed"`
	Duration        time.Duration `json:"duration"`
}

// Snapshot reads every counter
func (sm *ScanMetrics) Snapshot() ScanStats {
	return ScanStats{
		DirsVisited:     atomic.LoadInt64(&sm.DirsVisited),
		DirsSkipped:     atomic.LoadInt64(&sm.DirsSkipped),
		FilesDiscovered: atomic.LoadInt64(&sm.FilesDiscovered),
		FilesHashed:     atomic.LoadInt64(&sm.FilesHashed),
		FilesSkipped:    atomic.LoadInt64(&sm.FilesSkipped),
		BytesHashed:     atomic.LoadInt64(&sm.BytesHashed),
		Duration:        time.Since(sm.StartTime),
	}
}

// FormatDuration formats a duration for human-readable display
func FormatDuration(duration time.Duration) string {
	if duration < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(duration.Nanoseconds())/1000)
	} else if duration < time.Second {
		return fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1000000)
	} else if duration < time.Minute {
		return fmt.Sprintf("%.2fs", duration.Seconds())
	} else if duration < time.Hour {
		return fmt.Sprintf("%.2fm", duration.Minutes())
	}
	return fmt.Sprintf("%.2fh", duration.Hours())
}

// FormatBytes renders a byte count with a binary unit suffix
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
