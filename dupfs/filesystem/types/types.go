package types

import (
	"time"
)

// Event represents a filesystem action taken (or previewed) on one path
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Target    string    `json:"target,omitempty"`
	Bytes     int64     `json:"bytes"`
	DryRun    bool      `json:"dry_run,omitempty"`
}

// EventType defines the kinds of actions the services perform
type EventType string

const (
	EventFileDeleted EventType = "file_deleted"
	EventFileTrashed EventType = "file_trashed"
	EventDirDeleted  EventType = "dir_deleted"
	EventDirTrashed  EventType = "dir_trashed"
)

// Failure is a path an operation could not process
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// OperationResult contains the result of a batch filesystem operation
type OperationResult struct {
	Success        bool          `json:"success"`
	ProcessedFiles int           `json:"processed_files"`
	ProcessedDirs  int           `json:"processed_dirs"`
	SkippedFiles   int           `json:"skipped_files"`
	BytesFreed     int64         `json:"bytes_freed"`
	Failures       []Failure     `json:"failures,omitempty"`
	Skipped        []Failure     `json:"skipped,omitempty"`
	Duration       time.Duration `json:"duration"`
	Events         []Event       `json:"events,omitempty"`

	// Remaining counts duplicates of the scan still present afterwards
	Remaining int `json:"remaining,omitempty"`
}

// NewOperationResult creates an empty successful result
func NewOperationResult() *OperationResult {
	return &OperationResult{
		Success:  true,
		Failures: make([]Failure, 0),
		Events:   make([]Event, 0),
	}
}

// Fail records a failed path and marks the result unsuccessful
func (r *OperationResult) Fail(path string, err error) {
	r.Success = false
	r.Failures = append(r.Failures, Failure{Path: path, Error: err.Error()})
}

// Skip records a path deliberately left alone
func (r *OperationResult) Skip(path string, reason error) {
	r.SkippedFiles++
	r.Skipped = append(r.Skipped, Failure{Path: path, Error: reason.Error()})
}

// Record appends an event
func (r *OperationResult) Record(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	r.Events = append(r.Events, evt)
}
