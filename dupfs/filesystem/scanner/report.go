package scanner

import (
	"errors"
	"io/fs"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"

	"github.com/google/uuid"
)

// DuplicateMap maps a duplicate's path to the path of the original it matches.
type DuplicateMap map[string]string

// Duplicates returns the duplicate paths in sorted order.
func (m DuplicateMap) Duplicates() []string {
	out := make([]string, 0, len(m))
	for dup := range m {
		out = append(out, dup)
	}
	sort.Strings(out)
	return out
}

// Originals returns the distinct original paths in sorted order.
func (m DuplicateMap) Originals() []string {
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0)
	for _, orig := range m {
		if _, ok := seen[orig]; ok {
			continue
		}
		seen[orig] = struct{}{}
		out = append(out, orig)
	}
	sort.Strings(out)
	return out
}

// Group is one set of files sharing a fingerprint.
type Group struct {
	Fingerprint string   `json:"fingerprint"`
	Original    string   `json:"original"`
	Duplicates  []string `json:"duplicates"`
}

// Skip causes recorded alongside an unreadable path
const (
	CausePermission = "permission_denied"
	CauseVanished   = "vanished"
	CauseIO         = "io_error"
)

// SkippedPath is a file or directory the scan could not read.
type SkippedPath struct {
	Path   string           `json:"path"`
	Kind   common.ErrorKind `json:"kind"`
	Cause  string           `json:"cause"`
	Reason string           `json:"reason"`
}

// Report is the immutable result of one scan.
type Report struct {
	ID         uuid.UUID        `json:"id"`
	Root       string           `json:"root"`
	MaxDepth   int              `json:"max_depth"`
	Policy     string           `json:"policy"`
	Duplicates DuplicateMap     `json:"duplicates"`
	Groups     []Group          `json:"groups"`
	Skipped    []SkippedPath    `json:"skipped,omitempty"`
	Stats      common.ScanStats `json:"stats"`
}

func newDuplicateMap(groups []Group) DuplicateMap {
	m := make(DuplicateMap)
	for _, g := range groups {
		for _, dup := range g.Duplicates {
			m[dup] = g.Original
		}
	}
	return m
}

var errUtils = common.NewErrorUtils()

func causeOf(err error) string {
	switch {
	case errUtils.IsPermissionError(err):
		return CausePermission
	case errors.Is(err, fs.ErrNotExist):
		return CauseVanished
	default:
		return CauseIO
	}
}

// skipLog collects skipped paths from the coordinator and workers.
type skipLog struct {
	mu    sync.Mutex
	paths []SkippedPath
}

func (s *skipLog) add(kind common.ErrorKind, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, SkippedPath{Path: path, Kind: kind, Cause: causeOf(err), Reason: err.Error()})
}

func (s *skipLog) sorted() []SkippedPath {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SkippedPath, len(s.paths))
	copy(out, s.paths)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
