package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/options"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/types"

	"github.com/go-git/go-billy/v5/util"
)

// TempPurgeService empties a temporary directory
type TempPurgeService struct {
	base
	trash     trashBin
	now       func() time.Time
	pathUtils *common.PathUtils
	validator *common.ValidationUtils
	errUtils  *common.ErrorUtils
}

// NewTempPurgeService creates a temp purge service
func NewTempPurgeService(opts ...Option) *TempPurgeService {
	b := newBase(opts)
	return &TempPurgeService{
		base:      b,
		trash:     trashBin{fs: b.fs, logger: b.logger},
		now:       time.Now,
		pathUtils: common.NewPathUtils(),
		validator: common.NewValidationUtils(),
		errUtils:  common.NewErrorUtils(),
	}
}

// Purge removes the top-level entries of dir (os.TempDir() when empty).
// The directory itself is kept. With opts.MoveToTrash entries are moved to
// opts.TrashDir instead, and a trash directory living inside dir is left
// alone. Entries that cannot be removed are recorded as failures and the
// purge carries on.
func (ts *TempPurgeService) Purge(ctx context.Context, dir string, opts options.PurgeOptions) (*types.OperationResult, error) {
	start := time.Now()
	if dir == "" {
		dir = os.TempDir()
	}
	if opts.MoveToTrash && opts.TrashDir == "" {
		return nil, ErrTrashNotConfigured
	}

	entries, err := ts.fs.ReadDir(dir)
	if err != nil {
		return nil, ts.errUtils.WrapError(err, "failed to read temp directory %s", dir)
	}

	var cutoff time.Time
	if opts.OlderThan > 0 {
		cutoff = ts.now().Add(-opts.OlderThan)
	}

	result := types.NewOperationResult()
	for _, entry := range entries {
		if err := ts.validator.ValidateContextCancellation(ctx); err != nil {
			result.Success = false
			result.Duration = time.Since(start)
			return result, err
		}

		path := filepath.Join(dir, entry.Name())
		if opts.MoveToTrash && ts.holdsTrash(path, opts.TrashDir) {
			result.Skip(path, fmt.Errorf("contains the trash directory"))
			continue
		}
		if !cutoff.IsZero() && entry.ModTime().After(cutoff) {
			result.Skip(path, fmt.Errorf("modified within %s", opts.OlderThan))
			continue
		}

		size := entry.Size()
		if entry.IsDir() {
			size = ts.treeSize(path)
		}
		evt := types.Event{Type: eventForEntry(entry.IsDir(), opts.MoveToTrash), Path: path, Bytes: size, DryRun: opts.DryRun}

		if !opts.DryRun {
			target, err := ts.remove(path, entry.IsDir(), opts)
			if err != nil {
				result.Fail(path, err)
				ts.logger.Debug().Str("path", path).Err(err).Msg("Failed to purge entry")
				continue
			}
			evt.Target = target
		}

		if entry.IsDir() {
			result.ProcessedDirs++
		} else {
			result.ProcessedFiles++
		}
		result.BytesFreed += size
		result.Record(evt)
	}

	result.Duration = time.Since(start)
	ts.logger.Info().
		Str("dir", dir).
		Int("files", result.ProcessedFiles).
		Int("dirs", result.ProcessedDirs).
		Int("failed", len(result.Failures)).
		Str("freed", common.FormatBytes(result.BytesFreed)).
		Bool("trash", opts.MoveToTrash).
		Bool("dryRun", opts.DryRun).
		Msg("Temp purge completed")

	return result, nil
}

// holdsTrash reports whether path is the trash directory or one of its parents
func (ts *TempPurgeService) holdsTrash(path, trashDir string) bool {
	return filepath.Clean(path) == filepath.Clean(trashDir) || ts.pathUtils.IsSubpath(path, trashDir)
}

func (ts *TempPurgeService) remove(path string, isDir bool, opts options.PurgeOptions) (string, error) {
	if opts.MoveToTrash {
		return ts.trash.move(path, opts.TrashDir)
	}
	if isDir {
		return "", ts.errUtils.WrapError(util.RemoveAll(ts.fs, path), "failed to remove directory %s", path)
	}
	return "", ts.errUtils.WrapError(ts.fs.Remove(path), "failed to remove file %s", path)
}

func eventForEntry(isDir, trash bool) types.EventType {
	switch {
	case isDir && trash:
		return types.EventDirTrashed
	case isDir:
		return types.EventDirDeleted
	case trash:
		return types.EventFileTrashed
	default:
		return types.EventFileDeleted
	}
}

// treeSize sums regular file sizes below path, ignoring unreadable parts
func (ts *TempPurgeService) treeSize(path string) int64 {
	var total int64
	_ = util.Walk(ts.fs, path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}
