package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/fingerprint"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/options"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/types"
)

// ErrTrashNotConfigured is returned when MoveToTrash is set without a TrashDir.
var ErrTrashNotConfigured = errors.New("trash directory not configured")

// DeletionService removes duplicate files reported by a scan
type DeletionService struct {
	base
	engine    *fingerprint.Engine
	trash     trashBin
	metrics   common.FileOperationMetrics
	validator *common.ValidationUtils
	errUtils  *common.ErrorUtils
}

// NewDeletionService creates a deletion service
func NewDeletionService(opts ...Option) *DeletionService {
	b := newBase(opts)
	return &DeletionService{
		base:      b,
		engine:    fingerprint.NewEngine(fingerprint.WithFilesystem(b.fs)),
		trash:     trashBin{fs: b.fs, logger: b.logger},
		validator: common.NewValidationUtils(),
		errUtils:  common.NewErrorUtils(),
	}
}

// DeleteDuplicates removes every duplicate key of dups. Originals are never
// touched. Unless opts.Force is set, a duplicate is only removed while its
// original still exists with identical content. Per-file failures are
// recorded in the result; only cancellation and misconfiguration return
// an error.
func (ds *DeletionService) DeleteDuplicates(ctx context.Context, dups map[string]string, opts options.DeleteOptions) (*types.OperationResult, error) {
	start := time.Now()
	result := types.NewOperationResult()

	if opts.MoveToTrash && opts.TrashDir == "" {
		return nil, ErrTrashNotConfigured
	}

	paths := make([]string, 0, len(dups))
	for dup := range dups {
		paths = append(paths, dup)
	}
	sort.Strings(paths)

	for _, dup := range paths {
		if err := ds.validator.ValidateContextCancellation(ctx); err != nil {
			result.Success = false
			result.Duration = time.Since(start)
			return result, err
		}

		ds.deleteOne(dup, dups[dup], opts, result)
	}

	result.Duration = time.Since(start)
	ds.logger.Info().
		Int("deleted", result.ProcessedFiles).
		Int("skipped", result.SkippedFiles).
		Int("failed", len(result.Failures)).
		Str("freed", common.FormatBytes(result.BytesFreed)).
		Bool("dryRun", opts.DryRun).
		Msg("Duplicate deletion completed")

	return result, nil
}

func (ds *DeletionService) deleteOne(dup, original string, opts options.DeleteOptions, result *types.OperationResult) {
	if dup == original {
		result.Skip(dup, fmt.Errorf("path is its own original"))
		return
	}

	info, err := ds.fs.Lstat(dup)
	if err != nil {
		if os.IsNotExist(err) {
			result.Skip(dup, fmt.Errorf("already removed"))
			return
		}
		result.Fail(dup, err)
		ds.metrics.UpdateMetrics(false, 0)
		return
	}
	if !info.Mode().IsRegular() {
		result.Skip(dup, common.ErrNotRegularFile)
		return
	}

	if !opts.Force {
		same, err := ds.engine.Equal(dup, original)
		if err != nil || !same {
			result.Skip(dup, fmt.Errorf("%w: %s", common.ErrOriginalMissing, original))
			ds.logger.Debug().Str("path", dup).Str("original", original).Msg("Original changed, keeping duplicate")
			return
		}
	}

	if opts.DryRun {
		ds.logger.Info().Str("path", dup).Str("original", original).Msg("Dry run: would delete duplicate")
		result.ProcessedFiles++
		result.BytesFreed += info.Size()
		result.Record(types.Event{Type: eventFor(opts), Path: dup, Bytes: info.Size(), DryRun: true})
		return
	}

	if opts.MoveToTrash {
		target, err := ds.trash.move(dup, opts.TrashDir)
		if err != nil {
			result.Fail(dup, err)
			ds.metrics.UpdateMetrics(false, 0)
			return
		}
		result.Record(types.Event{Type: types.EventFileTrashed, Path: dup, Target: target, Bytes: info.Size()})
	} else {
		if err := ds.fs.Remove(dup); err != nil {
			result.Fail(dup, ds.errUtils.WrapError(err, "failed to delete file %s", dup))
			ds.metrics.UpdateMetrics(false, 0)
			return
		}
		result.Record(types.Event{Type: types.EventFileDeleted, Path: dup, Bytes: info.Size()})
	}

	result.ProcessedFiles++
	result.BytesFreed += info.Size()
	ds.metrics.UpdateMetrics(true, info.Size())
	ds.logger.Debug().Str("path", dup).Str("original", original).Msg("Duplicate removed")
}

// Metrics returns counters for the deletions performed so far
func (ds *DeletionService) Metrics() map[string]interface{} {
	return ds.metrics.GetMetrics()
}

func eventFor(opts options.DeleteOptions) types.EventType {
	if opts.MoveToTrash {
		return types.EventFileTrashed
	}
	return types.EventFileDeleted
}
