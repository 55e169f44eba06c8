package filesystem

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/dupfs/dupfs/config"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/interfaces"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/options"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/scanner"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/services"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/types"
	"github.com/ZanzyTHEbar/dupfs/dupfs/trees"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
)

// FileSystem is the main entry point for duplicate management.
// It wires the scanner and the action services from one configuration.
type FileSystem struct {
	// Core services
	scanner   interfaces.DuplicateScanner
	deleter   interfaces.DuplicateDeleter
	previewer interfaces.Previewer
	diskSpace interfaces.DiskSpaceReporter
	purger    interfaces.TempPurger

	// Utilities
	pathUtils *common.PathUtils

	config *config.Config
	logger zerolog.Logger
}

// Option configures a FileSystem.
type Option func(*settings)

type settings struct {
	fs       billy.Filesystem
	logger   zerolog.Logger
	progress scanner.ProgressFunc
}

// WithFilesystem runs every service on fs instead of the OS filesystem.
// Disk space is always read from the OS.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *settings) { s.fs = fs }
}

// WithLogger sets the logger shared by all services.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithProgress registers a scan progress callback.
func WithProgress(fn scanner.ProgressFunc) Option {
	return func(s *settings) { s.progress = fn }
}

// New creates a FileSystem from cfg
func New(cfg *config.Config, opts ...Option) (*FileSystem, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := settings{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&s)
	}

	scanOpts, err := scanner.OptionsFromConfig(cfg.Scanner)
	if err != nil {
		return nil, err
	}
	scanOpts = append(scanOpts,
		scanner.WithFilesystem(s.fs),
		scanner.WithLogger(s.logger),
		scanner.WithProgress(s.progress),
	)

	svcOpts := []services.Option{
		services.WithFilesystem(s.fs),
		services.WithLogger(s.logger),
	}

	return &FileSystem{
		scanner:   scanner.NewScanner(scanOpts...),
		deleter:   services.NewDeletionService(svcOpts...),
		previewer: services.NewPreviewService(svcOpts...),
		diskSpace: services.NewDiskSpaceService(services.WithLogger(s.logger)),
		purger:    services.NewTempPurgeService(svcOpts...),
		pathUtils: common.NewPathUtils(),
		config:    cfg,
		logger:    s.logger,
	}, nil
}

// High-level API methods

// Scan finds duplicates below root up to the configured depth
func (dfs *FileSystem) Scan(ctx context.Context, root string) (*scanner.Report, error) {
	return dfs.scanner.Scan(ctx, root, dfs.config.Scanner.MaxDepth)
}

// DeleteDuplicates removes the duplicates of report. When under is set, only
// duplicates located below that directory are considered, and under must lie
// within the scanned root. The result counts the duplicates left afterwards.
func (dfs *FileSystem) DeleteDuplicates(ctx context.Context, report *scanner.Report, under string, opts options.DeleteOptions) (*types.OperationResult, error) {
	if report == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}

	idx := trees.NewDuplicateIndex(report.Duplicates)
	targets := map[string]string(report.Duplicates)
	if under != "" {
		prefix, err := dfs.scopeToRoot(report.Root, under)
		if err != nil {
			return nil, err
		}
		targets = idx.Under(prefix)
		dfs.logger.Debug().Str("under", prefix).Int("selected", len(targets)).Int("total", len(report.Duplicates)).Msg("Filtered duplicates")
	}

	result, err := dfs.deleter.DeleteDuplicates(ctx, targets, opts)
	if result == nil {
		return nil, err
	}

	for _, evt := range result.Events {
		if !evt.DryRun {
			idx.Remove(evt.Path)
		}
	}
	result.Remaining = idx.Len()
	return result, err
}

// scopeToRoot resolves under and checks it lies within root
func (dfs *FileSystem) scopeToRoot(root, under string) (string, error) {
	if err := dfs.pathUtils.ValidatePath(under); err != nil {
		return "", err
	}
	prefix := dfs.pathUtils.NormalizePath(under)
	if root == "" {
		return prefix, nil
	}
	if prefix != dfs.pathUtils.NormalizePath(root) && !dfs.pathUtils.IsSubpath(root, prefix) {
		return "", fmt.Errorf("%w: %s is not under %s", common.ErrOutsideRoot, under, root)
	}
	return prefix, nil
}

// DefaultDeleteOptions returns the configured deletion defaults
func (dfs *FileSystem) DefaultDeleteOptions() options.DeleteOptions {
	return options.DefaultDeleteOptions(dfs.config.Actions)
}

// DefaultPurgeOptions returns the configured purge defaults
func (dfs *FileSystem) DefaultPurgeOptions() options.PurgeOptions {
	return options.DefaultPurgeOptions(dfs.config.Actions)
}

// Preview describes path using the configured preview size
func (dfs *FileSystem) Preview(path string) (*services.Preview, error) {
	return dfs.previewer.Preview(path, dfs.config.Actions.PreviewBytes)
}

// FreeSpace reports the capacity of the filesystem holding path
func (dfs *FileSystem) FreeSpace(path string) (*services.DiskUsage, error) {
	return dfs.diskSpace.FreeSpace(path)
}

// Partitions reports the capacity of every mounted partition
func (dfs *FileSystem) Partitions(ctx context.Context) ([]*services.PartitionUsage, error) {
	return dfs.diskSpace.Partitions(ctx)
}

// Purge empties the configured temp directory
func (dfs *FileSystem) Purge(ctx context.Context, opts options.PurgeOptions) (*types.OperationResult, error) {
	return dfs.purger.Purge(ctx, dfs.config.Actions.TempDir, opts)
}

// GetConfig returns the configuration the FileSystem was built from
func (dfs *FileSystem) GetConfig() *config.Config {
	return dfs.config
}
