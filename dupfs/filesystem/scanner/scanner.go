package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/ZanzyTHEbar/dupfs/dupfs/config"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/fingerprint"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// Unbounded disables the depth filter.
const Unbounded = -1

// ProgressFunc is called from worker goroutines after each file is hashed.
type ProgressFunc func(hashed, discovered int64)

// Scanner walks a directory tree, fingerprints every regular file within
// the depth limit on a bounded worker pool, and groups files by content.
// A Scanner holds configuration only; every Scan owns its own index.
type Scanner struct {
	fs         billy.Filesystem
	engine     *fingerprint.Engine
	workers    int
	policy     OriginalPolicy
	ignoreFile string
	logger     zerolog.Logger
	progress   ProgressFunc

	pathUtils  *common.PathUtils
	depthUtils *common.DepthUtils
	validator  *common.ValidationUtils
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithFilesystem walks and reads fs instead of the OS filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Scanner) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithWorkers bounds the number of concurrent fingerprint jobs.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPolicy selects how originals are chosen.
func WithPolicy(p OriginalPolicy) Option {
	return func(s *Scanner) { s.policy = p }
}

// WithIgnoreFile sets the per-directory ignore file name. Empty disables it.
func WithIgnoreFile(name string) Option {
	return func(s *Scanner) { s.ignoreFile = name }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) { s.progress = fn }
}

// NewScanner creates a Scanner over the OS filesystem with one worker per CPU.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		fs:         osfs.New(""),
		workers:    runtime.NumCPU(),
		policy:     PolicyLexical,
		logger:     zerolog.Nop(),
		pathUtils:  common.NewPathUtils(),
		depthUtils: common.NewDepthUtils(),
		validator:  common.NewValidationUtils(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = fingerprint.NewEngine(fingerprint.WithFilesystem(s.fs))
	return s
}

// OptionsFromConfig translates scanner configuration into options.
func OptionsFromConfig(cfg config.ScannerConfig) ([]Option, error) {
	policy, err := ParsePolicy(cfg.OriginalPolicy)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithWorkers(cfg.Workers),
		WithPolicy(policy),
		WithIgnoreFile(cfg.IgnoreFile),
	}, nil
}

// Workers returns the worker pool bound.
func (s *Scanner) Workers() int {
	return s.workers
}

// Engine returns the fingerprint engine the scanner hashes with.
func (s *Scanner) Engine() *fingerprint.Engine {
	return s.engine
}

// dirTask is a directory waiting to be enumerated
type dirTask struct {
	path   string
	depth  int
	scopes []ignoreScope
}

// scanState is everything owned by a single Scan call
type scanState struct {
	root     string
	maxDepth int
	index    *SeenIndex
	metrics  *common.ScanMetrics
	skipped  *skipLog
}

// Scan walks root and reports every file whose content matches an earlier
// claimed file. maxDepth bounds how many path segments below root a file
// may sit (1 = direct children); Unbounded or any value < 1 disables it.
//
// Only an invalid root fails the scan. Unreadable files and directories
// are skipped and listed in the report. If ctx is cancelled, dispatch
// stops, in-flight work drains and the context error is returned.
func (s *Scanner) Scan(ctx context.Context, root string, maxDepth int) (*Report, error) {
	if maxDepth < 1 {
		maxDepth = Unbounded
	}

	root = filepath.Clean(root)
	if s.isOSFilesystem() {
		root = s.pathUtils.NormalizePath(root)
	}

	if err := s.validator.ValidateScanRoot(s.fs.Stat, root); err != nil {
		return nil, err
	}

	st := &scanState{
		root:     root,
		maxDepth: maxDepth,
		index:    NewSeenIndex(),
		metrics:  common.NewScanMetrics(),
		skipped:  &skipLog{},
	}

	// The root must be enumerable before any work is dispatched
	rootEntries, err := s.fs.ReadDir(root)
	if err != nil {
		return nil, common.NewPathError(common.InvalidRoot, root, err)
	}

	s.logger.Debug().
		Str("root", root).
		Int("maxDepth", maxDepth).
		Int("workers", s.workers).
		Str("policy", s.policy.String()).
		Msg("Starting duplicate scan")

	p := pool.New().WithMaxGoroutines(s.workers).WithContext(ctx)

	s.walk(ctx, p, st, root, rootEntries)

	// Every dispatched job returns nil; failures land in the skip log
	_ = p.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.Warn().Str("root", root).Err(err).Msg("Scan cancelled")
		return nil, fmt.Errorf("scan of %s cancelled: %w", root, err)
	}

	groups := st.index.Resolve(s.policy)
	report := &Report{
		ID:         uuid.New(),
		Root:       root,
		MaxDepth:   maxDepth,
		Policy:     s.policy.String(),
		Duplicates: newDuplicateMap(groups),
		Groups:     groups,
		Skipped:    st.skipped.sorted(),
		Stats:      st.metrics.Snapshot(),
	}

	s.logSummary(report)
	return report, nil
}

// walk enumerates directories breadth-first on the calling goroutine and
// submits one fingerprint job per retained file. pool.Go blocks while all
// workers are busy, which keeps the backlog bounded.
func (s *Scanner) walk(ctx context.Context, p *pool.ContextPool, st *scanState, root string, rootEntries []os.FileInfo) {
	queue := []dirTask{{path: root, depth: 0}}
	first := true

	for len(queue) > 0 {
		if s.validator.ValidateContextCancellation(ctx) != nil {
			return
		}

		dir := queue[0]
		queue = queue[1:]

		var entries []os.FileInfo
		if first {
			entries, first = rootEntries, false
		} else {
			var err error
			entries, err = s.fs.ReadDir(dir.path)
			if err != nil {
				st.metrics.DirSkipped()
				st.skipped.add(common.UnreadableDirectory, dir.path, err)
				s.logger.Debug().Str("path", dir.path).Err(err).Msg("Skipping unreadable directory")
				continue
			}
		}
		st.metrics.DirVisited()

		scopes := dir.scopes
		checker, err := loadIgnore(s.fs, dir.path, s.ignoreFile)
		if err != nil {
			s.logger.Warn().Str("path", dir.path).Err(err).Msg("Failed to load ignore patterns")
		} else if checker != nil {
			scopes = append(slices.Clip(scopes), ignoreScope{base: dir.path, checker: checker})
		}

		childDepth := dir.depth + 1
		for _, entry := range entries {
			childPath := filepath.Join(dir.path, entry.Name())

			if entry.IsDir() {
				// Children of this directory sit at childDepth+1
				if st.maxDepth != Unbounded && childDepth >= st.maxDepth {
					continue
				}
				if ignored(scopes, childPath, true) {
					continue
				}
				queue = append(queue, dirTask{path: childPath, depth: childDepth, scopes: scopes})
				continue
			}

			// Symlinks, devices, sockets and pipes are never hashed
			if !entry.Mode().IsRegular() {
				continue
			}
			if !s.depthUtils.WithinDepth(childDepth, st.maxDepth) {
				continue
			}
			if s.ignoreFile != "" && entry.Name() == s.ignoreFile {
				continue
			}
			if ignored(scopes, childPath, false) {
				continue
			}

			if s.validator.ValidateContextCancellation(ctx) != nil {
				return
			}
			s.dispatch(p, st, childPath)
		}
	}
}

func (s *Scanner) dispatch(p *pool.ContextPool, st *scanState, path string) {
	st.metrics.FileDiscovered()

	p.Go(func(ctx context.Context) error {
		if s.validator.ValidateContextCancellation(ctx) != nil {
			return nil
		}

		fp, n, err := s.engine.FingerprintSize(path)
		if err != nil {
			st.metrics.FileSkipped()
			st.skipped.add(common.UnreadableFile, path, err)
			s.logger.Debug().Str("path", path).Err(err).Msg("Skipping unreadable file")
			return nil
		}

		hashed := st.metrics.FileHashed(n)
		if original, dup := st.index.Claim(fp, path); dup {
			s.logger.Trace().Str("path", path).Str("original", original).Msg("Duplicate found")
		}

		if s.progress != nil {
			s.progress(hashed, atomic.LoadInt64(&st.metrics.FilesDiscovered))
		}
		return nil
	})
}

func (s *Scanner) isOSFilesystem() bool {
	return s.fs.Root() == ""
}

// logSummary logs scan performance metrics
func (s *Scanner) logSummary(r *Report) {
	stats := r.Stats
	evt := s.logger.Info().
		Str("id", r.ID.String()).
		Str("root", r.Root).
		Int64("dirs", stats.DirsVisited).
		Int64("files", stats.FilesHashed).
		Int64("skipped_files", stats.FilesSkipped).
		Int64("skipped_dirs", stats.DirsSkipped).
		Int("groups", len(r.Groups)).
		Int("duplicates", len(r.Duplicates)).
		Str("hashed", common.FormatBytes(stats.BytesHashed)).
		Str("duration", common.FormatDuration(stats.Duration))

	if secs := stats.Duration.Seconds(); secs > 0 {
		evt = evt.Float64("files_per_sec", float64(stats.FilesHashed)/secs)
	}
	evt.Msg("Scan completed")
}

// Scan runs a default Scanner over the OS filesystem.
func Scan(ctx context.Context, root string, maxDepth int) (*Report, error) {
	return NewScanner().Scan(ctx, root, maxDepth)
}
