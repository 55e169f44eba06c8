package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	internal "github.com/ZanzyTHEbar/dupfs/dupfs"
	"github.com/ZanzyTHEbar/dupfs/dupfs/config"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/services"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/types"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/utils"
	"github.com/ZanzyTHEbar/dupfs/dupfs/trees"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// progressEvery controls how often scan progress is logged
const progressEvery = 1000

type cli struct {
	stdout io.Writer
	stderr io.Writer
}

// commonFlags are accepted by every command
type commonFlags struct {
	configPath string
	jsonOut    bool
}

// scanNote is appended to the help of every command that scans
const scanNote = `Only regular files are compared. Symbolic links, including links to regular
files, are neither hashed nor followed, so a link is never reported as a
duplicate of its target.`

func (c *cli) newFlagSet(name, synopsis, about string) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: dupfs %s %s\n\n", name, synopsis)
		if about != "" {
			fmt.Fprintf(c.stderr, "%s\n\n", about)
		}
		fmt.Fprintln(c.stderr, "Flags:")
		fs.PrintDefaults()
	}

	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "", "config file (default: ./config.yaml, then ~/.config/dupfs/config.yaml)")
	fs.BoolVar(&cf.jsonOut, "json", false, "write results as JSON")
	fs.String("log-level", internal.DefaultLogLevel, "log level: trace, debug, info, warn, error")
	return fs, cf
}

func addScanFlags(fs *pflag.FlagSet) {
	fs.Int("depth", internal.DefaultMaxDepth, "maximum depth below the root, <= 0 for unbounded")
	fs.Int("workers", 0, "concurrent fingerprint workers (0 = one per CPU)")
	fs.String("policy", internal.DefaultOriginalPolicy, "original selection: lexical or first-seen")
	fs.String("ignore-file", internal.DefaultIgnoreFileName, "per-directory ignore file name, empty to disable")
}

// parse parses args and loads the configuration. A non-zero code means the
// command should stop and return it.
func (c *cli) parse(fs *pflag.FlagSet, cf *commonFlags, args []string, minArgs, maxArgs int) (*config.Config, zerolog.Logger, int) {
	nop := zerolog.Nop()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, nop, exitOK
		}
		return nil, nop, exitUsage
	}
	if n := fs.NArg(); n < minArgs || n > maxArgs {
		fmt.Fprintf(c.stderr, "%s: expected between %d and %d arguments, got %d\n", fs.Name(), minArgs, maxArgs, n)
		fs.Usage()
		return nil, nop, exitUsage
	}

	cfg, err := config.LoadConfigWithFlags(cf.configPath, fs)
	if err != nil {
		fmt.Fprintf(c.stderr, "invalid configuration: %v\n", err)
		return nil, nop, exitUsage
	}
	return cfg, internal.NewLogger(c.stderr, cfg.Log.Level), exitOK
}

// fail reports err and maps it to an exit code
func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "error: %v\n", err)
	if errors.Is(err, common.ErrInvalidRoot) || errors.Is(err, common.ErrOutsideRoot) {
		return exitUsage
	}
	return exitFailure
}

func (c *cli) writeJSON(v interface{}) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return c.fail(fmt.Errorf("failed to encode output: %w", err))
	}
	return exitOK
}

func (c *cli) open(cfg *config.Config, logger zerolog.Logger) (*filesystem.FileSystem, error) {
	return filesystem.New(cfg,
		filesystem.WithLogger(logger),
		filesystem.WithProgress(func(hashed, discovered int64) {
			if hashed%progressEvery == 0 {
				logger.Debug().Int64("hashed", hashed).Int64("discovered", discovered).Msg("Scan progress")
			}
		}),
	)
}

func (c *cli) scanCmd(ctx context.Context, args []string) int {
	fs, cf := c.newFlagSet("scan", "[flags] <dir>", "Find files with identical content below dir.\n\n"+scanNote)
	addScanFlags(fs)

	cfg, logger, code := c.parse(fs, cf, args, 1, 1)
	if cfg == nil {
		return code
	}

	dfs, err := c.open(cfg, logger)
	if err != nil {
		return c.fail(err)
	}

	report, err := dfs.Scan(ctx, fs.Arg(0))
	if err != nil {
		return c.fail(err)
	}

	if cf.jsonOut {
		return c.writeJSON(report)
	}

	idx := trees.NewDuplicateIndex(report.Duplicates)
	c.printGroups(idx.Groups())
	for _, s := range report.Skipped {
		fmt.Fprintf(c.stdout, "skipped %s (%s): %s\n", s.Path, s.Kind, s.Reason)
	}
	fmt.Fprintf(c.stdout, "%d duplicates in %d groups, %d files hashed (%s) in %s\n",
		len(report.Duplicates), len(report.Groups), report.Stats.FilesHashed,
		common.FormatBytes(report.Stats.BytesHashed), common.FormatDuration(report.Stats.Duration))
	return exitOK
}

func (c *cli) printGroups(groups map[string][]string) {
	originals := make([]string, 0, len(groups))
	for orig := range groups {
		originals = append(originals, orig)
	}
	sort.Strings(originals)

	for _, orig := range originals {
		fmt.Fprintln(c.stdout, orig)
		for _, dup := range groups[orig] {
			fmt.Fprintf(c.stdout, "  = %s\n", dup)
		}
	}
}

func (c *cli) deleteCmd(ctx context.Context, args []string) int {
	fs, cf := c.newFlagSet("delete", "[flags] <dir>", "Scan dir, then remove every duplicate. Originals are kept.\n\n"+scanNote)
	addScanFlags(fs)
	dryRun := fs.Bool("dry-run", false, "report what would be deleted without deleting")
	permanent := fs.Bool("permanent", false, "delete instead of moving duplicates to the trash")
	force := fs.Bool("force", false, "skip re-checking each duplicate against its original")
	under := fs.String("under", "", "only delete duplicates located under this directory (must be inside <dir>)")
	fs.String("trash-dir", internal.DefaultTrashDir, "trash directory")

	cfg, logger, code := c.parse(fs, cf, args, 1, 1)
	if cfg == nil {
		return code
	}

	dfs, err := c.open(cfg, logger)
	if err != nil {
		return c.fail(err)
	}

	report, err := dfs.Scan(ctx, fs.Arg(0))
	if err != nil {
		return c.fail(err)
	}

	opts := dfs.DefaultDeleteOptions()
	opts.DryRun = *dryRun
	opts.Force = *force
	if *permanent {
		opts.MoveToTrash = false
	}

	result, err := dfs.DeleteDuplicates(ctx, report, *under, opts)
	if err != nil {
		return c.fail(err)
	}

	if cf.jsonOut {
		if code := c.writeJSON(result); code != exitOK {
			return code
		}
	} else {
		c.printResult(result, "deleted")
		fmt.Fprintf(c.stdout, "%d duplicates remain\n", result.Remaining)
	}
	if !result.Success {
		return exitFailure
	}
	return exitOK
}

func (c *cli) printResult(result *types.OperationResult, verb string) {
	for _, evt := range result.Events {
		prefix := verb
		if evt.DryRun {
			prefix = "would be " + verb
		}
		fmt.Fprintf(c.stdout, "%s %s (%s)\n", prefix, evt.Path, common.FormatBytes(evt.Bytes))
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(c.stdout, "kept %s: %s\n", s.Path, s.Error)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(c.stdout, "failed %s: %s\n", f.Path, f.Error)
	}
	fmt.Fprintf(c.stdout, "%d files, %d directories, %s freed\n",
		result.ProcessedFiles, result.ProcessedDirs, common.FormatBytes(result.BytesFreed))
}

func (c *cli) previewCmd(args []string) int {
	fs, cf := c.newFlagSet("preview", "[flags] <file>", "Show what a file contains.")
	fs.Int("preview-bytes", internal.DefaultPreviewBytes, "maximum bytes of text to show")

	cfg, logger, code := c.parse(fs, cf, args, 1, 1)
	if cfg == nil {
		return code
	}

	dfs, err := c.open(cfg, logger)
	if err != nil {
		return c.fail(err)
	}

	p, err := dfs.Preview(fs.Arg(0))
	if err != nil {
		return c.fail(err)
	}

	if cf.jsonOut {
		return c.writeJSON(p)
	}

	fmt.Fprintf(c.stdout, "%s: %s, %s, modified %s\n", p.Path, p.Kind, common.FormatBytes(p.Size), p.ModTime.Format("2006-01-02 15:04:05"))
	switch p.Kind {
	case services.PreviewImage:
		fmt.Fprintf(c.stdout, "%s image, %dx%d\n", p.Format, p.Width, p.Height)
		for _, name := range utils.SortedTagNames(p.EXIF) {
			fmt.Fprintf(c.stdout, "  %s: %s\n", name, p.EXIF[name])
		}
	case services.PreviewText:
		fmt.Fprintln(c.stdout, p.Text)
		if p.Truncated {
			fmt.Fprintln(c.stdout, "[truncated]")
		}
	}
	return exitOK
}

func (c *cli) spaceCmd(ctx context.Context, args []string) int {
	fs, cf := c.newFlagSet("space", "[flags] [path]", "Report free space on the filesystem holding path, or on every mounted partition.")

	cfg, logger, code := c.parse(fs, cf, args, 0, 1)
	if cfg == nil {
		return code
	}

	dfs, err := c.open(cfg, logger)
	if err != nil {
		return c.fail(err)
	}

	if fs.NArg() == 0 {
		parts, err := dfs.Partitions(ctx)
		if err != nil {
			return c.fail(err)
		}
		if cf.jsonOut {
			return c.writeJSON(parts)
		}
		if len(parts) == 0 {
			fmt.Fprintln(c.stdout, "no physical partitions found")
		}
		for _, p := range parts {
			fmt.Fprintln(c.stdout, p.String())
		}
		return exitOK
	}

	usage, err := dfs.FreeSpace(fs.Arg(0))
	if err != nil {
		return c.fail(err)
	}

	if cf.jsonOut {
		return c.writeJSON(usage)
	}
	fmt.Fprintln(c.stdout, usage.String())
	return exitOK
}

func (c *cli) purgeCmd(ctx context.Context, args []string) int {
	fs, cf := c.newFlagSet("purge", "[flags]", "Empty the temporary directory. Entries go to the trash unless --permanent is set.")
	dryRun := fs.Bool("dry-run", false, "report what would be removed without removing")
	olderThan := fs.Duration("older-than", 0, "only remove entries not modified within this duration")
	permanent := fs.Bool("permanent", false, "delete instead of moving entries to the trash")
	fs.String("temp-dir", "", "directory to purge (default: the system temp directory)")
	fs.String("trash-dir", internal.DefaultTrashDir, "trash directory")

	cfg, logger, code := c.parse(fs, cf, args, 0, 0)
	if cfg == nil {
		return code
	}

	dfs, err := c.open(cfg, logger)
	if err != nil {
		return c.fail(err)
	}

	opts := dfs.DefaultPurgeOptions()
	opts.DryRun = *dryRun
	opts.OlderThan = *olderThan
	if *permanent {
		opts.MoveToTrash = false
	}

	result, err := dfs.Purge(ctx, opts)
	if err != nil {
		return c.fail(err)
	}

	if cf.jsonOut {
		if code := c.writeJSON(result); code != exitOK {
			return code
		}
	} else {
		c.printResult(result, "removed")
	}
	if !result.Success {
		return exitFailure
	}
	return exitOK
}
