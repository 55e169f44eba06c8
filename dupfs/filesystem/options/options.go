package options

import (
	"time"

	"github.com/ZanzyTHEbar/dupfs/dupfs/config"
)

// DeleteOptions configures duplicate deletion
type DeleteOptions struct {
	DryRun      bool   // Preview operations without executing
	MoveToTrash bool   // Move to trash instead of permanent deletion
	TrashDir    string // Trash location, required with MoveToTrash
	Force       bool   // Skip re-checking the duplicate against its original
}

// PurgeOptions configures temp directory purging
type PurgeOptions struct {
	DryRun      bool          // Preview operations without executing
	OlderThan   time.Duration // Only purge entries last modified before now-OlderThan (0 = all)
	MoveToTrash bool          // Move entries to trash instead of permanent deletion
	TrashDir    string        // Trash location, required with MoveToTrash
}

// DefaultDeleteOptions moves duplicates into the configured trash
func DefaultDeleteOptions(cfg config.ActionsConfig) DeleteOptions {
	return DeleteOptions{
		MoveToTrash: true,
		TrashDir:    cfg.TrashDir,
	}
}

// DefaultPurgeOptions moves temp entries into the configured trash
func DefaultPurgeOptions(cfg config.ActionsConfig) PurgeOptions {
	return PurgeOptions{
		MoveToTrash: true,
		TrashDir:    cfg.TrashDir,
	}
}
