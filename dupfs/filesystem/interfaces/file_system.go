package interfaces

import (
	"context"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/options"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/scanner"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/services"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/types"
)

// DuplicateScanner finds files with identical content below a root
type DuplicateScanner interface {
	Scan(ctx context.Context, root string, maxDepth int) (*scanner.Report, error)
}

// DuplicateDeleter removes duplicates while keeping their originals
type DuplicateDeleter interface {
	DeleteDuplicates(ctx context.Context, dups map[string]string, opts options.DeleteOptions) (*types.OperationResult, error)
}

// Previewer describes a single file
type Previewer interface {
	Preview(path string, maxBytes int) (*services.Preview, error)
}

// DiskSpaceReporter reports filesystem capacity
type DiskSpaceReporter interface {
	FreeSpace(path string) (*services.DiskUsage, error)
	Partitions(ctx context.Context) ([]*services.PartitionUsage, error)
}

// TempPurger empties a temporary directory
type TempPurger interface {
	Purge(ctx context.Context, dir string, opts options.PurgeOptions) (*types.OperationResult, error)
}
