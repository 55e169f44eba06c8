package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskUsage reports the capacity of the filesystem holding Path
type DiskUsage struct {
	Path      string `json:"path"`
	Total     uint64 `json:"total"`
	Free      uint64 `json:"free"`
	Available uint64 `json:"available"`
}

// Used returns the bytes in use
func (d *DiskUsage) Used() uint64 {
	return d.Total - d.Free
}

// String renders the usage for humans
func (d *DiskUsage) String() string {
	return fmt.Sprintf("%s: %s available of %s (%s used)",
		d.Path,
		common.FormatBytes(int64(d.Available)),
		common.FormatBytes(int64(d.Total)),
		common.FormatBytes(int64(d.Used())))
}

// PartitionUsage is the usage of one mounted partition
type PartitionUsage struct {
	Device string `json:"device"`
	FSType string `json:"fstype"`
	DiskUsage
}

// String renders the partition for humans
func (p *PartitionUsage) String() string {
	return fmt.Sprintf("%s (%s) %s", p.Device, p.FSType, p.DiskUsage.String())
}

// DiskSpaceService reports free space on the OS filesystem
type DiskSpaceService struct {
	base
	pathUtils  *common.PathUtils
	partitions func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	usage      func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewDiskSpaceService creates a disk space service. Only the logger option
// applies: capacity is always read from the OS.
func NewDiskSpaceService(opts ...Option) *DiskSpaceService {
	return &DiskSpaceService{
		base:       newBase(opts),
		pathUtils:  common.NewPathUtils(),
		partitions: disk.PartitionsWithContext,
		usage:      disk.UsageWithContext,
	}
}

// FreeSpace reports the capacity of the filesystem containing path
func (ds *DiskSpaceService) FreeSpace(path string) (*DiskUsage, error) {
	if path == "" {
		path = "."
	}
	path = ds.pathUtils.NormalizePath(path)

	usage, err := statfs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read disk usage for %s: %w", path, err)
	}
	usage.Path = path
	return usage, nil
}

// Partitions reports every mounted physical partition, sorted by mountpoint.
// Partitions whose usage cannot be read are logged and left out.
func (ds *DiskSpaceService) Partitions(ctx context.Context) ([]*PartitionUsage, error) {
	parts, err := ds.partitions(ctx, false)
	if err != nil {
		if len(parts) == 0 {
			return nil, fmt.Errorf("failed to list partitions: %w", err)
		}
		ds.logger.Warn().Err(err).Msg("Partition listing incomplete")
	}

	seen := make(map[string]struct{}, len(parts))
	out := make([]*PartitionUsage, 0, len(parts))
	for _, p := range parts {
		if _, ok := seen[p.Mountpoint]; ok {
			continue
		}
		seen[p.Mountpoint] = struct{}{}

		u, err := ds.usage(ctx, p.Mountpoint)
		if err != nil {
			ds.logger.Debug().Str("mountpoint", p.Mountpoint).Err(err).Msg("Skipping unreadable partition")
			continue
		}
		out = append(out, &PartitionUsage{
			Device:    p.Device,
			FSType:    p.Fstype,
			DiskUsage: fromUsageStat(p.Mountpoint, u),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// fromUsageStat converts gopsutil usage, whose Free is the space available
// to unprivileged users
func fromUsageStat(path string, u *disk.UsageStat) DiskUsage {
	return DiskUsage{
		Path:      path,
		Total:     u.Total,
		Free:      u.Total - u.Used,
		Available: u.Free,
	}
}
