//go:build !linux && !darwin

package services

import (
	"github.com/shirou/gopsutil/v4/disk"
)

func statfs(path string) (*DiskUsage, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	usage := fromUsageStat(path, u)
	return &usage, nil
}
