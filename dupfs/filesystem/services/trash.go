package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// trashBin moves files and directories into a trash directory
type trashBin struct {
	fs     billy.Filesystem
	logger zerolog.Logger
}

// move relocates path into trashDir under a unique name and returns the new
// location. When the trash lives on another device the entry is copied and
// the source removed.
func (tb trashBin) move(path, trashDir string) (string, error) {
	if err := tb.fs.MkdirAll(trashDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create trash directory: %w", err)
	}

	// Generate unique filename in trash
	trashFile := filepath.Join(trashDir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(path)))

	err := tb.fs.Rename(path, trashFile)
	if err == nil {
		return trashFile, nil
	}
	if !isCrossDeviceError(err) {
		return "", fmt.Errorf("failed to move %s to trash: %w", path, err)
	}

	tb.logger.Debug().Str("path", path).Str("trash", trashFile).Msg("Trash is on another device, copying")
	if err := tb.copyTree(path, trashFile); err != nil {
		_ = util.RemoveAll(tb.fs, trashFile)
		return "", fmt.Errorf("failed to copy %s to trash: %w", path, err)
	}
	if err := util.RemoveAll(tb.fs, path); err != nil {
		return trashFile, fmt.Errorf("copied %s to trash but failed to remove it: %w", path, err)
	}
	return trashFile, nil
}

func isCrossDeviceError(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// copyTree copies a file, symlink or directory tree from src to dst
func (tb trashBin) copyTree(src, dst string) error {
	return util.Walk(tb.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return tb.fs.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := tb.fs.Readlink(path)
			if err != nil {
				return err
			}
			return tb.fs.Symlink(link, target)
		case info.Mode().IsRegular():
			return tb.copyFile(path, target, info.Mode().Perm())
		default:
			// Devices, sockets and pipes have no content to keep
			return nil
		}
	})
}

func (tb trashBin) copyFile(src, dst string, perm os.FileMode) error {
	in, err := tb.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := tb.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
