// Package services implements the actions a caller can take on scan results:
// deleting duplicates, previewing files, reporting disk space and purging
// temporary files.
package services

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
)

// Option configures a service.
type Option func(*base)

// base carries what every service shares
type base struct {
	fs     billy.Filesystem
	logger zerolog.Logger
}

// WithFilesystem operates on fs instead of the OS filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(b *base) {
		if fs != nil {
			b.fs = fs
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(b *base) { b.logger = l }
}

func newBase(opts []Option) base {
	b := base{
		fs:     osfs.New(""),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
