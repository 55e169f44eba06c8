// Package fingerprint computes content digests for single files.
//
// A Fingerprint is the MD5 digest of a file's full byte stream. Two files
// with equal fingerprints are treated as duplicates regardless of name,
// location or metadata. MD5 is used for speed, not for collision resistance.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Size is the length of a Fingerprint in bytes.
const Size = md5.Size

const copyBufferSize = 64 * 1024

// Fingerprint is a fixed-length content digest.
type Fingerprint [Size]byte

// String returns the lowercase hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Parse decodes a hex string produced by String.
func Parse(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	if len(b) != Size {
		return f, fmt.Errorf("invalid fingerprint %q: want %d bytes, got %d", s, Size, len(b))
	}
	copy(f[:], b)
	return f, nil
}

// Engine fingerprints files on a billy filesystem. It holds no per-call
// state and is safe for concurrent use.
type Engine struct {
	fs      billy.Filesystem
	buffers sync.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithFilesystem reads files from fs instead of the OS filesystem.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(e *Engine) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// NewEngine creates an Engine reading from the OS filesystem by default.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{fs: osfs.New("")}
	e.buffers.New = func() any {
		buf := make([]byte, copyBufferSize)
		return &buf
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filesystem returns the filesystem the engine reads from.
func (e *Engine) Filesystem() billy.Filesystem {
	return e.fs
}

// Fingerprint digests the full content of path. Any failure, including
// path not being a regular file, is returned as an UnreadableFile
// *common.PathError and no digest is produced.
func (e *Engine) Fingerprint(path string) (Fingerprint, error) {
	fp, _, err := e.FingerprintSize(path)
	return fp, err
}

// FingerprintSize is Fingerprint that also reports the number of bytes read.
func (e *Engine) FingerprintSize(path string) (Fingerprint, int64, error) {
	var fp Fingerprint

	info, err := e.fs.Stat(path)
	if err != nil {
		return fp, 0, common.NewPathError(common.UnreadableFile, path, err)
	}
	if !info.Mode().IsRegular() {
		return fp, 0, common.NewPathError(common.UnreadableFile, path, common.ErrNotRegularFile)
	}

	f, err := e.fs.Open(path)
	if err != nil {
		return fp, 0, common.NewPathError(common.UnreadableFile, path, err)
	}
	defer f.Close()

	bufp := e.buffers.Get().(*[]byte)
	defer e.buffers.Put(bufp)

	hasher := md5.New()
	n, err := io.CopyBuffer(hasher, f, *bufp)
	if err != nil {
		return fp, 0, common.NewPathError(common.UnreadableFile, path, err)
	}

	copy(fp[:], hasher.Sum(nil))
	return fp, n, nil
}

// Equal re-checks whether two files currently have identical content.
func (e *Engine) Equal(a, b string) (bool, error) {
	fa, err := e.Fingerprint(a)
	if err != nil {
		return false, err
	}
	fb, err := e.Fingerprint(b)
	if err != nil {
		return false, err
	}
	return fa == fb, nil
}

var defaultEngine = NewEngine()

// FingerprintFile fingerprints a file on the OS filesystem.
func FingerprintFile(path string) (Fingerprint, error) {
	return defaultEngine.Fingerprint(path)
}
