package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/common"
	"github.com/ZanzyTHEbar/dupfs/dupfs/filesystem/utils"
)

// sniffBytes is how much of a file is inspected to tell text from binary
const sniffBytes = 8 * 1024

// PreviewKind classifies a previewed file
type PreviewKind string

const (
	PreviewText   PreviewKind = "text"
	PreviewImage  PreviewKind = "image"
	PreviewBinary PreviewKind = "binary"
)

// Preview describes a file well enough to decide whether to keep it
type Preview struct {
	Path      string            `json:"path"`
	Kind      PreviewKind       `json:"kind"`
	Size      int64             `json:"size"`
	ModTime   time.Time         `json:"mod_time"`
	FileType  string            `json:"file_type"`
	Text      string            `json:"text,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
	Format    string            `json:"format,omitempty"`
	Width     int               `json:"width,omitempty"`
	Height    int               `json:"height,omitempty"`
	EXIF      map[string]string `json:"exif,omitempty"`
}

// PreviewService renders previews of files
type PreviewService struct {
	base
	fileUtils *common.FileUtils
}

// NewPreviewService creates a preview service
func NewPreviewService(opts ...Option) *PreviewService {
	return &PreviewService{
		base:      newBase(opts),
		fileUtils: common.NewFileUtils(),
	}
}

// Preview inspects path. Images (gif, jpeg, png) report their dimensions
// and EXIF tags, text files up to maxBytes of content, anything else only
// its metadata.
func (ps *PreviewService) Preview(path string, maxBytes int) (*Preview, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("preview size must be positive, got %d", maxBytes)
	}

	info, err := ps.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("cannot preview %s: %w", path, common.ErrNotRegularFile)
	}

	f, err := ps.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	p := &Preview{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		FileType: ps.fileUtils.GetFileType(path),
	}

	if cfg, format, err := image.DecodeConfig(f); err == nil {
		p.Kind = PreviewImage
		p.Format = format
		p.Width, p.Height = cfg.Width, cfg.Height
		if _, err := f.Seek(0, io.SeekStart); err == nil {
			p.EXIF = utils.ExtractEXIF(f)
		}
		return p, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", path, err)
	}
	head, err := io.ReadAll(io.LimitReader(f, int64(max(sniffBytes, maxBytes))))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	complete := int64(len(head)) >= info.Size()
	sniff := head
	if len(sniff) > sniffBytes {
		sniff = sniff[:sniffBytes]
		complete = false
	}
	if !looksLikeText(sniff, complete) {
		p.Kind = PreviewBinary
		return p, nil
	}

	text := head
	if len(text) > maxBytes {
		text = trimPartialRune(text[:maxBytes])
	}
	p.Kind = PreviewText
	p.Text = string(text)
	p.Truncated = int64(len(text)) < info.Size()
	return p, nil
}

// looksLikeText reports whether b is NUL-free UTF-8. When b is only the
// start of a file, a rune split at the end is tolerated.
func looksLikeText(b []byte, complete bool) bool {
	if bytes.IndexByte(b, 0) >= 0 {
		return false
	}
	if !complete {
		b = trimPartialRune(b)
	}
	return utf8.Valid(b)
}

// trimPartialRune drops an incomplete UTF-8 sequence from the end of b
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}
