package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common error types used across filesystem packages
var (
	ErrPathEmpty           = errors.New("path cannot be empty")
	ErrPathTooLong         = errors.New("path too long (max 4096 characters)")
	ErrPathInvalid         = errors.New("path contains invalid characters")
	ErrInvalidRoot         = errors.New("invalid scan root")
	ErrUnreadableFile      = errors.New("unreadable file")
	ErrUnreadableDirectory = errors.New("unreadable directory")
	ErrNotRegularFile      = errors.New("not a regular file")
	ErrOriginalMissing     = errors.New("original no longer matches duplicate")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrOutsideRoot         = errors.New("path is outside the scan root")
)

// ErrorKind classifies the failures the scanner can observe.
type ErrorKind int

const (
	// UnreadableFile is an I/O failure while fingerprinting. Recovered locally.
	UnreadableFile ErrorKind = iota
	// UnreadableDirectory is an enumeration failure on a subtree. Recovered locally.
	UnreadableDirectory
	// InvalidRoot means the scan root is missing or not a directory. Fatal.
	InvalidRoot
)

func (k ErrorKind) String() string {
	switch k {
	case UnreadableFile:
		return "unreadable_file"
	case UnreadableDirectory:
		return "unreadable_directory"
	case InvalidRoot:
		return "invalid_root"
	default:
		return fmt.Sprintf("error_kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k ErrorKind) sentinel() error {
	switch k {
	case UnreadableFile:
		return ErrUnreadableFile
	case UnreadableDirectory:
		return ErrUnreadableDirectory
	case InvalidRoot:
		return ErrInvalidRoot
	default:
		return nil
	}
}

// PathError records a classified failure and the path that caused it.
// errors.Is matches both the kind sentinel and the wrapped cause.
type PathError struct {
	Kind ErrorKind
	Path string
	Err  error
}

// NewPathError creates a PathError of the given kind.
func NewPathError(kind ErrorKind, path string, err error) *PathError {
	return &PathError{Kind: kind, Path: path, Err: err}
}

func (e *PathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *PathError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf extracts the ErrorKind from err, if err carries one.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// ValidationUtils provides common validation utilities used across packages
type ValidationUtils struct{}

// NewValidationUtils creates a new ValidationUtils instance
func NewValidationUtils() *ValidationUtils {
	return &ValidationUtils{}
}

// ValidateContextCancellation checks if context is cancelled and returns appropriate error
func (vu *ValidationUtils) ValidateContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ValidatePathLength validates that a path is not too long
func (vu *ValidationUtils) ValidatePathLength(path string) error {
	if len(path) > 4096 {
		return ErrPathTooLong
	}
	return nil
}

// ValidatePathCharacters validates that a path doesn't contain invalid characters
func (vu *ValidationUtils) ValidatePathCharacters(path string) error {
	if strings.Contains(path, "\x00") {
		return ErrPathInvalid
	}
	return nil
}

// ValidateScanRoot checks that root names an existing directory.
// Every failure is an InvalidRoot PathError.
func (vu *ValidationUtils) ValidateScanRoot(stat func(string) (os.FileInfo, error), root string) error {
	if strings.TrimSpace(root) == "" {
		return NewPathError(InvalidRoot, root, ErrPathEmpty)
	}
	if err := vu.ValidatePathCharacters(root); err != nil {
		return NewPathError(InvalidRoot, root, err)
	}
	if err := vu.ValidatePathLength(root); err != nil {
		return NewPathError(InvalidRoot, root, err)
	}

	info, err := stat(root)
	if err != nil {
		return NewPathError(InvalidRoot, root, err)
	}
	if !info.IsDir() {
		return NewPathError(InvalidRoot, root, fmt.Errorf("not a directory"))
	}
	return nil
}

// ErrorUtils provides common error handling utilities
type ErrorUtils struct{}

// NewErrorUtils creates a new ErrorUtils instance
func NewErrorUtils() *ErrorUtils {
	return &ErrorUtils{}
}

// WrapError wraps an error with additional context
func (eu *ErrorUtils) WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}

// IsPermissionError reports whether err stems from missing permissions.
func (eu *ErrorUtils) IsPermissionError(err error) bool {
	return errors.Is(err, os.ErrPermission) || errors.Is(err, ErrPermissionDenied)
}
