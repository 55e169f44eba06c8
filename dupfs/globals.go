package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// DefaultConfigPath is the default path to the config file
	DefaultAppName        = "dupfs"
	DefaultEnvPrefix      = "DUPFS"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultTrashDir       = filepath.Join(DefaultConfigPath, ".trash")
	DefaultIgnoreFileName = "." + DefaultAppName + "ignore"

	// Scan defaults used by the CLI. The engine itself has no depth constant.
	DefaultMaxDepth       = 10
	DefaultOriginalPolicy = "lexical"
	DefaultPreviewBytes   = 4096
	DefaultLogLevel       = "info"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using %s: %v", os.TempDir(), err)
			return os.TempDir()
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// NewLogger builds a timestamped logger on w filtered to the named level.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
