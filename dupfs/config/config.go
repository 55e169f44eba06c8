package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/dupfs/dupfs"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Original selection policies understood by the scanner.
const (
	PolicyLexical   = "lexical"
	PolicyFirstSeen = "first-seen"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Scanner ScannerConfig `mapstructure:"scanner"`
	Actions ActionsConfig `mapstructure:"actions"`
	Log     LogConfig     `mapstructure:"log"`
}

// ScannerConfig stores duplicate scanner settings.
type ScannerConfig struct {
	MaxDepth       int    `mapstructure:"maxDepth"`
	Workers        int    `mapstructure:"workers"`
	OriginalPolicy string `mapstructure:"originalPolicy"`
	IgnoreFile     string `mapstructure:"ignoreFile"`
}

// ActionsConfig stores settings for the delete, preview and purge actions.
type ActionsConfig struct {
	TrashDir     string `mapstructure:"trashDir"`
	TempDir      string `mapstructure:"tempDir"`
	PreviewBytes int    `mapstructure:"previewBytes"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// FlagBindings maps config keys to CLI flag names.
var FlagBindings = map[string]string{
	"scanner.maxDepth":       "depth",
	"scanner.workers":        "workers",
	"scanner.originalPolicy": "policy",
	"scanner.ignoreFile":     "ignore-file",
	"actions.trashDir":       "trash-dir",
	"actions.tempDir":        "temp-dir",
	"actions.previewBytes":   "preview-bytes",
	"log.level":              "log-level",
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithFlags(configPath, nil)
}

// LoadConfigWithFlags is LoadConfig with explicitly set CLI flags taking
// precedence over the file and the environment.
func LoadConfigWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // scanner.maxDepth becomes DUPFS_SCANNER_MAXDEPTH
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file in the search path; defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scanner.maxDepth", internal.DefaultMaxDepth)
	v.SetDefault("scanner.workers", 0) // 0 means one worker per CPU
	v.SetDefault("scanner.originalPolicy", internal.DefaultOriginalPolicy)
	v.SetDefault("scanner.ignoreFile", internal.DefaultIgnoreFileName)
	v.SetDefault("actions.trashDir", internal.DefaultTrashDir)
	v.SetDefault("actions.tempDir", "")
	v.SetDefault("actions.previewBytes", internal.DefaultPreviewBytes)
	v.SetDefault("log.level", internal.DefaultLogLevel)
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	switch c.Scanner.OriginalPolicy {
	case PolicyLexical, PolicyFirstSeen:
	default:
		return fmt.Errorf("invalid scanner.originalPolicy %q (want %q or %q)",
			c.Scanner.OriginalPolicy, PolicyLexical, PolicyFirstSeen)
	}
	if c.Scanner.Workers < 0 {
		return fmt.Errorf("scanner.workers cannot be negative: %d", c.Scanner.Workers)
	}
	if c.Actions.PreviewBytes <= 0 {
		return fmt.Errorf("actions.previewBytes must be positive: %d", c.Actions.PreviewBytes)
	}
	return nil
}
