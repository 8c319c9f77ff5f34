package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/cesargomez89/recshelf/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port          string        `mapstructure:"port"`
	DBPath        string        `mapstructure:"db_path"`
	WatchDir      string        `mapstructure:"watch_dir"`
	Prober        string        `mapstructure:"prober"`
	FFProbePath   string        `mapstructure:"ffprobe_path"`
	ProbeWorkers  int           `mapstructure:"probe_workers"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	Watch         bool          `mapstructure:"watch"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
	LockPath      string        `mapstructure:"lock_path"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
}

// DataDir is where the catalog lives unless db_path says otherwise.
func DataDir() string {
	return filepath.Join(xdg.DataHome, constants.DefaultAppDirName)
}

// SetDefaults registers every key with its default so environment variables
// are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", constants.DefaultPort)
	v.SetDefault("db_path", filepath.Join(DataDir(), constants.DefaultDBName))
	v.SetDefault("watch_dir", "")
	v.SetDefault("prober", constants.DefaultProber)
	v.SetDefault("ffprobe_path", constants.DefaultFFProbePath)
	v.SetDefault("probe_workers", constants.DefaultProbeWorkers)
	v.SetDefault("sync_interval", constants.DefaultSyncInterval)
	v.SetDefault("watch", false)
	v.SetDefault("watch_debounce", constants.DefaultWatchDebounce)
	v.SetDefault("lock_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration into a caller-provided viper instance, so
// command-line flags bound to it take precedence. Environment variables use
// the RECSHELF_ prefix (RECSHELF_WATCH_DIR). A config file is read from
// the file already set on v, then RECSHELF_CONFIG, otherwise from
// $XDG_CONFIG_HOME/recshelf if one exists there.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(constants.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if v.ConfigFileUsed() == "" {
		if file := os.Getenv(constants.DefaultEnvPrefix + "_CONFIG"); file != "" {
			v.SetConfigFile(file)
		} else {
			v.SetConfigName("config")
			v.AddConfigPath(filepath.Join(xdg.ConfigHome, constants.DefaultAppDirName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.WatchDir != "" {
		if abs, err := filepath.Abs(cfg.WatchDir); err == nil {
			cfg.WatchDir = abs
		}
	}
	return &cfg, nil
}

// LockFile returns the cross-process lock path, next to the database unless
// configured explicitly.
func (c *Config) LockFile() string {
	if c.LockPath != "" {
		return c.LockPath
	}
	return filepath.Join(filepath.Dir(c.DBPath), constants.DefaultLockName)
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errs []string

	if c.Port == "" {
		errs = append(errs, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errs = append(errs, "DB_PATH cannot be empty")
	}

	if c.WatchDir == "" {
		errs = append(errs, "WATCH_DIR cannot be empty")
	}

	validProbers := map[string]bool{
		constants.ProberAuto:    true,
		constants.ProberFFProbe: true,
		constants.ProberNative:  true,
	}
	if !validProbers[c.Prober] {
		errs = append(errs, fmt.Sprintf("PROBER must be one of: auto, ffprobe, native, got: %s", c.Prober))
	}

	if c.Prober != constants.ProberNative && strings.TrimSpace(c.FFProbePath) == "" {
		errs = append(errs, "FFPROBE_PATH cannot be empty")
	}

	if c.ProbeWorkers < 1 {
		errs = append(errs, fmt.Sprintf("PROBE_WORKERS must be at least 1, got: %d", c.ProbeWorkers))
	}

	if c.SyncInterval < 0 {
		errs = append(errs, fmt.Sprintf("SYNC_INTERVAL cannot be negative, got: %s", c.SyncInterval))
	}

	if c.Watch && c.WatchDebounce <= 0 {
		errs = append(errs, fmt.Sprintf("WATCH_DEBOUNCE must be positive when WATCH is enabled, got: %s", c.WatchDebounce))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text":    true,
		"json":    true,
		"console": true,
		"auto":    true,
	}
	if !validLogFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of: text, json, console, auto, got: %s", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
