// Package config provides configuration types and defaults for provchain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/provchain/internal/log"
)

// Output formats.
const (
	OutputJSON = "json"
	OutputText = "text"
)

// Config holds all configuration options for provchain.
type Config struct {
	DocumentsDir string        `mapstructure:"documents_dir"`
	Output       string        `mapstructure:"output"`   // "json" (default) or "text"
	NoColor      bool          `mapstructure:"no_color"` // Force plain text output
	Debug        bool          `mapstructure:"debug"`
	LogFile      string        `mapstructure:"log_file"`
	LogLevel     string        `mapstructure:"log_level"` // debug, info, warn or error
	Watch        WatchConfig   `mapstructure:"watch"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Loader       LoaderConfig  `mapstructure:"loader"`
	History      HistoryConfig `mapstructure:"history"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	Tracing      TracingConfig `mapstructure:"tracing"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// CacheConfig holds the decoded-file cache settings.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// LoaderConfig holds document loading settings.
type LoaderConfig struct {
	// Concurrency bounds how many files are decoded at once.
	Concurrency int `mapstructure:"concurrency"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// DBPath is the SQLite database file.
	// Default: ~/.config/provchain/history.db
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// File is a Prometheus textfile written after each run. Empty disables export.
	File string `mapstructure:"file"`
}

// TracingConfig mirrors tracing.Config. Exporter is one of none, file, stdout
// or otlp; FilePath and OTLPEndpoint only matter for the matching exporter.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"` // 0.0 to 1.0
	ServiceName  string  `mapstructure:"service_name"`
}

// exporterRequires maps each accepted exporter to the setting it cannot run without.
var exporterRequires = map[string]string{
	"none":   "",
	"stdout": "",
	"file":   "file_path",
	"otlp":   "otlp_endpoint",
}

// Dir returns ~/.config/provchain or empty string if home dir unavailable.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "provchain")
}

// DefaultTracesFilePath is traces/traces.jsonl under Dir, or "" without a home directory.
func DefaultTracesFilePath() string { return underDir("traces", "traces.jsonl") }

// DefaultHistoryDBPath is history.db under Dir, or "" without a home directory.
func DefaultHistoryDBPath() string { return underDir("history.db") }

func underDir(elem ...string) string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(append([]string{dir}, elem...)...)
}

// Defaults is the configuration used when no file or flag overrides a key.
func Defaults() Config {
	return Config{
		DocumentsDir: ".",
		Output:       OutputJSON,
		LogFile:      "provchain-debug.log",
		LogLevel:     "debug",
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			TTL:             10 * time.Minute,
			CleanupInterval: 15 * time.Minute,
		},
		Loader: LoaderConfig{
			Concurrency: 8,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  DefaultHistoryDBPath(),
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "provchain",
		},
	}
}

// Validate checks the whole configuration for errors.
func Validate(cfg Config) error {
	switch cfg.Output {
	case "", OutputJSON, OutputText:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", OutputJSON, OutputText, cfg.Output)
	}

	if cfg.LogLevel != "" {
		if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}

	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", cfg.Watch.Debounce)
	}
	if cfg.Cache.TTL < 0 || cfg.Cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.ttl and cache.cleanup_interval must not be negative")
	}
	if cfg.Loader.Concurrency < 0 {
		return fmt.Errorf("loader.concurrency must not be negative, got %d", cfg.Loader.Concurrency)
	}

	if err := ValidateHistory(cfg.History); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateHistory checks history configuration for errors.
func ValidateHistory(history HistoryConfig) error {
	if history.Enabled && history.DBPath == "" {
		return fmt.Errorf("history.db_path is required when history is enabled")
	}
	return nil
}

// ValidateTracing rejects unknown exporters and out-of-range sample rates.
// Settings an exporter needs are only enforced while tracing is enabled.
func ValidateTracing(t TracingConfig) error {
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}
	if t.Exporter == "" {
		return nil
	}

	required, ok := exporterRequires[t.Exporter]
	if !ok {
		return fmt.Errorf("tracing.exporter must be one of none, file, stdout or otlp, got %q", t.Exporter)
	}
	if !t.Enabled || required == "" {
		return nil
	}

	value := t.FilePath
	if required == "otlp_endpoint" {
		value = t.OTLPEndpoint
	}
	if value == "" {
		return fmt.Errorf("tracing.%s is required when exporter is %q", required, t.Exporter)
	}
	return nil
}

// Keys lists every settable configuration key in dotted form.
func Keys() []string {
	return []string{
		"documents_dir",
		"output",
		"no_color",
		"debug",
		"log_file",
		"log_level",
		"watch.debounce",
		"cache.ttl",
		"cache.cleanup_interval",
		"loader.concurrency",
		"history.enabled",
		"history.db_path",
		"metrics.file",
		"tracing.enabled",
		"tracing.exporter",
		"tracing.file_path",
		"tracing.otlp_endpoint",
		"tracing.sample_rate",
		"tracing.service_name",
	}
}

// DefaultConfigTemplate is the commented YAML written on first run.
func DefaultConfigTemplate() string {
	return `# provchain configuration

# Directory scanned by validate and watch when no path is given
documents_dir: .

# Report format: json (default) or text
output: json

# Disable colours in the text report
no_color: false

# Debug logging (also enabled by --debug or PROVCHAIN_DEBUG)
# debug: false
# log_file: provchain-debug.log
# log_level: debug   # debug, info, warn or error

watch:
  debounce: 500ms   # Quiet period before revalidating after a change

# Decoded document cache, keyed by file path, size and modification time
cache:
  ttl: 10m
  cleanup_interval: 15m

loader:
  concurrency: 8    # Files decoded in parallel

# Validation run history (SQLite)
history:
  enabled: true
  # db_path: ~/.config/provchain/history.db

# Prometheus textfile written after every run (empty disables)
# metrics:
#   file: /var/lib/node_exporter/textfile/provchain.prom

# OpenTelemetry spans for load, registration and validation
# tracing:
#   enabled: false
#   exporter: file        # none | file | stdout | otlp
#   file_path: ~/.config/provchain/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
#   service_name: provchain
`
}

// WriteDefaultConfig writes DefaultConfigTemplate to path, creating its directory.
// An existing file is overwritten.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "config directory not created", err, "path", path)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "default config not written", err, "path", path)
		return fmt.Errorf("writing config file: %w", err)
	}
	log.Info(log.CatConfig, "wrote default config", "path", path)
	return nil
}
