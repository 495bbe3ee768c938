package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/provchain/internal/config"
	"github.com/zjrosen/provchain/internal/log"
)

func init() {
	// Query the terminal background once, before any output is styled,
	// so adaptive colors resolve consistently for the whole run.
	_ = lipgloss.HasDarkBackground()
}

// defaultConfigPath is where the default config is written on first run.
const defaultConfigPath = ".provchain/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config

	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "provchain",
	Short: "Validate reference integrity across provenance documents",
	Long: `provchain checks the references between evidence envelopes, procedure plans
and execution receipts.

Documents are YAML or JSON files. A batch run validates a whole directory as one
set; a check validates a single new document against an existing directory; an
inspect looks only inside one envelope.`,
	Version:            version,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .provchain/config.yaml, then ~/.config/provchain/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write debug logs to log_file (also PROVCHAIN_DEBUG)")
	rootCmd.PersistentFlags().StringP("output", "o", "",
		"report format: json or text")
	rootCmd.PersistentFlags().Bool("no-color", false,
		"disable colors in the text report")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("documents_dir", defaults.DocumentsDir)
	viper.SetDefault("output", defaults.Output)
	viper.SetDefault("no_color", defaults.NoColor)
	viper.SetDefault("debug", defaults.Debug)
	viper.SetDefault("log_file", defaults.LogFile)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("loader.concurrency", defaults.Loader.Concurrency)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("history.db_path", defaults.History.DBPath)
	viper.SetDefault("metrics.file", defaults.Metrics.File)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	// Bound here rather than in init so a viper.Reset keeps the bindings.
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .provchain/config.yaml (current directory)
		// 2. ~/.config/provchain/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			viper.SetConfigFile(defaultConfigPath)
		} else {
			viper.AddConfigPath(config.Dir())
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .provchain/config.yaml
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(defaultConfigPath); writeErr == nil {
				viper.SetConfigFile(defaultConfigPath)
				_ = viper.ReadInConfig()
			}
		}
		// Any other failure (including a missing --config file) continues with defaults.
	}

	_ = viper.Unmarshal(&cfg)
}

// setup validates the loaded configuration and starts debug logging.
func setup(_ *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if debugFlag || os.Getenv("PROVCHAIN_DEBUG") != "" {
		cfg.Debug = true
	}
	if !cfg.Debug {
		return nil
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = config.Defaults().LogFile
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logCleanup = cleanup
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetMinLevel(level)
	}
	log.Info(log.CatConfig, "provchain starting", "version", version, "config", viper.ConfigFileUsed())
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	return nil
}

// configPath returns the config file in use, or the path a new one is written to.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Clean(defaultConfigPath)
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	_ = teardown(rootCmd, nil)
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
