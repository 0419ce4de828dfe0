// Package config holds the batch tool configuration, loaded from flags and
// INVOICEMINER_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultWorkers     = 1
	DefaultFormats     = "json"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for one batch run.
type Config struct {
	// Template store
	TemplateDB string
	TemplateID int64

	// Input/output
	InputDir  string
	OutputDir string
	Formats   []string // json, csv, xlsx

	// Validation
	RulesFile string

	// Processing
	Workers     int
	MarkerScope string // "all" or "first": region association for unindexed column markers
	MaxFileSize int64
	LogLevel    string
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		TemplateDB:  filepath.Join(currentDir, "templates.db"),
		InputDir:    currentDir,
		OutputDir:   currentDir,
		Formats:     []string{"json"},
		Workers:     DefaultWorkers,
		MarkerScope: "all",
		MaxFileSize: DefaultMaxFileSize,
		LogLevel:    DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, key := range []*string{&cfg.TemplateDB, &cfg.InputDir, &cfg.OutputDir} {
		if *key != "" {
			if expanded, err := filepath.Abs(*key); err == nil {
				*key = expanded
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("INVOICEMINER")
	viper.AutomaticEnv()

	viper.SetDefault("db", cfg.TemplateDB)
	viper.SetDefault("template", cfg.TemplateID)
	viper.SetDefault("input", cfg.InputDir)
	viper.SetDefault("output", cfg.OutputDir)
	viper.SetDefault("formats", DefaultFormats)
	viper.SetDefault("rules", cfg.RulesFile)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("markerscope", cfg.MarkerScope)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("db", cfg.TemplateDB, "Path to the template SQLite database")
	pflag.Int64("template", cfg.TemplateID, "Template id to apply to the batch")
	pflag.String("input", cfg.InputDir, "Directory containing the PDF invoices to process")
	pflag.String("output", cfg.OutputDir, "Directory export files are written to")
	pflag.String("formats", DefaultFormats, "Comma list of export formats: json, csv, xlsx")
	pflag.String("rules", cfg.RulesFile, "Optional validation rules file applied after extraction")
	pflag.Int("workers", cfg.Workers, "Number of documents processed concurrently")
	pflag.String("markerscope", cfg.MarkerScope,
		"Region association for column markers without a region index: 'all' or 'first'")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	for _, name := range []string{
		"db", "template", "input", "output", "formats", "rules",
		"workers", "markerscope", "maxfilesize", "loglevel",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ninvoiceminer - template-driven invoice table extraction and validation\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --db=templates.db --template=3 --input=/invoices\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --template=3 --formats=json,xlsx --rules=rules.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_DB          Template database path\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_TEMPLATE    Template id\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_INPUT       Input directory\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_OUTPUT      Output directory\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_FORMATS     Export formats\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_WORKERS     Concurrent documents\n")
		fmt.Fprintf(os.Stderr, "  INVOICEMINER_LOGLEVEL    Log level\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.TemplateDB = viper.GetString("db")
	cfg.TemplateID = viper.GetInt64("template")
	cfg.InputDir = viper.GetString("input")
	cfg.OutputDir = viper.GetString("output")
	cfg.Formats = splitFormats(viper.GetString("formats"))
	cfg.RulesFile = viper.GetString("rules")
	cfg.Workers = viper.GetInt("workers")
	cfg.MarkerScope = viper.GetString("markerscope")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.LogLevel = viper.GetString("loglevel")
}

func splitFormats(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TemplateDB == "" {
		return errors.New("template database path cannot be empty")
	}
	if c.TemplateID <= 0 {
		return errors.New("a template id must be provided")
	}
	if c.InputDir == "" {
		return errors.New("input directory cannot be empty")
	}
	if _, err := os.Stat(c.InputDir); err != nil {
		return fmt.Errorf("cannot access input directory %s: %w", c.InputDir, err)
	}
	if c.OutputDir == "" {
		return errors.New("output directory cannot be empty")
	}
	if _, err := os.Stat(c.OutputDir); os.IsNotExist(err) {
		if err := os.MkdirAll(c.OutputDir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create output directory %s: %w", c.OutputDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access output directory %s: %w", c.OutputDir, err)
	}

	validFormats := map[string]bool{"json": true, "csv": true, "xlsx": true}
	if len(c.Formats) == 0 {
		return errors.New("at least one export format is required")
	}
	for _, f := range c.Formats {
		if !validFormats[f] {
			return fmt.Errorf("invalid export format: %s (must be one of: json, csv, xlsx)", f)
		}
	}

	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.MarkerScope != "all" && c.MarkerScope != "first" {
		return errors.New("markerscope must be either 'all' or 'first'")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// HasFormat reports whether the given export format was requested.
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{TemplateDB: %s, TemplateID: %d, InputDir: %s, OutputDir: %s, Formats: %v, Workers: %d, LogLevel: %s}",
		c.TemplateDB, c.TemplateID, c.InputDir, c.OutputDir, c.Formats, c.Workers, c.LogLevel)
}
