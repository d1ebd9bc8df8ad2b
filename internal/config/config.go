package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for jsonflat
type Config struct {
	Mode      string          `yaml:"mode" toml:"mode"`
	Normalize NormalizeConfig `yaml:"normalize" toml:"normalize"`
	Merge     MergeConfig     `yaml:"merge" toml:"merge"`
	Input     InputConfig     `yaml:"input" toml:"input"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
	Dev       DevConfig       `yaml:"dev" toml:"dev"`
}

// NormalizeConfig controls flattening and inverting
type NormalizeConfig struct {
	// Separator joins parent and child keys. A nil separator means the
	// default; an explicit empty string joins keys with nothing.
	Separator *string `yaml:"separator" toml:"separator"`
	MaxDepth  int     `yaml:"max_depth" toml:"max_depth"`
}

// MergeConfig lists the column merges applied after normalization
type MergeConfig struct {
	ByIndex []MergeRule `yaml:"by_index" toml:"by_index"`
	Simple  []MergeRule `yaml:"simple" toml:"simple"`
}

// MergeRule merges the listed columns into a new column called Name
type MergeRule struct {
	Name    string   `yaml:"name" toml:"name"`
	Columns []string `yaml:"columns" toml:"columns"`
}

// InputConfig controls how input is read
type InputConfig struct {
	Format  string     `yaml:"format" toml:"format"`
	Records bool       `yaml:"records" toml:"records"`
	Head    HeadConfig `yaml:"head" toml:"head"`
}

// HeadConfig limits how much of a large input file is read.
// At most one of Lines and Bytes may be set.
type HeadConfig struct {
	Lines int `yaml:"lines" toml:"lines"`
	Bytes int `yaml:"bytes" toml:"bytes"`
}

// OutputConfig controls the table and its serialization
type OutputConfig struct {
	Format         string            `yaml:"format" toml:"format"`
	Table          string            `yaml:"table" toml:"table"`
	ColumnCase     string            `yaml:"column_case" toml:"column_case"`
	ColumnMappings map[string]string `yaml:"column_mappings" toml:"column_mappings"`
	SkipColumns    []string          `yaml:"skip_columns" toml:"skip_columns"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug   bool `yaml:"debug" toml:"debug"`
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Mode: "flatten",
		Normalize: NormalizeConfig{
			MaxDepth: 10000,
		},
		Merge: MergeConfig{
			ByIndex: []MergeRule{},
			Simple:  []MergeRule{},
		},
		Input: InputConfig{
			Format:  "json",
			Records: false,
		},
		Output: OutputConfig{
			Format:         "json",
			Table:          "records",
			ColumnCase:     "none",
			ColumnMappings: make(map[string]string),
			SkipColumns:    []string{},
		},
		Dev: DevConfig{
			Debug:   false,
			Verbose: false,
		},
	}
}

// LoadConfig loads configuration from a YAML or TOML file. The format is
// chosen by extension; anything other than .toml is read as YAML.
func LoadConfig(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".jsonflat.yml", ".jsonflat.yaml", "jsonflat.yml", "jsonflat.yaml", ".jsonflat.toml", "jsonflat.toml"}

	// Start from current directory
	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks the values that cannot be checked by decoding alone
func (c *Config) Validate() error {
	switch c.Mode {
	case "flatten", "invert":
	default:
		return fmt.Errorf("invalid mode '%s': expected flatten or invert", c.Mode)
	}

	if c.Normalize.MaxDepth < 0 {
		return fmt.Errorf("invalid max_depth %d: must not be negative", c.Normalize.MaxDepth)
	}

	if c.Input.Head.Lines < 0 || c.Input.Head.Bytes < 0 {
		return fmt.Errorf("invalid head limit: must not be negative")
	}
	if c.Input.Head.Lines > 0 && c.Input.Head.Bytes > 0 {
		return fmt.Errorf("invalid head limit: set either lines or bytes, not both")
	}

	for _, group := range []struct {
		name  string
		rules []MergeRule
	}{
		{"by_index", c.Merge.ByIndex},
		{"simple", c.Merge.Simple},
	} {
		for i, rule := range group.rules {
			if strings.TrimSpace(rule.Name) == "" {
				return fmt.Errorf("merge.%s[%d]: name is empty", group.name, i)
			}
			if len(rule.Columns) == 0 {
				return fmt.Errorf("merge.%s[%d] '%s': no columns listed", group.name, i, rule.Name)
			}
		}
	}

	return nil
}

// SeparatorOr returns the configured separator, or def if none is set
func (c *Config) SeparatorOr(def string) string {
	if c.Normalize.Separator == nil {
		return def
	}
	return *c.Normalize.Separator
}

// GetColumnName returns the explicit rename for a column, if any
func (c *Config) GetColumnName(column string) (string, bool) {
	mapped, exists := c.Output.ColumnMappings[column]
	return mapped, exists
}

// ShouldSkipColumn checks if a column should be left out of the output
func (c *Config) ShouldSkipColumn(column string) bool {
	for _, skip := range c.Output.SkipColumns {
		if skip == column {
			return true
		}
	}
	return false
}

// CLIOverrides holds values given on the command line. Empty strings and
// zero numbers mean "not given" and leave the file value in place.
type CLIOverrides struct {
	Mode         string
	InputFormat  string
	OutputFormat string
	Table        string
	Separator    *string
	Records      bool
	HeadLines    int
	HeadBytes    int
	MergeByIndex []MergeRule
	MergeSimple  []MergeRule
	Debug        bool
	Verbose      bool
}

// LoadConfigWithCLI loads config with CLI argument precedence
func LoadConfigWithCLI(configPath string, cli CLIOverrides) (*Config, error) {
	// Start with defaults
	cfg := NewConfig()

	// Load config file if provided
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	MergeConfigs(cfg, cli)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeConfigs applies CLI overrides onto cfg.
// Non-empty values from the command line take precedence over file values;
// merge rules given on the command line are appended after the file's.
func MergeConfigs(cfg *Config, cli CLIOverrides) {
	if cli.Mode != "" {
		cfg.Mode = cli.Mode
	}
	if cli.InputFormat != "" {
		cfg.Input.Format = cli.InputFormat
	}
	if cli.OutputFormat != "" {
		cfg.Output.Format = cli.OutputFormat
	}
	if cli.Table != "" {
		cfg.Output.Table = cli.Table
	}
	if cli.Separator != nil {
		cfg.Normalize.Separator = cli.Separator
	}
	if cli.HeadLines > 0 {
		cfg.Input.Head = HeadConfig{Lines: cli.HeadLines}
	}
	if cli.HeadBytes > 0 {
		cfg.Input.Head = HeadConfig{Bytes: cli.HeadBytes, Lines: cli.HeadLines}
	}

	// Boolean flags can only switch features on
	cfg.Input.Records = cfg.Input.Records || cli.Records
	cfg.Dev.Debug = cfg.Dev.Debug || cli.Debug
	cfg.Dev.Verbose = cfg.Dev.Verbose || cli.Verbose

	cfg.Merge.ByIndex = append(cfg.Merge.ByIndex, cli.MergeByIndex...)
	cfg.Merge.Simple = append(cfg.Merge.Simple, cli.MergeSimple...)
}
