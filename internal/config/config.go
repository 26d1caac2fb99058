// Package config loads the hq configuration from .hq/config.yaml,
// merged over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the hq configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the hq configuration directory
const ConfigDirName = ".hq"

// Config holds all hq configuration
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Plan   PlanConfig   `yaml:"plan"`
	Report ReportConfig `yaml:"report"`
	Cache  CacheConfig  `yaml:"cache"`
}

// ScanConfig holds configuration for header scanning
type ScanConfig struct {
	// Extensions selects which files a directory scan picks up.
	Extensions []string `yaml:"extensions"`
	// Exclude lists glob patterns of base names to skip.
	Exclude []string `yaml:"exclude"`
}

// PlanConfig holds configuration for the definition planner
type PlanConfig struct {
	// Overwrite is the default policy for already-defined types:
	// no, yes, or select.
	Overwrite string `yaml:"overwrite"`
}

// ReportConfig holds configuration for the run report
type ReportConfig struct {
	// Path is the report output file, relative to the working directory.
	Path string `yaml:"path"`
	// MaxErrorSnippets caps how many parse-error snippets the report
	// includes verbatim. Above the cap only file names are listed.
	MaxErrorSnippets int `yaml:"max_error_snippets"`
}

// CacheConfig holds configuration for the extraction cache
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// set records that the section appeared in the file at all; yaml
	// cannot otherwise distinguish absent from false.
	set bool
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .hq/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking
// up the directory tree. If no config is found, returns defaults.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFromPath(filepath.Join(configDir, ConfigFileName))
}

// LoadFromPath reads config from a specific path, merges it with
// defaults, and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// FindConfigDir locates the .hq directory by walking up from startDir.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .hq directory if it doesn't exist and
// returns its path.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)
	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return configDir, nil
}

// Validate checks that config values are valid.
func Validate(cfg *Config) error {
	switch cfg.Plan.Overwrite {
	case "no", "yes", "select":
	default:
		return fmt.Errorf("%w: overwrite must be no, yes, or select, got %q",
			ErrInvalidConfig, cfg.Plan.Overwrite)
	}

	if cfg.Report.MaxErrorSnippets < 0 {
		return fmt.Errorf("%w: max_error_snippets must be non-negative, got %d",
			ErrInvalidConfig, cfg.Report.MaxErrorSnippets)
	}

	if len(cfg.Scan.Extensions) == 0 {
		return fmt.Errorf("%w: scan extensions must not be empty", ErrInvalidConfig)
	}
	for _, ext := range cfg.Scan.Extensions {
		if ext == "" || ext[0] != '.' {
			return fmt.Errorf("%w: scan extension %q must start with a dot",
				ErrInvalidConfig, ext)
		}
	}

	for _, pattern := range cfg.Scan.Exclude {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("%w: bad exclude pattern %q: %v",
				ErrInvalidConfig, pattern, err)
		}
	}
	return nil
}

// SaveDefault writes the default configuration to .hq/config.yaml in
// workDir, creating the directory if needed.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# hq configuration\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return configPath, nil
}
