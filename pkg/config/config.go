package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nested keys: DEBTMAP_COMPLEXITY_THRESHOLDS__HIGH=20.
const EnvPrefix = "DEBTMAP_"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration options for debtmap.
// A Config must not be modified while a scan is using it.
type Config struct {
	// Days since last commit before a widely imported file is reported.
	StaleDaysThreshold int `koanf:"stale_days_threshold" toml:"stale_days_threshold"`

	// Minimum fan-in before a file is considered for staleness.
	StaleImportThreshold int `koanf:"stale_import_threshold" toml:"stale_import_threshold"`

	ComplexityThresholds ComplexityThresholds `koanf:"complexity_thresholds" toml:"complexity_thresholds"`

	// Marker words matched case-insensitively on word boundaries.
	TodoPatterns []string `koanf:"todo_patterns" toml:"todo_patterns"`

	// Gitignore-syntax patterns excluded from discovery.
	ExcludeGlobs []string `koanf:"exclude_globs" toml:"exclude_globs"`

	MaxFilesToScan int `koanf:"max_files_to_scan" toml:"max_files_to_scan"`

	Audit   AuditConfig   `koanf:"audit" toml:"audit"`
	Cache   CacheConfig   `koanf:"cache" toml:"cache"`
	History HistoryConfig `koanf:"history" toml:"history"`
	Output  OutputConfig  `koanf:"output" toml:"output"`
	Log     LogConfig     `koanf:"log" toml:"log"`
}

// ComplexityThresholds are ordered cut points: low < medium < high < critical.
type ComplexityThresholds struct {
	Low      int `koanf:"low" toml:"low"`
	Medium   int `koanf:"medium" toml:"medium"`
	High     int `koanf:"high" toml:"high"`
	Critical int `koanf:"critical" toml:"critical"`
}

// AuditConfig controls the external dependency-audit invocation.
type AuditConfig struct {
	Enabled  bool          `koanf:"enabled" toml:"enabled"`
	Command  []string      `koanf:"command" toml:"command"`
	Manifest string        `koanf:"manifest" toml:"manifest"`
	Timeout  time.Duration `koanf:"timeout" toml:"timeout"`
}

// CacheConfig controls the persistent blame cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// HistoryConfig controls the scan history database.
type HistoryConfig struct {
	Path string `koanf:"path" toml:"path"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, markdown, json, toon, yaml
	Color  bool   `koanf:"color" toml:"color"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `koanf:"level" toml:"level"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StaleDaysThreshold:   365,
		StaleImportThreshold: 5,
		ComplexityThresholds: ComplexityThresholds{
			Low:      5,
			Medium:   10,
			High:     15,
			Critical: 25,
		},
		TodoPatterns:   []string{"TODO", "FIXME", "HACK", "XXX", "TEMP"},
		ExcludeGlobs:   []string{},
		MaxFilesToScan: 5000,
		Audit: AuditConfig{
			Enabled:  true,
			Command:  []string{"npm", "audit", "--json"},
			Manifest: "package.json",
			Timeout:  10 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".debtmap/cache",
			TTL:     24 * 7,
		},
		History: HistoryConfig{
			Path: ".debtmap/history.db",
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Clone returns a deep copy so callers can adjust a config per scan.
func (c *Config) Clone() *Config {
	out := *c
	out.TodoPatterns = append([]string(nil), c.TodoPatterns...)
	out.ExcludeGlobs = append([]string(nil), c.ExcludeGlobs...)
	out.Audit.Command = append([]string(nil), c.Audit.Command...)
	return &out
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match ErrInvalidConfig.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate checks thresholds and limits.
func (c *Config) Validate() error {
	t := c.ComplexityThresholds
	switch {
	case c.StaleDaysThreshold < 0:
		return &ValidationError{"stale_days_threshold", "must not be negative"}
	case c.StaleImportThreshold < 1:
		return &ValidationError{"stale_import_threshold", "must be at least 1"}
	case t.Low < 1:
		return &ValidationError{"complexity_thresholds.low", "must be at least 1"}
	case !(t.Low < t.Medium && t.Medium < t.High && t.High < t.Critical):
		return &ValidationError{"complexity_thresholds", fmt.Sprintf("must be strictly increasing (got %d/%d/%d/%d)", t.Low, t.Medium, t.High, t.Critical)}
	case len(c.TodoPatterns) == 0:
		return &ValidationError{"todo_patterns", "at least one pattern is required"}
	case c.MaxFilesToScan < 1:
		return &ValidationError{"max_files_to_scan", "must be at least 1"}
	case c.Audit.Enabled && len(c.Audit.Command) == 0:
		return &ValidationError{"audit.command", "must not be empty when audit is enabled"}
	case c.Audit.Timeout < 0:
		return &ValidationError{"audit.timeout", "must not be negative"}
	}
	for _, p := range c.TodoPatterns {
		if strings.TrimSpace(p) == "" {
			return &ValidationError{"todo_patterns", "patterns must not be blank"}
		}
	}
	return nil
}

// Load loads configuration from a file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configNames are searched in order inside root and root/.debtmap.
var configNames = []string{
	"debtmap.toml",
	"debtmap.yaml",
	"debtmap.yml",
	"debtmap.json",
	".debtmap.toml",
	".debtmap.yaml",
	".debtmap.yml",
	".debtmap.json",
}

// LoadResult reports which file, if any, produced a config.
type LoadResult struct {
	Config *Config
	Source string // empty when defaults were used
}

// LoadOrDefault loads root/.env into the process environment, then the first
// config file found under root, falling back to defaults plus environment
// overrides. A config file that exists but fails to load is an error.
func LoadOrDefault(root string) (*LoadResult, error) {
	if err := LoadDotEnv(root); err != nil {
		return nil, err
	}

	for _, dir := range []string{root, filepath.Join(root, ".debtmap")} {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}

	k := koanf.New(".")
	cfg := DefaultConfig()
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg}, nil
}

// LoadDotEnv loads root/.env without overriding variables that are already set.
// A missing file is not an error; a malformed one is.
func LoadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadEnv(k *koanf.Koanf) error {
	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	return nil
}
