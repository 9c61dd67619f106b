// Package config provides configuration structures and loading for pinscan.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Corpus   CorpusConfig   `yaml:"corpus" mapstructure:"corpus"`
	Scan     ScanConfig     `yaml:"scan" mapstructure:"scan"`
	GitHub   GitHubConfig   `yaml:"github" mapstructure:"github"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig selects the persistence engine and its location.
type DatabaseConfig struct {
	Engine string `yaml:"engine" mapstructure:"engine"` // sqlite or json
	Path   string `yaml:"path" mapstructure:"path"`
}

// CorpusConfig points at the package-definition tree to scan.
type CorpusConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ScanConfig controls how candidate files are located.
type ScanConfig struct {
	Finder  string   `yaml:"finder" mapstructure:"finder"` // ripgrep or native
	Include []string `yaml:"include" mapstructure:"include"`
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

// GitHubConfig holds code search settings. The token is not part of the
// file format; it only comes from GITHUB_TOKEN.
type GitHubConfig struct {
	BaseURL             string        `yaml:"base_url" mapstructure:"base_url"`
	Filename            string        `yaml:"filename" mapstructure:"filename"`
	PerPage             int           `yaml:"per_page" mapstructure:"per_page"`
	PageDelay           time.Duration `yaml:"page_delay" mapstructure:"page_delay"`
	RateLimitCooldown   time.Duration `yaml:"rate_limit_cooldown" mapstructure:"rate_limit_cooldown"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries" mapstructure:"max_rate_limit_retries"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Token               string        `yaml:"-" mapstructure:"-"`
}

// WatchConfig controls the corpus watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// Engine and finder names accepted by Validate.
const (
	EngineSQLite = "sqlite"
	EngineJSON   = "json"

	FinderRipgrep = "ripgrep"
	FinderNative  = "native"
)

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Engine: EngineSQLite,
			Path:   defaultDBPath(),
		},
		Corpus: CorpusConfig{
			Path: "../nixpkgs",
		},
		Scan: ScanConfig{
			Finder:  FinderRipgrep,
			Include: []string{"**/*.nix"},
			Exclude: []string{".git/**"},
		},
		GitHub: GitHubConfig{
			BaseURL:             "https://api.github.com",
			Filename:            "pyproject.toml",
			PerPage:             100,
			PageDelay:           6 * time.Second, // search API allows 10 requests/minute
			RateLimitCooldown:   60 * time.Second,
			MaxRateLimitRetries: 10,
			Timeout:             30 * time.Second,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Dir returns the pinscan config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/pinscan if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pinscan"), nil
}

// defaultDBPath returns ~/.pinscan/pinscan.db, or a relative fallback when
// the home directory cannot be determined.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pinscan.db"
	}
	return filepath.Join(home, ".pinscan", "pinscan.db")
}
