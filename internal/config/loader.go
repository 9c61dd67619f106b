package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingToken is returned when no usable GITHUB_TOKEN is available.
var ErrMissingToken = errors.New("GITHUB_TOKEN not found; set it in the environment or a .env file")

// placeholderToken is the value shipped in example .env files.
const placeholderToken = "your_github_token_here"

// Load reads configuration from the specified file path. An empty path
// falls back to {Dir()}/config.yaml, and a missing default file is not an
// error. Values can be overridden with PINSCAN_* environment variables,
// e.g. PINSCAN_GITHUB_PAGE_DELAY=10s.
func Load(configPath string) (*Config, error) {
	v := newViper()

	explicit := configPath != ""
	if !explicit {
		dir, err := Dir()
		if err == nil {
			configPath = filepath.Join(dir, "config.yaml")
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil || explicit {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Corpus.Path = expandHome(cfg.Corpus.Path)

	return cfg, nil
}

// newViper returns a Viper instance with every known key registered as a
// default so that environment overrides apply even without a config file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PINSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("database.engine", d.Database.Engine)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("corpus.path", d.Corpus.Path)
	v.SetDefault("scan.finder", d.Scan.Finder)
	v.SetDefault("scan.include", d.Scan.Include)
	v.SetDefault("scan.exclude", d.Scan.Exclude)
	v.SetDefault("github.base_url", d.GitHub.BaseURL)
	v.SetDefault("github.filename", d.GitHub.Filename)
	v.SetDefault("github.per_page", d.GitHub.PerPage)
	v.SetDefault("github.page_delay", d.GitHub.PageDelay)
	v.SetDefault("github.rate_limit_cooldown", d.GitHub.RateLimitCooldown)
	v.SetDefault("github.max_rate_limit_retries", d.GitHub.MaxRateLimitRetries)
	v.SetDefault("github.timeout", d.GitHub.Timeout)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	return v
}

// LoadToken loads .env from the working directory (if present) and returns
// GITHUB_TOKEN. The placeholder value from example files counts as missing.
func LoadToken() (string, error) {
	_ = godotenv.Load()

	token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	if token == "" || token == placeholderToken {
		return "", ErrMissingToken
	}
	return token, nil
}

// Overrides contains CLI flag values that take precedence over the file.
type Overrides struct {
	DBPath     string
	Engine     string
	CorpusPath string
	LogLevel   string
	LogFormat  string
}

// ApplyOverrides applies CLI flag overrides. Only non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DBPath != "" {
		c.Database.Path = expandHome(o.DBPath)
	}
	if o.Engine != "" {
		c.Database.Engine = o.Engine
	}
	if o.CorpusPath != "" {
		c.Corpus.Path = expandHome(o.CorpusPath)
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
