package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, EngineSQLite, cfg.Database.Engine)
	assert.Equal(t, FinderRipgrep, cfg.Scan.Finder)
	assert.Equal(t, "pyproject.toml", cfg.GitHub.Filename)
	assert.Equal(t, 100, cfg.GitHub.PerPage)
	assert.Equal(t, 6*time.Second, cfg.GitHub.PageDelay)
	assert.Equal(t, 60*time.Second, cfg.GitHub.RateLimitCooldown)
	assert.Greater(t, cfg.GitHub.RateLimitCooldown, cfg.GitHub.PageDelay)
	assert.NoError(t, cfg.Validate())
}

func TestDir_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "pinscan"), dir)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  engine: json
  path: /tmp/pinscan.json
corpus:
  path: /src/nixpkgs
github:
  page_delay: 1s
  rate_limit_cooldown: 5s
  per_page: 50
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EngineJSON, cfg.Database.Engine)
	assert.Equal(t, "/tmp/pinscan.json", cfg.Database.Path)
	assert.Equal(t, "/src/nixpkgs", cfg.Corpus.Path)
	assert.Equal(t, time.Second, cfg.GitHub.PageDelay)
	assert.Equal(t, 5*time.Second, cfg.GitHub.RateLimitCooldown)
	assert.Equal(t, 50, cfg.GitHub.PerPage)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "pyproject.toml", cfg.GitHub.Filename)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, EngineSQLite, cfg.Database.Engine)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PINSCAN_GITHUB_PAGE_DELAY", "10s")
	t.Setenv("PINSCAN_DATABASE_ENGINE", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.GitHub.PageDelay)
	assert.Equal(t, EngineJSON, cfg.Database.Engine)
}

func TestLoadToken(t *testing.T) {
	// Run from an empty dir so a stray .env does not leak in.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "set", value: "ghp_abc", want: "ghp_abc"},
		{name: "trimmed", value: "  ghp_abc \n", want: "ghp_abc"},
		{name: "empty", value: "", wantErr: true},
		{name: "placeholder", value: "your_github_token_here", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GITHUB_TOKEN", tt.value)
			got, err := LoadToken()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMissingToken))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadToken_DotEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GITHUB_TOKEN=from-dotenv\n"), 0600))
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	// godotenv never overrides variables that are already set.
	t.Setenv("GITHUB_TOKEN", "")
	os.Unsetenv("GITHUB_TOKEN")

	got, err := LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", got)
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyOverrides(Overrides{
		DBPath:     "/tmp/x.db",
		CorpusPath: "/tmp/corpus",
		LogLevel:   "warn",
	})

	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "/tmp/corpus", cfg.Corpus.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, EngineSQLite, cfg.Database.Engine, "empty override must not apply")
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".pinscan/x.db"), expandHome("~/.pinscan/x.db"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "~user/path", expandHome("~user/path"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{name: "bad engine", mutate: func(c *Config) { c.Database.Engine = "mongo" }, field: "database.engine"},
		{name: "empty db path", mutate: func(c *Config) { c.Database.Path = "" }, field: "database.path"},
		{name: "bad finder", mutate: func(c *Config) { c.Scan.Finder = "grep" }, field: "scan.finder"},
		{name: "empty filename", mutate: func(c *Config) { c.GitHub.Filename = " " }, field: "github.filename"},
		{name: "zero per_page", mutate: func(c *Config) { c.GitHub.PerPage = 0 }, field: "github.per_page"},
		{name: "negative delay", mutate: func(c *Config) { c.GitHub.PageDelay = -time.Second }, field: "github.page_delay"},
		{name: "negative retries", mutate: func(c *Config) { c.GitHub.MaxRateLimitRetries = -1 }, field: "github.max_rate_limit_retries"},
		{name: "negative debounce", mutate: func(c *Config) { c.Watch.Debounce = -1 }, field: "watch.debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.field), "error %q should mention %s", err, tt.field)
		})
	}
}

func TestValidate_ClampsPerPage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GitHub.PerPage = 500

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.GitHub.PerPage)
}
