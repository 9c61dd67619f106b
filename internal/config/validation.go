package config

import (
	"fmt"
	"strings"
)

// maxPerPage is the largest page size the code search API accepts.
const maxPerPage = 100

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for valid values. A per_page above
// the API maximum is clamped rather than rejected.
func (c *Config) Validate() error {
	var errs ValidationErrors

	switch c.Database.Engine {
	case EngineSQLite, EngineJSON:
	default:
		errs = append(errs, ValidationError{
			Field:   "database.engine",
			Message: fmt.Sprintf("unknown engine %q (want %s or %s)", c.Database.Engine, EngineSQLite, EngineJSON),
		})
	}
	if c.Database.Path == "" {
		errs = append(errs, ValidationError{Field: "database.path", Message: "must not be empty"})
	}

	switch c.Scan.Finder {
	case FinderRipgrep, FinderNative:
	default:
		errs = append(errs, ValidationError{
			Field:   "scan.finder",
			Message: fmt.Sprintf("unknown finder %q (want %s or %s)", c.Scan.Finder, FinderRipgrep, FinderNative),
		})
	}

	errs = append(errs, c.validateGitHub()...)

	if c.Watch.Debounce < 0 {
		errs = append(errs, ValidationError{Field: "watch.debounce", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateGitHub() ValidationErrors {
	var errs ValidationErrors
	g := &c.GitHub

	if g.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "github.base_url", Message: "must not be empty"})
	}
	if strings.TrimSpace(g.Filename) == "" {
		errs = append(errs, ValidationError{Field: "github.filename", Message: "must not be empty"})
	}
	if g.PerPage <= 0 {
		errs = append(errs, ValidationError{Field: "github.per_page", Message: "must be positive"})
	} else if g.PerPage > maxPerPage {
		g.PerPage = maxPerPage
	}
	if g.PageDelay < 0 {
		errs = append(errs, ValidationError{Field: "github.page_delay", Message: "must not be negative"})
	}
	if g.RateLimitCooldown < 0 {
		errs = append(errs, ValidationError{Field: "github.rate_limit_cooldown", Message: "must not be negative"})
	}
	if g.MaxRateLimitRetries < 0 {
		errs = append(errs, ValidationError{Field: "github.max_rate_limit_retries", Message: "must not be negative"})
	}
	if g.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "github.timeout", Message: "must not be negative"})
	}
	return errs
}
