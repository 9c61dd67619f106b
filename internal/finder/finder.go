// Package finder locates corpus files that mention a search term.
package finder

import (
	"context"
	"errors"
	"fmt"

	"github.com/blackwell-systems/pinscan/internal/config"
	"github.com/blackwell-systems/pinscan/internal/logger"
)

// ErrToolNotFound is returned when the external search tool is not installed.
var ErrToolNotFound = errors.New("file search tool not found")

// Finder returns the absolute paths, sorted, of files under root whose
// content contains term, compared case-insensitively.
type Finder interface {
	Find(ctx context.Context, root, term string) ([]string, error)
}

// FromConfig builds the finder selected by cfg.Finder.
func FromConfig(cfg *config.ScanConfig, log *logger.Logger) (Finder, error) {
	switch cfg.Finder {
	case config.FinderRipgrep, "":
		return NewRipgrep(cfg.Include, cfg.Exclude, log), nil
	case config.FinderNative:
		return NewWalk(cfg.Include, cfg.Exclude, log), nil
	default:
		return nil, fmt.Errorf("unknown finder %q", cfg.Finder)
	}
}
