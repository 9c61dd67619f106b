package finder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackwell-systems/pinscan/internal/logger"
)

// Ripgrep finds files by running rg. Include and Exclude are passed to rg
// as --glob patterns, matched relative to the root like Walk's.
type Ripgrep struct {
	// Binary is the executable name or path. Defaults to "rg".
	Binary  string
	Include []string
	Exclude []string
	log     *logger.Logger
}

// NewRipgrep returns a Ripgrep finder using rg from PATH.
func NewRipgrep(include, exclude []string, log *logger.Logger) *Ripgrep {
	return &Ripgrep{Binary: "rg", Include: include, Exclude: exclude, log: log}
}

// args builds `rg -l --ignore-case --fixed-strings [--glob ...] -- term root`.
func (r *Ripgrep) args(absRoot, term string) []string {
	args := []string{"-l", "--ignore-case", "--fixed-strings"}
	for _, p := range r.Include {
		args = append(args, "--glob", p)
	}
	for _, p := range r.Exclude {
		args = append(args, "--glob", "!"+p)
	}
	return append(args, "--", term, absRoot)
}

// Find runs rg over root. Exit status 1 means no match. Exit status 2 with
// output means some files could not be read; those are logged and the
// matches found are returned.
func (r *Ripgrep) Find(ctx context.Context, root, term string) ([]string, error) {
	bin := r.Binary
	if bin == "" {
		bin = "rg"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, bin)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, r.args(absRoot, term)...)
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			switch {
			case exitErr.ExitCode() == 1:
				return []string{}, nil
			case exitErr.ExitCode() == 2 && len(bytes.TrimSpace(output)) > 0:
				log := r.log
				if log == nil {
					log = logger.Nop()
				}
				log.Warnw("rg skipped unreadable files", "root", absRoot, "stderr", strings.TrimSpace(stderr.String()))
				return parsePaths(output, absRoot), nil
			}
		}
		return nil, fmt.Errorf("rg failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return parsePaths(output, absRoot), nil
}

// parsePaths turns rg's newline separated output into sorted absolute paths.
func parsePaths(output []byte, absRoot string) []string {
	paths := []string{}
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(absRoot, line)
		}
		paths = append(paths, filepath.Clean(line))
	}
	sort.Strings(paths)
	return paths
}
