// Package output provides terminal output utilities for pinscan.
//
// This package includes:
//   - Table rendering for tracked packages
//   - Progress bars for scanning corpus files
//   - Spinners for remote searches
//
// Tables use box-drawing rules and ANSI color codes when stdout is a
// terminal. Progress indicators are safe for use from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/pinscan/internal/store"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// now is replaced in tests.
var now = time.Now

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderStatusTable renders one row per tracked package.
func RenderStatusTable(packages []*store.PackageSummary) string {
	if len(packages) == 0 {
		return "No packages tracked. Run 'pinscan scan <package>' first.\n"
	}

	sorted := make([]*store.PackageSummary, len(packages))
	copy(sorted, packages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-7s %-15s %-6s %-15s\n",
		"Package", "Repos", "Scanned", "Runs", "Last Search"))
	sb.WriteString(strings.Repeat("─", 71))
	sb.WriteString("\n")

	for _, p := range sorted {
		lastSearch := colorize(colorGray, fmt.Sprintf("%-15s", "never"))
		if p.LastSearchAt != nil {
			lastSearch = fmt.Sprintf("%-15s", formatRelativeTime(*p.LastSearchAt))
		}

		repos := fmt.Sprintf("%-7d", p.RepoCount)
		if p.RepoCount == 0 {
			repos = colorize(colorYellow, repos)
		}

		sb.WriteString(fmt.Sprintf("%-24s %s %-15s %-6d %s\n",
			truncate(p.Name, 24),
			repos,
			formatRelativeTime(p.ScannedAt),
			p.RunCount,
			lastSearch))
	}

	return sb.String()
}

// RenderScanSummary renders the one-line outcome of a scan.
func RenderScanSummary(pkg string, files, stored int, changed bool) string {
	state := colorize(colorGray, "unchanged")
	if changed {
		state = colorize(colorGreen, "updated")
	}
	return fmt.Sprintf("Scanned %s: %d %s, %d %s (%s)\n",
		pkg, files, plural(files, "file", "files"), stored, plural(stored, "repository", "repositories"), state)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return ago(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return ago(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return ago(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return ago(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return ago(int(diff.Hours()/24/30), "month")
	default:
		return ago(int(diff.Hours()/24/365), "year")
	}
}

func ago(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
