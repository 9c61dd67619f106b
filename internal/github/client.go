// Package github runs GitHub code searches and collects the repositories
// whose files match.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackwell-systems/pinscan/internal/config"
	"github.com/blackwell-systems/pinscan/internal/logger"
)

// Sentinel errors.
var (
	// ErrRateLimited marks a 403 or 429 response.
	ErrRateLimited = errors.New("github rate limit hit")
	// ErrStatus marks any other non-200 response.
	ErrStatus = errors.New("github API error")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock waits between requests.
type Clock interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats counts requests made by a Client.
type Stats struct {
	Searches      int
	Pages         int
	RateLimitHits int
}

// Client searches GitHub code. HTTP and Clock may be replaced before the
// first search.
type Client struct {
	HTTP  Doer
	Clock Clock

	baseURL             string
	token               string
	perPage             int
	pageDelay           time.Duration
	rateLimitCooldown   time.Duration
	maxRateLimitRetries int
	log                 *logger.Logger
	stats               Stats
}

// NewClient creates a Client from cfg, authenticating with token.
func NewClient(cfg *config.GitHubConfig, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	perPage := cfg.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}
	return &Client{
		HTTP:                &http.Client{Timeout: cfg.Timeout},
		Clock:               realClock{},
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		token:               token,
		perPage:             perPage,
		pageDelay:           cfg.PageDelay,
		rateLimitCooldown:   cfg.RateLimitCooldown,
		maxRateLimitRetries: cfg.MaxRateLimitRetries,
		log:                 log,
	}
}

// Stats returns the counters accumulated since the client was created.
func (c *Client) Stats() Stats {
	return c.stats
}

type codeSearchResponse struct {
	TotalCount        int  `json:"total_count"`
	IncompleteResults bool `json:"incomplete_results"`
	Items             []struct {
		Repository struct {
			FullName string `json:"full_name"`
		} `json:"repository"`
	} `json:"items"`
}

// page is one decoded response.
type page struct {
	repos []string
	next  string
	total int
}

// searchURL builds the first page URL for an exact phrase restricted to
// files named filename.
func (c *Client) searchURL(phrase, filename string) string {
	q := `"` + phrase + `" filename:` + filename
	return fmt.Sprintf("%s/search/code?q=%s&per_page=%d", c.baseURL, url.QueryEscape(q), c.perPage)
}

// setHeaders sets common headers for GitHub API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var data codeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	p := &page{
		next:  parseLink(resp.Header.Get("Link"))["next"],
		total: data.TotalCount,
	}
	for _, item := range data.Items {
		if name := item.Repository.FullName; name != "" {
			p.repos = append(p.repos, name)
		}
	}
	return p, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w (%d): %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
