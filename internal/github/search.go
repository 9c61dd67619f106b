package github

import (
	"context"
	"errors"
	"sort"
)

// RepoSet is a set of "owner/repo" identifiers.
type RepoSet map[string]struct{}

// Add inserts names into the set.
func (s RepoSet) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Has reports whether name is in the set.
func (s RepoSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union adds every member of other to s.
func (s RepoSet) Union(other RepoSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Sorted returns the members in ascending order.
func (s RepoSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// pagination states
type state int

const (
	stateFetching state = iota
	stateRateLimited
	stateDone
)

func (s state) String() string {
	switch s {
	case stateFetching:
		return "fetching"
	case stateRateLimited:
		return "rate_limited"
	default:
		return "done"
	}
}

// Search returns the repositories containing phrase in a file named
// filename, following every "next" page.
//
// Rate-limit responses pause for the cooldown and retry the same page.
// Any other failure ends pagination and the repositories collected so far
// are returned with a nil error. Only cancellation of ctx is returned as an
// error.
func (c *Client) Search(ctx context.Context, phrase, filename string) (RepoSet, error) {
	log := c.log.WithQuery(phrase)
	c.stats.Searches++

	repos := make(RepoSet)
	url := c.searchURL(phrase, filename)
	current := stateFetching
	retries := 0
	pages := 0

	for current != stateDone {
		switch current {
		case stateFetching:
			p, err := c.fetchPage(ctx, url)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			switch {
			case errors.Is(err, ErrRateLimited):
				current = stateRateLimited
			case err != nil:
				log.Warnw("search stopped early", "url", url, "pages", pages, "error", err)
				current = stateDone
			default:
				retries = 0
				pages++
				c.stats.Pages++
				repos.Add(p.repos...)
				log.Debugw("fetched page", "page", pages, "items", len(p.repos), "total_count", p.total)

				if p.next == "" {
					current = stateDone
					break
				}
				url = p.next
				if err := c.Clock.Sleep(ctx, c.pageDelay); err != nil {
					return nil, err
				}
			}

		case stateRateLimited:
			c.stats.RateLimitHits++
			retries++
			if c.maxRateLimitRetries > 0 && retries > c.maxRateLimitRetries {
				log.Warnw("giving up after repeated rate limiting", "url", url, "retries", retries-1)
				current = stateDone
				break
			}
			log.Warnw("rate limit hit, waiting", "url", url, "cooldown", c.rateLimitCooldown, "attempt", retries)
			if err := c.Clock.Sleep(ctx, c.rateLimitCooldown); err != nil {
				return nil, err
			}
			current = stateFetching
		}
	}

	log.Infow("search complete", "pages", pages, "repositories", len(repos))
	return repos, nil
}
