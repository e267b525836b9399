package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MaxResults caps the number of results any provider returns for one query.
const MaxResults = 5

// NoResultsText is the raw text rendered for an empty result set.
const NoResultsText = "No results found."

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider executes a web search.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Render formats results as blank-line separated blocks of title, URL and
// snippet so that the URLs survive into the raw text.
func Render(results []Result) string {
	if len(results) == 0 {
		return NoResultsText
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Title: ")
		b.WriteString(r.Title)
		b.WriteString("\nURL: ")
		b.WriteString(r.URL)
		if r.Snippet != "" {
			b.WriteString("\nSnippet: ")
			b.WriteString(r.Snippet)
		}
	}
	return b.String()
}

// ErrRateLimited is returned once a provider keeps answering 429 after
// maxAttempts requests.
var ErrRateLimited = errors.New("http 429")

// Retry pacing after a 429.
var (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	maxAttempts    = 4
)

// doWithBackoff sends the request built by newReq and retries on 429,
// doubling the delay each time up to maxBackoff, for at most maxAttempts
// requests.
func doWithBackoff(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	delay := initialBackoff
	for attempt := 1; ; attempt++ {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		resp.Body.Close()
		if attempt >= maxAttempts {
			return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxBackoff)
	}
}
