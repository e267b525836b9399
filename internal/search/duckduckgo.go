package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DuckDuckGoEndpoint is the lite HTML interface, which is the most stable to scrape.
const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgRateLimit enforces one query per interval across all DuckDuckGo
// instances and goroutines. Research rounds fan out, so this matters.
var ddgRateLimit struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
}

func init() {
	ddgRateLimit.interval = time.Second
}

var (
	ddgLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	anyLinkPattern    = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo searches through DuckDuckGo's HTML lite interface.
type DuckDuckGo struct {
	// Endpoint defaults to DuckDuckGoEndpoint.
	Endpoint string
	client   *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo provider using client.
func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DuckDuckGo{Endpoint: DuckDuckGoEndpoint, client: client}
}

// Search scrapes the lite results page.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}
	if err := waitDuckDuckGoTurn(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)
	body := form.Encode()

	resp, err := doWithBackoff(ctx, d.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read response: %w", err)
	}
	return parseDuckDuckGoHTML(string(page)), nil
}

func waitDuckDuckGoTurn(ctx context.Context) error {
	ddgRateLimit.mu.Lock()
	defer ddgRateLimit.mu.Unlock()
	if wait := time.Until(ddgRateLimit.last.Add(ddgRateLimit.interval)); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ddgRateLimit.last = time.Now()
	return nil
}

func parseDuckDuckGoHTML(page string) []Result {
	matches := ddgLinkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = ddgLinkPatternAlt.FindAllStringSubmatch(page, -1)
	}
	snippets := ddgSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []Result
	for i, m := range matches {
		link := strings.TrimSpace(html.UnescapeString(m[1]))
		title := cleanHTML(m[2])
		if link == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}
		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
		if len(results) >= MaxResults {
			break
		}
	}

	if len(results) == 0 {
		results = fallbackParse(page)
	}
	return results
}

// fallbackParse keeps any external link with a plausible title.
func fallbackParse(page string) []Result {
	var results []Result
	seen := make(map[string]bool)
	for _, m := range anyLinkPattern.FindAllStringSubmatch(page, -1) {
		link := strings.TrimSpace(html.UnescapeString(m[1]))
		title := cleanHTML(m[2])

		if strings.Contains(link, "duckduckgo.com") ||
			strings.HasPrefix(link, "/") ||
			strings.HasPrefix(link, "#") ||
			strings.HasPrefix(link, "javascript:") {
			continue
		}
		if len(title) < 5 || seen[link] {
			continue
		}
		seen[link] = true

		results = append(results, Result{Title: title, URL: link})
		if len(results) >= MaxResults {
			break
		}
	}
	return results
}

func cleanHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}
