package tools

// websearch.go implements the web_search executor against DuckDuckGo's HTML
// endpoint: fetch with retry, scrape the result list, convert snippets to
// Markdown, cache the formatted digest. No API key required, which suits a
// self-hosted assistant.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/mkoriyama/Akari/common/retry"
	"github.com/mkoriyama/Akari/internal/akari/store"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	defaultSearchTimeout  = 15 * time.Second
	searchUserAgent       = "Mozilla/5.0 (compatible; AkariBot/1.0)"
	maxResponseBytes      = 2 << 20 // 2MB is plenty for a result page
)

// DefaultResultLimit caps how many results end up in the digest.
const DefaultResultLimit = 5

// DefaultCacheTTL is how long a formatted digest stays fresh.
const DefaultCacheTTL = time.Hour

// WebSearchConfig tunes the executor; zero values select the defaults.
type WebSearchConfig struct {
	Endpoint string
	Limit    int
	CacheTTL time.Duration
	Timeout  time.Duration
}

// WebSearch implements the web_search tool.
type WebSearch struct {
	store    *store.Store // nil disables caching
	client   *http.Client
	conv     *md.Converter
	endpoint string
	limit    int
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewWebSearch returns a web search executor. st may be nil to run without
// a cache.
func NewWebSearch(st *store.Store, cfg WebSearchConfig, logger *slog.Logger) *WebSearch {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultSearchEndpoint
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultResultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearch{
		store:    st,
		client:   &http.Client{Timeout: cfg.Timeout},
		conv:     md.NewConverter("", true, nil),
		endpoint: cfg.Endpoint,
		limit:    cfg.Limit,
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// Run implements the web_search tool.
func (w *WebSearch) Run(ctx context.Context, userID string, args map[string]string) (string, error) {
	query := strings.TrimSpace(args["query"])

	if w.store != nil {
		cached, ok, err := w.store.CachedSearch(ctx, query, w.cacheTTL)
		switch {
		case err != nil:
			w.logger.Warn("search cache read failed", "error", err)
		case ok:
			w.logger.Debug("search cache hit", "query", query)
			return cached, nil
		}
	}

	body, err := w.fetch(ctx, query)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	results, err := w.parse(body)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("🌐 No results for **%s**.", query), nil
	}

	formatted := formatResults(query, results)
	if w.store != nil {
		if err := w.store.PutSearchCache(ctx, query, formatted); err != nil {
			w.logger.Warn("search cache write failed", "error", err)
		}
	}
	return formatted, nil
}

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// retryableFetch retries network failures, throttling, and server errors;
// other HTTP statuses will not improve on a second attempt.
func retryableFetch(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

func (w *WebSearch) fetch(ctx context.Context, query string) ([]byte, error) {
	var body []byte
	policy := retry.Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		CapDelay:  5 * time.Second,
		Retryable: retryableFetch,
	}
	err := policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			w.endpoint+"?q="+url.QueryEscape(query), nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", searchUserAgent)
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &httpStatusError{code: resp.StatusCode}
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return err
	})
	return body, err
}

type searchResult struct {
	Title   string
	URL     string
	Snippet string // already Markdown
}

// parse scrapes the DuckDuckGo result list: each div.result carries a title
// link (a.result__a, href is a redirect wrapping the real URL) and a
// snippet whose HTML is converted to Markdown.
func (w *WebSearch) parse(body []byte) ([]searchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}
	var out []searchResult
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		link := sel.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		snip := w.conv.Convert(sel.Find(".result__snippet").First())
		out = append(out, searchResult{
			Title:   title,
			URL:     decodeResultURL(href),
			Snippet: strings.Join(strings.Fields(snip), " "),
		})
		return len(out) < w.limit
	})
	return out, nil
}

// decodeResultURL unwraps DuckDuckGo's redirect links
// ("//duckduckgo.com/l/?uddg=<encoded>"). Anything unexpected passes
// through untouched.
func decodeResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func formatResults(query string, results []searchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌐 Top results for **%s**:\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **[%s](%s)**\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
