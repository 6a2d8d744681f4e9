package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// WebFetch is a tool that fetches a web page and returns its readable text,
// stripped of markup and scripts.
type WebFetch struct {
	Client    *http.Client
	UserAgent string
	MaxChars  int
	policy    *bluemonday.Policy
}

type WebFetchOption func(*WebFetch)

// WithWebFetchClient sets the HTTP client used for fetching.
func WithWebFetchClient(client *http.Client) WebFetchOption {
	return func(w *WebFetch) {
		w.Client = client
	}
}

// WithWebFetchUserAgent sets the User-Agent header.
func WithWebFetchUserAgent(ua string) WebFetchOption {
	return func(w *WebFetch) {
		w.UserAgent = ua
	}
}

// WithWebFetchMaxChars truncates the extracted text to at most n characters.
func WithWebFetchMaxChars(n int) WebFetchOption {
	return func(w *WebFetch) {
		w.MaxChars = n
	}
}

// NewWebFetch creates a new WebFetch tool.
func NewWebFetch(opts ...WebFetchOption) *WebFetch {
	w := &WebFetch{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "agentgraph-webfetch/1.0",
		MaxChars:  8192,
		policy:    bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the tool name.
func (w *WebFetch) Name() string {
	return "web_fetch"
}

// Execute fetches the URL given as args (a string) and returns the page's
// sanitized text content.
func (w *WebFetch) Execute(ctx context.Context, args any) (any, error) {
	url, ok := args.(string)
	if !ok {
		return nil, fmt.Errorf("web_fetch expects a URL string, got %T", args)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", url, err)
	}
	req.Header.Set("User-Agent", w.UserAgent)

	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}
	doc.Find("script, style, noscript").Remove()

	text := w.policy.Sanitize(doc.Find("body").Text())
	text = strings.Join(strings.Fields(text), " ")
	if w.MaxChars > 0 && len(text) > w.MaxChars {
		text = text[:w.MaxChars]
	}
	return text, nil
}
