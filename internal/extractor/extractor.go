// Package extractor turns a bookmarked URL into bounded plain text. The host
// decides the strategy: video pages yield title and description, social posts
// yield their og:description, anything else goes through readability.
package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/ryosukesatoh/raindrop-digest/internal/textutil"
)

const (
	DefaultUserAgent = "RaindropDigest/0.1 (+https://github.com/ryosukesatoh/raindrop-digest)"
	DefaultMaxChars  = 8000
	maxBodyBytes     = 5 << 20
	maxImages        = 8
)

// Source classifies a URL by its host.
type Source int

const (
	SourceWeb Source = iota
	SourceVideo
	SourceSocial
)

func (s Source) String() string {
	switch s {
	case SourceVideo:
		return "youtube"
	case SourceSocial:
		return "x"
	default:
		return "web"
	}
}

// Content is the text extracted from one page.
type Content struct {
	Text   string
	Source Source
	// Length is the rune count of Text.
	Length int
	// Images are absolute image URLs found on the page, og:image first.
	Images []string
}

// Error is returned for every extraction failure, including HTTP errors.
type Error struct {
	URL    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extractor: %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("extractor: %s: %s", e.URL, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures an Extractor. Zero values fall back to defaults.
type Options struct {
	MaxChars  int
	UserAgent string
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Extractor fetches pages and extracts their text.
type Extractor struct {
	client    *http.Client
	maxChars  int
	userAgent string
	logger    *zap.Logger
}

func New(opts Options) *Extractor {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{
		client:    &http.Client{Timeout: opts.Timeout},
		maxChars:  opts.MaxChars,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// DetectSource classifies rawURL by hostname.
func DetectSource(rawURL string) Source {
	u, err := url.Parse(rawURL)
	if err != nil {
		return SourceWeb
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "youtube.com"), strings.Contains(host, "youtu.be"):
		return SourceVideo
	case hostIs(host, "x.com"), hostIs(host, "twitter.com"):
		return SourceSocial
	default:
		return SourceWeb
	}
}

// hostIs reports whether host is domain or one of its subdomains.
func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Extract fetches rawURL and returns its text, never empty and at most
// MaxChars runes long.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Content, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return nil, &Error{URL: rawURL, Reason: "invalid URL", Err: err}
	}

	source := DetectSource(rawURL)
	html, err := e.fetchHTML(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	page, err := parse(html, pageURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Reason: "parse html", Err: err}
	}

	var text string
	switch source {
	case SourceVideo:
		text = page.videoText()
	case SourceSocial:
		if text = page.socialText(); text == "" {
			return nil, &Error{URL: rawURL, Reason: "failed to extract social post content"}
		}
	default:
		text = page.readableText()
	}

	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, &Error{URL: rawURL, Reason: "extracted text is empty"}
	}
	trimmed := textutil.Trim(cleaned, e.maxChars)

	content := &Content{
		Text:   trimmed,
		Source: source,
		Length: textutil.Len(trimmed),
		Images: page.images(maxImages),
	}
	e.logger.Info("Extracted content",
		zap.String("url", rawURL),
		zap.Stringer("source", source),
		zap.Int("chars", content.Length),
		zap.Int("images", len(content.Images)))
	return content, nil
}

func (e *Extractor) fetchHTML(ctx context.Context, rawURL string) (string, error) {
	e.logger.Debug("Fetching URL", zap.String("url", rawURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "HTTP fetch failed", Err: err}
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "HTTP fetch failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{URL: rawURL, Reason: fmt.Sprintf("HTTP fetch failed: unexpected status %d", resp.StatusCode)}
	}

	// Decode to UTF-8 using the Content-Type header or the page's <meta charset>.
	utf8Body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "unsupported charset", Err: err}
	}
	body, err := io.ReadAll(utf8Body)
	if err != nil {
		return "", &Error{URL: rawURL, Reason: "HTTP fetch failed", Err: err}
	}
	return string(body), nil
}
