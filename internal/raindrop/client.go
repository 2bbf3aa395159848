// Package raindrop is a minimal client for the Raindrop.io REST API: it pages
// through a collection and writes notes and tags back to single bookmarks.
package raindrop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/raindrop-digest/internal/retry"
	"github.com/ryosukesatoh/raindrop-digest/internal/textutil"
)

const (
	DefaultBaseURL  = "https://api.raindrop.io"
	DefaultPerPage  = 50
	DefaultMaxPages = 20
)

// StatusError is returned when Raindrop answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return retry.HTTPStatusRetryable(e.StatusCode)
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL  string
	PerPage  int
	MaxPages int
	Timeout  time.Duration
	Retry    retry.Config
	Logger   *zap.Logger
}

// Client talks to the Raindrop REST API.
type Client struct {
	baseURL     string
	token       string
	perPage     int
	maxPages    int
	client      *http.Client
	retryConfig retry.Config
	logger      *zap.Logger
}

func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = shouldRetry
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		token:       token,
		perPage:     opts.PerPage,
		maxPages:    opts.MaxPages,
		client:      &http.Client{Timeout: opts.Timeout},
		retryConfig: opts.Retry,
		logger:      opts.Logger,
	}
}

// FetchUnsorted returns every item of the Unsorted collection, newest first.
func (c *Client) FetchUnsorted(ctx context.Context) ([]Item, error) {
	return c.FetchCollection(ctx, UnsortedCollectionID)
}

// FetchCollection pages through a collection until a short page is returned
// or the page limit is reached.
func (c *Client) FetchCollection(ctx context.Context, collectionID int) ([]Item, error) {
	var items []Item
	for page := 0; page < c.maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("perpage", strconv.Itoa(c.perPage))
		query.Set("sort", "-created")
		reqURL := fmt.Sprintf("%s/rest/v1/raindrops/%d?%s", c.baseURL, collectionID, query.Encode())

		var resp listResponse
		if err := c.do(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
			return nil, fmt.Errorf("raindrop: fetch page %d: %w", page, err)
		}

		for _, raw := range resp.Items {
			item, err := raw.toItem()
			if err != nil {
				return nil, fmt.Errorf("raindrop: page %d: %w", page, err)
			}
			items = append(items, item)
		}
		c.logger.Info("Fetched raindrop page",
			zap.Int("page", page),
			zap.Int("items", len(resp.Items)))

		if len(resp.Items) < c.perPage {
			break
		}
	}
	return items, nil
}

// AppendNoteAndTags appends noteAddition to the item's note and merges
// extraTags into its tags, then issues a single update. An empty addition
// leaves the note as it is.
func (c *Client) AppendNoteAndTags(ctx context.Context, item Item, noteAddition string, extraTags []string) error {
	note := item.Note
	if noteAddition != "" {
		note = textutil.AppendNote(item.Note, noteAddition)
	}
	payload := updateRequest{
		Note: note,
		Tags: MergeTags(item.Tags, extraTags),
	}

	c.logger.Info("Updating raindrop item",
		zap.Int64("id", item.ID),
		zap.Strings("tags", payload.Tags))

	reqURL := fmt.Sprintf("%s/rest/v1/raindrop/%d", c.baseURL, item.ID)
	if err := c.do(ctx, http.MethodPut, reqURL, payload, nil); err != nil {
		return fmt.Errorf("raindrop: update item %d: %w", item.ID, err)
	}
	return nil
}

// MergeTags returns the union of existing and extra, keeping first-seen order.
func MergeTags(existing, extra []string) []string {
	merged := make([]string, 0, len(existing)+len(extra))
	seen := make(map[string]bool, len(existing)+len(extra))
	for _, group := range [][]string{existing, extra} {
		for _, tag := range group {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	return merged
}

func (c *Client) do(ctx context.Context, method, reqURL string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	return retry.WithBackoff(ctx, c.retryConfig, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: textutil.Trim(string(respBody), 200)}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	})
}

// shouldRetry retries transport failures and 429/5xx answers only.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// IsNotFound reports whether err is a 404 from Raindrop.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
