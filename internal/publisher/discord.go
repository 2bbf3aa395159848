package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ryosukesatoh/raindrop-digest/internal/digest"
	"github.com/ryosukesatoh/raindrop-digest/internal/retry"
	"github.com/ryosukesatoh/raindrop-digest/internal/textutil"
)

const (
	colorSuccess = 0x57F287
	colorFailed  = 0xED4245
	colorInfo    = 0x5865F2
)

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordPublisher posts the digest to a Discord channel via webhook.
type DiscordPublisher struct {
	webhookURL  string
	client      *http.Client
	retryConfig retry.Config
	batchDelay  time.Duration
}

// NewDiscordPublisher creates a new DiscordPublisher.
func NewDiscordPublisher(webhookURL string) *DiscordPublisher {
	return &DiscordPublisher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		retryConfig: retry.Config{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
		},
		batchDelay: 500 * time.Millisecond,
	}
}

// Publish sends the digest to Discord as a series of rich embeds.
func (d *DiscordPublisher) Publish(ctx context.Context, msg Message) error {
	batches := batchEmbeds(buildEmbeds(msg))

	for i, batch := range batches {
		err := retry.WithBackoff(ctx, d.retryConfig, func(ctx context.Context) error {
			return d.sendWebhook(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("discord: failed to send batch %d: %w", i+1, err)
		}

		// Delay between batches to avoid rate limits.
		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.batchDelay):
			}
		}
	}
	return nil
}

// buildEmbeds creates the overview embed and one embed per outcome.
func buildEmbeds(msg Message) []discordEmbed {
	embeds := make([]discordEmbed, 0, len(msg.Outcomes)+1)

	ok, failed := digest.Counts(msg.Outcomes)
	overview := fmt.Sprintf("%d summarized, %d failed.", ok, failed)
	if len(msg.Outcomes) == 0 {
		overview = digest.NothingToReport
	}
	embeds = append(embeds, discordEmbed{
		Title:       truncate(msg.Subject, 256),
		Description: overview,
		Color:       colorInfo,
		Timestamp:   msg.Date.Format(time.RFC3339),
	})

	for i, o := range msg.Outcomes {
		e := discordEmbed{
			Title: truncate(fmt.Sprintf("%d. %s", i+1, o.Item.Title), 256),
			URL:   o.Item.Link,
		}
		if o.IsSuccess() {
			e.Description = truncate(o.Summary, 4096)
			e.Color = colorSuccess
			if o.Author != "" {
				e.Footer = &discordEmbedFooter{Text: truncate(o.Author, 2048)}
			}
		} else {
			e.Description = truncate(fmt.Sprintf("%s\n(error: %s)", digest.ApologyText, o.Error), 4096)
			e.Color = colorFailed
		}
		embeds = append(embeds, e)
	}

	return embeds
}

// batchEmbeds splits embeds into batches respecting Discord limits:
// max 10 embeds per message, max 6000 total characters per message.
func batchEmbeds(embeds []discordEmbed) [][]discordEmbed {
	var batches [][]discordEmbed
	var current []discordEmbed
	currentChars := 0

	for _, e := range embeds {
		ec := embedCharCount(e)

		if len(current) > 0 && (len(current) >= 10 || currentChars+ec > 6000) {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}

		current = append(current, e)
		currentChars += ec
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}

// sendWebhook posts a batch of embeds to the Discord webhook.
func (d *DiscordPublisher) sendWebhook(ctx context.Context, embeds []discordEmbed) error {
	body, err := json.Marshal(discordWebhookPayload{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// truncate shortens s to max runes, ending with an ellipsis when cut.
func truncate(s string, max int) string {
	if textutil.Len(s) <= max {
		return s
	}
	return textutil.Trim(s, max-1) + "…"
}

// embedCharCount returns the total character count of an embed for batching purposes.
func embedCharCount(e discordEmbed) int {
	n := textutil.Len(e.Title) + textutil.Len(e.Description)
	if e.Footer != nil {
		n += textutil.Len(e.Footer.Text)
	}
	return n
}
