// Package summarizer sends extracted page text, and for image-heavy pages a
// few images, to an OpenAI-compatible chat model and returns the summary.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ryosukesatoh/raindrop-digest/internal/retry"
	"github.com/ryosukesatoh/raindrop-digest/internal/textutil"
)

const (
	DefaultModel              = "gpt-4.1-mini"
	DefaultImageTextThreshold = 300
	DefaultMinImages          = 2
	DefaultMaxImages          = 4
	DefaultSummaryCharLimit   = 500
	DefaultRequestsPerMinute  = 20
	defaultTemperature        = 0.3
)

// chatModel is the part of llms.Model the summarizer needs.
type chatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Options configures a Summarizer. Zero values fall back to defaults.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string

	// Images are sent only when the text has at most ImageTextThreshold
	// runes and at least MinImages images are available.
	ImageTextThreshold int
	MinImages          int
	MaxImages          int

	SummaryCharLimit  int
	RequestsPerMinute int
	Timeout           time.Duration
	Retry             retry.Config
	Logger            *zap.Logger
}

// Summarizer produces one summary per call.
type Summarizer struct {
	model        chatModel
	modelName    string
	opts         Options
	limiter      *rate.Limiter
	retryConfig  retry.Config
	systemPrompt string
	logger       *zap.Logger
}

// New builds a Summarizer backed by the OpenAI chat completions API.
func New(opts Options) (*Summarizer, error) {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	opts.Model = strings.TrimSpace(opts.Model)
	if opts.APIKey == "" {
		return nil, errors.New("summarizer: API key must be provided")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	clientOpts := []openai.Option{
		openai.WithToken(opts.APIKey),
		openai.WithModel(opts.Model),
		openai.WithHTTPClient(&classifyingDoer{client: &http.Client{Timeout: opts.Timeout}}),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}
	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("summarizer: create client: %w", err)
	}
	return newWithModel(llm, opts), nil
}

func newWithModel(model chatModel, opts Options) *Summarizer {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.ImageTextThreshold <= 0 {
		opts.ImageTextThreshold = DefaultImageTextThreshold
	}
	if opts.MinImages <= 0 {
		opts.MinImages = DefaultMinImages
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = DefaultMaxImages
	}
	if opts.SummaryCharLimit <= 0 {
		opts.SummaryCharLimit = DefaultSummaryCharLimit
	}
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	opts.Retry.ShouldRetry = func(err error) bool {
		return classify(err).Temporary()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	return &Summarizer{
		model:        model,
		modelName:    opts.Model,
		opts:         opts,
		limiter:      rate.NewLimiter(limit, 1),
		retryConfig:  opts.Retry,
		systemPrompt: systemPrompt(opts.SummaryCharLimit),
		logger:       opts.Logger,
	}
}

// Model returns the model name requests are sent to.
func (s *Summarizer) Model() string {
	return s.modelName
}

// ShouldIncludeImages reports whether images accompany text: short text with
// enough images suggests a visual-first page.
func (s *Summarizer) ShouldIncludeImages(text string, images []string) bool {
	return textutil.Len(text) <= s.opts.ImageTextThreshold && len(images) >= s.opts.MinImages
}

// Summarize returns the trimmed summary of text. Failures are always *Error.
func (s *Summarizer) Summarize(ctx context.Context, text string, images []string) (string, error) {
	include := s.ShouldIncludeImages(text, images)
	messages := s.buildMessages(text, images, include)

	var resp *llms.ContentResponse
	attempts := 0
	err := retry.WithBackoff(ctx, s.retryConfig, func(ctx context.Context) error {
		attempts++
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		resp, err = s.model.GenerateContent(ctx, messages, llms.WithTemperature(defaultTemperature))
		if err != nil {
			s.logger.Warn("Summary request failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
		}
		return err
	})
	if err != nil {
		return "", classify(err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{Kind: KindGeneric, Err: errors.New("response has no choices")}
	}
	content := strings.TrimSpace(resp.Choices[0].Content)
	if content == "" {
		return "", &Error{Kind: KindGeneric, Err: errors.New("model returned empty content")}
	}

	s.logger.Info("Summary generated",
		zap.Int("chars", textutil.Len(content)),
		zap.Bool("with_images", include),
		zap.Int("attempts", attempts))
	return content, nil
}

func (s *Summarizer) buildMessages(text string, images []string, includeImages bool) []llms.MessageContent {
	parts := []llms.ContentPart{llms.TextContent{Text: text}}
	if includeImages {
		for i, img := range images {
			if i == s.opts.MaxImages {
				break
			}
			parts = append(parts, llms.ImageURLContent{URL: img})
		}
	}
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}
}
