package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/raindrop-digest/internal/digest"
	"github.com/ryosukesatoh/raindrop-digest/internal/extractor"
	"github.com/ryosukesatoh/raindrop-digest/internal/filter"
	"github.com/ryosukesatoh/raindrop-digest/internal/journal"
	"github.com/ryosukesatoh/raindrop-digest/internal/publisher"
	"github.com/ryosukesatoh/raindrop-digest/internal/raindrop"
	"github.com/ryosukesatoh/raindrop-digest/internal/textutil"
)

// Bookmarks is the part of the Raindrop client the runner needs.
type Bookmarks interface {
	FetchUnsorted(ctx context.Context) ([]raindrop.Item, error)
	AppendNoteAndTags(ctx context.Context, item raindrop.Item, noteAddition string, extraTags []string) error
}

type Extractor interface {
	Extract(ctx context.Context, rawURL string) (*extractor.Content, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string, images []string) (string, error)
}

// Journal records rendered digests so an undelivered one can be re-sent.
type Journal interface {
	Record(ctx context.Context, run journal.Run) (string, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	Unsent(ctx context.Context) ([]journal.Run, error)
}

// Deps are the collaborators of a run. Journal and Extras are optional.
type Deps struct {
	Bookmarks  Bookmarks
	Extractor  Extractor
	Summarizer Summarizer
	// Mailer delivers the digest; a failure aborts the run.
	Mailer publisher.Publisher
	// Extras receive the digest on a best-effort basis.
	Extras  []publisher.Publisher
	Journal Journal
}

type Options struct {
	Location         *time.Location
	LookbackDays     int
	ExcludedTags     []string
	SummaryCharLimit int
	// DryRun skips write-back and the journal.
	DryRun bool
	Now    func() time.Time
	Logger *zap.Logger
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Outcomes  []digest.Outcome
	Succeeded int
	Failed    int
}

// Runner orchestrates the fetch -> filter -> extract -> summarize -> write back
// -> mail pipeline.
type Runner struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

func New(deps Deps, opts Options) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LookbackDays < 1 {
		opts.LookbackDays = 1
	}
	if opts.ExcludedTags == nil {
		opts.ExcludedTags = filter.DefaultExcludedTags()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{deps: deps, opts: opts, logger: opts.Logger}
}

// Run executes one batch.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	now := r.opts.Now()
	runID := journal.NewRunID()
	logger := r.logger.With(zap.String("run_id", runID))

	logger.Info("Starting batch run",
		zap.Time("now", now.In(r.opts.Location)),
		zap.Int("lookback_days", r.opts.LookbackDays),
		zap.Bool("dry_run", r.opts.DryRun))

	if err := r.resendUnsent(ctx, logger); err != nil {
		return nil, err
	}

	// Step 1: Fetch
	items, err := r.deps.Bookmarks.FetchUnsorted(ctx)
	if err != nil {
		return nil, fmt.Errorf("runner: fetch failed: %w", err)
	}
	threshold := filter.Threshold(now, r.opts.Location, r.opts.LookbackDays)
	candidates := filter.NewItems(items, threshold, r.opts.ExcludedTags)
	logger.Info("Fetched bookmarks",
		zap.Int("fetched", len(items)),
		zap.Int("candidates", len(candidates)),
		zap.Time("threshold", threshold))

	// Step 2: Process each item in order
	outcomes := make([]digest.Outcome, 0, len(candidates))
	var aborted error
	for _, item := range candidates {
		if aborted = ctx.Err(); aborted != nil {
			break
		}

		outcome := r.process(ctx, item, logger)
		// An item interrupted mid-way is neither reported nor tagged.
		if aborted = ctx.Err(); aborted != nil {
			break
		}
		outcomes = append(outcomes, outcome)
		r.writeBack(ctx, outcome, logger)
	}

	// Step 3: Render
	dopts := digest.Options{
		Location:         r.opts.Location,
		LookbackDays:     r.opts.LookbackDays,
		SummaryCharLimit: r.opts.SummaryCharLimit,
	}
	msg := publisher.Message{
		Subject:  digest.Subject(now, dopts),
		Body:     digest.Body(outcomes, dopts),
		Date:     now,
		Outcomes: outcomes,
	}
	succeeded, failed := digest.Counts(outcomes)
	result := &Result{RunID: runID, Outcomes: outcomes, Succeeded: succeeded, Failed: failed}

	if aborted != nil {
		// Items handled so far are already tagged; keep their digest for the
		// next run to deliver.
		if len(outcomes) > 0 && !r.record(context.WithoutCancel(ctx), runID, now, msg, logger) {
			logger.Error("Digest of interrupted run lost; processed items were already tagged",
				zap.Int64s("item_ids", itemIDs(outcomes)))
		}
		return nil, fmt.Errorf("runner: aborted after %d of %d items: %w", len(outcomes), len(candidates), aborted)
	}

	recorded := r.record(ctx, runID, now, msg, logger)

	// Step 4: Send
	if err := r.deps.Mailer.Publish(ctx, msg); err != nil {
		if !recorded {
			logger.Error("Digest lost; processed items were already tagged",
				zap.Int64s("item_ids", itemIDs(outcomes)))
		}
		return nil, fmt.Errorf("runner: send digest: %w", err)
	}
	if recorded {
		if err := r.deps.Journal.MarkSent(ctx, runID, r.opts.Now()); err != nil {
			logger.Warn("Failed to mark digest as sent", zap.Error(err))
		}
	}

	for _, pub := range r.deps.Extras {
		if err := pub.Publish(ctx, msg); err != nil {
			logger.Warn("Secondary publisher failed",
				zap.String("publisher", fmt.Sprintf("%T", pub)),
				zap.Error(err))
		}
	}

	logger.Info("Batch run completed",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))
	return result, nil
}

// process extracts and summarizes one item. Errors become failed outcomes.
func (r *Runner) process(ctx context.Context, item raindrop.Item, logger *zap.Logger) digest.Outcome {
	logger = logger.With(zap.Int64("item_id", item.ID), zap.String("url", item.Link))

	content, err := r.deps.Extractor.Extract(ctx, item.Link)
	if err != nil {
		logger.Warn("Extraction failed", zap.Error(err))
		return digest.Failure(item, err)
	}

	images := mergeImages(item.Images, content.Images)
	raw, err := r.deps.Summarizer.Summarize(ctx, content.Text, images)
	if err != nil {
		logger.Warn("Summarization failed", zap.Error(err))
		return digest.Failure(item, err)
	}

	author, summary := textutil.SplitAuthor(raw)
	if r.opts.SummaryCharLimit > 0 {
		summary = textutil.Trim(summary, r.opts.SummaryCharLimit)
	}
	logger.Info("Item summarized",
		zap.String("source", content.Source.String()),
		zap.Int("text_chars", content.Length),
		zap.Int("images", len(images)))
	return digest.Success(item, author, summary)
}

// writeBack tags the item so the next run skips it. Successful items also get
// the summary appended to their note. Failures here are logged only.
func (r *Runner) writeBack(ctx context.Context, o digest.Outcome, logger *zap.Logger) {
	if r.opts.DryRun {
		return
	}

	note, tag := "", filter.TagFailed
	if o.IsSuccess() {
		note, tag = o.Summary, filter.TagDelivered
	}

	err := r.deps.Bookmarks.AppendNoteAndTags(ctx, o.Item, note, []string{tag})
	switch {
	case err == nil:
	case raindrop.IsNotFound(err):
		logger.Warn("Bookmark deleted before write-back", zap.Int64("item_id", o.Item.ID))
	default:
		logger.Error("Write-back failed", zap.Int64("item_id", o.Item.ID), zap.Error(err))
	}
}

// record stores the rendered digest as unsent. It reports whether the
// journal now holds it.
func (r *Runner) record(ctx context.Context, runID string, now time.Time, msg publisher.Message, logger *zap.Logger) bool {
	if r.deps.Journal == nil || r.opts.DryRun {
		return false
	}
	_, err := r.deps.Journal.Record(ctx, journal.Run{
		ID:        runID,
		StartedAt: now,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Outcomes:  msg.Outcomes,
	})
	if err != nil {
		logger.Error("Failed to record run", zap.Error(err))
		return false
	}
	return true
}

// resendUnsent delivers digests from earlier runs whose mail never went out.
func (r *Runner) resendUnsent(ctx context.Context, logger *zap.Logger) error {
	if r.deps.Journal == nil || r.opts.DryRun {
		return nil
	}
	runs, err := r.deps.Journal.Unsent(ctx)
	if err != nil {
		logger.Warn("Failed to read unsent digests", zap.Error(err))
		return nil
	}

	for _, run := range runs {
		logger.Info("Re-sending undelivered digest",
			zap.String("previous_run_id", run.ID),
			zap.Time("started_at", run.StartedAt))
		msg := publisher.Message{Subject: run.Subject, Body: run.Body, Date: run.StartedAt}
		if err := r.deps.Mailer.Publish(ctx, msg); err != nil {
			return fmt.Errorf("runner: re-send digest %s: %w", run.ID, err)
		}
		if err := r.deps.Journal.MarkSent(ctx, run.ID, r.opts.Now()); err != nil {
			logger.Warn("Failed to mark digest as sent", zap.String("previous_run_id", run.ID), zap.Error(err))
		}
	}
	return nil
}

// mergeImages joins bookmark media and page images, dropping duplicates.
func mergeImages(groups ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, img := range group {
			if img == "" || seen[img] {
				continue
			}
			seen[img] = true
			out = append(out, img)
		}
	}
	return out
}

func itemIDs(outcomes []digest.Outcome) []int64 {
	ids := make([]int64, len(outcomes))
	for i, o := range outcomes {
		ids[i] = o.Item.ID
	}
	return ids
}
