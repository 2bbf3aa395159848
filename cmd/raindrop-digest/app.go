package main

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/raindrop-digest/internal/config"
	"github.com/ryosukesatoh/raindrop-digest/internal/extractor"
	"github.com/ryosukesatoh/raindrop-digest/internal/journal"
	"github.com/ryosukesatoh/raindrop-digest/internal/publisher"
	"github.com/ryosukesatoh/raindrop-digest/internal/raindrop"
	"github.com/ryosukesatoh/raindrop-digest/internal/runner"
	"github.com/ryosukesatoh/raindrop-digest/internal/summarizer"
)

// app holds the wired components of one process.
type app struct {
	runner  *runner.Runner
	journal *journal.Journal
}

func newApp(cfg *config.Config, logger *zap.Logger, stdout io.Writer) (*app, error) {
	bookmarks := raindrop.NewClient(cfg.Raindrop.Token, raindrop.Options{
		BaseURL:  cfg.Raindrop.BaseURL,
		PerPage:  cfg.Raindrop.PerPage,
		MaxPages: cfg.Raindrop.MaxPages,
		Timeout:  20 * time.Second,
		Logger:   logger.Named("raindrop"),
	})

	ext := extractor.New(extractor.Options{
		MaxChars:  cfg.Extractor.MaxChars,
		UserAgent: cfg.Extractor.UserAgent,
		Timeout:   20 * time.Second,
		Logger:    logger.Named("extractor"),
	})

	sum, err := summarizer.New(summarizer.Options{
		APIKey:             cfg.Summarizer.APIKey,
		Model:              cfg.Summarizer.Model,
		BaseURL:            cfg.Summarizer.BaseURL,
		ImageTextThreshold: cfg.Summarizer.ImageTextThreshold,
		MinImages:          cfg.Summarizer.MinImages,
		SummaryCharLimit:   cfg.Summarizer.CharLimit,
		RequestsPerMinute:  cfg.Summarizer.RequestsPerMinute,
		Timeout:            120 * time.Second,
		Logger:             logger.Named("summarizer"),
	})
	if err != nil {
		return nil, &config.Error{Msg: err.Error()}
	}

	mailer, err := newMailer(cfg, logger, stdout)
	if err != nil {
		return nil, err
	}

	var extras []publisher.Publisher
	if cfg.Discord.WebhookURL != "" && !cfg.DryRun {
		extras = append(extras, publisher.NewDiscordPublisher(cfg.Discord.WebhookURL))
	}

	a := &app{}
	deps := runner.Deps{
		Bookmarks:  bookmarks,
		Extractor:  ext,
		Summarizer: sum,
		Mailer:     mailer,
		Extras:     extras,
	}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		deps.Journal = j
	}

	a.runner = runner.New(deps, runner.Options{
		Location:         cfg.Location,
		LookbackDays:     cfg.LookbackDays,
		ExcludedTags:     cfg.ExcludedTags,
		SummaryCharLimit: cfg.Summarizer.CharLimit,
		DryRun:           cfg.DryRun,
		Logger:           logger.Named("runner"),
	})

	logger.Info("Components ready",
		zap.String("model", sum.Model()),
		zap.String("mail_provider", cfg.Mail.Provider),
		zap.Bool("journal", a.journal != nil),
		zap.Int("extra_publishers", len(extras)))
	return a, nil
}

// newMailer returns the primary publisher. A dry run prints the digest.
func newMailer(cfg *config.Config, logger *zap.Logger, stdout io.Writer) (publisher.Publisher, error) {
	if cfg.DryRun {
		return publisher.NewStdoutPublisher(stdout), nil
	}
	switch cfg.Mail.Provider {
	case "sendgrid":
		return publisher.NewSendGridPublisher(cfg.Mail.SendGridAPIKey, cfg.Mail.From, cfg.Mail.FromName, cfg.Mail.To, logger.Named("sendgrid")), nil
	case "smtp":
		return publisher.NewSMTPPublisher(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From, cfg.Mail.To), nil
	default:
		return nil, &config.Error{Msg: fmt.Sprintf("unsupported mail provider %q", cfg.Mail.Provider)}
	}
}

func (a *app) Close() {
	if a.journal != nil {
		a.journal.Close()
	}
}
