// Package digest holds the per-item outcome of a batch run and renders the
// plain-text digest email from a list of outcomes.
package digest

import (
	"errors"

	"github.com/ryosukesatoh/raindrop-digest/internal/extractor"
	"github.com/ryosukesatoh/raindrop-digest/internal/raindrop"
	"github.com/ryosukesatoh/raindrop-digest/internal/summarizer"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Reason says which step failed for a failed outcome.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonExtraction Reason = "extraction"
	ReasonRateLimit  Reason = "rate_limit"
	ReasonConnection Reason = "connection"
	ReasonSummary    Reason = "summary"
)

// Outcome is the result of processing one bookmark.
type Outcome struct {
	Item    raindrop.Item
	Status  Status
	Summary string
	Author  string
	Error   string
	Reason  Reason
}

func (o Outcome) IsSuccess() bool {
	return o.Status == StatusSuccess
}

// Success records a summarized item.
func Success(item raindrop.Item, author, summary string) Outcome {
	return Outcome{Item: item, Status: StatusSuccess, Author: author, Summary: summary}
}

// Failure records a failed item; the reason is derived from err.
func Failure(item raindrop.Item, err error) Outcome {
	o := Outcome{Item: item, Status: StatusFailed, Reason: ReasonOf(err)}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}

// ReasonOf maps an extraction or summarization error onto a Reason.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	var xerr *extractor.Error
	if errors.As(err, &xerr) {
		return ReasonExtraction
	}
	switch summarizer.KindOf(err) {
	case summarizer.KindRateLimit:
		return ReasonRateLimit
	case summarizer.KindConnection:
		return ReasonConnection
	default:
		return ReasonSummary
	}
}
