package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/ryosukesatoh/raindrop-digest/internal/digest"
)

// Message is one rendered digest.
type Message struct {
	Subject  string
	Body     string
	Date     time.Time
	Outcomes []digest.Outcome
}

// Publisher delivers a digest to some output destination.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// MailError is returned by the mail publishers when delivery fails.
type MailError struct {
	Provider string
	Err      error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("%s: failed to send email: %v", e.Provider, e.Err)
}

func (e *MailError) Unwrap() error { return e.Err }
