package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind buckets summarization failures so callers can tell transient
// upstream problems from everything else.
type Kind int

const (
	KindGeneric Kind = iota
	KindRateLimit
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindRateLimit:
		return "rate limit"
	case KindConnection:
		return "connection"
	default:
		return "generic"
	}
}

// Error is the only error type Summarize returns.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimit:
		return fmt.Sprintf("summarizer: rate limit: %v", e.Err)
	case KindConnection:
		return fmt.Sprintf("summarizer: connection failed: %v", e.Err)
	default:
		return fmt.Sprintf("summarizer: API call failed: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying may help.
func (e *Error) Temporary() bool {
	return e.Kind == KindRateLimit || e.Kind == KindConnection
}

// KindOf returns the kind of err, or KindGeneric when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindGeneric
}

// classify maps any error from the model client onto an *Error. Errors raised
// by the HTTP doer are already typed; the text checks cover clients that
// flatten the error chain.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"):
		return &Error{Kind: KindRateLimit, Err: err}
	case errors.Is(err, context.DeadlineExceeded),
		isNetError(err),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"):
		return &Error{Kind: KindConnection, Err: err}
	default:
		return &Error{Kind: KindGeneric, Err: err}
	}
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
