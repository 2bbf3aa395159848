package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutPublisher prints the digest instead of sending it.
type StdoutPublisher struct {
	w io.Writer
}

// NewStdoutPublisher writes to w, or to os.Stdout when w is nil.
func NewStdoutPublisher(w io.Writer) *StdoutPublisher {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutPublisher{w: w}
}

func (p *StdoutPublisher) Publish(_ context.Context, msg Message) error {
	fmt.Fprintln(p.w, strings.Repeat("=", 72))
	fmt.Fprintf(p.w, "Subject: %s\n", msg.Subject)
	fmt.Fprintln(p.w, strings.Repeat("=", 72))
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, msg.Body)
	return nil
}
