package digest

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ApologyText is shown in place of a summary for failed items.
	ApologyText = "Summarization failed for this URL; please check it manually."
	// NothingToReport is the body text for a run without new items.
	NothingToReport = "Nothing new to report this time."

	separator = "===================="
)

// Options controls rendering.
type Options struct {
	Location         *time.Location
	LookbackDays     int
	SummaryCharLimit int
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Subject returns the email subject for a run at batchDate.
func Subject(batchDate time.Time, opts Options) string {
	return fmt.Sprintf("[Link digest] %s (last %s)",
		batchDate.In(opts.location()).Format("2006-01-02"),
		days(opts.LookbackDays))
}

// Body renders the digest body. Outcomes are listed in the given order.
func Body(outcomes []Outcome, opts Options) string {
	header := fmt.Sprintf("Hello. Here are summaries of the links you bookmarked in the last %s.\n", days(opts.LookbackDays))
	if len(outcomes) == 0 {
		return header + "\n" + NothingToReport
	}

	lines := []string{header}
	for i, o := range outcomes {
		item := o.Item
		lines = append(lines,
			separator,
			fmt.Sprintf("%d. Title: %s", i+1, item.Title),
			fmt.Sprintf("URL: %s", item.Link),
			fmt.Sprintf("Added: %s", item.Created.In(opts.location()).Format("2006-01-02 15:04")),
		)
		if o.IsSuccess() && o.Author != "" {
			lines = append(lines, fmt.Sprintf("Author: %s", o.Author))
		}
		lines = append(lines, "\n▼ Summary")
		if o.IsSuccess() && strings.TrimSpace(o.Summary) != "" {
			lines = append(lines, strings.TrimSpace(o.Summary))
		} else {
			lines = append(lines, ApologyText)
			if o.Error != "" {
				lines = append(lines, fmt.Sprintf("(error: %s)", o.Error))
			}
		}
		lines = append(lines, "")
	}

	if opts.SummaryCharLimit > 0 {
		lines = append(lines, fmt.Sprintf("\n* Each summary is generated to at most about %d characters.", opts.SummaryCharLimit))
	}
	return strings.Join(lines, "\n")
}

// Counts returns the number of successful and failed outcomes.
func Counts(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.IsSuccess() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
