// Package filter selects the bookmarks a batch run should process: recent
// enough and not already handled by a previous run.
package filter

import (
	"time"

	"github.com/ryosukesatoh/raindrop-digest/internal/raindrop"
)

// Tags that mark an item as already handled.
const (
	TagConfirmed = "confirmed"
	TagDelivered = "delivered"
	TagFailed    = "failed"
)

// DefaultExcludedTags returns the exclusion set used when none is configured.
func DefaultExcludedTags() []string {
	return []string{TagConfirmed, TagDelivered, TagFailed}
}

// Threshold returns now, expressed in loc, minus days.
func Threshold(now time.Time, loc *time.Location, days int) time.Time {
	return ToZone(now, loc).Add(-time.Duration(days) * 24 * time.Hour)
}

// ToZone converts t to loc; a nil loc means UTC.
func ToZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// IsRecent reports whether the item was created at or after threshold.
func IsRecent(item raindrop.Item, threshold time.Time) bool {
	return !item.Created.Before(threshold)
}

// HasExcludedTag reports whether any of tags is in excluded.
func HasExcludedTag(tags, excluded []string) bool {
	for _, tag := range tags {
		for _, ex := range excluded {
			if tag == ex {
				return true
			}
		}
	}
	return false
}

// NewItems keeps the items that are recent and carry no excluded tag,
// preserving input order.
func NewItems(items []raindrop.Item, threshold time.Time, excluded []string) []raindrop.Item {
	filtered := make([]raindrop.Item, 0, len(items))
	for _, item := range items {
		if !IsRecent(item, threshold) {
			continue
		}
		if HasExcludedTag(item.Tags, excluded) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}
