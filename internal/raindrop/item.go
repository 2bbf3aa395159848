package raindrop

import (
	"fmt"
	"time"
)

// UnsortedCollectionID is the id Raindrop uses for the "Unsorted" inbox.
const UnsortedCollectionID = -1

// Item is a bookmark as fetched from Raindrop. Only Note and Tags change
// after fetching, and only through Client.AppendNoteAndTags.
type Item struct {
	ID      int64
	Link    string
	Title   string
	Created time.Time
	Tags    []string
	Note    string
	Domain  string
	Cover   string
	// Images are media entries of type "image", cover first.
	Images []string
}

type rawItem struct {
	ID      *int64     `json:"_id"`
	AltID   *int64     `json:"id"`
	Link    string     `json:"link"`
	Title   string     `json:"title"`
	Created string     `json:"created"`
	Tags    []string   `json:"tags"`
	Note    string     `json:"note"`
	Domain  string     `json:"domain"`
	Cover   string     `json:"cover"`
	Media   []rawMedia `json:"media"`
}

type rawMedia struct {
	Link string `json:"link"`
	Type string `json:"type"`
}

type listResponse struct {
	Result bool      `json:"result"`
	Items  []rawItem `json:"items"`
}

type updateRequest struct {
	Note string   `json:"note"`
	Tags []string `json:"tags"`
}

// ParseTime parses the ISO-8601 timestamps Raindrop returns, with or
// without fractional seconds.
func ParseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime format: %s", value)
	}
	return t, nil
}

func (r rawItem) toItem() (Item, error) {
	var id int64
	switch {
	case r.ID != nil:
		id = *r.ID
	case r.AltID != nil:
		id = *r.AltID
	default:
		return Item{}, fmt.Errorf("item %q has no id", r.Link)
	}
	if r.Link == "" {
		return Item{}, fmt.Errorf("item %d has no link", id)
	}

	created, err := ParseTime(r.Created)
	if err != nil {
		return Item{}, fmt.Errorf("item %d: %w", id, err)
	}

	title := r.Title
	if title == "" {
		title = r.Domain
	}
	if title == "" {
		title = r.Link
	}

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	var images []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			images = append(images, u)
		}
	}
	add(r.Cover)
	for _, m := range r.Media {
		if m.Type == "" || m.Type == "image" {
			add(m.Link)
		}
	}

	return Item{
		ID:      id,
		Link:    r.Link,
		Title:   title,
		Created: created,
		Tags:    tags,
		Note:    r.Note,
		Domain:  r.Domain,
		Cover:   r.Cover,
		Images:  images,
	}, nil
}
