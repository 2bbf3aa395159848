// Package textutil holds the small string helpers shared by the extractor,
// summarizer and digest renderer. All lengths are counted in runes.
package textutil

import (
	"strings"
	"unicode/utf8"
)

// DefaultAuthor is returned by SplitAuthor when the summary carries no author line.
const DefaultAuthor = "Unknown author (not enough information)"

// authorPrefixes are checked in order; the longest marker comes first so that
// "Author/Poster:" is not mistaken for "Author:".
var authorPrefixes = []string{"Author/Poster:", "Author:", "Poster:"}

// Len returns the number of runes in s.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Trim shortens s to at most max runes.
func Trim(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// CollapseWhitespace trims every line, drops empty ones and squeezes runs of
// spaces inside a line.
func CollapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// AppendNote appends addition to original separated by a blank line. If
// original already ends with a blank line no extra separator is added.
func AppendNote(original, addition string) string {
	if original == "" {
		return addition
	}
	sep := "\n\n"
	if strings.HasSuffix(original, "\n\n") {
		sep = ""
	}
	return original + sep + addition
}

// SplitAuthor pulls the author out of a summary whose first non-blank line
// starts with one of the author markers. The remaining lines are returned
// trimmed. Without a marker it returns DefaultAuthor and the summary unchanged.
func SplitAuthor(summary string) (author, rest string) {
	var lines []string
	for _, line := range strings.Split(summary, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return DefaultAuthor, summary
	}

	first := lines[0]
	for _, prefix := range authorPrefixes {
		if !strings.HasPrefix(first, prefix) {
			continue
		}
		_, value, _ := strings.Cut(first, ":")
		author = strings.TrimSpace(value)
		if author == "" {
			author = DefaultAuthor
		}
		rest = strings.TrimSpace(strings.Join(lines[1:], "\n"))
		if rest == "" {
			rest = summary
		}
		return author, rest
	}
	return DefaultAuthor, summary
}
