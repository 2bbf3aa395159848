package summarizer

import "fmt"

// systemPrompt asks for an author line first so the digest can show it
// separately; textutil.SplitAuthor relies on the "Author/Poster:" marker.
func systemPrompt(charLimit int) string {
	return fmt.Sprintf(`You summarize web pages, videos and social posts that the user bookmarked.

Reply in plain text (no Markdown headings) using this layout:
Author/Poster: <author or account name, or "unknown">
<one-sentence summary>
- <key point>
- <key point>
- <key point>

Keep the whole reply under %d characters. Only use information present in the content or images provided; do not speculate.`, charLimit)
}
