package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/ryosukesatoh/raindrop-digest/internal/textutil"
)

// nonContentSelectors lists elements stripped before falling back to body text.
const nonContentSelectors = "script, style, noscript, nav, header, footer"

type page struct {
	raw string
	url *url.URL
	doc *goquery.Document

	// contentImages is filled by readableText.
	contentImages []string
}

func parse(html string, pageURL *url.URL) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &page{raw: html, url: pageURL, doc: doc}, nil
}

func (p *page) meta(selector string) string {
	v, _ := p.doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

// videoText joins the page title and meta description.
func (p *page) videoText() string {
	var parts []string
	if title := strings.TrimSpace(p.doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc := p.meta("meta[name='description']"); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, "\n")
}

func (p *page) socialText() string {
	return p.meta("meta[property='og:description']")
}

// readableText runs readability over the page. When it finds nothing the
// body text with navigation and scripts removed is used instead.
func (p *page) readableText() string {
	article, err := readability.FromReader(strings.NewReader(p.raw), p.url)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		if content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content)); err == nil {
			content.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
				src, _ := s.Attr("src")
				p.contentImages = append(p.contentImages, src)
			})
		}
		if text := textutil.CollapseWhitespace(article.TextContent); text != "" {
			return text
		}
	}

	body := p.doc.Find("body").First()
	body.Find(nonContentSelectors).Remove()
	return textutil.CollapseWhitespace(body.Text())
}

// images returns up to limit absolute, de-duplicated image URLs.
func (p *page) images(limit int) []string {
	var candidates []string
	p.doc.Find("meta[property='og:image'], meta[name='twitter:image']").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok {
			candidates = append(candidates, v)
		}
	})
	candidates = append(candidates, p.contentImages...)

	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		abs := p.resolve(c)
		if abs == "" || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (p *page) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := p.url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}
