package collector

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"log/slog"
	"seoAuditGO/internal/models"
)

// Bounds applied during collection. Every loop over untrusted DOM content
// has an explicit upper limit so collection finishes in bounded time
// regardless of document size.
const (
	maxHeadings       = 30
	maxLinksExamined  = 200
	maxLinkExamples   = 10
	maxLinkTextLen    = 100
	maxImagesExamined = 50
	maxAltExamples    = 10
	maxStructuredLen  = 500
	bodySampleLen     = 3000
	wordSampleLen     = 10000
)

// openGraphProperties is the fixed allow-list of og: tags collected
var openGraphProperties = []string{
	"og:title", "og:description", "og:image", "og:url", "og:type", "og:site_name",
}

// twitterProperties is the fixed allow-list of twitter: tags collected
var twitterProperties = []string{
	"twitter:card", "twitter:title", "twitter:description", "twitter:image", "twitter:site", "twitter:creator",
}

// Collector extracts a bounded PageSignal from a parsed HTML document
type Collector struct {
	logger *slog.Logger
}

// New creates a new Collector
func New(logger *slog.Logger) *Collector {
	return &Collector{logger: logger}
}

// EmptySignal returns a signal with every field at its empty value.
// Slices and maps are non-nil so serialized output never contains nulls.
func EmptySignal(pageURL string) *models.PageSignal {
	return &models.PageSignal{
		URL:       pageURL,
		Timestamp: time.Now(),
		Headings:  []models.Heading{},
		LinkSummary: models.LinkSummary{
			InternalLinks: []models.Link{},
			ExternalLinks: []models.Link{},
		},
		ImageSummary: models.ImageSummary{
			MissingAltExamples: []models.ImageExample{},
		},
		StructuredData: []models.StructuredDataEntry{},
		OpenGraphTags:  map[string]string{},
		TwitterTags:    map[string]string{},
	}
}

// Collect extracts a PageSignal from the document. Each field is extracted
// independently; a failure in one degrades that field to its empty value
// and never aborts the whole collection.
func (c *Collector) Collect(doc *goquery.Document, pageURL string) *models.PageSignal {
	signal := EmptySignal(pageURL)
	if doc == nil {
		return signal
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	c.guard("metadata", func() { c.collectMetadata(doc, signal) })
	c.guard("headings", func() { signal.Headings = c.collectHeadings(doc) })
	c.guard("links", func() { signal.LinkSummary = c.collectLinks(doc, base) })
	c.guard("images", func() { signal.ImageSummary = c.collectImages(doc) })
	c.guard("structured_data", func() { signal.StructuredData = c.collectStructuredData(doc) })
	c.guard("social_tags", func() {
		signal.OpenGraphTags = collectProperties(doc, openGraphProperties)
		signal.TwitterTags = collectProperties(doc, twitterProperties)
	})
	c.guard("body_text", func() {
		sample, wordCount := c.collectBodyText(doc)
		signal.BodyTextSample = sample
		signal.WordCount = wordCount
	})

	return signal
}

// guard runs one extraction step and recovers any panic, leaving the
// field at its empty value.
func (c *Collector) guard(field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("field extraction failed", "field", field, "panic", r)
		}
	}()
	fn()
}

// collectMetadata fills the scalar metadata fields via first-match lookups
func (c *Collector) collectMetadata(doc *goquery.Document, signal *models.PageSignal) {
	signal.Title = strings.TrimSpace(doc.Find("title").First().Text())
	signal.MetaDescription = firstAttr(doc, `meta[name="description"]`, "content")
	signal.Canonical = firstAttr(doc, `link[rel="canonical"]`, "href")
	signal.RobotsDirective = firstAttr(doc, `meta[name="robots"]`, "content")
	signal.Language = firstAttr(doc, "html", "lang")
}

// collectHeadings walks heading elements in document order, stopping
// after maxHeadings
func (c *Collector) collectHeadings(doc *goquery.Document) []models.Heading {
	headings := []models.Heading{}
	doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(headings) >= maxHeadings {
			return false
		}
		level := headingLevel(goquery.NodeName(s))
		if level == 0 {
			return true
		}
		headings = append(headings, models.Heading{
			Level: level,
			Text:  collapseWhitespace(s.Text()),
		})
		return true
	})
	return headings
}

func headingLevel(name string) int {
	if len(name) != 2 || name[0] != 'h' {
		return 0
	}
	if name[1] < '1' || name[1] > '6' {
		return 0
	}
	return int(name[1] - '0')
}

// collectLinks examines at most maxLinksExamined anchors: the cap bounds
// work, not output. The total count is taken from the full unfiltered
// query afterwards, so totals and detail lists may diverge on very large
// pages -- an accepted approximation for performance.
func (c *Collector) collectLinks(doc *goquery.Document, base *url.URL) models.LinkSummary {
	summary := models.LinkSummary{
		InternalLinks: []models.Link{},
		ExternalLinks: []models.Link{},
	}

	anchors := doc.Find("a[href]")
	examined := 0
	anchors.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if examined >= maxLinksExamined {
			return false
		}
		examined++

		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}

		resolved := resolveHref(base, href)
		if resolved == nil {
			return true
		}
		scheme := strings.ToLower(resolved.Scheme)
		if scheme == "data" || scheme == "javascript" {
			return true
		}

		link := models.Link{
			Href: resolved.String(),
			Text: truncate(collapseWhitespace(s.Text()), maxLinkTextLen),
		}

		// Hostname equality is a case-sensitive exact match; an empty
		// hostname (relative, mailto) counts as internal.
		if isInternal(base, resolved) {
			summary.Counts.Internal++
			if len(summary.InternalLinks) < maxLinkExamples {
				summary.InternalLinks = append(summary.InternalLinks, link)
			}
		} else {
			summary.Counts.External++
			if len(summary.ExternalLinks) < maxLinkExamples {
				summary.ExternalLinks = append(summary.ExternalLinks, link)
			}
		}
		return true
	})

	summary.Counts.Total = anchors.Length()
	return summary
}

func resolveHref(base *url.URL, href string) *url.URL {
	parsed, err := url.Parse(href)
	if err != nil {
		return nil
	}
	if base == nil {
		return parsed
	}
	return base.ResolveReference(parsed)
}

func isInternal(base, resolved *url.URL) bool {
	if resolved.Hostname() == "" {
		return true
	}
	if base == nil {
		return false
	}
	return resolved.Hostname() == base.Hostname()
}

// collectImages examines at most maxImagesExamined images. Counts apply to
// the examined pool only, trading accuracy for latency on large pages.
func (c *Collector) collectImages(doc *goquery.Document) models.ImageSummary {
	summary := models.ImageSummary{
		MissingAltExamples: []models.ImageExample{},
	}

	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if summary.TotalCount >= maxImagesExamined {
			return false
		}
		summary.TotalCount++

		alt, exists := s.Attr("alt")
		if exists && strings.TrimSpace(alt) != "" {
			summary.WithAltCount++
			return true
		}

		summary.WithoutAltCount++
		if len(summary.MissingAltExamples) < maxAltExamples {
			src, _ := s.Attr("src")
			width, _ := s.Attr("width")
			height, _ := s.Attr("height")
			summary.MissingAltExamples = append(summary.MissingAltExamples, models.ImageExample{
				Src:    src,
				Width:  width,
				Height: height,
			})
		}
		return true
	})

	return summary
}

// collectStructuredData parses every JSON-LD script block. A parse failure
// yields a parse_error entry instead of aborting collection.
func (c *Collector) collectStructuredData(doc *goquery.Document) []models.StructuredDataEntry {
	entries := []models.StructuredDataEntry{}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		truncated := truncate(raw, maxStructuredLen)

		var parsed map[string]any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			entries = append(entries, models.StructuredDataEntry{
				Type: "parse_error",
				Raw:  truncated,
			})
			return
		}

		entries = append(entries, models.StructuredDataEntry{
			Type: schemaType(parsed),
			Raw:  truncated,
		})
	})

	return entries
}

// schemaType pulls the @type value out of a parsed JSON-LD block
func schemaType(parsed map[string]any) string {
	switch v := parsed["@type"].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return "unknown"
}

// collectProperties looks up a fixed allow-list of meta properties; only
// present keys appear in the result
func collectProperties(doc *goquery.Document, properties []string) map[string]string {
	tags := map[string]string{}
	for _, prop := range properties {
		sel := doc.Find(`meta[property="` + prop + `"]`).First()
		if sel.Length() == 0 {
			// Some pages use name= instead of property= for twitter tags.
			sel = doc.Find(`meta[name="` + prop + `"]`).First()
		}
		if content, ok := sel.Attr("content"); ok && content != "" {
			tags[prop] = content
		}
	}
	return tags
}

// collectBodyText reads the visible body text, collapses whitespace, and
// returns the transport sample plus the extrapolated word count
func (c *Collector) collectBodyText(doc *goquery.Document) (string, int) {
	body := doc.Find("body")
	if body.Length() == 0 {
		return "", 0
	}

	text := collapseWhitespace(visibleText(body.Nodes[0]))
	return truncate(text, bodySampleLen), estimateWordCount(text)
}

// firstAttr returns the named attribute of the first match of selector,
// or "" when absent
func firstAttr(doc *goquery.Document, selector, attr string) string {
	value, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}
