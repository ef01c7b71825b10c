package models

import (
	"time"
)

// Heading represents one heading element in document order
type Heading struct {
	Level int    `json:"level" bson:"level"`
	Text  string `json:"text" bson:"text"`
}

// Link represents one anchor found on the page
type Link struct {
	Href string `json:"href" bson:"href"`
	Text string `json:"text" bson:"text"`
}

// LinkCounts holds link totals over the full document, not just the
// capped example lists
type LinkCounts struct {
	Internal int `json:"internal" bson:"internal"`
	External int `json:"external" bson:"external"`
	Total    int `json:"total" bson:"total"`
}

// LinkSummary represents the link portion of a page signal
type LinkSummary struct {
	InternalLinks []Link     `json:"internal_links" bson:"internal_links"`
	ExternalLinks []Link     `json:"external_links" bson:"external_links"`
	Counts        LinkCounts `json:"counts" bson:"counts"`
}

// ImageExample represents an image missing alt text
type ImageExample struct {
	Src    string `json:"src" bson:"src"`
	Width  string `json:"width,omitempty" bson:"width,omitempty"`
	Height string `json:"height,omitempty" bson:"height,omitempty"`
}

// ImageSummary represents the image portion of a page signal. Counts cover
// the examined pool only (first 50 images), an accepted accuracy tradeoff
// on very large pages.
type ImageSummary struct {
	TotalCount         int            `json:"total_count" bson:"total_count"`
	WithAltCount       int            `json:"with_alt_count" bson:"with_alt_count"`
	WithoutAltCount    int            `json:"without_alt_count" bson:"without_alt_count"`
	MissingAltExamples []ImageExample `json:"missing_alt_examples" bson:"missing_alt_examples"`
}

// StructuredDataEntry represents one JSON-LD script block. A block that
// fails to parse is kept with Type "parse_error" rather than dropped.
type StructuredDataEntry struct {
	Type string `json:"type" bson:"type"`
	Raw  string `json:"raw" bson:"raw"`
}

// PageSignal is the bounded structural summary extracted from one page.
// Scalar fields are possibly-empty strings, never absent.
type PageSignal struct {
	URL             string                `json:"url" bson:"url"`
	Timestamp       time.Time             `json:"timestamp" bson:"timestamp"`
	Title           string                `json:"title" bson:"title"`
	MetaDescription string                `json:"meta_description" bson:"meta_description"`
	Canonical       string                `json:"canonical" bson:"canonical"`
	RobotsDirective string                `json:"robots_directive" bson:"robots_directive"`
	Language        string                `json:"language" bson:"language"`
	Headings        []Heading             `json:"headings" bson:"headings"`
	LinkSummary     LinkSummary           `json:"link_summary" bson:"link_summary"`
	ImageSummary    ImageSummary          `json:"image_summary" bson:"image_summary"`
	StructuredData  []StructuredDataEntry `json:"structured_data" bson:"structured_data"`
	OpenGraphTags   map[string]string     `json:"open_graph_tags" bson:"open_graph_tags"`
	TwitterTags     map[string]string     `json:"twitter_tags" bson:"twitter_tags"`
	BodyTextSample  string                `json:"body_text_sample" bson:"body_text_sample"`
	WordCount       int                   `json:"word_count" bson:"word_count"`
}

// Usable reports whether the signal carries enough content to audit:
// a URL plus at least a title or a body sample. A signal failing this is
// treated as "page inaccessible" upstream.
func (s *PageSignal) Usable() bool {
	if s == nil || s.URL == "" {
		return false
	}
	return s.Title != "" || s.BodyTextSample != ""
}
