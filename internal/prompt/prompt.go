// Package prompt turns a page signal into the deterministic analysis
// request sent to the provider. The same signal always yields the same
// prompt text; per-request knobs like max tokens live outside it.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"seoAuditGO/internal/models"
)

// SystemPrompt is the fixed system instruction accompanying every
// analysis request.
const SystemPrompt = "You are an expert SEO consultant. You analyze structured " +
	"summaries of web pages and produce actionable, prioritized audit reports in " +
	"markdown. Be specific and concrete; cite the exact page data you base each " +
	"finding on."

// Placeholder strings substituted for empty fields so the model never
// receives an ambiguous blank section.
const (
	missing = "(missing)"
	none    = "(none specified)"
)

// Build renders the analysis prompt for one page signal. Deterministic and
// side-effect-free.
func Build(signal *models.PageSignal) string {
	var b strings.Builder

	b.WriteString("Analyze the following web page data and produce an SEO audit report.\n\n")

	b.WriteString("## PAGE METADATA\n")
	fmt.Fprintf(&b, "URL: %s\n", orPlaceholder(signal.URL))
	fmt.Fprintf(&b, "Title: %s\n", orPlaceholder(signal.Title))
	fmt.Fprintf(&b, "Meta description: %s\n", orPlaceholder(signal.MetaDescription))
	fmt.Fprintf(&b, "Canonical URL: %s\n", orPlaceholder(signal.Canonical))
	fmt.Fprintf(&b, "Robots directive: %s\n", orPlaceholder(signal.RobotsDirective))
	fmt.Fprintf(&b, "Language: %s\n", orPlaceholder(signal.Language))

	b.WriteString("\n## HEADING STRUCTURE\n")
	if len(signal.Headings) == 0 {
		b.WriteString(none + "\n")
	}
	for _, h := range signal.Headings {
		fmt.Fprintf(&b, "H%d: %s\n", h.Level, h.Text)
	}

	b.WriteString("\n## LINKS\n")
	counts := signal.LinkSummary.Counts
	fmt.Fprintf(&b, "Total: %d (internal: %d, external: %d)\n", counts.Total, counts.Internal, counts.External)
	writeLinkList(&b, "Internal examples", signal.LinkSummary.InternalLinks)
	writeLinkList(&b, "External examples", signal.LinkSummary.ExternalLinks)

	b.WriteString("\n## IMAGES\n")
	img := signal.ImageSummary
	fmt.Fprintf(&b, "Examined: %d, with alt text: %d, missing alt text: %d\n", img.TotalCount, img.WithAltCount, img.WithoutAltCount)
	if len(img.MissingAltExamples) == 0 {
		b.WriteString("Missing-alt examples: " + none + "\n")
	} else {
		b.WriteString("Missing-alt examples:\n")
		for _, e := range img.MissingAltExamples {
			fmt.Fprintf(&b, "- %s (width=%s height=%s)\n", orPlaceholder(e.Src), orPlaceholder(e.Width), orPlaceholder(e.Height))
		}
	}

	b.WriteString("\n## STRUCTURED DATA\n")
	if len(signal.StructuredData) == 0 {
		b.WriteString(none + "\n")
	}
	for _, sd := range signal.StructuredData {
		fmt.Fprintf(&b, "- type: %s\n  raw: %s\n", sd.Type, sd.Raw)
	}

	b.WriteString("\n## OPEN GRAPH TAGS\n")
	writeTagMap(&b, signal.OpenGraphTags)

	b.WriteString("\n## TWITTER TAGS\n")
	writeTagMap(&b, signal.TwitterTags)

	b.WriteString("\n## CONTENT\n")
	fmt.Fprintf(&b, "Estimated word count: %d\n", signal.WordCount)
	fmt.Fprintf(&b, "Body text sample:\n%s\n", orPlaceholder(signal.BodyTextSample))

	b.WriteString(`
## INSTRUCTIONS
Produce a markdown report with exactly these sections, in this order:

1. "## CRITICAL ISSUES" - problems actively harming search visibility, most severe first.
2. "## PRIORITIZED RECOMMENDATIONS" - numbered list, highest impact first, each with a one-line rationale.
3. "## SCHEMA SUGGESTIONS" - structured data types this page should add or fix, with example properties.
4. "## SCORES" - rate Content, Technical SEO, Metadata, and Social each 0-100 with a one-line justification.

Base every finding only on the data above. Where a field is marked ` + missing + ` or ` + none + `, treat its absence itself as a finding if relevant.`)

	return b.String()
}

func orPlaceholder(s string) string {
	if s == "" {
		return missing
	}
	return s
}

func writeLinkList(b *strings.Builder, label string, links []models.Link) {
	if len(links) == 0 {
		fmt.Fprintf(b, "%s: %s\n", label, none)
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, l := range links {
		text := l.Text
		if text == "" {
			text = missing
		}
		fmt.Fprintf(b, "- %s -> %s\n", text, l.Href)
	}
}

// writeTagMap renders map entries in sorted key order to keep the prompt
// deterministic
func writeTagMap(b *strings.Builder, tags map[string]string) {
	if len(tags) == 0 {
		b.WriteString(none + "\n")
		return
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s: %s\n", k, tags[k])
	}
}
