package main

import (
	"regexp"
	"strings"
	"time"
)

// Ticket is one inbound support request, enriched with the user's first
// message. Immutable within a run.
type Ticket struct {
	ID           int64 // internal SupportPal id, used for admin links only
	Number       int64 // caller-visible ticket number, unique within a batch
	Subject      string
	FirstMessage string
	CreatedAt    time.Time
	Status       string
	Priority     string
}

// CategoryResult is one taxonomy category's slice of the final partition.
// Present in every Analysis even at zero volume.
type CategoryResult struct {
	CategoryID    string  `json:"category_id"`
	Title         string  `json:"title"`
	TicketNumbers []int64 `json:"ticket_numbers"`
	Volume        int     `json:"volume"`
	Summary       string  `json:"summary,omitempty"`
}

// TrendCluster is a model-proposed grouping of 2+ tickets sharing a root
// cause outside the known taxonomy. Only admitted clusters appear in an
// Analysis; their ticket sets are frozen at admission.
type TrendCluster struct {
	Title             string  `json:"title"`
	TicketNumbers     []int64 `json:"ticket_numbers"`
	Volume            int     `json:"volume"`
	Description       string  `json:"description"`
	GeographicPattern string  `json:"geographic_pattern,omitempty"`
}

// Analysis is the persisted output of one full run: a complete,
// non-overlapping partition of the input batch across categories and trends.
type Analysis struct {
	AnalysisDate         string           `json:"analysis_date"`
	TotalTicketsAnalyzed int              `json:"total_tickets_analyzed"`
	KnownCategories      []CategoryResult `json:"known_categories"`
	NewTrends            []TrendCluster   `json:"new_trends"`
	TicketSummaries      map[int64]string `json:"ticket_summaries"`
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// stripMarkup flattens HTML-ish ticket bodies into plain text suitable for
// prompting: tags removed, common entities decoded, whitespace collapsed.
func stripMarkup(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = htmlTagRe.ReplaceAllString(s, " ")
	replacer := strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'",
	)
	s = replacer.Replace(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// truncateRunes cuts s to at most n runes. Prompt limits are counted in
// characters, not bytes, so multi-byte bodies don't get split mid-rune.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const fallbackSummaryMaxChars = 80

// fallbackTicketSummary derives a one-line summary from the ticket itself,
// used when the model's per-ticket summary is missing or empty.
func fallbackTicketSummary(t Ticket) string {
	text := strings.TrimSpace(t.Subject)
	if text == "" {
		text = stripMarkup(t.FirstMessage)
	}
	if text == "" {
		return "No details provided"
	}
	if len([]rune(text)) > fallbackSummaryMaxChars {
		text = strings.TrimSpace(truncateRunes(text, fallbackSummaryMaxChars-3)) + "..."
	}
	return text
}
