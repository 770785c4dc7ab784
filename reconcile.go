package main

import (
	"log"
	"strconv"
	"strings"
)

// rawAnalysisReply mirrors the JSON document the prompt instructs the model
// to emit. Every field is optional in practice; the reconciler assumes
// nothing about shape beyond what it checks.
type rawAnalysisReply struct {
	AnalysisDate      string            `json:"analysis_date"`
	CategorySummaries map[string]string `json:"category_summaries"`
	NewTrends         []rawTrend        `json:"new_trends"`
	Classifications   map[string]string `json:"classifications"`
	TicketSummaries   map[string]string `json:"ticket_summaries"`
}

// rawTrend keeps ticket_numbers untyped: models emit integers, quoted
// strings, and "#1234" forms interchangeably.
type rawTrend struct {
	Title             string `json:"title"`
	TicketNumbers     []any  `json:"ticket_numbers"`
	Description       string `json:"description"`
	GeographicPattern string `json:"geographic_pattern"`
}

// genericTrendTitles never survive trend admission, regardless of volume.
var genericTrendTitles = map[string]bool{
	"unknown":       true,
	"unknown trend": true,
	"misc":          true,
	"miscellaneous": true,
	"other":         true,
	"other issues":  true,
	"general":       true,
	"various":       true,
	"feedback":      true,
	"unrelated":     true,
	"n/a":           true,
}

// ReconcileDiagnostics counts the corrections applied while resolving a raw
// reply. Logged for observability, never surfaced as user-facing errors.
type ReconcileDiagnostics struct {
	HallucinatedRefs      int // ticket numbers not present in the input batch
	UnrecognizedCategory  int // classifications pointing at unknown category ids
	MissingClassification int // input tickets the model omitted entirely
	RescuedFromTrends     int // tickets redistributed out of rejected trends
	RejectedTrends        int
}

// ReconcileAnalysis resolves a raw model reply against the input batch into a
// complete, non-overlapping partition: every input ticket number lands in
// exactly one category list or one accepted trend. It is a pure function of
// its inputs (the same (tickets, raw) pair always yields an identical
// Analysis) and it never fails: malformed categories, missing tickets,
// duplicates and nonsensical trends are all corrected deterministically.
func ReconcileAnalysis(tickets []Ticket, raw *rawAnalysisReply) (Analysis, ReconcileDiagnostics) {
	var diag ReconcileDiagnostics
	validIDs := validCategoryIDs()

	inputNumbers := make(map[int64]bool, len(tickets))
	for _, t := range tickets {
		inputNumbers[t.Number] = true
	}

	// Trend admission. Each proposed cluster is filtered to real input
	// tickets not already claimed by an earlier accepted trend,
	// deduplicated in first-seen order, then admitted only if it
	// still has 2+ tickets and a specific, non-generic title. Admitted
	// clusters are frozen; rejected ones dissolve and their tickets are
	// redistributed below.
	var accepted []TrendCluster
	rejectedNumbers := make(map[int64]bool)
	claimed := make(map[int64]bool)
	for _, tr := range raw.NewTrends {
		var nums []int64
		seen := make(map[int64]bool)
		for _, v := range tr.TicketNumbers {
			num, ok := parseTicketNumber(v)
			if !ok {
				continue
			}
			if !inputNumbers[num] {
				diag.HallucinatedRefs++
				continue
			}
			if seen[num] || claimed[num] {
				continue
			}
			seen[num] = true
			nums = append(nums, num)
		}

		title := strings.TrimSpace(tr.Title)
		if len(nums) < 2 || title == "" || genericTrendTitles[strings.ToLower(title)] {
			diag.RejectedTrends++
			for _, num := range nums {
				rejectedNumbers[num] = true
			}
			log.Printf("reconcile rejected trend title=%q volume=%d", title, len(nums))
			continue
		}
		accepted = append(accepted, TrendCluster{
			Title:             title,
			TicketNumbers:     nums,
			Volume:            len(nums),
			Description:       strings.TrimSpace(tr.Description),
			GeographicPattern: strings.TrimSpace(tr.GeographicPattern),
		})
		for _, num := range nums {
			claimed[num] = true
		}
	}

	for num := range raw.Classifications {
		if parsed, ok := parseTicketNumberString(num); !ok || !inputNumbers[parsed] {
			diag.HallucinatedRefs++
		}
	}

	// Category assignment, walked in input batch order so the output is a
	// designed ordering rather than map iteration luck. Trend membership
	// wins; unknown category ids and omitted tickets go to the fallback
	// category instead of being dropped. This sweep is what guarantees the
	// partition invariant even for an incomplete or contradictory reply.
	categoryTickets := make(map[string][]int64, len(KnownCategories))
	for _, t := range tickets {
		if claimed[t.Number] {
			continue
		}
		if rejectedNumbers[t.Number] {
			diag.RescuedFromTrends++
		}
		catID, present := lookupClassification(raw.Classifications, t.Number)
		switch {
		case !present:
			diag.MissingClassification++
			categoryTickets[FallbackCategoryID] = append(categoryTickets[FallbackCategoryID], t.Number)
		case validIDs[catID]:
			categoryTickets[catID] = append(categoryTickets[catID], t.Number)
		default:
			diag.UnrecognizedCategory++
			categoryTickets[FallbackCategoryID] = append(categoryTickets[FallbackCategoryID], t.Number)
		}
	}

	// Assemble in fixed taxonomy order. Every category appears, zero-volume
	// included; lists are deduplicated as a final defense.
	known := make([]CategoryResult, 0, len(KnownCategories))
	for _, c := range KnownCategories {
		nums := dedupNumbers(categoryTickets[c.CategoryID])
		known = append(known, CategoryResult{
			CategoryID:    c.CategoryID,
			Title:         c.Title,
			TicketNumbers: nums,
			Volume:        len(nums),
			Summary:       strings.TrimSpace(raw.CategorySummaries[c.CategoryID]),
		})
	}

	summaries := make(map[int64]string, len(tickets))
	for _, t := range tickets {
		s := strings.TrimSpace(raw.TicketSummaries[strconv.FormatInt(t.Number, 10)])
		if s == "" {
			s = fallbackTicketSummary(t)
		}
		summaries[t.Number] = s
	}

	if accepted == nil {
		accepted = []TrendCluster{}
	}
	analysis := Analysis{
		AnalysisDate:         strings.TrimSpace(raw.AnalysisDate),
		TotalTicketsAnalyzed: len(tickets),
		KnownCategories:      known,
		NewTrends:            accepted,
		TicketSummaries:      summaries,
	}

	if diag.HallucinatedRefs > 0 || diag.UnrecognizedCategory > 0 ||
		diag.MissingClassification > 0 || diag.RejectedTrends > 0 {
		log.Printf("reconcile corrections hallucinated=%d unrecognized=%d missing=%d rescued=%d rejected_trends=%d",
			diag.HallucinatedRefs, diag.UnrecognizedCategory, diag.MissingClassification,
			diag.RescuedFromTrends, diag.RejectedTrends)
	}

	return analysis, diag
}

func lookupClassification(classifications map[string]string, number int64) (string, bool) {
	if classifications == nil {
		return "", false
	}
	key := strconv.FormatInt(number, 10)
	catID, ok := classifications[key]
	if !ok {
		// Models occasionally prefix keys with '#'.
		catID, ok = classifications["#"+key]
	}
	return strings.TrimSpace(catID), ok
}

func parseTicketNumber(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		return parseTicketNumberString(x)
	}
	return 0, false
}

func parseTicketNumberString(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func dedupNumbers(nums []int64) []int64 {
	out := make([]int64, 0, len(nums))
	seen := make(map[int64]bool, len(nums))
	for _, n := range nums {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
