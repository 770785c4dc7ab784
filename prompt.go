package main

import (
	"fmt"
	"log"
	"strings"
)

// Named placeholders for caller-supplied override templates. The canonical
// set uses ticket NUMBERS (not internal ids); templates using anything else
// pass through unsubstituted.
const (
	placeholderTicketCount      = "{{TICKET_COUNT}}"
	placeholderAllTicketNumbers = "{{ALL_TICKET_NUMBERS}}"
	placeholderTicketsFormatted = "{{TICKETS_FORMATTED}}"
)

const promptMessageMaxChars = 600

// BuildAnalysisPrompt renders the full two-pass analysis prompt for a ticket
// batch. When template is non-empty it is used as an override document: every
// occurrence of the three placeholders is substituted and the rest passes
// through verbatim. An unusable template (blank, or containing none of the
// placeholders) falls back to the built-in document: recoverable, logged,
// never an error.
//
// Output is byte-identical across calls for the same inputs: the prompt
// instructs the model to fill in the analysis date itself rather than
// embedding a clock read.
func BuildAnalysisPrompt(tickets []Ticket, template string) string {
	var ticketBlocks []string
	for _, t := range tickets {
		message := truncateRunes(stripMarkup(t.FirstMessage), promptMessageMaxChars)
		ticketBlocks = append(ticketBlocks, fmt.Sprintf(
			"Ticket #%d\nSubject: %s\nMessage: %s\n---", t.Number, t.Subject, message))
	}
	ticketsFormatted := strings.Join(ticketBlocks, "\n")

	numbers := make([]string, 0, len(tickets))
	for _, t := range tickets {
		numbers = append(numbers, fmt.Sprintf("%d", t.Number))
	}
	allTicketNumbers := "[" + strings.Join(numbers, ", ") + "]"
	ticketCount := fmt.Sprintf("%d", len(tickets))

	if trimmed := strings.TrimSpace(template); trimmed != "" {
		if !strings.Contains(template, placeholderTicketCount) &&
			!strings.Contains(template, placeholderAllTicketNumbers) &&
			!strings.Contains(template, placeholderTicketsFormatted) {
			log.Printf("prompt custom template has no known placeholders, falling back to built-in")
		} else {
			replacer := strings.NewReplacer(
				placeholderTicketCount, ticketCount,
				placeholderAllTicketNumbers, allTicketNumbers,
				placeholderTicketsFormatted, ticketsFormatted,
			)
			return replacer.Replace(template)
		}
	}

	return builtinPrompt(ticketCount, allTicketNumbers, ticketsFormatted)
}

func builtinPrompt(ticketCount, allTicketNumbers, ticketsFormatted string) string {
	var categoriesDetail strings.Builder
	for i, c := range KnownCategories {
		fmt.Fprintf(&categoriesDetail, "%d. category_id=%q\n   title=%q\n   description: %s\n",
			i+1, c.CategoryID, c.Title, c.Description)
	}

	return fmt.Sprintf(`You are TARS, an AI assistant for the Windscribe VPN support operations team.

=== YOUR TASK (two passes) ===

You will receive %[1]s support tickets. Work in this order:

PASS 1 — NEW TREND SCAN:
  Scan ALL tickets first. Look for groups of 2+ tickets that share the same
  specific root cause which is NOT described by any of the known categories below.
  If you find such a group, mark those tickets as a new trend.

PASS 2 — CLASSIFY THE REST:
  Assign every remaining ticket to exactly one known category.
  Write a 1-2 sentence summary for each category that has tickets.

=== NEW TREND RULES ===
A new trend is any recurring issue where >= 2 tickets share the same specific
root cause AND that root cause is not already described by a known category.
The PROBLEM TYPE itself matters — if no known category covers this KIND of
problem, it is a new trend regardless of surface-level keyword similarity.

Most days will have 0-2 new trends. Zero is fine. So is two or three if the data supports it.

Constraints:
  - Minimum 2 tickets to form a trend
  - NOT a catch-all (forbidden titles: "Miscellaneous", "Other", "General", "Various", "Feedback", "Unrelated", "Unknown")
  - SPAM, vendor emails, off-topic emails are NOT trends — classify them into the closest known category

A ticket only fits a known category if its core problem type genuinely matches
that category's scope. When in doubt, prefer new_trend over forcing a bad fit.

=== KNOWN CATEGORIES ===
%[2]s
=== HOW TO WRITE category_summaries ===

Summaries must describe THIS SPECIFIC BATCH of tickets — what you actually saw in the data.
Do NOT just rephrase the category definition.

BAD (generic, just echoes the definition):
  "refund_requests": "Refund requests are from users who want their money back."
  "lost_access_password_reset": "Users cannot log into their account."

GOOD (specific to this batch):
  "refund_requests": "9 refund requests, mostly from users in Iran and Russia blocked after the Jan wave. 3 cite expired Paymentwall transactions."
  "lost_access_password_reset": "14 lockouts — majority forgot their password; 3 signed up via Apple and lost the linked email."

Write 1-2 sentences. Mention specific numbers, regions, protocols, platforms, or error patterns you saw.

=== OUTPUT FORMAT ===

Return ONLY valid JSON. No markdown, no commentary, no code fences.

The "classifications" object is the most important part. It MUST contain one entry for every
ticket number. The key is the ticket number as a string, the value is the category_id.

{
  "analysis_date": "YYYY-MM-DD",
  "category_summaries": {
    "category_id": "specific 1-2 sentence summary describing THIS batch (not the category definition)",
    ... only for categories that have at least 1 ticket ...
  },
  "new_trends": [
    {
      "title": "Short specific name (e.g. 'iOS 18.3 Crash on Launch', 'Turkey WireGuard Block Wave')",
      "ticket_numbers": [integer ticket numbers — minimum 2],
      "volume": integer,
      "description": "2-3 sentences: what is happening, probable root cause, why it is genuinely new",
      "geographic_pattern": "Countries/regions affected, or null"
    }
  ],
  "classifications": {
    "TICKET_NUMBER": "category_id",
    ... one entry for EVERY ticket in the input ...
  },
  "ticket_summaries": {
    "TICKET_NUMBER": "one-liner max 12 words — what is the user's actual problem",
    ... one entry for EVERY ticket in the input ...
  }
}

HOW TO WRITE ticket_summaries — describe what the USER actually needs, not the category name:
  BAD: "User has a connection problem" / "Payment issue" / "Refund request"
  GOOD: "Can't connect via WireGuard on Rostelecom ISP, Russia" / "Crypto payment sent 3 days ago, account still free" / "Forgot password, no longer has access to signup email"

CRITICAL — classifications AND ticket_summaries must each have EXACTLY %[1]s entries:
%[3]s

=== TICKETS TO CLASSIFY (%[1]s total) ===

%[4]s`, ticketCount, categoriesDetail.String(), allTicketNumbers, ticketsFormatted)
}
