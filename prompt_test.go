package main

import (
	"strings"
	"testing"
)

func TestBuildAnalysisPromptBuiltin(t *testing.T) {
	tickets := []Ticket{
		{Number: 101, Subject: "Netflix not working", FirstMessage: "<p>Proxy error on Toronto server</p>"},
		{Number: 102, Subject: "Refund please", FirstMessage: "Charged twice &amp; want money back"},
	}

	prompt := BuildAnalysisPrompt(tickets, "")

	for _, want := range []string{
		"You will receive 2 support tickets",
		"[101, 102]",
		"Ticket #101",
		"Subject: Netflix not working",
		"Message: Proxy error on Toronto server",
		"Charged twice & want money back",
		"Return ONLY valid JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("built-in prompt missing %q", want)
		}
	}

	// Every category must be described so the model cannot invent ids.
	for _, c := range KnownCategories {
		if !strings.Contains(prompt, c.CategoryID) {
			t.Fatalf("built-in prompt missing category %s", c.CategoryID)
		}
	}
}

func TestBuildAnalysisPromptDeterministic(t *testing.T) {
	tickets := []Ticket{
		{Number: 1, Subject: "a", FirstMessage: "x"},
		{Number: 2, Subject: "b", FirstMessage: "y"},
	}
	first := BuildAnalysisPrompt(tickets, "")
	second := BuildAnalysisPrompt(tickets, "")
	if first != second {
		t.Fatalf("prompt is not deterministic for identical input")
	}
}

func TestBuildAnalysisPromptCustomTemplate(t *testing.T) {
	tickets := []Ticket{
		{Number: 7, Subject: "s", FirstMessage: "m"},
		{Number: 8, Subject: "s2", FirstMessage: "m2"},
	}
	template := "Classify {{TICKET_COUNT}} tickets: {{ALL_TICKET_NUMBERS}}\n\n{{TICKETS_FORMATTED}}"

	prompt := BuildAnalysisPrompt(tickets, template)

	if !strings.HasPrefix(prompt, "Classify 2 tickets: [7, 8]") {
		t.Fatalf("template substitution failed: %q", prompt[:min(80, len(prompt))])
	}
	if !strings.Contains(prompt, "Ticket #7") || !strings.Contains(prompt, "Ticket #8") {
		t.Fatalf("template substitution missing formatted tickets")
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("unsubstituted placeholder left in prompt")
	}
}

func TestBuildAnalysisPromptRepeatedPlaceholders(t *testing.T) {
	tickets := []Ticket{{Number: 1, Subject: "s", FirstMessage: "m"}}
	prompt := BuildAnalysisPrompt(tickets, "{{TICKET_COUNT}} and again {{TICKET_COUNT}}")
	if prompt != "1 and again 1" {
		t.Fatalf("expected every occurrence substituted, got %q", prompt)
	}
}

func TestBuildAnalysisPromptUnusableTemplateFallsBack(t *testing.T) {
	tickets := []Ticket{
		{Number: 1, Subject: "s", FirstMessage: "m"},
		{Number: 2, Subject: "s2", FirstMessage: "m2"},
	}
	for _, template := range []string{"   ", "just some words with no slots", "{{UNKNOWN_SLOT}}"} {
		prompt := BuildAnalysisPrompt(tickets, template)
		if !strings.Contains(prompt, "NEW TREND SCAN") {
			t.Fatalf("expected fallback to built-in prompt for template %q", template)
		}
	}
}

func TestBuildAnalysisPromptTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", promptMessageMaxChars*2)
	tickets := []Ticket{{Number: 1, Subject: "s", FirstMessage: long}}

	prompt := BuildAnalysisPrompt(tickets, "{{TICKETS_FORMATTED}}")

	if strings.Contains(prompt, long) {
		t.Fatalf("expected long message to be truncated")
	}
	if !strings.Contains(prompt, strings.Repeat("x", promptMessageMaxChars)) {
		t.Fatalf("expected message cut at %d characters", promptMessageMaxChars)
	}
}
