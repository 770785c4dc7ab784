package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
)

// Commands accepted by /tars. Lookback is capped at 90 days in either unit.
const (
	commandAnalyze = "analyze"
	commandHelp    = "help"
	commandError   = "error"
	commandUnknown = "unknown"

	maxLookbackHours = 90 * 24
	defaultLookback  = 24
)

// parseCommand parses the text of a /tars invocation into an action and a
// lookback in hours. "analyze" defaults to 24h; "analyze 7d" means 7 days;
// "analyze 48" means 48 hours.
func parseCommand(text string) (string, int) {
	text = strings.ToLower(strings.TrimSpace(text))

	if text == "" || text == commandAnalyze {
		return commandAnalyze, defaultLookback
	}
	if text == commandHelp {
		return commandHelp, 0
	}
	if !strings.HasPrefix(text, commandAnalyze) {
		return commandUnknown, 0
	}

	parts := strings.Fields(text)
	if len(parts) == 1 {
		return commandAnalyze, defaultLookback
	}
	timeSpec := parts[1]

	if strings.HasSuffix(timeSpec, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(timeSpec, "d"))
		if err != nil || days <= 0 || days*24 > maxLookbackHours {
			return commandError, 0
		}
		return commandAnalyze, days * 24
	}

	hours, err := strconv.Atoi(timeSpec)
	if err != nil || hours <= 0 || hours > maxLookbackHours {
		return commandError, 0
	}
	return commandAnalyze, hours
}

func lookbackPhrase(hours int) string {
	switch {
	case hours == 24:
		return "last 24 hours"
	case hours > 24 && hours%24 == 0:
		days := hours / 24
		if days == 1 {
			return "last 1 day"
		}
		return fmt.Sprintf("last %d days", days)
	default:
		return fmt.Sprintf("last %d hours", hours)
	}
}

// analyzingResponse is the immediate public acknowledgment returned before
// the background run starts.
func analyzingResponse(hours int) slack.Msg {
	return slack.Msg{
		ResponseType: slack.ResponseTypeInChannel,
		Text:         fmt.Sprintf("Analyzing tickets from %s... This will take 30-60 seconds.", lookbackPhrase(hours)),
	}
}

func helpResponse() slack.Msg {
	return slack.Msg{
		ResponseType: slack.ResponseTypeInChannel,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
				"*TARS — Ticket Analysis & Reporting System*\n\nI analyze support tickets, classify them into known categories, and flag emerging trends.", false, false), nil, nil),
			slack.NewDividerBlock(),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
				"*Commands:*\n\n"+
					"`/tars analyze`\n→ Analyzes tickets from last 24 hours (default)\n\n"+
					"`/tars analyze [hours]`\n→ Custom time range in hours\n_Examples: /tars analyze 6, /tars analyze 48_\n\n"+
					"`/tars analyze [days]d`\n→ Custom time range in days\n_Examples: /tars analyze 7d, /tars analyze 30d_\n\n"+
					"`/tars help`\n→ Shows this message", false, false), nil, nil),
			slack.NewDividerBlock(),
			slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType,
					"Analysis typically takes 30-60 seconds\nReports are posted to the configured channel", false, false)),
		}},
	}
}

func errorResponse(errorType string) slack.Msg {
	var text string
	switch errorType {
	case "invalid":
		text = "Invalid time format. Use `/tars help` for examples.\n\nValid formats: `/tars analyze 6`, `/tars analyze 7d`"
	case "unknown":
		text = "Unknown command. Use `/tars help` to see available commands."
	case "busy":
		text = "An analysis run is already in progress. Please wait for it to finish."
	default:
		text = "An error occurred. Please try again or use `/tars help`."
	}
	return slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         text,
	}
}
