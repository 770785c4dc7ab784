package main

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// Rotating colors for the top known categories; red is reserved for new
// trends so they stand out.
var top5Colors = []string{
	"#2563EB", // blue
	"#059669", // green
	"#D97706", // amber
	"#7C3AED", // violet
	"#0891B2", // cyan
}

const (
	newTrendColor     = "#DC2626"
	noTrendsColor     = "#22C55E"
	remainingColor    = "#CCCCCC"
	footerColor       = "#E2E8F0"
	threadOtherColor  = "#94A3B8"
	threadMaxTickets  = 25
	trendMaxTickets   = 10
	attachmentMaxText = 2800
)

type slackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackReporter formats reconciled analyses into a main summary message plus
// a threaded per-category breakdown and delivers them to one channel.
type SlackReporter struct {
	api       slackPoster
	channelID string
	baseURL   string // SupportPal web root for admin ticket links
}

func NewSlackReporter(api slackPoster, channelID, baseURL string) *SlackReporter {
	return &SlackReporter{
		api:       api,
		channelID: channelID,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// PostAnalysis posts the main summary and then the threaded breakdown.
// Thread failures are non-fatal; a main-message failure fails the delivery.
func (r *SlackReporter) PostAnalysis(analysis Analysis, numberToID map[int64]int64, numberToSubject map[int64]string) error {
	date := analysis.AnalysisDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	blocks, attachments := r.buildMainMessage(analysis, date, numberToID)

	_, ts, err := r.api.PostMessage(r.channelID,
		slack.MsgOptionText(fmt.Sprintf("TARS Support Summary — %s", date), false),
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionAttachments(attachments...),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("posting main message: %w", err)
	}
	log.Printf("slack main message posted ts=%s", ts)

	r.postThreadBreakdown(ts, analysis, numberToID, numberToSubject)
	return nil
}

// PostNoTickets posts the informational message for an empty window.
func (r *SlackReporter) PostNoTickets(hours int) error {
	_, _, err := r.api.PostMessage(r.channelID,
		slack.MsgOptionText(fmt.Sprintf("TARS: No new tickets found in the last %d hours.", hours), false),
	)
	return err
}

// PostError posts an error report in place of the summary.
func (r *SlackReporter) PostError(errorText string) error {
	_, _, err := r.api.PostMessage(r.channelID,
		slack.MsgOptionText(fmt.Sprintf("TARS Error: %s", errorText), false),
	)
	return err
}

// activeCategoriesByVolume returns categories with tickets, highest volume
// first; ties break on taxonomy order (the input order).
func activeCategoriesByVolume(analysis Analysis) []CategoryResult {
	var active []CategoryResult
	for _, c := range analysis.KnownCategories {
		if c.Volume > 0 {
			active = append(active, c)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Volume > active[j].Volume
	})
	return active
}

func (r *SlackReporter) buildMainMessage(analysis Analysis, date string, numberToID map[int64]int64) ([]slack.Block, []slack.Attachment) {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
			fmt.Sprintf("TARS Support Summary — %s", date), false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("%d tickets analyzed", analysis.TotalTicketsAnalyzed), false, false), nil, nil),
	}

	var attachments []slack.Attachment

	active := activeCategoriesByVolume(analysis)
	top5 := active
	if len(top5) > 5 {
		top5 = top5[:5]
	}
	remaining := active[len(top5):]
	remainingTickets := 0
	for _, c := range remaining {
		remainingTickets += c.Volume
	}

	for i, cat := range top5 {
		text := fmt.Sprintf("*%s* — %d tickets", cat.Title, cat.Volume)
		if short := firstSentence(cat.Summary); short != "" {
			text += fmt.Sprintf("\n_%s_", short)
		}
		attachments = append(attachments, sectionAttachment(top5Colors[i], text))
	}

	if remainingTickets > 0 {
		attachments = append(attachments, sectionAttachment(remainingColor,
			fmt.Sprintf("_%d more categories (%d tickets) — see thread for full breakdown_",
				len(remaining), remainingTickets)))
	}

	if len(analysis.NewTrends) > 0 {
		attachments = append(attachments, r.buildTrendAttachments(analysis, numberToID)...)
	} else {
		attachments = append(attachments, sectionAttachment(noTrendsColor,
			"*New / Emerging Trends*\nNo unusual trends detected today."))
	}

	attachments = append(attachments, slack.Attachment{
		Color: footerColor,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType,
				"Full per-category ticket breakdown posted in thread below.", false, false)),
		}},
	})

	return blocks, attachments
}

func (r *SlackReporter) buildTrendAttachments(analysis Analysis, numberToID map[int64]int64) []slack.Attachment {
	var attachments []slack.Attachment
	for _, trend := range analysis.NewTrends {
		geoSuffix := ""
		if trend.GeographicPattern != "" {
			geoSuffix = " | " + trend.GeographicPattern
		}
		header := fmt.Sprintf("*New Trend: %s* — %d tickets%s\n%s",
			trend.Title, trend.Volume, geoSuffix, trend.Description)

		var ticketLines []string
		display := trend.TicketNumbers
		if len(display) > trendMaxTickets {
			display = display[:trendMaxTickets]
		}
		for _, num := range display {
			line := r.ticketLink(num, numberToID)
			if detail := analysis.TicketSummaries[num]; detail != "" {
				line += ": " + detail
			}
			ticketLines = append(ticketLines, "• "+line)
		}
		if len(trend.TicketNumbers) > trendMaxTickets {
			ticketLines = append(ticketLines, fmt.Sprintf("_+%d more — see thread_",
				len(trend.TicketNumbers)-trendMaxTickets))
		}

		text := header
		if len(ticketLines) > 0 {
			text += "\n" + strings.Join(ticketLines, "\n")
		}
		if len(text) > 2900 {
			text = text[:2880] + "\n..."
		}
		attachments = append(attachments, sectionAttachment(newTrendColor, text))
	}
	return attachments
}

func (r *SlackReporter) postThreadBreakdown(threadTS string, analysis Analysis, numberToID map[int64]int64, numberToSubject map[int64]string) {
	active := activeCategoriesByVolume(analysis)
	for i, cat := range active {
		color := threadOtherColor
		if i < len(top5Colors) {
			color = top5Colors[i]
		}
		attachments := r.buildCategoryThreadAttachments(cat, color, analysis.TicketSummaries, numberToID, numberToSubject)
		if len(attachments) == 0 {
			continue
		}

		_, _, err := r.api.PostMessage(r.channelID,
			slack.MsgOptionTS(threadTS),
			slack.MsgOptionText(fmt.Sprintf("%s — %d tickets", cat.Title, cat.Volume), false),
			slack.MsgOptionAttachments(attachments...),
			slack.MsgOptionDisableLinkUnfurl(),
			slack.MsgOptionDisableMediaUnfurl(),
		)
		if err != nil {
			log.Printf("slack thread post failed category=%s: %v", cat.CategoryID, err)
		}
	}
	log.Printf("slack thread breakdown posted categories=%d", len(active))
}

func (r *SlackReporter) buildCategoryThreadAttachments(cat CategoryResult, color string, ticketSummaries map[int64]string, numberToID map[int64]int64, numberToSubject map[int64]string) []slack.Attachment {
	headerText := fmt.Sprintf("*%s* — %d tickets", cat.Title, cat.Volume)
	if cat.Summary != "" {
		headerText += fmt.Sprintf("\n_%s_", cat.Summary)
	}

	display := cat.TicketNumbers
	if len(display) > threadMaxTickets {
		display = display[:threadMaxTickets]
	}

	var ticketLines []string
	for _, num := range display {
		subject := numberToSubject[num]
		if subject == "" {
			subject = "No Subject"
		}
		line := fmt.Sprintf("• %s: %s", r.boldTicketLink(num, numberToID), subject)
		detail := ticketSummaries[num]
		if detail != "" && !strings.EqualFold(detail, subject) {
			line += fmt.Sprintf("\n   _%s_", detail)
		}
		ticketLines = append(ticketLines, line)
	}
	if remainder := len(cat.TicketNumbers) - len(display); remainder > 0 {
		ticketLines = append(ticketLines, fmt.Sprintf("\n_+%d more tickets in this category_", remainder))
	}

	// Slack caps each section text at 3000 chars; chunk and repeat the
	// color. A single line over the cap is truncated rather than emitted
	// oversized.
	var chunks []string
	current := ""
	for _, line := range append([]string{headerText, ""}, ticketLines...) {
		if len(line) > attachmentMaxText {
			line = truncateRunes(line, attachmentMaxText-3) + "..."
		}
		test := line
		if current != "" {
			test = current + "\n" + line
		}
		if len(test) > attachmentMaxText {
			if current != "" {
				chunks = append(chunks, current)
			}
			current = line
		} else {
			current = test
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}

	attachments := make([]slack.Attachment, 0, len(chunks))
	for _, chunk := range chunks {
		attachments = append(attachments, sectionAttachment(color, chunk))
	}
	return attachments
}

func (r *SlackReporter) ticketLink(num int64, numberToID map[int64]int64) string {
	if id, ok := numberToID[num]; ok {
		return fmt.Sprintf("<%s/en/admin/ticket/view/%d|#%d>", r.baseURL, id, num)
	}
	return fmt.Sprintf("#%d", num)
}

func (r *SlackReporter) boldTicketLink(num int64, numberToID map[int64]int64) string {
	if id, ok := numberToID[num]; ok {
		return fmt.Sprintf("<%s/en/admin/ticket/view/%d|*#%d*>", r.baseURL, id, num)
	}
	return fmt.Sprintf("*#%d*", num)
}

func sectionAttachment(color, text string) slack.Attachment {
	return slack.Attachment{
		Color: color,
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		}},
	}
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if idx := strings.Index(s, "."); idx >= 0 {
		return strings.TrimSpace(s[:idx]) + "."
	}
	return s
}
