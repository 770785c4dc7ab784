package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const supportPalPageSize = 100

// SupportPalClient fetches tickets and their messages from the SupportPal
// REST API. Constructed once by the orchestrator; safe to call repeatedly.
type SupportPalClient struct {
	apiURL   string
	apiToken string
	client   *http.Client
}

func NewSupportPalClient(apiURL, apiToken string) *SupportPalClient {
	return &SupportPalClient{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiToken: apiToken,
		client:   externalHTTPClient,
	}
}

// BaseURL is the SupportPal web root (API path stripped), used for building
// admin ticket links in reports.
func (c *SupportPalClient) BaseURL() string {
	return strings.TrimRight(strings.TrimSuffix(c.apiURL, "/api"), "/")
}

type supportPalEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type supportPalTicket struct {
	ID           int64  `json:"id"`
	Number       int64  `json:"number"`
	Subject      string `json:"subject"`
	CreatedAt    int64  `json:"created_at"`
	StatusName   string `json:"status_name"`
	PriorityName string `json:"priority_name"`
}

type supportPalMessage struct {
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// FetchTickets returns every ticket created in the last `hours` hours,
// enriched with the user's first message. Tickets without any message are
// skipped. An empty result means nothing to do, not an error.
func (c *SupportPalClient) FetchTickets(hours int) ([]Ticket, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	raw, err := c.fetchTicketsSince(since)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		log.Printf("supportpal no tickets since %s", since.Format(time.RFC3339))
		return nil, nil
	}

	var tickets []Ticket
	for _, t := range raw {
		firstMessage, err := c.firstMessageBody(t.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching messages for ticket %d: %w", t.ID, err)
		}
		if firstMessage == "" {
			log.Printf("supportpal ticket id=%d number=%d has no messages, skipping", t.ID, t.Number)
			continue
		}
		number := t.Number
		if number == 0 {
			number = t.ID
		}
		subject := t.Subject
		if subject == "" {
			subject = "No Subject"
		}
		tickets = append(tickets, Ticket{
			ID:           t.ID,
			Number:       number,
			Subject:      subject,
			FirstMessage: firstMessage,
			CreatedAt:    time.Unix(t.CreatedAt, 0),
			Status:       t.StatusName,
			Priority:     t.PriorityName,
		})
	}

	log.Printf("supportpal prepared %d/%d tickets for analysis", len(tickets), len(raw))
	return tickets, nil
}

func (c *SupportPalClient) fetchTicketsSince(since time.Time) ([]supportPalTicket, error) {
	createdAtMin := since.Unix()

	var all []supportPalTicket
	start := 1

	for {
		params := url.Values{}
		params.Set("created_at_min", fmt.Sprintf("%d", createdAtMin))
		params.Set("start", fmt.Sprintf("%d", start))
		params.Set("limit", fmt.Sprintf("%d", supportPalPageSize))
		params.Set("order_column", "created_at")
		params.Set("order_direction", "desc")

		var page []supportPalTicket
		if err := c.get("/ticket/ticket", params, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		log.Printf("supportpal fetched page tickets=%d total=%d", len(page), len(all))

		if len(page) < supportPalPageSize {
			break
		}
		start += supportPalPageSize
	}

	return all, nil
}

func (c *SupportPalClient) firstMessageBody(ticketID int64) (string, error) {
	params := url.Values{}
	params.Set("ticket_id", fmt.Sprintf("%d", ticketID))
	params.Set("include_draft", "0")
	params.Set("type", "0") // ticket messages only, not operator notes
	params.Set("order_column", "created_at")
	params.Set("order_direction", "asc")

	var messages []supportPalMessage
	if err := c.get("/ticket/message", params, &messages); err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", nil
	}
	return messages[0].Text, nil
}

func (c *SupportPalClient) get(path string, params url.Values, out any) error {
	apiURL := c.apiURL + path + "?" + params.Encode()

	req, err := http.NewRequest("GET", apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	// SupportPal basic auth: token as username, "X" as password.
	req.SetBasicAuth(c.apiToken, "X")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != 200 {
		return fmt.Errorf("SupportPal API returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope supportPalEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	if envelope.Status != "success" {
		return fmt.Errorf("SupportPal API returned status %q", envelope.Status)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parsing response data: %w", err)
	}
	return nil
}
