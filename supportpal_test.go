package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// newSupportPalTestServer serves a canned SupportPal API: a pageable ticket
// list and per-ticket first messages.
func newSupportPalTestServer(t *testing.T, tickets []supportPalTicket, messages map[int64]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-token" || pass != "X" {
			t.Errorf("unexpected basic auth user=%q pass=%q", user, pass)
		}

		switch r.URL.Path {
		case "/api/ticket/ticket":
			start, _ := strconv.Atoi(r.URL.Query().Get("start"))
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			if start < 1 {
				start = 1
			}
			lo := start - 1
			hi := lo + limit
			if lo > len(tickets) {
				lo = len(tickets)
			}
			if hi > len(tickets) {
				hi = len(tickets)
			}
			writeEnvelope(w, tickets[lo:hi])
		case "/api/ticket/message":
			id, _ := strconv.ParseInt(r.URL.Query().Get("ticket_id"), 10, 64)
			body, ok := messages[id]
			if !ok {
				writeEnvelope(w, []supportPalMessage{})
				return
			}
			writeEnvelope(w, []supportPalMessage{{Text: body, CreatedAt: 1724700000}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
}

func writeEnvelope(w http.ResponseWriter, data any) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": json.RawMessage(raw)})
}

func TestFetchTicketsEnrichment(t *testing.T) {
	srv := newSupportPalTestServer(t,
		[]supportPalTicket{
			{ID: 1, Number: 5001, Subject: "Netflix broken", CreatedAt: 1724700000},
			{ID: 2, Number: 5002, Subject: "", CreatedAt: 1724700100},
			{ID: 3, Number: 0, Subject: "No number", CreatedAt: 1724700200},
		},
		map[int64]string{
			1: "<p>Proxy error</p>",
			2: "Refund please",
			3: "Body three",
		})
	defer srv.Close()

	client := NewSupportPalClient(srv.URL+"/api", "test-token")
	tickets, err := client.FetchTickets(24)
	if err != nil {
		t.Fatalf("FetchTickets: %v", err)
	}
	if len(tickets) != 3 {
		t.Fatalf("expected 3 tickets, got %d", len(tickets))
	}
	if tickets[0].FirstMessage != "<p>Proxy error</p>" {
		t.Fatalf("expected raw first message, got %q", tickets[0].FirstMessage)
	}
	if tickets[1].Subject != "No Subject" {
		t.Fatalf("expected empty subject defaulted, got %q", tickets[1].Subject)
	}
	if tickets[2].Number != 3 {
		t.Fatalf("expected number fallback to id, got %d", tickets[2].Number)
	}
}

func TestFetchTicketsSkipsMessageless(t *testing.T) {
	srv := newSupportPalTestServer(t,
		[]supportPalTicket{
			{ID: 1, Number: 5001, Subject: "Has message"},
			{ID: 2, Number: 5002, Subject: "Empty shell"},
		},
		map[int64]string{1: "only this one"})
	defer srv.Close()

	client := NewSupportPalClient(srv.URL+"/api", "test-token")
	tickets, err := client.FetchTickets(24)
	if err != nil {
		t.Fatalf("FetchTickets: %v", err)
	}
	if len(tickets) != 1 || tickets[0].Number != 5001 {
		t.Fatalf("expected only the ticket with a message, got %+v", tickets)
	}
}

func TestFetchTicketsPaging(t *testing.T) {
	var all []supportPalTicket
	messages := make(map[int64]string)
	for i := int64(1); i <= supportPalPageSize+5; i++ {
		all = append(all, supportPalTicket{ID: i, Number: 6000 + i, Subject: fmt.Sprintf("T%d", i)})
		messages[i] = fmt.Sprintf("body %d", i)
	}
	srv := newSupportPalTestServer(t, all, messages)
	defer srv.Close()

	client := NewSupportPalClient(srv.URL+"/api", "test-token")
	tickets, err := client.FetchTickets(24)
	if err != nil {
		t.Fatalf("FetchTickets: %v", err)
	}
	if len(tickets) != supportPalPageSize+5 {
		t.Fatalf("expected %d tickets across pages, got %d", supportPalPageSize+5, len(tickets))
	}
}

func TestFetchTicketsEmptyWindow(t *testing.T) {
	srv := newSupportPalTestServer(t, nil, nil)
	defer srv.Close()

	client := NewSupportPalClient(srv.URL+"/api", "test-token")
	tickets, err := client.FetchTickets(24)
	if err != nil {
		t.Fatalf("FetchTickets: %v", err)
	}
	if len(tickets) != 0 {
		t.Fatalf("expected empty result, got %d", len(tickets))
	}
}

func TestFetchTicketsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer srv.Close()

	client := NewSupportPalClient(srv.URL+"/api", "test-token")
	if _, err := client.FetchTickets(24); err == nil {
		t.Fatalf("expected error on HTTP 500")
	}
}

func TestFetchTicketsEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": "bad token"})
	}))
	defer srv.Close()

	client := NewSupportPalClient(srv.URL+"/api", "test-token")
	if _, err := client.FetchTickets(24); err == nil {
		t.Fatalf("expected error on non-success envelope")
	}
}

func TestBaseURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://support.example.com/api", "https://support.example.com"},
		{"https://support.example.com/api/", "https://support.example.com"},
		{"https://support.example.com", "https://support.example.com"},
	}
	for _, tc := range cases {
		if got := NewSupportPalClient(tc.in, "t").BaseURL(); got != tc.want {
			t.Fatalf("BaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
