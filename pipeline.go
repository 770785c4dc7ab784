package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Seam for tests: swapped out to avoid real model calls.
var analyzeTicketsFn = AnalyzeTickets

// ErrRunInProgress is returned when a trigger fires while a run is already
// in flight. Overlapping runs would double-post to the report channel.
var ErrRunInProgress = errors.New("analysis run already in progress")

type ticketSource interface {
	FetchTickets(hours int) ([]Ticket, error)
}

type analysisReporter interface {
	PostAnalysis(analysis Analysis, numberToID map[int64]int64, numberToSubject map[int64]string) error
	PostNoTickets(hours int) error
	PostError(errorText string) error
}

// Pipeline sequences one full run: fetch → analyze → persist → deliver.
// Collaborators are injected and owned here; there is no process-wide
// mutable state.
type Pipeline struct {
	cfg      Config
	db       *sql.DB
	source   ticketSource
	reporter analysisReporter
	running  atomic.Bool
}

func NewPipeline(cfg Config, db *sql.DB, source ticketSource, reporter analysisReporter) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		source:   source,
		reporter: reporter,
	}
}

// Run executes one analysis run over the last `hours` hours. At most one run
// is in flight at a time; concurrent triggers get ErrRunInProgress. An empty
// ticket window is success (an informational message is posted). A model
// failure is fatal and posts an error report; a persistence failure is
// logged and the run continues to delivery; a delivery failure fails the run
// but the persisted record is retained.
func (p *Pipeline) Run(hours int) error {
	if !p.running.CompareAndSwap(false, true) {
		log.Printf("pipeline run refused: already in progress")
		return ErrRunInProgress
	}
	defer p.running.Store(false)

	log.Printf("pipeline run started lookback_hours=%d", hours)

	tickets, err := p.source.FetchTickets(hours)
	if err != nil {
		log.Printf("pipeline fetch error: %v", err)
		p.postError(fmt.Sprintf("Failed to fetch tickets: %v", err))
		return fmt.Errorf("fetching tickets: %w", err)
	}
	if len(tickets) == 0 {
		log.Printf("pipeline no tickets in last %dh, nothing to do", hours)
		if err := p.reporter.PostNoTickets(hours); err != nil {
			log.Printf("pipeline no-tickets post error: %v", err)
		}
		return nil
	}
	log.Printf("pipeline fetched tickets=%d", len(tickets))

	template, err := GetPromptTemplate(p.db)
	if err != nil {
		// The built-in prompt is always available; a template read failure
		// must not block the run.
		log.Printf("pipeline template load error (using built-in): %v", err)
		template = ""
	}

	analysis, usage, err := analyzeTicketsFn(p.cfg, tickets, template)
	if err != nil {
		log.Printf("pipeline analysis error: %v", err)
		p.postError(fmt.Sprintf("AI analysis failed: %v", err))
		return fmt.Errorf("analyzing tickets: %w", err)
	}
	if analysis.AnalysisDate == "" {
		analysis.AnalysisDate = time.Now().Format("2006-01-02")
	}
	log.Printf("pipeline analysis complete tickets=%d trends=%d tokens=%d",
		analysis.TotalTicketsAnalyzed, len(analysis.NewTrends), usage.TotalTokens())

	// Losing a historical copy must not block the user-facing report.
	if id, err := InsertAnalysis(p.db, analysis); err != nil {
		log.Printf("pipeline persist error (continuing to delivery): %v", err)
	} else {
		log.Printf("pipeline analysis saved id=%d", id)
	}

	numberToID := make(map[int64]int64, len(tickets))
	numberToSubject := make(map[int64]string, len(tickets))
	for _, t := range tickets {
		numberToID[t.Number] = t.ID
		numberToSubject[t.Number] = t.Subject
	}

	if err := p.reporter.PostAnalysis(analysis, numberToID, numberToSubject); err != nil {
		log.Printf("pipeline delivery error: %v", err)
		p.postError(fmt.Sprintf("Failed to post report: %v", err))
		return fmt.Errorf("delivering report: %w", err)
	}

	log.Printf("pipeline run completed tickets=%d trends=%d", len(tickets), len(analysis.NewTrends))
	return nil
}

// Running reports whether a run is currently in flight.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

func (p *Pipeline) postError(text string) {
	if err := p.reporter.PostError(text); err != nil {
		log.Printf("pipeline error post failed: %v", err)
	}
}
