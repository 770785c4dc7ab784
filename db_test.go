package main

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tars-test.db")
	db, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleAnalysis(date string, tickets int, trendTitles ...string) Analysis {
	trends := make([]TrendCluster, 0, len(trendTitles))
	for _, title := range trendTitles {
		trends = append(trends, TrendCluster{
			Title:         title,
			TicketNumbers: []int64{1, 2},
			Volume:        2,
			Description:   "desc",
		})
	}
	known := make([]CategoryResult, 0, len(KnownCategories))
	for _, c := range KnownCategories {
		known = append(known, CategoryResult{CategoryID: c.CategoryID, Title: c.Title, TicketNumbers: []int64{}})
	}
	return Analysis{
		AnalysisDate:         date,
		TotalTicketsAnalyzed: tickets,
		KnownCategories:      known,
		NewTrends:            trends,
		TicketSummaries:      map[int64]string{},
	}
}

func TestInsertAndGetAnalysis(t *testing.T) {
	db := newTestDB(t)

	id, err := InsertAnalysis(db, sampleAnalysis("2026-08-27", 42, "iOS Crash"))
	if err != nil {
		t.Fatalf("InsertAnalysis: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero id")
	}

	record, err := GetAnalysisByID(db, id)
	if err != nil {
		t.Fatalf("GetAnalysisByID: %v", err)
	}
	if record.Analysis.AnalysisDate != "2026-08-27" {
		t.Fatalf("expected date round-trip, got %q", record.Analysis.AnalysisDate)
	}
	if record.Analysis.TotalTicketsAnalyzed != 42 {
		t.Fatalf("expected 42 tickets, got %d", record.Analysis.TotalTicketsAnalyzed)
	}
	if len(record.Analysis.KnownCategories) != len(KnownCategories) {
		t.Fatalf("expected all categories in stored document")
	}
	if len(record.Analysis.NewTrends) != 1 || record.Analysis.NewTrends[0].Title != "iOS Crash" {
		t.Fatalf("expected trend round-trip, got %+v", record.Analysis.NewTrends)
	}
}

func TestGetRecentAnalysesOrderAndLimit(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 5; i++ {
		if _, err := InsertAnalysis(db, sampleAnalysis("2026-08-27", 10+i)); err != nil {
			t.Fatalf("InsertAnalysis: %v", err)
		}
	}

	records, err := GetRecentAnalyses(db, 3)
	if err != nil {
		t.Fatalf("GetRecentAnalyses: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// Most recent insert first.
	if records[0].Analysis.TotalTicketsAnalyzed != 14 {
		t.Fatalf("expected newest record first, got %d tickets", records[0].Analysis.TotalTicketsAnalyzed)
	}
}

func TestGetTrendStats(t *testing.T) {
	db := newTestDB(t)

	inserts := []Analysis{
		sampleAnalysis("2026-08-25", 30, "iOS Crash"),
		sampleAnalysis("2026-08-26", 50, "iOS Crash", "Turkey Block Wave"),
		sampleAnalysis("2026-08-26", 20),
	}
	for _, a := range inserts {
		if _, err := InsertAnalysis(db, a); err != nil {
			t.Fatalf("InsertAnalysis: %v", err)
		}
	}

	stats, err := GetTrendStats(db, 7)
	if err != nil {
		t.Fatalf("GetTrendStats: %v", err)
	}
	if stats.TotalAnalyses != 3 {
		t.Fatalf("expected 3 analyses, got %d", stats.TotalAnalyses)
	}
	if stats.TotalTickets != 100 {
		t.Fatalf("expected 100 tickets, got %d", stats.TotalTickets)
	}
	if stats.TotalTrends != 3 {
		t.Fatalf("expected 3 trends, got %d", stats.TotalTrends)
	}
	if got := stats.AvgTicketsPerRun; got < 33.3 || got > 33.4 {
		t.Fatalf("expected avg ~33.33, got %f", got)
	}

	day := stats.DailyBreakdown["2026-08-26"]
	if day.Analyses != 2 || day.Tickets != 70 || day.Trends != 2 {
		t.Fatalf("unexpected daily breakdown for 2026-08-26: %+v", day)
	}

	if len(stats.TopRecurring) != 2 {
		t.Fatalf("expected 2 recurring trends, got %d", len(stats.TopRecurring))
	}
	if stats.TopRecurring[0].Title != "iOS Crash" || stats.TopRecurring[0].Count != 2 {
		t.Fatalf("expected iOS Crash first with count 2, got %+v", stats.TopRecurring[0])
	}
}

func TestTopRecurringTrendsOrdering(t *testing.T) {
	got := topRecurringTrends(map[string]int{"b": 2, "a": 2, "c": 5}, 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Title != "c" || got[1].Title != "a" || got[2].Title != "b" {
		t.Fatalf("expected count-desc then title-asc order, got %+v", got)
	}

	limited := topRecurringTrends(map[string]int{"a": 1, "b": 1, "c": 1}, 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit applied, got %d", len(limited))
	}
}

func TestGetDashboardStats(t *testing.T) {
	db := newTestDB(t)

	stats, err := GetDashboardStats(db)
	if err != nil {
		t.Fatalf("GetDashboardStats on empty db: %v", err)
	}
	if stats.TotalAnalyses != 0 || stats.LatestDate != "" {
		t.Fatalf("expected zero stats on empty db, got %+v", stats)
	}

	if _, err := InsertAnalysis(db, sampleAnalysis("2026-08-27", 33, "iOS Crash")); err != nil {
		t.Fatalf("InsertAnalysis: %v", err)
	}

	stats, err = GetDashboardStats(db)
	if err != nil {
		t.Fatalf("GetDashboardStats: %v", err)
	}
	if stats.LatestDate != "2026-08-27" || stats.LatestTickets != 33 || stats.LatestTrends != 1 {
		t.Fatalf("unexpected latest stats: %+v", stats)
	}
	if stats.TotalAnalyses != 1 {
		t.Fatalf("expected 1 total analysis, got %d", stats.TotalAnalyses)
	}
	if stats.Last7DaysTickets != 33 {
		t.Fatalf("expected 33 tickets in last 7 days, got %d", stats.Last7DaysTickets)
	}
}

func TestPromptTemplateRoundTrip(t *testing.T) {
	db := newTestDB(t)

	template, err := GetPromptTemplate(db)
	if err != nil {
		t.Fatalf("GetPromptTemplate on empty db: %v", err)
	}
	if template != "" {
		t.Fatalf("expected empty template before any save, got %q", template)
	}

	if err := SavePromptTemplate(db, "first {{TICKET_COUNT}}", "alice"); err != nil {
		t.Fatalf("SavePromptTemplate: %v", err)
	}
	if err := SavePromptTemplate(db, "second {{TICKET_COUNT}}", "bob"); err != nil {
		t.Fatalf("SavePromptTemplate: %v", err)
	}

	template, err = GetPromptTemplate(db)
	if err != nil {
		t.Fatalf("GetPromptTemplate: %v", err)
	}
	if template != "second {{TICKET_COUNT}}" {
		t.Fatalf("expected latest revision, got %q", template)
	}
}
