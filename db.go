package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		analysis_date  TEXT NOT NULL,
		total_tickets  INTEGER NOT NULL,
		trend_count    INTEGER NOT NULL,
		document       TEXT NOT NULL,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_date ON analyses(analysis_date);

	CREATE TABLE IF NOT EXISTS prompt_templates (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		template   TEXT NOT NULL,
		updated_by TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// AnalysisRecord is the persisted envelope for one run. Append-only: records
// are never mutated after creation.
type AnalysisRecord struct {
	ID        int64
	Analysis  Analysis
	CreatedAt time.Time
}

func InsertAnalysis(db *sql.DB, analysis Analysis) (int64, error) {
	document, err := json.Marshal(analysis)
	if err != nil {
		return 0, fmt.Errorf("marshaling analysis: %w", err)
	}
	res, err := db.Exec(
		`INSERT INTO analyses (analysis_date, total_tickets, trend_count, document)
		 VALUES (?, ?, ?, ?)`,
		analysis.AnalysisDate, analysis.TotalTicketsAnalyzed, len(analysis.NewTrends), string(document),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetRecentAnalyses(db *sql.DB, limit int) ([]AnalysisRecord, error) {
	rows, err := db.Query(
		`SELECT id, document, created_at FROM analyses
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		record, err := scanAnalysisRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func GetAnalysisByID(db *sql.DB, id int64) (AnalysisRecord, error) {
	row := db.QueryRow(`SELECT id, document, created_at FROM analyses WHERE id = ?`, id)
	return scanAnalysisRow(row.Scan)
}

func scanAnalysisRow(scan func(...any) error) (AnalysisRecord, error) {
	var record AnalysisRecord
	var document string
	if err := scan(&record.ID, &document, &record.CreatedAt); err != nil {
		return record, err
	}
	if err := json.Unmarshal([]byte(document), &record.Analysis); err != nil {
		return record, fmt.Errorf("parsing stored analysis %d: %w", record.ID, err)
	}
	return record, nil
}

// --- Trend aggregates ---

type DailyBreakdown struct {
	Tickets  int
	Trends   int
	Analyses int
}

type RecurringTrend struct {
	Title string
	Count int
}

// TrendStats summarizes stored analyses over a lookback window.
type TrendStats struct {
	PeriodDays       int
	TotalAnalyses    int
	TotalTickets     int
	TotalTrends      int
	DailyBreakdown   map[string]DailyBreakdown
	TopRecurring     []RecurringTrend
	AvgTicketsPerRun float64
}

func GetTrendStats(db *sql.DB, days int) (TrendStats, error) {
	stats := TrendStats{
		PeriodDays:     days,
		DailyBreakdown: make(map[string]DailyBreakdown),
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	records, err := analysesSince(db, since)
	if err != nil {
		return stats, err
	}

	trendFrequency := make(map[string]int)
	for _, record := range records {
		stats.TotalAnalyses++
		stats.TotalTickets += record.Analysis.TotalTicketsAnalyzed
		stats.TotalTrends += len(record.Analysis.NewTrends)

		dateKey := record.Analysis.AnalysisDate
		if dateKey == "" {
			dateKey = record.CreatedAt.UTC().Format("2006-01-02")
		}
		day := stats.DailyBreakdown[dateKey]
		day.Tickets += record.Analysis.TotalTicketsAnalyzed
		day.Trends += len(record.Analysis.NewTrends)
		day.Analyses++
		stats.DailyBreakdown[dateKey] = day

		for _, trend := range record.Analysis.NewTrends {
			trendFrequency[trend.Title]++
		}
	}

	if stats.TotalAnalyses > 0 {
		stats.AvgTicketsPerRun = float64(stats.TotalTickets) / float64(stats.TotalAnalyses)
	}
	stats.TopRecurring = topRecurringTrends(trendFrequency, 10)
	return stats, nil
}

func analysesSince(db *sql.DB, since time.Time) ([]AnalysisRecord, error) {
	rows, err := db.Query(
		`SELECT id, document, created_at FROM analyses
		 WHERE created_at >= ? ORDER BY created_at DESC, id DESC`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		record, err := scanAnalysisRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func topRecurringTrends(frequency map[string]int, limit int) []RecurringTrend {
	out := make([]RecurringTrend, 0, len(frequency))
	for title, count := range frequency {
		out = append(out, RecurringTrend{Title: title, Count: count})
	}
	// Count descending, title ascending for a stable order.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Title < out[j].Title
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// --- Dashboard stats ---

type DashboardStats struct {
	LatestDate       string
	LatestTickets    int
	LatestTrends     int
	TodayAnalyses    int
	TotalAnalyses    int
	Last7DaysTickets int
}

func GetDashboardStats(db *sql.DB) (DashboardStats, error) {
	var stats DashboardStats

	latest, err := GetRecentAnalyses(db, 1)
	if err != nil {
		return stats, err
	}
	if len(latest) > 0 {
		stats.LatestDate = latest[0].Analysis.AnalysisDate
		stats.LatestTickets = latest[0].Analysis.TotalTicketsAnalyzed
		stats.LatestTrends = len(latest[0].Analysis.NewTrends)
	}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM analyses WHERE created_at >= ?`, todayStart,
	).Scan(&stats.TodayAnalyses); err != nil {
		return stats, err
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM analyses`).Scan(&stats.TotalAnalyses); err != nil {
		return stats, err
	}

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	if err := db.QueryRow(
		`SELECT COALESCE(SUM(total_tickets), 0) FROM analyses WHERE created_at >= ?`, weekAgo,
	).Scan(&stats.Last7DaysTickets); err != nil {
		return stats, err
	}

	return stats, nil
}

// --- Prompt templates ---

// SavePromptTemplate stores a new override template revision. The latest
// revision wins; history is kept.
func SavePromptTemplate(db *sql.DB, template, updatedBy string) error {
	_, err := db.Exec(
		`INSERT INTO prompt_templates (template, updated_by) VALUES (?, ?)`,
		template, updatedBy,
	)
	return err
}

// GetPromptTemplate returns the latest stored override template, or "" when
// none has been saved (the built-in prompt is used in that case).
func GetPromptTemplate(db *sql.DB) (string, error) {
	var template string
	err := db.QueryRow(
		`SELECT template FROM prompt_templates ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&template)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return template, err
}
