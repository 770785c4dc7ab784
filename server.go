package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/slack-go/slack"
)

// Server exposes the manual trigger surface (a plain /analyze endpoint for
// external callers and the /tars slash command with Slack signature
// verification) plus read-only ops endpoints over stored analyses.
type Server struct {
	cfg      Config
	db       *sql.DB
	pipeline *Pipeline
}

func NewServer(cfg Config, db *sql.DB, pipeline *Pipeline) *Server {
	return &Server{cfg: cfg, db: db, pipeline: pipeline}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/slack/command", s.handleSlackCommand)
	mux.HandleFunc("/analyses", s.handleAnalyses)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/prompt-template", s.handlePromptTemplate)
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ServerHost, s.cfg.ServerPort)
	log.Printf("http server listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        "TARS",
		"description": "Ticket Analysis & Reporting System",
		"version":     "1.0.0",
		"status":      "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "TARS",
	})
}

// handleAnalyze triggers a synchronous run. Body: {"hours": N}, default 24.
// Meant for external schedulers and ops tooling, not for Slack.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hours := s.cfg.DefaultLookbackHours
	var payload struct {
		Hours int `json:"hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err == nil && payload.Hours > 0 {
		hours = payload.Hours
	}
	if hours > maxLookbackHours {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("hours must be <= %d", maxLookbackHours),
		})
		return
	}

	log.Printf("manual analysis triggered hours=%d", hours)
	err := s.pipeline.Run(hours)
	switch {
	case errors.Is(err, ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "error",
			"message": "analysis already in progress",
		})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "analysis failed - check logs",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "analysis completed and posted to Slack",
		})
	}
}

// handleAnalyses returns recent analysis records, newest first.
// Query params: limit (default 10, max 100), or id for a single record.
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if v := r.URL.Query().Get("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error", "message": "invalid id",
			})
			return
		}
		record, err := GetAnalysisByID(s.db, id)
		if err == sql.ErrNoRows {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"status": "error", "message": "analysis not found",
			})
			return
		}
		if err != nil {
			log.Printf("analysis query error id=%d: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "failed to load analysis",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success", "id": record.ID, "analysis": record.Analysis,
		})
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	records, err := GetRecentAnalyses(s.db, limit)
	if err != nil {
		log.Printf("analyses query error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": "failed to load analyses",
		})
		return
	}

	type analysisEntry struct {
		ID        int64    `json:"id"`
		CreatedAt string   `json:"created_at"`
		Analysis  Analysis `json:"analysis"`
	}
	entries := make([]analysisEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, analysisEntry{
			ID:        record.ID,
			CreatedAt: record.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Analysis:  record.Analysis,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "analyses": entries})
}

// handleStats returns trend aggregates over a lookback window plus the
// dashboard snapshot. Query params: days (default 7, max 90).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	if days > 90 {
		days = 90
	}

	trends, err := GetTrendStats(s.db, days)
	if err != nil {
		log.Printf("trend stats query error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": "failed to load stats",
		})
		return
	}
	dashboard, err := GetDashboardStats(s.db)
	if err != nil {
		log.Printf("dashboard stats query error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "message": "failed to load stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"trends":    trends,
		"dashboard": dashboard,
	})
}

// handlePromptTemplate reads or replaces the stored override template. An
// empty GET result means the built-in prompt is in use; POST with
// {"template": "..."} saves a new revision.
func (s *Server) handlePromptTemplate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		template, err := GetPromptTemplate(s.db)
		if err != nil {
			log.Printf("prompt template query error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "failed to load template",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "success",
			"template": template,
			"builtin":  template == "",
		})
	case http.MethodPost:
		var payload struct {
			Template  string `json:"template"`
			UpdatedBy string `json:"updated_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error", "message": "invalid request body",
			})
			return
		}
		if err := SavePromptTemplate(s.db, payload.Template, payload.UpdatedBy); err != nil {
			log.Printf("prompt template save error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "failed to save template",
			})
			return
		}
		log.Printf("prompt template updated by=%q chars=%d", payload.UpdatedBy, len(payload.Template))
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSlackCommand verifies the request signature, acknowledges
// immediately, and runs the analysis on a background goroutine. Results go
// to the report channel; failures go back through the response_url. Once a
// run starts there is no cancellation.
func (s *Server) handleSlackCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.SlackSigningSecret == "" {
		log.Printf("slack command rejected: signing secret not configured")
		writeJSON(w, http.StatusOK, slack.Msg{
			ResponseType: slack.ResponseTypeEphemeral,
			Text:         "Slash commands not configured. Please contact admin.",
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	verifier, err := slack.NewSecretsVerifier(r.Header, s.cfg.SlackSigningSecret)
	if err != nil {
		log.Printf("slack signature header error: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if _, err := verifier.Write(body); err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	if err := verifier.Ensure(); err != nil {
		log.Printf("slack signature verification failed: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	log.Printf("slash command received: %s %s user=%s channel=%s", cmd.Command, cmd.Text, cmd.UserID, cmd.ChannelID)

	action, hours := parseCommand(cmd.Text)
	switch action {
	case commandHelp:
		writeJSON(w, http.StatusOK, helpResponse())
	case commandError:
		writeJSON(w, http.StatusOK, errorResponse("invalid"))
	case commandAnalyze:
		if s.pipeline.Running() {
			writeJSON(w, http.StatusOK, errorResponse("busy"))
			return
		}
		go s.runAnalysisBackground(hours, cmd.ResponseURL)
		writeJSON(w, http.StatusOK, analyzingResponse(hours))
	default:
		writeJSON(w, http.StatusOK, errorResponse("unknown"))
	}
}

// runAnalysisBackground runs the pipeline after the slash command has been
// acknowledged. The report itself lands in the report channel; only failures
// are relayed to the caller's response_url.
func (s *Server) runAnalysisBackground(hours int, responseURL string) {
	log.Printf("background analysis started hours=%d", hours)
	err := s.pipeline.Run(hours)
	if err == nil {
		return
	}
	if errors.Is(err, ErrRunInProgress) {
		postToResponseURL(responseURL, errorResponse("busy"))
		return
	}
	postToResponseURL(responseURL, slack.Msg{
		ResponseType: slack.ResponseTypeEphemeral,
		Text:         "Analysis failed. Please check logs or contact support.",
	})
}

func postToResponseURL(responseURL string, msg slack.Msg) {
	if responseURL == "" {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	resp, err := externalHTTPClient.Post(responseURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("response_url post error: %v", err)
		return
	}
	resp.Body.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writing response: %v", err)
	}
}
