package main

import (
	"log"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	api := slack.New(cfg.SlackBotToken)
	source := NewSupportPalClient(cfg.SupportPalAPIURL, cfg.SupportPalAPIKey)
	reporter := NewSlackReporter(api, cfg.SlackChannelID, source.BaseURL())
	pipeline := NewPipeline(cfg, db, source, reporter)

	StartScheduler(cfg, pipeline)

	log.Println("Starting TARS - Ticket Analysis & Reporting System...")
	if err := NewServer(cfg, db, pipeline).ListenAndServe(); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}
