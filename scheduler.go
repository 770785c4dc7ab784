package main

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parseSchedule validates a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
// Examples: "0 9 * * *" (daily 9am), "0 */6 * * *" (every 6 hours).
func parseSchedule(schedule string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(schedule)
}

// StartScheduler starts the periodic analysis trigger. An empty schedule
// disables it; an invalid schedule logs and disables rather than crashing
// the process. A tick that fires during an in-flight run is skipped.
func StartScheduler(cfg Config, pipeline *Pipeline) {
	schedule := strings.TrimSpace(cfg.ScheduleCron)
	if schedule == "" {
		log.Println("Scheduler disabled (schedule_cron not set)")
		return
	}

	sched, err := parseSchedule(schedule)
	if err != nil {
		log.Printf("Invalid schedule_cron '%s': %v — scheduler disabled", schedule, err)
		return
	}

	log.Printf("Scheduler started (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next scheduled analysis at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			log.Println("Scheduled analysis triggered")
			if err := pipeline.Run(cfg.DefaultLookbackHours); err != nil {
				if errors.Is(err, ErrRunInProgress) {
					log.Println("Scheduled analysis skipped: run already in progress")
					continue
				}
				log.Printf("Scheduled analysis failed: %v", err)
				continue
			}
			log.Println("Scheduled analysis completed")
		}
	}()
}
