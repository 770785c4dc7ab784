package main

import (
	"testing"
	"time"
)

func TestParseScheduleValid(t *testing.T) {
	for _, expr := range []string{"0 9 * * *", "0 */6 * * *", "30 8 * * 1-5", "*/15 * * * *"} {
		if _, err := parseSchedule(expr); err != nil {
			t.Fatalf("expected %q to parse: %v", expr, err)
		}
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	for _, expr := range []string{"", "not a cron", "0 9 * *", "0 9 * * * *", "61 9 * * *"} {
		if _, err := parseSchedule(expr); err == nil {
			t.Fatalf("expected %q to be rejected", expr)
		}
	}
}

func TestParseScheduleNextFire(t *testing.T) {
	sched, err := parseSchedule("0 9 * * *")
	if err != nil {
		t.Fatalf("parseSchedule: %v", err)
	}
	from := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	want := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected next fire %s, got %s", want, next)
	}
}

func TestStartSchedulerDisabledWithoutCron(t *testing.T) {
	db := newTestDB(t)
	source := &fakeTicketSource{}
	pipeline := NewPipeline(Config{}, db, source, &fakeReporter{})

	// Empty and invalid schedules disable the scheduler instead of crashing;
	// either way no run is triggered.
	StartScheduler(Config{ScheduleCron: ""}, pipeline)
	StartScheduler(Config{ScheduleCron: "bogus"}, pipeline)

	time.Sleep(20 * time.Millisecond)
	if source.calls.Load() != 0 {
		t.Fatalf("disabled scheduler must not trigger runs")
	}
}
