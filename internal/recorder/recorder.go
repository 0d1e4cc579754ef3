package recorder

import (
	"time"

	"SignalSentinel/internal/model"
)

// CycleSummary describes one pass of the live tracker.
type CycleSummary struct {
	StartedAt  time.Time
	Duration   time.Duration
	Symbols    int
	Fetched    int
	Skipped    int
	Alerts     int
	Dispatched bool
}

// Recorder persists alert and tracker history for later analysis.
type Recorder interface {
	RecordAlerts(events []model.AlertEvent) error
	RecordCycle(c *CycleSummary) error
	Close() error
}
