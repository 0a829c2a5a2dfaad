package model

import "time"

// EventType classifies run notifications published on the hub.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event is a best-effort notification about an analysis run.
type Event struct {
	Type     EventType `json:"type"`
	RunID    string    `json:"run_id"`
	Name     string    `json:"name"`
	Progress float64   `json:"progress"` // percent, 0-100
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}
