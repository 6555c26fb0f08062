package domain

import "time"

// Monitor is one camera known to the surveillance server.
type Monitor struct {
	ID       MonitorID `json:"id"`
	Name     string    `json:"name"`
	StreamID StreamID  `json:"stream_id"`
	Enabled  bool      `json:"enabled"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
}

// Event is one motion/alert event recorded for a monitor.
type Event struct {
	ID        string    `json:"id"`
	MonitorID MonitorID `json:"monitor_id"`
	Cause     string    `json:"cause"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Frames    int       `json:"frames,omitempty"`
}

// EventQuery filters an event listing.
type EventQuery struct {
	MonitorID MonitorID
	After     time.Time
	Before    time.Time
	Limit     int
}
