// Package stream carries pipeline events to the one client connection
// attached to a session. Frames are emitted in completion order; every value
// that crosses the wire is pre-converted to a stable textual form.
package stream

import (
	"time"

	"github.com/incidentwire/incidentwire/pkg/types"
)

// EventType names one kind of frame on the stream.
type EventType string

const (
	// EventSession is emitted once before any work begins.
	EventSession EventType = "session"
	// EventProgress is best-effort and compressible; emitted as units of
	// work complete.
	EventProgress EventType = "progress"
	// EventRecord is emitted exactly once per accepted record.
	EventRecord EventType = "record"
	// EventCompleted terminates a session that drained normally.
	EventCompleted EventType = "completed"
	// EventCancelled terminates a cancelled session after admitted work
	// drains.
	EventCancelled EventType = "cancelled"
	// EventError terminates a session that could not start meaningful work.
	EventError EventType = "error"
)

// Frame is one discrete message on the stream.
type Frame struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// SessionPayload accompanies EventSession.
type SessionPayload struct {
	SessionID string `json:"session_id"`
}

// ProgressPayload accompanies EventProgress. Total is the best current
// estimate and may grow as sources report in.
type ProgressPayload struct {
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Status     string  `json:"status"`
}

// RecordWire is the wire form of a record: timestamps rendered as text.
type RecordWire struct {
	Category   string           `json:"category"`
	Title      string           `json:"title"`
	Summary    string           `json:"summary"`
	Location   string           `json:"location,omitempty"`
	OccurredAt string           `json:"occurred_at,omitempty"`
	Confidence float64          `json:"confidence"`
	Score      float64          `json:"score"`
	Source     types.Provenance `json:"source"`
}

// NewRecordWire converts a record for the wire.
func NewRecordWire(rec types.Record) RecordWire {
	return RecordWire{
		Category:   rec.Category,
		Title:      rec.Title,
		Summary:    rec.Summary,
		Location:   rec.Location,
		OccurredAt: types.FormatTime(rec.OccurredAt),
		Confidence: rec.Confidence,
		Score:      rec.Score,
		Source:     rec.Source,
	}
}

// RecordPayload accompanies EventRecord. Index is the completion-order
// position of the record within the session.
type RecordPayload struct {
	Index  int        `json:"index"`
	Record RecordWire `json:"record"`
}

// CompletedPayload accompanies EventCompleted.
type CompletedPayload struct {
	Message        string `json:"message"`
	TotalRecords   int    `json:"total_records"`
	TotalProcessed int    `json:"total_processed"`
	Elapsed        string `json:"elapsed"`
}

// CancelledPayload accompanies EventCancelled.
type CancelledPayload struct {
	Message      string `json:"message"`
	TotalRecords int    `json:"total_records"`
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Message string `json:"message"`
}

// FormatElapsed renders a duration for the wire with millisecond precision.
func FormatElapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
