package types

import (
	"strings"
	"time"
)

// WireTimeFormat is the textual timestamp layout used everywhere a time value
// crosses the stream boundary. Receivers live in separate processes, so times
// are never serialized as language-native values.
const WireTimeFormat = time.RFC3339

// Query is an immutable description of what a search session is looking for.
// Optional filters are nil/empty when absent, never sentinel strings.
type Query struct {
	Phrase   string     `json:"phrase"`
	Location string     `json:"location,omitempty"`
	Category string     `json:"category,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
}

// HasDateRange reports whether both ends of the date filter are present.
// Date containment is only evaluated when the full range is known.
func (q Query) HasDateRange() bool {
	return q.DateFrom != nil && q.DateTo != nil
}

// SourceItem is one candidate unit of content discovered from a source.
// ID is the canonical resource identifier and doubles as the deduplication
// key across all sources in a session.
type SourceItem struct {
	ID         string `json:"id"`
	SourceName string `json:"source_name"`
	Locator    string `json:"locator"`
	Title      string `json:"title,omitempty"`
}

// Provenance records where a Record came from.
type Provenance struct {
	SourceName string `json:"source_name"`
	Locator    string `json:"locator"`
}

// Record is the structured output of the extraction step. Immutable once
// produced; ownership moves extraction -> ranking -> stream -> session.
type Record struct {
	Category   string     `json:"category"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Location   string     `json:"location,omitempty"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
	Confidence float64    `json:"confidence"`
	Score      float64    `json:"score"`
	Source     Provenance `json:"source"`
}

// FormatTime renders t in the wire layout, or "" for a nil time.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(WireTimeFormat)
}

// ParseTime parses a wire-layout timestamp, tolerating a plain date. Returns
// nil for an empty or unparseable value rather than failing the caller: a
// record without a usable timestamp is still a valid record.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
