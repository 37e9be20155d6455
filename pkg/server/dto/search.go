// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/incidentwire/incidentwire/pkg/types"
)

// MaxPhraseLength bounds the query phrase.
const MaxPhraseLength = 512

// SearchRequest starts a search session. Optional filters are omitted, not
// sent as empty sentinels; dates use the wire timestamp format.
type SearchRequest struct {
	Phrase   string `json:"phrase" binding:"required"`
	Location string `json:"location,omitempty"`
	Category string `json:"category,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`

	// Optional per-session concurrency overrides.
	FetchWidth            int `json:"fetch_width,omitempty"`
	ExtractWidth          int `json:"extract_width,omitempty"`
	SessionTimeoutSeconds int `json:"session_timeout_seconds,omitempty"`
}

// Validate performs validation on SearchRequest.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Phrase) == "" {
		return errors.New("phrase cannot be empty")
	}
	if len(r.Phrase) > MaxPhraseLength {
		return fmt.Errorf("phrase exceeds %d characters", MaxPhraseLength)
	}
	if r.FetchWidth < 0 || r.ExtractWidth < 0 || r.SessionTimeoutSeconds < 0 {
		return errors.New("concurrency overrides must be non-negative")
	}
	return nil
}

// Query converts the request into the domain query, rejecting malformed
// dates and inverted ranges.
func (r *SearchRequest) Query() (types.Query, error) {
	q := types.Query{
		Phrase:   strings.TrimSpace(r.Phrase),
		Location: strings.TrimSpace(r.Location),
		Category: strings.TrimSpace(r.Category),
	}

	var err error
	if q.DateFrom, err = parseDate(r.DateFrom, "date_from"); err != nil {
		return types.Query{}, err
	}
	if q.DateTo, err = parseDate(r.DateTo, "date_to"); err != nil {
		return types.Query{}, err
	}
	if q.HasDateRange() && q.DateTo.Before(*q.DateFrom) {
		return types.Query{}, errors.New("date_to precedes date_from")
	}
	return q, nil
}

func parseDate(s, field string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t := types.ParseTime(s)
	if t == nil {
		return nil, fmt.Errorf("invalid %s: %q", field, s)
	}
	return t, nil
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	Accepted              bool `json:"accepted"`
	AlreadyTerminal       bool `json:"already_terminal,omitempty"`
	RecordsExtractedSoFar int  `json:"records_extracted_so_far"`
}

// SessionSnapshot is the idempotent read of a session's current state.
type SessionSnapshot struct {
	SessionID    string      `json:"session_id"`
	State        string      `json:"state"`
	Query        types.Query `json:"query"`
	TotalRecords int         `json:"total_records"`
	CreatedAt    string      `json:"created_at"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
