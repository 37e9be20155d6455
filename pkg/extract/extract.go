// Package extract turns raw fetched content into typed records by prompting
// a language-model backend for a JSON object and repairing whatever comes
// back. The pipeline treats this step as opaque: one bounded attempt per
// item, a failure drops the item and never the session.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/incidentwire/incidentwire/pkg/nlp"
	"github.com/incidentwire/incidentwire/pkg/types"
)

// ErrTimeout indicates the per-call deadline elapsed before the backend
// produced a usable record.
var ErrTimeout = errors.New("extract: call timed out")

// Content is the raw material handed to the extractor for one item.
type Content struct {
	SourceName string
	Locator    string
	Title      string
	Text       string
}

// Options tunes a single extraction call.
type Options struct {
	// Timeout bounds the call. Zero means no per-call deadline beyond the
	// caller's context.
	Timeout time.Duration
}

// Extractor converts raw content into a structured record.
type Extractor interface {
	Extract(ctx context.Context, content Content, opts Options) (*types.Record, error)
}

const systemPrompt = `You are an information extraction engine. Given a news article or web page,
extract a single structured incident record. Respond with only a JSON object
with these fields:
  "category":    short classification of the event (e.g. "bombing", "protest", "flood")
  "title":       one-line headline for the event
  "summary":     2-3 sentence factual summary
  "location":    city or region where the event occurred, "" if unknown
  "occurred_at": when the event occurred as an RFC 3339 timestamp or YYYY-MM-DD date, "" if unknown
  "confidence":  your confidence that the extraction is accurate, 0.0-1.0
Do not invent facts that are not in the text.`

// wireRecord mirrors the JSON shape the model is asked for.
type wireRecord struct {
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Location   string  `json:"location"`
	OccurredAt string  `json:"occurred_at"`
	Confidence float64 `json:"confidence"`
}

// LLMExtractor implements Extractor on top of an nlp.Client.
type LLMExtractor struct {
	client nlp.Client
}

// NewLLMExtractor creates an extractor backed by client.
func NewLLMExtractor(client nlp.Client) *LLMExtractor {
	return &LLMExtractor{client: client}
}

// Extract prompts the backend for a structured record. Malformed JSON is
// repaired before parsing; a deadline hit maps to ErrTimeout so callers can
// classify it.
func (e *LLMExtractor) Extract(ctx context.Context, content Content, opts Options) (*types.Record, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	messages := []nlp.Message{
		nlp.NewSystemMessage(systemPrompt),
		nlp.NewUserMessage(buildUserPrompt(content)),
	}

	resp, err := e.client.ChatJSON(ctx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("extract: %w", err)
	}

	wire, err := parseWireRecord(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("extract: unparseable model output: %w", err)
	}
	if strings.TrimSpace(wire.Title) == "" && strings.TrimSpace(wire.Summary) == "" {
		return nil, fmt.Errorf("extract: model produced an empty record")
	}

	return &types.Record{
		Category:   strings.TrimSpace(wire.Category),
		Title:      strings.TrimSpace(wire.Title),
		Summary:    strings.TrimSpace(wire.Summary),
		Location:   strings.TrimSpace(wire.Location),
		OccurredAt: types.ParseTime(wire.OccurredAt),
		Confidence: clamp01(wire.Confidence),
		Source: types.Provenance{
			SourceName: content.SourceName,
			Locator:    content.Locator,
		},
	}, nil
}

func buildUserPrompt(content Content) string {
	var b strings.Builder
	if content.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", content.Title)
	}
	b.WriteString(content.Text)
	return b.String()
}

// parseWireRecord unmarshals model output, falling back to jsonrepair for
// the usual damage: markdown fences, trailing commas, truncated objects.
func parseWireRecord(raw string) (*wireRecord, error) {
	raw = strings.TrimSpace(raw)

	var wire wireRecord
	if err := json.Unmarshal([]byte(raw), &wire); err == nil {
		return &wire, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair failed: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
		return nil, err
	}
	return &wire, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
