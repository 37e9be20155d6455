package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentwire/incidentwire/pkg/types"
)

func TestRecordWireTextualTimestamps(t *testing.T) {
	occurred := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	wire := NewRecordWire(types.Record{
		Category:   "bombing",
		Title:      "Bombing reported",
		OccurredAt: &occurred,
		Confidence: 0.9,
		Score:      0.8,
		Source:     types.Provenance{SourceName: "wire-a", Locator: "https://a.example/1"},
	})

	data, err := json.Marshal(wire)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2024-06-15T12:00:00Z", decoded["occurred_at"])
}

func TestRecordWireOmitsMissingTimestamp(t *testing.T) {
	data, err := json.Marshal(NewRecordWire(types.Record{Title: "x"}))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "occurred_at")
}

func TestEmitterDeliversInOrder(t *testing.T) {
	em := NewEmitter(context.Background())

	require.NoError(t, em.Session("s-1"))
	require.NoError(t, em.Progress(1, 2, "working"))
	require.NoError(t, em.Completed("done", 1, 2, 1500*time.Millisecond))
	em.Close()

	var events []EventType
	for f := range em.Frames() {
		events = append(events, f.Event)
	}
	assert.Equal(t, []EventType{EventSession, EventProgress, EventCompleted}, events)
}

func TestProgressPercentage(t *testing.T) {
	em := NewEmitter(context.Background())
	require.NoError(t, em.Progress(1, 4, "working"))
	em.Close()

	f := <-em.Frames()
	payload := f.Data.(ProgressPayload)
	assert.InDelta(t, 25.0, payload.Percentage, 1e-9)

	// Zero total never divides.
	em2 := NewEmitter(context.Background())
	require.NoError(t, em2.Progress(0, 0, "starting"))
	em2.Close()
	f2 := <-em2.Frames()
	assert.Zero(t, f2.Data.(ProgressPayload).Percentage)
}

func TestEmitFailsWhenClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	em := NewEmitter(ctx)

	cancel()
	assert.ErrorIs(t, em.Session("s-1"), ErrClientGone)
}

func TestCloseIsIdempotent(t *testing.T) {
	em := NewEmitter(context.Background())
	em.Close()
	assert.NotPanics(t, em.Close)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "1.5s", FormatElapsed(1500*time.Millisecond))
}
