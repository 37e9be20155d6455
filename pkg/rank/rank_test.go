package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/incidentwire/incidentwire/pkg/types"
)

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func baseRecord() *types.Record {
	return &types.Record{
		Category: "bombing",
		Title:    "Bombing reported near market",
		Summary:  "A bombing struck a crowded market district in the capital.",
		Location: "Kabul",
	}
}

func TestScoreFullMatch(t *testing.T) {
	r := New(DefaultWeights(), DefaultThreshold)
	q := types.Query{Phrase: "bombing", Location: "Kabul", Category: "bombing"}

	score := r.Score(baseRecord(), q)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScoreLocationMonotonic(t *testing.T) {
	r := New(DefaultWeights(), DefaultThreshold)
	q := types.Query{Phrase: "bombing", Location: "Kabul"}

	exact := baseRecord()
	substring := baseRecord()
	substring.Location = "Kabul Province"
	none := baseRecord()
	none.Location = "Herat"

	sExact := r.Score(exact, q)
	sSub := r.Score(substring, q)
	sNone := r.Score(none, q)

	assert.Greater(t, sExact, sSub)
	assert.Greater(t, sSub, sNone)
}

func TestScoreCategoryMonotonic(t *testing.T) {
	r := New(DefaultWeights(), DefaultThreshold)
	q := types.Query{Phrase: "bombing", Category: "bombing"}

	match := baseRecord()
	mismatch := baseRecord()
	mismatch.Category = "protest"

	assert.Greater(t, r.Score(match, q), r.Score(mismatch, q))
}

func TestScoreDateContainment(t *testing.T) {
	r := New(DefaultWeights(), DefaultThreshold)
	q := types.Query{Phrase: "bombing", DateFrom: ts("2024-01-01"), DateTo: ts("2024-12-31")}

	inside := baseRecord()
	inside.OccurredAt = ts("2024-06-15")
	outside := baseRecord()
	outside.OccurredAt = ts("2023-06-15")

	assert.Greater(t, r.Score(inside, q), r.Score(outside, q))
}

func TestMissingFieldsAreNeutral(t *testing.T) {
	r := New(DefaultWeights(), DefaultThreshold)
	q := types.Query{
		Phrase:   "bombing",
		Location: "Kabul",
		DateFrom: ts("2024-01-01"),
		DateTo:   ts("2024-12-31"),
	}

	// No location and no timestamp on the record: neither excluded nor
	// zeroed, the text sub-score still carries it over the threshold.
	rec := baseRecord()
	rec.Location = ""
	rec.OccurredAt = nil

	score, ok := r.Accept(rec, q)
	assert.True(t, ok)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestUnconstrainedFiltersExcludedFromWeighting(t *testing.T) {
	r := New(DefaultWeights(), DefaultThreshold)

	// A query with only a phrase can still reach a perfect score.
	q := types.Query{Phrase: "bombing market"}
	score := r.Score(baseRecord(), q)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestThresholdRejects(t *testing.T) {
	r := New(DefaultWeights(), 0.3)
	q := types.Query{Phrase: "bombing", Location: "Kabul"}

	rec := &types.Record{
		Category: "gardening",
		Title:    "Ten tips for spring tulips",
		Summary:  "A guide to planting bulbs.",
	}
	_, ok := r.Accept(rec, q)
	assert.False(t, ok)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	r := New(Weights{}, -1)
	assert.Equal(t, DefaultThreshold, r.Threshold())

	q := types.Query{Phrase: "bombing"}
	assert.Greater(t, r.Score(baseRecord(), q), 0.0)
}
