// Package rank scores extracted records against the session query and
// decides inclusion. Scoring is a pure function; records are emitted in
// completion order with the score attached, final sorting is left to the
// consumer.
package rank

import (
	"strings"
	"time"

	"github.com/incidentwire/incidentwire/pkg/types"
)

// Weights holds the relative contribution of each sub-score. The exact
// constants are deployment-tunable rather than fixed.
type Weights struct {
	Text     float64 `mapstructure:"text" json:"text"`
	Location float64 `mapstructure:"location" json:"location"`
	Category float64 `mapstructure:"category" json:"category"`
	Date     float64 `mapstructure:"date" json:"date"`
}

// DefaultWeights returns the stock weighting: lexical overlap dominates,
// location and category act as partial boosts, date containment least.
func DefaultWeights() Weights {
	return Weights{Text: 0.5, Location: 0.2, Category: 0.2, Date: 0.1}
}

// DefaultThreshold is the stock acceptance threshold.
const DefaultThreshold = 0.3

// Ranker scores records against a query and filters by threshold.
type Ranker struct {
	weights   Weights
	threshold float64
}

// New creates a ranker. Non-positive weights fall back to the defaults and a
// threshold outside (0, 1] falls back to DefaultThreshold.
func New(w Weights, threshold float64) *Ranker {
	if w.Text <= 0 && w.Location <= 0 && w.Category <= 0 && w.Date <= 0 {
		w = DefaultWeights()
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Ranker{weights: w, threshold: threshold}
}

// Threshold returns the acceptance threshold in use.
func (r *Ranker) Threshold() float64 { return r.threshold }

// Score computes a relevance score in [0, 1] for rec against q.
//
// Sub-scores the query does not constrain (no location filter, no category
// filter, incomplete date range) are excluded from the weighting entirely. A
// record missing a field the query does constrain contributes zero to that
// sub-score but is neither zeroed out nor excluded.
func (r *Ranker) Score(rec *types.Record, q types.Query) float64 {
	num := r.weights.Text * textOverlap(q.Phrase, rec.Title+" "+rec.Summary)
	den := r.weights.Text

	if q.Location != "" {
		num += r.weights.Location * locationMatch(q.Location, rec.Location)
		den += r.weights.Location
	}
	if q.Category != "" {
		num += r.weights.Category * categoryMatch(q.Category, rec.Category)
		den += r.weights.Category
	}
	if q.HasDateRange() {
		num += r.weights.Date * dateContained(q, rec.OccurredAt)
		den += r.weights.Date
	}

	if den == 0 {
		return 0
	}
	return num / den
}

// Accept scores rec and reports whether it clears the threshold.
func (r *Ranker) Accept(rec *types.Record, q types.Query) (float64, bool) {
	score := r.Score(rec, q)
	return score, score >= r.threshold
}

// textOverlap returns the fraction of query phrase tokens present in text.
func textOverlap(phrase, text string) float64 {
	queryTokens := tokenize(phrase)
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		textTokens[tok] = struct{}{}
	}
	matched := 0
	for _, tok := range queryTokens {
		if _, ok := textTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// locationMatch scores exact matches above substring matches above none. A
// record with no location is neutral, not penalized below a mismatch.
func locationMatch(want, have string) float64 {
	if have == "" {
		return 0
	}
	want = strings.ToLower(strings.TrimSpace(want))
	have = strings.ToLower(strings.TrimSpace(have))
	switch {
	case want == have:
		return 1.0
	case strings.Contains(have, want) || strings.Contains(want, have):
		return 0.7
	default:
		return 0
	}
}

func categoryMatch(want, have string) float64 {
	if have == "" {
		return 0
	}
	if strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(have)) {
		return 1.0
	}
	return 0
}

// dateContained is binary and only meaningful when the record carries a
// timestamp; a missing timestamp is neutral.
func dateContained(q types.Query, occurred *time.Time) float64 {
	if occurred == nil {
		return 0
	}
	if occurred.Before(*q.DateFrom) || occurred.After(*q.DateTo) {
		return 0
	}
	return 1.0
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
