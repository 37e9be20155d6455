package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", FormatTime(nil))

	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 6, 15, 17, 30, 0, 0, loc)
	assert.Equal(t, "2024-06-15T12:30:00Z", FormatTime(&ts))
}

func TestParseTime(t *testing.T) {
	assert.Nil(t, ParseTime(""))
	assert.Nil(t, ParseTime("not a date"))

	got := ParseTime("2024-06-15T12:30:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())

	dateOnly := ParseTime("2024-06-15")
	require.NotNil(t, dateOnly)
	assert.Equal(t, time.June, dateOnly.Month())

	spaced := ParseTime("2024-06-15 12:30:00")
	require.NotNil(t, spaced)
	assert.Equal(t, 12, spaced.Hour())
}

func TestQueryHasDateRange(t *testing.T) {
	from := time.Now()
	to := from.Add(time.Hour)

	assert.False(t, Query{}.HasDateRange())
	assert.False(t, Query{DateFrom: &from}.HasDateRange())
	assert.True(t, Query{DateFrom: &from, DateTo: &to}.HasDateRange())
}

func TestQueryOmitsAbsentFilters(t *testing.T) {
	data, err := json.Marshal(Query{Phrase: "bombing"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"phrase":"bombing"}`, string(data))
}
