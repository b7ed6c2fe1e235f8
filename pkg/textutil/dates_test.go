package textutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func civil(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestParseEmbeddedDates(t *testing.T) {
	dates := ParseEmbeddedDates("Seen 2021-03-18, prior visit 02/07/2021, invalid 2021-13-40")

	require.Len(t, dates, 2)
	assert.Equal(t, civil(2021, 3, 18), dates[0])
	assert.Equal(t, civil(2021, 2, 7), dates[1])
}

func TestDateSane(t *testing.T) {
	assert.True(t, DateSane(civil(2021, 1, 1)))
	assert.False(t, DateSane(civil(1899, 1, 1)))
	assert.False(t, DateSane(civil(2101, 1, 1)))
	assert.False(t, DateSane(time.Time{}))
}

func TestFactTemporallyConsistent(t *testing.T) {
	target := civil(2021, 3, 1)

	assert.True(t, FactTemporallyConsistent("no embedded dates here", target))
	assert.True(t, FactTemporallyConsistent("follow-up on 2021-03-20", target))
	assert.False(t, FactTemporallyConsistent("historical injury 2015-06-01", target))
	assert.True(t, FactTemporallyConsistent("2015-06-01 injury, re-injured 2021-02-25", target),
		"one nearby date rescues the fact")
	assert.True(t, FactTemporallyConsistent("anything at all 1950-01-01", time.Time{}))
}

func TestStripConflictingTimestamps(t *testing.T) {
	target := civil(2021, 3, 1)

	out := StripConflictingTimestamps("Vitals recorded 2019-08-14T09:30:00Z during triage", target)
	assert.Equal(t, "Vitals recorded during triage", out)

	out = StripConflictingTimestamps("Injury date 2015-06-01 per history", target)
	assert.Equal(t, "Injury date per history", out)

	out = StripConflictingTimestamps("Seen 2021-03-02 for follow-up", target)
	assert.Equal(t, "Seen 2021-03-02 for follow-up", out, "nearby dates are kept")
}

func TestExtractISODate(t *testing.T) {
	d, ok := ExtractISODate("2021-03-18 (time not documented)")
	require.True(t, ok)
	assert.Equal(t, civil(2021, 3, 18), d)

	_, ok = ExtractISODate("Date not documented")
	assert.False(t, ok)
}
