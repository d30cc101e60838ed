package academicyear

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLabelForBoundary(t *testing.T) {
	assert.Equal(t, "2024-2025", LabelFor(date(2024, time.September, 1)))
	assert.Equal(t, "2023-2024", LabelFor(date(2024, time.August, 31)))
	assert.Equal(t, "2024-2025", LabelFor(date(2024, time.December, 31)))
	assert.Equal(t, "2023-2024", LabelFor(date(2024, time.January, 1)))
}

func TestRangeFor(t *testing.T) {
	start, end, err := RangeFor("2023-2024", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, date(2023, time.September, 1), start)
	assert.Equal(t, 2024, end.Year())
	assert.Equal(t, time.August, end.Month())
	assert.Equal(t, 31, end.Day())

	assert.True(t, end.After(time.Date(2024, time.August, 31, 23, 59, 0, 0, time.UTC)))
	assert.True(t, end.Before(date(2024, time.September, 1)))
}

func TestRangeForRoundTripsLabel(t *testing.T) {
	start, end, err := RangeFor("2030-2031", nil)
	require.NoError(t, err)
	assert.Equal(t, "2030-2031", LabelFor(start))
	assert.Equal(t, "2030-2031", LabelFor(end))
}

func TestRangeForMalformed(t *testing.T) {
	for _, label := range []string{"", "2024", "2024/2025", "abcd-2025", "2024-efgh"} {
		_, _, err := RangeFor(label, time.UTC)
		assert.Error(t, err, label)
	}
}
