package timekeys_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"loadgate/timekeys"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestDayOf(t *testing.T) {
	require.Equal(t, timekeys.Day("2024-01-01"), timekeys.DayOf(mustParse(t, "2024-01-01T00:00:00Z")))
	require.Equal(t, timekeys.Day("2024-01-01"), timekeys.DayOf(mustParse(t, "2024-01-01T23:59:59Z")))

	// Offsets are normalized to UTC before the date is taken.
	require.Equal(t, timekeys.Day("2024-01-02"), timekeys.DayOf(mustParse(t, "2024-01-01T23:30:00-05:00")))
	require.Equal(t, timekeys.Day("2023-12-31"), timekeys.DayOf(mustParse(t, "2024-01-01T05:30:00+09:00")))
}

func TestWeekOf(t *testing.T) {
	cases := []struct {
		at   string
		week timekeys.Week
	}{
		{"2024-01-07T23:59:59Z", "2024-01-01"}, // Sunday belongs to the week of Jan 1
		{"2024-01-08T00:00:00Z", "2024-01-08"}, // Monday starts a new week
		{"2024-01-01T00:00:00Z", "2024-01-01"}, // Monday maps to itself
		{"2021-01-01T12:00:00Z", "2020-12-28"}, // ISO week crossing the year boundary
		{"2024-02-29T12:00:00Z", "2024-02-26"}, // leap day
	}
	for _, tc := range cases {
		require.Equal(t, tc.week, timekeys.WeekOf(mustParse(t, tc.at)), tc.at)
	}
}

func TestKeys(t *testing.T) {
	day, week := timekeys.Keys(mustParse(t, "2024-01-10T09:00:00Z"))
	require.Equal(t, timekeys.Day("2024-01-10"), day)
	require.Equal(t, timekeys.Week("2024-01-08"), week)
}
