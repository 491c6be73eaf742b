package googlecal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventsForDate_EachEventInExactlyOneBucket(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// Events spanning days and timezones. 2026-03-10T01:30Z is still
	// 2026-03-09 in São Paulo (UTC-3).
	events := []Event{
		{ID: "a", Start: time.Date(2026, 3, 9, 9, 0, 0, 0, saoPaulo)},
		{ID: "b", Start: time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)},
		{ID: "c", Start: time.Date(2026, 3, 10, 14, 0, 0, 0, saoPaulo)},
		{ID: "d", Start: time.Date(2026, 3, 11, 0, 0, 0, 0, saoPaulo)},
	}

	days := []time.Time{
		time.Date(2026, 3, 8, 0, 0, 0, 0, saoPaulo),
		time.Date(2026, 3, 9, 0, 0, 0, 0, saoPaulo),
		time.Date(2026, 3, 10, 0, 0, 0, 0, saoPaulo),
		time.Date(2026, 3, 11, 0, 0, 0, 0, saoPaulo),
		time.Date(2026, 3, 12, 0, 0, 0, 0, saoPaulo),
	}

	seen := map[string]int{}
	for _, day := range days {
		for _, ev := range EventsForDate(events, day) {
			seen[ev.ID]++
		}
	}

	require.Len(t, seen, len(events))
	for id, count := range seen {
		require.Equal(t, 1, count, "event %s bucketed %d times", id, count)
	}

	// The UTC early-morning event belongs to the previous local day
	day9 := EventsForDate(events, days[1])
	ids := make([]string, 0, len(day9))
	for _, ev := range day9 {
		ids = append(ids, ev.ID)
	}
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestMonthGridDays(t *testing.T) {
	// March 2026 starts on a Sunday
	days := MonthGridDays(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, days, 42)
	require.Equal(t, time.Sunday, days[0].Weekday())
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), days[0])
	require.Equal(t, time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC), days[41])
}

func TestWeekDays(t *testing.T) {
	// 2026-03-11 is a Wednesday
	days := WeekDays(time.Date(2026, 3, 11, 15, 30, 0, 0, time.UTC))
	require.Len(t, days, 7)
	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), days[0])
	require.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), days[6])
}
