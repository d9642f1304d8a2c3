package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Calendar_NextSessionClose(t *testing.T) {
	cal := NewTradingCalendar()

	// Monday morning fails -> same day 16:00.
	monMorning := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	require.Equal(t,
		time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC),
		cal.NextSessionClose(monMorning))

	// Monday after the close -> Tuesday 16:00.
	monEvening := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)
	require.Equal(t,
		time.Date(2025, 6, 3, 16, 0, 0, 0, time.UTC),
		cal.NextSessionClose(monEvening))

	// Exactly at the close counts as past it.
	monClose := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	require.Equal(t,
		time.Date(2025, 6, 3, 16, 0, 0, 0, time.UTC),
		cal.NextSessionClose(monClose))
}

func Test_Calendar_WeekendRollsToMonday(t *testing.T) {
	cal := NewTradingCalendar()

	// Friday evening -> Monday 16:00.
	friEvening := time.Date(2025, 6, 6, 18, 0, 0, 0, time.UTC)
	require.Equal(t,
		time.Date(2025, 6, 9, 16, 0, 0, 0, time.UTC),
		cal.NextSessionClose(friEvening))

	// Saturday -> Monday 16:00.
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)
	require.Equal(t,
		time.Date(2025, 6, 9, 16, 0, 0, 0, time.UTC),
		cal.NextSessionClose(saturday))
}

func Test_Calendar_HolidaysSkipped(t *testing.T) {
	cal := NewTradingCalendar()
	cal.Holidays["2025-06-03"] = true

	require.False(t, cal.IsTradingDay(time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)))

	// Monday after the close with Tuesday a holiday -> Wednesday 16:00.
	monEvening := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)
	require.Equal(t,
		time.Date(2025, 6, 4, 16, 0, 0, 0, time.UTC),
		cal.NextSessionClose(monEvening))
}
