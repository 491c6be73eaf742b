package googlecal

import "time"

// EventsForDate returns the events whose start falls on the given calendar
// day, compared in date's location. Every event lands in exactly one bucket:
// the local day of its start instant.
func EventsForDate(events []Event, date time.Time) []Event {
	loc := date.Location()
	y, m, d := date.In(loc).Date()

	var out []Event
	for _, ev := range events {
		ey, em, ed := ev.Start.In(loc).Date()
		if ey == y && em == m && ed == d {
			out = append(out, ev)
		}
	}
	return out
}

// MonthGridDays returns the 42 cells of a month view: six weeks starting at
// the Sunday on or before the first of the month.
func MonthGridDays(month time.Time) []time.Time {
	loc := month.Location()
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	days := make([]time.Time, 42)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// WeekDays returns the seven days of the week containing date, Sunday first
func WeekDays(date time.Time) []time.Time {
	loc := date.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	start := day.AddDate(0, 0, -int(day.Weekday()))

	days := make([]time.Time, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}
