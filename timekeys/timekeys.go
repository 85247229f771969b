// Package timekeys derives the calendar labels used to bucket window state.
// Both keys are computed in UTC regardless of the offset carried by the
// input timestamp, and the week key is the Monday of the ISO week.
package timekeys

import "time"

const layout = "2006-01-02"

// Day labels a UTC calendar date, e.g. "2024-01-01".
type Day string

// Week labels the Monday of a UTC ISO week, e.g. "2024-01-01".
type Week string

// DayOf returns the UTC calendar date of the instant.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(layout))
}

// WeekOf returns the date of the Monday of the ISO week containing the
// instant, in UTC.
func WeekOf(t time.Time) Week {
	u := t.UTC()
	offset := (int(u.Weekday()) + 6) % 7
	return Week(u.AddDate(0, 0, -offset).Format(layout))
}

// Keys returns both calendar labels for the instant.
func Keys(t time.Time) (Day, Week) {
	return DayOf(t), WeekOf(t)
}
