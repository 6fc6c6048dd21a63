// Package schedule decides when the weekly update check is due.
package schedule

import "time"

// Policy pins update checks to the first day of the week.
type Policy struct {
	WeekStart time.Weekday
}

// Weekly is the default policy, with weeks starting on Monday.
var Weekly = Policy{WeekStart: time.Monday}

// Due reports whether now has reached next. A zero next is always due.
func (p Policy) Due(next, now time.Time) bool {
	if next.IsZero() {
		return true
	}
	return !now.Before(next)
}

// NextBoundary returns midnight, in now's location, of the first day of the
// week following now.
func (p Policy) NextBoundary(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) - int(p.WeekStart) + 7) % 7
	start := day.AddDate(0, 0, -offset)
	return start.AddDate(0, 0, 7)
}
