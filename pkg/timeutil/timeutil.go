// Package timeutil provides timezone and calendar-day utilities.
// The daily XP cap and the mission limiter reset on calendar-day
// boundaries in the deployment timezone, so day arithmetic is done here
// in one place. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// DefaultTZ is the default deployment timezone (UTC+5, no DST).
// Kazakhstan abolished DST in 2005, so this is constant year-round.
var DefaultTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Now returns the current time in the default timezone.
func Now() time.Time {
	return time.Now().In(DefaultTZ)
}

// In converts a time to the given location, falling back to DefaultTZ
// when loc is nil.
func In(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = DefaultTZ
	}
	return t.In(loc)
}

// StartOfDay returns the start of the calendar day (00:00:00) in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := In(t, loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// EndOfDay returns the end of the calendar day (23:59:59.999999999) in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := In(t, loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 999999999, local.Location())
}

// NextDayStart returns the start of the next calendar day in loc.
// Daily counters roll over at this instant.
func NextDayStart(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}

// NextDailyRun returns the next instant at hour:minute in loc strictly
// after t. Used to report when a daily job will fire.
func NextDailyRun(t time.Time, hour, minute int, loc *time.Location) time.Time {
	local := In(t, loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// FormatDate is the day-key date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// DayKey returns the calendar-day key of an instant in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return In(t, loc).Format(FormatDate)
}

// ParseDayKey parses a day key back into the start of that day in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = DefaultTZ
	}
	return time.ParseInLocation(FormatDate, key, loc)
}

// SameDay reports whether two instants fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayKey(a, loc) == DayKey(b, loc)
}

// DaysBetween returns the number of whole calendar days from a to b in loc.
// Negative when b precedes a.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	start := StartOfDay(a, loc)
	end := StartOfDay(b, loc)
	return int(end.Sub(start) / (24 * time.Hour))
}
