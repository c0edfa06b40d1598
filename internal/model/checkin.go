package model

import "time"

// CheckinDay returns the calendar day containing now in loc, as midnight UTC
// of that date. The result is what gets stored in last_checkin_date.
func CheckinDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CanCheckinOn reports whether a user whose last check-in was last may
// check in on day. Both dates are compared by calendar date only.
func CanCheckinOn(last *time.Time, day time.Time) bool {
	if last == nil {
		return true
	}
	ly, lm, ld := last.UTC().Date()
	y, m, d := day.UTC().Date()
	return ly != y || lm != m || ld != d
}
