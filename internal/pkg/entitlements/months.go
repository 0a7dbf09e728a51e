package entitlements

import "time"

// AddMonthsClamped adds calendar months in UTC, clamping the day of month to
// the target month's length instead of normalizing the way time.AddDate does
// (Jan 31 + 1 month yields Feb 28/29, not Mar 2/3).
func AddMonthsClamped(t time.Time, months int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	total := int(month) - 1 + months
	year += total / 12
	total %= 12
	if total < 0 {
		total += 12
		year--
	}
	targetMonth := time.Month(total + 1)

	if last := daysInMonth(year, targetMonth); day > last {
		day = last
	}
	return time.Date(year, targetMonth, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// daysInMonth returns the number of days in the given month; day 0 of the
// following month is the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
