// Package billing prices parking sessions.  The same functions are used
// when a reservation is released and when historical reports need to
// price a session whose cost was never stored, so both paths always
// agree.
package billing

import "time"

// BilledHours returns the number of whole hours charged for a session
// running from start to end.  Partial hours are rounded up and every
// session is charged at least one hour, including zero-length and
// negative durations.
func BilledHours(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 1
	}
	h := int64((d + time.Hour - 1) / time.Hour)
	if h < 1 {
		return 1
	}
	return h
}

// Compute returns the cost in cents of a session at the given hourly
// price.
func Compute(hourlyPriceCents int64, start, end time.Time) int64 {
	return BilledHours(start, end) * hourlyPriceCents
}

// Hours returns the real elapsed time between start and end in fractional
// hours, never negative.  Reports use it for "time parked" figures, which
// are not rounded the way billing is.
func Hours(start, end time.Time) float64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return d.Hours()
}
