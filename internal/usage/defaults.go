package usage

import "time"

// nextPeriodStart returns the first instant of the month after now, in UTC.
func nextPeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func periodExpired(now, resetsAt time.Time) bool {
	return !now.Before(resetsAt)
}
