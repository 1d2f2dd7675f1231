package contract

import "time"

// CalculateDaysBetween returns the number of whole days from start to end.
// It returns 0 if end is before start.
func CalculateDaysBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

// NormalizeTime drops sub-second precision and monotonic readings so the
// value survives a JSON or database round trip unchanged.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// TimePtr returns a pointer to a normalized copy of t.
func TimePtr(t time.Time) *time.Time {
	n := NormalizeTime(t)
	return &n
}
