package util

import "time"

// Span is an inclusive range of calendar days.
type Span struct {
	Start time.Time
	End   time.Time
}

// YearSpans splits [start, end] into per-calendar-year spans in UTC. The
// first and last span are clipped to start and end. An inverted range yields
// nil.
func YearSpans(start, end time.Time) []Span {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil
	}
	var out []Span
	for y := start.Year(); y <= end.Year(); y++ {
		s := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		e := time.Date(y, 12, 31, 23, 59, 59, 0, time.UTC)
		if s.Before(start) {
			s = start
		}
		if e.After(end) {
			e = end
		}
		out = append(out, Span{Start: s, End: e})
	}
	return out
}

// ParseDate parses a YYYY-MM-DD date in UTC. An empty string yields the
// zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
