package engine

import "time"

// Clock stamps audit fields and lifecycle timestamps.
//
// Production uses SystemClock. Tests and the scenario harness inject a
// deterministic clock so traces are byte-identical across runs.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
