package validator

import "time"

// Clock abstracts the time source for temporal claim checks, injected for
// testability per spec.md §4.9.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a Clock that always returns the same instant, useful in
// tests that assert boundary behavior around exp/nbf/iat.
type FixedClock struct{ At time.Time }

// Now returns the fixed instant.
func (f FixedClock) Now() time.Time { return f.At }
