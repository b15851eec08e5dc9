package actor

import "time"

// Clock provides a testable time source.
//
// Reducers stay deterministic and never consult a Clock directly; runtimes
// read the clock and inject timestamps through events.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }
