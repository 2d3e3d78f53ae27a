// Package clock abstracts wall-clock access so scheduler timing logic can be
// driven deterministically in tests.
package clock

import "time"

// Clock provides the current time and timer channels.
type Clock interface {
	Now() time.Time
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

func (System) After(d time.Duration) <-chan time.Time { return time.After(d) }
