// Package clock supplies the wall time stamped on users, sessions, queue
// entries and games.
package clock

import "time"

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// System reads the machine clock, in UTC so stored timestamps compare
// equal across backends
type System struct{}

// New returns the system clock
func New() System {
	return System{}
}

// Now returns the current UTC time
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Since returns how long ago t was according to c
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
